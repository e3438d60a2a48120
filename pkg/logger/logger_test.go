package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/masonry-build/masonry/pkg/logger"
)

func TestCreateLogger(t *testing.T) {
	log := logger.CreateLogger("", "info")
	if log == nil {
		t.Fatal("expected logger to be created")
	}
}

func TestLogger_WithPackage(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	pkgLog := log.WithPackage("geometry_msgs")
	pkgLog.Info("building package")

	output := buf.String()
	if !strings.Contains(output, "geometry_msgs") {
		t.Error("expected package name in log output")
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Success("build completed")

	output := buf.String()
	if !strings.Contains(output, "build completed") {
		t.Error("expected message in log output")
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Info("installing", logger.WithField("stage", "install"))

	output := buf.String()
	if !strings.Contains(output, "stage=install") {
		t.Errorf("expected structured field in log output, got: %s", output)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("warn", &buf)

	log.Debug("hidden")
	log.Info("also hidden")
	log.Warn("visible")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("expected debug/info to be filtered at warn level")
	}
	if !strings.Contains(output, "visible") {
		t.Error("expected warn message in output")
	}
}
