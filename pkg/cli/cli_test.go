package cli

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/masonry-build/masonry/pkg/buildtypes"
	"github.com/masonry-build/masonry/pkg/config"
	"github.com/masonry-build/masonry/pkg/graph"
	"github.com/masonry-build/masonry/pkg/types"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"success", nil, ExitOK},
		{"cycle", &graph.CycleError{Members: []string{"a", "b"}}, ExitCycle},
		{"invalid config", &config.InvalidConfigError{Reason: "jobs"}, ExitInvalidConfig},
		{"unknown package", &graph.UnknownPackageError{Name: "ghost"}, ExitInvalidConfig},
		{"duplicate package", &graph.DuplicatePackageError{Name: "twin"}, ExitInvalidConfig},
		{"inverted range", &graph.InconsistentRangeError{StartWith: "b", EndWith: "a"}, ExitInvalidConfig},
		{"package failures", &PackagesFailedError{Failed: []string{"core"}}, ExitPackagesFailed},
		{"anything else", errors.New("disk on fire"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.code {
				t.Errorf("ExitCode() = %d, want %d", got, tt.code)
			}
		})
	}
}

func TestPackagesFailedErrorMessage(t *testing.T) {
	err := &PackagesFailedError{Failed: []string{"core"}, Skipped: []string{"app", "tools"}}
	msg := err.Error()
	if !strings.Contains(msg, "failed: core") || !strings.Contains(msg, "skipped: app, tools") {
		t.Errorf("message = %q", msg)
	}
}

func TestPreprocessArguments(t *testing.T) {
	registry = buildtypes.DefaultRegistry()

	args := preprocessArguments([]string{
		"build",
		"--make-flags", "-j8", "--",
		"--cmake-args", "-DFOO=1", "--",
		"--python-args", "--quiet", "--",
		"--jobs", "2",
	})

	if want := []string{"build", "--jobs", "2"}; !reflect.DeepEqual(args, want) {
		t.Errorf("remaining args = %v, want %v", args, want)
	}
	if !reflect.DeepEqual(makeFlags, []string{"-j8"}) {
		t.Errorf("makeFlags = %v", makeFlags)
	}
	if got, _ := handlerExtras["cmake_args"].([]string); len(got) != 1 || got[0] != "-DFOO=1" {
		t.Errorf("cmake_args = %v", handlerExtras["cmake_args"])
	}
	if got, _ := handlerExtras["python_args"].([]string); len(got) != 1 || got[0] != "--quiet" {
		t.Errorf("python_args = %v", handlerExtras["python_args"])
	}
}

func writePackage(t *testing.T, base, name, manifest string) {
	t.Helper()
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "package.yaml"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRunBuild_DryRun(t *testing.T) {
	registry = buildtypes.DefaultRegistry()
	verbosity = "error"

	base := t.TempDir()
	writePackage(t, base, "base", "name: base\nbuild_type: cmake\n")
	writePackage(t, base, "app", "name: app\nbuild_type: cmake\ndependencies: [base]\n")

	opts := types.DefaultWorkspaceOptions()
	opts.BasePath = base
	opts.BuildSpace = filepath.Join(t.TempDir(), "build")
	opts.InstallSpace = filepath.Join(t.TempDir(), "install")
	opts.DryRun = true
	opts.Jobs = 1

	if err := runBuild(opts); err != nil {
		t.Fatalf("runBuild() error = %v", err)
	}
	// dry run leaves the filesystem untouched
	if _, err := os.Stat(opts.BuildSpace); !os.IsNotExist(err) {
		t.Error("dry run created the build space")
	}
	if _, err := os.Stat(opts.InstallSpace); !os.IsNotExist(err) {
		t.Error("dry run created the install space")
	}
}

func TestRunBuild_UnknownStartWith(t *testing.T) {
	registry = buildtypes.DefaultRegistry()
	verbosity = "error"

	base := t.TempDir()
	writePackage(t, base, "base", "name: base\nbuild_type: cmake\n")

	opts := types.DefaultWorkspaceOptions()
	opts.BasePath = base
	opts.BuildSpace = filepath.Join(t.TempDir(), "build")
	opts.InstallSpace = filepath.Join(t.TempDir(), "install")
	opts.DryRun = true
	opts.StartWith = "ghost"

	err := runBuild(opts)
	if ExitCode(err) != ExitInvalidConfig {
		t.Errorf("runBuild() error = %v, want unknown-package mapping", err)
	}
}

func TestRunBuild_CycleExitCode(t *testing.T) {
	registry = buildtypes.DefaultRegistry()
	verbosity = "error"

	base := t.TempDir()
	writePackage(t, base, "x", "name: x\nbuild_type: cmake\ndependencies: [y]\n")
	writePackage(t, base, "y", "name: y\nbuild_type: cmake\ndependencies: [x]\n")

	opts := types.DefaultWorkspaceOptions()
	opts.BasePath = base
	opts.BuildSpace = filepath.Join(t.TempDir(), "build")
	opts.InstallSpace = filepath.Join(t.TempDir(), "install")
	opts.DryRun = true

	err := runBuild(opts)
	if ExitCode(err) != ExitCycle {
		t.Errorf("runBuild() error = %v, want cycle mapping", err)
	}
}
