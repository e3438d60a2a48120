// Package executor runs BuildAction sequences, honoring dry-run mode and
// stopping a sequence on its first failure.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/masonry-build/masonry/pkg/buildctx"
	"github.com/masonry-build/masonry/pkg/buildtypes"
	"github.com/masonry-build/masonry/pkg/logger"
	"github.com/masonry-build/masonry/pkg/trace"
)

const buildLogName = "masonry_build.log"

// outputTailLines bounds how much captured output a failure report carries
const outputTailLines = 30

// ActionResult is the outcome of one executed action
type ActionResult struct {
	Title    string
	OK       bool
	DryRun   bool
	Output   string
	Err      error
	Duration time.Duration
}

// ActionError reports a failed action together with its captured output
type ActionError struct {
	Title  string
	Output string
	Err    error
}

func (e *ActionError) Error() string {
	msg := fmt.Sprintf("action '%s' failed: %v", e.Title, e.Err)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *ActionError) Unwrap() error { return e.Err }

// Executor runs action sequences for one package at a time
type Executor struct {
	logger logger.Logger
}

// New creates an Executor
func New(log logger.Logger) *Executor {
	return &Executor{logger: log}
}

// Run executes the actions in order against the given context. In
// dry-run mode each action's dry-run substitute runs instead of its
// primary unit of work (default: nothing). The sequence stops at the
// first failure; completed results are returned alongside the error.
// Failed actions are not retried and prior actions are not rolled back.
func (e *Executor) Run(ctx context.Context, buildType string,
	actions []buildtypes.BuildAction, c buildctx.Context) ([]ActionResult, error) {

	dryRun := c.Bool(buildctx.KeyDryRun)
	results := make([]ActionResult, 0, len(actions))

	log := e.logger
	if pkg := trace.PackageName(ctx); pkg != "" {
		log = log.WithPackage(pkg)
	}

	logFile := e.openLogFile(ctx, c)
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()

	for _, action := range actions {
		if err := action.Validate(buildType); err != nil {
			return results, err
		}
		result := e.runOne(ctx, log, action, c, dryRun, logFile)
		results = append(results, result)
		if !result.OK {
			return results, &ActionError{
				Title:  result.Title,
				Output: outputTail(result.Output),
				Err:    result.Err,
			}
		}
	}
	return results, nil
}

func (e *Executor) runOne(ctx context.Context, log logger.Logger,
	action buildtypes.BuildAction, c buildctx.Context, dryRun bool,
	logFile *os.File) ActionResult {

	title := action.DeriveTitle()
	start := time.Now()

	cmd := action.Cmd
	fn := action.Fn
	if dryRun {
		cmd = action.DryRunCmd
		fn = action.DryRunFn
		if cmd == nil && fn == nil {
			log.Info("would run: " + title)
			return ActionResult{Title: title, OK: true, DryRun: true}
		}
	}

	var result ActionResult
	switch {
	case cmd != nil:
		result = e.runCommand(ctx, log, title, cmd, action, c, logFile)
	default:
		err := fn(c)
		result = ActionResult{Title: title, OK: err == nil, Err: err}
	}
	result.DryRun = dryRun
	result.Duration = time.Since(start)

	if result.OK {
		log.Debug("action completed",
			logger.WithField("action", title),
			logger.WithField("duration", result.Duration))
	} else {
		log.Error("action failed",
			logger.WithField("action", title),
			logger.WithField("error", result.Err))
	}
	return result
}

func (e *Executor) runCommand(ctx context.Context, log logger.Logger,
	title string, argv []string, action buildtypes.BuildAction,
	c buildctx.Context, logFile *os.File) ActionResult {

	cwd := action.Cwd
	if cwd == "" {
		cwd = c.String(buildctx.KeyBuildSpace)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = cwd
	if len(action.Env) > 0 {
		cmd.Env = append(os.Environ(), action.Env...)
	}

	var outputBuffer bytes.Buffer
	var sink io.Writer = &outputBuffer
	if logFile != nil {
		fmt.Fprintf(logFile, "==> '%s' in '%s'\n", strings.Join(argv, " "), cwd)
		sink = io.MultiWriter(&outputBuffer, logFile)
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	log.Info(fmt.Sprintf("==> '%s' in '%s'", strings.Join(argv, " "), cwd))
	err := cmd.Run()

	return ActionResult{
		Title:  title,
		OK:     err == nil,
		Output: outputBuffer.String(),
		Err:    err,
	}
}

// openLogFile opens the per-package build log in the build space and
// stamps it with the run ID. A missing build space (e.g. dry run) just
// disables file logging.
func (e *Executor) openLogFile(ctx context.Context, c buildctx.Context) *os.File {
	if c.Bool(buildctx.KeyDryRun) {
		return nil
	}
	buildSpace := c.String(buildctx.KeyBuildSpace)
	if buildSpace == "" {
		return nil
	}
	if err := os.MkdirAll(buildSpace, 0755); err != nil {
		e.logger.Warn(fmt.Sprintf("Failed to create build space for log: %v", err))
		return nil
	}
	logPath := filepath.Join(buildSpace, buildLogName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		e.logger.Warn(fmt.Sprintf("Failed to open build log: %v", err))
		return nil
	}
	fmt.Fprintf(f, "=== run %s ===\n", trace.RunID(ctx))
	return f
}

// outputTail returns the last lines of captured output for failure reports
func outputTail(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) <= outputTailLines {
		return strings.TrimRight(output, "\n")
	}
	return strings.Join(lines[len(lines)-outputTailLines:], "\n")
}
