package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/masonry-build/masonry/pkg/config"
	"github.com/masonry-build/masonry/pkg/graph"
	"github.com/masonry-build/masonry/pkg/workspace"
)

// Exit codes reported to the shell
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitInvalidConfig  = 2
	ExitCycle          = 3
	ExitPackagesFailed = 4
)

// PackagesFailedError reports a run in which one or more packages failed
// or were skipped because of a failure.
type PackagesFailedError struct {
	Failed  []string
	Skipped []string
}

func (e *PackagesFailedError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Failed) > 0 {
		parts = append(parts, "failed: "+strings.Join(e.Failed, ", "))
	}
	if len(e.Skipped) > 0 {
		parts = append(parts, "skipped: "+strings.Join(e.Skipped, ", "))
	}
	if len(parts) == 0 {
		return "workspace build did not complete"
	}
	return fmt.Sprintf("workspace build incomplete (%s)", strings.Join(parts, "; "))
}

// ExitCode maps an Execute error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cycle *graph.CycleError
	if errors.As(err, &cycle) {
		return ExitCycle
	}

	var packagesFailed *PackagesFailedError
	if errors.As(err, &packagesFailed) {
		return ExitPackagesFailed
	}

	var invalid *config.InvalidConfigError
	var unknownPkg *graph.UnknownPackageError
	var unknownDep *graph.UnknownDependencyError
	var duplicate *graph.DuplicatePackageError
	var badRange *graph.InconsistentRangeError
	var manifest *workspace.ManifestError
	if errors.As(err, &invalid) || errors.As(err, &unknownPkg) ||
		errors.As(err, &unknownDep) || errors.As(err, &duplicate) ||
		errors.As(err, &badRange) || errors.As(err, &manifest) {
		return ExitInvalidConfig
	}

	return ExitFailure
}
