// Package types provides core types and configurations for Masonry
package types

import (
	"fmt"
	"runtime"
)

// BuildStatus represents the per-package state within a workspace run
type BuildStatus string

const (
	StatusPending       BuildStatus = "pending"
	StatusContextBuilt  BuildStatus = "context_built"
	StatusBuilding      BuildStatus = "building"
	StatusBuilt         BuildStatus = "built"
	StatusBuildFailed   BuildStatus = "build_failed"
	StatusInstalling    BuildStatus = "installing"
	StatusInstalled     BuildStatus = "installed"
	StatusInstallFailed BuildStatus = "install_failed"
	StatusSkipped       BuildStatus = "skipped"
)

// Terminal reports whether the status is an end state for a run
func (s BuildStatus) Terminal() bool {
	switch s {
	case StatusBuilt, StatusBuildFailed, StatusInstalled, StatusInstallFailed, StatusSkipped:
		return true
	}
	return false
}

// Failed reports whether the status is a failure end state
func (s BuildStatus) Failed() bool {
	return s == StatusBuildFailed || s == StatusInstallFailed
}

// FailurePolicy controls how the orchestrator reacts to a package failure
type FailurePolicy string

const (
	// PolicyAbort stops processing further packages immediately
	PolicyAbort FailurePolicy = "abort"
	// PolicyContinueIndependent skips only transitive dependents of the
	// failed package and keeps building unrelated packages
	PolicyContinueIndependent FailurePolicy = "continue-independent"
)

// Valid reports whether the policy is a known value
func (p FailurePolicy) Valid() bool {
	return p == PolicyAbort || p == PolicyContinueIndependent
}

// PackageDescriptor identifies one package discovered in the workspace.
// Immutable once loaded from its manifest.
type PackageDescriptor struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	BuildType    string   `yaml:"build_type"`
	Dependencies []string `yaml:"dependencies"`

	// Path is the package source directory, relative to the workspace base
	// path it was discovered under. Not part of the manifest.
	Path string `yaml:"-"`
}

// Validate checks the manifest-derived fields
func (d *PackageDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("package manifest has no name")
	}
	if d.BuildType == "" {
		return fmt.Errorf("package '%s' declares no build type", d.Name)
	}
	return nil
}

func (d *PackageDescriptor) String() string {
	return fmt.Sprintf("%s %s (%s)", d.Name, d.Version, d.BuildType)
}

// WorkspaceOptions is the resolved configuration bundle for one run
type WorkspaceOptions struct {
	BasePath     string
	BuildSpace   string
	InstallSpace string

	Install        bool
	SkipBuild      bool
	Isolated       bool
	SymlinkInstall bool
	DryRun         bool
	Notify         bool

	Jobs      int
	MakeFlags []string

	StartWith    string
	EndWith      string
	OnlyPackage  string
	SkipPackages []string

	OnFailure FailurePolicy

	// HandlerExtras carries options extracted by build-type argument
	// preprocessors (e.g. everything after --cmake-args), keyed by the
	// option name the handler chose.
	HandlerExtras map[string]interface{}
}

// DefaultWorkspaceOptions returns options with workspace-wide defaults applied
func DefaultWorkspaceOptions() WorkspaceOptions {
	return WorkspaceOptions{
		BasePath:      "src",
		Install:       true,
		Jobs:          runtime.NumCPU(),
		OnFailure:     PolicyAbort,
		HandlerExtras: map[string]interface{}{},
	}
}
