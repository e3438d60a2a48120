// Package buildtypes defines the build-type handler contract, the
// BuildAction unit of work, and the registry dispatching packages to the
// handler matching their declared build type.
package buildtypes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/masonry-build/masonry/pkg/buildctx"
)

// BuildAction is one schedulable unit of build or install work: either an
// external command or a functor, with an optional distinct dry-run
// substitute. Producing a BuildAction must have no side effects; only the
// executor runs them.
type BuildAction struct {
	// Title describes the action in logs. Derived from the unit of work
	// when empty.
	Title string

	// Cmd is the argument vector of a command action.
	Cmd []string
	// Fn is the functor of a function action. Exactly one of Cmd and Fn
	// must be set.
	Fn func(c buildctx.Context) error

	// DryRunCmd and DryRunFn replace the primary unit of work in dry-run
	// mode. When both are nil the dry-run behavior is "do nothing".
	DryRunCmd []string
	DryRunFn  func(c buildctx.Context) error

	// Cwd is the working directory for command actions. Defaults to the
	// context's build space.
	Cwd string
	// Env holds extra KEY=VALUE pairs appended to the command environment.
	Env []string
}

// ContractViolationError reports a handler producing an action that
// breaks the BuildAction invariants. This is a programming error in the
// handler, surfaced loudly because it silently breaks dry-run guarantees.
type ContractViolationError struct {
	BuildType string
	Reason    string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("build type '%s' violates the action contract: %s",
		e.BuildType, e.Reason)
}

// Validate checks the exactly-one-unit-of-work invariant
func (a *BuildAction) Validate(buildType string) error {
	if a.Cmd != nil && a.Fn != nil {
		return &ContractViolationError{BuildType: buildType,
			Reason: "action has both a command and a functor"}
	}
	if a.Cmd == nil && a.Fn == nil {
		return &ContractViolationError{BuildType: buildType,
			Reason: "action has neither a command nor a functor"}
	}
	if a.Cmd != nil && len(a.Cmd) == 0 {
		return &ContractViolationError{BuildType: buildType,
			Reason: "action has an empty command vector"}
	}
	if a.DryRunCmd != nil && a.DryRunFn != nil {
		return &ContractViolationError{BuildType: buildType,
			Reason: "action has both a dry-run command and a dry-run functor"}
	}
	if a.DryRunCmd != nil && len(a.DryRunCmd) == 0 {
		return &ContractViolationError{BuildType: buildType,
			Reason: "action has an empty dry-run command vector"}
	}
	return nil
}

// DeriveTitle returns the explicit title or a description of the unit of work
func (a *BuildAction) DeriveTitle() string {
	if a.Title != "" {
		return a.Title
	}
	if a.Cmd != nil {
		return strings.Join(a.Cmd, " ")
	}
	return "<function>"
}

// BuildType is the handler contract for one build mechanism. OnBuild and
// OnInstall return the action sequence for their stage; recomputing from
// the same context yields the same sequence. A handler with no work for a
// stage returns an empty sequence.
type BuildType interface {
	// Name is the build-type identifier matched against package manifests
	Name() string
	OnBuild(c buildctx.Context) ([]BuildAction, error)
	OnInstall(c buildctx.Context) ([]BuildAction, error)
}

// ArgumentPreparer lets a handler register its options once per command
// invocation, before the package set is known.
type ArgumentPreparer interface {
	PrepareArguments(fs *pflag.FlagSet)
}

// ArgumentPreprocessor lets a handler pull out argument groups a generic
// parser cannot express, e.g. everything after --cmake-args. It returns
// the remaining arguments and the extracted values keyed by option name.
type ArgumentPreprocessor interface {
	PreprocessArguments(args []string) (remaining []string, extras map[string]interface{})
}

// ContextExtending lets a handler convert its parsed options and extras
// into context extensions applied over the workspace defaults.
type ContextExtending interface {
	ExtendContext(extras map[string]interface{}) (*buildctx.Extender, error)
}

// MissingHandlerError reports a build type with no registered handler
type MissingHandlerError struct {
	BuildType string
}

func (e *MissingHandlerError) Error() string {
	return fmt.Sprintf("no build type handler registered for '%s'", e.BuildType)
}

// Registry resolves build-type identifiers to handlers. Handlers are
// registered once at startup and resolved once at descriptor-load time.
type Registry struct {
	handlers map[string]BuildType
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]BuildType{}}
}

// Register adds a handler, failing on duplicate names
func (r *Registry) Register(bt BuildType) error {
	if _, ok := r.handlers[bt.Name()]; ok {
		return fmt.Errorf("build type '%s' is already registered", bt.Name())
	}
	r.handlers[bt.Name()] = bt
	return nil
}

// Get returns the handler for the given build type
func (r *Registry) Get(buildType string) (BuildType, error) {
	bt, ok := r.handlers[buildType]
	if !ok {
		return nil, &MissingHandlerError{BuildType: buildType}
	}
	return bt, nil
}

// Names returns the registered build type identifiers, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with the built-in handlers. The two
// CMake variants share one instance so the common flags bind once.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	cmake := NewCMake()
	for _, bt := range []BuildType{cmake, &CMakePkg{CMake: cmake}, NewPython()} {
		// built-in names cannot collide
		_ = r.Register(bt)
	}
	return r
}
