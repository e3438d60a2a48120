// Package orchestrator drives a workspace build: it walks the packages in
// dependency order, constructs each package's build and install contexts,
// asks the registered build-type handler for actions and runs them, with
// bounded parallelism across independent packages.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/masonry-build/masonry/pkg/buildctx"
	"github.com/masonry-build/masonry/pkg/buildtypes"
	"github.com/masonry-build/masonry/pkg/executor"
	"github.com/masonry-build/masonry/pkg/graph"
	"github.com/masonry-build/masonry/pkg/logger"
	"github.com/masonry-build/masonry/pkg/trace"
	"github.com/masonry-build/masonry/pkg/types"
)

// Notifier receives the workspace-level outcome, e.g. for desktop
// notifications. Optional.
type Notifier interface {
	NotifyWorkspaceSuccess(packages int)
	NotifyWorkspaceFailure(failed []string)
}

// Result aggregates the outcome of one workspace run
type Result struct {
	RunID    string
	Statuses map[string]types.BuildStatus
	// Failed lists packages that failed directly, in build order
	Failed []string
	// Skipped lists packages never attempted, either because a dependency
	// failed or because the run was aborted, in build order
	Skipped []string
	// Success is true iff every attempted package reached its terminal
	// success state and nothing was left unattempted
	Success bool
}

// Orchestrator coordinates one workspace build invocation
type Orchestrator struct {
	graph    *graph.Graph
	registry *buildtypes.Registry
	exec     *executor.Executor
	log      logger.Logger
	notifier Notifier
	opts     types.WorkspaceOptions

	handlers  map[string]buildtypes.BuildType
	extenders map[string]*buildctx.Extender

	mu       sync.Mutex
	statuses map[string]types.BuildStatus

	// installMu serializes install stages into a shared install prefix
	installMu sync.Mutex
}

// New creates an Orchestrator. The notifier may be nil.
func New(g *graph.Graph, registry *buildtypes.Registry, exec *executor.Executor,
	log logger.Logger, notifier Notifier, opts types.WorkspaceOptions) *Orchestrator {
	return &Orchestrator{
		graph:    g,
		registry: registry,
		exec:     exec,
		log:      log,
		notifier: notifier,
		opts:     opts,
	}
}

// Run executes the workspace build. Configuration-level problems (bad
// order restriction, missing handler, failing context extension) are
// returned as an error before any package is touched; per-package
// failures are recorded in the Result instead.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	order, err := o.graph.TopologicalOrder(graph.OrderOptions{
		StartWith: o.opts.StartWith,
		EndWith:   o.opts.EndWith,
		Only:      o.opts.OnlyPackage,
		Skip:      o.opts.SkipPackages,
	})
	if err != nil {
		return nil, err
	}

	if err := o.resolveHandlers(order); err != nil {
		return nil, err
	}

	runID := trace.NewRunID()
	ctx = trace.WithRunID(ctx, runID)
	o.log.Info("starting workspace build",
		logger.WithField("run_id", runID),
		logger.WithField("packages", len(order)),
		logger.WithField("jobs", o.opts.Jobs))
	o.log.Info("topological order: " + strings.Join(order, ", "))

	o.statuses = make(map[string]types.BuildStatus, len(order))
	for _, name := range order {
		o.statuses[name] = types.StatusPending
	}

	o.schedule(ctx, order)

	result := o.collectResult(runID, order, ctx.Err() == nil)
	o.report(result)
	if o.notifier != nil {
		if result.Success {
			o.notifier.NotifyWorkspaceSuccess(len(order))
		} else {
			o.notifier.NotifyWorkspaceFailure(result.Failed)
		}
	}
	return result, nil
}

// resolveHandlers binds every package's build type to a handler and
// resolves each handler's context extensions, once per invocation.
func (o *Orchestrator) resolveHandlers(order []string) error {
	o.handlers = make(map[string]buildtypes.BuildType)
	o.extenders = make(map[string]*buildctx.Extender)
	for _, name := range order {
		desc, err := o.graph.Descriptor(name)
		if err != nil {
			return err
		}
		if _, ok := o.handlers[desc.BuildType]; ok {
			continue
		}
		handler, err := o.registry.Get(desc.BuildType)
		if err != nil {
			return err
		}
		o.handlers[desc.BuildType] = handler
		if extending, ok := handler.(buildtypes.ContextExtending); ok {
			ext, err := extending.ExtendContext(o.opts.HandlerExtras)
			if err != nil {
				return fmt.Errorf("resolving context extensions for build type '%s': %w",
					desc.BuildType, err)
			}
			o.extenders[desc.BuildType] = ext
		}
	}
	return nil
}

type completion struct {
	name string
	err  error
}

// schedule dispatches packages whose in-order dependencies have finished
// to a bounded worker pool, one scheduler loop feeding completions back.
func (o *Orchestrator) schedule(ctx context.Context, order []string) {
	inOrder := make(map[string]struct{}, len(order))
	for _, name := range order {
		inOrder[name] = struct{}{}
	}
	remaining := make(map[string]int, len(order))
	dependents := make(map[string][]string, len(order))
	for _, name := range order {
		deps, _ := o.graph.DependsOn(name)
		count := 0
		for dep := range deps {
			if _, ok := inOrder[dep]; !ok {
				continue
			}
			count++
			dependents[dep] = append(dependents[dep], name)
		}
		remaining[name] = count
	}

	sg, gctx := newSafeGroup(ctx, o.log)
	jobs := o.opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	// the scheduler loop runs on the calling goroutine and the done
	// channel is buffered, so the group holds workers only
	sg.SetLimit(jobs)

	done := make(chan completion, len(order))
	dispatched := make(map[string]struct{}, len(order))
	launched, finished := 0, 0
	aborted := false

	dispatch := func() {
		for _, name := range order {
			if _, ok := dispatched[name]; ok {
				continue
			}
			if remaining[name] > 0 || o.status(name) != types.StatusPending {
				continue
			}
			dispatched[name] = struct{}{}
			launched++
			pkg := name
			sg.Go(func() error {
				// the completion must reach the scheduler even if the
				// handler panics, or the loop would wait forever
				comp := completion{name: pkg}
				func() {
					defer func() {
						if r := recover(); r != nil {
							o.setStatus(pkg, types.StatusBuildFailed)
							comp.err = fmt.Errorf("build type handler panic: %v", r)
						}
					}()
					comp.err = o.processPackage(gctx, pkg)
				}()
				done <- comp
				return nil
			})
		}
	}

	for {
		if !aborted && gctx.Err() == nil {
			dispatch()
		}
		if launched == finished {
			break
		}
		comp := <-done
		finished++
		if comp.err != nil {
			if o.opts.OnFailure == types.PolicyAbort {
				aborted = true
			} else {
				o.skipDependents(comp.name, dispatched, order)
			}
			continue
		}
		for _, dep := range dependents[comp.name] {
			remaining[dep]--
		}
	}
	_ = sg.Wait()

	// Whatever was never dispatched was never attempted
	for _, name := range order {
		if _, ok := dispatched[name]; !ok {
			o.setStatus(name, types.StatusSkipped)
		}
	}
}

// skipDependents marks every not-yet-dispatched transitive dependent of
// name as skipped so the scheduler never attempts it. Marked packages are
// recorded as dispatched; they produce no completion.
func (o *Orchestrator) skipDependents(name string, dispatched map[string]struct{}, order []string) {
	deps, err := o.graph.Dependents(name)
	if err != nil {
		return
	}
	for _, candidate := range order {
		if _, ok := deps[candidate]; !ok {
			continue
		}
		if _, ok := dispatched[candidate]; ok {
			continue
		}
		dispatched[candidate] = struct{}{}
		o.setStatus(candidate, types.StatusSkipped)
		o.log.Warn("skipping package: dependency failed",
			logger.WithField("package", candidate),
			logger.WithField("failed_dependency", name))
	}
}

// processPackage runs the full per-package pipeline
func (o *Orchestrator) processPackage(ctx context.Context, name string) error {
	ctx = trace.WithPackageName(ctx, name)
	desc, err := o.graph.Descriptor(name)
	if err != nil {
		return err
	}
	log := o.log.WithPackage(name)
	handler := o.handlers[desc.BuildType]

	buildContext, installContext, err := o.makeContexts(desc)
	if err != nil {
		o.setStatus(name, types.StatusBuildFailed)
		log.Error("context construction failed", logger.WithField("error", err))
		return err
	}
	o.setStatus(name, types.StatusContextBuilt)
	log.Debug("context built\n" + buildContext.Describe())

	if !o.opts.SkipBuild {
		o.setStatus(name, types.StatusBuilding)
		log.Info(fmt.Sprintf("+++ building '%s'", name))
		actions, err := handler.OnBuild(buildContext)
		if err == nil {
			_, err = o.exec.Run(ctx, desc.BuildType, actions, buildContext)
		}
		if err != nil {
			o.setStatus(name, types.StatusBuildFailed)
			log.Error("build failed", logger.WithField("error", err))
			return err
		}
	}
	o.setStatus(name, types.StatusBuilt)

	if !o.opts.Install {
		log.Success("build completed")
		return nil
	}

	o.setStatus(name, types.StatusInstalling)
	log.Info(fmt.Sprintf("+++ installing '%s'", name))
	actions, err := handler.OnInstall(installContext)
	if err == nil {
		if !o.opts.Isolated {
			// one shared install prefix: serialize install stages
			o.installMu.Lock()
			_, err = o.exec.Run(ctx, desc.BuildType, actions, installContext)
			o.installMu.Unlock()
		} else {
			_, err = o.exec.Run(ctx, desc.BuildType, actions, installContext)
		}
	}
	if err != nil {
		o.setStatus(name, types.StatusInstallFailed)
		log.Error("install failed", logger.WithField("error", err))
		return err
	}
	o.setStatus(name, types.StatusInstalled)
	log.Success("install completed")
	return nil
}

// makeContexts constructs the build and install contexts for a package.
// Both share the workspace-default layer and the handler's extensions,
// but are separately constructed so neither stage can leak mutations
// into the other.
func (o *Orchestrator) makeContexts(desc *types.PackageDescriptor) (buildctx.Context, buildctx.Context, error) {
	defaults := map[string]interface{}{
		buildctx.KeySourceSpace:       filepath.Join(o.opts.BasePath, desc.Path),
		buildctx.KeyBuildSpace:        filepath.Join(o.opts.BuildSpace, desc.Name),
		buildctx.KeyInstallSpace:      o.installSpaceFor(desc.Name),
		buildctx.KeyPackageManifest:   desc,
		buildctx.KeyInstall:           o.opts.Install,
		buildctx.KeyIsolatedInstall:   o.opts.Isolated,
		buildctx.KeySymlinkInstall:    o.opts.SymlinkInstall,
		buildctx.KeyDryRun:            o.opts.DryRun,
		buildctx.KeyMakeFlags:         o.opts.MakeFlags,
		buildctx.KeyBuildDependencies: o.dependencyPrefixes(desc.Name),
	}
	base := buildctx.New(defaults)

	ext := o.extenders[desc.BuildType]
	if ext == nil {
		return base, buildctx.New(defaults), nil
	}
	buildContext, err := ext.ApplyTo(base)
	if err != nil {
		return buildctx.Context{}, buildctx.Context{}, err
	}
	installContext, err := ext.ApplyTo(base)
	if err != nil {
		return buildctx.Context{}, buildctx.Context{}, err
	}
	return buildContext, installContext, nil
}

func (o *Orchestrator) installSpaceFor(name string) string {
	if o.opts.Isolated {
		return filepath.Join(o.opts.InstallSpace, name)
	}
	return o.opts.InstallSpace
}

// dependencyPrefixes returns the install prefixes providing the package's
// transitive in-workspace dependencies, deterministic order.
func (o *Orchestrator) dependencyPrefixes(name string) []string {
	deps, err := o.graph.DependsOn(name)
	if err != nil || len(deps) == 0 {
		return nil
	}
	if !o.opts.Isolated {
		return []string{o.opts.InstallSpace}
	}
	names := make([]string, 0, len(deps))
	for dep := range deps {
		names = append(names, dep)
	}
	sort.Strings(names)
	prefixes := make([]string, 0, len(names))
	for _, dep := range names {
		prefixes = append(prefixes, filepath.Join(o.opts.InstallSpace, dep))
	}
	return prefixes
}

func (o *Orchestrator) status(name string) types.BuildStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statuses[name]
}

func (o *Orchestrator) setStatus(name string, status types.BuildStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses[name] = status
}

func (o *Orchestrator) collectResult(runID string, order []string, completed bool) *Result {
	o.mu.Lock()
	defer o.mu.Unlock()

	result := &Result{
		RunID:    runID,
		Statuses: make(map[string]types.BuildStatus, len(order)),
	}
	for _, name := range order {
		status := o.statuses[name]
		result.Statuses[name] = status
		switch {
		case status.Failed():
			result.Failed = append(result.Failed, name)
		case status == types.StatusSkipped:
			result.Skipped = append(result.Skipped, name)
		}
	}
	result.Success = completed && len(result.Failed) == 0 && len(result.Skipped) == 0
	return result
}

func (o *Orchestrator) report(result *Result) {
	if result.Success {
		o.log.Success("workspace build completed",
			logger.WithField("run_id", result.RunID),
			logger.WithField("packages", len(result.Statuses)))
		return
	}
	if len(result.Failed) > 0 {
		o.log.Error("packages failed: " + strings.Join(result.Failed, ", "))
	}
	if len(result.Skipped) > 0 {
		o.log.Warn("packages skipped (never attempted): " + strings.Join(result.Skipped, ", "))
	}
}
