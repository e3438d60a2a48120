package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/masonry-build/masonry/pkg/buildtypes"
	"github.com/masonry-build/masonry/pkg/config"
	"github.com/masonry-build/masonry/pkg/executor"
	"github.com/masonry-build/masonry/pkg/graph"
	"github.com/masonry-build/masonry/pkg/logger"
	"github.com/masonry-build/masonry/pkg/notifier"
	"github.com/masonry-build/masonry/pkg/orchestrator"
	"github.com/masonry-build/masonry/pkg/process"
	"github.com/masonry-build/masonry/pkg/types"
	"github.com/masonry-build/masonry/pkg/workspace"
)

func newBuildCmd() *cobra.Command {
	var skipInstall bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build and install all packages in the workspace",
		Long: `Build discovers packages under the base path, orders them by their
declared dependencies and runs each package's build and install stages.

Arguments after --cmake-args, --python-args or --make-flags are passed
through to the respective tool; terminate a group with a bare '--'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.New()
			if err := config.Read(v, cfgFile); err != nil {
				return err
			}
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if skipInstall {
				v.Set("install", false)
			}
			if len(makeFlags) > 0 {
				v.Set("make-flags", makeFlags)
			}
			opts, err := config.Options(v)
			if err != nil {
				return err
			}
			opts.HandlerExtras = handlerExtras
			return runBuild(opts)
		},
	}

	fs := cmd.Flags()
	fs.String("base-path", "src", "directory searched for packages")
	fs.String("build-space", "", "build output root (default: build, build_isolated with --isolated)")
	fs.String("install-space", "", "install prefix root (default: install, install_isolated with --isolated)")
	fs.Bool("skip-build", false, "skip the build stage, install only")
	fs.BoolVar(&skipInstall, "skip-install", false, "skip the install stage")
	fs.Bool("isolated", false, "install every package into its own prefix")
	fs.Bool("symlink-install", false, "symlink files into the install space instead of copying")
	fs.Bool("dry-run", false, "log the actions without running them")
	fs.Bool("notify", false, "send a desktop notification when the workspace finishes")
	fs.Int("jobs", types.DefaultWorkspaceOptions().Jobs, "maximum packages processed in parallel")
	fs.String("start-with", "", "skip packages ordered before this one")
	fs.String("end-with", "", "stop after this package")
	fs.String("only-package", "", "process only this package and its dependencies")
	fs.StringSlice("skip-packages", nil, "packages to leave out")
	fs.String("on-failure", string(types.PolicyAbort),
		"failure policy: abort or continue-independent")

	// handler-specific options (e.g. --force-cmake-configure)
	for _, name := range registry.Names() {
		bt, err := registry.Get(name)
		if err != nil {
			continue
		}
		if preparer, ok := bt.(buildtypes.ArgumentPreparer); ok {
			preparer.PrepareArguments(fs)
		}
	}
	return cmd
}

func runBuild(opts types.WorkspaceOptions) error {
	log := logger.CreateLogger("", verbosity)

	g, err := loadGraph(opts.BasePath, log)
	if err != nil {
		return err
	}

	selected, err := g.TopologicalOrder(graph.OrderOptions{
		StartWith: opts.StartWith,
		EndWith:   opts.EndWith,
		Only:      opts.OnlyPackage,
		Skip:      opts.SkipPackages,
	})
	if err != nil {
		return err
	}
	printOrder(g, selected)

	pm := process.NewManager(log)
	ctx := pm.Start(context.Background())
	defer pm.Stop()

	orch := orchestrator.New(g, registry, executor.New(log), log,
		notifier.New(opts.Notify, log), opts)
	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	if !result.Success {
		return &PackagesFailedError{Failed: result.Failed, Skipped: result.Skipped}
	}
	return nil
}

// loadGraph discovers the workspace packages and builds their graph
func loadGraph(basePath string, log logger.Logger) (*graph.Graph, error) {
	descriptors, err := workspace.Discover(basePath, log)
	if err != nil {
		return nil, err
	}
	if len(descriptors) == 0 {
		return nil, &config.InvalidConfigError{
			Reason: fmt.Sprintf("no packages found under %s", basePath)}
	}
	return graph.Build(descriptors, graph.Options{})
}

// printOrder shows the full topological order, parenthesizing packages
// excluded from this run.
func printOrder(g *graph.Graph, selected []string) {
	full, err := g.TopologicalOrder(graph.OrderOptions{})
	if err != nil {
		return
	}
	inRun := make(map[string]struct{}, len(selected))
	for _, name := range selected {
		inRun[name] = struct{}{}
	}
	entries := make([]string, 0, len(full))
	for _, name := range full {
		if _, ok := inRun[name]; ok {
			entries = append(entries, name)
		} else {
			entries = append(entries, "("+name+")")
		}
	}
	logger.NewConsoleLogger().Info("topological order: " + strings.Join(entries, " "))
}
