package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/masonry-build/masonry/pkg/graph"
	"github.com/masonry-build/masonry/pkg/logger"
)

func newListPackagesCmd() *cobra.Command {
	var basePath string
	var dependsOn string

	cmd := &cobra.Command{
		Use:   "list-packages",
		Short: "List workspace packages in topological order",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.CreateLogger("", verbosity)
			g, err := loadGraph(basePath, log)
			if err != nil {
				return err
			}
			order, err := g.TopologicalOrder(graph.OrderOptions{})
			if err != nil {
				return err
			}

			if dependsOn == "" {
				for _, name := range order {
					fmt.Println(name)
				}
				return nil
			}

			dependents, err := g.Dependents(dependsOn)
			if err != nil {
				return err
			}
			for _, name := range order {
				if _, ok := dependents[name]; ok {
					fmt.Println(name)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&basePath, "base-path", "src", "directory searched for packages")
	cmd.Flags().StringVar(&dependsOn, "depends-on", "",
		"list only packages that transitively depend on this one")
	return cmd
}

func newListDependenciesCmd() *cobra.Command {
	var basePath string

	cmd := &cobra.Command{
		Use:   "list-dependencies NAME",
		Short: "List a package's transitive dependencies in topological order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.CreateLogger("", verbosity)
			g, err := loadGraph(basePath, log)
			if err != nil {
				return err
			}
			deps, err := g.DependsOn(args[0])
			if err != nil {
				return err
			}
			order, err := g.TopologicalOrder(graph.OrderOptions{})
			if err != nil {
				return err
			}
			for _, name := range order {
				if _, ok := deps[name]; ok {
					fmt.Println(name)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&basePath, "base-path", "src", "directory searched for packages")
	return cmd
}
