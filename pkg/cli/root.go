// Package cli provides the command-line interface for Masonry
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/masonry-build/masonry/pkg/buildtypes"
)

var (
	cfgFile   string
	verbosity string
	version   string

	registry *buildtypes.Registry

	// pass-through argument groups pulled out before cobra parses
	makeFlags     []string
	handlerExtras map[string]interface{}
)

var rootCmd = &cobra.Command{
	Use:   "masonry",
	Short: "Build and install workspace packages in dependency order",
	Long: `Masonry discovers the packages in a source tree, computes a
dependency-respecting build order and builds and installs each package
through its declared build type (cmake, cmake_pkg, python).`,

	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute runs the CLI. Pass-through groups like '--cmake-args ...' are
// extracted up front because a flag parser would swallow their contents.
func Execute(v string) error {
	version = v
	registry = buildtypes.DefaultRegistry()

	args := preprocessArguments(os.Args[1:])
	initializeRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func preprocessArguments(args []string) []string {
	args, makeFlags = buildtypes.ExtractArgumentGroup(args, "--make-flags")

	handlerExtras = map[string]interface{}{}
	for _, name := range registry.Names() {
		bt, err := registry.Get(name)
		if err != nil {
			continue
		}
		pre, ok := bt.(buildtypes.ArgumentPreprocessor)
		if !ok {
			continue
		}
		var extras map[string]interface{}
		args, extras = pre.PreprocessArguments(args)
		for k, v := range extras {
			handlerExtras[k] = v
		}
	}
	return args
}

func initializeRootCommand() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: masonry.yaml)")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info",
		"log level (debug, info, warn, error)")

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newListPackagesCmd())
	rootCmd.AddCommand(newListDependenciesCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("masonry v%s\n", version)
		},
	}
}
