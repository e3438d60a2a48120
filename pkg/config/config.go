// Package config resolves the workspace configuration from flags,
// environment variables and an optional masonry.yaml, in that precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/masonry-build/masonry/pkg/types"
)

// InvalidConfigError distinguishes configuration mistakes from runtime
// failures so the CLI can map them to their own exit code.
type InvalidConfigError struct {
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

func invalidf(format string, args ...interface{}) error {
	return &InvalidConfigError{Reason: fmt.Sprintf(format, args...)}
}

// New creates a viper instance with masonry defaults, the MASONRY_
// environment prefix and masonry.yaml lookup in the current directory.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("masonry")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MASONRY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := types.DefaultWorkspaceOptions()
	v.SetDefault("base-path", defaults.BasePath)
	v.SetDefault("build-space", "")
	v.SetDefault("install-space", "")
	v.SetDefault("install", defaults.Install)
	v.SetDefault("skip-build", false)
	v.SetDefault("isolated", false)
	v.SetDefault("symlink-install", false)
	v.SetDefault("dry-run", false)
	v.SetDefault("notify", false)
	v.SetDefault("jobs", defaults.Jobs)
	v.SetDefault("make-flags", []string{})
	v.SetDefault("start-with", "")
	v.SetDefault("end-with", "")
	v.SetDefault("only-package", "")
	v.SetDefault("skip-packages", []string{})
	v.SetDefault("on-failure", string(defaults.OnFailure))
	return v
}

// Read loads the configuration file. An explicitly named file must exist;
// the default masonry.yaml is optional.
func Read(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return invalidf("reading %s: %v", cfgFile, err)
		}
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return invalidf("reading config file: %v", err)
	}
	return nil
}

// Options extracts validated workspace options from the resolved
// configuration. Build and install spaces default to build/install, or
// build_isolated/install_isolated in isolated mode.
func Options(v *viper.Viper) (types.WorkspaceOptions, error) {
	opts := types.DefaultWorkspaceOptions()
	opts.BasePath = v.GetString("base-path")
	opts.BuildSpace = v.GetString("build-space")
	opts.InstallSpace = v.GetString("install-space")
	opts.Install = v.GetBool("install")
	opts.SkipBuild = v.GetBool("skip-build")
	opts.Isolated = v.GetBool("isolated")
	opts.SymlinkInstall = v.GetBool("symlink-install")
	opts.DryRun = v.GetBool("dry-run")
	opts.Notify = v.GetBool("notify")
	opts.Jobs = v.GetInt("jobs")
	opts.MakeFlags = v.GetStringSlice("make-flags")
	opts.StartWith = v.GetString("start-with")
	opts.EndWith = v.GetString("end-with")
	opts.OnlyPackage = v.GetString("only-package")
	opts.SkipPackages = v.GetStringSlice("skip-packages")
	opts.OnFailure = types.FailurePolicy(v.GetString("on-failure"))

	if opts.BuildSpace == "" {
		opts.BuildSpace = "build"
		if opts.Isolated {
			opts.BuildSpace = "build_isolated"
		}
	}
	if opts.InstallSpace == "" {
		opts.InstallSpace = "install"
		if opts.Isolated {
			opts.InstallSpace = "install_isolated"
		}
	}

	if err := Validate(opts); err != nil {
		return types.WorkspaceOptions{}, err
	}
	return opts, nil
}

// Validate checks cross-option consistency
func Validate(opts types.WorkspaceOptions) error {
	if opts.Jobs < 1 {
		return invalidf("jobs must be at least 1, got %d", opts.Jobs)
	}
	if !opts.OnFailure.Valid() {
		return invalidf("unknown failure policy '%s' (abort, continue-independent)",
			opts.OnFailure)
	}
	if opts.OnlyPackage != "" && (opts.StartWith != "" || opts.EndWith != "") {
		return invalidf("only-package cannot be combined with start-with or end-with")
	}
	for _, skip := range opts.SkipPackages {
		if skip == opts.OnlyPackage && skip != "" {
			return invalidf("package '%s' is both selected and skipped", skip)
		}
	}
	if opts.SkipBuild && !opts.Install {
		return invalidf("skipping both build and install leaves nothing to do")
	}
	return nil
}
