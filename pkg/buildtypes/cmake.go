package buildtypes

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/masonry-build/masonry/pkg/buildctx"
)

// CMake handles plain CMake packages: configure into the build space,
// make, make install.
type CMake struct {
	forceConfigure bool
}

// NewCMake creates the plain CMake handler
func NewCMake() *CMake {
	return &CMake{}
}

// Name implements BuildType
func (h *CMake) Name() string { return "cmake" }

// PrepareArguments registers the CMake-specific options
func (h *CMake) PrepareArguments(fs *pflag.FlagSet) {
	fs.BoolVar(&h.forceConfigure, "force-cmake-configure", false,
		"Invoke 'cmake' even if it has been executed before")
}

// PreprocessArguments extracts the --cmake-args pass-through group, which
// a flag parser cannot express because it swallows dashed options.
func (h *CMake) PreprocessArguments(args []string) ([]string, map[string]interface{}) {
	remaining, cmakeArgs := ExtractArgumentGroup(args, "--cmake-args")
	return remaining, map[string]interface{}{keyCMakeArgs: cmakeArgs}
}

// ExtendContext converts the parsed options into context extensions
func (h *CMake) ExtendContext(extras map[string]interface{}) (*buildctx.Extender, error) {
	e := buildctx.NewExtender()
	if err := e.Add(keyCMakeArgs, stringsFromExtras(extras, keyCMakeArgs)); err != nil {
		return nil, err
	}
	if err := e.Add(keyForceConfigure, h.forceConfigure); err != nil {
		return nil, err
	}
	return e, nil
}

// OnBuild implements BuildType
func (h *CMake) OnBuild(c buildctx.Context) ([]BuildAction, error) {
	buildSpace := c.String(buildctx.KeyBuildSpace)
	cmakeArgs := c.Strings(keyCMakeArgs)
	env := dependencyEnv(c.Strings(buildctx.KeyBuildDependencies))

	config := cmakeConfig{
		CMakeArgs:      cmakeArgs,
		SymlinkInstall: c.Bool(buildctx.KeySymlinkInstall),
		InstallSpace:   c.String(buildctx.KeyInstallSpace),
	}
	shouldConfigure := c.Bool(keyForceConfigure) ||
		!makefileExistsAt(buildSpace) ||
		!cmakeCacheExistsAt(buildSpace)
	if cached, ok := readCachedCMakeConfig(buildSpace); !ok || !cached.equal(config) {
		shouldConfigure = true
	}

	actions := []BuildAction{
		{
			Title: "create build space",
			Fn: func(c buildctx.Context) error {
				return os.MkdirAll(c.String(buildctx.KeyBuildSpace), 0755)
			},
		},
	}

	if shouldConfigure {
		cmd := []string{findExecutable("cmake"), c.String(buildctx.KeySourceSpace)}
		cmd = append(cmd, cmakeArgs...)
		cmd = append(cmd, "-DCMAKE_INSTALL_PREFIX="+c.String(buildctx.KeyInstallSpace))
		actions = append(actions,
			BuildAction{Title: "cmake configure", Cmd: cmd, Env: env},
			BuildAction{
				Title: "cache cmake configuration",
				Fn: func(c buildctx.Context) error {
					return writeCachedCMakeConfig(c.String(buildctx.KeyBuildSpace), config)
				},
			},
		)
	} else {
		actions = append(actions, BuildAction{
			Title: "check cmake build system",
			Cmd:   []string{findExecutable("make"), "cmake_check_build_system"},
			Env:   env,
		})
	}

	makeCmd := []string{findExecutable("make")}
	makeCmd = append(makeCmd, c.Strings(buildctx.KeyMakeFlags)...)
	actions = append(actions, BuildAction{Title: "make", Cmd: makeCmd, Env: env})

	return actions, nil
}

// OnInstall implements BuildType
func (h *CMake) OnInstall(c buildctx.Context) ([]BuildAction, error) {
	buildSpace := c.String(buildctx.KeyBuildSpace)
	// Nothing to install when the generated build system exposes no
	// install target. In dry-run mode the build system may not exist yet,
	// so assume it would.
	if !c.Bool(buildctx.KeyDryRun) &&
		makefileExistsAt(buildSpace) && !hasMakeTarget(buildSpace, "install") {
		return nil, nil
	}
	return []BuildAction{
		{
			Title: "make install",
			Cmd:   []string{findExecutable("make"), "install"},
			Env:   dependencyEnv(c.Strings(buildctx.KeyBuildDependencies)),
		},
	}, nil
}
