package buildtypes

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/masonry-build/masonry/pkg/buildctx"
	"github.com/masonry-build/masonry/pkg/types"
	"github.com/masonry-build/masonry/pkg/utils"
)

// markerIndexPath is where installed packages register themselves so
// dependents and tooling can enumerate what a prefix provides.
const markerIndexPath = "share/masonry_index/packages"

// CMakePkg handles CMake packages that additionally deploy workspace
// environment hooks and a package marker into the install space. It is
// the default build type for packages that participate in prefix chaining.
type CMakePkg struct {
	*CMake
}

// NewCMakePkg creates the hook-deploying CMake handler
func NewCMakePkg() *CMakePkg {
	return &CMakePkg{CMake: NewCMake()}
}

// Name implements BuildType
func (h *CMakePkg) Name() string { return "cmake_pkg" }

// PrepareArguments defers to the plain CMake options. Both handlers share
// one CMake instance (see DefaultRegistry), so the flag binds once.
func (h *CMakePkg) PrepareArguments(fs *pflag.FlagSet) {
	if fs.Lookup("force-cmake-configure") == nil {
		h.CMake.PrepareArguments(fs)
	}
}

// PreprocessArguments is a no-op: the shared plain CMake handler already
// extracts the --cmake-args group for both handlers.
func (h *CMakePkg) PreprocessArguments(args []string) ([]string, map[string]interface{}) {
	return args, nil
}

// OnInstall runs the CMake install step and then deploys the package
// marker and the environment hook for dependents.
func (h *CMakePkg) OnInstall(c buildctx.Context) ([]BuildAction, error) {
	actions, err := h.CMake.OnInstall(c)
	if err != nil {
		return nil, err
	}

	manifest, ok := c.Value(buildctx.KeyPackageManifest).(*types.PackageDescriptor)
	if !ok {
		return nil, &ContractViolationError{BuildType: h.Name(),
			Reason: "context carries no package manifest"}
	}
	pkgName := manifest.Name

	actions = append(actions,
		BuildAction{
			Title: "create package marker",
			Fn: func(c buildctx.Context) error {
				markerDir := filepath.Join(c.String(buildctx.KeyInstallSpace), markerIndexPath)
				if err := os.MkdirAll(markerDir, 0755); err != nil {
					return err
				}
				return os.WriteFile(filepath.Join(markerDir, pkgName), nil, 0644)
			},
		},
		BuildAction{
			Title: "deploy environment hook",
			Fn: func(c buildctx.Context) error {
				return deployEnvironmentHook(c, pkgName)
			},
		},
	)
	return actions, nil
}

// deployEnvironmentHook generates local_setup.sh in the build space and
// copies or symlinks it into share/<pkg>/ under the install space.
func deployEnvironmentHook(c buildctx.Context, pkgName string) error {
	installSpace := c.String(buildctx.KeyInstallSpace)
	hook := fmt.Sprintf(`#!/usr/bin/env sh
# generated by masonry, do not edit
export PATH="%[1]s/bin:$PATH"
export LD_LIBRARY_PATH="%[1]s/lib:$LD_LIBRARY_PATH"
export CMAKE_PREFIX_PATH="%[1]s:$CMAKE_PREFIX_PATH"
`, installSpace)

	src := filepath.Join(c.String(buildctx.KeyBuildSpace), "local_setup.sh")
	if err := os.WriteFile(src, []byte(hook), 0755); err != nil {
		return err
	}
	dst := filepath.Join(installSpace, "share", pkgName, "local_setup.sh")
	return utils.DeployFile(src, dst, c.Bool(buildctx.KeySymlinkInstall))
}
