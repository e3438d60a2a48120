package buildtypes

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Context keys private to the CMake handlers, namespaced to avoid
// colliding with workspace defaults or other handlers.
const (
	keyCMakeArgs      = "cmake_args"
	keyForceConfigure = "force_cmake_configure"
)

const cmakeConfigCacheName = "masonry_cmake_config.json"

func findExecutable(name string) string {
	path, err := exec.LookPath(name)
	if err != nil {
		return name // let the executor report the spawn failure
	}
	return path
}

func makefileExistsAt(buildSpace string) bool {
	_, err := os.Stat(filepath.Join(buildSpace, "Makefile"))
	return err == nil
}

func cmakeCacheExistsAt(buildSpace string) bool {
	_, err := os.Stat(filepath.Join(buildSpace, "CMakeCache.txt"))
	return err == nil
}

// hasMakeTarget reports whether the generated Makefile exposes the named
// target. Read-only probe, safe during action production.
func hasMakeTarget(buildSpace, target string) bool {
	data, err := os.ReadFile(filepath.Join(buildSpace, "Makefile"))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, target+":") {
			return true
		}
	}
	return false
}

// cmakeConfig is the configure-relevant state cached between invocations
// so changed arguments trigger a reconfigure.
type cmakeConfig struct {
	CMakeArgs      []string `json:"cmake_args"`
	SymlinkInstall bool     `json:"symlink_install"`
	InstallSpace   string   `json:"install_space"`
}

func readCachedCMakeConfig(buildSpace string) (cmakeConfig, bool) {
	data, err := os.ReadFile(filepath.Join(buildSpace, cmakeConfigCacheName))
	if err != nil {
		return cmakeConfig{}, false
	}
	var cfg cmakeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cmakeConfig{}, false
	}
	return cfg, true
}

func writeCachedCMakeConfig(buildSpace string, cfg cmakeConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(buildSpace, cmakeConfigCacheName), data, 0644)
}

func (c cmakeConfig) equal(other cmakeConfig) bool {
	if c.SymlinkInstall != other.SymlinkInstall || c.InstallSpace != other.InstallSpace {
		return false
	}
	if len(c.CMakeArgs) != len(other.CMakeArgs) {
		return false
	}
	for i := range c.CMakeArgs {
		if c.CMakeArgs[i] != other.CMakeArgs[i] {
			return false
		}
	}
	return true
}

// dependencyEnv renders the CMAKE_PREFIX_PATH entry exposing the install
// prefixes of the package's in-workspace dependencies.
func dependencyEnv(deps []string) []string {
	if len(deps) == 0 {
		return nil
	}
	prefix := strings.Join(deps, string(os.PathListSeparator))
	if existing := os.Getenv("CMAKE_PREFIX_PATH"); existing != "" {
		prefix = prefix + string(os.PathListSeparator) + existing
	}
	return []string{"CMAKE_PREFIX_PATH=" + prefix}
}
