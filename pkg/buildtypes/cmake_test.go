package buildtypes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/masonry-build/masonry/pkg/buildctx"
)

func cmakeContext(t *testing.T, overrides map[string]interface{}) buildctx.Context {
	t.Helper()
	values := map[string]interface{}{
		buildctx.KeySourceSpace:  "/ws/src/demo",
		buildctx.KeyBuildSpace:   t.TempDir(),
		buildctx.KeyInstallSpace: "/ws/install",
		keyCMakeArgs:             []string{},
		keyForceConfigure:        false,
	}
	for k, v := range overrides {
		values[k] = v
	}
	return buildctx.New(values)
}

func actionTitles(actions []BuildAction) []string {
	titles := make([]string, len(actions))
	for i := range actions {
		titles[i] = actions[i].Title
	}
	return titles
}

// writeBuildSystem fakes a previously configured build space
func writeBuildSystem(t *testing.T, buildSpace, makefile string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(buildSpace, "Makefile"), []byte(makefile), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(buildSpace, "CMakeCache.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCMakeOnBuild_FreshBuildSpaceConfigures(t *testing.T) {
	c := cmakeContext(t, map[string]interface{}{
		keyCMakeArgs: []string{"-DFOO=1"},
	})
	actions, err := NewCMake().OnBuild(c)
	if err != nil {
		t.Fatalf("OnBuild() error = %v", err)
	}
	want := []string{"create build space", "cmake configure", "cache cmake configuration", "make"}
	got := actionTitles(actions)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("actions = %v, want %v", got, want)
	}

	configure := actions[1].Cmd
	if filepath.Base(configure[0]) != "cmake" || configure[1] != "/ws/src/demo" {
		t.Errorf("configure cmd = %v", configure)
	}
	joined := strings.Join(configure, " ")
	if !strings.Contains(joined, "-DFOO=1") ||
		!strings.Contains(joined, "-DCMAKE_INSTALL_PREFIX=/ws/install") {
		t.Errorf("configure cmd = %v", configure)
	}
}

func TestCMakeOnBuild_ProducesNoSideEffects(t *testing.T) {
	buildSpace := filepath.Join(t.TempDir(), "not-yet-created")
	c := cmakeContext(t, map[string]interface{}{buildctx.KeyBuildSpace: buildSpace})

	if _, err := NewCMake().OnBuild(c); err != nil {
		t.Fatalf("OnBuild() error = %v", err)
	}
	if _, err := os.Stat(buildSpace); !os.IsNotExist(err) {
		t.Error("action production created the build space")
	}
}

func TestCMakeOnBuild_UnchangedConfigurationSkipsConfigure(t *testing.T) {
	c := cmakeContext(t, nil)
	buildSpace := c.String(buildctx.KeyBuildSpace)
	writeBuildSystem(t, buildSpace, "all:\n")
	err := writeCachedCMakeConfig(buildSpace, cmakeConfig{
		CMakeArgs:    []string{},
		InstallSpace: "/ws/install",
	})
	if err != nil {
		t.Fatal(err)
	}

	actions, err := NewCMake().OnBuild(c)
	if err != nil {
		t.Fatalf("OnBuild() error = %v", err)
	}
	want := []string{"create build space", "check cmake build system", "make"}
	if got := actionTitles(actions); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("actions = %v, want %v", got, want)
	}
}

func TestCMakeOnBuild_ChangedArgumentsReconfigure(t *testing.T) {
	c := cmakeContext(t, map[string]interface{}{
		keyCMakeArgs: []string{"-DFOO=2"},
	})
	buildSpace := c.String(buildctx.KeyBuildSpace)
	writeBuildSystem(t, buildSpace, "all:\n")
	err := writeCachedCMakeConfig(buildSpace, cmakeConfig{
		CMakeArgs:    []string{"-DFOO=1"},
		InstallSpace: "/ws/install",
	})
	if err != nil {
		t.Fatal(err)
	}

	actions, err := NewCMake().OnBuild(c)
	if err != nil {
		t.Fatalf("OnBuild() error = %v", err)
	}
	if titles := actionTitles(actions); titles[1] != "cmake configure" {
		t.Errorf("actions = %v, want reconfigure", titles)
	}
}

func TestCMakeOnBuild_ForceConfigure(t *testing.T) {
	c := cmakeContext(t, map[string]interface{}{keyForceConfigure: true})
	buildSpace := c.String(buildctx.KeyBuildSpace)
	writeBuildSystem(t, buildSpace, "all:\n")
	err := writeCachedCMakeConfig(buildSpace, cmakeConfig{
		CMakeArgs:    []string{},
		InstallSpace: "/ws/install",
	})
	if err != nil {
		t.Fatal(err)
	}

	actions, err := NewCMake().OnBuild(c)
	if err != nil {
		t.Fatalf("OnBuild() error = %v", err)
	}
	if titles := actionTitles(actions); titles[1] != "cmake configure" {
		t.Errorf("actions = %v, want forced reconfigure", titles)
	}
}

func TestCMakeOnBuild_MakeFlagsAndDependencyEnv(t *testing.T) {
	c := cmakeContext(t, map[string]interface{}{
		buildctx.KeyMakeFlags:         []string{"-j4"},
		buildctx.KeyBuildDependencies: []string{"/ws/install/dep"},
	})
	actions, err := NewCMake().OnBuild(c)
	if err != nil {
		t.Fatalf("OnBuild() error = %v", err)
	}
	makeAction := actions[len(actions)-1]
	if makeAction.Cmd[len(makeAction.Cmd)-1] != "-j4" {
		t.Errorf("make cmd = %v", makeAction.Cmd)
	}
	if len(makeAction.Env) != 1 || !strings.HasPrefix(makeAction.Env[0], "CMAKE_PREFIX_PATH=/ws/install/dep") {
		t.Errorf("make env = %v", makeAction.Env)
	}
}

func TestCMakeOnInstall(t *testing.T) {
	t.Run("no makefile yet", func(t *testing.T) {
		c := cmakeContext(t, nil)
		actions, err := NewCMake().OnInstall(c)
		if err != nil {
			t.Fatalf("OnInstall() error = %v", err)
		}
		if len(actions) != 1 || actions[0].Title != "make install" {
			t.Errorf("actions = %v", actionTitles(actions))
		}
	})

	t.Run("makefile without install target", func(t *testing.T) {
		c := cmakeContext(t, nil)
		writeBuildSystem(t, c.String(buildctx.KeyBuildSpace), "all:\n\techo ok\n")
		actions, err := NewCMake().OnInstall(c)
		if err != nil {
			t.Fatalf("OnInstall() error = %v", err)
		}
		if len(actions) != 0 {
			t.Errorf("actions = %v, want none", actionTitles(actions))
		}
	})

	t.Run("makefile with install target", func(t *testing.T) {
		c := cmakeContext(t, nil)
		writeBuildSystem(t, c.String(buildctx.KeyBuildSpace), "all:\n\ninstall:\n\techo ok\n")
		actions, err := NewCMake().OnInstall(c)
		if err != nil {
			t.Fatalf("OnInstall() error = %v", err)
		}
		if len(actions) != 1 || actions[0].Title != "make install" {
			t.Errorf("actions = %v", actionTitles(actions))
		}
	})

	t.Run("dry run assumes install target", func(t *testing.T) {
		c := cmakeContext(t, map[string]interface{}{buildctx.KeyDryRun: true})
		writeBuildSystem(t, c.String(buildctx.KeyBuildSpace), "all:\n")
		actions, err := NewCMake().OnInstall(c)
		if err != nil {
			t.Fatalf("OnInstall() error = %v", err)
		}
		if len(actions) != 1 {
			t.Errorf("actions = %v, want make install", actionTitles(actions))
		}
	})
}

func TestCMakePreprocessArguments(t *testing.T) {
	remaining, extras := NewCMake().PreprocessArguments(
		[]string{"build", "--cmake-args", "-DFOO=1", "--", "--jobs", "2"})
	if strings.Join(remaining, " ") != "build --jobs 2" {
		t.Errorf("remaining = %v", remaining)
	}
	args, ok := extras[keyCMakeArgs].([]string)
	if !ok || len(args) != 1 || args[0] != "-DFOO=1" {
		t.Errorf("extras = %v", extras)
	}
}

func TestCMakeExtendContext(t *testing.T) {
	h := NewCMake()
	h.forceConfigure = true
	ext, err := h.ExtendContext(map[string]interface{}{
		keyCMakeArgs: []string{"-DFOO=1"},
	})
	if err != nil {
		t.Fatalf("ExtendContext() error = %v", err)
	}

	base := buildctx.New(map[string]interface{}{
		buildctx.KeyBuildSpace: "/ws/build/demo",
	})
	c, err := ext.ApplyTo(base)
	if err != nil {
		t.Fatalf("ApplyTo() error = %v", err)
	}
	if got := c.Strings(keyCMakeArgs); len(got) != 1 || got[0] != "-DFOO=1" {
		t.Errorf("cmake_args = %v", got)
	}
	if !c.Bool(keyForceConfigure) {
		t.Error("force_cmake_configure not carried into the context")
	}
}
