package buildtypes

import (
	"os"
	"path/filepath"

	"github.com/masonry-build/masonry/pkg/buildctx"
)

const keyPythonArgs = "python_args"

// Python handles setuptools packages via setup.py. With symlink install
// enabled it uses develop mode so edits take effect without reinstalling.
type Python struct{}

// NewPython creates the setuptools handler
func NewPython() *Python {
	return &Python{}
}

// Name implements BuildType
func (h *Python) Name() string { return "python" }

// PreprocessArguments extracts the --python-args pass-through group
func (h *Python) PreprocessArguments(args []string) ([]string, map[string]interface{}) {
	remaining, pythonArgs := ExtractArgumentGroup(args, "--python-args")
	return remaining, map[string]interface{}{keyPythonArgs: pythonArgs}
}

// ExtendContext converts the parsed options into context extensions
func (h *Python) ExtendContext(extras map[string]interface{}) (*buildctx.Extender, error) {
	e := buildctx.NewExtender()
	if err := e.Add(keyPythonArgs, stringsFromExtras(extras, keyPythonArgs)); err != nil {
		return nil, err
	}
	return e, nil
}

// OnBuild implements BuildType. setup.py runs from the source space with
// the build output redirected into the package's build space.
func (h *Python) OnBuild(c buildctx.Context) ([]BuildAction, error) {
	cmd := []string{findExecutable("python3"), "setup.py",
		"build", "--build-base", c.String(buildctx.KeyBuildSpace)}
	cmd = append(cmd, c.Strings(keyPythonArgs)...)
	return []BuildAction{
		{
			Title: "create build space",
			Fn: func(c buildctx.Context) error {
				return os.MkdirAll(c.String(buildctx.KeyBuildSpace), 0755)
			},
		},
		{Title: "setup.py build", Cmd: cmd, Cwd: c.String(buildctx.KeySourceSpace)},
	}, nil
}

// OnInstall implements BuildType
func (h *Python) OnInstall(c buildctx.Context) ([]BuildAction, error) {
	installSpace := c.String(buildctx.KeyInstallSpace)

	prepare := BuildAction{
		// setup.py install requires the destination library directory to
		// already be on disk
		Title: "create install space",
		Fn: func(c buildctx.Context) error {
			return os.MkdirAll(filepath.Join(c.String(buildctx.KeyInstallSpace), "bin"), 0755)
		},
	}

	var install BuildAction
	if c.Bool(buildctx.KeySymlinkInstall) {
		install = BuildAction{
			Title: "setup.py develop",
			Cmd: append([]string{findExecutable("python3"), "setup.py",
				"develop", "--prefix", installSpace, "--no-deps"},
				c.Strings(keyPythonArgs)...),
			Cwd: c.String(buildctx.KeySourceSpace),
		}
	} else {
		install = BuildAction{
			Title: "setup.py install",
			Cmd: append([]string{findExecutable("python3"), "setup.py",
				"install", "--prefix", installSpace, "--single-version-externally-managed",
				"--record", filepath.Join(c.String(buildctx.KeyBuildSpace), "install.log")},
				c.Strings(keyPythonArgs)...),
			Cwd: c.String(buildctx.KeySourceSpace),
		}
	}
	return []BuildAction{prepare, install}, nil
}
