// Package buildctx provides the immutable configuration context handed to
// build-type handlers, and the extender protocol used to modify it.
package buildctx

import (
	"fmt"
	"sort"
	"strings"
)

// Well-known context keys set by the workspace default layer.
const (
	KeySourceSpace       = "source_space"
	KeyBuildSpace        = "build_space"
	KeyInstallSpace      = "install_space"
	KeyPackageManifest   = "package_manifest"
	KeyInstall           = "install"
	KeyIsolatedInstall   = "isolated_install"
	KeySymlinkInstall    = "symbolic_link_install"
	KeyDryRun            = "dry_run"
	KeyMakeFlags         = "make_flags"
	KeyBuildDependencies = "build_dependencies"
)

// Context encapsulates the configuration for one package and one stage.
// It is constructed once and never mutated afterwards; applying an
// Extender yields a new Context.
type Context struct {
	values map[string]interface{}
}

// New creates a Context from the given default values
func New(defaults map[string]interface{}) Context {
	values := make(map[string]interface{}, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	return Context{values: values}
}

// Has reports whether the key is present
func (c Context) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Value returns the raw value for key, or nil
func (c Context) Value(key string) interface{} {
	return c.values[key]
}

// String returns the value for key as a string, or ""
func (c Context) String(key string) string {
	if s, ok := c.values[key].(string); ok {
		return s
	}
	return ""
}

// Bool returns the value for key as a bool, or false
func (c Context) Bool(key string) bool {
	if b, ok := c.values[key].(bool); ok {
		return b
	}
	return false
}

// Strings returns the value for key as a string slice, or nil
func (c Context) Strings(key string) []string {
	if s, ok := c.values[key].([]string); ok {
		return s
	}
	return nil
}

// Keys returns all keys in ascending order
func (c Context) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Describe renders the context as aligned "key => value" lines
func (c Context) Describe() string {
	keys := c.Keys()
	width := 0
	for _, k := range keys {
		if len(k) > width {
			width = len(k)
		}
	}
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%*s => %v", width, k, c.values[k]))
	}
	return strings.Join(lines, "\n")
}

// Op identifies an extension operation
type Op string

const (
	OpAdd     Op = "add"
	OpReplace Op = "replace"
	OpExtend  Op = "extend"
)

// ExtensionError reports a failed extension application
type ExtensionError struct {
	Key    string
	Op     Op
	Reason string
}

func (e *ExtensionError) Error() string {
	return fmt.Sprintf("cannot %s context key '%s': %s", e.Op, e.Key, e.Reason)
}

type extension struct {
	op    Op
	key   string
	value interface{}
}

// Extender records a series of context extensions which can be applied
// later. It decouples a handler's intent from the actual context change,
// so conflicting contributions surface as errors instead of silently
// clobbering workspace defaults or another handler's keys.
type Extender struct {
	extensions []extension
}

// NewExtender creates an empty Extender
func NewExtender() *Extender {
	return &Extender{}
}

// Add records the introduction of a new key. It fails immediately if an
// add for the same key was already recorded, and fails on application if
// the key already exists in the context.
func (e *Extender) Add(key string, value interface{}) error {
	for _, ext := range e.extensions {
		if ext.op == OpAdd && ext.key == key {
			return &ExtensionError{Key: key, Op: OpAdd,
				Reason: "an add extension for this key is already recorded"}
		}
	}
	e.extensions = append(e.extensions, extension{OpAdd, key, value})
	return nil
}

// Replace records the overwrite of an existing key. Application fails if
// the key does not exist.
func (e *Extender) Replace(key string, value interface{}) {
	e.extensions = append(e.extensions, extension{OpReplace, key, value})
}

// Extend records appending to an existing string-slice key. Application
// fails if the key is missing or its value is not a string slice.
func (e *Extender) Extend(key string, value []string) {
	e.extensions = append(e.extensions, extension{OpExtend, key, value})
}

// ApplyTo applies the recorded extensions to the given context in order
// and returns the resulting context. The input context is not modified.
func (e *Extender) ApplyTo(c Context) (Context, error) {
	values := make(map[string]interface{}, len(c.values)+len(e.extensions))
	for k, v := range c.values {
		values[k] = v
	}
	for _, ext := range e.extensions {
		switch ext.op {
		case OpAdd:
			if existing, ok := values[ext.key]; ok {
				return Context{}, &ExtensionError{Key: ext.key, Op: OpAdd,
					Reason: fmt.Sprintf("key already exists with value '%v'", existing)}
			}
			values[ext.key] = ext.value
		case OpReplace:
			if _, ok := values[ext.key]; !ok {
				return Context{}, &ExtensionError{Key: ext.key, Op: OpReplace,
					Reason: "key does not exist"}
			}
			values[ext.key] = ext.value
		case OpExtend:
			existing, ok := values[ext.key]
			if !ok {
				return Context{}, &ExtensionError{Key: ext.key, Op: OpExtend,
					Reason: "key does not exist"}
			}
			slice, ok := existing.([]string)
			if !ok {
				return Context{}, &ExtensionError{Key: ext.key, Op: OpExtend,
					Reason: fmt.Sprintf("existing value of type %T is not a string sequence", existing)}
			}
			extended := make([]string, 0, len(slice)+len(ext.value.([]string)))
			extended = append(extended, slice...)
			extended = append(extended, ext.value.([]string)...)
			values[ext.key] = extended
		}
	}
	return Context{values: values}, nil
}

// Len returns the number of recorded extensions
func (e *Extender) Len() int {
	return len(e.extensions)
}
