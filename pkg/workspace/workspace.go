// Package workspace discovers packages in a source tree by locating
// package.yaml manifests and parsing them into descriptors.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/masonry-build/masonry/pkg/logger"
	"github.com/masonry-build/masonry/pkg/types"
)

// ManifestName is the file marking a directory as a package root
const ManifestName = "package.yaml"

// IgnoreMarker excludes a directory and everything below it from discovery
const IgnoreMarker = "MASONRY_IGNORE"

// ManifestError reports a manifest that exists but cannot be used
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// ParseManifest reads and validates one package.yaml
func ParseManifest(path string) (*types.PackageDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	var desc types.PackageDescriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	if err := desc.Validate(); err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	return &desc, nil
}

// Discover walks basePath and returns the descriptors of all packages
// found, sorted by name. Directories below a package root are not
// searched, so packages do not nest. A manifest that fails to parse is
// reported as a warning and its directory skipped; discovery continues.
func Discover(basePath string, log logger.Logger) ([]*types.PackageDescriptor, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("workspace base path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace base path %s is not a directory", basePath)
	}

	var found []*types.PackageDescriptor
	err = filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != basePath && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if _, err := os.Stat(filepath.Join(path, IgnoreMarker)); err == nil {
			return filepath.SkipDir
		}

		manifest := filepath.Join(path, ManifestName)
		if _, err := os.Stat(manifest); err != nil {
			return nil
		}

		desc, err := ParseManifest(manifest)
		if err != nil {
			log.Warn("ignoring unusable package manifest",
				logger.WithField("manifest", manifest),
				logger.WithField("error", err))
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(basePath, path)
		if err != nil {
			return err
		}
		desc.Path = rel
		found = append(found, desc)
		log.Debug("discovered package",
			logger.WithField("package", desc.Name),
			logger.WithField("path", rel))
		return filepath.SkipDir
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}
