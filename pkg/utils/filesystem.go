// Package utils provides filesystem primitives shared by the build-type
// handlers and the workspace layer.
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Exists checks if a path exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDirectory checks if a path is a directory
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// CreateDirectory creates a directory with all parents
func CreateDirectory(path string) error {
	return os.MkdirAll(path, 0755)
}

// RemoveDirectory removes a directory and all contents
func RemoveDirectory(path string) error {
	return os.RemoveAll(path)
}

// CopyFile copies a file from src to dst, creating parent directories
// and preserving the source permissions
func CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	sourceInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, sourceInfo.Mode())
}

// DeployFile places src at dst, either as a copy or as a symlink. An
// existing file at dst is replaced; a stale symlink already pointing at
// src is kept.
func DeployFile(src, dst string, symlink bool) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if info, err := os.Lstat(dst); err == nil {
		if symlink && info.Mode()&os.ModeSymlink != 0 {
			if target, err := os.Readlink(dst); err == nil && target == absSrc {
				return nil
			}
		}
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("replacing '%s': %w", dst, err)
		}
	}
	if symlink {
		return os.Symlink(absSrc, dst)
	}
	return CopyFile(src, dst)
}
