// Package fsutil provides the filesystem operations used while preparing
// repositories: directory resets, recursive copies, placeholder substitution
// and YAML serialization.
//
// All functions assume exclusive access to the paths they touch.
package fsutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"
	"github.com/systmms/provisioner/internal/manifest"
)

// Substitution is one placeholder replacement applied by ReplaceAll.
type Substitution struct {
	Old string
	New string
}

// CreateDir creates path and any missing parents.
func CreateDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// DeleteContents removes every entry inside path but keeps path itself.
// A missing directory is not an error.
func DeleteContents(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(path, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// ResetDir makes sure path exists and is empty.
func ResetDir(path string) error {
	if err := CreateDir(path); err != nil {
		return err
	}
	return DeleteContents(path)
}

// RemoveAll deletes path and everything below it.
func RemoveAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// CopyTree copies src into dst recursively. Existing directories in dst are
// merged and existing files are overwritten.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	err = copy.Copy(src, dst, copy.Options{
		OnDirExists: func(_, _ string) copy.DirExistsAction {
			return copy.Merge
		},
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Shallow
		},
		PermissionControl: copy.PerservePermission,
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// Rename moves oldPath to newPath.
func Rename(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("failed to rename %s: %w", oldPath, err)
	}
	return nil
}

// Replace substitutes every occurrence of old with new, line by line, and
// rewrites the file in place.
func Replace(file, old, new string) error {
	return ReplaceAll(file, []Substitution{{Old: old, New: new}})
}

// ReplaceAll applies subs in order to every line of file.
func ReplaceAll(file string, subs []Substitution) error {
	info, err := os.Stat(file)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", file, err)
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	lines := strings.SplitAfter(string(content), "\n")
	var buf bytes.Buffer
	buf.Grow(len(content))
	for _, line := range lines {
		for _, s := range subs {
			if s.Old == "" {
				continue
			}
			line = strings.ReplaceAll(line, s.Old, s.New)
		}
		buf.WriteString(line)
	}

	if err := os.WriteFile(file, buf.Bytes(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	return nil
}

// SaveYAML serializes doc with the manifest encoder and writes it to path.
func SaveYAML(doc interface{}, path string) error {
	data, err := manifest.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return WriteFile(path, data)
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := CreateDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// KeyFormat replaces every hyphen with an underscore, producing names that are
// valid CI variable and KV keys.
func KeyFormat(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}

// SplitList splits a whitespace separated list.
func SplitList(s string) []string {
	return strings.Fields(s)
}
