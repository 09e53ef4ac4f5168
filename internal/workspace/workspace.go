// Package workspace owns the managed source and output directories.
//
// The layout is created once at startup; the protocol only ever writes plain
// files under src/ and the compiler writes artifacts under out/. Filenames
// arriving over the wire are restricted to bare names so a client cannot
// escape the managed tree.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Workspace is a managed directory tree:
//
//	<root>/src   incoming source files
//	<root>/out   compiler artifacts
//	<root>/tmp   scratch space
type Workspace struct {
	root string
}

func New(root string) *Workspace {
	return &Workspace{root: strings.TrimSpace(root)}
}

func (w *Workspace) Root() string      { return w.root }
func (w *Workspace) SourceDir() string { return filepath.Join(w.root, "src") }
func (w *Workspace) OutputDir() string { return filepath.Join(w.root, "out") }
func (w *Workspace) TempDir() string   { return filepath.Join(w.root, "tmp") }

// EnsureLayout creates the managed directories.
func (w *Workspace) EnsureLayout() error {
	if w.root == "" {
		return fmt.Errorf("workspace root is empty")
	}
	for _, dir := range []string{w.root, w.SourceDir(), w.OutputDir(), w.TempDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSource stores data verbatim under src/<filename> and returns the
// absolute path.
func (w *Workspace) WriteSource(filename string, data []byte) (string, error) {
	if err := validateFilename(filename); err != nil {
		return "", err
	}
	path := filepath.Join(w.SourceDir(), filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write source %s: %w", filename, err)
	}
	return path, nil
}

// SourcePath resolves a filename inside the managed source directory.
func (w *Workspace) SourcePath(filename string) (string, error) {
	if err := validateFilename(filename); err != nil {
		return "", err
	}
	return filepath.Join(w.SourceDir(), filename), nil
}

// SourceExists reports whether src/<filename> is a regular file.
func (w *Workspace) SourceExists(filename string) bool {
	path, err := w.SourcePath(filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Sweep deletes artifacts under out/ older than maxAge whose workspace-
// relative path matches one of the doublestar patterns. It returns the
// number of files removed. Directories are left in place.
func (w *Workspace) Sweep(maxAge time.Duration, patterns []string) (int, error) {
	matches, err := w.SweepCandidates(maxAge, patterns)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed, nil
}

// SweepCandidates lists the artifact paths Sweep would delete.
func (w *Workspace) SweepCandidates(maxAge time.Duration, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"**/*.jar", "classes/**"}
	}
	cutoff := time.Now().Add(-maxAge)

	var matches []string
	err := filepath.WalkDir(w.OutputDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.OutputDir(), path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		matched := false
		for _, pattern := range patterns {
			ok, err := doublestar.Match(pattern, rel)
			if err != nil {
				return fmt.Errorf("bad sweep pattern %q: %w", pattern, err)
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sweep output dir: %w", err)
	}
	return matches, nil
}

func validateFilename(filename string) error {
	if filename == "" || filename == "." || filename == ".." {
		return fmt.Errorf("invalid filename: %q", filename)
	}
	if filename != filepath.Base(filename) || strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("invalid filename: %q must not contain path separators", filename)
	}
	return nil
}
