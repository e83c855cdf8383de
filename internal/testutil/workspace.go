// Package testutil provides fixtures shared by the package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Workspace is a temporary directory holding a test plan and the package
// directories it points at. Its root has symlinks resolved so paths compare
// equal to the ones config.Assemble produces.
type Workspace struct {
	t    testing.TB
	Root string
}

// NewWorkspace creates an empty workspace removed at the end of the test.
func NewWorkspace(t testing.TB) *Workspace {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	return &Workspace{t: t, Root: root}
}

// Path joins elem onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.Root}, elem...)...)
}

// WriteFile writes content to rel, creating parent directories, and
// returns the absolute path.
func (w *Workspace) WriteFile(rel, content string) string {
	w.t.Helper()
	path := w.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		w.t.Fatalf("create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		w.t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WritePlan writes the default test plan and returns its path.
func (w *Workspace) WritePlan(content string) string {
	w.t.Helper()
	return w.WriteFile(".multi-tester.yml", content)
}

// WriteComposer writes dir/composer.json with the given package name.
// An empty name writes a manifest without a name entry.
func (w *Workspace) WriteComposer(dir, name string) string {
	w.t.Helper()
	content := `{"type": "library"}`
	if name != "" {
		content = `{"name": "` + name + `", "type": "library"}`
	}
	return w.WriteFile(filepath.Join(dir, "composer.json"), content)
}
