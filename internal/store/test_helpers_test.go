package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry creates a plan entry with minimal required fields.
func createTestEntry(runID, configFile string) PlanEntry {
	return PlanEntry{
		RunID:        runID,
		RecordedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ConfigFile:   configFile,
		PackageName:  "demo/project",
		ProjectCount: 2,
		Digest:       "digest-" + runID,
		Plan:         `{"package_name":"demo/project"}`,
	}
}
