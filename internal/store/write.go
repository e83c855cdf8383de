package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// PlanEntry is one journal row.
type PlanEntry struct {
	Seq          int64
	RunID        string
	RecordedAt   time.Time
	ConfigFile   string
	PackageName  string
	ProjectCount int
	Digest       string
	Plan         string // canonical JSON
}

// RecordPlan appends an entry. Writing the same RunID twice is a no-op.
func (s *Store) RecordPlan(ctx context.Context, e PlanEntry) error {
	if e.RunID == "" {
		return errors.New("record plan: run id is required")
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans
		(run_id, recorded_at, config_file, package_name, project_count, digest, plan)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		e.RunID,
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
		e.ConfigFile,
		e.PackageName,
		e.ProjectCount,
		e.Digest,
		e.Plan,
	)
	if err != nil {
		return fmt.Errorf("record plan: %w", err)
	}
	return nil
}
