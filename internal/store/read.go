package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("plan not found")

const selectPlans = `
	SELECT seq, run_id, recorded_at, config_file, package_name, project_count, digest, plan
	FROM plans
`

// ListPlans returns up to limit entries, newest first. A limit of zero or
// less returns every entry.
func (s *Store) ListPlans(ctx context.Context, limit int) ([]PlanEntry, error) {
	rows, err := s.db.QueryContext(ctx, selectPlans+`ORDER BY seq DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return scanPlans(rows)
}

// ListPlansForConfig is ListPlans restricted to one test-plan path.
func (s *Store) ListPlansForConfig(ctx context.Context, configFile string, limit int) ([]PlanEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		selectPlans+`WHERE config_file = ? ORDER BY seq DESC LIMIT ?`,
		configFile, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list plans for %s: %w", configFile, err)
	}
	return scanPlans(rows)
}

// PlanByRunID returns the entry recorded for runID.
func (s *Store) PlanByRunID(ctx context.Context, runID string) (PlanEntry, error) {
	rows, err := s.db.QueryContext(ctx, selectPlans+`WHERE run_id = ?`, runID)
	if err != nil {
		return PlanEntry{}, fmt.Errorf("plan %s: %w", runID, err)
	}
	plans, err := scanPlans(rows)
	if err != nil {
		return PlanEntry{}, err
	}
	if len(plans) == 0 {
		return PlanEntry{}, fmt.Errorf("plan %s: %w", runID, ErrNotFound)
	}
	return plans[0], nil
}

// sqlLimit maps "no limit" onto SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func scanPlans(rows *sql.Rows) ([]PlanEntry, error) {
	defer rows.Close()

	var plans []PlanEntry
	for rows.Next() {
		var (
			e          PlanEntry
			recordedAt string
		)
		if err := rows.Scan(&e.Seq, &e.RunID, &recordedAt, &e.ConfigFile, &e.PackageName,
			&e.ProjectCount, &e.Digest, &e.Plan); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("plan %s: bad recorded_at %q: %w", e.RunID, recordedAt, err)
		}
		e.RecordedAt = t
		plans = append(plans, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}
