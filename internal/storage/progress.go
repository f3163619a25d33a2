package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/claude/pushreps/internal/models"
	"github.com/claude/pushreps/internal/progress"
	"github.com/jackc/pgx/v5"
)

// sessionBatch bounds rows per INSERT to stay well under the bind parameter limit.
const sessionBatch = 500

// Compile-time check: *DB is a progress backend.
var _ progress.Backend = (*DB)(nil)

// Load reads the aggregate. Returns nil when no progress row exists yet.
func (db *DB) Load(ctx context.Context) (*models.ProgressAggregate, error) {
	agg := &models.ProgressAggregate{}
	err := db.Pool.QueryRow(ctx,
		`SELECT total_sessions, total_reps, current_streak FROM progress WHERE id = 1`,
	).Scan(&agg.TotalSessions, &agg.TotalReps, &agg.CurrentStreak)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying progress: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT id, plan_id, sets, reps_per_set, total_reps, duration_ms, completed_at
		 FROM sessions
		 ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	agg.History = []models.SessionRecord{}
	for rows.Next() {
		var r models.SessionRecord
		var planID string
		if err := rows.Scan(&r.ID, &planID, &r.Sets, &r.RepsPerSet, &r.TotalReps,
			&r.DurationMillis, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		id, err := models.ParsePlanID(planID)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w: %v", r.ID, progress.ErrCorrupt, err)
		}
		r.PlanID = id
		agg.History = append(agg.History, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return agg, nil
}

// Save writes the full aggregate in one transaction. Sessions missing from
// agg.History are deleted, so saving an empty aggregate clears everything.
func (db *DB) Save(ctx context.Context, agg *models.ProgressAggregate) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ids := make([]string, len(agg.History))
	for i, r := range agg.History {
		ids[i] = r.ID.String()
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE id <> ALL($1::uuid[])`, ids); err != nil {
		return fmt.Errorf("pruning sessions: %w", err)
	}

	for start := 0; start < len(agg.History); start += sessionBatch {
		end := min(start+sessionBatch, len(agg.History))
		if err := upsertSessions(ctx, tx, agg.History, start, end); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO progress (id, total_sessions, total_reps, current_streak, updated_at)
		 VALUES (1, $1, $2, $3, NOW())
		 ON CONFLICT (id) DO UPDATE SET
			total_sessions = EXCLUDED.total_sessions,
			total_reps = EXCLUDED.total_reps,
			current_streak = EXCLUDED.current_streak,
			updated_at = NOW()`,
		agg.TotalSessions, agg.TotalReps, agg.CurrentStreak)
	if err != nil {
		return fmt.Errorf("updating progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing progress: %w", err)
	}
	return nil
}

// upsertSessions writes history[start:end]. seq counts up from the oldest
// record so ORDER BY seq DESC reproduces newest-first order.
func upsertSessions(ctx context.Context, tx pgx.Tx, history []models.SessionRecord, start, end int) error {
	query := `INSERT INTO sessions (id, seq, plan_id, sets, reps_per_set, total_reps, duration_ms, completed_at) VALUES `
	args := make([]any, 0, (end-start)*8)
	valueStrings := make([]string, 0, end-start)

	for i := start; i < end; i++ {
		r := history[i]
		base := (i - start) * 8
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		seq := int64(len(history) - 1 - i)
		args = append(args, r.ID, seq, string(r.PlanID), r.Sets, r.RepsPerSet,
			r.TotalReps, r.DurationMillis, r.CompletedAt)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT (id) DO UPDATE SET seq = EXCLUDED.seq"

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting sessions: %w", err)
	}
	return nil
}
