package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// SessionRecord is a finished workout, immutable once created.
type SessionRecord struct {
	ID             uuid.UUID `json:"id"`
	PlanID         PlanID    `json:"plan_id"`
	Sets           int       `json:"sets"`
	RepsPerSet     int       `json:"reps_per_set"`
	TotalReps      int       `json:"total_reps"`
	DurationMillis int64     `json:"duration_ms"`
	CompletedAt    time.Time `json:"completed_at"`
}

// NewSessionRecord builds a record for a plan finished at completedAt.
// The ID is a UUIDv7 so IDs sort by creation time.
func NewSessionRecord(plan Plan, totalReps int, duration time.Duration, completedAt time.Time) (SessionRecord, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return SessionRecord{}, fmt.Errorf("generating session id: %w", err)
	}
	if duration < 0 {
		duration = 0
	}
	return SessionRecord{
		ID:             id,
		PlanID:         plan.ID,
		Sets:           plan.Sets,
		RepsPerSet:     plan.RepsPerSet,
		TotalReps:      totalReps,
		DurationMillis: duration.Milliseconds(),
		CompletedAt:    completedAt,
	}, nil
}

// DurationMinutes rounds the session duration to whole minutes.
func (r SessionRecord) DurationMinutes() int {
	return int(math.Round(float64(r.DurationMillis) / 60000))
}

// Summary is the human-readable line used for completion notifications.
func (r SessionRecord) Summary() string {
	return fmt.Sprintf("You completed %d push-ups across %d sets.", r.TotalReps, r.Sets)
}
