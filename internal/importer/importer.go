// Package importer replays a workout history exported from the PushReps web
// app into a progress store.
package importer

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/claude/pushreps/internal/models"
	"github.com/claude/pushreps/internal/progress"
	"github.com/google/uuid"
)

// Entry is one element of the exported workoutHistory array.
type Entry struct {
	ID         int64  `json:"id"`
	Plan       string `json:"plan"`
	Sets       int    `json:"sets"`
	RepsPerSet int    `json:"repsPerSet"`
	PushUps    int    `json:"pushUps"`
	Duration   int64  `json:"duration"`
	Date       string `json:"date"`
}

// Stats tracks import progress.
type Stats struct {
	Entries     int `json:"entries"`
	Imported    int `json:"imported"`
	Duplicated  int `json:"duplicated"`
	UnknownPlan int `json:"unknown_plan"`
	Invalid     int `json:"invalid"`
}

// Recorder is the part of progress.Store the importer writes through.
type Recorder interface {
	Import(ctx context.Context, recs []models.SessionRecord) (progress.ImportResult, error)
	Snapshot() models.ProgressAggregate
}

var _ Recorder = (*progress.Store)(nil)

// Importer converts exported entries to session records.
type Importer struct {
	store  Recorder
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

// New creates a new Importer.
func New(store Recorder, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{store: store, log: log, dryRun: dryRun}
}

// Parse decodes a workoutHistory JSON array.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding workout history: %w", err)
	}
	return entries, nil
}

// Import merges entries into the store in one save. The store keeps history
// newest first and recomputes totals and streak over the merged history, so
// older entries never land ahead of newer live sessions. Entries already in
// the store are counted as duplicates; entries with unknown plans or bad
// fields are skipped.
func (imp *Importer) Import(ctx context.Context, entries []Entry) (*Stats, error) {
	imp.stats = Stats{Entries: len(entries)}

	known := make(map[uuid.UUID]bool)
	for _, r := range imp.store.Snapshot().History {
		known[r.ID] = true
	}

	recs := make([]models.SessionRecord, 0, len(entries))
	for _, e := range entries {
		rec, err := e.Record()
		switch {
		case errors.Is(err, models.ErrUnknownPlan):
			imp.stats.UnknownPlan++
			imp.log.Warn("skipping entry with unknown plan", "id", e.ID, "plan", e.Plan)
			continue
		case err != nil:
			imp.stats.Invalid++
			imp.log.Warn("skipping invalid entry", "id", e.ID, "error", err)
			continue
		}
		if known[rec.ID] {
			imp.stats.Duplicated++
			continue
		}
		known[rec.ID] = true
		recs = append(recs, rec)
	}

	if imp.dryRun {
		imp.stats.Imported = len(recs)
		return &imp.stats, nil
	}
	if len(recs) == 0 {
		return &imp.stats, nil
	}

	res, err := imp.store.Import(ctx, recs)
	if err != nil {
		return &imp.stats, fmt.Errorf("importing %d sessions: %w", len(recs), err)
	}
	imp.stats.Imported = res.Added
	imp.stats.Duplicated += res.Duplicated
	imp.stats.Invalid += res.Invalid
	return &imp.stats, nil
}

// Record converts the entry. The ID is a UUIDv7 whose timestamp is the
// entry's millisecond id and whose random bits are hashed from the entry,
// so importing the same export twice yields the same IDs.
func (e Entry) Record() (models.SessionRecord, error) {
	id, err := models.ParsePlanID(e.Plan)
	if err != nil {
		return models.SessionRecord{}, err
	}
	plan, err := models.LookupPlan(id)
	if err != nil {
		return models.SessionRecord{}, err
	}
	if e.PushUps < 0 || e.Duration < 0 {
		return models.SessionRecord{}, fmt.Errorf("negative push-ups or duration")
	}

	completed, err := e.completedAt()
	if err != nil {
		return models.SessionRecord{}, err
	}

	sets, reps := e.Sets, e.RepsPerSet
	if sets <= 0 {
		sets = plan.Sets
	}
	if reps <= 0 {
		reps = plan.RepsPerSet
	}

	return models.SessionRecord{
		ID:             entryUUID(e, completed),
		PlanID:         id,
		Sets:           sets,
		RepsPerSet:     reps,
		TotalReps:      e.PushUps,
		DurationMillis: e.Duration,
		CompletedAt:    completed,
	}, nil
}

func (e Entry) completedAt() (time.Time, error) {
	if e.Date != "" {
		t, err := time.Parse(time.RFC3339Nano, e.Date)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing date %q: %w", e.Date, err)
		}
		return t, nil
	}
	if e.ID > 0 {
		return time.UnixMilli(e.ID).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("entry has neither date nor id")
}

func entryUUID(e Entry, completed time.Time) uuid.UUID {
	h := sha1.Sum([]byte(strconv.FormatInt(e.ID, 10) + "|" + e.Date + "|" + e.Plan))

	var u uuid.UUID
	copy(u[:], h[:16])

	ms := e.ID
	if ms <= 0 {
		ms = completed.UnixMilli()
	}
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(ms))
	copy(u[0:6], ts[2:8])

	u[6] = (u[6] & 0x0f) | 0x70 // version 7
	u[8] = (u[8] & 0x3f) | 0x80 // RFC 4122 variant
	return u
}
