package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/claude/pushreps/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrPersistence wraps a failed Save. The in-memory aggregate is
	// unchanged when it is returned.
	ErrPersistence = errors.New("persisting progress")
	// ErrCorrupt is wrapped by backends when stored data cannot be decoded.
	ErrCorrupt = errors.New("corrupt progress data")
	// ErrInvalidRecord is returned for records that cannot be appended.
	ErrInvalidRecord = errors.New("invalid session record")
)

// Backend is the durable medium for the aggregate.
type Backend interface {
	// Load returns the stored aggregate, or nil when nothing has been saved.
	Load(ctx context.Context) (*models.ProgressAggregate, error)
	Save(ctx context.Context, agg *models.ProgressAggregate) error
}

// Options configures a Store.
type Options struct {
	// Location decides calendar-day boundaries. Defaults to time.Local.
	Location *time.Location
	// Now is used by queries that default to today.
	Now func() time.Time
}

// Store holds the progress aggregate in memory and writes every change
// through to a Backend before it becomes visible.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	log     *slog.Logger
	loc     *time.Location
	now     func() time.Time
	agg     models.ProgressAggregate
}

// Open loads the aggregate from backend. Corrupt data is logged and replaced
// by an empty aggregate; any other load error is returned.
func Open(ctx context.Context, backend Backend, log *slog.Logger, opts Options) (*Store, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		backend: backend,
		log:     log,
		loc:     opts.Location,
		now:     opts.Now,
	}

	agg, err := backend.Load(ctx)
	switch {
	case errors.Is(err, ErrCorrupt):
		log.Warn("stored progress is corrupt, starting empty", "error", err)
	case err != nil:
		return nil, fmt.Errorf("loading progress: %w", err)
	case agg != nil:
		s.agg = agg.Clone()
		if !s.agg.Consistent() {
			log.Warn("stored totals disagree with history, recomputing",
				"total_sessions", s.agg.TotalSessions, "total_reps", s.agg.TotalReps, "history", len(s.agg.History))
			repair(&s.agg)
		}
	}
	log.Info("progress loaded", "sessions", s.agg.TotalSessions, "streak", s.agg.CurrentStreak)
	return s, nil
}

// repair recomputes totals from history. The streak is kept unless negative.
func repair(agg *models.ProgressAggregate) {
	agg.TotalSessions = len(agg.History)
	agg.TotalReps = 0
	for _, r := range agg.History {
		agg.TotalReps += r.TotalReps
	}
	if agg.CurrentStreak < 0 {
		agg.CurrentStreak = 0
	}
}

// RecordSession appends rec, updates totals and streak, and persists the
// result. Re-recording an ID already in history is a no-op.
func (s *Store) RecordSession(ctx context.Context, rec models.SessionRecord) error {
	if err := validate(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.agg.History {
		if r.ID == rec.ID {
			return nil
		}
	}

	next := models.ProgressAggregate{
		History:       make([]models.SessionRecord, 0, len(s.agg.History)+1),
		TotalSessions: s.agg.TotalSessions + 1,
		TotalReps:     s.agg.TotalReps + rec.TotalReps,
		CurrentStreak: s.agg.CurrentStreak,
	}
	next.History = append(next.History, rec)
	next.History = append(next.History, s.agg.History...)

	if len(s.agg.History) == 0 || !s.sameDay(s.agg.History[0].CompletedAt, rec.CompletedAt) {
		next.CurrentStreak++
	}

	if err := s.backend.Save(ctx, &next); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.agg = next
	return nil
}

// ImportResult counts what Import did with each record.
type ImportResult struct {
	Added      int
	Duplicated int
	Invalid    int
}

// Import merges recs into history in one save. History is re-sorted newest
// first, totals are recomputed, and the streak becomes the number of distinct
// calendar days in the merged history. Invalid records and IDs already
// present are skipped. Nothing is saved when no record is added.
func (s *Store) Import(ctx context.Context, recs []models.SessionRecord) (ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res ImportResult
	seen := make(map[uuid.UUID]bool, len(s.agg.History)+len(recs))
	for _, r := range s.agg.History {
		seen[r.ID] = true
	}

	merged := make([]models.SessionRecord, 0, len(s.agg.History)+len(recs))
	merged = append(merged, s.agg.History...)
	for _, rec := range recs {
		if err := validate(rec); err != nil {
			res.Invalid++
			s.log.Warn("skipping invalid import record", "id", rec.ID, "error", err)
			continue
		}
		if seen[rec.ID] {
			res.Duplicated++
			continue
		}
		seen[rec.ID] = true
		merged = append(merged, rec)
		res.Added++
	}
	if res.Added == 0 {
		return res, nil
	}

	slices.SortStableFunc(merged, func(a, b models.SessionRecord) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})
	next := models.ProgressAggregate{
		History:       merged,
		CurrentStreak: s.distinctDays(merged),
	}
	repair(&next)

	if err := s.backend.Save(ctx, &next); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.agg = next
	s.log.Info("sessions imported", "added", res.Added, "sessions", next.TotalSessions, "streak", next.CurrentStreak)
	return res, nil
}

// distinctDays counts calendar days in history, which must be sorted.
func (s *Store) distinctDays(history []models.SessionRecord) int {
	n := 0
	for i, r := range history {
		if i == 0 || !s.sameDay(history[i-1].CompletedAt, r.CompletedAt) {
			n++
		}
	}
	return n
}

// Clear removes all history and totals.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := models.ProgressAggregate{History: []models.SessionRecord{}}
	if err := s.backend.Save(ctx, &empty); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.agg = empty
	s.log.Info("progress cleared")
	return nil
}

// Snapshot returns a copy of the aggregate.
func (s *Store) Snapshot() models.ProgressAggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agg.Clone()
}

// Summary returns the dashboard totals.
func (s *Store) Summary() models.ProgressSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ProgressSummary{
		TotalSessions:      s.agg.TotalSessions,
		TotalReps:          s.agg.TotalReps,
		CurrentStreak:      s.agg.CurrentStreak,
		AverageRepsSession: average(s.agg.TotalReps, s.agg.TotalSessions),
	}
}

// AverageRepsPerSession is total reps over total sessions, rounded.
// Zero when there are no sessions.
func (s *Store) AverageRepsPerSession() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return average(s.agg.TotalReps, s.agg.TotalSessions)
}

func average(reps, sessions int) int {
	if sessions == 0 {
		return 0
	}
	return int(math.Round(float64(reps) / float64(sessions)))
}

// RecentSessions returns up to limit of the newest sessions, newest first.
func (s *Store) RecentSessions(limit int) []models.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return []models.SessionRecord{}
	}
	if limit > len(s.agg.History) {
		limit = len(s.agg.History)
	}
	out := make([]models.SessionRecord, limit)
	copy(out, s.agg.History[:limit])
	return out
}

// WeeklyHistogram sums reps and sessions for the seven calendar days ending
// on ref's day, oldest first.
func (s *Store) WeeklyHistogram(ref time.Time) []models.DayBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref = ref.In(s.loc)
	days := make([]models.DayBucket, 7)
	index := make(map[string]int, 7)
	for i := range days {
		d := time.Date(ref.Year(), ref.Month(), ref.Day()-6+i, 0, 0, 0, 0, s.loc)
		key := d.Format(time.DateOnly)
		days[i] = models.DayBucket{Date: key, Label: d.Format("Mon")}
		index[key] = i
	}

	for _, r := range s.agg.History {
		i, ok := index[r.CompletedAt.In(s.loc).Format(time.DateOnly)]
		if !ok {
			continue
		}
		days[i].Reps += r.TotalReps
		days[i].Sessions++
	}
	return days
}

// Today returns the current time in the store's location.
func (s *Store) Today() time.Time {
	return s.now().In(s.loc)
}

// Location is the time zone used for calendar days.
func (s *Store) Location() *time.Location {
	return s.loc
}

func (s *Store) sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(s.loc).Date()
	by, bm, bd := b.In(s.loc).Date()
	return ay == by && am == bm && ad == bd
}

func validate(rec models.SessionRecord) error {
	switch {
	case !rec.PlanID.IsValid():
		return fmt.Errorf("%w: unknown plan %q", ErrInvalidRecord, rec.PlanID)
	case rec.TotalReps < 0:
		return fmt.Errorf("%w: negative total reps", ErrInvalidRecord)
	case rec.DurationMillis < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidRecord)
	case rec.CompletedAt.IsZero():
		return fmt.Errorf("%w: missing completion time", ErrInvalidRecord)
	}
	return nil
}
