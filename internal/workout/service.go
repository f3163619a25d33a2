// Package workout connects the session engine to the progress store.
package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claude/pushreps/internal/models"
	"github.com/claude/pushreps/internal/progress"
	"github.com/claude/pushreps/internal/session"
)

// ErrNothingPending is returned by Retry when every record is persisted.
var ErrNothingPending = errors.New("no pending session")

// Notifier receives a summary after each persisted session. It must not block.
type Notifier interface {
	SessionCompleted(summary string)
}

// Observer is told about persistence outcomes. *metrics.Manager implements it.
type Observer interface {
	SessionRecorded(rec models.SessionRecord)
	PersistenceFailed()
	PendingChanged(n int)
}

// Completion is the result of finishing the last set.
type Completion struct {
	Record   models.SessionRecord   `json:"record"`
	Progress models.ProgressSummary `json:"progress"`
	Pending  int                    `json:"pending"`
}

// Service owns one engine and hands finished sessions to the store.
// Records that fail to persist stay pending until Retry succeeds.
type Service struct {
	engine   *session.Engine
	store    *progress.Store
	notifier Notifier
	observer Observer
	log      *slog.Logger

	mu      sync.Mutex
	pending []models.SessionRecord
}

func New(engine *session.Engine, store *progress.Store, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		engine:   engine,
		store:    store,
		notifier: notifier,
		log:      log,
	}
}

// SetObserver installs o. Call it before the service is used.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// Engine returns the underlying session engine.
func (s *Service) Engine() *session.Engine {
	return s.engine
}

// Store returns the progress store.
func (s *Service) Store() *progress.Store {
	return s.store
}

// CompleteSet finishes the current set. A nil Completion means the workout
// continues. When the last set completes, the record is persisted; on
// progress.ErrPersistence the Completion is still returned and the record
// stays pending.
func (s *Service) CompleteSet(ctx context.Context) (*Completion, error) {
	rec, err := s.engine.CompleteSet()
	if err != nil || rec == nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, *rec)
	return s.flushLocked(ctx, *rec)
}

// Retry persists pending records, oldest first.
func (s *Service) Retry(ctx context.Context) (*Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, ErrNothingPending
	}
	return s.flushLocked(ctx, s.pending[len(s.pending)-1])
}

// Pending returns records not yet persisted.
func (s *Service) Pending() []models.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SessionRecord, len(s.pending))
	copy(out, s.pending)
	return out
}

func (s *Service) flushLocked(ctx context.Context, latest models.SessionRecord) (*Completion, error) {
	if s.observer != nil {
		defer func() { s.observer.PendingChanged(len(s.pending)) }()
	}
	for len(s.pending) > 0 {
		rec := s.pending[0]
		err := s.store.RecordSession(ctx, rec)
		if errors.Is(err, progress.ErrPersistence) {
			s.log.Error("session not persisted, keeping it pending", "id", rec.ID, "pending", len(s.pending), "error", err)
			if s.observer != nil {
				s.observer.PersistenceFailed()
			}
			return s.completion(latest), err
		}
		s.pending = s.pending[1:]
		if err != nil {
			s.log.Error("session rejected by store", "id", rec.ID, "error", err)
			return nil, fmt.Errorf("recording session: %w", err)
		}
		s.log.Info("session recorded", "id", rec.ID, "plan", rec.PlanID, "reps", rec.TotalReps)
		if s.observer != nil {
			s.observer.SessionRecorded(rec)
		}
		if s.notifier != nil {
			s.notifier.SessionCompleted(rec.Summary())
		}
	}
	return s.completion(latest), nil
}

func (s *Service) completion(rec models.SessionRecord) *Completion {
	return &Completion{
		Record:   rec,
		Progress: s.store.Summary(),
		Pending:  len(s.pending),
	}
}
