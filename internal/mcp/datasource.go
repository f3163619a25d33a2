package mcp

import (
	"context"
	"time"

	"github.com/claude/pushreps/internal/models"
	"github.com/claude/pushreps/internal/session"
	"github.com/claude/pushreps/internal/workout"
)

// DataSource abstracts the tracker for MCP tools. Both Local (in-process)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	Summary(ctx context.Context) (models.ProgressSummary, error)
	WeeklyHistogram(ctx context.Context, ref time.Time) ([]models.DayBucket, error)
	RecentSessions(ctx context.Context, limit int) ([]models.SessionRecord, error)
	SessionState(ctx context.Context) (session.State, error)
}

// Local reads straight from a running workout service.
type Local struct {
	svc *workout.Service
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

func NewLocal(svc *workout.Service) *Local {
	return &Local{svc: svc}
}

func (l *Local) Summary(context.Context) (models.ProgressSummary, error) {
	return l.svc.Store().Summary(), nil
}

func (l *Local) WeeklyHistogram(_ context.Context, ref time.Time) ([]models.DayBucket, error) {
	return l.svc.Store().WeeklyHistogram(ref), nil
}

func (l *Local) RecentSessions(_ context.Context, limit int) ([]models.SessionRecord, error) {
	return l.svc.Store().RecentSessions(limit), nil
}

func (l *Local) SessionState(context.Context) (session.State, error) {
	return l.svc.Engine().State(), nil
}
