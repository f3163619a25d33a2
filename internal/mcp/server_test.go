package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/pushreps/internal/models"
	"github.com/claude/pushreps/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

type fakeSource struct {
	summary  models.ProgressSummary
	days     []models.DayBucket
	sessions []models.SessionRecord
	state    session.State
	err      error
	gotRef   time.Time
	gotLimit int
}

func (f *fakeSource) Summary(context.Context) (models.ProgressSummary, error) {
	return f.summary, f.err
}

func (f *fakeSource) WeeklyHistogram(_ context.Context, ref time.Time) ([]models.DayBucket, error) {
	f.gotRef = ref
	return f.days, f.err
}

func (f *fakeSource) RecentSessions(_ context.Context, limit int) ([]models.SessionRecord, error) {
	f.gotLimit = limit
	return f.sessions, f.err
}

func (f *fakeSource) SessionState(context.Context) (session.State, error) {
	return f.state, f.err
}

func newHandlers(ds DataSource) *handlers {
	return &handlers{ds: ds, log: slog.New(slog.DiscardHandler)}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] = %T, want TextContent", res.Content[0])
	}
	return text.Text
}

// TestReferenceDate verifies date defaulting and parsing for the histogram tool.
func TestReferenceDate(t *testing.T) {
	before := time.Now()
	ref, err := referenceDate("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Before(before) {
		t.Errorf("default ref = %v, want now", ref)
	}

	ref, err = referenceDate("2025-03-16")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Year() != 2025 || ref.Month() != 3 || ref.Day() != 16 {
		t.Errorf("ref = %v, want 2025-03-16", ref)
	}

	ref, err = referenceDate("2025-03-16T10:30:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Hour() != 10 || ref.Minute() != 30 {
		t.Errorf("ref = %v, want 10:30", ref)
	}

	if _, err := referenceDate("last tuesday"); err == nil {
		t.Error("expected error for invalid date")
	}
}

// TestListPlans verifies the catalog is returned in order.
func TestListPlans(t *testing.T) {
	res, err := newHandlers(&fakeSource{}).listPlans(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	var plans []models.Plan
	if err := json.Unmarshal([]byte(resultText(t, res)), &plans); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(plans) != 3 || plans[0].ID != models.PlanBeginner || plans[2].ID != models.PlanAdvanced {
		t.Errorf("plans = %+v", plans)
	}
}

// TestGetProgressSummary verifies the summary is serialized as returned.
func TestGetProgressSummary(t *testing.T) {
	ds := &fakeSource{summary: models.ProgressSummary{TotalSessions: 2, TotalReps: 40, CurrentStreak: 2, AverageRepsSession: 20}}
	res, err := newHandlers(ds).getProgressSummary(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	var got models.ProgressSummary
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != ds.summary {
		t.Errorf("summary = %+v, want %+v", got, ds.summary)
	}
}

// TestGetWeeklyHistogramDate verifies the date argument reaches the data source.
func TestGetWeeklyHistogramDate(t *testing.T) {
	ds := &fakeSource{days: []models.DayBucket{{Date: "2025-03-16", Label: "Sun", Reps: 30, Sessions: 1}}}
	res, err := newHandlers(ds).getWeeklyHistogram(context.Background(), callRequest(map[string]any{"date": "2025-03-16"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if ds.gotRef.Format(time.DateOnly) != "2025-03-16" {
		t.Errorf("ref = %v, want 2025-03-16", ds.gotRef)
	}
}

// TestGetWeeklyHistogramInvalidDate verifies bad dates become tool errors.
func TestGetWeeklyHistogramInvalidDate(t *testing.T) {
	res, err := newHandlers(&fakeSource{}).getWeeklyHistogram(context.Background(), callRequest(map[string]any{"date": "soon"}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected tool error for invalid date")
	}
}

// TestGetRecentSessionsLimit verifies the default and explicit limits.
func TestGetRecentSessionsLimit(t *testing.T) {
	ds := &fakeSource{}
	h := newHandlers(ds)

	if _, err := h.getRecentSessions(context.Background(), callRequest(nil)); err != nil {
		t.Fatal(err)
	}
	if ds.gotLimit != defaultRecentLimit {
		t.Errorf("default limit = %d, want %d", ds.gotLimit, defaultRecentLimit)
	}

	if _, err := h.getRecentSessions(context.Background(), callRequest(map[string]any{"limit": float64(3)})); err != nil {
		t.Fatal(err)
	}
	if ds.gotLimit != 3 {
		t.Errorf("limit = %d, want 3", ds.gotLimit)
	}
}

// TestGetSessionState verifies derived fields are included.
func TestGetSessionState(t *testing.T) {
	plan, _ := models.LookupPlan(models.PlanBeginner)
	ds := &fakeSource{state: session.State{
		Plan: plan, Phase: session.PhaseResting, CurrentSet: 2,
		TotalRepsCompleted: 10, RemainingRestSeconds: 75,
	}}
	res, err := newHandlers(ds).getSessionState(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		State           session.State `json:"state"`
		ProgressPercent int           `json:"progress_percent"`
		RestClock       string        `json:"rest_clock"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State.Phase != session.PhaseResting {
		t.Errorf("phase = %s, want resting", got.State.Phase)
	}
	if got.ProgressPercent != 33 {
		t.Errorf("progress_percent = %d, want 33", got.ProgressPercent)
	}
	if got.RestClock != "1:15" {
		t.Errorf("rest_clock = %q, want 1:15", got.RestClock)
	}
}

// TestDataSourceError verifies data source failures become tool errors, not Go errors.
func TestDataSourceError(t *testing.T) {
	h := newHandlers(&fakeSource{err: errors.New("store offline")})
	res, err := h.getProgressSummary(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if !res.IsError {
		t.Error("expected tool error")
	}
}

// TestProgressResource verifies the resource bundles summary and week.
func TestProgressResource(t *testing.T) {
	ds := &fakeSource{
		summary: models.ProgressSummary{TotalSessions: 1, TotalReps: 30},
		days:    make([]models.DayBucket, 7),
	}
	req := mcp.ReadResourceRequest{}
	req.Params.URI = "pushreps://progress"

	contents, err := newHandlers(ds).progress(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents[0] = %T, want TextResourceContents", contents[0])
	}
	var got struct {
		Summary models.ProgressSummary `json:"summary"`
		Week    []models.DayBucket     `json:"week"`
	}
	if err := json.Unmarshal([]byte(text.Text), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Summary.TotalReps != 30 || len(got.Week) != 7 {
		t.Errorf("resource = %+v", got)
	}
	if text.URI != "pushreps://progress" {
		t.Errorf("uri = %q", text.URI)
	}
}
