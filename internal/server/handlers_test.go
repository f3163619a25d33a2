package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/pushreps/internal/importer"
	"github.com/claude/pushreps/internal/metrics"
	"github.com/claude/pushreps/internal/models"
	"github.com/claude/pushreps/internal/notify"
	"github.com/claude/pushreps/internal/progress"
	"github.com/claude/pushreps/internal/session"
	"github.com/claude/pushreps/internal/workout"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testAPIKey = "test-key"

type toggle struct {
	enabled bool
	err     error
}

func (t *toggle) Enabled(context.Context) (bool, error) { return t.enabled, t.err }

func (t *toggle) SetEnabled(_ context.Context, enabled bool) error {
	if t.err != nil {
		return t.err
	}
	t.enabled = enabled
	return nil
}

type testServer struct {
	srv     *Server
	backend *progress.MemoryBackend
	toggle  *toggle
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	plan, _ := models.LookupPlan(models.PlanBeginner)
	engine := session.NewEngine(plan, session.Options{})
	t.Cleanup(engine.Close)

	backend := progress.NewMemoryBackend()
	store, err := progress.Open(context.Background(), backend, log, progress.Options{Location: time.UTC})
	if err != nil {
		t.Fatal(err)
	}
	tg := &toggle{}
	svc := workout.New(engine, store, nil, log)
	return testServer{srv: New(svc, tg, testAPIKey, log), backend: backend, toggle: tg}
}

func (ts testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if strings.HasPrefix(path, "/api/v1/data") {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode error: %v (body %q)", err, rec.Body.String())
	}
	return v
}

// finish drives the current plan through every set via the API.
func (ts testServer) finish(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	var rec *httptest.ResponseRecorder
	for set := 1; set <= 3; set++ {
		for i := 0; i < 10; i++ {
			if rec := ts.do(t, http.MethodPost, "/api/v1/session/rep", ""); rec.Code != http.StatusOK {
				t.Fatalf("rep status = %d: %s", rec.Code, rec.Body)
			}
		}
		rec = ts.do(t, http.MethodPost, "/api/v1/session/set", "")
		if set < 3 {
			for i := 0; i < 60; i++ {
				ts.do(t, http.MethodPost, "/api/v1/session/tick", "")
			}
		}
	}
	return rec
}

// TestPlans verifies the catalog endpoint.
func TestPlans(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/plans", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	plans := decode[[]models.Plan](t, rec)
	if len(plans) != 3 || plans[1].RepsPerSet != 15 {
		t.Errorf("plans = %+v", plans)
	}
}

// TestSessionFlow verifies a full workout over HTTP records a session.
func TestSessionFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/session", "")
	if v := decode[sessionView](t, rec); v.Phase != session.PhaseIdle || v.CurrentSet != 1 {
		t.Fatalf("initial session = %+v", v)
	}

	rec = ts.finish(t)
	if rec.Code != http.StatusOK {
		t.Fatalf("final set status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[setResponse](t, rec)
	if resp.Completion == nil {
		t.Fatal("expected completion on last set")
	}
	if resp.Completion.Record.TotalReps != 30 || resp.Completion.Progress.TotalSessions != 1 {
		t.Errorf("completion = %+v", resp.Completion)
	}
	if resp.Session.Phase != session.PhaseComplete || resp.Session.ProgressPercent != 100 {
		t.Errorf("session = %+v", resp.Session)
	}

	sum := decode[models.ProgressSummary](t, ts.do(t, http.MethodGet, "/api/v1/progress", ""))
	if sum.TotalReps != 30 || sum.CurrentStreak != 1 || sum.AverageRepsSession != 30 {
		t.Errorf("summary = %+v", sum)
	}
}

// TestRestViaAPI verifies the rest countdown, pause, and rest clock fields.
func TestRestViaAPI(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 10; i++ {
		ts.do(t, http.MethodPost, "/api/v1/session/rep", "")
	}
	v := decode[setResponse](t, ts.do(t, http.MethodPost, "/api/v1/session/set", "")).Session
	if v.Phase != session.PhaseResting || v.RemainingRestSeconds != 60 || v.RestClock != "1:00" {
		t.Fatalf("after set = %+v", v)
	}

	ts.do(t, http.MethodPost, "/api/v1/session/pause", "")
	v = decode[sessionView](t, ts.do(t, http.MethodPost, "/api/v1/session/tick", ""))
	if !v.Paused || v.RemainingRestSeconds != 60 {
		t.Errorf("paused tick = %+v", v)
	}

	ts.do(t, http.MethodPost, "/api/v1/session/resume", "")
	v = decode[sessionView](t, ts.do(t, http.MethodPost, "/api/v1/session/tick", ""))
	if v.RemainingRestSeconds != 59 || v.RestClock != "0:59" {
		t.Errorf("resumed tick = %+v", v)
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/session/rep", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("rep during rest status = %d, want 409", rec.Code)
	}
}

// TestEarlySetConflict verifies an unfinished set maps to 409.
func TestEarlySetConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/session/start", "")
	ts.do(t, http.MethodPost, "/api/v1/session/rep", "")
	rec := ts.do(t, http.MethodPost, "/api/v1/session/set", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

// TestSelectPlan verifies plan selection and its error mapping.
func TestSelectPlan(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/session/plan", `{"plan":"advanced"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if v := decode[sessionView](t, rec); v.Plan.ID != models.PlanAdvanced {
		t.Errorf("plan = %s, want advanced", v.Plan.ID)
	}

	if rec := ts.do(t, http.MethodPost, "/api/v1/session/plan", `{"plan":"elite"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown plan status = %d, want 400", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/v1/session/plan", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rec.Code)
	}

	ts.do(t, http.MethodPost, "/api/v1/session/rep", "")
	if rec := ts.do(t, http.MethodPost, "/api/v1/session/plan", `{"plan":"beginner"}`); rec.Code != http.StatusConflict {
		t.Errorf("plan after rep status = %d, want 409", rec.Code)
	}

	v := decode[sessionView](t, ts.do(t, http.MethodPost, "/api/v1/session/reset", ""))
	if v.Phase != session.PhaseIdle || v.Plan.ID != models.PlanAdvanced || v.TotalRepsCompleted != 0 {
		t.Errorf("after reset = %+v", v)
	}
}

// TestPersistenceFailureAndRetry verifies 503 on a failed save and that
// retry commits the pending record.
func TestPersistenceFailureAndRetry(t *testing.T) {
	ts := newTestServer(t)
	ts.backend.FailSaves(errors.New("disk full"))

	rec := ts.finish(t)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if v := decode[sessionView](t, ts.do(t, http.MethodGet, "/api/v1/session", "")); v.Pending != 1 {
		t.Errorf("pending = %d, want 1", v.Pending)
	}

	if rec := ts.do(t, http.MethodPost, "/api/v1/session/retry", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("retry while failing status = %d, want 503", rec.Code)
	}

	ts.backend.FailSaves(nil)
	rec = ts.do(t, http.MethodPost, "/api/v1/session/retry", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d: %s", rec.Code, rec.Body)
	}
	if c := decode[workout.Completion](t, rec); c.Progress.TotalSessions != 1 || c.Pending != 0 {
		t.Errorf("completion = %+v", c)
	}

	if rec := ts.do(t, http.MethodPost, "/api/v1/session/retry", ""); rec.Code != http.StatusConflict {
		t.Errorf("retry with nothing pending status = %d, want 409", rec.Code)
	}
}

// TestWeeklyAndRecent verifies query parameter handling for the progress views.
func TestWeeklyAndRecent(t *testing.T) {
	ts := newTestServer(t)
	ts.finish(t)

	days := decode[[]models.DayBucket](t, ts.do(t, http.MethodGet, "/api/v1/progress/weekly", ""))
	if len(days) != 7 || days[6].Reps != 30 {
		t.Errorf("weekly = %+v", days)
	}

	days = decode[[]models.DayBucket](t, ts.do(t, http.MethodGet, "/api/v1/progress/weekly?date=2025-03-16", ""))
	if days[0].Date != "2025-03-10" || days[6].Label != "Sun" || days[6].Reps != 0 {
		t.Errorf("weekly for date = %+v", days)
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/progress/weekly?date=16/03/2025", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}

	recent := decode[[]models.SessionRecord](t, ts.do(t, http.MethodGet, "/api/v1/progress/recent", ""))
	if len(recent) != 1 {
		t.Errorf("recent = %d, want 1", len(recent))
	}
	recent = decode[[]models.SessionRecord](t, ts.do(t, http.MethodGet, "/api/v1/progress/recent?limit=0", ""))
	if len(recent) != 0 {
		t.Errorf("recent limit 0 = %d, want 0", len(recent))
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/progress/recent?limit=ten", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

// TestNotificationSettings verifies the toggle round trip.
func TestNotificationSettings(t *testing.T) {
	ts := newTestServer(t)

	got := decode[notificationSettings](t, ts.do(t, http.MethodGet, "/api/v1/settings/notifications", ""))
	if got.Enabled == nil || *got.Enabled {
		t.Errorf("initial = %v, want false", got.Enabled)
	}

	rec := ts.do(t, http.MethodPut, "/api/v1/settings/notifications", `{"enabled":true}`)
	if rec.Code != http.StatusOK || !ts.toggle.enabled {
		t.Errorf("PUT status = %d, enabled = %v", rec.Code, ts.toggle.enabled)
	}

	if rec := ts.do(t, http.MethodPut, "/api/v1/settings/notifications", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing field status = %d, want 400", rec.Code)
	}

	ts.toggle.err = errors.New("settings offline")
	if rec := ts.do(t, http.MethodGet, "/api/v1/settings/notifications", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("error status = %d, want 500", rec.Code)
	}
}

// TestNotificationSettingsWithDispatcher verifies the routes work against
// the real dispatcher and in-memory settings.
func TestNotificationSettingsWithDispatcher(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	d := notify.New(notify.NewMemorySettings(), log, notify.Options{})
	t.Cleanup(d.Close)

	ts := newTestServer(t)
	ts.srv.notifications = d

	ts.do(t, http.MethodPut, "/api/v1/settings/notifications", `{"enabled":true}`)
	got := decode[notificationSettings](t, ts.do(t, http.MethodGet, "/api/v1/settings/notifications", ""))
	if got.Enabled == nil || !*got.Enabled {
		t.Errorf("enabled = %v, want true", got.Enabled)
	}
}

// TestClearData verifies the API key guard and that clearing empties progress.
func TestClearData(t *testing.T) {
	ts := newTestServer(t)
	ts.finish(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/data", nil)
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d, want 401", rec.Code)
	}

	rec = ts.do(t, http.MethodDelete, "/api/v1/data", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if sum := decode[models.ProgressSummary](t, rec); sum.TotalSessions != 0 || sum.TotalReps != 0 {
		t.Errorf("summary after clear = %+v", sum)
	}
}

// TestImport verifies history import and dry-run via the API.
func TestImport(t *testing.T) {
	ts := newTestServer(t)
	body := `[
		{"id": 1710086400000, "plan": "intermediate", "sets": 4, "repsPerSet": 15, "pushUps": 60, "duration": 420000, "date": "2024-03-10T16:00:00.000Z"},
		{"id": 1709996400000, "plan": "beginner", "sets": 3, "repsPerSet": 10, "pushUps": 30, "duration": 300000, "date": "2024-03-09T15:00:00.000Z"}
	]`

	for _, v := range []string{"yes", "1x"} {
		if rec := ts.do(t, http.MethodPost, "/api/v1/data/import?dry_run="+v, body); rec.Code != http.StatusBadRequest {
			t.Errorf("dry_run=%s status = %d, want 400", v, rec.Code)
		}
	}
	if ts.backend.Saves() != 0 {
		t.Errorf("saves after rejected dry_run = %d, want 0", ts.backend.Saves())
	}

	stats := decode[importer.Stats](t, ts.do(t, http.MethodPost, "/api/v1/data/import?dry_run=true", body))
	if stats.Imported != 2 || ts.backend.Saves() != 0 {
		t.Errorf("dry run stats = %+v, saves = %d", stats, ts.backend.Saves())
	}

	stats = decode[importer.Stats](t, ts.do(t, http.MethodPost, "/api/v1/data/import", body))
	if stats.Imported != 2 {
		t.Errorf("stats = %+v", stats)
	}
	sum := decode[models.ProgressSummary](t, ts.do(t, http.MethodGet, "/api/v1/progress", ""))
	if sum.TotalSessions != 2 || sum.TotalReps != 90 || sum.CurrentStreak != 2 {
		t.Errorf("summary = %+v", sum)
	}

	if rec := ts.do(t, http.MethodPost, "/api/v1/data/import", `{"nope":1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}
}

// TestMetricsEndpoint verifies API requests are counted and exposed at /metrics.
func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	reg := metrics.NewRegistry()
	m := metrics.NewManager(reg)
	ts.srv.MountMetrics(m, reg)

	ts.do(t, http.MethodGet, "/api/v1/plans", "")
	ts.do(t, http.MethodPost, "/api/v1/session/set", "")

	if got := testutil.ToFloat64(m.CounterRequests.WithLabelValues("GET", "200")); got != 1 {
		t.Errorf("GET 200 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CounterRequests.WithLabelValues("POST", "409")); got != 1 {
		t.Errorf("POST 409 = %v, want 1", got)
	}

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pushreps_http_requests_total") {
		t.Error("metrics output missing pushreps_http_requests_total")
	}
}
