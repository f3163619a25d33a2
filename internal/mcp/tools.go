package mcp

import (
	"context"
	"time"

	"github.com/claude/pushreps/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

const defaultRecentLimit = 10

// referenceDate parses an optional histogram end date, defaulting to now.
func referenceDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	return parseFlexTime(s)
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.DateOnly, s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolListPlans = mcp.NewTool("list_plans",
	mcp.WithDescription("List the workout plans with sets, reps per set and rest seconds between sets."),
)

var toolGetProgressSummary = mcp.NewTool("get_progress_summary",
	mcp.WithDescription("Total sessions, total push-ups, current streak in days and average reps per session."),
)

var toolGetWeeklyHistogram = mcp.NewTool("get_weekly_histogram",
	mcp.WithDescription("Push-ups and sessions per day for the 7 calendar days ending on the given date, oldest first."),
	mcp.WithString("date", mcp.Description("Last day of the window (YYYY-MM-DD or ISO 8601). Defaults to today.")),
)

var toolGetRecentSessions = mcp.NewTool("get_recent_sessions",
	mcp.WithDescription("Most recent completed sessions, newest first, with plan, reps and duration."),
	mcp.WithNumber("limit", mcp.Description("Maximum sessions to return. Defaults to 10.")),
)

var toolGetSessionState = mcp.NewTool("get_session_state",
	mcp.WithDescription("Current workout attempt: phase (idle, active, resting, complete), set, reps and remaining rest."),
)

// --- Tool handlers ---

func (h *handlers) listPlans(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(models.Plans())
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getProgressSummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := h.ds.Summary(ctx)
	if err != nil {
		h.log.Error("mcp get_progress_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(summary)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWeeklyHistogram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := referenceDate(req.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	days, err := h.ds.WeeklyHistogram(ctx, ref)
	if err != nil {
		h.log.Error("mcp get_weekly_histogram", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(days)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getRecentSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultRecentLimit)

	sessions, err := h.ds.RecentSessions(ctx, limit)
	if err != nil {
		h.log.Error("mcp get_recent_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSessionState(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := h.ds.SessionState(ctx)
	if err != nil {
		h.log.Error("mcp get_session_state", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"state":            state,
		"progress_percent": state.ProgressPercent(),
		"rest_clock":       state.RestClock(),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
