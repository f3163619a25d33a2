package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("PushReps", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("PushReps push-up tracker. Read workout plans, progress totals, streaks, weekly rep histograms, recent sessions and the live session state."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListPlans, Handler: h.listPlans},
		server.ServerTool{Tool: toolGetProgressSummary, Handler: h.getProgressSummary},
		server.ServerTool{Tool: toolGetWeeklyHistogram, Handler: h.getWeeklyHistogram},
		server.ServerTool{Tool: toolGetRecentSessions, Handler: h.getRecentSessions},
		server.ServerTool{Tool: toolGetSessionState, Handler: h.getSessionState},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resProgress, Handler: h.progress},
		server.ServerResource{Resource: resRecentSessions, Handler: h.recentSessions},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resProgress = mcp.NewResource(
	"pushreps://progress",
	"Progress",
	mcp.WithResourceDescription("Total sessions, total reps, current streak, average reps per session and this week's histogram"),
	mcp.WithMIMEType("application/json"),
)

var resRecentSessions = mcp.NewResource(
	"pushreps://recent_sessions",
	"Recent Sessions",
	mcp.WithResourceDescription("The 10 most recent completed sessions, newest first"),
	mcp.WithMIMEType("application/json"),
)
