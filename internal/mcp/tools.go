package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/gymbot/internal/engine"
)

// windowDays clamps the history window parameter. The bot itself shows 14
// days; MCP callers may ask for up to a year.
func windowDays(req mcp.CallToolRequest) int {
	days := req.GetInt("days", 14)
	if days < 1 {
		days = 1
	}
	if days > 365 {
		days = 365
	}
	return days
}

// --- Tool definitions ---

var toolListTemplates = mcp.NewTool("list_templates",
	mcp.WithDescription("List the user's workout templates with their exercises, default sets/weight/reps, and target volume."),
)

var toolGetTemplate = mcp.NewTool("get_template",
	mcp.WithDescription("Get one workout template by ID, including its exercises in order."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Template ID")),
)

var toolGetHistory = mcp.NewTool("get_history",
	mcp.WithDescription("Logged workout history grouped by day and template, with per-exercise set counts and volume (sets x weight x reps)."),
	mcp.WithNumber("days", mcp.Description("Trailing window in days. Defaults to 14, max 365.")),
)

var toolGetLatestLog = mcp.NewTool("get_latest_log",
	mcp.WithDescription("The most recent logged set for an exercise: weight, reps, and when it was logged."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise name (exact match)")),
)

// --- Tool handlers ---

func (h *handlers) listTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates, err := h.ds.ListTemplates(ctx, h.userID(ctx))
	if err != nil {
		h.log.Error("mcp list_templates", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(templates)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	t, err := h.ds.GetTemplate(ctx, id)
	if err != nil {
		h.log.Error("mcp get_template", "id", id, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(t)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// historyDay is the aggregated tool output for one (day, template) group.
type historyDay struct {
	Date      string                   `json:"date"`
	Template  string                   `json:"template,omitempty"`
	SetCount  int                      `json:"set_count"`
	Exercises []engine.ExerciseSummary `json:"exercises"`
}

func (h *handlers) getHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := windowDays(req)
	since := time.Now().AddDate(0, 0, -days)

	logs, err := h.ds.QueryLogsSince(ctx, h.userID(ctx), since)
	if err != nil {
		h.log.Error("mcp get_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	groups := engine.BuildHistory(logs)
	out := make([]historyDay, 0, len(groups))
	for _, g := range groups {
		out = append(out, historyDay{
			Date:      g.Date,
			Template:  g.Template,
			SetCount:  g.SetCount,
			Exercises: engine.BuildDayDetail(logs, g.Date, g.Template),
		})
	}

	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getLatestLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}

	log, err := h.ds.QueryLatestLog(ctx, h.userID(ctx), exercise)
	if err != nil {
		h.log.Error("mcp get_latest_log", "exercise", exercise, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if log == nil {
		return mcp.NewToolResultText("no logged sets for " + exercise), nil
	}

	result, err := mcp.NewToolResultJSON(log)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
