package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

var resTemplates = mcp.NewResource(
	"gymbot://templates",
	"Workout Templates",
	mcp.WithResourceDescription("The user's workout templates with exercises and default sets/weight/reps"),
	mcp.WithMIMEType("application/json"),
)

var resRecentWorkouts = mcp.NewResource(
	"gymbot://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("Logged sets from the last 14 days"),
	mcp.WithMIMEType("application/json"),
)

func (h *handlers) templatesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	templates, err := h.ds.ListTemplates(ctx, h.userID(ctx))
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(templates)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *handlers) recentWorkoutsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	logs, err := h.ds.QueryLogsSince(ctx, h.userID(ctx), time.Now().AddDate(0, 0, -14))
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(logs)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
