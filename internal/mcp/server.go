package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer,
// falling back to the given default for single-user deployments.
func UserIDFromContext(ctx context.Context, fallback int64) int64 {
	if id, ok := ctx.Value(userIDKey).(int64); ok {
		return id
	}
	return fallback
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
// defaultUserID scopes queries when the transport does not bind a user.
func New(ds DataSource, version string, defaultUserID int64, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("GymBot", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Workout tracking bot data. Query workout templates, logged sets, and training history. All data is scoped to one Telegram user. Read-only: logging happens through the bot conversation."),
	)

	h := &handlers{ds: ds, defaultUser: defaultUserID, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolListTemplates, Handler: h.listTemplates},
		server.ServerTool{Tool: toolGetTemplate, Handler: h.getTemplate},
		server.ServerTool{Tool: toolGetHistory, Handler: h.getHistory},
		server.ServerTool{Tool: toolGetLatestLog, Handler: h.getLatestLog},
	)

	s.AddResources(
		server.ServerResource{Resource: resTemplates, Handler: h.templatesResource},
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkoutsResource},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds          DataSource
	defaultUser int64
	log         *slog.Logger
}

func (h *handlers) userID(ctx context.Context) int64 {
	return UserIDFromContext(ctx, h.defaultUser)
}
