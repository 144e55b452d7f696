package mcp

import (
	"context"
	"time"

	"github.com/meltforce/gymbot/internal/models"
	"github.com/meltforce/gymbot/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Read-only: the tools
// never mutate templates or logs, the conversation flow owns all writes.
type DataSource interface {
	ListTemplates(ctx context.Context, userID int64) ([]models.Template, error)
	GetTemplate(ctx context.Context, id int) (*models.Template, error)
	QueryLogsSince(ctx context.Context, userID int64, since time.Time) ([]models.WorkoutLog, error)
	QueryLatestLog(ctx context.Context, userID int64, exerciseName string) (*models.WorkoutLog, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
