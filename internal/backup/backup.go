package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meltforce/gymbot/internal/models"
)

// Source is the read side of a backup: everything needed to snapshot one
// user's data. *storage.DB satisfies it.
type Source interface {
	ListTemplates(ctx context.Context, userID int64) ([]models.Template, error)
	GetTemplate(ctx context.Context, id int) (*models.Template, error)
	QueryLogsSince(ctx context.Context, userID int64, since time.Time) ([]models.WorkoutLog, error)
}

// Writer writes a snapshot into a single SQLite file, suitable for copying
// off-host or inspecting with any sqlite client.
type Writer struct {
	db *sql.DB
}

// Create opens (or truncates) the snapshot file at path and prepares the
// schema.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating backup dir %s: %w", dir, err)
		}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale backup %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening backup db: %w", err)
	}

	schema := []string{
		`CREATE TABLE templates (
			id      INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL,
			name    TEXT NOT NULL
		)`,
		`CREATE TABLE template_exercises (
			id             INTEGER PRIMARY KEY,
			template_id    INTEGER NOT NULL REFERENCES templates(id),
			name           TEXT NOT NULL,
			default_sets   INTEGER NOT NULL,
			default_weight REAL NOT NULL,
			default_reps   INTEGER NOT NULL,
			position       INTEGER NOT NULL
		)`,
		`CREATE TABLE workout_logs (
			id            TEXT PRIMARY KEY,
			user_id       INTEGER NOT NULL,
			template_name TEXT,
			exercise_name TEXT NOT NULL,
			sets          INTEGER NOT NULL,
			weight        REAL NOT NULL,
			reps          INTEGER NOT NULL,
			created_at    TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating backup schema: %w", err)
		}
	}

	return &Writer{db: db}, nil
}

// WriteTemplates stores templates and their exercises.
func (w *Writer) WriteTemplates(templates []models.Template) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning template write: %w", err)
	}
	defer tx.Rollback()

	for _, t := range templates {
		if _, err := tx.Exec(
			`INSERT INTO templates (id, user_id, name) VALUES (?, ?, ?)`,
			t.ID, t.UserID, t.Name,
		); err != nil {
			return fmt.Errorf("writing template %q: %w", t.Name, err)
		}
		for _, ex := range t.Exercises {
			if _, err := tx.Exec(
				`INSERT INTO template_exercises (id, template_id, name, default_sets, default_weight, default_reps, position)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				ex.ID, t.ID, ex.Name, ex.DefaultSets, ex.DefaultWeight, ex.DefaultReps, ex.Position,
			); err != nil {
				return fmt.Errorf("writing exercise %q: %w", ex.Name, err)
			}
		}
	}
	return tx.Commit()
}

// WriteLogs stores workout log rows.
func (w *Writer) WriteLogs(logs []models.WorkoutLog) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning log write: %w", err)
	}
	defer tx.Rollback()

	for _, l := range logs {
		if _, err := tx.Exec(
			`INSERT INTO workout_logs (id, user_id, template_name, exercise_name, sets, weight, reps, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID.String(), l.UserID, l.TemplateName, l.ExerciseName, l.Sets, l.Weight, l.Reps, l.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("writing log %s: %w", l.ID, err)
		}
	}
	return tx.Commit()
}

// Close closes the snapshot file.
func (w *Writer) Close() error {
	return w.db.Close()
}

// Stats summarizes what a Run wrote.
type Stats struct {
	Templates int
	Logs      int
}

// Run snapshots one user's templates and logs since the given time into a
// SQLite file at path.
func Run(ctx context.Context, src Source, userID int64, since time.Time, path string) (Stats, error) {
	templates, err := src.ListTemplates(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("listing templates: %w", err)
	}
	// ListTemplates omits exercises; fetch each template in full.
	full := make([]models.Template, 0, len(templates))
	for _, t := range templates {
		loaded, err := src.GetTemplate(ctx, t.ID)
		if err != nil {
			return Stats{}, fmt.Errorf("loading template %d: %w", t.ID, err)
		}
		full = append(full, *loaded)
	}

	logs, err := src.QueryLogsSince(ctx, userID, since)
	if err != nil {
		return Stats{}, fmt.Errorf("querying logs: %w", err)
	}

	w, err := Create(path)
	if err != nil {
		return Stats{}, err
	}
	defer w.Close()

	if err := w.WriteTemplates(full); err != nil {
		return Stats{}, err
	}
	if err := w.WriteLogs(logs); err != nil {
		return Stats{}, err
	}

	return Stats{Templates: len(full), Logs: len(logs)}, nil
}
