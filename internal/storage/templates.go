package storage

import (
	"context"
	"fmt"

	"github.com/meltforce/gymbot/internal/models"
)

// ListTemplates retrieves all templates owned by a user, without exercises,
// ordered by name.
func (db *DB) ListTemplates(ctx context.Context, userID int64) ([]models.Template, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, name FROM templates WHERE user_id = $1 ORDER BY name ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var result []models.Template
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// GetTemplate retrieves a single template with its exercises ordered by position.
func (db *DB) GetTemplate(ctx context.Context, templateID int) (*models.Template, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, name FROM templates WHERE id = $1`, templateID)

	var t models.Template
	if err := row.Scan(&t.ID, &t.UserID, &t.Name); err != nil {
		return nil, fmt.Errorf("querying template: %w", err)
	}

	exRows, err := db.Pool.Query(ctx,
		`SELECT id, template_id, exercise_name, default_sets, default_weight, default_reps, position
		 FROM template_exercises
		 WHERE template_id = $1
		 ORDER BY position ASC`,
		templateID)
	if err != nil {
		return nil, fmt.Errorf("querying template exercises: %w", err)
	}
	defer exRows.Close()

	for exRows.Next() {
		var ex models.TemplateExercise
		if err := exRows.Scan(&ex.ID, &ex.TemplateID, &ex.Name,
			&ex.DefaultSets, &ex.DefaultWeight, &ex.DefaultReps, &ex.Position); err != nil {
			return nil, fmt.Errorf("scanning template exercise: %w", err)
		}
		t.Exercises = append(t.Exercises, ex)
	}
	return &t, exRows.Err()
}

// CreateTemplate inserts a template and its exercises in one transaction.
// Positions are assigned sequentially from the slice order. Returns the new
// template ID.
func (db *DB) CreateTemplate(ctx context.Context, userID int64, name string, exercises []models.TemplateExercise) (int, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int
	err = tx.QueryRow(ctx,
		`INSERT INTO templates (user_id, name) VALUES ($1, $2) RETURNING id`,
		userID, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting template: %w", err)
	}

	for i, ex := range exercises {
		_, err = tx.Exec(ctx,
			`INSERT INTO template_exercises (template_id, exercise_name, default_sets, default_weight, default_reps, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, ex.Name, ex.DefaultSets, ex.DefaultWeight, ex.DefaultReps, i)
		if err != nil {
			return 0, fmt.Errorf("inserting template exercise: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing template: %w", err)
	}
	return id, nil
}

// RenameTemplate updates a template's name.
func (db *DB) RenameTemplate(ctx context.Context, templateID int, name string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE templates SET name = $2 WHERE id = $1`, templateID, name)
	if err != nil {
		return fmt.Errorf("renaming template: %w", err)
	}
	return nil
}

// DeleteTemplate removes a template; exercises cascade at the schema level.
func (db *DB) DeleteTemplate(ctx context.Context, templateID int) error {
	_, err := db.Pool.Exec(ctx,
		`DELETE FROM templates WHERE id = $1`, templateID)
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	return nil
}

// AddTemplateExercise appends an exercise at the end of a template's list.
func (db *DB) AddTemplateExercise(ctx context.Context, templateID int, ex models.TemplateExercise) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO template_exercises (template_id, exercise_name, default_sets, default_weight, default_reps, position)
		 VALUES ($1, $2, $3, $4, $5,
			 (SELECT COALESCE(MAX(position) + 1, 0) FROM template_exercises WHERE template_id = $1))`,
		templateID, ex.Name, ex.DefaultSets, ex.DefaultWeight, ex.DefaultReps)
	if err != nil {
		return fmt.Errorf("adding template exercise: %w", err)
	}
	return nil
}

// UpdateTemplateExercise overwrites an exercise's name and default values.
func (db *DB) UpdateTemplateExercise(ctx context.Context, exerciseID int, ex models.TemplateExercise) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE template_exercises
		 SET exercise_name = $2, default_sets = $3, default_weight = $4, default_reps = $5
		 WHERE id = $1`,
		exerciseID, ex.Name, ex.DefaultSets, ex.DefaultWeight, ex.DefaultReps)
	if err != nil {
		return fmt.Errorf("updating template exercise: %w", err)
	}
	return nil
}

// DeleteTemplateExercise removes one exercise from a template.
func (db *DB) DeleteTemplateExercise(ctx context.Context, exerciseID int) error {
	_, err := db.Pool.Exec(ctx,
		`DELETE FROM template_exercises WHERE id = $1`, exerciseID)
	if err != nil {
		return fmt.Errorf("deleting template exercise: %w", err)
	}
	return nil
}
