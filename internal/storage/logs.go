package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/gymbot/internal/models"
)

// InsertLog appends one workout log row. The timestamp is server-assigned.
func (db *DB) InsertLog(ctx context.Context, log models.WorkoutLog) error {
	id := log.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO workout_logs (id, user_id, template_name, exercise_name, sets, weight, reps)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`,
		id, log.UserID, log.TemplateName, log.ExerciseName, log.Sets, log.Weight, log.Reps)
	if err != nil {
		return fmt.Errorf("inserting workout log: %w", err)
	}
	return nil
}

// QueryLogsSince retrieves a user's logs with created_at >= since,
// newest first.
func (db *DB) QueryLogsSince(ctx context.Context, userID int64, since time.Time) ([]models.WorkoutLog, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, COALESCE(template_name, ''), exercise_name, sets, weight, reps, created_at
		 FROM workout_logs
		 WHERE user_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC`,
		userID, since)
	if err != nil {
		return nil, fmt.Errorf("querying workout logs: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutLog
	for rows.Next() {
		var l models.WorkoutLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.TemplateName, &l.ExerciseName,
			&l.Sets, &l.Weight, &l.Reps, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning workout log: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

// QueryLatestLog retrieves a user's most recent log for one exercise name,
// or nil if none exists.
func (db *DB) QueryLatestLog(ctx context.Context, userID int64, exerciseName string) (*models.WorkoutLog, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, COALESCE(template_name, ''), exercise_name, sets, weight, reps, created_at
		 FROM workout_logs
		 WHERE user_id = $1 AND exercise_name = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID, exerciseName)

	var l models.WorkoutLog
	err := row.Scan(&l.ID, &l.UserID, &l.TemplateName, &l.ExerciseName,
		&l.Sets, &l.Weight, &l.Reps, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest log: %w", err)
	}
	return &l, nil
}
