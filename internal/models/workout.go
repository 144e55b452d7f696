package models

import (
	"time"

	"github.com/google/uuid"
)

// Template is a persisted, named workout routine with an ordered exercise list.
// Template names are unique per user.
type Template struct {
	ID        int
	UserID    int64
	Name      string
	Exercises []TemplateExercise
}

// TemplateExercise is one exercise spec within a template. Position is
// authoritative for ordering and assigned sequentially at write time.
type TemplateExercise struct {
	ID            int
	TemplateID    int
	Name          string
	DefaultSets   int
	DefaultWeight float64
	DefaultReps   int
	Position      int
}

// Volume returns the target training volume for the exercise
// (sets x weight x reps), used as a display metric.
func (e TemplateExercise) Volume() float64 {
	return float64(e.DefaultSets) * e.DefaultWeight * float64(e.DefaultReps)
}

// WorkoutLog is one logged set, ready for insertion into workout_logs.
// Rows are append-only: never updated or deleted. Sets is always 1, each
// performed set is its own row. TemplateName is a snapshot taken at session
// start, not a live reference.
type WorkoutLog struct {
	ID           uuid.UUID
	UserID       int64
	TemplateName string
	ExerciseName string
	Sets         int
	Weight       float64
	Reps         int
	CreatedAt    time.Time
}
