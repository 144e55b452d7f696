package engine

import (
	"context"
	"fmt"

	"github.com/meltforce/gymbot/internal/models"
)

// handleSkip drops the current exercise without persisting its logged sets.
func (e *Engine) handleSkip(ctx context.Context, ev Event, s *Session) (Reply, error) {
	s.Pending = nil
	s.Waiting = WaitNone
	e.dropRestTimer(ctx, s, false)

	if s.RemoveExercise(s.CurrentIndex) {
		return e.endSession(ctx, ev.UserID, s, "Workout complete! Great job! 🎉"), nil
	}
	return e.renderExerciseMenu(s), nil
}

// handleRemove drops the exercise at any index, chosen from the selection
// menu. Logged sets for it are discarded, the rest reindexed.
func (e *Engine) handleRemove(ctx context.Context, ev Event, s *Session, idx int) (Reply, error) {
	if idx < 0 || idx >= len(s.Exercises) {
		return e.renderExerciseMenu(s), nil
	}
	s.Pending = nil
	s.Waiting = WaitNone
	e.dropRestTimer(ctx, s, false)

	if s.RemoveExercise(idx) {
		return e.endSession(ctx, ev.UserID, s, "Workout complete! Great job! 🎉"), nil
	}
	return e.renderExerciseMenu(s), nil
}

// handleAddExerciseText appends a new exercise parsed from one free-text
// line. Indices of already-logged sets are untouched.
func (e *Engine) handleAddExerciseText(s *Session, text string) (Reply, error) {
	name, sets, weight, reps, err := parseExerciseLine(text)
	if err != nil {
		return reply(StateExerciseInput,
			fmt.Sprintf("Invalid format (%v). Enter 'Name Sets Weight Reps', e.g. 'Leg Press 3 80 10':", err), nil), nil
	}
	s.AddExercise(SessionExercise{Name: name, DefaultSets: sets, DefaultWeight: weight, DefaultReps: reps})
	s.Waiting = WaitNone
	return e.renderExerciseMenu(s), nil
}

// handleComplete flushes every filled slot of the current exercise to the
// log store, one row per slot, then removes the exercise with the same
// reindexing as skip.
func (e *Engine) handleComplete(ctx context.Context, ev Event, s *Session, idx int) (Reply, error) {
	if idx < 0 || idx >= len(s.Exercises) || idx != s.CurrentIndex {
		return e.renderExerciseMenu(s), nil
	}

	if err := e.flushExercise(ctx, ev.UserID, s, idx); err != nil {
		// Session state is preserved so the user can retry.
		e.log.Error("log flush failed", "user", ev.UserID, "exercise", s.Exercises[idx].Name, "error", err)
		return reply(StateExerciseConfirm, "Couldn't save your sets. Please try again.", nil), nil
	}

	s.Pending = nil
	s.Waiting = WaitNone
	e.dropRestTimer(ctx, s, false)

	if s.RemoveExercise(idx) {
		return e.endSession(ctx, ev.UserID, s, "Workout complete! Great job! 🎉"), nil
	}
	return e.renderConfirm(ctx, ev.UserID, s), nil
}

// flushExercise writes one WorkoutLog row per filled slot. Unfilled
// placeholders produce no rows. Each insert is its own transaction; a
// failure aborts the flush but earlier writes stand.
func (e *Engine) flushExercise(ctx context.Context, userID int64, s *Session, idx int) error {
	ex := s.Exercises[idx]
	for _, slot := range s.LoggedSets[idx] {
		if slot == nil {
			continue
		}
		log := models.WorkoutLog{
			UserID:       userID,
			TemplateName: s.TemplateName,
			ExerciseName: ex.Name,
			Sets:         1,
			Weight:       slot.Weight,
			Reps:         slot.Reps,
		}
		if err := e.repo.InsertLog(ctx, log); err != nil {
			return fmt.Errorf("flushing set for %s: %w", ex.Name, err)
		}
	}
	return nil
}

// handleEndWorkout flushes the filled slots of every remaining exercise and
// tears the session down. (/cancel is the discarding alternative.)
func (e *Engine) handleEndWorkout(ctx context.Context, ev Event, s *Session) (Reply, error) {
	saved := 0
	for idx := range s.Exercises {
		for _, slot := range s.LoggedSets[idx] {
			if slot != nil {
				saved++
			}
		}
		if err := e.flushExercise(ctx, ev.UserID, s, idx); err != nil {
			e.log.Error("end-workout flush failed", "user", ev.UserID, "error", err)
			return reply(StateExerciseSelect, "Couldn't save your sets. Please try again.", nil), nil
		}
	}

	text := "Workout ended."
	if saved > 0 {
		text = fmt.Sprintf("Workout ended. %d set(s) saved. 💪", saved)
	}
	return e.endSession(ctx, ev.UserID, s, text), nil
}

// endSession cancels any pending timer, clears the session and produces the
// terminal reply.
func (e *Engine) endSession(ctx context.Context, userID int64, s *Session, text string) Reply {
	e.dropRestTimer(ctx, s, true)
	e.sessions.Delete(userID)
	return reply(StateIdle, text, nil)
}
