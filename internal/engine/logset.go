package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// handleEnterSet starts the two-step weight/reps entry for one set, fresh
// (log_set) or editing an existing filled slot (edit_set).
func (e *Engine) handleEnterSet(ctx context.Context, ev Event, s *Session, a Action, editing bool) (Reply, error) {
	if a.Exercise < 0 || a.Exercise >= len(s.Exercises) || a.SetNum < 1 {
		// The list mutated since the button was rendered.
		return e.renderExerciseMenu(s), nil
	}
	s.CurrentIndex = a.Exercise

	p := &PendingEntry{Exercise: a.Exercise, SetNum: a.SetNum, Editing: editing}
	if editing {
		slot := s.Slot(a.Exercise, a.SetNum)
		if slot == nil {
			return e.renderConfirm(ctx, ev.UserID, s), nil
		}
		p.Weight = slot.Weight
		p.HasWeight = true
	}
	s.Pending = p
	s.Waiting = WaitNone
	return e.renderWeightStep(s), nil
}

func (e *Engine) handleWeightValue(ctx context.Context, ev Event, s *Session, weight float64) (Reply, error) {
	if s.Pending == nil {
		return e.renderConfirm(ctx, ev.UserID, s), nil
	}
	s.Pending.Weight = weight
	s.Pending.HasWeight = true
	return e.renderRepsStep(s), nil
}

func (e *Engine) handleWeightBack(ctx context.Context, ev Event, s *Session) (Reply, error) {
	s.Pending = nil
	s.Waiting = WaitNone
	return e.renderConfirm(ctx, ev.UserID, s), nil
}

func (e *Engine) handleRepsValue(ctx context.Context, ev Event, s *Session, reps int) (Reply, error) {
	if s.Pending == nil || !s.Pending.HasWeight {
		return e.renderConfirm(ctx, ev.UserID, s), nil
	}
	return e.finishEntry(ctx, ev, s, reps), nil
}

// handleRepsBack returns to the weight step. The pending weight is kept, so
// weight -> back -> weight shows the same options with the entry intact.
func (e *Engine) handleRepsBack(s *Session) (Reply, error) {
	s.Waiting = WaitNone
	return e.renderWeightStep(s), nil
}

// handleUseDefaults is the fast path for a fresh entry: skips both steps and
// writes the exercise's default weight and reps.
func (e *Engine) handleUseDefaults(ctx context.Context, ev Event, s *Session) (Reply, error) {
	p := s.Pending
	if p == nil || p.Editing || p.Exercise >= len(s.Exercises) {
		return e.renderConfirm(ctx, ev.UserID, s), nil
	}
	ex := s.Exercises[p.Exercise]
	s.SetSlot(p.Exercise, p.SetNum, SetEntry{Weight: ex.DefaultWeight, Reps: ex.DefaultReps})
	s.Pending = nil
	s.Waiting = WaitNone
	e.dropRestTimer(ctx, s, false)
	return e.renderConfirm(ctx, ev.UserID, s), nil
}

// handleUseExisting closes an edit entry without touching the stored slot.
func (e *Engine) handleUseExisting(ctx context.Context, ev Event, s *Session) (Reply, error) {
	if s.Pending != nil && !s.Pending.Editing {
		return e.renderConfirm(ctx, ev.UserID, s), nil
	}
	s.Pending = nil
	s.Waiting = WaitNone
	return e.renderConfirm(ctx, ev.UserID, s), nil
}

// finishEntry completes the two-step entry: stores the slot, clears the
// scratch state and supersedes any running rest timer.
func (e *Engine) finishEntry(ctx context.Context, ev Event, s *Session, reps int) Reply {
	p := s.Pending
	s.SetSlot(p.Exercise, p.SetNum, SetEntry{Weight: p.Weight, Reps: reps})
	s.Pending = nil
	s.Waiting = WaitNone
	e.dropRestTimer(ctx, s, false)
	return e.renderConfirm(ctx, ev.UserID, s)
}

// handleCustomWeightText parses free-text weight entry. Malformed input
// re-prompts the same step without any transition.
func (e *Engine) handleCustomWeightText(s *Session, text string) (Reply, error) {
	weight, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || weight < 0 {
		return reply(StateExerciseInput, "Invalid weight. Enter a non-negative number:", nil), nil
	}
	if s.Pending == nil {
		s.Waiting = WaitNone
		return e.renderExerciseMenu(s), nil
	}
	s.Pending.Weight = weight
	s.Pending.HasWeight = true
	s.Waiting = WaitNone
	return e.renderRepsStep(s), nil
}

// handleCustomRepsText parses free-text reps entry.
func (e *Engine) handleCustomRepsText(ctx context.Context, ev Event, s *Session, text string) (Reply, error) {
	reps, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || reps <= 0 {
		return reply(StateExerciseInput, "Invalid reps. Enter a positive whole number:", nil), nil
	}
	if s.Pending == nil || !s.Pending.HasWeight {
		s.Waiting = WaitNone
		return e.renderExerciseMenu(s), nil
	}
	return e.finishEntry(ctx, ev, s, reps), nil
}

// handleCustomRestText parses free-text rest seconds and starts the timer.
func (e *Engine) handleCustomRestText(ctx context.Context, ev Event, s *Session, text string) (Reply, error) {
	seconds, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || seconds <= 0 {
		return reply(StateExerciseInput, "Invalid rest time. Enter seconds as a positive whole number:", nil), nil
	}
	s.Waiting = WaitNone
	e.startRestTimer(ctx, ev.UserID, s, seconds)
	return e.renderConfirm(ctx, ev.UserID, s), nil
}

// parseExerciseLine parses "Name Sets Weight Reps" where the name may span
// multiple words. Used for mid-session add-exercise and the template flows.
func parseExerciseLine(text string) (name string, sets int, weight float64, reps int, err error) {
	fields := strings.Fields(text)
	if len(fields) < 4 {
		return "", 0, 0, 0, fmt.Errorf("want 'Name Sets Weight Reps', got %d fields", len(fields))
	}
	n := len(fields)
	sets, err = strconv.Atoi(fields[n-3])
	if err != nil || sets <= 0 {
		return "", 0, 0, 0, fmt.Errorf("sets must be a positive whole number")
	}
	weight, err = strconv.ParseFloat(fields[n-2], 64)
	if err != nil || weight < 0 {
		return "", 0, 0, 0, fmt.Errorf("weight must be a non-negative number")
	}
	reps, err = strconv.Atoi(fields[n-1])
	if err != nil || reps <= 0 {
		return "", 0, 0, 0, fmt.Errorf("reps must be a positive whole number")
	}
	return strings.Join(fields[:n-3], " "), sets, weight, reps, nil
}
