package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/meltforce/gymbot/internal/models"
)

// weightKeyboard offers common increments 10..100 in steps of 5, plus custom
// entry and back. extra is an optional row inserted before the back row
// (use_defaults or use_existing_values).
func weightKeyboard(extra []Button) [][]Button {
	var keyboard [][]Button
	var row []Button
	for v := 10; v <= 100; v += 5 {
		row = append(row, Button{Label: strconv.Itoa(v), Tag: tagWeight(v)})
		if len(row) == 4 {
			keyboard = append(keyboard, row)
			row = nil
		}
	}
	row = append(row, Button{Label: "Custom", Tag: "w_custom"})
	keyboard = append(keyboard, row)
	if len(extra) > 0 {
		keyboard = append(keyboard, extra)
	}
	keyboard = append(keyboard, []Button{{Label: "⬅️ Back", Tag: "w_back"}})
	return keyboard
}

// repsKeyboard offers 1..20 plus custom entry and back-to-weight.
func repsKeyboard() [][]Button {
	var keyboard [][]Button
	var row []Button
	for v := 1; v <= 20; v++ {
		row = append(row, Button{Label: strconv.Itoa(v), Tag: tagReps(v)})
		if len(row) == 4 {
			keyboard = append(keyboard, row)
			row = nil
		}
	}
	keyboard = append(keyboard, []Button{{Label: "Custom", Tag: "r_custom"}})
	keyboard = append(keyboard, []Button{{Label: "⬅️ Back to Weight", Tag: "r_back"}})
	return keyboard
}

func (e *Engine) renderTemplateSelect(templates []models.Template) Reply {
	keyboard := make([][]Button, 0, len(templates))
	for _, t := range templates {
		keyboard = append(keyboard, []Button{{Label: t.Name, Tag: tagTemplate(t.ID)}})
	}
	return reply(StateTemplateSelect, "Select a workout template:", keyboard)
}

// renderExerciseMenu shows the remaining exercises with per-row remove
// actions, plus add-exercise and end-workout.
func (e *Engine) renderExerciseMenu(s *Session) Reply {
	keyboard := make([][]Button, 0, len(s.Exercises)+2)
	for i, ex := range s.Exercises {
		label := fmt.Sprintf("%s (%d/%d sets)", ex.Name, s.FilledCount(i), ex.DefaultSets)
		keyboard = append(keyboard, []Button{
			{Label: label, Tag: tagExercise(i)},
			{Label: "🗑", Tag: tagRemoveExercise(i)},
		})
	}
	keyboard = append(keyboard, []Button{{Label: "➕ Add Exercise", Tag: "add_exercise"}})
	keyboard = append(keyboard, []Button{{Label: "🏁 End Workout", Tag: "end_workout"}})

	s.State = StateExerciseSelect
	return reply(StateExerciseSelect, fmt.Sprintf("Workout: %s\nPick an exercise:", s.TemplateName), keyboard)
}

// renderConfirm shows the exercise confirm screen: progress, most recent
// historical performance, per-set log/edit buttons and session actions.
func (e *Engine) renderConfirm(ctx context.Context, userID int64, s *Session) Reply {
	idx := s.CurrentIndex
	ex := s.Current()

	prevText := "No history"
	prev, err := e.repo.QueryLatestLog(ctx, userID, ex.Name)
	if err != nil {
		e.log.Warn("latest log lookup failed", "user", userID, "exercise", ex.Name, "error", err)
	} else if prev != nil {
		prevText = fmt.Sprintf("%ds x %.1fkg x %d", prev.Sets, prev.Weight, prev.Reps)
	}

	text := fmt.Sprintf(
		"Exercise %d/%d: %s\nProgress: %d/%d sets completed\nPrevious: %s\nTarget: %ds x %.1fkg x %d",
		idx+1, len(s.Exercises), ex.Name,
		s.FilledCount(idx), ex.DefaultSets,
		prevText,
		ex.DefaultSets, ex.DefaultWeight, ex.DefaultReps,
	)

	var keyboard [][]Button
	var row []Button
	for n := 1; n <= ex.DefaultSets; n++ {
		b := Button{Label: fmt.Sprintf("Log Set %d", n), Tag: tagLogSet(idx, n)}
		if s.Slot(idx, n) != nil {
			b = Button{Label: fmt.Sprintf("✏️ Set %d", n), Tag: tagEditSet(idx, n)}
		}
		row = append(row, b)
		if len(row) == 2 {
			keyboard = append(keyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		keyboard = append(keyboard, row)
	}

	restRow := []Button{
		{Label: "⏰ Rest 5m", Tag: "rest"},
		{Label: "⏱ Custom Rest", Tag: "custom_rest"},
	}
	if s.RestJob != uuid.Nil {
		restRow = append(restRow, Button{Label: "✖️ Cancel Rest", Tag: "cancel_rest"})
	}
	keyboard = append(keyboard, restRow)
	keyboard = append(keyboard, []Button{
		{Label: "✅ Complete", Tag: tagComplete(idx)},
		{Label: "Skip ➡️", Tag: "skip"},
	})
	keyboard = append(keyboard, []Button{{Label: "⬅️ Exercise List", Tag: "back_to_exercise"}})

	s.State = StateExerciseConfirm
	return reply(StateExerciseConfirm, text, keyboard)
}

func (e *Engine) renderWeightStep(s *Session) Reply {
	var extra []Button
	if s.Pending != nil {
		if s.Pending.Editing {
			extra = []Button{{Label: "Keep Existing Values", Tag: "use_existing_values"}}
		} else {
			extra = []Button{{Label: "Use Defaults", Tag: "use_defaults"}}
		}
	}
	s.State = StateExerciseInput
	return reply(StateExerciseInput, "Select weight for this set:", weightKeyboard(extra))
}

func (e *Engine) renderRepsStep(s *Session) Reply {
	text := "Select reps for this set:"
	if s.Pending != nil && s.Pending.HasWeight {
		text = fmt.Sprintf("Weight: %.1fkg\nSelect reps for this set:", s.Pending.Weight)
	}
	s.State = StateExerciseInput
	return reply(StateExerciseInput, text, repsKeyboard())
}
