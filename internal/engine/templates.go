package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/meltforce/gymbot/internal/models"
)

// templateDraft is the scratch state for the template-creation flow: a
// linear form fill of name, then exercise name / details pairs until /done.
type templateDraft struct {
	Stage           draftStage
	Name            string
	PendingExercise string
	Exercises       []models.TemplateExercise
}

type draftStage int

const (
	draftName draftStage = iota
	draftExerciseName
	draftExerciseDetails
)

// editState is the scratch state for the template-edit flow.
type editState struct {
	Stage      editStage
	TemplateID int
	ExerciseID int
}

type editStage int

const (
	editSelect editStage = iota
	editMenu
	editRename
	editExerciseDetails
	editAddDetails
)

func (e *Engine) startTemplateDraft(ev Event) Reply {
	e.mu.Lock()
	e.drafts[ev.UserID] = &templateDraft{Stage: draftName}
	delete(e.edits, ev.UserID)
	e.mu.Unlock()
	return reply(StateIdle,
		"Let's create a workout template. What specific name would you like to give this routine? (e.g., 'Leg Day')", nil)
}

func (e *Engine) handleDraftText(ctx context.Context, ev Event, d *templateDraft) (Reply, error) {
	text := strings.TrimSpace(ev.Value)

	switch d.Stage {
	case draftName:
		d.Name = text
		d.Stage = draftExerciseName
		return reply(StateIdle,
			fmt.Sprintf("Template '%s' started. Enter the first exercise name (or /done to finish):", text), nil), nil

	case draftExerciseName:
		d.PendingExercise = text
		d.Stage = draftExerciseDetails
		return reply(StateIdle,
			fmt.Sprintf("Enter default sets, weight (kg), and reps for %s separated by space (e.g., '3 50 10'):", text), nil), nil

	case draftExerciseDetails:
		sets, weight, reps, err := parseDetailsLine(text)
		if err != nil {
			return reply(StateIdle,
				"Invalid format. Please enter positive numbers as 'Sets Weight Reps' (e.g., '3 50 10'):", nil), nil
		}
		d.Exercises = append(d.Exercises, models.TemplateExercise{
			Name:          d.PendingExercise,
			DefaultSets:   sets,
			DefaultWeight: weight,
			DefaultReps:   reps,
		})
		d.Stage = draftExerciseName
		return reply(StateIdle, "Exercise added. Enter next exercise name (or /done to finish):", nil), nil
	}

	return Reply{}, fmt.Errorf("unknown draft stage %d", d.Stage)
}

// finishTemplateDraft handles /done: persists the draft.
func (e *Engine) finishTemplateDraft(ctx context.Context, ev Event) (Reply, error) {
	e.mu.Lock()
	d := e.drafts[ev.UserID]
	delete(e.drafts, ev.UserID)
	e.mu.Unlock()

	if d == nil {
		return reply(StateIdle, "Nothing to finish. Use /create_template to start a routine.", nil), nil
	}
	if len(d.Exercises) == 0 {
		return reply(StateIdle, "Cannot save template with no exercises. Use /create_template to start again.", nil), nil
	}

	if _, err := e.repo.CreateTemplate(ctx, ev.UserID, d.Name, d.Exercises); err != nil {
		e.log.Error("template save failed", "user", ev.UserID, "name", d.Name, "error", err)
		return reply(StateIdle, "Error saving template. Please try again.", nil), nil
	}
	return reply(StateIdle,
		fmt.Sprintf("Template '%s' saved with %d exercises! ✅", d.Name, len(d.Exercises)), nil), nil
}

// parseDetailsLine parses a "Sets Weight Reps" triple.
func parseDetailsLine(text string) (sets int, weight float64, reps int, err error) {
	parts := strings.Fields(text)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("want 3 fields, got %d", len(parts))
	}
	sets, err = strconv.Atoi(parts[0])
	if err != nil || sets <= 0 {
		return 0, 0, 0, fmt.Errorf("sets must be a positive whole number")
	}
	weight, err = strconv.ParseFloat(parts[1], 64)
	if err != nil || weight < 0 {
		return 0, 0, 0, fmt.Errorf("weight must be a non-negative number")
	}
	reps, err = strconv.Atoi(parts[2])
	if err != nil || reps <= 0 {
		return 0, 0, 0, fmt.Errorf("reps must be a positive whole number")
	}
	return sets, weight, reps, nil
}

func (e *Engine) startTemplateEdit(ctx context.Context, ev Event) (Reply, error) {
	templates, err := e.repo.ListTemplates(ctx, ev.UserID)
	if err != nil {
		e.log.Error("listing templates failed", "user", ev.UserID, "error", err)
		return reply(StateIdle, "Something went wrong. Please try again.", nil), nil
	}
	if len(templates) == 0 {
		return reply(StateIdle, "No templates found. Use /create_template to add one first!", nil), nil
	}

	e.mu.Lock()
	e.edits[ev.UserID] = &editState{Stage: editSelect}
	delete(e.drafts, ev.UserID)
	e.mu.Unlock()

	keyboard := make([][]Button, 0, len(templates))
	for _, t := range templates {
		keyboard = append(keyboard, []Button{{Label: t.Name, Tag: tagEditTemplate(t.ID)}})
	}
	return reply(StateIdle, "Select a template to edit:", keyboard), nil
}

func (e *Engine) handleEditAction(ctx context.Context, ev Event, a Action) (Reply, error) {
	e.mu.Lock()
	st := e.edits[ev.UserID]
	e.mu.Unlock()

	if a.Kind == ActionEditTemplate {
		if st == nil {
			st = &editState{}
			e.mu.Lock()
			e.edits[ev.UserID] = st
			e.mu.Unlock()
		}
		st.TemplateID = a.TemplateID
		st.Stage = editMenu
		return e.renderEditMenu(ctx, st)
	}

	if st == nil || st.TemplateID == 0 {
		return reply(StateIdle, "No template being edited. Use /edit_template first.", nil), nil
	}

	switch a.Kind {
	case ActionEditRename:
		st.Stage = editRename
		return reply(StateIdle, "Enter the new template name:", nil), nil

	case ActionEditAddExercise:
		st.Stage = editAddDetails
		return reply(StateIdle, "Enter the new exercise as 'Name Sets Weight Reps', e.g. 'Leg Press 3 80 10':", nil), nil

	case ActionEditExercise:
		t, err := e.repo.GetTemplate(ctx, st.TemplateID)
		if err != nil {
			e.log.Error("template load failed", "user", ev.UserID, "error", err)
			return reply(StateIdle, "Couldn't load that template. Please try again.", nil), nil
		}
		if a.Exercise < 0 || a.Exercise >= len(t.Exercises) {
			return e.renderEditMenu(ctx, st)
		}
		st.ExerciseID = t.Exercises[a.Exercise].ID
		st.Stage = editExerciseDetails
		return reply(StateIdle,
			fmt.Sprintf("Enter 'Name Sets Weight Reps' to replace %s:", t.Exercises[a.Exercise].Name), nil), nil

	case ActionEditDelete:
		t, err := e.repo.GetTemplate(ctx, st.TemplateID)
		if err != nil {
			e.log.Error("template load failed", "user", ev.UserID, "error", err)
			return reply(StateIdle, "Couldn't load that template. Please try again.", nil), nil
		}
		if a.Exercise < 0 || a.Exercise >= len(t.Exercises) {
			return e.renderEditMenu(ctx, st)
		}
		if err := e.repo.DeleteTemplateExercise(ctx, t.Exercises[a.Exercise].ID); err != nil {
			e.log.Error("exercise delete failed", "user", ev.UserID, "error", err)
			return reply(StateIdle, "Couldn't delete that exercise. Please try again.", nil), nil
		}
		return e.renderEditMenu(ctx, st)

	case ActionEditDone:
		e.mu.Lock()
		delete(e.edits, ev.UserID)
		e.mu.Unlock()
		return reply(StateIdle, "Template updated. ✅", nil), nil
	}

	return Reply{}, fmt.Errorf("unhandled edit action kind %d", a.Kind)
}

func (e *Engine) handleEditText(ctx context.Context, ev Event, st *editState) (Reply, error) {
	text := strings.TrimSpace(ev.Value)

	switch st.Stage {
	case editRename:
		if err := e.repo.RenameTemplate(ctx, st.TemplateID, text); err != nil {
			e.log.Error("template rename failed", "user", ev.UserID, "error", err)
			return reply(StateIdle, "Couldn't rename the template. Is the name already taken?", nil), nil
		}
		st.Stage = editMenu
		return e.renderEditMenu(ctx, st)

	case editExerciseDetails:
		name, sets, weight, reps, err := parseExerciseLine(text)
		if err != nil {
			return reply(StateIdle,
				fmt.Sprintf("Invalid format (%v). Enter 'Name Sets Weight Reps':", err), nil), nil
		}
		ex := models.TemplateExercise{Name: name, DefaultSets: sets, DefaultWeight: weight, DefaultReps: reps}
		if err := e.repo.UpdateTemplateExercise(ctx, st.ExerciseID, ex); err != nil {
			e.log.Error("exercise update failed", "user", ev.UserID, "error", err)
			return reply(StateIdle, "Couldn't update that exercise. Please try again.", nil), nil
		}
		st.Stage = editMenu
		return e.renderEditMenu(ctx, st)

	case editAddDetails:
		name, sets, weight, reps, err := parseExerciseLine(text)
		if err != nil {
			return reply(StateIdle,
				fmt.Sprintf("Invalid format (%v). Enter 'Name Sets Weight Reps':", err), nil), nil
		}
		ex := models.TemplateExercise{Name: name, DefaultSets: sets, DefaultWeight: weight, DefaultReps: reps}
		if err := e.repo.AddTemplateExercise(ctx, st.TemplateID, ex); err != nil {
			e.log.Error("exercise add failed", "user", ev.UserID, "error", err)
			return reply(StateIdle, "Couldn't add that exercise. Please try again.", nil), nil
		}
		st.Stage = editMenu
		return e.renderEditMenu(ctx, st)
	}

	// Menu or select stage with free text: just re-show the menu.
	return e.renderEditMenu(ctx, st)
}

// renderEditMenu shows the template's exercises with their target volume
// (sets x weight x reps) and the edit actions.
func (e *Engine) renderEditMenu(ctx context.Context, st *editState) (Reply, error) {
	t, err := e.repo.GetTemplate(ctx, st.TemplateID)
	if err != nil {
		return reply(StateIdle, "Couldn't load that template. Please try again.", nil), nil
	}

	keyboard := make([][]Button, 0, len(t.Exercises)+3)
	for i, ex := range t.Exercises {
		label := fmt.Sprintf("%s (%dx%.1fkgx%d) - %.1fkg vol",
			ex.Name, ex.DefaultSets, ex.DefaultWeight, ex.DefaultReps, ex.Volume())
		keyboard = append(keyboard, []Button{
			{Label: label, Tag: tagEditExercise(i)},
			{Label: "🗑", Tag: tagEditDelete(i)},
		})
	}
	keyboard = append(keyboard, []Button{{Label: "✏️ Rename", Tag: "e_name"}})
	keyboard = append(keyboard, []Button{{Label: "➕ Add Exercise", Tag: "e_add"}})
	keyboard = append(keyboard, []Button{{Label: "✅ Done", Tag: "e_done"}})

	st.Stage = editMenu
	return reply(StateIdle, fmt.Sprintf("Editing '%s':", t.Name), keyboard), nil
}
