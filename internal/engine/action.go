package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionKind enumerates every recognized button tag.
type ActionKind int

const (
	ActionSelectTemplate  ActionKind = iota // tmpl_<id>
	ActionSelectExercise                    // ex_<idx>
	ActionLogSet                            // log_set_<exIdx>_<setNum>
	ActionEditSet                           // edit_set_<exIdx>_<setNum>
	ActionComplete                          // complete_<exIdx>
	ActionRemoveExercise                    // remove_exercise_<idx>
	ActionWeightValue                       // w_<value>
	ActionWeightCustom                      // w_custom
	ActionWeightBack                        // w_back
	ActionRepsValue                         // r_<value>
	ActionRepsCustom                        // r_custom
	ActionRepsBack                          // r_back
	ActionUseDefaults                       // use_defaults
	ActionUseExisting                       // use_existing_values
	ActionRest                              // rest
	ActionCustomRest                        // custom_rest
	ActionCancelRest                        // cancel_rest
	ActionSkip                              // skip
	ActionBackToExercises                   // back_to_exercise
	ActionEndWorkout                        // end_workout
	ActionAddExercise                       // add_exercise
	ActionHistoryDay                        // hist_<isoDate>_<templateName>
	ActionHistoryBack                       // hist_back

	// Template edit flow tags.
	ActionEditTemplate    // etmpl_<id>
	ActionEditRename      // e_name
	ActionEditExercise    // e_ex_<idx>
	ActionEditDelete      // e_del_<idx>
	ActionEditAddExercise // e_add
	ActionEditDone        // e_done
)

// Action is a button tag parsed into its tagged-union form. Only the fields
// relevant to Kind are set.
type Action struct {
	Kind       ActionKind
	TemplateID int
	Exercise   int
	SetNum     int
	Value      float64
	Date       string
	Template   string
}

// ParseAction parses a raw callback tag. Unrecognized tags are rejected with
// an error rather than falling through.
func ParseAction(tag string) (Action, error) {
	switch tag {
	case "w_custom":
		return Action{Kind: ActionWeightCustom}, nil
	case "w_back":
		return Action{Kind: ActionWeightBack}, nil
	case "r_custom":
		return Action{Kind: ActionRepsCustom}, nil
	case "r_back":
		return Action{Kind: ActionRepsBack}, nil
	case "use_defaults":
		return Action{Kind: ActionUseDefaults}, nil
	case "use_existing_values":
		return Action{Kind: ActionUseExisting}, nil
	case "rest":
		return Action{Kind: ActionRest}, nil
	case "custom_rest":
		return Action{Kind: ActionCustomRest}, nil
	case "cancel_rest":
		return Action{Kind: ActionCancelRest}, nil
	case "skip":
		return Action{Kind: ActionSkip}, nil
	case "back_to_exercise":
		return Action{Kind: ActionBackToExercises}, nil
	case "end_workout":
		return Action{Kind: ActionEndWorkout}, nil
	case "add_exercise":
		return Action{Kind: ActionAddExercise}, nil
	case "hist_back":
		return Action{Kind: ActionHistoryBack}, nil
	case "e_name":
		return Action{Kind: ActionEditRename}, nil
	case "e_add":
		return Action{Kind: ActionEditAddExercise}, nil
	case "e_done":
		return Action{Kind: ActionEditDone}, nil
	}

	switch {
	case strings.HasPrefix(tag, "tmpl_"):
		id, err := strconv.Atoi(tag[len("tmpl_"):])
		if err != nil {
			return Action{}, fmt.Errorf("bad template tag %q", tag)
		}
		return Action{Kind: ActionSelectTemplate, TemplateID: id}, nil

	case strings.HasPrefix(tag, "etmpl_"):
		id, err := strconv.Atoi(tag[len("etmpl_"):])
		if err != nil {
			return Action{}, fmt.Errorf("bad edit template tag %q", tag)
		}
		return Action{Kind: ActionEditTemplate, TemplateID: id}, nil

	case strings.HasPrefix(tag, "ex_"):
		idx, err := strconv.Atoi(tag[len("ex_"):])
		if err != nil {
			return Action{}, fmt.Errorf("bad exercise tag %q", tag)
		}
		return Action{Kind: ActionSelectExercise, Exercise: idx}, nil

	case strings.HasPrefix(tag, "log_set_"):
		ex, set, err := parseIndexPair(tag[len("log_set_"):])
		if err != nil {
			return Action{}, fmt.Errorf("bad log set tag %q", tag)
		}
		return Action{Kind: ActionLogSet, Exercise: ex, SetNum: set}, nil

	case strings.HasPrefix(tag, "edit_set_"):
		ex, set, err := parseIndexPair(tag[len("edit_set_"):])
		if err != nil {
			return Action{}, fmt.Errorf("bad edit set tag %q", tag)
		}
		return Action{Kind: ActionEditSet, Exercise: ex, SetNum: set}, nil

	case strings.HasPrefix(tag, "complete_"):
		idx, err := strconv.Atoi(tag[len("complete_"):])
		if err != nil {
			return Action{}, fmt.Errorf("bad complete tag %q", tag)
		}
		return Action{Kind: ActionComplete, Exercise: idx}, nil

	case strings.HasPrefix(tag, "remove_exercise_"):
		idx, err := strconv.Atoi(tag[len("remove_exercise_"):])
		if err != nil {
			return Action{}, fmt.Errorf("bad remove tag %q", tag)
		}
		return Action{Kind: ActionRemoveExercise, Exercise: idx}, nil

	case strings.HasPrefix(tag, "e_ex_"):
		idx, err := strconv.Atoi(tag[len("e_ex_"):])
		if err != nil {
			return Action{}, fmt.Errorf("bad edit exercise tag %q", tag)
		}
		return Action{Kind: ActionEditExercise, Exercise: idx}, nil

	case strings.HasPrefix(tag, "e_del_"):
		idx, err := strconv.Atoi(tag[len("e_del_"):])
		if err != nil {
			return Action{}, fmt.Errorf("bad edit delete tag %q", tag)
		}
		return Action{Kind: ActionEditDelete, Exercise: idx}, nil

	case strings.HasPrefix(tag, "w_"):
		v, err := strconv.ParseFloat(tag[len("w_"):], 64)
		if err != nil || v < 0 {
			return Action{}, fmt.Errorf("bad weight tag %q", tag)
		}
		return Action{Kind: ActionWeightValue, Value: v}, nil

	case strings.HasPrefix(tag, "r_"):
		v, err := strconv.Atoi(tag[len("r_"):])
		if err != nil || v <= 0 {
			return Action{}, fmt.Errorf("bad reps tag %q", tag)
		}
		return Action{Kind: ActionRepsValue, Value: float64(v)}, nil

	case strings.HasPrefix(tag, "hist_"):
		// hist_<isoDate>_<templateName>; the template name may itself
		// contain underscores, so the date is taken by fixed width.
		rest := tag[len("hist_"):]
		if len(rest) < len("2006-01-02")+2 || rest[len("2006-01-02")] != '_' {
			return Action{}, fmt.Errorf("bad history tag %q", tag)
		}
		date := rest[:len("2006-01-02")]
		name := rest[len("2006-01-02")+1:]
		return Action{Kind: ActionHistoryDay, Date: date, Template: name}, nil
	}

	return Action{}, fmt.Errorf("unrecognized tag %q", tag)
}

func parseIndexPair(s string) (int, int, error) {
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want two indices, got %q", s)
	}
	a, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// Tag builders. Render code emits tags only through these so the grammar
// stays in one place.

func tagTemplate(id int) string              { return fmt.Sprintf("tmpl_%d", id) }
func tagEditTemplate(id int) string          { return fmt.Sprintf("etmpl_%d", id) }
func tagExercise(idx int) string             { return fmt.Sprintf("ex_%d", idx) }
func tagLogSet(ex, set int) string           { return fmt.Sprintf("log_set_%d_%d", ex, set) }
func tagEditSet(ex, set int) string          { return fmt.Sprintf("edit_set_%d_%d", ex, set) }
func tagComplete(idx int) string             { return fmt.Sprintf("complete_%d", idx) }
func tagRemoveExercise(idx int) string       { return fmt.Sprintf("remove_exercise_%d", idx) }
func tagWeight(v int) string                 { return fmt.Sprintf("w_%d", v) }
func tagReps(v int) string                   { return fmt.Sprintf("r_%d", v) }
func tagHistoryDay(date, name string) string { return fmt.Sprintf("hist_%s_%s", date, name) }
func tagEditExercise(idx int) string         { return fmt.Sprintf("e_ex_%d", idx) }
func tagEditDelete(idx int) string           { return fmt.Sprintf("e_del_%d", idx) }
