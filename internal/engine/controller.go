package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meltforce/gymbot/internal/models"
)

// Repository is the persistence contract the engine depends on. It is
// satisfied by *storage.DB; tests use a fake.
type Repository interface {
	GetOrCreateUser(ctx context.Context, userID int64, username string) error
	ListTemplates(ctx context.Context, userID int64) ([]models.Template, error)
	GetTemplate(ctx context.Context, templateID int) (*models.Template, error)
	CreateTemplate(ctx context.Context, userID int64, name string, exercises []models.TemplateExercise) (int, error)
	RenameTemplate(ctx context.Context, templateID int, name string) error
	DeleteTemplate(ctx context.Context, templateID int) error
	AddTemplateExercise(ctx context.Context, templateID int, ex models.TemplateExercise) error
	UpdateTemplateExercise(ctx context.Context, exerciseID int, ex models.TemplateExercise) error
	DeleteTemplateExercise(ctx context.Context, exerciseID int) error
	InsertLog(ctx context.Context, log models.WorkoutLog) error
	QueryLogsSince(ctx context.Context, userID int64, since time.Time) ([]models.WorkoutLog, error)
	QueryLatestLog(ctx context.Context, userID int64, exerciseName string) (*models.WorkoutLog, error)
}

// Engine is the workout conversation engine. One inbound event is processed
// at a time per user (the gateway serializes per chat); different users'
// events run concurrently and share nothing but the stores.
type Engine struct {
	repo     Repository
	sched    Scheduler
	notify   Notifier
	sessions *SessionStore
	log      *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	drafts map[int64]*templateDraft
	edits  map[int64]*editState
}

// New creates an engine.
func New(repo Repository, sched Scheduler, notify Notifier, log *slog.Logger) *Engine {
	return &Engine{
		repo:     repo,
		sched:    sched,
		notify:   notify,
		sessions: NewSessionStore(),
		log:      log,
		now:      time.Now,
		drafts:   make(map[int64]*templateDraft),
		edits:    make(map[int64]*editState),
	}
}

// Handle processes one inbound event and returns the render request.
func (e *Engine) Handle(ctx context.Context, ev Event) (Reply, error) {
	switch ev.Kind {
	case EventCommand:
		return e.handleCommand(ctx, ev)
	case EventButton:
		return e.handleButton(ctx, ev)
	case EventText:
		return e.handleText(ctx, ev)
	}
	return Reply{}, fmt.Errorf("unknown event kind %d", ev.Kind)
}

func (e *Engine) handleCommand(ctx context.Context, ev Event) (Reply, error) {
	switch ev.Value {
	case "start":
		if err := e.repo.GetOrCreateUser(ctx, ev.UserID, ev.Username); err != nil {
			e.log.Error("user registration failed", "user", ev.UserID, "error", err)
		}
		return reply(StateIdle,
			"Welcome to GymBot! 💪\n"+
				"Commands:\n"+
				"/create_template - Create a new workout routine\n"+
				"/edit_template - Edit an existing routine\n"+
				"/start_workout - Start logging a workout\n"+
				"/history - View workout calendar", nil), nil

	case "start_workout":
		templates, err := e.repo.ListTemplates(ctx, ev.UserID)
		if err != nil {
			e.log.Error("listing templates failed", "user", ev.UserID, "error", err)
			return reply(StateIdle, "Something went wrong. Please try again.", nil), nil
		}
		if len(templates) == 0 {
			return reply(StateIdle, "No templates found. Use /create_template to add one first!", nil), nil
		}
		return e.renderTemplateSelect(templates), nil

	case "history":
		return e.handleHistory(ctx, ev)

	case "create_template":
		return e.startTemplateDraft(ev), nil

	case "edit_template":
		return e.startTemplateEdit(ctx, ev)

	case "done":
		return e.finishTemplateDraft(ctx, ev)

	case "cancel":
		return e.handleCancel(ctx, ev), nil
	}

	return Reply{}, fmt.Errorf("unknown command %q", ev.Value)
}

// handleCancel tears down whatever conversation is in progress. Unflushed
// session slots are discarded, unlike the end-workout button which saves
// them first.
func (e *Engine) handleCancel(ctx context.Context, ev Event) Reply {
	e.mu.Lock()
	delete(e.drafts, ev.UserID)
	delete(e.edits, ev.UserID)
	e.mu.Unlock()

	if s := e.sessions.Get(ev.UserID); s != nil {
		e.dropRestTimer(ctx, s, true)
		e.sessions.Delete(ev.UserID)
	}
	return reply(StateIdle, "Action canceled.", nil)
}

func (e *Engine) handleButton(ctx context.Context, ev Event) (Reply, error) {
	a, err := ParseAction(ev.Value)
	if err != nil {
		return Reply{}, err
	}

	// History and template-edit actions live outside a workout session.
	switch a.Kind {
	case ActionHistoryDay:
		return e.handleHistoryDay(ctx, ev, a)
	case ActionHistoryBack:
		return e.handleHistory(ctx, ev)
	case ActionSelectTemplate:
		return e.startSession(ctx, ev, a.TemplateID)
	case ActionEditTemplate, ActionEditRename, ActionEditExercise,
		ActionEditDelete, ActionEditAddExercise, ActionEditDone:
		return e.handleEditAction(ctx, ev, a)
	}

	s := e.sessions.Get(ev.UserID)
	if s == nil {
		return reply(StateIdle, "No active workout. Use /start_workout to begin.", nil), nil
	}

	switch a.Kind {
	case ActionSelectExercise:
		if a.Exercise < 0 || a.Exercise >= len(s.Exercises) {
			return e.renderExerciseMenu(s), nil
		}
		s.CurrentIndex = a.Exercise
		return e.renderConfirm(ctx, ev.UserID, s), nil

	case ActionRemoveExercise:
		return e.handleRemove(ctx, ev, s, a.Exercise)

	case ActionAddExercise:
		s.Waiting = WaitAddExercise
		s.State = StateExerciseInput
		return reply(StateExerciseInput,
			"Enter the new exercise as 'Name Sets Weight Reps', e.g. 'Leg Press 3 80 10':", nil), nil

	case ActionLogSet:
		return e.handleEnterSet(ctx, ev, s, a, false)
	case ActionEditSet:
		return e.handleEnterSet(ctx, ev, s, a, true)

	case ActionWeightValue:
		return e.handleWeightValue(ctx, ev, s, a.Value)
	case ActionWeightCustom:
		s.Waiting = WaitCustomWeight
		s.State = StateExerciseInput
		return reply(StateExerciseInput, "Enter custom weight (kg):", nil), nil
	case ActionWeightBack:
		return e.handleWeightBack(ctx, ev, s)

	case ActionRepsValue:
		return e.handleRepsValue(ctx, ev, s, int(a.Value))
	case ActionRepsCustom:
		s.Waiting = WaitCustomReps
		s.State = StateExerciseInput
		return reply(StateExerciseInput, "Enter custom reps:", nil), nil
	case ActionRepsBack:
		return e.handleRepsBack(s)

	case ActionUseDefaults:
		return e.handleUseDefaults(ctx, ev, s)
	case ActionUseExisting:
		return e.handleUseExisting(ctx, ev, s)

	case ActionRest:
		e.startRestTimer(ctx, ev.UserID, s, defaultRestSeconds)
		return e.renderConfirm(ctx, ev.UserID, s), nil
	case ActionCustomRest:
		s.Waiting = WaitCustomRest
		s.State = StateExerciseInput
		return reply(StateExerciseInput, "Enter rest time in seconds:", nil), nil
	case ActionCancelRest:
		e.dropRestTimer(ctx, s, true)
		return e.renderConfirm(ctx, ev.UserID, s), nil

	case ActionSkip:
		return e.handleSkip(ctx, ev, s)
	case ActionComplete:
		return e.handleComplete(ctx, ev, s, a.Exercise)
	case ActionBackToExercises:
		s.Pending = nil
		s.Waiting = WaitNone
		return e.renderExerciseMenu(s), nil
	case ActionEndWorkout:
		return e.handleEndWorkout(ctx, ev, s)
	}

	return Reply{}, fmt.Errorf("unhandled action kind %d", a.Kind)
}

// handleText routes a free-text message by whichever flow is waiting for
// it: template creation, template editing, then the workout session's
// awaiting-text flag.
func (e *Engine) handleText(ctx context.Context, ev Event) (Reply, error) {
	e.mu.Lock()
	draft := e.drafts[ev.UserID]
	edit := e.edits[ev.UserID]
	e.mu.Unlock()

	if draft != nil {
		return e.handleDraftText(ctx, ev, draft)
	}
	if edit != nil {
		return e.handleEditText(ctx, ev, edit)
	}

	s := e.sessions.Get(ev.UserID)
	if s == nil {
		return reply(StateIdle, "Not sure what you mean. Try /start for the command list.", nil), nil
	}

	switch s.Waiting {
	case WaitAddExercise:
		return e.handleAddExerciseText(s, ev.Value)
	case WaitCustomWeight:
		return e.handleCustomWeightText(s, ev.Value)
	case WaitCustomReps:
		return e.handleCustomRepsText(ctx, ev, s, ev.Value)
	case WaitCustomRest:
		return e.handleCustomRestText(ctx, ev, s, ev.Value)
	}

	// Mid-workout chatter with nothing awaited: re-show the menu.
	return e.renderExerciseMenu(s), nil
}

// startSession seeds a fresh session from a template, clearing any stale
// one (including its timer). The template name is snapshotted so later
// template edits never retroactively rename logs.
func (e *Engine) startSession(ctx context.Context, ev Event, templateID int) (Reply, error) {
	if prev := e.sessions.Get(ev.UserID); prev != nil {
		e.dropRestTimer(ctx, prev, true)
		e.sessions.Delete(ev.UserID)
	}

	t, err := e.repo.GetTemplate(ctx, templateID)
	if err != nil {
		e.log.Error("template load failed", "user", ev.UserID, "template", templateID, "error", err)
		return reply(StateIdle, "Couldn't load that template. Please try again.", nil), nil
	}

	s := &Session{
		ChatID:       ev.ChatID,
		TemplateName: t.Name,
		LoggedSets:   make(map[int][]*SetEntry),
		State:        StateExerciseSelect,
	}
	for _, ex := range t.Exercises {
		s.Exercises = append(s.Exercises, SessionExercise{
			Name:          ex.Name,
			DefaultSets:   ex.DefaultSets,
			DefaultWeight: ex.DefaultWeight,
			DefaultReps:   ex.DefaultReps,
		})
	}
	if len(s.Exercises) == 0 {
		return reply(StateIdle, "That template has no exercises. Edit it first with /edit_template.", nil), nil
	}

	e.sessions.Put(ev.UserID, s)
	return e.renderExerciseMenu(s), nil
}

// Sessions exposes the session store, used by the gateway for liveness
// checks and by tests.
func (e *Engine) Sessions() *SessionStore {
	return e.sessions
}
