package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/gymbot/internal/models"
)

// fakeRepo is an in-memory Repository for engine tests.
type fakeRepo struct {
	mu         sync.Mutex
	templates  []models.Template
	logs       []models.WorkoutLog
	lastSince  time.Time
	failInsert bool
}

func (r *fakeRepo) GetOrCreateUser(ctx context.Context, userID int64, username string) error {
	return nil
}

func (r *fakeRepo) ListTemplates(ctx context.Context, userID int64) ([]models.Template, error) {
	var out []models.Template
	for _, t := range r.templates {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetTemplate(ctx context.Context, id int) (*models.Template, error) {
	for i := range r.templates {
		if r.templates[i].ID == id {
			t := r.templates[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("template %d not found", id)
}

func (r *fakeRepo) CreateTemplate(ctx context.Context, userID int64, name string, exercises []models.TemplateExercise) (int, error) {
	id := len(r.templates) + 1
	r.templates = append(r.templates, models.Template{ID: id, UserID: userID, Name: name, Exercises: exercises})
	return id, nil
}

func (r *fakeRepo) RenameTemplate(ctx context.Context, id int, name string) error {
	for i := range r.templates {
		if r.templates[i].ID == id {
			r.templates[i].Name = name
			return nil
		}
	}
	return fmt.Errorf("template %d not found", id)
}

func (r *fakeRepo) DeleteTemplate(ctx context.Context, id int) error { return nil }

func (r *fakeRepo) AddTemplateExercise(ctx context.Context, templateID int, ex models.TemplateExercise) error {
	for i := range r.templates {
		if r.templates[i].ID == templateID {
			ex.ID = 1000 + len(r.templates[i].Exercises)
			r.templates[i].Exercises = append(r.templates[i].Exercises, ex)
			return nil
		}
	}
	return fmt.Errorf("template %d not found", templateID)
}

func (r *fakeRepo) UpdateTemplateExercise(ctx context.Context, exerciseID int, ex models.TemplateExercise) error {
	for i := range r.templates {
		for j := range r.templates[i].Exercises {
			if r.templates[i].Exercises[j].ID == exerciseID {
				ex.ID = exerciseID
				r.templates[i].Exercises[j] = ex
				return nil
			}
		}
	}
	return fmt.Errorf("exercise %d not found", exerciseID)
}

func (r *fakeRepo) DeleteTemplateExercise(ctx context.Context, exerciseID int) error {
	for i := range r.templates {
		for j := range r.templates[i].Exercises {
			if r.templates[i].Exercises[j].ID == exerciseID {
				exs := r.templates[i].Exercises
				r.templates[i].Exercises = append(exs[:j], exs[j+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("exercise %d not found", exerciseID)
}

func (r *fakeRepo) InsertLog(ctx context.Context, log models.WorkoutLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert {
		return fmt.Errorf("insert refused")
	}
	log.CreatedAt = time.Now()
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeRepo) QueryLogsSince(ctx context.Context, userID int64, since time.Time) ([]models.WorkoutLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSince = since
	var out []models.WorkoutLog
	for _, l := range r.logs {
		if l.UserID == userID && !l.CreatedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeRepo) QueryLatestLog(ctx context.Context, userID int64, exerciseName string) (*models.WorkoutLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.WorkoutLog
	for i := range r.logs {
		l := r.logs[i]
		if l.UserID != userID || l.ExerciseName != exerciseName {
			continue
		}
		if best == nil || l.CreatedAt.After(best.CreatedAt) {
			best = &l
		}
	}
	return best, nil
}

// fakeSched records scheduled jobs without running them.
type fakeSched struct {
	scheduled []scheduledJob
	canceled  []uuid.UUID
}

type scheduledJob struct {
	id uuid.UUID
	d  time.Duration
	fn func()
}

func (s *fakeSched) Schedule(d time.Duration, fn func()) (uuid.UUID, error) {
	id := uuid.New()
	s.scheduled = append(s.scheduled, scheduledJob{id: id, d: d, fn: fn})
	return id, nil
}

func (s *fakeSched) Cancel(id uuid.UUID) {
	s.canceled = append(s.canceled, id)
}

// fakeNotifier records sent and deleted messages.
type fakeNotifier struct {
	mu      sync.Mutex
	nextID  int
	sent    []string
	deleted []int
	failAll bool
}

func (n *fakeNotifier) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failAll {
		return 0, fmt.Errorf("send refused")
	}
	n.nextID++
	n.sent = append(n.sent, text)
	return n.nextID, nil
}

func (n *fakeNotifier) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failAll {
		return fmt.Errorf("delete refused")
	}
	n.deleted = append(n.deleted, messageID)
	return nil
}

func newTestEngine(repo *fakeRepo) (*Engine, *fakeSched, *fakeNotifier) {
	sched := &fakeSched{}
	notify := &fakeNotifier{}
	e := New(repo, sched, notify, slog.New(slog.DiscardHandler))
	return e, sched, notify
}

func legDayRepo() *fakeRepo {
	return &fakeRepo{
		templates: []models.Template{{
			ID: 1, UserID: 7, Name: "Leg Day",
			Exercises: []models.TemplateExercise{
				{ID: 11, Name: "Squat", DefaultSets: 3, DefaultWeight: 100, DefaultReps: 5, Position: 0},
				{ID: 12, Name: "Lunges", DefaultSets: 3, DefaultWeight: 0, DefaultReps: 10, Position: 1},
			},
		}},
	}
}

func cmd(name string) Event    { return Event{Kind: EventCommand, UserID: 7, ChatID: 70, Value: name} }
func btn(tag string) Event     { return Event{Kind: EventButton, UserID: 7, ChatID: 70, Value: tag} }
func txt(content string) Event { return Event{Kind: EventText, UserID: 7, ChatID: 70, Value: content} }

func mustHandle(t *testing.T, e *Engine, ev Event) Reply {
	t.Helper()
	r, err := e.Handle(context.Background(), ev)
	if err != nil {
		t.Fatalf("Handle(%v %q) error: %v", ev.Kind, ev.Value, err)
	}
	return r
}

func hasButton(r Reply, tag string) bool {
	for _, row := range r.Keyboard {
		for _, b := range row {
			if b.Tag == tag {
				return true
			}
		}
	}
	return false
}

// TestLegDayScenario walks the full default-log / skip / complete scenario:
// logging set 1 of Squat with defaults shows 1/3 progress, skipping Squat
// reindexes Lunges to index 0, and completing Lunges without logged sets
// writes no rows and ends the session.
func TestLegDayScenario(t *testing.T) {
	repo := legDayRepo()
	e, _, _ := newTestEngine(repo)

	r := mustHandle(t, e, cmd("start_workout"))
	if !hasButton(r, "tmpl_1") {
		t.Fatalf("template keyboard missing tmpl_1: %+v", r.Keyboard)
	}

	r = mustHandle(t, e, btn("tmpl_1"))
	if r.State != StateExerciseSelect {
		t.Fatalf("state = %v, want exercise select", r.State)
	}

	mustHandle(t, e, btn("ex_0"))
	r = mustHandle(t, e, btn("log_set_0_1"))
	if !hasButton(r, "use_defaults") {
		t.Fatalf("fresh entry missing use_defaults: %+v", r.Keyboard)
	}

	r = mustHandle(t, e, btn("use_defaults"))
	if !strings.Contains(r.Text, "1/3") {
		t.Fatalf("progress = %q, want 1/3", r.Text)
	}

	s := e.Sessions().Get(7)
	if got := s.Slot(0, 1); got == nil || got.Weight != 100 || got.Reps != 5 {
		t.Fatalf("slot = %+v, want {100 5}", got)
	}

	r = mustHandle(t, e, btn("skip"))
	s = e.Sessions().Get(7)
	if len(s.Exercises) != 1 || s.Exercises[0].Name != "Lunges" {
		t.Fatalf("exercises after skip = %+v, want [Lunges]", s.Exercises)
	}
	if s.CurrentIndex != 0 {
		t.Fatalf("currentIndex = %d, want 0", s.CurrentIndex)
	}
	if len(repo.logs) != 0 {
		t.Fatalf("skip flushed %d rows, want 0", len(repo.logs))
	}

	mustHandle(t, e, btn("ex_0"))
	r = mustHandle(t, e, btn("complete_0"))
	if !strings.Contains(r.Text, "Workout complete") {
		t.Fatalf("terminal text = %q", r.Text)
	}
	if len(repo.logs) != 0 {
		t.Fatalf("complete with no filled slots wrote %d rows, want 0", len(repo.logs))
	}
	if e.Sessions().Get(7) != nil {
		t.Fatal("session not cleared after completion")
	}
}

// TestCustomEntryAndEditKeepsSlot covers the two-step custom entry and the
// keep-existing-values edit path.
func TestCustomEntryAndEditKeepsSlot(t *testing.T) {
	e, _, _ := newTestEngine(legDayRepo())

	mustHandle(t, e, cmd("start_workout"))
	mustHandle(t, e, btn("tmpl_1"))
	mustHandle(t, e, btn("ex_0"))
	mustHandle(t, e, btn("log_set_0_1"))
	mustHandle(t, e, btn("w_custom"))
	r := mustHandle(t, e, txt("55"))
	if !strings.Contains(r.Text, "55.0kg") {
		t.Fatalf("reps step text = %q, want weight echo", r.Text)
	}
	mustHandle(t, e, btn("r_custom"))
	r = mustHandle(t, e, txt("8"))
	if !strings.Contains(r.Text, "1/3") {
		t.Fatalf("progress = %q, want 1/3", r.Text)
	}

	s := e.Sessions().Get(7)
	if got := s.Slot(0, 1); got == nil || got.Weight != 55 || got.Reps != 8 {
		t.Fatalf("slot = %+v, want {55 8}", got)
	}

	// Edit the same set but keep the stored values.
	r = mustHandle(t, e, btn("edit_set_0_1"))
	if !hasButton(r, "use_existing_values") {
		t.Fatalf("edit entry missing use_existing_values: %+v", r.Keyboard)
	}
	r = mustHandle(t, e, btn("use_existing_values"))
	if !strings.Contains(r.Text, "1/3") {
		t.Fatalf("progress after no-op edit = %q, want 1/3", r.Text)
	}
	if got := s.Slot(0, 1); got == nil || got.Weight != 55 || got.Reps != 8 {
		t.Fatalf("slot changed by use_existing_values: %+v", got)
	}
}

// TestRepsBackKeepsWeight covers back navigation from the reps step: the
// pending weight survives and the weight step is shown again.
func TestRepsBackKeepsWeight(t *testing.T) {
	e, _, _ := newTestEngine(legDayRepo())

	mustHandle(t, e, cmd("start_workout"))
	mustHandle(t, e, btn("tmpl_1"))
	mustHandle(t, e, btn("ex_0"))
	mustHandle(t, e, btn("log_set_0_1"))
	mustHandle(t, e, btn("w_55"))
	r := mustHandle(t, e, btn("r_back"))
	if !hasButton(r, "w_55") {
		t.Fatalf("weight step not re-shown: %+v", r.Keyboard)
	}

	s := e.Sessions().Get(7)
	if s.Pending == nil || !s.Pending.HasWeight || s.Pending.Weight != 55 {
		t.Fatalf("pending = %+v, want weight 55 kept", s.Pending)
	}

	// Completing from here still lands the original weight.
	mustHandle(t, e, btn("w_60"))
	mustHandle(t, e, btn("r_8"))
	if got := s.Slot(0, 1); got == nil || got.Weight != 60 || got.Reps != 8 {
		t.Fatalf("slot = %+v, want {60 8}", got)
	}
}

// TestWeightBackAbandonsEntry covers w_back: the pending entry is discarded
// and the confirm screen re-rendered.
func TestWeightBackAbandonsEntry(t *testing.T) {
	e, _, _ := newTestEngine(legDayRepo())

	mustHandle(t, e, cmd("start_workout"))
	mustHandle(t, e, btn("tmpl_1"))
	mustHandle(t, e, btn("ex_0"))
	mustHandle(t, e, btn("log_set_0_1"))
	r := mustHandle(t, e, btn("w_back"))
	if r.State != StateExerciseConfirm {
		t.Fatalf("state = %v, want confirm", r.State)
	}
	if s := e.Sessions().Get(7); s.Pending != nil {
		t.Fatalf("pending not discarded: %+v", s.Pending)
	}
}

// TestCompleteFlushesOnlyFilledSlots logs set 2 out of order (set 1 stays an
// unfilled placeholder) and completes: exactly one row must be written.
func TestCompleteFlushesOnlyFilledSlots(t *testing.T) {
	repo := legDayRepo()
	e, _, _ := newTestEngine(repo)

	mustHandle(t, e, cmd("start_workout"))
	mustHandle(t, e, btn("tmpl_1"))
	mustHandle(t, e, btn("ex_0"))
	mustHandle(t, e, btn("log_set_0_2"))
	mustHandle(t, e, btn("w_80"))
	mustHandle(t, e, btn("r_5"))

	s := e.Sessions().Get(7)
	if n := len(s.LoggedSets[0]); n != 2 {
		t.Fatalf("slot list length = %d, want 2 (placeholder + filled)", n)
	}
	if s.Slot(0, 1) != nil {
		t.Fatal("set 1 should be an unfilled placeholder")
	}

	mustHandle(t, e, btn("complete_0"))
	if len(repo.logs) != 1 {
		t.Fatalf("flushed %d rows, want 1", len(repo.logs))
	}
	l := repo.logs[0]
	if l.ExerciseName != "Squat" || l.Weight != 80 || l.Reps != 5 || l.Sets != 1 {
		t.Fatalf("flushed row = %+v", l)
	}
	if l.TemplateName != "Leg Day" {
		t.Fatalf("template snapshot = %q, want Leg Day", l.TemplateName)
	}
}

// TestRemoveReindexesLoggedSets removes the middle exercise of three and
// checks the loggedSets keys are the image of the reindexing rule.
func TestRemoveReindexesLoggedSets(t *testing.T) {
	repo := legDayRepo()
	repo.templates[0].Exercises = append(repo.templates[0].Exercises,
		models.TemplateExercise{ID: 13, Name: "Leg Press", DefaultSets: 3, DefaultWeight: 120, DefaultReps: 8, Position: 2})
	e, _, _ := newTestEngine(repo)

	mustHandle(t, e, cmd("start_workout"))
	mustHandle(t, e, btn("tmpl_1"))

	s := e.Sessions().Get(7)
	s.SetSlot(0, 1, SetEntry{Weight: 100, Reps: 5})
	s.SetSlot(1, 1, SetEntry{Weight: 0, Reps: 10})
	s.SetSlot(2, 1, SetEntry{Weight: 120, Reps: 8})

	mustHandle(t, e, btn("remove_exercise_1"))

	if len(s.Exercises) != 2 {
		t.Fatalf("exercises = %+v, want 2", s.Exercises)
	}
	if got := s.Slot(0, 1); got == nil || got.Weight != 100 {
		t.Fatalf("index 0 slots disturbed: %+v", got)
	}
	if got := s.Slot(1, 1); got == nil || got.Weight != 120 {
		t.Fatalf("index 2 not shifted to 1: %+v", got)
	}
	if _, ok := s.LoggedSets[2]; ok {
		t.Fatal("stale loggedSets entry at index 2")
	}
}

// TestAddExerciseMidSession appends via free text without disturbing
// existing logged-set indices.
func TestAddExerciseMidSession(t *testing.T) {
	e, _, _ := newTestEngine(legDayRepo())

	mustHandle(t, e, cmd("start_workout"))
	mustHandle(t, e, btn("tmpl_1"))
	s := e.Sessions().Get(7)
	s.SetSlot(0, 1, SetEntry{Weight: 100, Reps: 5})

	mustHandle(t, e, btn("add_exercise"))
	r := mustHandle(t, e, txt("Leg Press 3 80 10"))
	if !hasButton(r, "ex_2") {
		t.Fatalf("menu missing new exercise: %+v", r.Keyboard)
	}
	if len(s.Exercises) != 3 || s.Exercises[2].Name != "Leg Press" {
		t.Fatalf("exercises = %+v", s.Exercises)
	}
	if got := s.Slot(0, 1); got == nil || got.Weight != 100 {
		t.Fatalf("existing slots disturbed: %+v", got)
	}

	// Malformed line re-prompts without appending.
	mustHandle(t, e, btn("add_exercise"))
	r = mustHandle(t, e, txt("Leg Press three 80 10"))
	if !strings.Contains(r.Text, "Invalid format") {
		t.Fatalf("reply = %q, want re-prompt", r.Text)
	}
	if len(s.Exercises) != 3 {
		t.Fatalf("malformed add appended: %+v", s.Exercises)
	}
}

// TestEndWorkoutFlushesRemaining verifies the end-workout policy: filled
// slots of every remaining exercise are saved before teardown.
func TestEndWorkoutFlushesRemaining(t *testing.T) {
	repo := legDayRepo()
	e, _, _ := newTestEngine(repo)

	mustHandle(t, e, cmd("start_workout"))
	mustHandle(t, e, btn("tmpl_1"))
	s := e.Sessions().Get(7)
	s.SetSlot(0, 1, SetEntry{Weight: 100, Reps: 5})
	s.SetSlot(1, 2, SetEntry{Weight: 0, Reps: 12})

	r := mustHandle(t, e, btn("end_workout"))
	if !strings.Contains(r.Text, "2 set(s) saved") {
		t.Fatalf("terminal text = %q", r.Text)
	}
	if len(repo.logs) != 2 {
		t.Fatalf("flushed %d rows, want 2", len(repo.logs))
	}
	if e.Sessions().Get(7) != nil {
		t.Fatal("session not cleared")
	}
}

// TestCancelDiscardsUnflushed: /cancel is the discarding exit.
func TestCancelDiscardsUnflushed(t *testing.T) {
	repo := legDayRepo()
	e, _, _ := newTestEngine(repo)

	mustHandle(t, e, cmd("start_workout"))
	mustHandle(t, e, btn("tmpl_1"))
	s := e.Sessions().Get(7)
	s.SetSlot(0, 1, SetEntry{Weight: 100, Reps: 5})

	r := mustHandle(t, e, cmd("cancel"))
	if !strings.Contains(r.Text, "canceled") {
		t.Fatalf("reply = %q", r.Text)
	}
	if len(repo.logs) != 0 {
		t.Fatalf("cancel flushed %d rows, want 0", len(repo.logs))
	}
	if e.Sessions().Get(7) != nil {
		t.Fatal("session not cleared")
	}
}

// TestPersistFailurePreservesSession: a failed flush reports a generic
// failure and keeps the in-memory session intact for retry.
func TestPersistFailurePreservesSession(t *testing.T) {
	repo := legDayRepo()
	repo.failInsert = true
	e, _, _ := newTestEngine(repo)

	mustHandle(t, e, cmd("start_workout"))
	mustHandle(t, e, btn("tmpl_1"))
	mustHandle(t, e, btn("ex_0"))
	s := e.Sessions().Get(7)
	s.SetSlot(0, 1, SetEntry{Weight: 100, Reps: 5})

	r := mustHandle(t, e, btn("complete_0"))
	if !strings.Contains(r.Text, "Couldn't save") {
		t.Fatalf("reply = %q, want failure message", r.Text)
	}
	if s2 := e.Sessions().Get(7); s2 == nil || len(s2.Exercises) != 2 {
		t.Fatal("session was torn down despite failed flush")
	}
	if got := s.Slot(0, 1); got == nil {
		t.Fatal("filled slot lost despite failed flush")
	}
}

// TestStaleButtonFallsBack: a button index from before a mutation falls back
// to the exercise menu instead of failing.
func TestStaleButtonFallsBack(t *testing.T) {
	e, _, _ := newTestEngine(legDayRepo())

	mustHandle(t, e, cmd("start_workout"))
	mustHandle(t, e, btn("tmpl_1"))
	mustHandle(t, e, btn("ex_1"))
	mustHandle(t, e, btn("skip")) // Lunges removed, only Squat remains

	r := mustHandle(t, e, btn("ex_1"))
	if r.State != StateExerciseSelect {
		t.Fatalf("state = %v, want fallback to exercise select", r.State)
	}
	r = mustHandle(t, e, btn("log_set_5_1"))
	if r.State != StateExerciseSelect {
		t.Fatalf("state = %v, want fallback to exercise select", r.State)
	}
}

// TestStaleSessionReset: selecting a template while a workout is live
// replaces the session and cancels its timer.
func TestStaleSessionReset(t *testing.T) {
	e, sched, _ := newTestEngine(legDayRepo())

	mustHandle(t, e, cmd("start_workout"))
	mustHandle(t, e, btn("tmpl_1"))
	mustHandle(t, e, btn("ex_0"))
	mustHandle(t, e, btn("rest"))

	old := e.Sessions().Get(7)
	if old.RestJob == uuid.Nil {
		t.Fatal("rest timer not stored")
	}
	oldJob := old.RestJob

	mustHandle(t, e, btn("tmpl_1"))
	fresh := e.Sessions().Get(7)
	if fresh == old {
		t.Fatal("stale session not replaced")
	}
	if len(fresh.LoggedSets) != 0 || fresh.CurrentIndex != 0 {
		t.Fatalf("fresh session dirty: %+v", fresh)
	}

	found := false
	for _, id := range sched.canceled {
		if id == oldJob {
			found = true
		}
	}
	if !found {
		t.Fatal("stale session's timer not canceled")
	}
}

// TestUnknownTagRejected: unrecognized callback tags surface as errors
// instead of falling through.
func TestUnknownTagRejected(t *testing.T) {
	e, _, _ := newTestEngine(legDayRepo())
	if _, err := e.Handle(context.Background(), btn("frobnicate_9")); err == nil {
		t.Fatal("unknown tag accepted")
	}
}
