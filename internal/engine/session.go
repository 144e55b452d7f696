package engine

import (
	"sync"

	"github.com/google/uuid"
)

// SessionExercise is one exercise in a live session: a mutable copy of a
// template exercise, independent of the persisted template.
type SessionExercise struct {
	Name          string
	DefaultSets   int
	DefaultWeight float64
	DefaultReps   int
}

// SetEntry is one filled set slot.
type SetEntry struct {
	Weight float64
	Reps   int
}

// PendingEntry is the scratch state for an in-progress two-step weight/reps
// entry. It exists only between log-set initiation and completion or
// abandonment.
type PendingEntry struct {
	Exercise  int
	SetNum    int
	Weight    float64
	HasWeight bool
	Editing   bool
}

// TextWait tells the controller what an incoming free-text message means.
// The flags are mutually exclusive; setting one clears the previous.
type TextWait int

const (
	WaitNone TextWait = iota
	WaitAddExercise
	WaitCustomWeight
	WaitCustomReps
	WaitCustomRest
)

// Session is the ephemeral per-user state of one in-progress workout.
// LoggedSets maps exercise index to set slots; a nil slot is an unfilled
// placeholder created by out-of-order logging and is never persisted.
type Session struct {
	ChatID       int64
	TemplateName string
	Exercises    []SessionExercise
	CurrentIndex int
	LoggedSets   map[int][]*SetEntry
	Pending      *PendingEntry
	Waiting      TextWait
	State        State

	// RestJob is the active rest-timer handle, uuid.Nil when none.
	// RestMessageID is the timer-started message, deleted best-effort
	// when the timer fires or is canceled.
	RestJob       uuid.UUID
	RestMessageID int
}

// Current returns the exercise under the cursor.
func (s *Session) Current() SessionExercise {
	return s.Exercises[s.CurrentIndex]
}

// FilledCount returns how many filled (non-placeholder) slots exist for the
// exercise at idx.
func (s *Session) FilledCount(idx int) int {
	n := 0
	for _, e := range s.LoggedSets[idx] {
		if e != nil {
			n++
		}
	}
	return n
}

// SetSlot stores a filled entry for set number setNum (1-based) of the
// exercise at idx, growing the slot list with unfilled placeholders when the
// set number exceeds the current length.
func (s *Session) SetSlot(idx, setNum int, e SetEntry) {
	slots := s.LoggedSets[idx]
	for len(slots) < setNum {
		slots = append(slots, nil)
	}
	slots[setNum-1] = &e
	s.LoggedSets[idx] = slots
}

// Slot returns the entry at set number setNum (1-based), or nil when the
// slot is unfilled or absent.
func (s *Session) Slot(idx, setNum int) *SetEntry {
	slots := s.LoggedSets[idx]
	if setNum < 1 || setNum > len(slots) {
		return nil
	}
	return slots[setNum-1]
}

// RemoveExercise drops the exercise at idx, reindexes LoggedSets (entries
// above idx shift down by one, the entry at idx is discarded) and clamps
// CurrentIndex. Returns true when the exercise list became empty.
func (s *Session) RemoveExercise(idx int) bool {
	s.Exercises = append(s.Exercises[:idx], s.Exercises[idx+1:]...)

	reindexed := make(map[int][]*SetEntry, len(s.LoggedSets))
	for j, slots := range s.LoggedSets {
		switch {
		case j < idx:
			reindexed[j] = slots
		case j > idx:
			reindexed[j-1] = slots
		}
	}
	s.LoggedSets = reindexed

	if len(s.Exercises) == 0 {
		return true
	}
	if s.CurrentIndex >= len(s.Exercises) {
		s.CurrentIndex = len(s.Exercises) - 1
	}
	return false
}

// AddExercise appends a new exercise; indices of existing logged sets are
// untouched.
func (s *Session) AddExercise(ex SessionExercise) {
	s.Exercises = append(s.Exercises, ex)
}

// SessionStore maps user IDs to at most one live session each. Sessions for
// different users are independent; the store only guards the map itself.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]*Session)}
}

// Get returns the user's live session, or nil.
func (st *SessionStore) Get(userID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[userID]
}

// Put installs a session for the user, replacing any stale one.
func (st *SessionStore) Put(userID int64, s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[userID] = s
}

// Delete clears the user's session.
func (st *SessionStore) Delete(userID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, userID)
}
