package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// defaultRestSeconds is the rest duration when the user does not enter a
// custom one.
const defaultRestSeconds = 300

// Scheduler schedules single-shot callbacks. At most one handle is stored
// per session; scheduling a replacement always cancels the previous job.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (uuid.UUID, error)
	Cancel(id uuid.UUID)
}

// Notifier delivers out-of-band messages, used by the rest timer which fires
// outside a conversation turn. SendMessage returns the message ID so it can
// be deleted later.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// GocronScheduler runs one-shot jobs on a shared gocron scheduler.
type GocronScheduler struct {
	s gocron.Scheduler
}

// NewGocronScheduler creates and starts a scheduler.
func NewGocronScheduler() (*GocronScheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	s.Start()
	return &GocronScheduler{s: s}, nil
}

// Schedule runs fn once after d and returns the job ID.
func (g *GocronScheduler) Schedule(d time.Duration, fn func()) (uuid.UUID, error) {
	job, err := g.s.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(d))),
		gocron.NewTask(fn),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("scheduling one-shot job: %w", err)
	}
	return job.ID(), nil
}

// Cancel removes a pending job. Canceling a job that already fired or never
// existed is a no-op.
func (g *GocronScheduler) Cancel(id uuid.UUID) {
	_ = g.s.RemoveJob(id)
}

// Shutdown stops the scheduler and drops pending jobs.
func (g *GocronScheduler) Shutdown() error {
	return g.s.Shutdown()
}

// startRestTimer schedules a rest notification for the session, superseding
// any previous timer, and announces it via the notifier. The firing callback
// runs on the scheduler's goroutine: the session may have mutated or vanished
// by then, so it only does best-effort cleanup and never raises failures to
// the user.
func (e *Engine) startRestTimer(ctx context.Context, userID int64, s *Session, seconds int) {
	e.dropRestTimer(ctx, s, false)

	chatID := s.ChatID
	msgID, err := e.notify.SendMessage(ctx, chatID, fmt.Sprintf("Rest timer started: %d seconds. ⏳", seconds))
	if err != nil {
		e.log.Warn("rest timer announce failed", "user", userID, "error", err)
	}

	jobID, err := e.sched.Schedule(time.Duration(seconds)*time.Second, func() {
		e.restTimerFired(userID, chatID, msgID)
	})
	if err != nil {
		e.log.Error("rest timer schedule failed", "user", userID, "error", err)
		return
	}
	s.RestJob = jobID
	s.RestMessageID = msgID
}

// dropRestTimer cancels the stored handle if any. When deleteMsg is set the
// timer-started message is also deleted, best-effort.
func (e *Engine) dropRestTimer(ctx context.Context, s *Session, deleteMsg bool) {
	if s.RestJob == uuid.Nil {
		return
	}
	e.sched.Cancel(s.RestJob)
	if deleteMsg && s.RestMessageID != 0 {
		_ = e.notify.DeleteMessage(ctx, s.ChatID, s.RestMessageID)
	}
	s.RestJob = uuid.Nil
	s.RestMessageID = 0
}

// restTimerFired runs asynchronously to conversation processing. It never
// mutates the session: every field may be stale or gone by the time it runs.
func (e *Engine) restTimerFired(userID, chatID int64, msgID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if msgID != 0 {
		// The announce message may already be deleted; ignore failures.
		// The stored handle is left alone: the callback never mutates
		// session state, and a later Cancel of a fired job is a no-op.
		_ = e.notify.DeleteMessage(ctx, chatID, msgID)
	}

	if _, err := e.notify.SendMessage(ctx, chatID, "Rest time over! 🔔 Get back to work!"); err != nil {
		e.log.Warn("rest notification failed", "user", userID, "error", err)
	}
}
