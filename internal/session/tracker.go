package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

// ErrInvalidTransition is returned when a session is moved out of a terminal state or
// has not been started
var ErrInvalidTransition = errors.New("invalid import session transition")

// Store is the subset of storage the tracker writes to
type Store interface {
	CreateSession(ctx context.Context, session models.ImportSession) error
	UpdateSession(ctx context.Context, session models.ImportSession) error
}

// Tracker records the lifecycle of one ingestion run: processing, then exactly one of
// completed or failed
type Tracker struct {
	mu        sync.Mutex
	store     Store
	logger    *logrus.Logger
	now       func() time.Time
	sessionID string
	startedAt time.Time
	session   *models.ImportSession
}

// NewTracker creates a tracker for the run identified by sessionID. Nothing is written
// until Start or Fail.
func NewTracker(store Store, logger *logrus.Logger, sessionID string, startedAt time.Time) *Tracker {
	return &Tracker{store: store, logger: logger, now: time.Now, sessionID: sessionID, startedAt: startedAt}
}

// Start persists the session in processing state
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		return fmt.Errorf("session %s already started: %w", t.sessionID, ErrInvalidTransition)
	}

	s := models.ImportSession{
		SessionID: t.sessionID,
		Status:    models.SessionProcessing,
		StartedAt: t.startedAt,
	}
	if err := t.store.CreateSession(ctx, s); err != nil {
		return fmt.Errorf("failed to create import session: %w", err)
	}
	t.session = &s
	return nil
}

// SetTotal records the number of roster rows the run will import
func (t *Tracker) SetTotal(ctx context.Context, total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireProcessing(); err != nil {
		return err
	}
	next := *t.session
	next.TotalRecords = total
	if err := t.store.UpdateSession(ctx, next); err != nil {
		return fmt.Errorf("failed to record total: %w", err)
	}
	t.session = &next
	return nil
}

// Complete finalizes the session as completed
func (t *Tracker) Complete(ctx context.Context, imported int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.requireProcessing(); err != nil {
		return err
	}
	completedAt := t.now()
	next := *t.session
	next.Status = models.SessionCompleted
	next.ImportedRecords = imported
	next.CompletedAt = &completedAt
	if err := t.store.UpdateSession(ctx, next); err != nil {
		return fmt.Errorf("failed to complete import session: %w", err)
	}
	t.session = &next
	return nil
}

// Fail finalizes the session as failed with cause's message. A run that fails before
// Start still leaves a failed session record. Storage errors are logged and swallowed so
// the caller still sees the run error.
func (t *Tracker) Fail(ctx context.Context, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	log := t.logger.WithError(cause).WithField("session_id", t.sessionID)
	persisted := t.session != nil
	if persisted {
		if err := t.requireProcessing(); err != nil {
			log.WithField("transition_error", err.Error()).Warn("import session not marked as failed")
			return
		}
	}

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	completedAt := t.now()
	next := models.ImportSession{SessionID: t.sessionID, StartedAt: t.startedAt}
	if persisted {
		next = *t.session
	}
	next.Status = models.SessionFailed
	next.Error = &msg
	next.CompletedAt = &completedAt

	// the session is final in memory even if the write fails, so Fail never runs twice
	t.session = &next

	write := t.store.UpdateSession
	if !persisted {
		write = t.store.CreateSession
	}
	if err := write(ctx, next); err != nil {
		log.WithField("update_error", err.Error()).Error("failed to mark import session as failed")
	}
}

// Session returns a copy of the current session, or nil before Start
func (t *Tracker) Session() *models.ImportSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	s := *t.session
	return &s
}

// SessionID returns the run's session id
func (t *Tracker) SessionID() string {
	return t.sessionID
}

func (t *Tracker) requireProcessing() error {
	if t.session == nil {
		return fmt.Errorf("session %s not started: %w", t.sessionID, ErrInvalidTransition)
	}
	if t.session.Status != models.SessionProcessing {
		return fmt.Errorf("session %s is already %s: %w", t.sessionID, t.session.Status, ErrInvalidTransition)
	}
	return nil
}
