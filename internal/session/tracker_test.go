package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/parlamentwatch/member-ingestion-service/internal/logging"
	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

// MockStore is a mock implementation of the Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateSession(ctx context.Context, s models.ImportSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockStore) UpdateSession(ctx context.Context, s models.ImportSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func newTestTracker(store Store) *Tracker {
	return newTestTrackerAt(store, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC))
}

func newTestTrackerAt(store Store, started time.Time) *Tracker {
	tr := NewTracker(store, logging.Discard(), "abc", started)
	tr.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return tr
}

func TestTracker_CompletePath(t *testing.T) {
	store := new(MockStore)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

	store.On("CreateSession", ctx, models.ImportSession{SessionID: "abc", Status: models.SessionProcessing, StartedAt: started}).Return(nil)
	store.On("UpdateSession", ctx, mock.MatchedBy(func(s models.ImportSession) bool {
		return s.Status == models.SessionProcessing && s.TotalRecords == 183
	})).Return(nil).Once()
	store.On("UpdateSession", ctx, mock.MatchedBy(func(s models.ImportSession) bool {
		return s.Status == models.SessionCompleted && s.ImportedRecords == 183 && s.CompletedAt != nil
	})).Return(nil).Once()

	tr := newTestTrackerAt(store, started)
	require.NoError(t, tr.Start(ctx))
	require.NoError(t, tr.SetTotal(ctx, 183))
	require.NoError(t, tr.Complete(ctx, 183))

	s := tr.Session()
	assert.Equal(t, models.SessionCompleted, s.Status)
	assert.Nil(t, s.Error)
	store.AssertExpectations(t)
}

func TestTracker_FailRecordsMessage(t *testing.T) {
	store := new(MockStore)
	ctx := context.Background()
	store.On("CreateSession", ctx, mock.Anything).Return(nil)
	store.On("UpdateSession", ctx, mock.MatchedBy(func(s models.ImportSession) bool {
		return s.Status == models.SessionFailed && s.Error != nil && *s.Error == "parliament API roster returned status 503"
	})).Return(nil).Once()

	tr := newTestTracker(store)
	require.NoError(t, tr.Start(ctx))
	tr.Fail(ctx, errors.New("parliament API roster returned status 503"))

	assert.Equal(t, models.SessionFailed, tr.Session().Status)
	store.AssertExpectations(t)
}

func TestTracker_FailSwallowsStorageError(t *testing.T) {
	store := new(MockStore)
	ctx := context.Background()
	store.On("CreateSession", ctx, mock.Anything).Return(nil)
	store.On("UpdateSession", ctx, mock.Anything).Return(errors.New("connection refused")).Once()

	tr := newTestTracker(store)
	require.NoError(t, tr.Start(ctx))

	assert.NotPanics(t, func() { tr.Fail(ctx, errors.New("boom")) })
	assert.Equal(t, models.SessionFailed, tr.Session().Status)

	// already final: a second Fail must not write again
	tr.Fail(ctx, errors.New("boom again"))
	store.AssertNumberOfCalls(t, "UpdateSession", 1)
}

func TestTracker_InvalidTransitions(t *testing.T) {
	store := new(MockStore)
	ctx := context.Background()
	store.On("CreateSession", ctx, mock.Anything).Return(nil)
	store.On("UpdateSession", ctx, mock.Anything).Return(nil)

	tr := newTestTracker(store)
	assert.ErrorIs(t, tr.SetTotal(ctx, 1), ErrInvalidTransition)
	assert.ErrorIs(t, tr.Complete(ctx, 1), ErrInvalidTransition)

	require.NoError(t, tr.Start(ctx))
	assert.ErrorIs(t, tr.Start(ctx), ErrInvalidTransition)
	require.NoError(t, tr.Complete(ctx, 0))

	assert.ErrorIs(t, tr.Complete(ctx, 0), ErrInvalidTransition)
	assert.ErrorIs(t, tr.SetTotal(ctx, 5), ErrInvalidTransition)
	tr.Fail(ctx, errors.New("late"))
	assert.Equal(t, models.SessionCompleted, tr.Session().Status)
}

func TestTracker_StartStorageError(t *testing.T) {
	store := new(MockStore)
	store.On("CreateSession", mock.Anything, mock.Anything).Return(errors.New("table missing"))

	tr := newTestTracker(store)
	err := tr.Start(context.Background())

	assert.Error(t, err)
	assert.Nil(t, tr.Session())
	assert.Equal(t, "abc", tr.SessionID())
}

func TestTracker_FailBeforeStartCreatesFailedSession(t *testing.T) {
	store := new(MockStore)
	ctx := context.Background()
	store.On("CreateSession", ctx, mock.MatchedBy(func(s models.ImportSession) bool {
		return s.SessionID == "abc" && s.Status == models.SessionFailed && s.Error != nil && *s.Error != ""
	})).Return(nil).Once()

	tr := newTestTracker(store)
	tr.Fail(ctx, errors.New("failed after 3 attempts: parliament API roster returned status 502"))

	assert.Equal(t, models.SessionFailed, tr.Session().Status)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "UpdateSession", mock.Anything, mock.Anything)
}
