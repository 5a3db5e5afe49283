package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/events"
	"github.com/spec-kit/road-maintenance/internal/persistence"
	"github.com/spec-kit/road-maintenance/internal/testutil"
)

type memoryActivities struct {
	mu      sync.Mutex
	records []domain.ActivityRecord
	err     error
}

func (m *memoryActivities) Create(_ context.Context, record *domain.ActivityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, *record)
	return nil
}

func (m *memoryActivities) ListByAccount(_ context.Context, accountID string, _, _ int) ([]domain.ActivityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ActivityRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].AccountID == accountID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memoryActivities) all() []domain.ActivityRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ActivityRecord(nil), m.records...)
}

func TestRecordWaitsForCommit(t *testing.T) {
	repo := &memoryActivities{}
	w := NewWriter(repo, testutil.Logger())
	tm := persistence.NewTxManager(&testutil.FakeBeginner{})

	err := tm.WithinTx(context.Background(), func(ctx context.Context) error {
		w.Record(ctx, "acc-1", ActionLoggedIn)
		assert.Empty(t, repo.all(), "written before commit")
		return nil
	})

	require.NoError(t, err)
	records := repo.all()
	require.Len(t, records, 1)
	assert.Equal(t, "acc-1", records[0].AccountID)
	assert.Equal(t, ActionLoggedIn, records[0].Action)
}

func TestRecordDroppedOnRollback(t *testing.T) {
	repo := &memoryActivities{}
	w := NewWriter(repo, testutil.Logger())
	tm := persistence.NewTxManager(&testutil.FakeBeginner{})

	err := tm.WithinTx(context.Background(), func(ctx context.Context) error {
		w.Record(ctx, "acc-1", ActionAccountUpdated)
		return errors.New("save failed")
	})

	require.Error(t, err)
	assert.Empty(t, repo.all())
}

func TestRecordDroppedWhenCommitFails(t *testing.T) {
	repo := &memoryActivities{}
	w := NewWriter(repo, testutil.Logger())
	tm := persistence.NewTxManager(&testutil.FakeBeginner{FailCommit: true})

	err := tm.WithinTx(context.Background(), func(ctx context.Context) error {
		w.Record(ctx, "acc-1", ActionPasswordChanged)
		return nil
	})

	require.ErrorIs(t, err, testutil.ErrCommitFailed)
	assert.Empty(t, repo.all())
}

func TestRecordCapturesRequestMeta(t *testing.T) {
	repo := &memoryActivities{}
	w := NewWriter(repo, testutil.Logger())
	ctx := WithRequestMeta(context.Background(), RequestMeta{
		IPAddress: "203.0.113.7",
		UserAgent: strings.Repeat("x", 600),
	})

	w.Record(ctx, "acc-1", ActionLoggedOut)

	records := repo.all()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].IPAddress)
	assert.Equal(t, "203.0.113.7", *records[0].IPAddress)
	require.NotNil(t, records[0].UserAgent)
	assert.Len(t, *records[0].UserAgent, domain.MaxUserAgentLength)
}

func TestRecordWithoutRequestLeavesClientFieldsEmpty(t *testing.T) {
	repo := &memoryActivities{}
	NewWriter(repo, testutil.Logger()).Record(context.Background(), "acc-1", ActionAccountCreated)

	records := repo.all()
	require.Len(t, records, 1)
	assert.Nil(t, records[0].IPAddress)
	assert.Nil(t, records[0].UserAgent)
}

func TestWriteFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo := &memoryActivities{err: errors.New("db down")}
	w := NewWriter(repo, zap.New(core))
	tm := persistence.NewTxManager(&testutil.FakeBeginner{})

	err := tm.WithinTx(context.Background(), func(ctx context.Context) error {
		w.Record(ctx, "acc-1", ActionLoggedIn)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("failed to write account activity").Len())
}

func TestRegisterHandlersMapsEventsToLabels(t *testing.T) {
	repo := &memoryActivities{}
	w := NewWriter(repo, testutil.Logger())
	d := events.NewInMemoryDispatcher()
	w.RegisterHandlers(d)

	for _, eventType := range events.AccountEventTypes {
		require.NoError(t, d.Publish(context.Background(), events.New(eventType, "acc-1", nil)))
	}
	require.NoError(t, d.Publish(context.Background(), events.New(events.EventIssueCreated, "acc-1", nil)))

	var actions []string
	for _, r := range repo.all() {
		actions = append(actions, r.Action)
	}
	assert.Equal(t, []string{
		"User account created",
		"User account updated",
		"User logged in",
		"User logged out",
		"Password changed",
		"Password reset requested",
		"Password reset successful",
	}, actions)
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "198.51.100.1", ClientIP("198.51.100.1, 10.0.0.1", "10.0.0.2"))
	assert.Equal(t, "10.0.0.2", ClientIP("", "10.0.0.2"))
	assert.Equal(t, "10.0.0.2", ClientIP(" , 10.0.0.1", "10.0.0.2"))
}

func TestListNewestFirst(t *testing.T) {
	repo := &memoryActivities{}
	w := NewWriter(repo, testutil.Logger())
	w.Record(context.Background(), "acc-1", ActionLoggedIn)
	w.Record(context.Background(), "acc-1", ActionLoggedOut)

	records, err := w.List(context.Background(), "acc-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ActionLoggedOut, records[0].Action)
}
