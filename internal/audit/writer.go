// Package audit keeps the account activity trail. Records are written only after the
// surrounding transaction commits.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/events"
	"github.com/spec-kit/road-maintenance/internal/persistence"
	"github.com/spec-kit/road-maintenance/internal/repository"
)

// Activity labels stored on ActivityRecord.Action.
const (
	ActionAccountCreated         = "User account created"
	ActionAccountUpdated         = "User account updated"
	ActionLoggedIn               = "User logged in"
	ActionLoggedOut              = "User logged out"
	ActionPasswordChanged        = "Password changed"
	ActionPasswordResetRequested = "Password reset requested"
	ActionPasswordResetCompleted = "Password reset successful"
)

var actionByEvent = map[events.EventType]string{
	events.EventAccountCreated:         ActionAccountCreated,
	events.EventAccountUpdated:         ActionAccountUpdated,
	events.EventLoginSucceeded:         ActionLoggedIn,
	events.EventLoggedOut:              ActionLoggedOut,
	events.EventPasswordChanged:        ActionPasswordChanged,
	events.EventPasswordResetRequested: ActionPasswordResetRequested,
	events.EventPasswordResetCompleted: ActionPasswordResetCompleted,
}

// ActionFor returns the activity label for an account event.
func ActionFor(eventType events.EventType) (string, bool) {
	action, ok := actionByEvent[eventType]
	return action, ok
}

// Writer schedules activity records.
type Writer struct {
	repo   repository.ActivityRepository
	logger *zap.Logger
}

// NewWriter builds a writer on top of the activity repository.
func NewWriter(repo repository.ActivityRepository, logger *zap.Logger) *Writer {
	return &Writer{repo: repo, logger: logger}
}

// Record schedules one activity for accountID. The insert runs once the transaction bound to
// ctx commits, or right away when there is none. A failed insert is logged and dropped.
func (w *Writer) Record(ctx context.Context, accountID, action string) {
	record := domain.ActivityRecord{AccountID: accountID, Action: action}
	if meta, ok := RequestMetaFrom(ctx); ok {
		if meta.IPAddress != "" {
			ip := meta.IPAddress
			record.IPAddress = &ip
		}
		if meta.UserAgent != "" {
			ua := truncate(meta.UserAgent, domain.MaxUserAgentLength)
			record.UserAgent = &ua
		}
	}

	persistence.AfterCommit(ctx, func(ctx context.Context) {
		if err := w.repo.Create(ctx, &record); err != nil {
			w.logger.Warn("failed to write account activity",
				zap.String("account_id", accountID),
				zap.String("action", action),
				zap.Error(err))
		}
	})
}

// RegisterHandlers subscribes the writer to every account event.
func (w *Writer) RegisterHandlers(dispatcher events.Dispatcher) {
	for _, eventType := range events.AccountEventTypes {
		dispatcher.Subscribe(eventType, w.handle)
	}
}

func (w *Writer) handle(ctx context.Context, event events.Event) error {
	action, ok := ActionFor(event.Type)
	if !ok || event.ActorID == "" {
		return nil
	}
	w.Record(ctx, event.ActorID, action)
	return nil
}

// List returns the account's activity, newest first.
func (w *Writer) List(ctx context.Context, accountID string, limit, offset int) ([]domain.ActivityRecord, error) {
	return w.repo.ListByAccount(ctx, accountID, limit, offset)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
