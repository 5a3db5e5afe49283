package worker

import (
	"github.com/spec-kit/road-maintenance/internal/audit"
	"github.com/spec-kit/road-maintenance/internal/events"
	"github.com/spec-kit/road-maintenance/internal/service"
)

// StartEventSubscribers attaches the audit trail and notification handlers to the dispatcher.
// Handlers run synchronously on the publishing goroutine.
func StartEventSubscribers(dispatcher events.Dispatcher, activity *audit.Writer, notifications *service.NotificationService) {
	if dispatcher == nil {
		return
	}
	if activity != nil {
		activity.RegisterHandlers(dispatcher)
	}
	if notifications != nil {
		notifications.RegisterHandlers()
	}
}
