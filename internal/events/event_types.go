package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/road-maintenance/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountCreated         EventType = "account_created"
	EventAccountUpdated         EventType = "account_updated"
	EventLoginSucceeded         EventType = "login_succeeded"
	EventLoggedOut              EventType = "logged_out"
	EventPasswordChanged        EventType = "password_changed"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordResetCompleted EventType = "password_reset_completed"

	EventIssueCreated         EventType = "issue_created"
	EventIssueUpdated         EventType = "issue_updated"
	EventIssueDeleted         EventType = "issue_deleted"
	EventIssueCommentAdded    EventType = "issue_comment_added"
	EventIssueAttachmentAdded EventType = "issue_attachment_added"
)

// AccountEventTypes lists the events that concern an account's own security trail.
var AccountEventTypes = []EventType{
	EventAccountCreated,
	EventAccountUpdated,
	EventLoginSucceeded,
	EventLoggedOut,
	EventPasswordChanged,
	EventPasswordResetRequested,
	EventPasswordResetCompleted,
}

// IssueEventTypes lists issue lifecycle events.
var IssueEventTypes = []EventType{
	EventIssueCreated,
	EventIssueUpdated,
	EventIssueDeleted,
	EventIssueCommentAdded,
	EventIssueAttachmentAdded,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`
	IssueID   string      `json:"issue_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New builds an event stamped with an id and the current time.
func New(eventType EventType, actorID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ForIssue attaches the issue id to the event.
func (e Event) ForIssue(issueID string) Event {
	e.IssueID = issueID
	return e
}

// AccountPayload identifies the account an event concerns.
type AccountPayload struct {
	Email string `json:"email"`
}

// PasswordResetPayload carries the token to deliver to the account owner.
type PasswordResetPayload struct {
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueDeletedPayload payload.
type IssueDeletedPayload struct {
	Title string `json:"title"`
}

// IssueCreatedPayload payload.
type IssueCreatedPayload struct {
	Title    string               `json:"title"`
	Priority domain.IssuePriority `json:"priority"`
}

// IssueUpdatedPayload lists changed field names.
type IssueUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// IssueCommentAddedPayload payload.
type IssueCommentAddedPayload struct {
	CommentID string `json:"comment_id"`
	Preview   string `json:"preview"`
}

// IssueAttachmentAddedPayload payload.
type IssueAttachmentAddedPayload struct {
	AttachmentID string `json:"attachment_id"`
	FileName     string `json:"file_name"`
}
