package domain

import "time"

// Synthetic history fields used for event notices rather than field diffs.
const (
	HistoryFieldComment    = "comment"
	HistoryFieldAttachment = "attachment"
)

// IssueHistoryEntry is an immutable per-field change row.
type IssueHistoryEntry struct {
	ID          string
	IssueID     string
	ChangedByID *string
	Field       string
	OldValue    *string
	NewValue    *string
	ChangedAt   time.Time
}
