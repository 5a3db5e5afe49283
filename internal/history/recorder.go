package history

import (
	"context"
	"fmt"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/repository"
)

const notePreviewLength = 50

// Recorder persists history rows through the repository. Rows join whatever transaction ctx
// carries.
type Recorder struct {
	repo repository.IssueHistoryRepository
}

// NewRecorder builds a recorder.
func NewRecorder(repo repository.IssueHistoryRepository) *Recorder {
	return &Recorder{repo: repo}
}

// RecordChanges writes one entry per change.
func (r *Recorder) RecordChanges(ctx context.Context, issueID string, changedBy *string, changes []FieldChange) ([]domain.IssueHistoryEntry, error) {
	entries := make([]domain.IssueHistoryEntry, 0, len(changes))
	for _, change := range changes {
		oldValue, newValue := change.OldValue, change.NewValue
		entry := domain.IssueHistoryEntry{
			IssueID:     issueID,
			ChangedByID: changedBy,
			Field:       change.Field,
			OldValue:    &oldValue,
			NewValue:    &newValue,
		}
		if err := r.repo.Create(ctx, &entry); err != nil {
			return nil, fmt.Errorf("record %s change: %w", change.Field, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// RecordNote writes an event notice that carries only a new value.
func (r *Recorder) RecordNote(ctx context.Context, issueID string, changedBy *string, field, note string) (*domain.IssueHistoryEntry, error) {
	entry := domain.IssueHistoryEntry{
		IssueID:     issueID,
		ChangedByID: changedBy,
		Field:       field,
		NewValue:    &note,
	}
	if err := r.repo.Create(ctx, &entry); err != nil {
		return nil, fmt.Errorf("record %s note: %w", field, err)
	}
	return &entry, nil
}

// ListByIssue returns the issue's history, newest first.
func (r *Recorder) ListByIssue(ctx context.Context, issueID string) ([]domain.IssueHistoryEntry, error) {
	return r.repo.ListByIssue(ctx, issueID)
}

// RecentForAccount returns recent changes on issues the account created or is assigned to.
func (r *Recorder) RecentForAccount(ctx context.Context, accountID string, limit int) ([]domain.IssueHistoryEntry, error) {
	return r.repo.ListRecentForAccount(ctx, accountID, limit)
}

// CommentNote renders the notice stored when a comment is added.
func CommentNote(content string) string {
	runes := []rune(content)
	if len(runes) > notePreviewLength {
		runes = runes[:notePreviewLength]
	}
	return "Comment added: " + string(runes) + "..."
}

// AttachmentNote renders the notice stored when a file is uploaded.
func AttachmentNote(fileName string) string {
	return "File uploaded: " + fileName
}
