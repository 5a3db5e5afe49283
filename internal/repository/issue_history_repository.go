package repository

import (
	"context"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/persistence"
)

// IssueHistoryRepository stores per-field change rows.
type IssueHistoryRepository interface {
	Create(ctx context.Context, entry *domain.IssueHistoryEntry) error
	ListByIssue(ctx context.Context, issueID string) ([]domain.IssueHistoryEntry, error)
	ListRecentForAccount(ctx context.Context, accountID string, limit int) ([]domain.IssueHistoryEntry, error)
}

type issueHistoryRepository struct {
	db persistence.DBTX
}

// NewIssueHistoryRepository builds repository.
func NewIssueHistoryRepository(db persistence.DBTX) IssueHistoryRepository {
	return &issueHistoryRepository{db: db}
}

func (r *issueHistoryRepository) Create(ctx context.Context, entry *domain.IssueHistoryEntry) error {
	const query = `
        INSERT INTO issue_history (issue_id, changed_by, field, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, changed_at`
	return persistence.Executor(ctx, r.db).QueryRow(ctx, query,
		entry.IssueID,
		entry.ChangedByID,
		entry.Field,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.ChangedAt)
}

func (r *issueHistoryRepository) ListByIssue(ctx context.Context, issueID string) ([]domain.IssueHistoryEntry, error) {
	const query = `
        SELECT id, issue_id, changed_by, field, old_value, new_value, changed_at
        FROM issue_history WHERE issue_id=$1 ORDER BY changed_at DESC`
	return r.query(ctx, query, issueID)
}

func (r *issueHistoryRepository) ListRecentForAccount(ctx context.Context, accountID string, limit int) ([]domain.IssueHistoryEntry, error) {
	const query = `
        SELECT h.id, h.issue_id, h.changed_by, h.field, h.old_value, h.new_value, h.changed_at
        FROM issue_history h
        JOIN issues i ON i.id = h.issue_id
        WHERE i.created_by=$1 OR i.assigned_to=$1
        ORDER BY h.changed_at DESC
        LIMIT $2`
	return r.query(ctx, query, accountID, normalizeLimit(limit))
}

func (r *issueHistoryRepository) query(ctx context.Context, query string, args ...any) ([]domain.IssueHistoryEntry, error) {
	rows, err := persistence.Executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.IssueHistoryEntry
	for rows.Next() {
		var entry domain.IssueHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.IssueID,
			&entry.ChangedByID,
			&entry.Field,
			&entry.OldValue,
			&entry.NewValue,
			&entry.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
