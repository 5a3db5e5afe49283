package repository

import (
	"context"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/persistence"
)

// IssueCommentRepository manages issue comment threads.
type IssueCommentRepository interface {
	Create(ctx context.Context, comment *domain.IssueComment) error
	ListByIssue(ctx context.Context, issueID string) ([]domain.IssueComment, error)
}

type issueCommentRepository struct {
	db persistence.DBTX
}

// NewIssueCommentRepository builds repository.
func NewIssueCommentRepository(db persistence.DBTX) IssueCommentRepository {
	return &issueCommentRepository{db: db}
}

func (r *issueCommentRepository) Create(ctx context.Context, comment *domain.IssueComment) error {
	const query = `
        INSERT INTO issue_comments (issue_id, author_id, content)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return persistence.Executor(ctx, r.db).QueryRow(ctx, query,
		comment.IssueID,
		comment.AuthorID,
		comment.Content,
	).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
}

func (r *issueCommentRepository) ListByIssue(ctx context.Context, issueID string) ([]domain.IssueComment, error) {
	const query = `
        SELECT id, issue_id, author_id, content, created_at, updated_at
        FROM issue_comments WHERE issue_id=$1 ORDER BY created_at ASC`
	rows, err := persistence.Executor(ctx, r.db).Query(ctx, query, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.IssueComment
	for rows.Next() {
		var comment domain.IssueComment
		if err := rows.Scan(
			&comment.ID,
			&comment.IssueID,
			&comment.AuthorID,
			&comment.Content,
			&comment.CreatedAt,
			&comment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
