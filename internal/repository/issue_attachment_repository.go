package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/persistence"
)

// IssueAttachmentRepository persists attachment metadata.
type IssueAttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.IssueAttachment) error
	GetByID(ctx context.Context, id string) (*domain.IssueAttachment, error)
	ListByIssue(ctx context.Context, issueID string) ([]domain.IssueAttachment, error)
	Delete(ctx context.Context, id string) error
}

type issueAttachmentRepository struct {
	db persistence.DBTX
}

// NewIssueAttachmentRepository constructs repository.
func NewIssueAttachmentRepository(db persistence.DBTX) IssueAttachmentRepository {
	return &issueAttachmentRepository{db: db}
}

const attachmentColumns = `id, issue_id, storage_key, url, file_name, file_size, file_type, uploaded_by, uploaded_at`

func (r *issueAttachmentRepository) Create(ctx context.Context, attachment *domain.IssueAttachment) error {
	const query = `
        INSERT INTO issue_attachments (issue_id, storage_key, url, file_name, file_size, file_type, uploaded_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, uploaded_at`
	return persistence.Executor(ctx, r.db).QueryRow(ctx, query,
		attachment.IssueID,
		attachment.StorageKey,
		attachment.URL,
		attachment.FileName,
		attachment.FileSize,
		attachment.FileType,
		attachment.UploadedByID,
	).Scan(&attachment.ID, &attachment.UploadedAt)
}

func (r *issueAttachmentRepository) GetByID(ctx context.Context, id string) (*domain.IssueAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM issue_attachments WHERE id=$1`
	return lookup(scanAttachment(persistence.Executor(ctx, r.db).QueryRow(ctx, query, id)))
}

func (r *issueAttachmentRepository) ListByIssue(ctx context.Context, issueID string) ([]domain.IssueAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM issue_attachments WHERE issue_id=$1 ORDER BY uploaded_at DESC`
	rows, err := persistence.Executor(ctx, r.db).Query(ctx, query, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.IssueAttachment
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *attachment)
	}
	return result, rows.Err()
}

func (r *issueAttachmentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := persistence.Executor(ctx, r.db).Exec(ctx, `DELETE FROM issue_attachments WHERE id=$1`, id)
	if err != nil {
		return mapLookupError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanAttachment(row pgx.Row) (*domain.IssueAttachment, error) {
	var attachment domain.IssueAttachment
	if err := row.Scan(
		&attachment.ID,
		&attachment.IssueID,
		&attachment.StorageKey,
		&attachment.URL,
		&attachment.FileName,
		&attachment.FileSize,
		&attachment.FileType,
		&attachment.UploadedByID,
		&attachment.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &attachment, nil
}
