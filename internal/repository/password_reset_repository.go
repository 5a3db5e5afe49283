package repository

import (
	"context"
	"time"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/persistence"
)

// PasswordResetRepository manages password reset token persistence.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *domain.PasswordResetToken) error
	GetByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
	DeleteForAccount(ctx context.Context, accountID string) error
}

type passwordResetRepository struct {
	db persistence.DBTX
}

// NewPasswordResetRepository constructs repository.
func NewPasswordResetRepository(db persistence.DBTX) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	const query = `
        INSERT INTO password_reset_tokens (account_id, token, expires_at)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return persistence.Executor(ctx, r.db).QueryRow(ctx, query,
		token.AccountID,
		token.Token,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *passwordResetRepository) GetByToken(ctx context.Context, tokenStr string) (*domain.PasswordResetToken, error) {
	const query = `
        SELECT id, account_id, token, expires_at, used_at, created_at
        FROM password_reset_tokens WHERE token=$1`
	var token domain.PasswordResetToken
	if err := persistence.Executor(ctx, r.db).QueryRow(ctx, query, tokenStr).Scan(
		&token.ID,
		&token.AccountID,
		&token.Token,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *passwordResetRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	const query = `
        UPDATE password_reset_tokens SET used_at=$1
        WHERE id=$2`
	_, err := persistence.Executor(ctx, r.db).Exec(ctx, query, at, id)
	return err
}

// DeleteForAccount drops outstanding (unused) tokens for the account.
func (r *passwordResetRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	const query = `DELETE FROM password_reset_tokens WHERE account_id=$1 AND used_at IS NULL`
	_, err := persistence.Executor(ctx, r.db).Exec(ctx, query, accountID)
	return err
}
