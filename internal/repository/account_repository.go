package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/persistence"
)

// AccountRepository defines persistence access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Account, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type accountRepository struct {
	db persistence.DBTX
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(db persistence.DBTX) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, email, first_name, last_name, phone, role, password_hash,
               is_active, is_staff, is_superuser, last_login_at, created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (email, first_name, last_name, phone, role, password_hash, is_active, is_staff, is_superuser)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`

	err := persistence.Executor(ctx, r.db).QueryRow(ctx, query,
		account.Email,
		account.FirstName,
		account.LastName,
		account.Phone,
		account.Role,
		account.PasswordHash,
		account.IsActive,
		account.IsStaff,
		account.IsSuperuser,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	return mapWriteError(err)
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	const query = `
        UPDATE accounts SET email=$1, first_name=$2, last_name=$3, phone=$4, role=$5, password_hash=$6,
            is_active=$7, is_staff=$8, is_superuser=$9, updated_at=NOW()
        WHERE id=$10
        RETURNING updated_at`

	err := persistence.Executor(ctx, r.db).QueryRow(ctx, query,
		account.Email,
		account.FirstName,
		account.LastName,
		account.Phone,
		account.Role,
		account.PasswordHash,
		account.IsActive,
		account.IsStaff,
		account.IsSuperuser,
		account.ID,
	).Scan(&account.UpdatedAt)
	return mapWriteError(err)
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	return lookup(scanAccount(persistence.Executor(ctx, r.db).QueryRow(ctx, query, id)))
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email)=LOWER($1)`
	return scanAccount(persistence.Executor(ctx, r.db).QueryRow(ctx, query, email))
}

func (r *accountRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Account, error) {
	result := make(map[string]*domain.Account, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1)`
	rows, err := persistence.Executor(ctx, r.db).Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result[account.ID] = account
	}
	return result, rows.Err()
}

func (r *accountRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE accounts SET last_login_at=$1 WHERE id=$2`
	cmd, err := persistence.Executor(ctx, r.db).Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.FirstName,
		&account.LastName,
		&account.Phone,
		&account.Role,
		&account.PasswordHash,
		&account.IsActive,
		&account.IsStaff,
		&account.IsSuperuser,
		&account.LastLoginAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}
