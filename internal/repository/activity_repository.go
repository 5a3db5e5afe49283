package repository

import (
	"context"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/persistence"
)

// ActivityRepository stores the append-only account activity trail.
type ActivityRepository interface {
	Create(ctx context.Context, record *domain.ActivityRecord) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.ActivityRecord, error)
}

type activityRepository struct {
	db persistence.DBTX
}

// NewActivityRepository builds repository.
func NewActivityRepository(db persistence.DBTX) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, record *domain.ActivityRecord) error {
	const query = `
        INSERT INTO account_activities (account_id, action, ip_address, user_agent)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return persistence.Executor(ctx, r.db).QueryRow(ctx, query,
		record.AccountID,
		record.Action,
		record.IPAddress,
		record.UserAgent,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *activityRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.ActivityRecord, error) {
	const query = `
        SELECT id, account_id, action, ip_address, user_agent, created_at
        FROM account_activities WHERE account_id=$1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	rows, err := persistence.Executor(ctx, r.db).Query(ctx, query, accountID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ActivityRecord
	for rows.Next() {
		var record domain.ActivityRecord
		if err := rows.Scan(
			&record.ID,
			&record.AccountID,
			&record.Action,
			&record.IPAddress,
			&record.UserAgent,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
