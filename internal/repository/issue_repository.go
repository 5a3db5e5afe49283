package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/persistence"
)

// IssueFilter captures list/search parameters.
type IssueFilter struct {
	Status       *domain.IssueStatus
	Priority     *domain.IssuePriority
	Search       *string
	AssignedToID *string
	CreatedByID  *string
	// InvolvingID matches issues created by or assigned to the account.
	InvolvingID    *string
	HasCoordinates bool
	Limit          int
	Offset         int
}

// IssueStats aggregates counts for the dashboard.
type IssueStats struct {
	Open         int `json:"open"`
	InProgress   int `json:"in_progress"`
	Resolved     int `json:"resolved"`
	AssignedToMe int `json:"assigned_to_me"`
	CreatedByMe  int `json:"created_by_me"`
}

// IssueRepository encapsulates issue persistence.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	Update(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	Count(ctx context.Context, filter IssueFilter) (int, error)
	StatsForAccount(ctx context.Context, accountID string) (IssueStats, error)
}

type issueRepository struct {
	db persistence.DBTX
}

// NewIssueRepository instantiates repository.
func NewIssueRepository(db persistence.DBTX) IssueRepository {
	return &issueRepository{db: db}
}

const issueColumns = `id, title, description, status, priority, created_by, assigned_to, due_date,
                    location, latitude, longitude, created_at, updated_at`

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
        INSERT INTO issues (title, description, status, priority, created_by, assigned_to, due_date, location, latitude, longitude)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return persistence.Executor(ctx, r.db).QueryRow(ctx, query,
		issue.Title,
		issue.Description,
		issue.Status,
		issue.Priority,
		issue.CreatedByID,
		issue.AssignedToID,
		issue.DueDate,
		issue.Location,
		issue.Latitude,
		issue.Longitude,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
}

func (r *issueRepository) Update(ctx context.Context, issue *domain.Issue) error {
	const query = `
        UPDATE issues SET title=$1, description=$2, status=$3, priority=$4, assigned_to=$5, due_date=$6,
            location=$7, latitude=$8, longitude=$9, updated_at=NOW()
        WHERE id=$10
        RETURNING updated_at`
	return persistence.Executor(ctx, r.db).QueryRow(ctx, query,
		issue.Title,
		issue.Description,
		issue.Status,
		issue.Priority,
		issue.AssignedToID,
		issue.DueDate,
		issue.Location,
		issue.Latitude,
		issue.Longitude,
		issue.ID,
	).Scan(&issue.UpdatedAt)
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id=$1`
	return lookup(scanIssue(persistence.Executor(ctx, r.db).QueryRow(ctx, query, id)))
}

func (r *issueRepository) Delete(ctx context.Context, id string) error {
	cmd, err := persistence.Executor(ctx, r.db).Exec(ctx, `DELETE FROM issues WHERE id=$1`, id)
	if err != nil {
		return mapLookupError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *issueRepository) List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	where, args := buildIssueWhere(filter)
	args = append(args, normalizeLimit(filter.Limit), filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		issueColumns, where, len(args)-1, len(args))

	rows, err := persistence.Executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *issue)
	}
	return result, rows.Err()
}

func (r *issueRepository) Count(ctx context.Context, filter IssueFilter) (int, error) {
	where, args := buildIssueWhere(filter)
	var total int
	err := persistence.Executor(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM issues WHERE `+where, args...).Scan(&total)
	return total, err
}

func (r *issueRepository) StatsForAccount(ctx context.Context, accountID string) (IssueStats, error) {
	const query = `
        SELECT
            COUNT(*) FILTER (WHERE status = 'open'),
            COUNT(*) FILTER (WHERE status = 'in_progress'),
            COUNT(*) FILTER (WHERE status = 'resolved'),
            COUNT(*) FILTER (WHERE assigned_to = $1 AND status IN ('open', 'in_progress')),
            COUNT(*) FILTER (WHERE created_by = $1)
        FROM issues
        WHERE created_by = $1 OR assigned_to = $1`
	var stats IssueStats
	err := persistence.Executor(ctx, r.db).QueryRow(ctx, query, accountID).Scan(
		&stats.Open,
		&stats.InProgress,
		&stats.Resolved,
		&stats.AssignedToMe,
		&stats.CreatedByMe,
	)
	return stats, err
}

func buildIssueWhere(filter IssueFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.AssignedToID != nil {
		args = append(args, *filter.AssignedToID)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.CreatedByID != nil {
		args = append(args, *filter.CreatedByID)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.InvolvingID != nil {
		args = append(args, *filter.InvolvingID)
		clauses = append(clauses, fmt.Sprintf("(created_by=$%d OR assigned_to=$%d)", len(args), len(args)))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		args = append(args, "%"+strings.TrimSpace(*filter.Search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d)", n, n, n))
	}
	if filter.HasCoordinates {
		clauses = append(clauses, "latitude IS NOT NULL AND longitude IS NOT NULL")
	}
	return strings.Join(clauses, " AND "), args
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var issue domain.Issue
	if err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&issue.Status,
		&issue.Priority,
		&issue.CreatedByID,
		&issue.AssignedToID,
		&issue.DueDate,
		&issue.Location,
		&issue.Latitude,
		&issue.Longitude,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}
