package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/persistence"
)

// ReportRepository persists free-form reports.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
	Update(ctx context.Context, report *domain.Report) error
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	Delete(ctx context.Context, id string) error
	// List returns reports newest first; a nil ownerID lists every report.
	List(ctx context.Context, ownerID *string, limit, offset int) ([]domain.Report, error)
}

type reportRepository struct {
	db persistence.DBTX
}

// NewReportRepository constructs repository.
func NewReportRepository(db persistence.DBTX) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *domain.Report) error {
	const query = `
        INSERT INTO reports (title, description, created_by)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return persistence.Executor(ctx, r.db).QueryRow(ctx, query,
		report.Title,
		report.Description,
		report.CreatedByID,
	).Scan(&report.ID, &report.CreatedAt, &report.UpdatedAt)
}

func (r *reportRepository) Update(ctx context.Context, report *domain.Report) error {
	const query = `
        UPDATE reports SET title=$1, description=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`
	return persistence.Executor(ctx, r.db).QueryRow(ctx, query,
		report.Title,
		report.Description,
		report.ID,
	).Scan(&report.UpdatedAt)
}

func (r *reportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	const query = `
        SELECT id, title, description, created_by, created_at, updated_at
        FROM reports WHERE id=$1`
	return lookup(scanReport(persistence.Executor(ctx, r.db).QueryRow(ctx, query, id)))
}

func (r *reportRepository) Delete(ctx context.Context, id string) error {
	cmd, err := persistence.Executor(ctx, r.db).Exec(ctx, `DELETE FROM reports WHERE id=$1`, id)
	if err != nil {
		return mapLookupError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *reportRepository) List(ctx context.Context, ownerID *string, limit, offset int) ([]domain.Report, error) {
	query := `SELECT id, title, description, created_by, created_at, updated_at FROM reports`
	args := []any{}
	if ownerID != nil {
		args = append(args, *ownerID)
		query += fmt.Sprintf(" WHERE created_by=$%d", len(args))
	}
	args = append(args, normalizeLimit(limit), offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := persistence.Executor(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *report)
	}
	return result, rows.Err()
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var report domain.Report
	if err := row.Scan(
		&report.ID,
		&report.Title,
		&report.Description,
		&report.CreatedByID,
		&report.CreatedAt,
		&report.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &report, nil
}
