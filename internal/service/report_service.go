package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/xuri/excelize/v2"

	"github.com/spec-kit/road-maintenance/internal/auth"
	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/repository"
	apperrors "github.com/spec-kit/road-maintenance/pkg/util/errorutil"
)

// ReportService manages free-form reports and spreadsheet exports.
type ReportService struct {
	reports  repository.ReportRepository
	issues   repository.IssueRepository
	accounts repository.AccountRepository
	now      func() time.Time
}

// ReportDependencies bundles repositories for the report service.
type ReportDependencies struct {
	ReportRepo  repository.ReportRepository
	IssueRepo   repository.IssueRepository
	AccountRepo repository.AccountRepository
}

// ReportInput carries report fields; nil fields are left untouched on update.
type ReportInput struct {
	Title       *string
	Description *string
}

// NewReportService constructs the service.
func NewReportService(deps ReportDependencies) *ReportService {
	return &ReportService{
		reports:  deps.ReportRepo,
		issues:   deps.IssueRepo,
		accounts: deps.AccountRepo,
		now:      time.Now,
	}
}

// Create stores a report authored by the actor.
func (s *ReportService) Create(ctx context.Context, actor *domain.Account, input ReportInput) (*domain.Report, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	report := &domain.Report{CreatedByID: actor.ID}
	applyReportInput(report, input)
	if err := validateReport(report); err != nil {
		return nil, err
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// List returns every report to staff and only their own to everyone else.
func (s *ReportService) List(ctx context.Context, actor *domain.Account, limit, offset int) ([]domain.Report, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	var owner *string
	if !auth.IsStaff(actor) {
		owner = &actor.ID
	}
	return s.reports.List(ctx, owner, limit, offset)
}

// Get loads a report visible to the actor. Reports outside the actor's scope are not found.
func (s *ReportService) Get(ctx context.Context, actor *domain.Account, id string) (*domain.Report, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("report", nil)
		}
		return nil, err
	}
	if !auth.CanAccessReport(actor, report) {
		return nil, apperrors.NewNotFound("report", nil)
	}
	return report, nil
}

// Update edits a report within the actor's scope.
func (s *ReportService) Update(ctx context.Context, actor *domain.Account, id string, input ReportInput) (*domain.Report, error) {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	applyReportInput(report, input)
	if err := validateReport(report); err != nil {
		return nil, err
	}
	if err := s.reports.Update(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// Delete removes a report within the actor's scope.
func (s *ReportService) Delete(ctx context.Context, actor *domain.Account, id string) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	return s.reports.Delete(ctx, id)
}

var issueExportHeaders = []string{
	"ID", "Title", "Status", "Priority", "Location", "Latitude", "Longitude",
	"Created By", "Assigned To", "Due Date", "Created At", "Updated At",
}

// ExportIssues renders the issues matching the filters into a workbook.
func (s *ReportService) ExportIssues(ctx context.Context, input IssueListInput) (*excelize.File, string, error) {
	filter := repository.IssueFilter{}
	if input.Status != "" {
		status, err := domain.ParseIssueStatus(input.Status)
		if err != nil {
			return nil, "", apperrors.NewFieldError("status", err.Error())
		}
		filter.Status = &status
	}
	if input.Priority != "" {
		priority, err := domain.ParseIssuePriority(input.Priority)
		if err != nil {
			return nil, "", apperrors.NewFieldError("priority", err.Error())
		}
		filter.Priority = &priority
	}
	if search := strings.TrimSpace(input.Search); search != "" {
		filter.Search = &search
	}

	var issues []domain.Issue
	const pageSize = 100
	for offset := 0; ; offset += pageSize {
		filter.Limit, filter.Offset = pageSize, offset
		page, err := s.issues.List(ctx, filter)
		if err != nil {
			return nil, "", err
		}
		issues = append(issues, page...)
		if len(page) < pageSize {
			break
		}
	}

	emails, err := s.accountEmails(ctx, issues)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "Issues"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, "", err
	}
	for i, h := range issueExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
		_ = f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for idx, issue := range issues {
		row := idx + 2
		values := []any{
			issue.ID,
			issue.Title,
			issue.Status.Label(),
			issue.Priority.Label(),
			issue.Location,
			floatOrBlank(issue.Latitude),
			floatOrBlank(issue.Longitude),
			emailOrBlank(emails, issue.CreatedByID),
			emailOrBlank(emails, issue.AssignedToID),
			timeOrBlank(issue.DueDate),
			issue.CreatedAt.UTC().Format(time.RFC3339),
			issue.UpdatedAt.UTC().Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	widths := []float64{38, 40, 12, 10, 30, 12, 12, 28, 28, 22, 22, 22}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("issues_%s.xlsx", s.now().UTC().Format("20060102_150405"))
	return f, filename, nil
}

func (s *ReportService) accountEmails(ctx context.Context, issues []domain.Issue) (map[string]string, error) {
	ids := make([]*string, 0, len(issues)*2)
	for _, issue := range issues {
		ids = append(ids, issue.CreatedByID, issue.AssignedToID)
	}
	accounts, err := s.Accounts(ctx, ids...)
	if err != nil {
		return nil, err
	}
	emails := make(map[string]string, len(accounts))
	for id, account := range accounts {
		emails[id] = account.Email
	}
	return emails, nil
}

func applyReportInput(report *domain.Report, input ReportInput) {
	if input.Title != nil {
		report.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		report.Description = strings.TrimSpace(*input.Description)
	}
}

func validateReport(report *domain.Report) error {
	details := map[string]any{}
	if report.Title == "" {
		details["title"] = []string{"This field may not be blank."}
	} else if len([]rune(report.Title)) > maxTitleLength {
		details["title"] = []string{fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLength)}
	}
	if report.Description == "" {
		details["description"] = []string{"This field may not be blank."}
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details)
	}
	return nil
}

func floatOrBlank(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func emailOrBlank(emails map[string]string, id *string) string {
	if id == nil {
		return ""
	}
	return emails[*id]
}

func timeOrBlank(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
