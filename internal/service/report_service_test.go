package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/road-maintenance/internal/domain"
	apperrors "github.com/spec-kit/road-maintenance/pkg/util/errorutil"
)

func TestReportScoping(t *testing.T) {
	e := newEnv(t)
	ann := e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})
	bob := e.accounts.Seed(t, domain.Account{Email: "bob@example.com", IsActive: true})
	admin := e.accounts.Seed(t, domain.Account{Email: "admin@example.com", Role: domain.RoleAdmin, IsActive: true})

	annReport, err := e.report.Create(context.Background(), ann, ReportInput{Title: stringPtr("Weekly"), Description: stringPtr("Patched 4 potholes")})
	require.NoError(t, err)
	_, err = e.report.Create(context.Background(), bob, ReportInput{Title: stringPtr("Bob's"), Description: stringPtr("Signage audit")})
	require.NoError(t, err)

	own, err := e.report.List(context.Background(), ann, 20, 0)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, annReport.ID, own[0].ID)

	all, err := e.report.List(context.Background(), admin, 20, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = e.report.Get(context.Background(), bob, annReport.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	_, err = e.report.Update(context.Background(), bob, annReport.ID, ReportInput{Title: stringPtr("mine now")})
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	err = e.report.Delete(context.Background(), bob, annReport.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	updated, err := e.report.Update(context.Background(), admin, annReport.ID, ReportInput{Title: stringPtr("Weekly (reviewed)")})
	require.NoError(t, err)
	assert.Equal(t, "Weekly (reviewed)", updated.Title)
	assert.Equal(t, "Patched 4 potholes", updated.Description)

	require.NoError(t, e.report.Delete(context.Background(), ann, annReport.ID))
	_, err = e.report.Get(context.Background(), ann, annReport.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestReportValidation(t *testing.T) {
	e := newEnv(t)
	ann := e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})

	_, err := e.report.Create(context.Background(), ann, ReportInput{Title: stringPtr(" "), Description: stringPtr("x")})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	_, err = e.report.Create(context.Background(), ann, ReportInput{Title: stringPtr(strings.Repeat("t", 201)), Description: stringPtr("x")})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	_, err = e.report.Create(context.Background(), nil, ReportInput{})
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
	assert.Empty(t, e.reports.ByID)
}

func TestExportIssuesWorkbook(t *testing.T) {
	e := newEnv(t)
	owner := e.accounts.Seed(t, domain.Account{Email: "owner@example.com", IsActive: true})
	tech := e.accounts.Seed(t, domain.Account{Email: "tech@example.com", Role: domain.RoleTechnician, IsActive: true})

	_, err := e.issueSv.Create(context.Background(), owner, IssueCreateInput{
		Title: "Pothole", Description: "Deep", Priority: "high", AssignedToID: &tech.ID, Location: "Main St",
	})
	require.NoError(t, err)
	_, err = e.issueSv.Create(context.Background(), owner, IssueCreateInput{Title: "Sign down", Description: "Stop sign", Status: "closed"})
	require.NoError(t, err)

	f, filename, err := e.report.ExportIssues(context.Background(), IssueListInput{Status: "open"})
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, strings.HasPrefix(filename, "issues_"))
	assert.True(t, strings.HasSuffix(filename, ".xlsx"))

	rows, err := f.GetRows("Issues")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"ID", "Title", "Status", "Priority"}, rows[0][:4])
	assert.Equal(t, "Pothole", rows[1][1])
	assert.Equal(t, "Open", rows[1][2])
	assert.Equal(t, "High", rows[1][3])
	assert.Equal(t, "owner@example.com", rows[1][7])
	assert.Equal(t, "tech@example.com", rows[1][8])

	_, _, err = e.report.ExportIssues(context.Background(), IssueListInput{Priority: "urgent"})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}
