package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/testutil"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestActivityCreateStampsRecord(t *testing.T) {
	mock := newMock(t)
	repo := NewActivityRepository(mock)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO account_activities")).
		WithArgs("acc-1", "User logged in", testutil.Ptr("10.0.0.1"), testutil.Ptr("curl/8")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("act-1", now))

	record := &domain.ActivityRecord{
		AccountID: "acc-1",
		Action:    "User logged in",
		IPAddress: testutil.Ptr("10.0.0.1"),
		UserAgent: testutil.Ptr("curl/8"),
	}
	require.NoError(t, repo.Create(context.Background(), record))
	assert.Equal(t, "act-1", record.ID)
	assert.Equal(t, now, record.CreatedAt)
}

func TestActivityListByAccountNewestFirst(t *testing.T) {
	mock := newMock(t)
	repo := NewActivityRepository(mock)
	later := time.Now()
	earlier := later.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs("acc-1", 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "account_id", "action", "ip_address", "user_agent", "created_at"}).
			AddRow("a2", "acc-1", "User logged out", testutil.Ptr("10.0.0.1"), testutil.Ptr("ua"), later).
			AddRow("a1", "acc-1", "User logged in", testutil.Ptr("10.0.0.1"), testutil.Ptr("ua"), earlier))

	records, err := repo.ListByAccount(context.Background(), "acc-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a2", records[0].ID)
	assert.Equal(t, "10.0.0.1", *records[1].IPAddress)
}

func TestAccountCreateMapsUniqueViolation(t *testing.T) {
	mock := newMock(t)
	repo := NewAccountRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &domain.Account{Email: "a@b.io", Role: domain.RoleViewer})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestIssueDeleteMissingRow(t *testing.T) {
	mock := newMock(t)
	repo := NewIssueRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM issues")).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestMalformedIDReadsAsMissingRow(t *testing.T) {
	mock := newMock(t)
	invalid := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "not-a-uuid"`}

	mock.ExpectQuery(regexp.QuoteMeta("FROM issues WHERE id=$1")).WithArgs("not-a-uuid").WillReturnError(invalid)
	mock.ExpectQuery(regexp.QuoteMeta("FROM issue_attachments WHERE id=$1")).WithArgs("not-a-uuid").WillReturnError(invalid)
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id=$1")).WithArgs("not-a-uuid").WillReturnError(invalid)
	mock.ExpectQuery(regexp.QuoteMeta("FROM reports WHERE id=$1")).WithArgs("not-a-uuid").WillReturnError(invalid)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM issues")).WithArgs("not-a-uuid").WillReturnError(invalid)

	ctx := context.Background()
	_, err := NewIssueRepository(mock).GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = NewIssueAttachmentRepository(mock).GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = NewAccountRepository(mock).GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = NewReportRepository(mock).GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.ErrorIs(t, NewIssueRepository(mock).Delete(ctx, "not-a-uuid"), pgx.ErrNoRows)
}

func TestLookupKeepsOtherErrors(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM issues WHERE id=$1")).
		WithArgs("i-1").
		WillReturnError(&pgconn.PgError{Code: "57014"})

	_, err := NewIssueRepository(mock).GetByID(context.Background(), "i-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, pgx.ErrNoRows)
}

func TestIssueCountUsesFilter(t *testing.T) {
	mock := newMock(t)
	repo := NewIssueRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM issues WHERE 1=1 AND (created_by=$1 OR assigned_to=$1)")).
		WithArgs("acc-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.Count(context.Background(), IssueFilter{InvolvingID: testutil.Ptr("acc-1")})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestBuildIssueWhere(t *testing.T) {
	status := domain.IssueStatusOpen
	where, args := buildIssueWhere(IssueFilter{
		Status:         &status,
		Search:         testutil.Ptr(" pothole "),
		HasCoordinates: true,
	})

	assert.Equal(t,
		"1=1 AND status=$1 AND (title ILIKE $2 OR description ILIKE $2 OR location ILIKE $2) AND latitude IS NOT NULL AND longitude IS NOT NULL",
		where)
	assert.Equal(t, []any{status, "%pothole%"}, args)
}

func TestBuildIssueWhereIgnoresBlankSearch(t *testing.T) {
	where, args := buildIssueWhere(IssueFilter{Search: testutil.Ptr("   ")})
	assert.Equal(t, "1=1", where)
	assert.Empty(t, args)
}

func TestReportListScopesByOwner(t *testing.T) {
	mock := newMock(t)
	repo := NewReportRepository(mock)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM reports WHERE created_by=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3")).
		WithArgs("acc-1", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "description", "created_by", "created_at", "updated_at"}).
			AddRow("r1", "Weekly", "Body", "acc-1", now, now))

	reports, err := repo.List(context.Background(), testutil.Ptr("acc-1"), 10, 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Weekly", reports[0].Title)
}
