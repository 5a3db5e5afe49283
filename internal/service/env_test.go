package service

import (
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/road-maintenance/internal/audit"
	"github.com/spec-kit/road-maintenance/internal/auth"
	"github.com/spec-kit/road-maintenance/internal/config"
	"github.com/spec-kit/road-maintenance/internal/events"
	"github.com/spec-kit/road-maintenance/internal/history"
	"github.com/spec-kit/road-maintenance/internal/persistence"
	"github.com/spec-kit/road-maintenance/internal/testutil"
	"github.com/spec-kit/road-maintenance/internal/testutil/memory"
)

var errWriteFailed = errors.New("write failed")

// env wires the real services over in-memory repositories and a fake transaction.
type env struct {
	clock       *memory.Clock
	beginner    *testutil.FakeBeginner
	accounts    *memory.Accounts
	activities  *memory.Activities
	resets      *memory.PasswordResets
	issues      *memory.Issues
	history     *memory.History
	comments    *memory.Comments
	attachments *memory.Attachments
	store       *memory.Store
	reports     *memory.Reports
	revoker     *memory.Revoker
	tokens      *auth.TokenManager

	auth    *AuthService
	issueSv *IssueService
	report  *ReportService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	c := memory.NewClock()
	e := &env{
		clock:       c,
		beginner:    &testutil.FakeBeginner{},
		accounts:    memory.NewAccounts(c),
		activities:  &memory.Activities{},
		resets:      memory.NewPasswordResets(),
		issues:      memory.NewIssues(c),
		history:     memory.NewHistory(c),
		comments:    &memory.Comments{},
		attachments: memory.NewAttachments(),
		store:       memory.NewStore(),
		reports:     memory.NewReports(c),
		revoker:     memory.NewRevoker(),
		tokens:      auth.NewTokenManager("test-secret", time.Minute, time.Hour),
	}

	tx := persistence.NewTxManager(e.beginner)
	dispatcher := events.NewInMemoryDispatcher()
	writer := audit.NewWriter(e.activities, testutil.Logger())
	writer.RegisterHandlers(dispatcher)
	NewNotificationService(dispatcher, testutil.Logger(), config.NotificationConfig{EmailFrom: "noreply@city.gov"}).RegisterHandlers()

	e.auth = NewAuthService(config.AuthConfig{
		BcryptCost:              4,
		MinPasswordLength:       8,
		PasswordResetTTLMinutes: 60,
	}, AuthDependencies{
		AccountRepo:       e.accounts,
		PasswordResetRepo: e.resets,
		TxManager:         tx,
		Dispatcher:        dispatcher,
		Activity:          writer,
		TokenManager:      e.tokens,
		Revoker:           e.revoker,
		Logger:            testutil.Logger(),
	})
	e.issueSv = NewIssueService(IssueDependencies{
		IssueRepo:      e.issues,
		CommentRepo:    e.comments,
		AttachmentRepo: e.attachments,
		AccountRepo:    e.accounts,
		Recorder:       history.NewRecorder(e.history),
		Store:          e.store,
		TxManager:      tx,
		Dispatcher:     dispatcher,
		Logger:         testutil.Logger(),
	})
	e.report = NewReportService(ReportDependencies{
		ReportRepo:  e.reports,
		IssueRepo:   e.issues,
		AccountRepo: e.accounts,
	})
	return e
}
