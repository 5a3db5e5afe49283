package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/road-maintenance/internal/audit"
	"github.com/spec-kit/road-maintenance/internal/auth"
	"github.com/spec-kit/road-maintenance/internal/domain"
	apperrors "github.com/spec-kit/road-maintenance/pkg/util/errorutil"
)

func TestRegisterRecordsAccountCreatedOnly(t *testing.T) {
	e := newEnv(t)
	ctx := audit.WithRequestMeta(context.Background(), audit.RequestMeta{IPAddress: "10.0.0.5", UserAgent: "curl/8"})

	account, err := e.auth.Register(ctx, RegisterInput{
		Email:           "ann@Example.com",
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
		FirstName:       "Ann",
	})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", account.Email)
	assert.Equal(t, domain.RoleViewer, account.Role)
	assert.True(t, account.IsActive)

	assert.Equal(t, []string{audit.ActionAccountCreated}, e.activities.Actions(account.ID))
	record := e.activities.Records[0]
	require.NotNil(t, record.IPAddress)
	assert.Equal(t, "10.0.0.5", *record.IPAddress)
	require.NotNil(t, record.UserAgent)
	assert.Equal(t, "curl/8", *record.UserAgent)
}

func TestRegisterRejectsDuplicateEmailWithoutRecord(t *testing.T) {
	e := newEnv(t)
	e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})
	before := len(e.activities.Records)

	_, err := e.auth.Register(context.Background(), RegisterInput{Email: "ANN@example.com", Password: "s3cret-pass"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	assert.Len(t, e.activities.Records, before)
}

func TestRegisterValidatesInput(t *testing.T) {
	e := newEnv(t)
	cases := []RegisterInput{
		{Email: "not-an-email", Password: "s3cret-pass"},
		{Email: "bob@example.com", Password: "short"},
		{Email: "bob@example.com", Password: "s3cret-pass", PasswordConfirm: "other-pass"},
	}
	for _, input := range cases {
		_, err := e.auth.Register(context.Background(), input)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"), "input %+v", input)
	}
	assert.Empty(t, e.activities.Records)
}

func TestCommitFailureDropsActivity(t *testing.T) {
	e := newEnv(t)
	e.beginner.FailCommit = true

	_, err := e.auth.Register(context.Background(), RegisterInput{Email: "ann@example.com", Password: "s3cret-pass"})
	require.Error(t, err)
	assert.Empty(t, e.activities.Records)
}

func TestLoginRecordsSuccessOnly(t *testing.T) {
	e := newEnv(t)
	account := e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})

	_, _, err := e.auth.Login(context.Background(), "ann@example.com", "wrong-pass")
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
	assert.Empty(t, e.activities.Actions(account.ID))

	logged, pair, err := e.auth.Login(context.Background(), "ann@example.com", "initial-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	require.NotNil(t, logged.LastLoginAt)
	assert.Equal(t, []string{audit.ActionAccountUpdated, audit.ActionLoggedIn}, e.activities.Actions(account.ID))

	stored, err := e.accounts.GetByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	e := newEnv(t)
	e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: false})

	_, _, err := e.auth.Login(context.Background(), "ann@example.com", "initial-pass")
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
	assert.Empty(t, e.activities.Records)
}

func TestLogoutRevokesTokensAndRecords(t *testing.T) {
	e := newEnv(t)
	account := e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})
	pair, err := e.tokens.IssuePair(account)
	require.NoError(t, err)
	claims, err := e.tokens.ParseToken(pair.AccessToken, domain.TokenTypeAccess)
	require.NoError(t, err)

	err = e.auth.Logout(context.Background(), &auth.Principal{Account: account, Claims: claims}, pair.RefreshToken)
	require.NoError(t, err)

	revoked, _ := e.revoker.IsRevoked(context.Background(), claims.TokenID())
	assert.True(t, revoked)
	assert.Len(t, e.revoker.Revoked, 2)
	assert.Equal(t, []string{audit.ActionLoggedOut}, e.activities.Actions(account.ID))

	_, err = e.auth.Refresh(context.Background(), pair.RefreshToken)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

func TestRefreshRotatesRefreshToken(t *testing.T) {
	e := newEnv(t)
	account := e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})
	pair, err := e.tokens.IssuePair(account)
	require.NoError(t, err)

	next, err := e.auth.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = e.auth.Refresh(context.Background(), pair.RefreshToken)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))

	_, err = e.auth.Refresh(context.Background(), pair.AccessToken)
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

func TestUpdateProfileWithoutPasswordChange(t *testing.T) {
	e := newEnv(t)
	account := e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})

	updated, err := e.auth.UpdateProfile(context.Background(), account.ID, ProfileInput{
		FirstName: stringPtr("Annie"),
		Phone:     stringPtr("  "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Annie", updated.FirstName)
	assert.Nil(t, updated.Phone)
	assert.Equal(t, []string{audit.ActionAccountUpdated}, e.activities.Actions(account.ID))
}

func TestUpdateProfileRejectsTakenEmail(t *testing.T) {
	e := newEnv(t)
	e.accounts.Seed(t, domain.Account{Email: "bob@example.com", IsActive: true})
	account := e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})

	_, err := e.auth.UpdateProfile(context.Background(), account.ID, ProfileInput{Email: stringPtr("bob@example.com")})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	assert.Empty(t, e.activities.Actions(account.ID))
}

func TestChangePasswordRecordsPasswordChanged(t *testing.T) {
	e := newEnv(t)
	account := e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})

	err := e.auth.ChangePassword(context.Background(), account.ID, "wrong-pass", "brand-new-pass")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	assert.Empty(t, e.activities.Actions(account.ID))

	require.NoError(t, e.auth.ChangePassword(context.Background(), account.ID, "initial-pass", "brand-new-pass"))
	assert.Equal(t, []string{audit.ActionPasswordChanged, audit.ActionAccountUpdated}, e.activities.Actions(account.ID))

	_, _, err = e.auth.Login(context.Background(), "ann@example.com", "brand-new-pass")
	require.NoError(t, err)
}

func TestRequestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.auth.RequestPasswordReset(context.Background(), "ghost@example.com"))
	assert.Empty(t, e.resets.Tokens)
	assert.Empty(t, e.activities.Records)
}

func TestRequestPasswordResetReplacesPendingToken(t *testing.T) {
	e := newEnv(t)
	account := e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})

	require.NoError(t, e.auth.RequestPasswordReset(context.Background(), "ann@example.com"))
	require.NoError(t, e.auth.RequestPasswordReset(context.Background(), "ann@example.com"))

	tokens := e.resets.ForAccount(account.ID)
	require.Len(t, tokens, 1)
	assert.Len(t, tokens[0].Token, 64)
	assert.True(t, tokens[0].ExpiresAt.After(time.Now().Add(59*time.Minute)))
	assert.Equal(t, []string{audit.ActionPasswordResetRequested, audit.ActionPasswordResetRequested}, e.activities.Actions(account.ID))
}

func TestConfirmPasswordReset(t *testing.T) {
	e := newEnv(t)
	account := e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})
	require.NoError(t, e.auth.RequestPasswordReset(context.Background(), "ann@example.com"))
	token := e.resets.ForAccount(account.ID)[0].Token

	err := e.auth.ConfirmPasswordReset(context.Background(), token, "short")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	require.NoError(t, e.auth.ConfirmPasswordReset(context.Background(), token, "reset-pass-1"))
	assert.Equal(t, []string{
		audit.ActionPasswordResetRequested,
		audit.ActionPasswordChanged,
		audit.ActionAccountUpdated,
		audit.ActionPasswordResetCompleted,
	}, e.activities.Actions(account.ID))

	_, _, err = e.auth.Login(context.Background(), "ann@example.com", "reset-pass-1")
	require.NoError(t, err)

	err = e.auth.ConfirmPasswordReset(context.Background(), token, "reset-pass-2")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"), "used token")
}

func TestConfirmPasswordResetRejectsUnknownAndExpired(t *testing.T) {
	e := newEnv(t)
	account := e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})
	require.NoError(t, e.resets.Create(context.Background(), &domain.PasswordResetToken{
		AccountID: account.ID,
		Token:     "expired-token",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	err := e.auth.ConfirmPasswordReset(context.Background(), "unknown-token", "reset-pass-1")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	err = e.auth.ConfirmPasswordReset(context.Background(), "expired-token", "reset-pass-1")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	assert.Empty(t, e.activities.Actions(account.ID))
}

func TestCreateSuperuser(t *testing.T) {
	e := newEnv(t)

	account, err := e.auth.CreateSuperuser(context.Background(), "root@city.gov", "root-pass-1", "Root", "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, account.Role)
	assert.True(t, account.IsStaff)
	assert.True(t, account.IsSuperuser)
	assert.True(t, auth.IsStaff(account))
	assert.Equal(t, []string{audit.ActionAccountCreated}, e.activities.Actions(account.ID))

	_, err = e.auth.CreateSuperuser(context.Background(), "root@city.gov", "root-pass-1", "", "")
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestListActivityNewestFirst(t *testing.T) {
	e := newEnv(t)
	account := e.accounts.Seed(t, domain.Account{Email: "ann@example.com", IsActive: true})
	_, _, err := e.auth.Login(context.Background(), "ann@example.com", "initial-pass")
	require.NoError(t, err)
	require.NoError(t, e.auth.ChangePassword(context.Background(), account.ID, "initial-pass", "brand-new-pass"))

	records, err := e.auth.ListActivity(context.Background(), account.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, audit.ActionAccountUpdated, records[0].Action)
	assert.Equal(t, audit.ActionPasswordChanged, records[1].Action)
	assert.Equal(t, audit.ActionLoggedIn, records[2].Action)
	assert.Equal(t, audit.ActionAccountUpdated, records[3].Action)
}

func stringPtr(s string) *string { return &s }
