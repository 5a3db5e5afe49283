package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/road-maintenance/internal/audit"
	"github.com/spec-kit/road-maintenance/internal/auth"
	"github.com/spec-kit/road-maintenance/internal/config"
	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/events"
	"github.com/spec-kit/road-maintenance/internal/persistence"
	"github.com/spec-kit/road-maintenance/internal/repository"
	apperrors "github.com/spec-kit/road-maintenance/pkg/util/errorutil"
)

// AuthService coordinates registration, sessions, profile and password flows.
type AuthService struct {
	accounts   repository.AccountRepository
	resets     repository.PasswordResetRepository
	tx         *persistence.TxManager
	dispatcher events.Dispatcher
	activity   *audit.Writer
	tokenMgr   *auth.TokenManager
	revoker    auth.Revoker
	logger     *zap.Logger

	bcryptCost     int
	minPasswordLen int
	resetTTL       time.Duration
	now            func() time.Time
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	AccountRepo       repository.AccountRepository
	PasswordResetRepo repository.PasswordResetRepository
	TxManager         *persistence.TxManager
	Dispatcher        events.Dispatcher
	Activity          *audit.Writer
	TokenManager      *auth.TokenManager
	Revoker           auth.Revoker
	Logger            *zap.Logger
}

// RegisterInput describes a self-service sign-up.
type RegisterInput struct {
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
	Phone           *string
}

// ProfileInput carries a partial profile update; nil fields are left untouched.
type ProfileInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	minLen := cfg.MinPasswordLength
	if minLen <= 0 {
		minLen = 8
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts:       deps.AccountRepo,
		resets:         deps.PasswordResetRepo,
		tx:             deps.TxManager,
		dispatcher:     deps.Dispatcher,
		activity:       deps.Activity,
		tokenMgr:       deps.TokenManager,
		revoker:        deps.Revoker,
		logger:         logger,
		bcryptCost:     cfg.BcryptCost,
		minPasswordLen: minLen,
		resetTTL:       cfg.ResetTTL(),
		now:            time.Now,
	}
}

// Register creates a VIEWER account.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	email, err := validateEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if err := s.validatePassword("password", input.Password); err != nil {
		return nil, err
	}
	if input.PasswordConfirm != "" && input.PasswordConfirm != input.Password {
		return nil, apperrors.NewFieldError("password_confirm", "Password fields didn't match.")
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	account := &domain.Account{
		Email:        email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Phone:        trimmedOrNil(input.Phone),
		Role:         domain.RoleViewer,
		PasswordHash: hash,
		IsActive:     true,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ensureEmailFree(ctx, email, ""); err != nil {
			return err
		}
		return s.saveAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// CreateSuperuser creates an active ADMIN account with staff and superuser flags.
func (s *AuthService) CreateSuperuser(ctx context.Context, email, password, firstName, lastName string) (*domain.Account, error) {
	normalized, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := s.validatePassword("password", password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	account := &domain.Account{
		Email:        normalized,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Role:         domain.RoleAdmin,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      true,
		IsSuperuser:  true,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ensureEmailFree(ctx, normalized, ""); err != nil {
			return err
		}
		return s.saveAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Login verifies credentials and issues an access/refresh pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Account, auth.TokenPair, error) {
	account, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.TokenPair{}, apperrors.NewUnauthorized("no active account found with the given credentials")
		}
		return nil, auth.TokenPair{}, err
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil || !account.IsActive {
		return nil, auth.TokenPair{}, apperrors.NewUnauthorized("no active account found with the given credentials")
	}

	pair, err := s.tokenMgr.IssuePair(account)
	if err != nil {
		return nil, auth.TokenPair{}, apperrors.NewInternalError(err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now().UTC()
		if err := s.accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
			return err
		}
		account.LastLoginAt = &now
		s.publish(ctx, events.New(events.EventAccountUpdated, account.ID, events.AccountPayload{Email: account.Email}))
		s.publish(ctx, events.New(events.EventLoginSucceeded, account.ID, events.AccountPayload{Email: account.Email}))
		return nil
	})
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	return account, pair, nil
}

// Refresh exchanges a refresh token for a new pair and revokes the old refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.tokenMgr.ParseToken(refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return auth.TokenPair{}, apperrors.NewUnauthorized("token is invalid or expired")
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.TokenID())
		if err != nil {
			return auth.TokenPair{}, err
		}
		if revoked {
			return auth.TokenPair{}, apperrors.NewUnauthorized("token is invalid or expired")
		}
	}
	account, err := s.accounts.GetByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.TokenPair{}, apperrors.NewUnauthorized("account not found")
		}
		return auth.TokenPair{}, err
	}
	if !account.IsActive {
		return auth.TokenPair{}, apperrors.NewUnauthorized("account is disabled")
	}
	if s.revoker != nil {
		if err := s.revoker.Revoke(ctx, claims.TokenID(), claims.Expiry()); err != nil {
			return auth.TokenPair{}, err
		}
	}
	pair, err := s.tokenMgr.IssuePair(account)
	if err != nil {
		return auth.TokenPair{}, apperrors.NewInternalError(err)
	}
	return pair, nil
}

// Logout revokes the presented access token, and the refresh token when one is supplied.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal, refreshToken string) error {
	if principal == nil || principal.Account == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if s.revoker != nil && principal.Claims != nil {
		if err := s.revoker.Revoke(ctx, principal.Claims.TokenID(), principal.Claims.Expiry()); err != nil {
			return err
		}
		if refreshToken != "" {
			claims, err := s.tokenMgr.ParseToken(refreshToken, domain.TokenTypeRefresh)
			if err == nil && claims.AccountID() == principal.Account.ID {
				if err := s.revoker.Revoke(ctx, claims.TokenID(), claims.Expiry()); err != nil {
					return err
				}
			}
		}
	}
	s.publish(ctx, events.New(events.EventLoggedOut, principal.Account.ID, events.AccountPayload{Email: principal.Account.Email}))
	return nil
}

// GetProfile loads the caller's account.
func (s *AuthService) GetProfile(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("account", nil)
		}
		return nil, err
	}
	return account, nil
}

// UpdateProfile applies a partial profile update.
func (s *AuthService) UpdateProfile(ctx context.Context, accountID string, input ProfileInput) (*domain.Account, error) {
	var account *domain.Account
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.GetProfile(ctx, accountID)
		if err != nil {
			return err
		}
		if input.Email != nil {
			email, err := validateEmail(*input.Email)
			if err != nil {
				return err
			}
			if err := s.ensureEmailFree(ctx, email, account.ID); err != nil {
				return err
			}
			account.Email = email
		}
		if input.FirstName != nil {
			account.FirstName = strings.TrimSpace(*input.FirstName)
		}
		if input.LastName != nil {
			account.LastName = strings.TrimSpace(*input.LastName)
		}
		if input.Phone != nil {
			account.Phone = trimmedOrNil(input.Phone)
		}
		if len(account.FirstName) > 30 {
			return apperrors.NewFieldError("first_name", "Ensure this field has no more than 30 characters.")
		}
		if account.Phone != nil && len(*account.Phone) > 20 {
			return apperrors.NewFieldError("phone", "Ensure this field has no more than 20 characters.")
		}
		return s.saveAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if err := s.validatePassword("new_password", newPassword); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.GetProfile(ctx, accountID)
		if err != nil {
			return err
		}
		if err := auth.ComparePassword(account.PasswordHash, currentPassword); err != nil {
			return apperrors.NewFieldError("old_password", "Wrong password.")
		}
		hash, err := auth.HashPassword(newPassword, s.bcryptCost)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		account.PasswordHash = hash
		return s.saveAccount(ctx, account)
	})
}

// RequestPasswordReset issues a reset token for an active account. Unknown or inactive
// addresses succeed silently so callers cannot probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	normalized, err := validateEmail(email)
	if err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.accounts.GetByEmail(ctx, normalized)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		if !account.IsActive {
			return nil
		}
		if err := s.resets.DeleteForAccount(ctx, account.ID); err != nil {
			return err
		}
		raw, err := auth.NewResetToken()
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		token := &domain.PasswordResetToken{
			AccountID: account.ID,
			Token:     raw,
			ExpiresAt: s.now().Add(s.resetTTL),
		}
		if err := s.resets.Create(ctx, token); err != nil {
			return err
		}
		s.publish(ctx, events.New(events.EventPasswordResetRequested, account.ID, events.PasswordResetPayload{
			Email:     account.Email,
			Token:     token.Token,
			ExpiresAt: token.ExpiresAt,
		}))
		return nil
	})
}

// ConfirmPasswordReset redeems a reset token. Unknown, used or expired tokens are not found.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if strings.TrimSpace(tokenStr) == "" {
		return apperrors.NewFieldError("token", "This field may not be blank.")
	}
	if err := s.validatePassword("password", newPassword); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		token, err := s.resets.GetByToken(ctx, tokenStr)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("password reset token", nil)
			}
			return err
		}
		now := s.now()
		if !token.Usable(now) {
			return apperrors.NewNotFound("password reset token", nil)
		}
		account, err := s.accounts.GetByID(ctx, token.AccountID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("password reset token", nil)
			}
			return err
		}
		hash, err := auth.HashPassword(newPassword, s.bcryptCost)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		account.PasswordHash = hash
		if err := s.saveAccount(ctx, account); err != nil {
			return err
		}
		if err := s.resets.MarkUsed(ctx, token.ID, now); err != nil {
			return err
		}
		s.publish(ctx, events.New(events.EventPasswordResetCompleted, account.ID, events.AccountPayload{Email: account.Email}))
		return nil
	})
}

// ListActivity returns the caller's activity trail, newest first.
func (s *AuthService) ListActivity(ctx context.Context, accountID string, limit, offset int) ([]domain.ActivityRecord, error) {
	return s.activity.List(ctx, accountID, limit, offset)
}

// saveAccount is the single write path for accounts. It must run inside a transaction so the
// account events it publishes are only recorded once the write commits.
func (s *AuthService) saveAccount(ctx context.Context, account *domain.Account) error {
	if account.ID == "" {
		if err := s.accounts.Create(ctx, account); err != nil {
			return mapAccountWriteError(err)
		}
		s.publish(ctx, events.New(events.EventAccountCreated, account.ID, events.AccountPayload{Email: account.Email}))
		return nil
	}

	stored, err := s.accounts.GetByID(ctx, account.ID)
	if err != nil {
		return err
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return mapAccountWriteError(err)
	}
	if stored.PasswordHash != account.PasswordHash {
		s.publish(ctx, events.New(events.EventPasswordChanged, account.ID, events.AccountPayload{Email: account.Email}))
	}
	s.publish(ctx, events.New(events.EventAccountUpdated, account.ID, events.AccountPayload{Email: account.Email}))
	return nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email, ownID string) error {
	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if existing.ID == ownID {
		return nil
	}
	return apperrors.NewValidationError("validation failed", map[string]any{
		"email": []string{"user with this email already exists."},
	})
}

func (s *AuthService) validatePassword(field, password string) error {
	if len(password) < s.minPasswordLen {
		return apperrors.NewFieldError(field, "This password is too short.")
	}
	return nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func mapAccountWriteError(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewValidationError("validation failed", map[string]any{
			"email": []string{"user with this email already exists."},
		})
	}
	return err
}

func validateEmail(raw string) (string, error) {
	email := domain.NormalizeEmail(raw)
	if email == "" {
		return "", apperrors.NewFieldError("email", "This field may not be blank.")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.NewFieldError("email", "Enter a valid email address.")
	}
	return email, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
