package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/road-maintenance/internal/domain"
	apperrors "github.com/spec-kit/road-maintenance/pkg/util/errorutil"
)

type stubAccounts struct {
	byID map[string]*domain.Account
}

func (s *stubAccounts) Create(context.Context, *domain.Account) error { return nil }
func (s *stubAccounts) Update(context.Context, *domain.Account) error { return nil }
func (s *stubAccounts) GetByEmail(context.Context, string) (*domain.Account, error) {
	return nil, pgx.ErrNoRows
}
func (s *stubAccounts) GetByIDs(context.Context, []string) (map[string]*domain.Account, error) {
	return nil, nil
}
func (s *stubAccounts) TouchLastLogin(context.Context, string, time.Time) error { return nil }
func (s *stubAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	if a, ok := s.byID[id]; ok {
		return a, nil
	}
	return nil, pgx.ErrNoRows
}

type stubRevoker struct{ revoked map[string]bool }

func (s *stubRevoker) Revoke(_ context.Context, id string, _ time.Time) error {
	s.revoked[id] = true
	return nil
}
func (s *stubRevoker) IsRevoked(_ context.Context, id string) (bool, error) { return s.revoked[id], nil }

func newTestApp(m *AuthMiddleware) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
	}})
	app.Get("/me", m.Handle, RequireAuthenticated(), func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.Account.Email)
	})
	app.Get("/staff", m.Handle, RequireStaff(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute, time.Hour)
	active := &domain.Account{ID: "acc-1", Email: "a@city.gov", Role: domain.RoleViewer, IsActive: true}
	disabled := &domain.Account{ID: "acc-2", Email: "b@city.gov", Role: domain.RoleViewer}
	revoker := &stubRevoker{revoked: map[string]bool{}}
	app := newTestApp(NewAuthMiddleware(tm, &stubAccounts{byID: map[string]*domain.Account{
		active.ID:   active,
		disabled.ID: disabled,
	}}, revoker))

	activePair, err := tm.IssuePair(active)
	require.NoError(t, err)
	disabledPair, err := tm.IssuePair(disabled)
	require.NoError(t, err)
	revokedPair, err := tm.IssuePair(active)
	require.NoError(t, err)
	revokedClaims, err := tm.ParseToken(revokedPair.AccessToken, domain.TokenTypeAccess)
	require.NoError(t, err)
	revoker.revoked[revokedClaims.TokenID()] = true

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"no header", "/me", "", http.StatusUnauthorized},
		{"bad scheme", "/me", "Token abc", http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer abc", http.StatusUnauthorized},
		{"refresh as access", "/me", "Bearer " + activePair.RefreshToken, http.StatusUnauthorized},
		{"disabled account", "/me", "Bearer " + disabledPair.AccessToken, http.StatusUnauthorized},
		{"revoked token", "/me", "Bearer " + revokedPair.AccessToken, http.StatusUnauthorized},
		{"ok", "/me", "Bearer " + activePair.AccessToken, http.StatusOK},
		{"not staff", "/staff", "Bearer " + activePair.AccessToken, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
