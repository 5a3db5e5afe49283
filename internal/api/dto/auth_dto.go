package dto

import (
	"time"

	"github.com/spec-kit/road-maintenance/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"password_confirm"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Phone           *string `json:"phone"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// LogoutRequest optionally carries the refresh token to revoke alongside the access token.
type LogoutRequest struct {
	Refresh string `json:"refresh"`
}

// ProfileUpdateRequest is a partial profile update.
type ProfileUpdateRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// PasswordResetRequest payload for initiating reset.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest payload for confirming reset.
type PasswordResetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	FullName    string      `json:"full_name"`
	Phone       *string     `json:"phone"`
	Role        domain.Role `json:"role"`
	IsStaff     bool        `json:"is_staff"`
	LastLoginAt *time.Time  `json:"last_login"`
	CreatedAt   time.Time   `json:"date_joined"`
}

// AccountSummary is the compact account reference embedded in other resources.
type AccountSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// ActivityResponse is one audit trail entry.
type ActivityResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	IPAddress *string   `json:"ip_address"`
	UserAgent *string   `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAccountResponse maps an account to its response.
func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID,
		Email:       a.Email,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		FullName:    a.FullName(),
		Phone:       a.Phone,
		Role:        a.Role,
		IsStaff:     a.IsStaff || a.IsAdmin(),
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
	}
}

// NewActivityResponses maps activity records.
func NewActivityResponses(records []domain.ActivityRecord) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(records))
	for _, r := range records {
		out = append(out, ActivityResponse{
			ID:        r.ID,
			Action:    r.Action,
			IPAddress: r.IPAddress,
			UserAgent: r.UserAgent,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}
