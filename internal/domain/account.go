package domain

import (
	"strings"
	"time"
)

// Role enumerates account roles.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleTechnician Role = "TECHNICIAN"
	RoleViewer     Role = "VIEWER"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTechnician, RoleViewer:
		return true
	}
	return false
}

// HasElevatedAccess reports whether the role or superuser flag grants admin capability.
func HasElevatedAccess(role Role, superuser bool) bool {
	return superuser || role == RoleAdmin
}

// Account is an identity keyed by email.
type Account struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Phone        *string
	Role         Role
	PasswordHash string
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name, falling back to the email.
func (a *Account) FullName() string {
	full := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if full == "" {
		return a.Email
	}
	return full
}

func (a *Account) IsAdmin() bool      { return HasElevatedAccess(a.Role, a.IsSuperuser) }
func (a *Account) IsTechnician() bool { return a.Role == RoleTechnician }
func (a *Account) IsViewer() bool     { return a.Role == RoleViewer }

// NormalizeEmail lowercases the domain part of an address.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}
