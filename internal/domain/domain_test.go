package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleCapabilities(t *testing.T) {
	cases := []struct {
		name       string
		account    Account
		admin      bool
		technician bool
		viewer     bool
	}{
		{name: "admin role", account: Account{Role: RoleAdmin}, admin: true},
		{name: "superuser viewer", account: Account{Role: RoleViewer, IsSuperuser: true}, admin: true, viewer: true},
		{name: "technician", account: Account{Role: RoleTechnician}, technician: true},
		{name: "viewer", account: Account{Role: RoleViewer}, viewer: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.admin, tc.account.IsAdmin())
			assert.Equal(t, tc.technician, tc.account.IsTechnician())
			assert.Equal(t, tc.viewer, tc.account.IsViewer())
		})
	}

	assert.True(t, RoleTechnician.Valid())
	assert.False(t, Role("MANAGER").Valid())
}

func TestFullNameFallsBackToEmail(t *testing.T) {
	assert.Equal(t, "Ann Lee", (&Account{Email: "ann@example.com", FirstName: "Ann", LastName: "Lee"}).FullName())
	assert.Equal(t, "Ann", (&Account{Email: "ann@example.com", FirstName: " Ann "}).FullName())
	assert.Equal(t, "ann@example.com", (&Account{Email: "ann@example.com"}).FullName())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "Ann.Lee@example.com", NormalizeEmail("  Ann.Lee@EXAMPLE.com "))
	assert.Equal(t, "no-at-sign", NormalizeEmail("no-at-sign"))
}

func TestParseIssueEnums(t *testing.T) {
	status, err := ParseIssueStatus("in_progress")
	require.NoError(t, err)
	assert.Equal(t, "In Progress", status.Label())

	_, err = ParseIssueStatus("reopened")
	assert.Error(t, err)

	priority, err := ParseIssuePriority("critical")
	require.NoError(t, err)
	assert.Equal(t, "Critical", priority.Label())

	_, err = ParseIssuePriority("urgent")
	assert.Error(t, err)
}

func TestHasCoordinates(t *testing.T) {
	lat, lng := 52.37, 4.89
	assert.True(t, (&Issue{Latitude: &lat, Longitude: &lng}).HasCoordinates())
	assert.False(t, (&Issue{Latitude: &lat}).HasCoordinates())
}

func TestApplyUploadDefaultsKeepsExplicitValues(t *testing.T) {
	a := IssueAttachment{FileName: "renamed.pdf"}
	a.ApplyUploadDefaults(UploadInfo{Name: "scan.pdf", Size: 42, ContentType: "application/pdf"})

	assert.Equal(t, "renamed.pdf", a.FileName)
	assert.Equal(t, int64(42), a.FileSize)
	assert.Equal(t, "application/pdf", a.FileType)
}

func TestPasswordResetTokenUsable(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	token := PasswordResetToken{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, token.Usable(now))
	assert.False(t, token.Usable(now.Add(2*time.Hour)))

	used := now
	token.UsedAt = &used
	assert.False(t, token.Usable(now))
}
