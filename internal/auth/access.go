package auth

import "github.com/spec-kit/road-maintenance/internal/domain"

// IsStaff reports whether the account carries staff or admin privilege.
func IsStaff(account *domain.Account) bool {
	if account == nil {
		return false
	}
	return account.IsStaff || domain.HasElevatedAccess(account.Role, account.IsSuperuser)
}

// CanModifyIssue allows edits and deletes by the issue's creator or by staff.
// Callers must check it before mutating, recording history or deleting.
func CanModifyIssue(account *domain.Account, issue *domain.Issue) bool {
	if account == nil || issue == nil {
		return false
	}
	if IsStaff(account) {
		return true
	}
	return issue.CreatedByID != nil && *issue.CreatedByID == account.ID
}

// CanDeleteAttachment extends the issue gate to the uploader of the file.
func CanDeleteAttachment(account *domain.Account, issue *domain.Issue, attachment *domain.IssueAttachment) bool {
	if CanModifyIssue(account, issue) {
		return true
	}
	return account != nil && attachment != nil &&
		attachment.UploadedByID != nil && *attachment.UploadedByID == account.ID
}

// CanAccessReport limits non-staff accounts to their own reports.
func CanAccessReport(account *domain.Account, report *domain.Report) bool {
	if account == nil || report == nil {
		return false
	}
	return IsStaff(account) || report.CreatedByID == account.ID
}
