package dto

import (
	"time"

	"github.com/spec-kit/road-maintenance/internal/domain"
)

// ReportRequest payload for create and partial update.
type ReportRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// ReportResponse represents a report.
type ReportResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	CreatedBy   *AccountSummary `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func NewReportResponse(r *domain.Report, accounts Accounts) ReportResponse {
	return ReportResponse{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		CreatedBy:   accounts.summary(&r.CreatedByID),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
