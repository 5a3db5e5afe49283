package dto

import (
	"time"

	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/repository"
)

// CreateIssueRequest payload.
type CreateIssueRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	AssignedToID *string    `json:"assigned_to"`
	DueDate      *Timestamp `json:"due_date"`
	Location     string     `json:"location"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
}

// UpdateIssueRequest is a partial update. Nullable fields may be cleared with an explicit null.
type UpdateIssueRequest struct {
	Title        *string             `json:"title"`
	Description  *string             `json:"description"`
	Status       *string             `json:"status"`
	Priority     *string             `json:"priority"`
	AssignedToID Nullable[string]    `json:"assigned_to"`
	DueDate      Nullable[Timestamp] `json:"due_date"`
	Location     *string             `json:"location"`
	Latitude     Nullable[float64]   `json:"latitude"`
	Longitude    Nullable[float64]   `json:"longitude"`
}

// StatusUpdateRequest payload for the status endpoint.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// CommentRequest payload.
type CommentRequest struct {
	Content string `json:"content"`
}

// IssueResponse is the list/summary representation of an issue.
type IssueResponse struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Status        domain.IssueStatus   `json:"status"`
	StatusLabel   string               `json:"status_display"`
	Priority      domain.IssuePriority `json:"priority"`
	PriorityLabel string               `json:"priority_display"`
	CreatedBy     *AccountSummary      `json:"created_by"`
	AssignedTo    *AccountSummary      `json:"assigned_to"`
	DueDate       *time.Time           `json:"due_date"`
	Location      string               `json:"location"`
	Latitude      *float64             `json:"latitude"`
	Longitude     *float64             `json:"longitude"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// IssueDetailResponse embeds the children of an issue.
type IssueDetailResponse struct {
	IssueResponse
	Comments    []CommentResponse    `json:"comments"`
	Attachments []AttachmentResponse `json:"attachments"`
	History     []HistoryResponse    `json:"history"`
}

// CommentResponse represents a comment.
type CommentResponse struct {
	ID        string          `json:"id"`
	Author    *AccountSummary `json:"author"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AttachmentResponse represents stored file metadata.
type AttachmentResponse struct {
	ID         string          `json:"id"`
	URL        string          `json:"file"`
	FileName   string          `json:"file_name"`
	FileSize   int64           `json:"file_size"`
	FileType   string          `json:"file_type"`
	UploadedBy *AccountSummary `json:"uploaded_by"`
	UploadedAt time.Time       `json:"uploaded_at"`
}

// HistoryResponse represents one change row.
type HistoryResponse struct {
	ID        string          `json:"id"`
	IssueID   string          `json:"issue"`
	ChangedBy *AccountSummary `json:"changed_by"`
	Field     string          `json:"field_name"`
	OldValue  *string         `json:"old_value"`
	NewValue  *string         `json:"new_value"`
	ChangedAt time.Time       `json:"changed_at"`
}

// IssueListResponse is a page of issues.
type IssueListResponse struct {
	Count   int             `json:"count"`
	Results []IssueResponse `json:"results"`
}

// MapIssueResponse is the compact map marker payload.
type MapIssueResponse struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Status    domain.IssueStatus   `json:"status"`
	Priority  domain.IssuePriority `json:"priority"`
	Latitude  float64              `json:"latitude"`
	Longitude float64              `json:"longitude"`
	Location  string               `json:"location"`
}

// DashboardResponse summarizes issues involving the caller.
type DashboardResponse struct {
	Stats          repository.IssueStats `json:"stats"`
	RecentIssues   []IssueResponse       `json:"recent_issues"`
	RecentActivity []HistoryResponse     `json:"recent_activity"`
}

// Accounts resolves account ids to summaries for embedding.
type Accounts map[string]*domain.Account

func (a Accounts) summary(id *string) *AccountSummary {
	if id == nil {
		return nil
	}
	account, ok := a[*id]
	if !ok {
		return &AccountSummary{ID: *id}
	}
	return &AccountSummary{ID: account.ID, Email: account.Email, FullName: account.FullName()}
}

// NewIssueResponse maps an issue.
func NewIssueResponse(i *domain.Issue, accounts Accounts) IssueResponse {
	return IssueResponse{
		ID:            i.ID,
		Title:         i.Title,
		Description:   i.Description,
		Status:        i.Status,
		StatusLabel:   i.Status.Label(),
		Priority:      i.Priority,
		PriorityLabel: i.Priority.Label(),
		CreatedBy:     accounts.summary(i.CreatedByID),
		AssignedTo:    accounts.summary(i.AssignedToID),
		DueDate:       i.DueDate,
		Location:      i.Location,
		Latitude:      i.Latitude,
		Longitude:     i.Longitude,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

// NewIssueResponses maps a slice of issues.
func NewIssueResponses(issues []domain.Issue, accounts Accounts) []IssueResponse {
	out := make([]IssueResponse, 0, len(issues))
	for i := range issues {
		out = append(out, NewIssueResponse(&issues[i], accounts))
	}
	return out
}

func NewCommentResponse(c *domain.IssueComment, accounts Accounts) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		Author:    accounts.summary(&c.AuthorID),
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func NewAttachmentResponse(a *domain.IssueAttachment, accounts Accounts) AttachmentResponse {
	return AttachmentResponse{
		ID:         a.ID,
		URL:        a.URL,
		FileName:   a.FileName,
		FileSize:   a.FileSize,
		FileType:   a.FileType,
		UploadedBy: accounts.summary(a.UploadedByID),
		UploadedAt: a.UploadedAt,
	}
}

// NewHistoryResponses maps history rows.
func NewHistoryResponses(entries []domain.IssueHistoryEntry, accounts Accounts) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryResponse{
			ID:        e.ID,
			IssueID:   e.IssueID,
			ChangedBy: accounts.summary(e.ChangedByID),
			Field:     e.Field,
			OldValue:  e.OldValue,
			NewValue:  e.NewValue,
			ChangedAt: e.ChangedAt,
		})
	}
	return out
}

// NewMapIssueResponses maps issues with coordinates to markers.
func NewMapIssueResponses(issues []domain.Issue) []MapIssueResponse {
	out := make([]MapIssueResponse, 0, len(issues))
	for _, i := range issues {
		if !i.HasCoordinates() {
			continue
		}
		out = append(out, MapIssueResponse{
			ID:        i.ID,
			Title:     i.Title,
			Status:    i.Status,
			Priority:  i.Priority,
			Latitude:  *i.Latitude,
			Longitude: *i.Longitude,
			Location:  i.Location,
		})
	}
	return out
}
