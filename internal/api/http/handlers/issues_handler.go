package handlers

import (
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/road-maintenance/internal/api/dto"
	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/history"
	"github.com/spec-kit/road-maintenance/internal/service"
	apperrors "github.com/spec-kit/road-maintenance/pkg/util/errorutil"
)

// IssuesHandler manages issue endpoints.
type IssuesHandler struct {
	service *service.IssueService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService *service.IssueService) *IssuesHandler {
	return &IssuesHandler{service: issueService}
}

// ListIssues GET /api/issues.
func (h *IssuesHandler) ListIssues(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	page, err := h.service.List(c.UserContext(), account, parseIssueListQuery(c))
	if err != nil {
		return err
	}
	accounts, err := h.issueAccounts(c, page.Items)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.IssueListResponse{
		Count:   page.Total,
		Results: dto.NewIssueResponses(page.Items, accounts),
	}})
}

// CreateIssue POST /api/issues.
func (h *IssuesHandler) CreateIssue(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req dto.CreateIssueRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	input := service.IssueCreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		AssignedToID: req.AssignedToID,
		Location:     req.Location,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	}
	if req.DueDate != nil {
		due := req.DueDate.Time
		input.DueDate = &due
	}
	issue, err := h.service.Create(c.UserContext(), account, input)
	if err != nil {
		return err
	}
	accounts, err := h.issueAccounts(c, []domain.Issue{*issue})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewIssueResponse(issue, accounts)})
}

// GetIssue GET /api/issues/:id.
func (h *IssuesHandler) GetIssue(c *fiber.Ctx) error {
	detail, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	ids := []*string{detail.Issue.CreatedByID, detail.Issue.AssignedToID}
	for i := range detail.Comments {
		ids = append(ids, &detail.Comments[i].AuthorID)
	}
	for i := range detail.Attachments {
		ids = append(ids, detail.Attachments[i].UploadedByID)
	}
	for i := range detail.History {
		ids = append(ids, detail.History[i].ChangedByID)
	}
	accounts, err := h.service.Accounts(c.UserContext(), ids...)
	if err != nil {
		return err
	}

	resp := dto.IssueDetailResponse{
		IssueResponse: dto.NewIssueResponse(detail.Issue, accounts),
		Comments:      make([]dto.CommentResponse, 0, len(detail.Comments)),
		Attachments:   make([]dto.AttachmentResponse, 0, len(detail.Attachments)),
		History:       dto.NewHistoryResponses(detail.History, accounts),
	}
	for i := range detail.Comments {
		resp.Comments = append(resp.Comments, dto.NewCommentResponse(&detail.Comments[i], accounts))
	}
	for i := range detail.Attachments {
		resp.Attachments = append(resp.Attachments, dto.NewAttachmentResponse(&detail.Attachments[i], accounts))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// UpdateIssue PATCH /api/issues/:id.
func (h *IssuesHandler) UpdateIssue(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req dto.UpdateIssueRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	issue, changes, err := h.service.Update(c.UserContext(), account, c.Params("id"), updateInput(req))
	if err != nil {
		return err
	}
	accounts, err := h.issueAccounts(c, []domain.Issue{*issue})
	if err != nil {
		return err
	}
	fields := history.Fields(changes)
	return c.JSON(fiber.Map{"data": fiber.Map{
		"issue":          dto.NewIssueResponse(issue, accounts),
		"changed_fields": fields,
	}})
}

// DeleteIssue DELETE /api/issues/:id.
func (h *IssuesHandler) DeleteIssue(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), account, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// UpdateStatus POST /api/issues/:id/status.
func (h *IssuesHandler) UpdateStatus(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req dto.StatusUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	issue, err := h.service.UpdateStatus(c.UserContext(), account, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":             issue.ID,
		"status":         issue.Status,
		"status_display": issue.Status.Label(),
	}})
}

// History GET /api/issues/:id/history.
func (h *IssuesHandler) History(c *fiber.Ctx) error {
	entries, err := h.service.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	ids := make([]*string, 0, len(entries))
	for i := range entries {
		ids = append(ids, entries[i].ChangedByID)
	}
	accounts, err := h.service.Accounts(c.UserContext(), ids...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries, accounts)})
}

// AddComment POST /api/issues/:id/comments.
func (h *IssuesHandler) AddComment(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	comment, err := h.service.AddComment(c.UserContext(), account, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	accounts := dto.Accounts{account.ID: account}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment, accounts)})
}

// UploadAttachment POST /api/issues/:id/attachments (multipart field "file").
func (h *IssuesHandler) UploadAttachment(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewFieldError("file", "No file was submitted.")
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	contentType := header.Header.Get(fiber.HeaderContentType)
	if contentType == "" || contentType == fiber.MIMEOctetStream {
		if byExt := mime.TypeByExtension(filepath.Ext(header.Filename)); byExt != "" {
			contentType = byExt
		}
	}
	attachment, err := h.service.UploadAttachment(c.UserContext(), account, c.Params("id"), service.UploadInput{
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		return err
	}
	accounts := dto.Accounts{account.ID: account}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAttachmentResponse(attachment, accounts)})
}

// DeleteAttachment DELETE /api/attachments/:id.
func (h *IssuesHandler) DeleteAttachment(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteAttachment(c.UserContext(), account, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Dashboard GET /api/issues/dashboard.
func (h *IssuesHandler) Dashboard(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	dash, err := h.service.Dashboard(c.UserContext(), account)
	if err != nil {
		return err
	}
	ids := make([]*string, 0, len(dash.RecentIssues)*2+len(dash.RecentActivity))
	for i := range dash.RecentIssues {
		ids = append(ids, dash.RecentIssues[i].CreatedByID, dash.RecentIssues[i].AssignedToID)
	}
	for i := range dash.RecentActivity {
		ids = append(ids, dash.RecentActivity[i].ChangedByID)
	}
	accounts, err := h.service.Accounts(c.UserContext(), ids...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DashboardResponse{
		Stats:          dash.Stats,
		RecentIssues:   dto.NewIssueResponses(dash.RecentIssues, accounts),
		RecentActivity: dto.NewHistoryResponses(dash.RecentActivity, accounts),
	}})
}

// Map GET /api/issues/map.
func (h *IssuesHandler) Map(c *fiber.Ctx) error {
	issues, err := h.service.MapIssues(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMapIssueResponses(issues)})
}

func (h *IssuesHandler) issueAccounts(c *fiber.Ctx, issues []domain.Issue) (dto.Accounts, error) {
	ids := make([]*string, 0, len(issues)*2)
	for i := range issues {
		ids = append(ids, issues[i].CreatedByID, issues[i].AssignedToID)
	}
	return h.service.Accounts(c.UserContext(), ids...)
}

func parseIssueListQuery(c *fiber.Ctx) service.IssueListInput {
	limit, offset := pagination(c)
	search := c.Query("search")
	if search == "" {
		search = c.Query("q")
	}
	return service.IssueListInput{
		Status:       c.Query("status"),
		Priority:     c.Query("priority"),
		Search:       search,
		AssignedToMe: parseBoolQuery(c, "assigned_to_me", false),
		CreatedByMe:  parseBoolQuery(c, "created_by_me", false),
		Limit:        limit,
		Offset:       offset,
	}
}

func updateInput(req dto.UpdateIssueRequest) service.IssueUpdateInput {
	input := service.IssueUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Location:    req.Location,
	}
	if req.AssignedToID.Set {
		assignee := ""
		if !req.AssignedToID.Null {
			assignee = req.AssignedToID.Value
		}
		input.AssignedToID = &assignee
	}
	if req.DueDate.Set {
		if req.DueDate.Null {
			input.ClearDueDate = true
		} else {
			due := req.DueDate.Value.Time
			input.DueDate = &due
		}
	}
	if req.Latitude.Null || req.Longitude.Null {
		input.ClearCoordinates = true
	} else {
		input.Latitude = req.Latitude.Ptr()
		input.Longitude = req.Longitude.Ptr()
	}
	return input
}
