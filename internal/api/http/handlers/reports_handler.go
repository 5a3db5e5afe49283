package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/road-maintenance/internal/api/dto"
	"github.com/spec-kit/road-maintenance/internal/domain"
	"github.com/spec-kit/road-maintenance/internal/service"
	apperrors "github.com/spec-kit/road-maintenance/pkg/util/errorutil"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportsHandler manages report endpoints and the issue export.
type ReportsHandler struct {
	service *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService) *ReportsHandler {
	return &ReportsHandler{service: reportService}
}

// ListReports GET /api/reports.
func (h *ReportsHandler) ListReports(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	reports, err := h.service.List(c.UserContext(), account, limit, offset)
	if err != nil {
		return err
	}
	ids := make([]*string, 0, len(reports))
	for i := range reports {
		ids = append(ids, &reports[i].CreatedByID)
	}
	accounts, err := h.service.Accounts(c.UserContext(), ids...)
	if err != nil {
		return err
	}
	resp := make([]dto.ReportResponse, 0, len(reports))
	for i := range reports {
		resp = append(resp, dto.NewReportResponse(&reports[i], accounts))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreateReport POST /api/reports.
func (h *ReportsHandler) CreateReport(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req dto.ReportRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	report, err := h.service.Create(c.UserContext(), account, service.ReportInput{Title: req.Title, Description: req.Description})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewReportResponse(report, dto.Accounts{account.ID: account})})
}

// GetReport GET /api/reports/:id.
func (h *ReportsHandler) GetReport(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	report, err := h.service.Get(c.UserContext(), account, c.Params("id"))
	if err != nil {
		return err
	}
	return h.respond(c, report)
}

// UpdateReport PATCH /api/reports/:id.
func (h *ReportsHandler) UpdateReport(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req dto.ReportRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	report, err := h.service.Update(c.UserContext(), account, c.Params("id"), service.ReportInput{Title: req.Title, Description: req.Description})
	if err != nil {
		return err
	}
	return h.respond(c, report)
}

// DeleteReport DELETE /api/reports/:id.
func (h *ReportsHandler) DeleteReport(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), account, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ExportIssues GET /api/reports/export/issues streams an xlsx workbook.
func (h *ReportsHandler) ExportIssues(c *fiber.Ctx) error {
	if _, err := currentAccount(c); err != nil {
		return err
	}
	query := parseIssueListQuery(c)
	workbook, filename, err := h.service.ExportIssues(c.UserContext(), query)
	if err != nil {
		return err
	}
	defer workbook.Close()

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}

func (h *ReportsHandler) respond(c *fiber.Ctx, report *domain.Report) error {
	accounts, err := h.service.Accounts(c.UserContext(), &report.CreatedByID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReportResponse(report, accounts)})
}
