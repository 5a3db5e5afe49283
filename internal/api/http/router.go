package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/road-maintenance/internal/api/http/handlers"
	"github.com/spec-kit/road-maintenance/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Issues         *handlers.IssuesHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api")
	protected := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAuthenticated()}
	secured := func(h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, protected...), h)
	}

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/token/refresh", cfg.Auth.Refresh)
	authGroup.Post("/password/reset", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)
	authGroup.Post("/logout", secured(cfg.Auth.Logout)...)
	authGroup.Get("/profile", secured(cfg.Auth.Profile)...)
	authGroup.Patch("/profile", secured(cfg.Auth.UpdateProfile)...)
	authGroup.Post("/change-password", secured(cfg.Auth.ChangePassword)...)
	authGroup.Get("/activity", secured(cfg.Auth.Activity)...)

	issues := api.Group("/issues", protected...)
	issues.Get("/", cfg.Issues.ListIssues)
	issues.Post("/", cfg.Issues.CreateIssue)
	issues.Get("/dashboard", cfg.Issues.Dashboard)
	issues.Get("/map", cfg.Issues.Map)
	issues.Get("/:id", cfg.Issues.GetIssue)
	issues.Patch("/:id", cfg.Issues.UpdateIssue)
	issues.Delete("/:id", cfg.Issues.DeleteIssue)
	issues.Post("/:id/status", cfg.Issues.UpdateStatus)
	issues.Get("/:id/history", cfg.Issues.History)
	issues.Post("/:id/comments", cfg.Issues.AddComment)
	issues.Post("/:id/attachments", cfg.Issues.UploadAttachment)

	api.Delete("/attachments/:id", secured(cfg.Issues.DeleteAttachment)...)

	reports := api.Group("/reports", protected...)
	reports.Get("/", cfg.Reports.ListReports)
	reports.Post("/", cfg.Reports.CreateReport)
	reports.Get("/export/issues", cfg.Reports.ExportIssues)
	reports.Get("/:id", cfg.Reports.GetReport)
	reports.Patch("/:id", cfg.Reports.UpdateReport)
	reports.Delete("/:id", cfg.Reports.DeleteReport)
}
