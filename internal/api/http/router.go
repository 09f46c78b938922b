package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leave-service/internal/api/http/handlers"
	"github.com/spec-kit/leave-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Requests       *handlers.RequestsHandler
	Approvals      *handlers.ApprovalsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	authProtected.Post("/register", auth.RequireAdmin(), cfg.Auth.Register)
	authProtected.Post("/logout", cfg.Auth.Logout)
	authProtected.Post("/password/change", cfg.Auth.ChangePassword)

	approvals := app.Group("/approvals", cfg.AuthMiddleware.Handle)
	approvals.Get("/pending", cfg.Requests.Pending)

	requests := app.Group("/requests", cfg.AuthMiddleware.Handle)
	requests.Post("", cfg.Requests.Create)
	requests.Get("", cfg.Requests.List)
	requests.Get("/:id", cfg.Requests.Get)
	requests.Put("/:id", cfg.Requests.Update)
	requests.Delete("/:id", cfg.Requests.Delete)

	decisions := requests.Group("/:id", auth.RequireApprover())
	decisions.Post("/manager-approve", cfg.Approvals.ManagerApprove)
	decisions.Post("/manager-reject", cfg.Approvals.ManagerReject)
	decisions.Post("/hr-approve", cfg.Approvals.HRApprove)
	decisions.Post("/hr-reject", cfg.Approvals.HRReject)
}
