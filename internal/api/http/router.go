package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/vitalwarrior/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	State  *handlers.StateHandler
	Scan   *handlers.ScanHandler
	Auth   *handlers.AuthHandler
	Kiosk  *handlers.KioskHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")
	api.Get("/state", cfg.State.State)
	api.Get("/metrics", cfg.State.Metrics)
	api.Get("/notifications/current", cfg.State.Notification)
	api.Delete("/notifications/current", cfg.State.DismissNotification)
	api.Post("/modals/:name/open", cfg.State.OpenModal)
	api.Post("/modals/:name/close", cfg.State.CloseModal)

	scan := api.Group("/scan")
	scan.Post("/start", cfg.Scan.Start)
	scan.Post("/capture", cfg.Scan.Capture)
	scan.Post("/switch", cfg.Scan.Switch)
	scan.Post("/stop", cfg.Scan.Stop)
	scan.Get("/result", cfg.Scan.Result)
	scan.Get("/frame", cfg.Scan.Frame)

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/oauth/:provider", cfg.Auth.OAuth)

	api.Post("/contact", cfg.Kiosk.Contact)
	api.Post("/connectivity/online", cfg.Kiosk.Online)
	api.Post("/connectivity/offline", cfg.Kiosk.Offline)
}
