package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskops/helpdesk/internal/api/http/handlers"
	"github.com/deskops/helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Technician     *handlers.TechnicianHandler
	AdminTickets   *handlers.AdminTicketsHandler
	Users          *handlers.UsersHandler
	Profile        *handlers.ProfileHandler
	Stats          *handlers.StatsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Role checks live in the services;
// routes only decide whether a session is required.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	requireSession := cfg.AuthMiddleware.Handle
	optionalSession := cfg.AuthMiddleware.Optional

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/dashboard", fiber.StatusFound)
	})

	app.Get("/login", cfg.Auth.LoginPage)
	app.Post("/login", cfg.Auth.Login)
	app.Get("/register", cfg.Auth.RegisterPage)
	app.Post("/register", cfg.Auth.Register)
	app.Get("/logout", requireSession, cfg.Auth.Logout)

	// Feeds are public unless PUBLIC_TICKET_FEEDS=false; the service decides.
	app.Get("/tickets", optionalSession, cfg.Tickets.Feed)
	app.Get("/export", optionalSession, cfg.Tickets.Export)

	app.Post("/tickets", requireSession, cfg.Tickets.Submit)
	app.Get("/formulaire", requireSession, cfg.Tickets.Form)
	app.Get("/dashboard", requireSession, cfg.Tickets.Dashboard)
	app.Get("/stats", requireSession, cfg.Stats.Stats)
	app.Get("/profil", requireSession, cfg.Profile.Show)
	app.Post("/profil", requireSession, cfg.Profile.Update)

	technician := app.Group("/technicien", requireSession)
	technician.Get("/tickets", cfg.Technician.Queue)
	technician.Post("/tickets/:id/update", cfg.Technician.Update)

	admin := app.Group("/admin", requireSession)
	admin.Get("/users", cfg.Users.List)
	admin.Post("/users/add", cfg.Users.Create)
	admin.Post("/users/delete/:id", cfg.Users.Delete)
	admin.Get("/users/edit/:id", cfg.Users.EditPage)
	admin.Post("/users/edit/:id", cfg.Users.Edit)
	admin.Get("/tickets/edit/:id", cfg.AdminTickets.EditPage)
	admin.Post("/tickets/edit/:id", cfg.AdminTickets.Edit)
	admin.Post("/tickets/delete/:id", cfg.AdminTickets.Delete)
}
