package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskops/helpdesk/internal/auth"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

// LayoutView wraps every HTML page.
const LayoutView = "layouts/main"

// WantsHTML reports whether the client prefers an HTML page over JSON.
// Clients that send no Accept header get JSON.
func WantsHTML(c *fiber.Ctx) bool {
	return c.Accepts(fiber.MIMEApplicationJSON, fiber.MIMETextHTML) == fiber.MIMETextHTML
}

// render answers with a view for browsers and {"data": payload} otherwise.
func render(c *fiber.Ctx, status int, view string, bind fiber.Map, payload any) error {
	if WantsHTML(c) {
		return c.Status(status).Render(view, withCaller(c, bind), LayoutView)
	}
	return c.Status(status).JSON(fiber.Map{"data": payload})
}

// page renders an HTML-only view such as a form.
func page(c *fiber.Ctx, view string, bind fiber.Map) error {
	return c.Render(view, withCaller(c, bind), LayoutView)
}

// done finishes a successful write: browsers follow a redirect, API clients
// receive the payload with status.
func done(c *fiber.Ctx, status int, location string, payload any) error {
	if WantsHTML(c) {
		return c.Redirect(location, fiber.StatusSeeOther)
	}
	if payload == nil {
		return c.SendStatus(status)
	}
	return c.Status(status).JSON(fiber.Map{"data": payload})
}

func withCaller(c *fiber.Ctx, bind fiber.Map) fiber.Map {
	if bind == nil {
		bind = fiber.Map{}
	}
	if _, ok := bind["Caller"]; !ok {
		bind["Caller"] = auth.CallerFromContext(c)
	}
	return bind
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}
