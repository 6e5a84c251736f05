package handler

import "github.com/gofiber/fiber/v2"

func RegisterHealthRoutes(app fiber.Router) {
	app.Get("/livez", LivezHandler())
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}
