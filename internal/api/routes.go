package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/voyago/voyago-backend/internal/orchestrator"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, orch *orchestrator.Orchestrator) {
	app.Get("/", Root())
	app.Get("/health", HealthCheck(orch))

	apiGroup := app.Group("/api")
	apiGroup.Post("/chat", Chat(orch))
	apiGroup.Get("/session/:id", GetSession(orch))
	apiGroup.Delete("/session/:id", DeleteSession(orch))
}
