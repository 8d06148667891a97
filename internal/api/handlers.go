package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/voyago/voyago-backend/internal/orchestrator"
	"github.com/voyago/voyago-backend/internal/store"
)

// Root describes the service
func Root() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Voyago Travel Assistant API",
			"status":  "running",
			"features": []string{
				"Multi-language travel queries",
				"Context-aware incomplete input handling",
				"Follow-up answers from session memory",
			},
		})
	}
}

// HealthCheck reports engine health
func HealthCheck(orch *orchestrator.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := orch.HealthCheck(c.Context())
		status := fiber.StatusOK
		if health.Status != "healthy" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

// Chat processes one conversational turn
func Chat(orch *orchestrator.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req orchestrator.TurnRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		if strings.TrimSpace(req.Message) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "message is required",
			})
		}

		resp, err := orch.ProcessTurn(c.Context(), req)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Session not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(resp)
	}
}

// GetSession returns the full session snapshot
func GetSession(orch *orchestrator.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snapshot, err := orch.SessionSnapshot(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Session not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(snapshot)
	}
}

// DeleteSession deletes a session and all its history
func DeleteSession(orch *orchestrator.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		found, err := orch.DeleteSession(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		if !found {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Session not found",
			})
		}
		return c.JSON(fiber.Map{
			"message": "Session deleted successfully",
		})
	}
}
