package handlers

import (
	"github.com/gofiber/fiber/v2"

	"academy-backend/database"
	"academy-backend/utils/cache"
	"academy-backend/utils/response"
)

// HandleCheckHealth reports database and cache connectivity.
func HandleCheckHealth(c *fiber.Ctx, store database.Storage, redisCache *cache.RedisCache) error {
	status := fiber.Map{
		"status":   "ok",
		"database": "up",
		"cache":    "up",
	}
	healthy := true

	if err := store.HealthCheck(); err != nil {
		status["database"] = "down"
		healthy = false
	}

	if redisCache == nil {
		status["cache"] = "disabled"
	} else if err := redisCache.GetClient().Ping(c.Context()).Err(); err != nil {
		status["cache"] = "down"
		healthy = false
	}

	if !healthy {
		status["status"] = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return response.Success(c, status)
}
