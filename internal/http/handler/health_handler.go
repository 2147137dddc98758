package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency the readiness check pings.
type Pinger func(ctx context.Context) error

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	logger  *zap.Logger
	service string
	checks  map[string]Pinger
}

func NewHealthHandler(logger *zap.Logger, service string, checks map[string]Pinger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{logger: logger, service: service, checks: checks}
}

func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/health/ready", h.Ready)
}

// Health is a simple endpoint so we know the service is running.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": h.service,
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready reports 503 when any backing store fails its ping.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	status := fiber.StatusOK
	results := make(fiber.Map, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			results[name] = "down"
			status = fiber.StatusServiceUnavailable
			continue
		}
		results[name] = "up"
	}
	return c.Status(status).JSON(fiber.Map{
		"service": h.service,
		"checks":  results,
	})
}
