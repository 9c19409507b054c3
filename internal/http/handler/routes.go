package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"supplydocs/internal/service"
)

// CycleReporter exposes the last processing cycle snapshot for the status
// endpoint. Implemented by service.Processor.
type CycleReporter interface {
	LastCycle() (service.CycleStats, bool)
}

// RegisterRoutes attaches the worker's operational endpoints to the
// provided Fiber app. This is the worker's own surface; the supply
// management web application lives elsewhere.
func RegisterRoutes(app *fiber.App, db *sql.DB, proc CycleReporter, reg *prometheus.Registry) {
	// Liveness probe
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	// Readiness: checks DB connectivity only
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})

	// Last processing cycle snapshot
	app.Get("/status", func(c *fiber.Ctx) error {
		stats, ok := proc.LastCycle()
		if !ok {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"state": "waiting_for_first_cycle"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"state":      "running",
			"last_cycle": stats,
		})
	})

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
}
