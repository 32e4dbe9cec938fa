package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/ManuelReschke/Vahana/internal/pkg/env"
	"github.com/ManuelReschke/Vahana/internal/pkg/metrics"
)

// HttpRouter serves the operational endpoints: health, metrics, the fiber
// monitor and uploaded review images.
type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	ops := app.Group("", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}))
	ops.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	ops.Get("/monitor", monitor.New(monitor.Config{Title: "Vahana Monitor"}))

	// review images when S3_ENABLED is off
	app.Static("/uploads", env.GetEnv("UPLOADS_DIR", "./uploads"), fiber.Static{
		Compress:      true,
		ByteRange:     true,
		CacheDuration: 0,
		MaxAge:        86400,
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
