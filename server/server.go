package server

import (
	"context"
	"time"

	"varsle/db"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type ServerConfig struct {

	// The database to read registrations from
	DB *db.DB

	// Reports whether the poll loop is currently running
	SchedulerRunning func() bool
}

// Returns a fiber.App instance serving the keep-alive page, health and
// introspection endpoints for the notifier
func Server(config *ServerConfig) *fiber.App {

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		// stop timer
		stop := time.Now()

		// Diff
		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	// Keep-alive page for uptime monitors
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Bot is alive!")
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(map[string]interface{}{
			"status":    "ok",
			"scheduler": config.SchedulerRunning(),
		})
	})

	app.Get("/feeds", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
		defer cancel()

		feeds, err := config.DB.ListFeeds(ctx, true)
		if err != nil {
			log.Error("Error listing feeds", err)
			return c.Status(fiber.StatusInternalServerError).JSON(map[string]interface{}{
				"error": "could not list feeds",
			})
		}
		return c.JSON(feeds)
	})

	app.Get("/channels", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
		defer cancel()

		channels, err := config.DB.ListChannels(ctx, true)
		if err != nil {
			log.Error("Error listing channels", err)
			return c.Status(fiber.StatusInternalServerError).JSON(map[string]interface{}{
				"error": "could not list channels",
			})
		}
		return c.JSON(channels)
	})

	app.Get("/channels/:id/entries", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
		defer cancel()

		limit := c.QueryInt("limit", 20)

		entries, err := config.DB.ListEntries(ctx, c.Params("id"), limit)
		if err != nil {
			log.Error("Error listing entries", err)
			return c.Status(fiber.StatusInternalServerError).JSON(map[string]interface{}{
				"error": "could not list entries",
			})
		}
		return c.JSON(entries)
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}
