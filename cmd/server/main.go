package main

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/example/devstudio/internal/config"
	"github.com/example/devstudio/internal/database"
	"github.com/example/devstudio/internal/routes"
)

func main() {
	cfg := config.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db := database.Connect(cfg.DatabaseURL)

	app := fiber.New(fiber.Config{
		AppName:     "Developer Studio Backend",
		ProxyHeader: proxyHeader(cfg),
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.CORSOrigins, ","),
		AllowCredentials: true,
	}))

	routes.Register(app, db, cfg, log)

	log.Info().Str("port", cfg.AppPort).Msg("starting server")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal().Err(err).Msg("fiber.Listen error")
	}
}

// proxyHeader trusts the platform proxy's client IP header in production so
// the per-IP rate limits key on the real caller.
func proxyHeader(cfg *config.Config) string {
	if cfg.IsProduction() {
		return fiber.HeaderXForwardedFor
	}
	return ""
}
