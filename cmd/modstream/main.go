package main

import (
	"flag"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"modstream/internal/config"
	"modstream/internal/handlers"
	"modstream/internal/streams"
	"modstream/internal/util"
)

func main() {
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	portFlag := flag.String("port", "", "listen port (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		util.SetDebugMode(*debugFlag)
		util.InitLogger()
		util.Fatal("failed to load configuration", "error", err)
	}

	util.SetDebugMode(*debugFlag || cfg.Debug)
	util.InitLogger()

	port := cfg.Port
	if *portFlag != "" {
		port = *portFlag
	}

	svc := streams.New(cfg)
	h := handlers.New(svc)

	app := fiber.New(fiber.Config{
		AppName:               "modstream",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	app.Get("/health", h.Health)
	app.Get("/api/streams", h.GetStreams)

	util.Info("listening", "port", port, "provider", cfg.Provider)
	if err := app.Listen(":" + port); err != nil {
		util.Fatal("server stopped", "error", err)
	}
}
