package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/weatherdeck/weather-deck/internal/api/http"
	"github.com/weatherdeck/weather-deck/internal/config"
	"github.com/weatherdeck/weather-deck/internal/location"
	"github.com/weatherdeck/weather-deck/internal/netcheck"
	"github.com/weatherdeck/weather-deck/internal/store"
	"github.com/weatherdeck/weather-deck/internal/weather"
	"github.com/weatherdeck/weather-deck/internal/weather/openweather"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Durable per-city cache.
	weatherStore, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open weather store: %v", err)
	}
	defer weatherStore.Close()

	// Resolve the fixed city list; bare-name entries are geocoded once here.
	cities := make([]weather.City, 0, len(cfg.Cities))
	for _, entry := range cfg.Cities {
		coords := entry.Coords
		if !entry.HasCoords {
			coords, err = location.GeocodeCity(cfg.GeocoderAPIKey, entry.Name)
			if err != nil {
				log.Fatalf("failed to resolve city %q: %v", entry.Name, err)
			}
		}
		cities = append(cities, weather.City{Name: entry.Name, Coords: coords})
	}

	client := openweather.New(httpClient, cfg.OpenWeatherAPIKey)

	var locator weather.Locator
	switch cfg.LocationMode {
	case "off":
		locator = location.Disabled{}
	case "static":
		locator, err = location.NewStaticLocator(cfg.StaticCoords)
		if err != nil {
			log.Fatalf("invalid static location: %v", err)
		}
	default:
		locator = location.NewIPLocator(httpClient)
	}

	checker := netcheck.New(cfg.ProbeAddr, cfg.ProbeTimeout)

	// Core coordinator orchestrating client, store, locator and probe.
	coordinator := weather.NewCoordinator(client, weatherStore, locator, checker, cities, cfg.FetchTimeout)

	// Initial refresh in the background; the API serves the cached view
	// immediately and updates once the refresh settles.
	go coordinator.Activate(context.Background())

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-deck",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-deck",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, coordinator)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
