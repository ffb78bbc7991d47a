package httpapi

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/weatherdeck/weather-deck/internal/weather"
)

var validate = validator.New()

// Coordinator is the slice of the weather coordinator this layer
// consumes: one read-only snapshot and one refresh action. The HTTP
// layer never talks to the client, store or locator directly.
type Coordinator interface {
	Snapshot() weather.View
	Activate(ctx context.Context) bool
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, coord Coordinator) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		return c.JSON(coord.Snapshot())
	})

	v1.Get("/weather/city", func(c *fiber.Ctx) error {
		q := cityQuery{Name: c.Query("name")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		view := coord.Snapshot()
		if view.Current != nil && view.Current.CityName == q.Name {
			return c.JSON(view.Current)
		}
		rec, ok := view.ByCity[q.Name]
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no weather data for requested city")
		}
		return c.JSON(rec)
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		if !coord.Activate(c.UserContext()) {
			return fiber.NewError(fiber.StatusConflict, "refresh already in progress")
		}
		return c.JSON(coord.Snapshot())
	})
}

// cityQuery holds query parameters for the single-city endpoint.
type cityQuery struct {
	Name string `validate:"required"`
}
