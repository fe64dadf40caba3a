package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/pipeline"
	"github.com/i474232898/weather-pipeline/internal/scheduler"
	"github.com/i474232898/weather-pipeline/internal/store"
)

var validate = validator.New()

const defaultRunsLimit = 20

// Runs is the run history and trigger the API exposes.
type Runs interface {
	Latest() (pipeline.Report, error)
	List(limit int) []pipeline.Report
	Trigger() error
	Running() bool
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, runs Runs, registry *metrics.Registry) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-pipeline",
			"running": runs.Running(),
		})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.JSON(registry.Snapshot())
	})

	v1 := app.Group("/api/v1")

	v1.Get("/runs", func(c *fiber.Ctx) error {
		q, err := parseRunsQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		reports := runs.List(q.Limit)
		return c.JSON(fiber.Map{
			"count": len(reports),
			"runs":  reports,
		})
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		report, err := runs.Latest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no pipeline runs recorded yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read run history")
		}
		return c.JSON(report)
	})

	v1.Post("/runs", func(c *fiber.Ctx) error {
		if err := runs.Trigger(); err != nil {
			if errors.Is(err, scheduler.ErrRunInProgress) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to start pipeline run")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "accepted",
		})
	})
}

// runsQuery holds query parameters for the run listing.
type runsQuery struct {
	Limit int `validate:"min=1,max=100"`
}

func parseRunsQuery(c *fiber.Ctx) (runsQuery, error) {
	q := runsQuery{Limit: defaultRunsLimit}

	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, errors.New("limit must be an integer")
		}
		q.Limit = n
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}
