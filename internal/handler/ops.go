package handler

import (
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kursadbilgin/outreach-dispatch/internal/observability"
	"github.com/kursadbilgin/outreach-dispatch/internal/service"
	"github.com/kursadbilgin/outreach-dispatch/internal/transport"
)

// RunReporter exposes the outcome of the latest scheduled run.
type RunReporter interface {
	LastRun() (service.LastRun, bool)
}

type runSummaryResponse struct {
	RunID      string    `json:"runId"`
	Candidates int       `json:"candidates"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Suppressed int       `json:"suppressed"`
	Invalid    int       `json:"invalid"`
	Errored    int       `json:"errored"`
	Forced     bool      `json:"forced"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Error      string    `json:"error,omitempty"`
}

// NewOpsApp builds the daemon's ops surface: health probes, metrics and the last run.
func NewOpsApp(
	logger *zap.Logger,
	metrics *observability.Metrics,
	sqlDB *sql.DB,
	rdb *redis.Client,
	runs RunReporter,
) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if runs != nil {
		app.Get("/v1/runs/last", LastRunHandler(runs))
	}
	return app
}

func LastRunHandler(runs RunReporter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		last, ok := runs.LastRun()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no dispatch run has finished yet")
		}

		s := last.Summary
		resp := runSummaryResponse{
			RunID:      s.RunID,
			Candidates: s.Candidates,
			Sent:       s.Sent,
			Failed:     s.Failed,
			Skipped:    s.Skipped,
			Suppressed: s.Suppressed,
			Invalid:    s.Invalid,
			Errored:    s.Errored,
			Forced:     s.Forced,
			StartedAt:  s.StartedAt,
			FinishedAt: s.FinishedAt,
		}
		if last.Err != nil {
			resp.Error = last.Err.Error()
		}
		return c.Status(fiber.StatusOK).JSON(resp)
	}
}
