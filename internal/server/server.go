package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/strrl/meetscope/internal/aggregator"
	"github.com/strrl/meetscope/internal/analysis"
	"github.com/strrl/meetscope/internal/db"
	"github.com/strrl/meetscope/internal/logging"
	"github.com/strrl/meetscope/internal/metrics"
)

type Pipeline interface {
	Process(ctx context.Context, req analysis.Request) (*analysis.Run, *aggregator.Profile, error)
}

type History interface {
	GetRun(ctx context.Context, id string) (*analysis.Run, error)
	ListRuns(ctx context.Context, limit int) ([]db.RunSummary, error)
}

type Config struct {
	Pipeline Pipeline
	History  History
	Metrics  *metrics.Metrics
	Logger   logging.Logger

	// UploadDir receives one directory per submitted analysis.
	UploadDir string
	BodyLimit int

	// Defaults apply to form fields the client leaves empty.
	Defaults analysis.Options

	// Aggregator profiles stored runs and should be the pipeline's config.
	// Zero means aggregator.DefaultConfig().
	Aggregator aggregator.Config
}

type Server struct {
	app *fiber.App
	cfg Config
}

func New(cfg Config) (*Server, error) {
	if cfg.Pipeline == nil || cfg.History == nil {
		return nil, errors.New("pipeline and history are required")
	}
	if cfg.UploadDir == "" {
		return nil, errors.New("upload directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Aggregator == (aggregator.Config{}) {
		cfg.Aggregator = aggregator.DefaultConfig()
	}

	app := fiber.New(fiber.Config{
		AppName:               "meetscope",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(cfg.Logger),
	})

	s := &Server{app: app, cfg: cfg}

	app.Use(recover.New())
	app.Use(requestLogger(cfg.Logger))

	app.Get("/", s.index)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")
	api.Post("/analyses", s.createAnalysis)
	api.Get("/analyses", s.listAnalyses)
	api.Get("/analyses/:id", s.getAnalysis)
	api.Get("/timecode", s.timecode)

	app.Get("/analyses/:id", s.reportPage)
	app.Get("/analyses/:id/audio", s.audio)

	return s, nil
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func errorHandler(log logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		if code >= fiber.StatusInternalServerError {
			log.Error("request failed", logging.Err(err), logging.F("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

func requestLogger(log logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		log.Info("request",
			logging.F("method", c.Method()),
			logging.F("path", c.Path()),
			logging.F("status", status),
			logging.F("elapsed", time.Since(start)),
		)
		return err
	}
}
