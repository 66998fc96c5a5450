package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/strrl/meetscope/internal/logging"
	"github.com/strrl/meetscope/internal/metrics"
)

var (
	ErrMissingAPIKey = errors.New("GEMINI_API_KEY is required")
	ErrEmptyResponse = errors.New("model returned an empty response")
	ErrInvalidOutput = errors.New("model output does not match the analysis schema")
	ErrUnavailable   = errors.New("model service temporarily unavailable")
)

var tracer = otel.Tracer("github.com/strrl/meetscope/internal/ai")

type fileService interface {
	UploadFromPath(ctx context.Context, path string, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
}

type modelService interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	files   fileService
	models  modelService
	breaker *gobreaker.CircuitBreaker
	cfg     Config
	log     logging.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg = cfg.withDefaults()

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newClient(gc.Files, gc.Models, cfg, opts...), nil
}

func newClient(files fileService, models modelService, cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		files:  files,
		models: models,
		cfg:    cfg,
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini-generate",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed",
				logging.F("breaker", name),
				logging.F("from", from.String()),
				logging.F("to", to.String()),
			)
		},
	})

	return c
}

func (c *Client) Config() Config {
	return c.cfg
}

// Generate runs a single structured generation call through the breaker.
func (c *Client) Generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, span := tracer.Start(ctx, "gemini.generate_content", trace.WithAttributes(
		attribute.String("gemini.model", model),
		attribute.Int("gemini.parts", countParts(contents)),
	))
	defer span.End()

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.models.GenerateContent(ctx, model, contents, config)
	})
	elapsed := time.Since(start)
	c.metrics.ObserveGeneration(elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("generation request failed: %w", err)
	}

	resp, _ := out.(*genai.GenerateContentResponse)
	if resp == nil {
		span.SetStatus(codes.Error, "empty response")
		return nil, ErrEmptyResponse
	}

	if resp.UsageMetadata != nil {
		span.SetAttributes(
			attribute.Int("gemini.prompt_tokens", int(resp.UsageMetadata.PromptTokenCount)),
			attribute.Int("gemini.output_tokens", int(resp.UsageMetadata.CandidatesTokenCount)),
		)
	}

	c.log.Debug("generation finished",
		logging.F("model", model),
		logging.F("elapsed", elapsed),
	)

	return resp, nil
}

func countParts(contents []*genai.Content) int {
	n := 0
	for _, content := range contents {
		if content != nil {
			n += len(content.Parts)
		}
	}
	return n
}
