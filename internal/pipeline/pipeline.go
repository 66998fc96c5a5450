package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strrl/meetscope/internal/aggregator"
	"github.com/strrl/meetscope/internal/analysis"
	"github.com/strrl/meetscope/internal/logging"
	"github.com/strrl/meetscope/internal/metrics"
)

type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

type History interface {
	SaveRun(ctx context.Context, run *analysis.Run) error
}

type Pipeline struct {
	analyzer   Analyzer
	history    History
	aggregator aggregator.Config
	log        logging.Logger
	metrics    *metrics.Metrics

	now   func() time.Time
	newID func() string
}

type Config struct {
	Analyzer Analyzer
	// History is optional; runs are not persisted without it.
	History    History
	Aggregator aggregator.Config
	Logger     logging.Logger
	Metrics    *metrics.Metrics
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	return &Pipeline{
		analyzer:   cfg.Analyzer,
		history:    cfg.History,
		aggregator: cfg.Aggregator,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

type runStats struct {
	Participants int
	Dropped      []string
	Renamed      int
	Examples     int
	Warnings     int
}

// Process runs one analysis end to end: prepare the request, analyze it,
// aggregate the indicators and record the run in history.
func (p *Pipeline) Process(ctx context.Context, req analysis.Request) (*analysis.Run, *aggregator.Profile, error) {
	run, profile, stats, err := p.process(ctx, req)
	if err != nil {
		p.metrics.Analysis("error")
		return nil, nil, err
	}
	p.metrics.Analysis("ok")

	p.log.Info("analysis complete",
		logging.F("run_id", run.ID),
		logging.F("participants", stats.Participants),
		logging.F("dropped", len(stats.Dropped)),
		logging.F("renamed", stats.Renamed),
		logging.F("examples", stats.Examples),
		logging.F("warnings", stats.Warnings),
		logging.F("duration", run.Duration),
	)

	return run, profile, nil
}

func (p *Pipeline) process(ctx context.Context, req analysis.Request) (*analysis.Run, *aggregator.Profile, runStats, error) {
	var stats runStats
	start := p.now()

	prepared, prep, err := prepare(req)
	if err != nil {
		return nil, nil, stats, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	stats.Participants = len(prepared.Participants)
	stats.Dropped = prep.Dropped
	stats.Renamed = prep.Renamed

	for _, name := range prep.Dropped {
		p.log.Warn("participant skipped, no voice sample", logging.F("participant", name))
	}

	result, err := p.analyzer.Analyze(ctx, prepared)
	if err != nil {
		return nil, nil, stats, fmt.Errorf("analysis failed: %w", err)
	}

	run := &analysis.Run{
		ID:           p.newID(),
		CreatedAt:    start.UTC(),
		Model:        result.Model,
		AudioPath:    prepared.Audio.Path,
		AudioMIME:    prepared.Audio.MIMEType,
		Participants: prepared.ParticipantNames(),
		Report:       result.Report,
		Usage:        result.Usage,
		Warnings:     result.Warnings,
	}

	agg := aggregator.NewAggregator(p.aggregator)
	profile := agg.Aggregate(run.Report)
	stats.Examples = profile.TotalExamples
	for _, total := range profile.Totals {
		p.metrics.Examples(string(total.Kind), total.Examples)
	}

	run.Duration = p.now().Sub(start)

	if p.history != nil {
		if err := p.history.SaveRun(ctx, run); err != nil {
			p.log.Error("failed to save run to history", logging.F("run_id", run.ID), logging.Err(err))
			run.Warnings = append(run.Warnings, fmt.Sprintf("run was not saved to history: %v", err))
		}
	}
	stats.Warnings = len(run.Warnings)

	return run, profile, stats, nil
}
