package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/strrl/meetscope/internal/aggregator"
	"github.com/strrl/meetscope/internal/ai"
	"github.com/strrl/meetscope/internal/cache"
	"github.com/strrl/meetscope/internal/config"
	"github.com/strrl/meetscope/internal/credentials"
	"github.com/strrl/meetscope/internal/db"
	"github.com/strrl/meetscope/internal/logging"
	"github.com/strrl/meetscope/internal/metrics"
	"github.com/strrl/meetscope/internal/pipeline"
)

// runtime holds everything an analysis needs. close releases the history
// database and the upload cache connection.
type runtime struct {
	cfg      *config.Config
	log      logging.Logger
	metrics  *metrics.Metrics
	client   *ai.Client
	history  *db.Store
	pipeline *pipeline.Pipeline
	profiles aggregator.Config

	closers []func() error
}

type runtimeOptions struct {
	noCache   bool
	noHistory bool
}

func newRuntime(ctx context.Context, cfg *config.Config, log logging.Logger, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: log, metrics: metrics.New(), profiles: aggregator.DefaultConfig()}

	apiKey, source, err := credentials.NewStore().Resolve(cfg.Gemini.APIKey)
	if err != nil {
		return nil, fmt.Errorf("%w (run `meetscope auth set-key` or export %s)", err, credentials.EnvAPIKey)
	}
	log.Debug("using api key", logging.F("source", string(source)))

	rt.client, err = ai.NewClient(ctx, aiConfig(cfg, apiKey), ai.WithLogger(log), ai.WithMetrics(rt.metrics))
	if err != nil {
		return nil, err
	}

	store, err := rt.uploadCache(ctx, opts.noCache)
	if err != nil {
		rt.close()
		return nil, err
	}

	pcfg := pipeline.Config{
		Analyzer:   ai.NewAnalyzer(rt.client, store),
		Aggregator: rt.profiles,
		Logger:     log,
		Metrics:    rt.metrics,
	}

	if !opts.noHistory {
		rt.history, err = openHistory(cfg)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.closers = append(rt.closers, rt.history.Close)
		pcfg.History = rt.history
	}

	rt.pipeline, err = pipeline.New(pcfg)
	if err != nil {
		rt.close()
		return nil, err
	}

	return rt, nil
}

func (rt *runtime) uploadCache(ctx context.Context, disabled bool) (cache.Store, error) {
	if disabled {
		return cache.Nop{}, nil
	}

	switch rt.cfg.Cache.Backend {
	case config.CacheNone:
		return cache.Nop{}, nil
	case config.CacheRedis:
		r, err := cache.NewRedis(rt.cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, r.Close)
		return r, nil
	default:
		return cache.NewMemory(), nil
	}
}

func (rt *runtime) close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func aiConfig(cfg *config.Config, apiKey string) ai.Config {
	return ai.Config{
		APIKey:      apiKey,
		Model:       cfg.Gemini.Model,
		Temperature: cfg.Gemini.Temperature,
		Language:    cfg.Gemini.Language,
		Timeout:     cfg.Gemini.Timeout,
		CacheTTL:    cfg.Cache.TTL,
	}
}

func openHistory(cfg *config.Config) (*db.Store, error) {
	store, err := db.Open(cfg.Storage.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", cfg.Storage.HistoryDB, err)
	}
	return store, nil
}
