package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/msg43/winnow/internal/critic"
	"github.com/msg43/winnow/internal/embed"
	"github.com/msg43/winnow/internal/evolution"
	"github.com/msg43/winnow/internal/feedback"
	"github.com/msg43/winnow/internal/history"
	"github.com/msg43/winnow/internal/model"
	"github.com/msg43/winnow/internal/pipeline"
	"github.com/msg43/winnow/internal/promptctx"
	"github.com/msg43/winnow/internal/taste"
)

// app holds the explicitly constructed service graph. Everything is built
// here and injected; nothing is reached through globals.
type app struct {
	cfg      *model.Config
	logger   *zap.Logger
	engine   *taste.Engine
	queue    *feedback.Queue
	proc     *feedback.Processor
	sync     *feedback.Sync
	pipeline *pipeline.Pipeline
}

// appOptions trims the service graph for commands that do not need every
// collaborator.
type appOptions struct {
	critic    bool // Construct the LLM critic (needs an API key)
	processor bool // Start the background feedback processor
}

// newApp constructs and bootstraps the service graph.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	embedder, err := embed.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}

	engine, err := taste.NewEngine(cfg.Store, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("opening taste engine: %w", err)
	}
	if err := engine.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("bootstrapping golden set: %w", err)
	}

	queue, err := feedback.OpenQueue(cfg.Feedback.DBPath, feedback.RetryPolicy{MaxAttempts: cfg.Feedback.MaxAttempts})
	if err != nil {
		return nil, fmt.Errorf("opening feedback queue: %w", err)
	}

	var source history.Source
	if cfg.History.BaseURL != "" {
		source = history.NewCachedSource(
			history.NewHTTPSource(cfg.History.BaseURL, cfg.History.Timeout),
			cfg.History.CacheTTL,
		)
	}

	var truthCritic *critic.Critic
	if opts.critic && cfg.Critic.APIKey != "" {
		client, err := critic.NewOpenAIClient(cfg.Critic)
		if err != nil {
			return nil, fmt.Errorf("initializing critic: %w", err)
		}
		truthCritic = critic.New(client, cfg.Critic, logger)
	}

	filter := taste.NewFilter(engine, cfg.Taste, logger)
	detector := evolution.NewDetector(embedder, source, nil, cfg.Evolution, logger)
	if source == nil {
		detector = nil
	}
	builder := promptctx.NewBuilder(engine, source, cfg.Context, logger)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		engine:   engine,
		queue:    queue,
		sync:     feedback.NewSync(queue, logger),
		pipeline: pipeline.New(filter, truthCritic, detector, builder, logger),
	}

	if opts.processor {
		a.proc = feedback.NewProcessor(queue, engine, cfg.Feedback, logger)
		a.proc.Start()
	}
	return a, nil
}

// Close stops the background worker with its bounded join and releases
// resources.
func (a *app) Close() {
	if a.proc != nil {
		if err := a.proc.Stop(); err != nil {
			a.logger.Warn("feedback processor stop", zap.Error(err))
		}
	}
	if a.queue != nil {
		_ = a.queue.Close()
	}
	_ = a.logger.Sync()
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
