// Package app wires stores, services and the event feed from a Config.
// Every binary builds its components through New.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"swap-risk-lab/internal/config"
	"swap-risk-lab/internal/exposure"
	"swap-risk-lab/internal/feed"
	"swap-risk-lab/internal/ingestion"
	"swap-risk-lab/internal/logging"
	"swap-risk-lab/internal/narrative"
	"swap-risk-lab/internal/normalization"
	"swap-risk-lab/internal/orchestrator"
	"swap-risk-lab/internal/reporting"
	"swap-risk-lab/internal/resolver"
	"swap-risk-lab/internal/risk"
	"swap-risk-lab/internal/verification"
)

// App holds the wired components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Stores *Stores

	Resolver   *resolver.Resolver
	Aggregator *exposure.Aggregator
	Pipeline   *ingestion.Pipeline
	Service    *risk.Service
	Verifier   *verification.DerivationVerifier
	Reports    *reporting.Generator
	Sweep      *orchestrator.Orchestrator
	Hub        *feed.Hub

	// Narrator is nil unless narratives are enabled.
	Narrator narrative.Generator
}

// New opens the configured stores and builds every component over them.
// now is the clock used for scoring; nil uses time.Now.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, now func() time.Time) (*App, error) {
	logger = logging.OrNop(logger)
	if now == nil {
		now = time.Now
	}

	var fields *normalization.FieldMap
	if cfg.FieldMap != "" {
		fm, err := normalization.LoadFieldMap(cfg.FieldMap)
		if err != nil {
			return nil, fmt.Errorf("load field map: %w", err)
		}
		fields = fm
	}

	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Stores: stores}

	a.Hub = feed.NewHub(nil, logger.Named("feed"))
	a.Resolver = resolver.New(stores.Store, resolver.Options{Logger: logger.Named("resolver")})
	a.Aggregator = exposure.NewAggregator(stores.Store, exposure.Options{
		Cache: exposure.NewSnapshotCache(stores.Store),
		Now:   now,
	})
	a.Pipeline = ingestion.NewPipeline(ingestion.PipelineOptions{
		Normalizer: normalization.New(normalization.Options{FieldMap: fields, Logger: logger.Named("normalizer")}),
		Resolver:   a.Resolver,
		Store:      stores.Store,
		Cache:      a.Aggregator,
		Publisher:  a.Hub,
		Logger:     logger.Named("ingestion"),
	})
	a.Service = risk.NewService(a.Aggregator, risk.NewScorer(risk.ScorerOptions{Now: now}), stores.Store, risk.ServiceOptions{
		History: stores.History,
		Logger:  logger.Named("risk"),
	})
	a.Verifier = verification.NewDerivationVerifier(verification.DerivationVerifierOptions{
		Store:  stores.Store,
		Saver:  a.Pipeline,
		Logger: logger.Named("verification"),
	})
	a.Sweep = orchestrator.New(orchestrator.Options{
		Store:    stores.Store,
		Service:  a.Service,
		Verifier: a.Verifier,
		Repair:   true,
		Now:      now,
		Logger:   logger.Named("sweep"),
	})

	a.Reports = reporting.NewGenerator(a.Service, stores.Store).WithClock(func() time.Time { return now().UTC() })
	if cfg.Narrative {
		a.Narrator = narrative.NewOllamaClient(
			narrative.WithBaseURL(cfg.OllamaURL),
			narrative.WithModel(cfg.OllamaModel),
		)
		a.Reports.WithNarrator(a.Narrator)
	}

	return a, nil
}

// NewRunner builds a batch runner over the app's pipeline.
func (a *App) NewRunner() *ingestion.Runner {
	return ingestion.NewRunner(ingestion.RunnerOptions{
		Pipeline: a.Pipeline,
		Workers:  a.Config.Workers,
		Logger:   a.Logger.Named("runner"),
	})
}

// NewWatcher builds a directory watcher over the app's pipeline.
func (a *App) NewWatcher(dir string, onResult func(*ingestion.FileResult)) *ingestion.Watcher {
	return ingestion.NewWatcher(ingestion.WatcherOptions{
		Pipeline: a.Pipeline,
		Dir:      dir,
		OnResult: onResult,
		Logger:   a.Logger.Named("watcher"),
	})
}

// Close shuts the feed and releases the stores.
func (a *App) Close() {
	a.Hub.Close()
	a.Stores.Close()
}
