// Package bootstrap wires the daemon's components together: configuration,
// logging, storage, classification, tracking, rollover, and the HTTP API.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/watchwise/watchwise/internal/aggregator"
	"github.com/watchwise/watchwise/internal/api"
	"github.com/watchwise/watchwise/internal/classifier"
	"github.com/watchwise/watchwise/internal/config"
	"github.com/watchwise/watchwise/internal/hfclient"
	"github.com/watchwise/watchwise/internal/logging"
	"github.com/watchwise/watchwise/internal/processor"
	"github.com/watchwise/watchwise/internal/rollover"
	"github.com/watchwise/watchwise/internal/storage"
	"github.com/watchwise/watchwise/internal/telemetry"
	"github.com/watchwise/watchwise/internal/tracker"
)

// Components holds every wired component of the daemon.
type Components struct {
	Config    *config.Config
	Logger    logging.Logger
	Store     *storage.SQLiteStore
	Telemetry *telemetry.Provider
	Pipeline  *processor.Pipeline
	Manager   *tracker.Manager
	Rollover  *rollover.Scheduler
	Server    *api.Server
}

// New builds the full component graph from a loaded configuration.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Components, error) {
	store, err := storage.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err = storage.SeedDefaults(ctx, store); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("seed storage defaults: %w", err)
	}
	logger.Info("Storage ready", logging.String("path", cfg.Storage.Path))

	tel := telemetry.NewProvider()

	cls, err := newClassifier(cfg, tel, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	agg := aggregator.New(store, logger)
	pipeline := processor.New(cls, agg, tel, logger)

	enabled, err := agg.Tracking(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("read tracking toggle: %w", err)
	}

	manager := tracker.NewManager(tracker.Config{
		MinWatchTime:        cfg.Tracking.MinWatchTime,
		CheckInterval:       cfg.Tracking.CheckInterval,
		FlushInterval:       cfg.Tracking.FlushInterval,
		URLPollInterval:     cfg.Tracking.URLPollInterval,
		DetectRetryBase:     cfg.Tracking.DetectRetryBase,
		DetectRetryAttempts: cfg.Tracking.DetectRetryAttempts,
	}, pipeline, tel, logger, enabled)

	scheduler := rollover.NewScheduler(store, cfg.Rollover.ArchiveKeyPrefix, logger)

	handler := api.NewHandler(manager, agg, tel, logger, cfg.Service.Name, cfg.Service.Version)
	server := api.NewServer(api.ServerConfig{
		Port:  cfg.Service.Port,
		Debug: cfg.Service.Debug,
	}, handler, logger)

	return &Components{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Telemetry: tel,
		Pipeline:  pipeline,
		Manager:   manager,
		Rollover:  scheduler,
		Server:    server,
	}, nil
}

// newClassifier assembles the hybrid classifier. The remote strategy is
// wired only when a credential is configured; everything else runs on the
// local lexicon scorer alone.
func newClassifier(cfg *config.Config, tel *telemetry.Provider, logger logging.Logger) (*classifier.Service, error) {
	local := classifier.NewLocal()

	var remote classifier.RemoteProvider
	client, err := hfclient.NewClient(hfclient.Config{
		APIBase:         cfg.Classification.APIBase,
		APIKey:          cfg.Classification.APIKey,
		SentimentModel:  cfg.Classification.SentimentModel,
		TopicModel:      cfg.Classification.TopicModel,
		CandidateLabels: cfg.Classification.CandidateLabels,
		RequestTimeout:  cfg.Classification.RequestTimeout,
		CacheTTL:        cfg.Classification.CacheTTL,
		RPS:             cfg.Classification.RequestsPerSecond,
	}, tel, logger)
	switch {
	case err == nil:
		remote = client
		logger.Info("Remote classification enabled",
			logging.String("sentiment_model", cfg.Classification.SentimentModel),
			logging.String("topic_model", cfg.Classification.TopicModel),
		)
	case errors.Is(err, hfclient.ErrNoCredential):
		logger.Info("No inference credential configured, using local classification only")
	default:
		return nil, fmt.Errorf("create inference client: %w", err)
	}

	return classifier.NewService(remote, local, cfg.Classification.MinTextRunes, logger), nil
}

// Start starts the rollover scheduler and the HTTP server. The returned
// channel reports a fatal server error.
func (c *Components) Start(ctx context.Context) (<-chan error, error) {
	if err := c.Rollover.Start(ctx); err != nil {
		return nil, err
	}
	return c.Server.StartAsync(), nil
}

// Shutdown stops everything in reverse dependency order. The pipeline is
// drained after the trackers stop so shutdown-time finalize events reach
// the store before it closes.
func (c *Components) Shutdown(ctx context.Context) error {
	var errs []error
	if err := c.Server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	c.Manager.Stop()
	if err := c.Pipeline.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain pipeline: %w", err))
	}
	c.Rollover.Stop()
	if err := c.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
