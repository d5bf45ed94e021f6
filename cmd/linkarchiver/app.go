package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dshills/linkarchiver/internal/archivebox"
	"github.com/dshills/linkarchiver/internal/config"
	"github.com/dshills/linkarchiver/internal/metrics"
	"github.com/dshills/linkarchiver/internal/observability"
	"github.com/dshills/linkarchiver/internal/pipeline"
	"github.com/dshills/linkarchiver/internal/status"
	"github.com/dshills/linkarchiver/internal/storage"
)

// app holds the wired components for one command run
type app struct {
	provider *config.FileProvider
	logger   *zap.Logger
	metrics  *metrics.Metrics
	store    *storage.SQLiteStorage
	status   *status.Holder
	pipeline *pipeline.Pipeline

	metricsDone chan error
}

// setup loads config, initializes logging and metrics, opens storage and
// builds the pipeline with its dedup cache restored
func setup(ctx context.Context, opts *rootOptions) (*app, error) {
	provider, err := config.NewFileProvider(opts.configPath)
	if err != nil {
		return nil, err
	}
	cfg := provider.Current()

	logCfg := cfg.Logger
	if opts.logLevel != "" {
		logCfg.Level = opts.logLevel
	}
	observability.InitializeLogger(logCfg)
	logger := observability.GetLogger()

	provider.OnChange(func(*config.Config) {
		logger.Info("configuration reloaded")
	})
	provider.Watch()

	a := &app{
		provider: provider,
		logger:   logger,
		metrics:  metrics.New(),
		status:   status.NewHolder(logger.Named("status")),
	}

	if path := cfg.Storage.Path; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		a.store, err = storage.NewSQLiteStorage(path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		logger.Info("storage opened",
			zap.String("path", path),
			zap.String("build_mode", storage.BuildMode),
			zap.String("driver", storage.DriverName))
	}

	popts := pipeline.Options{
		Config:  provider,
		Remote:  archivebox.NewClient(logger.Named("archivebox")),
		Status:  a.status,
		Metrics: a.metrics,
		Logger:  logger.Named("pipeline"),
	}
	if a.store != nil {
		popts.Storage = a.store
	}
	a.pipeline, err = pipeline.New(popts)
	if err != nil {
		a.closeStore()
		return nil, err
	}
	if _, err := a.pipeline.Restore(ctx); err != nil {
		a.closeStore()
		return nil, err
	}

	addr := cfg.Metrics.Addr
	if opts.metricsAddr != "" {
		addr = opts.metricsAddr
	}
	if addr != "" {
		a.metricsDone = make(chan error, 1)
		go func() {
			a.metricsDone <- a.metrics.Serve(ctx, addr, logger.Named("metrics"))
		}()
	}

	return a, nil
}

// close persists the dedup cache and releases storage. ctx should outlive
// the command context so shutdown work is not cut short.
func (a *app) close(ctx context.Context) {
	if err := a.pipeline.Close(ctx); err != nil {
		a.logger.Warn("failed to close pipeline", zap.Error(err))
	}
	a.closeStore()

	if a.metricsDone != nil {
		if err := <-a.metricsDone; err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}
}

func (a *app) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close storage", zap.Error(err))
	}
}
