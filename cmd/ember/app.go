package main

import (
	"context"
	"fmt"

	"github.com/BKHilton/Ember/internal/blob"
	"github.com/BKHilton/Ember/internal/config"
	"github.com/BKHilton/Ember/internal/core"
	"github.com/BKHilton/Ember/internal/mailer"
	"github.com/BKHilton/Ember/internal/notify"
	"github.com/BKHilton/Ember/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// app is the wired process: config, logger, durable store and service.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *core.DocumentStore
	svc      *core.Service
	registry *prometheus.Registry
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}

	store, err := core.OpenPersistentStore(ctx, cfg.StorageOptions(logger.Named("storage")), nil)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	blobs, err := blob.Open(ctx, cfg.BlobOptions())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	weekStart, _ := cfg.WeekStart()
	defaultFrom := cfg.SMTP.From

	svc := core.NewService(store,
		core.WithLogger(core.NewZapLogger(logger.Named("service"))),
		core.WithMetricsRecorder(metrics),
		core.WithBlobStore(blobs),
		core.WithNotifier(notify.NewZapNotifier(logger)),
		core.WithReportFormat(core.ReportFormat(cfg.Report.Format)),
		core.WithWeekStart(weekStart),
		core.WithLocation(cfg.Location()),
		core.WithMailerFactory(func(smtp domain.SMTPConfig) (mailer.Mailer, error) {
			if smtp.From == "" {
				smtp.From = defaultFrom
			}
			return mailer.NewSMTP(smtp)
		}),
	)

	logger.Debug("ember initialised",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("blob", cfg.Blob.Driver))
	return &app{cfg: cfg, log: logger, store: store, svc: svc, registry: registry}, nil
}

func (a *app) Close() {
	a.svc.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("close storage", zap.Error(err))
	}
	_ = a.log.Sync()
}
