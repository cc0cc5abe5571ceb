// Package main wires together the inspection report exporter service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pubsubv2 "cloud.google.com/go/pubsub/v2"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/sitewise/inspection-exporter/internal/api"
	"github.com/sitewise/inspection-exporter/internal/archive"
	"github.com/sitewise/inspection-exporter/internal/auth"
	"github.com/sitewise/inspection-exporter/internal/clock/system"
	"github.com/sitewise/inspection-exporter/internal/config"
	"github.com/sitewise/inspection-exporter/internal/export"
	"github.com/sitewise/inspection-exporter/internal/hash/sha256"
	"github.com/sitewise/inspection-exporter/internal/id/uuid"
	"github.com/sitewise/inspection-exporter/internal/logging"
	"github.com/sitewise/inspection-exporter/internal/probe"
	memorypublisher "github.com/sitewise/inspection-exporter/internal/publisher/memory"
	pubsubpublisher "github.com/sitewise/inspection-exporter/internal/publisher/pubsub"
	"github.com/sitewise/inspection-exporter/internal/ratelimit"
	"github.com/sitewise/inspection-exporter/internal/render/layout"
	"github.com/sitewise/inspection-exporter/internal/render/pdf"
	"github.com/sitewise/inspection-exporter/internal/render/session"
	gcsstore "github.com/sitewise/inspection-exporter/internal/storage/gcs"
	localstore "github.com/sitewise/inspection-exporter/internal/storage/local"
	memorystore "github.com/sitewise/inspection-exporter/internal/storage/memory"
	"github.com/sitewise/inspection-exporter/internal/storage/postgres"
	"github.com/sitewise/inspection-exporter/internal/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Application.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, _, err := telemetry.Init(ctx, &cfg)
	if err != nil {
		logger.Fatal("telemetry init failed", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	validator, err := auth.NewValidator(cfg.Auth.Secret)
	if err != nil {
		logger.Fatal("auth validator init failed", zap.Error(err))
	}
	locator, err := export.NewLocator(cfg.Reports.BaseURL)
	if err != nil {
		logger.Fatal("report locator init failed", zap.Error(err))
	}
	host, err := locator.Host()
	if err != nil {
		logger.Fatal("report base URL has no host", zap.Error(err))
	}

	prober, err := probe.New(probe.Config{CookieName: cfg.Auth.CookieName})
	if err != nil {
		logger.Fatal("probe init failed", zap.Error(err))
	}
	sessions, err := session.NewManager(session.Config{
		ExecPath:       cfg.Browser.ExecPath,
		CookieName:     cfg.Auth.CookieName,
		CookieHost:     host,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
	}, logger.Named("session"))
	if err != nil {
		logger.Fatal("session manager init failed", zap.Error(err))
	}
	layoutAdapter := layout.NewAdapter(layout.Config{
		SelectorTimeout: cfg.SelectorTimeout(),
	}, logger.Named("layout"))
	capturer := pdf.NewCapturer()
	hasher := sha256.New()
	clock := system.New()
	idGen := uuid.New()

	var queue *archive.Queue
	var archiveQueue export.ArchiveQueue
	var dispatch *archive.Dispatcher
	if cfg.Archive.Enabled {
		blobStore, err := buildBlobStore(ctx, cfg)
		if err != nil {
			logger.Fatal("blob store init failed", zap.Error(err))
		}
		auditStore, err := buildAuditStore(ctx, cfg)
		if err != nil {
			logger.Fatal("audit store init failed", zap.Error(err))
		}
		publisher, err := buildPublisher(ctx, cfg)
		if err != nil {
			logger.Fatal("publisher init failed", zap.Error(err))
		}

		queue = archive.NewQueue(cfg.Archive.QueueDepth)
		archiveQueue = queue
		workerCfg := archive.Config{
			BlobPrefix:  cfg.Storage.Prefix,
			ContentType: "application/pdf",
			Topic:       cfg.PubSub.TopicName,
		}
		var workers []*archive.Worker
		for i := 0; i < cfg.Archive.Workers; i++ {
			workers = append(workers, archive.NewWorker(
				queue,
				blobStore,
				auditStore,
				publisher,
				workerCfg,
				logger.Named("archive").With(zap.Int("index", i)),
			))
		}
		dispatch = archive.NewDispatcher(queue, workers)
	}

	exporter := export.New(
		locator,
		prober,
		sessions,
		sessions,
		layoutAdapter,
		capturer,
		archiveQueue,
		hasher,
		clock,
		idGen,
		export.Config{NavigationTimeout: cfg.NavTimeout()},
		logger.Named("export"),
	)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
		})
	}

	apiServer := api.NewServer(validator, limiter, exporter, api.Config{
		CookieName:     cfg.Auth.CookieName,
		RequestTimeout: cfg.ServerTimeout(),
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if dispatch != nil {
		go func() {
			logger.Info("archive dispatcher started", zap.Int("workers", cfg.Archive.Workers))
			dispatch.Run(ctx)
		}()
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if queue != nil {
		queue.Close()
	}
	logger.Info("shutdown complete")
}

func buildBlobStore(ctx context.Context, cfg config.Config) (export.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "local":
		return localstore.New(localstore.Config{BaseDir: cfg.Storage.LocalDir})
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		return gcsstore.New(client, gcsstore.Config{Bucket: cfg.Storage.GCSBucket})
	case "memory":
		return memorystore.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func buildAuditStore(ctx context.Context, cfg config.Config) (export.AuditStore, error) {
	if cfg.DB.DSN == "" {
		return memorystore.NewAuditStore(), nil
	}
	return postgres.NewAuditStore(ctx, postgres.AuditStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.AuditTable,
		MaxConns: cfg.DB.MaxConns,
	})
}

func buildPublisher(ctx context.Context, cfg config.Config) (export.Publisher, error) {
	if cfg.PubSub.ProjectID == "" {
		return memorypublisher.New(), nil
	}
	client, err := pubsubv2.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return pubsubpublisher.New(client), nil
}
