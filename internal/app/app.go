// Package app wires configuration into the extraction pipeline and the
// registry daemon.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/artists-registry/internal/async"
	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/enhance"
	"github.com/joseph-ayodele/artists-registry/internal/export"
	"github.com/joseph-ayodele/artists-registry/internal/extract"
	"github.com/joseph-ayodele/artists-registry/internal/ingest"
	"github.com/joseph-ayodele/artists-registry/internal/metrics"
	"github.com/joseph-ayodele/artists-registry/internal/ocr"
	"github.com/joseph-ayodele/artists-registry/internal/repository"
	"github.com/joseph-ayodele/artists-registry/internal/resilience"
	"github.com/joseph-ayodele/artists-registry/internal/server"
	"github.com/joseph-ayodele/artists-registry/internal/services/artists"
)

const (
	ServiceName = "artists-registry"
	// HealthService is the gRPC health name reported alongside "".
	HealthService  = "artists.Registry"
	healthInterval = 15 * time.Second
	shutdownGrace  = 30 * time.Second
)

// Pipeline is the extraction stack without persistence.
type Pipeline struct {
	Orchestrator *extract.Orchestrator
	Executor     *resilience.Executor
}

// NewPipeline builds the OCR engines and adapters. obs may be nil.
func NewPipeline(cfg *common.Config, obs extract.Observer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	exec := resilience.NewExecutor(resilience.FromCommon(cfg.Resilience), logger)
	ocfg := ocr.ConfigFromCommon(cfg.OCR)
	runner := ocr.NewExecRunner(logger)

	tess := ocr.NewTesseract(ocfg, runner, logger)
	poppler := ocr.NewPoppler(ocfg, runner, logger)
	scanner := ocr.NewPDFScanner(poppler, tess, logger)
	office := ocr.NewOffice(ocfg, runner, logger)
	prep := ocr.NewPreprocessor(cfg.OCR.Contrast, cfg.OCR.Sharpen, cfg.OCR.TempDir)

	// a nil *VisionClient must not reach the adapter as a non-nil interface
	var cloud extract.CloudOCR
	if cfg.OCR.VisionAPIKey != "" {
		cloud = ocr.NewVisionClient(ocr.VisionConfig{
			APIKey:   cfg.OCR.VisionAPIKey,
			Endpoint: cfg.OCR.VisionEndpoint,
			Timeout:  cfg.OCR.VisionTimeout,
		}, exec, logger)
	}

	opts := []extract.Option{}
	if obs != nil {
		opts = append(opts, extract.WithObserver(obs))
	}
	orch := extract.NewOrchestrator(
		extract.NewPDFAdapter(poppler, scanner, logger),
		extract.NewWordAdapter(office, office, scanner, cfg.OCR.TempDir, logger),
		extract.NewImageAdapter(cloud, tess, prep, logger, extract.WithMinUsableChars(cfg.OCR.MinUsableChars)),
		logger,
		opts...,
	)
	logger.Info("extraction pipeline ready",
		"cloud_ocr", cloud != nil,
		"office_renderer", office.CanRender(),
		"min_usable_chars", cfg.OCR.MinUsableChars,
	)
	return &Pipeline{Orchestrator: orch, Executor: exec}
}

// Serve runs the HTTP API and the gRPC health service until ctx is done.
func Serve(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close(logger)
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	m := metrics.New(ServiceName)
	pipe := NewPipeline(cfg, m, logger)
	enh := enhance.New(cfg.Enhance, pipe.Executor, logger)
	logger.Info("enhancement providers", "providers", enh.Providers())

	repo := repository.NewArtistRepository(db, logger)
	svc := artists.NewService(repo, pipe.Orchestrator, cfg.Server.UploadDir, logger,
		artists.WithEnhancer(enh),
		artists.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
	)

	var queue *async.ExtractionQueue
	if cfg.Async.Enabled {
		queue = async.NewExtractionQueue(svc, logger,
			async.WithWorkers(cfg.Async.Workers),
			async.WithQueueSize(cfg.Async.QueueSize),
			async.WithProcessTimeout(cfg.Async.ProcessTimeout),
		)
		svc.SetQueue(queue)
	}

	dbHealth := func(ctx context.Context) error { return db.HealthCheck(ctx, cfg.Database.DialTimeout) }
	api := server.New(svc, logger,
		server.WithExporter(export.NewService(repo, logger)),
		server.WithEnhancer(enh),
		server.WithHealth(dbHealth),
		server.WithMetrics(m),
		server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
	)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	errCh := make(chan error, 2)
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return common.WrapError(err, "listen grpc")
		}
		go func() {
			logger.Info("gRPC health serving", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- common.WrapError(err, "grpc serve")
			}
		}()
	}
	go func() {
		logger.Info("HTTP API serving", "addr", cfg.Server.HTTPAddr, "async", cfg.Async.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- common.WrapError(err, "http serve")
		}
	}()
	go watchHealth(ctx, hs, dbHealth, logger)
	if dir := cfg.Server.InboxDir; dir != "" {
		inbox := ingest.NewInbox(dir, svc, logger)
		go func() {
			logger.Info("inbox watching", "dir", dir)
			if err := inbox.Run(ctx, ingest.WatchConfig{Debounce: cfg.Server.InboxDebounce}); err != nil {
				logger.Error("inbox stopped", "dir", dir, "error", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("server failed, shutting down", "error", runErr)
	}

	hs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if queue != nil {
		queue.Shutdown(shutdownCtx)
	}
	grpcServer.GracefulStop()
	logger.Info("stopped")
	return runErr
}

// watchHealth mirrors database reachability into the gRPC health service.
func watchHealth(ctx context.Context, hs *health.Server, check server.HealthFunc, logger *slog.Logger) {
	t := time.NewTicker(healthInterval)
	defer t.Stop()
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		err := check(ctx)
		if ok := err == nil; ok != serving {
			serving = ok
			status := grpc_health_v1.HealthCheckResponse_SERVING
			if !ok {
				status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
				logger.Warn("database unreachable", "error", err)
			} else {
				logger.Info("database reachable again")
			}
			hs.SetServingStatus("", status)
			hs.SetServingStatus(HealthService, status)
		}
	}
}
