package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clinvault/clinvault/config"
	v1 "github.com/clinvault/clinvault/internal/handler/v1"
	"github.com/clinvault/clinvault/internal/inference"
	"github.com/clinvault/clinvault/internal/middleware"
	"github.com/clinvault/clinvault/internal/normalize"
	"github.com/clinvault/clinvault/internal/pipeline"
	"github.com/clinvault/clinvault/internal/service"
	"github.com/clinvault/clinvault/internal/storage"
	"github.com/clinvault/clinvault/pkg/database"
	"github.com/clinvault/clinvault/pkg/logger"
	"github.com/clinvault/clinvault/pkg/metrics"
	"github.com/clinvault/clinvault/pkg/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "clinvault: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting clinvault",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	m := metrics.NewCollector("clinvault")
	store := storage.New(db, m)

	inferenceClient, err := inference.NewClient(cfg.Inference, log)
	if err != nil {
		return fmt.Errorf("initializing inference client: %w", err)
	}

	normalizer := normalize.New(normalize.NewDocxExtractor(), log)
	analyzer := pipeline.NewAnalyzer(inferenceClient, normalizer, cfg.Pipeline, m, log)
	synthesizer := pipeline.NewSynthesizer(inferenceClient, cfg.Pipeline, m, log)

	auditSvc := service.NewAuditService(storage.NewAuditRepository(db), m, log)
	defer auditSvc.Shutdown()

	profileSvc := service.NewProfileService(store, auditSvc, log)
	documentSvc := service.NewDocumentService(store, analyzer, auditSvc, log)
	reportSvc := service.NewReportService(store, synthesizer, auditSvc, log)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.Metrics(m),
	)

	v1.RegisterRoutes(router, v1.Handlers{
		Profiles:  v1.NewProfileHandler(profileSvc),
		Documents: v1.NewDocumentHandler(documentSvc, log),
		Reports:   v1.NewReportHandler(reportSvc),
	}, metrics.MetricsHandler())

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
