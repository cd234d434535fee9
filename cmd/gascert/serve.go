package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"gascert/internal/assets"
	"gascert/internal/audit"
	"gascert/internal/certificate"
	"gascert/internal/export"
	"gascert/internal/platform/config"
	"gascert/internal/platform/httpserver"
	"gascert/internal/platform/logger"
	"gascert/internal/platform/metrics"
	"gascert/internal/platform/middleware"
	platformredis "gascert/internal/platform/redis"
	"gascert/internal/render"
	httptransport "gascert/internal/transport/http"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the certificate HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

// serve wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	log := logger.New(level)
	m := metrics.New()

	store, users, cleanup, err := buildStores(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	serviceOpts := []certificate.Option{
		certificate.WithLogger(log),
		certificate.WithMetrics(m),
	}
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = sink.Close(flushCtx)
		}()
		serviceOpts = append(serviceOpts, certificate.WithAuditPublisher(audit.NewPublisher(sink)))
	}
	service := certificate.NewService(store, users, serviceOpts...)

	resolver := assets.NewResolver(cfg.AssetDir)
	company := render.CompanyInfo{
		Name:    cfg.CompanyName,
		Address: cfg.CompanyAddress,
		Phone:   cfg.CompanyPhone,
		Email:   cfg.CompanyEmail,
	}
	assembler := render.NewAssembler(store, resolver, company)
	renderer := render.NewRenderer(render.EmbeddedSource(), render.NewCache(), m)

	exportOpts := []export.Option{
		export.WithLogger(log),
		export.WithMetrics(m),
	}
	redisClient, err := platformredis.New(cfg.RedisURL, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		exportOpts = append(exportOpts,
			export.WithDocumentCache(export.NewDocumentCache(redisClient.Client, cfg.DocumentTTL)))
	}
	exporter := export.NewExporter(assembler, renderer, export.NewChromeEngine(), exportOpts...)

	handler := httptransport.NewHandler(service, exporter, renderer, log)
	router := httptransport.NewRouter(handler, middleware.NewHMACValidator(cfg.JWTSigningKey), log)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting gascert", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildStores selects postgres when configured, falling back to the
// in-memory store for single-node development.
func buildStores(cfg config.Config) (certificate.Store, certificate.UserDirectory, func(), error) {
	if cfg.DatabaseURL == "" {
		return certificate.NewMemoryStore(), certificate.NewMemoryUserDirectory(), func() {}, nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return certificate.NewPostgresStore(db), certificate.NewPostgresUserDirectory(db), func() { db.Close() }, nil
}
