package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apihttp "movieapp/internal/api/http"
	"movieapp/internal/app"
	"movieapp/internal/detail"
	"movieapp/internal/metrics"
	"movieapp/internal/search"
	"movieapp/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    "movieapp",
		ServiceVersion: cfg.ServiceVersion,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "movieapp"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("storeBackend", cfg.StoreBackend),
		slog.String("tmdbBaseURL", cfg.TMDBBaseURL),
		slog.String("tmdbLanguage", cfg.TMDBLanguage),
		slog.Bool("hasTMDBKey", cfg.TMDBAPIKey != ""),
		slog.String("connectivityTarget", cfg.ConnectivityTarget),
		slog.Bool("forceOffline", cfg.ForceOffline),
		slog.Duration("searchDebounce", cfg.SearchDebounce),
		slog.Duration("fetchTimeout", cfg.FetchTimeout),
		slog.Int("corsAllowedOrigins", len(cfg.CORSAllowedOrigins)),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("data layer init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	apiServer := apihttp.NewServer(components.Repository,
		apihttp.WithLogger(logger),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithSearchOptions(
			search.WithDebounce(cfg.SearchDebounce),
			search.WithFetchTimeout(cfg.FetchTimeout),
		),
		apihttp.WithDetailOptions(
			detail.WithFetchTimeout(cfg.FetchTimeout),
			detail.WithLogger(logger),
		),
	)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiServer,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// WebSocket sessions are long-lived; writes carry their own deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("movie service started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	apiServer.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	if err := components.Close(shutdownCtx); err != nil {
		logger.Warn("store close error", slog.String("error", err.Error()))
	}
	logger.Info("movie service stopped")
}
