package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"movieapp/internal/connectivity"
	"movieapp/internal/providers/tmdb"
	"movieapp/internal/repository"
	mongorepo "movieapp/internal/repository/mongo"
	"movieapp/internal/store/memory"
	redisstore "movieapp/internal/store/redis"
)

// Components is the wired data layer shared by the server and the CLI.
type Components struct {
	Repository *repository.MovieRepository
	Store      repository.LocalStore
	Catalog    *tmdb.Client
	Probe      connectivity.Probe

	closers []func(context.Context) error
}

// Close releases store connections.
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func Build(ctx context.Context, cfg Config, logger *slog.Logger) (*Components, error) {
	store, closeStore, err := BuildStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	catalog := BuildCatalog(cfg, logger)
	probe := BuildProbe(cfg, logger)

	c := &Components{
		Store:   store,
		Catalog: catalog,
		Probe:   probe,
		Repository: repository.New(catalog, store, probe,
			repository.WithLanguage(cfg.TMDBLanguage),
			repository.WithLogger(logger),
		),
	}
	if closeStore != nil {
		c.closers = append(c.closers, closeStore)
	}
	return c, nil
}

func BuildStore(ctx context.Context, cfg Config, logger *slog.Logger) (repository.LocalStore, func(context.Context) error, error) {
	switch cfg.StoreBackend {
	case StoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		store := mongorepo.NewMovieStore(client, cfg.MongoDatabase, cfg.MongoCollection)
		if err := store.EnsureIndexes(connectCtx); err != nil {
			logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
		}
		logger.Info("mongo store connected",
			slog.String("database", cfg.MongoDatabase),
			slog.String("collection", cfg.MongoCollection),
		)
		return store, client.Disconnect, nil

	case StoreRedis:
		redisURL := strings.TrimSpace(cfg.RedisURL)
		if redisURL == "" {
			return nil, nil, errors.New("redis store selected but REDIS_URL is empty")
		}
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("redis store connected", slog.String("addr", redisOpts.Addr))
		return redisstore.New(client, ""), func(context.Context) error { return client.Close() }, nil

	default:
		logger.Info("using in-memory movie store")
		return memory.New(), nil, nil
	}
}

func BuildCatalog(cfg Config, logger *slog.Logger) *tmdb.Client {
	client := tmdb.NewClient(tmdb.Config{
		APIKey:   cfg.TMDBAPIKey,
		BaseURL:  cfg.TMDBBaseURL,
		Language: cfg.TMDBLanguage,
		Client: &http.Client{
			Timeout:   cfg.CatalogTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		RatePerSecond: cfg.TMDBRatePerSecond,
	})
	if !client.Enabled() {
		logger.Warn("tmdb api key not configured, online trending reads will fail")
	}
	return client
}

func BuildProbe(cfg Config, logger *slog.Logger) connectivity.Probe {
	if cfg.ForceOffline {
		logger.Info("forced offline mode, serving from local store only")
		return connectivity.StaticProbe(false)
	}
	return connectivity.NewDialProbe(cfg.ConnectivityTarget,
		connectivity.WithTTL(cfg.ConnectivityTTL),
		connectivity.WithLogger(logger),
	)
}

func NewLogger(levelRaw, formatRaw string, w io.Writer) *slog.Logger {
	level := parseLogLevel(levelRaw)
	handlerOpts := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
