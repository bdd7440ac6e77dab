package repository

import (
	"context"
	"log/slog"
	"strings"

	"movieapp/internal/connectivity"
	"movieapp/internal/domain"
	"movieapp/internal/metrics"
	"movieapp/internal/providers/tmdb"
)

// LocalStore is the durable movie table. UpsertAll replaces rows sharing an id;
// ListAll and Search return movies ordered by ascending id. GetByID returns
// domain.ErrNotFound on a miss.
type LocalStore interface {
	UpsertAll(ctx context.Context, movies []domain.Movie) error
	ListAll(ctx context.Context) ([]domain.Movie, error)
	GetByID(ctx context.Context, id domain.MovieID) (domain.Movie, error)
	Search(ctx context.Context, substring string) ([]domain.Movie, error)
}

type RemoteCatalog interface {
	FetchTrending(ctx context.Context, language string) (tmdb.TrendingResponse, error)
}

// MovieRepository serves movies from the remote catalog when the network is
// reachable and from the local store otherwise. Every successful remote read
// is written through to the store before it is returned.
type MovieRepository struct {
	remote   RemoteCatalog
	store    LocalStore
	probe    connectivity.Probe
	language string
	logger   *slog.Logger
}

type Option func(*MovieRepository)

func WithLanguage(language string) Option {
	return func(r *MovieRepository) {
		if trimmed := strings.TrimSpace(language); trimmed != "" {
			r.language = trimmed
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *MovieRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(remote RemoteCatalog, store LocalStore, probe connectivity.Probe, opts ...Option) *MovieRepository {
	r := &MovieRepository{
		remote:   remote,
		store:    store,
		probe:    probe,
		language: "en-US",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// GetTrendingMovies returns the remote listing when online, the cached listing
// when offline. Fallback is decided by the connectivity check alone: a failed
// remote call while online is returned as an error, not answered from cache.
func (r *MovieRepository) GetTrendingMovies(ctx context.Context) ([]domain.Movie, error) {
	if !r.probe.IsConnected(ctx) {
		metrics.TrendingSourceTotal.WithLabelValues("local").Inc()
		r.logger.Debug("offline, serving trending from local store")
		return r.store.ListAll(ctx)
	}

	response, err := r.remote.FetchTrending(ctx, r.language)
	if err != nil {
		return nil, err
	}
	if err := r.store.UpsertAll(ctx, response.Results); err != nil {
		return nil, err
	}
	metrics.TrendingSourceTotal.WithLabelValues("remote").Inc()
	r.logger.Debug("trending fetched from catalog", slog.Int("count", len(response.Results)))
	return response.Results, nil
}

// SearchMovies matches titles in the local store only.
func (r *MovieRepository) SearchMovies(ctx context.Context, query string) ([]domain.Movie, error) {
	return r.store.Search(ctx, query)
}

func (r *MovieRepository) GetMovieByID(ctx context.Context, id domain.MovieID) (domain.Movie, error) {
	return r.store.GetByID(ctx, id)
}
