package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"movieapp/internal/app"
	"movieapp/internal/domain"
)

type movieService interface {
	GetTrendingMovies(ctx context.Context) ([]domain.Movie, error)
	SearchMovies(ctx context.Context, query string) ([]domain.Movie, error)
	GetMovieByID(ctx context.Context, id domain.MovieID) (domain.Movie, error)
}

// opener wires the data layer for one CLI run.
type opener func(ctx context.Context, cfg app.Config, logger *slog.Logger) (movieService, func(context.Context) error, error)

func openComponents(ctx context.Context, cfg app.Config, logger *slog.Logger) (movieService, func(context.Context) error, error) {
	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return components.Repository, components.Close, nil
}

type cli struct {
	open     opener
	cfg      app.Config
	logger   *slog.Logger
	movies   movieService
	closeFn  func(context.Context) error
	offline  bool
	store    string
	logLevel string
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:   "moviectl",
		Short: "Browse trending movies online or from the local cache",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.cfg = app.LoadConfig()
			if c.offline {
				c.cfg.ForceOffline = true
			}
			if store := strings.TrimSpace(c.store); store != "" {
				c.cfg.StoreBackend = strings.ToLower(store)
			}
			c.logger = app.NewLogger(c.logLevel, c.cfg.LogFormat, cmd.ErrOrStderr())
			slog.SetDefault(c.logger)

			movies, closeFn, err := c.open(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return fmt.Errorf("opening movie store: %w", err)
			}
			c.movies = movies
			c.closeFn = closeFn
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.closeFn == nil {
				return nil
			}
			return c.closeFn(context.Background())
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&c.offline, "offline", false, "serve from the local store only")
	root.PersistentFlags().StringVar(&c.store, "store", "", "store backend: memory, mongo or redis (default from STORE_BACKEND)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newTrendingCmd(c),
		newSearchCmd(c),
		newShowCmd(c),
		newWatchCmd(c),
	)
	return root
}
