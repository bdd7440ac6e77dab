package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"movieapp/internal/detail"
	"movieapp/internal/domain"
	"movieapp/internal/search"
)

func newTrendingCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "trending",
		Short: "List this week's trending movies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			movies, err := c.movies.GetTrendingMovies(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderMovieTable(movies))
			return nil
		},
	}
}

func newSearchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search cached movies by title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			movies, err := c.movies.SearchMovies(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderMovieTable(movies))
			return nil
		},
	}
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a cached movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid movie id %q", args[0])
			}
			controller := detail.New(c.movies, domain.MovieID(id),
				detail.WithFetchTimeout(c.cfg.FetchTimeout),
				detail.WithLogger(c.logger),
			)
			defer controller.Close()

			state, err := controller.Await(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderMovieDetail(state.Value()))
			return nil
		},
	}
}

func newWatchCmd(c *cli) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Read query edits from stdin, one per line, and print each published state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("debounce") {
				debounce = c.cfg.SearchDebounce
			}
			controller := search.New(c.movies,
				search.WithDebounce(debounce),
				search.WithFetchTimeout(c.cfg.FetchTimeout),
				search.WithLogger(c.logger),
			)
			states, _ := controller.Subscribe(64)

			out := cmd.OutOrStdout()
			printed := make(chan struct{})
			go func() {
				defer close(printed)
				for state := range states {
					fmt.Fprintln(out, renderState(state))
				}
			}()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				controller.OnQueryChanged(scanner.Text())
			}
			err := scanner.Err()
			if err == nil {
				err = waitIdle(cmd.Context(), controller)
			}

			controller.Close()
			<-printed
			return err
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before a query edit is committed")
	return cmd
}

// waitIdle blocks until the last edit has been committed and its fetch published.
func waitIdle(ctx context.Context, controller *search.Controller) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for !controller.Idle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
