package detail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"movieapp/internal/domain"
)

const defaultFetchTimeout = 15 * time.Second

type MovieSource interface {
	GetMovieByID(ctx context.Context, id domain.MovieID) (domain.Movie, error)
}

type State = domain.Result[domain.Movie]

// Controller loads a single movie and publishes the outcome. Loading starts
// on construction; Retry reloads. Retries requested while a load is running
// collapse into one follow-up load.
type Controller struct {
	source       MovieSource
	id           domain.MovieID
	fetchTimeout time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	state   State
	err     error
	waiters []chan struct{}
	closed  bool

	reload chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Controller)

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(source MovieSource, id domain.MovieID, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		source:       source,
		id:           id,
		fetchTimeout: defaultFetchTimeout,
		logger:       slog.Default(),
		state:        domain.Loading[domain.Movie](),
		reload:       make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.reload <- struct{}{}
	go c.run()
	return c
}

func (c *Controller) ID() domain.MovieID {
	return c.id
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.reload <- struct{}{}:
	default:
	}
}

// Await blocks until the current load settles and returns its state along
// with the lookup error behind an error state. A canceled ctx or a closed
// controller returns whatever state is current.
func (c *Controller) Await(ctx context.Context) (State, error) {
	for {
		c.mu.Lock()
		if !c.state.IsLoading() || c.closed {
			st, err := c.state, c.err
			c.mu.Unlock()
			return st, err
		}
		wake := make(chan struct{})
		c.waiters = append(c.waiters, wake)
		c.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.state, ctx.Err()
		}
	}
}

func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.wakeLocked()
	c.mu.Unlock()

	c.cancel()
	<-c.done
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.reload:
			c.load()
		}
	}
}

func (c *Controller) load() {
	c.publish(domain.Loading[domain.Movie](), nil)

	ctx, cancel := context.WithTimeout(c.ctx, c.fetchTimeout)
	defer cancel()

	movie, err := c.source.GetMovieByID(ctx, c.id)
	if c.ctx.Err() != nil {
		return
	}
	if err != nil {
		c.logger.Debug("movie lookup failed",
			slog.Int("id", int(c.id)),
			slog.String("error", err.Error()),
		)
		c.publish(domain.Failure[domain.Movie](domain.ErrorMessage(err), nil), err)
		return
	}
	c.publish(domain.Success(movie), nil)
}

func (c *Controller) publish(state State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.state = state
	c.err = err
	c.wakeLocked()
}

func (c *Controller) wakeLocked() {
	for _, w := range c.waiters {
		close(w)
	}
	c.waiters = nil
}
