package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"movieapp/internal/domain"
	"movieapp/internal/metrics"
)

const (
	defaultDebounce     = 500 * time.Millisecond
	defaultFetchTimeout = 15 * time.Second
)

// MovieSource is the slice of the repository the controller reads from.
type MovieSource interface {
	GetTrendingMovies(ctx context.Context) ([]domain.Movie, error)
	SearchMovies(ctx context.Context, query string) ([]domain.Movie, error)
}

type State = domain.Result[[]domain.Movie]

type stopper interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) stopper

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

type fetchJob struct {
	query string
	kind  string
}

// Controller turns a stream of query edits into debounced fetches and
// publishes their progress as State values. An empty committed query lists
// trending movies; anything else searches the local store.
//
// Fetches run one at a time on a single worker, in commit order.
type Controller struct {
	source       MovieSource
	debounce     time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
	after        afterFunc

	mu        sync.Mutex
	query     string
	committed string
	gen       uint64
	timer     stopper
	state     State
	queue     []fetchJob
	subs      map[int]chan State
	nextSub   int
	busy      bool
	closed    bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Controller)

func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

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

func withAfterFunc(fn afterFunc) Option {
	return func(c *Controller) {
		c.after = fn
	}
}

// New starts a controller in the trending state. The initial trending fetch
// is issued immediately, without waiting for the debounce window.
func New(source MovieSource, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		source:       source,
		debounce:     defaultDebounce,
		fetchTimeout: defaultFetchTimeout,
		logger:       slog.Default(),
		after:        realAfterFunc,
		state:        domain.Loading[[]domain.Movie](),
		subs:         make(map[int]chan State),
		wake:         make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.mu.Lock()
	c.enqueueLocked(fetchJob{query: "", kind: "trending"})
	c.mu.Unlock()

	go c.run()
	return c
}

// OnQueryChanged records a new query value and restarts the debounce window.
// Only the value present when the window elapses is committed.
func (c *Controller) OnQueryChanged(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.query = text
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = c.after(c.debounce, func() { c.commit(gen) })
}

// Retry re-issues the fetch for the committed query.
func (c *Controller) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.enqueueLocked(fetchJob{query: c.committed, kind: "retry"})
}

func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Committed returns the query the current state belongs to.
func (c *Controller) Committed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

// Idle reports whether no debounce window is pending and no fetch is queued
// or running. Once idle, State holds the outcome of the last commit.
func (c *Controller) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer == nil && len(c.queue) == 0 && !c.busy
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel that receives the current state followed by
// every published state. A subscriber that falls behind loses intermediate
// states but always ends up holding the latest one. The returned func
// unsubscribes and closes the channel.
func (c *Controller) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	c.mu.Lock()
	defer c.mu.Unlock()
	ch <- c.state
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close stops the pending debounce timer and the worker, and closes every
// subscriber channel. An in-flight fetch is canceled and its result dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
	}
	c.queue = nil
	c.mu.Unlock()

	c.cancel()
	<-c.done

	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()
}

func (c *Controller) commit(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	c.timer = nil
	if c.query == c.committed {
		metrics.QuerySuppressedTotal.Inc()
		return
	}
	c.committed = c.query
	kind := "search"
	if c.committed == "" {
		kind = "trending"
	}
	c.enqueueLocked(fetchJob{query: c.committed, kind: kind})
}

func (c *Controller) enqueueLocked(job fetchJob) {
	metrics.QueryCommitsTotal.WithLabelValues(job.kind).Inc()
	c.queue = append(c.queue, job)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) dequeue() (fetchJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.queue) == 0 {
		return fetchJob{}, false
	}
	job := c.queue[0]
	c.queue = c.queue[1:]
	c.busy = true
	return job, true
}

func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		}
		for {
			job, ok := c.dequeue()
			if !ok {
				break
			}
			c.execute(job)
			c.finish()
		}
	}
}

func (c *Controller) execute(job fetchJob) {
	c.publish(domain.Loading[[]domain.Movie]())

	ctx, cancel := context.WithTimeout(c.ctx, c.fetchTimeout)
	defer cancel()

	var (
		movies []domain.Movie
		err    error
	)
	if job.query == "" {
		movies, err = c.source.GetTrendingMovies(ctx)
	} else {
		movies, err = c.source.SearchMovies(ctx, job.query)
	}
	if c.ctx.Err() != nil {
		return
	}
	if err != nil {
		c.logger.Warn("movie fetch failed",
			slog.String("kind", job.kind),
			slog.String("query", job.query),
			slog.String("error", err.Error()),
		)
		c.publish(domain.Failure[[]domain.Movie](domain.ErrorMessage(err), nil))
		return
	}
	if movies == nil {
		movies = []domain.Movie{}
	}
	c.publish(domain.Success(movies))
}

func (c *Controller) publish(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.state = state
	for _, ch := range c.subs {
		offer(ch, state)
	}
}

// offer delivers state without blocking, evicting the oldest buffered value
// when the channel is full. Callers hold c.mu, so there is a single sender.
func offer(ch chan State, state State) {
	select {
	case ch <- state:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- state:
	default:
	}
}
