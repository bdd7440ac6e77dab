package detail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"movieapp/internal/domain"
)

type fakeSource struct {
	mu     sync.Mutex
	calls  int
	movies map[domain.MovieID]domain.Movie
	err    error
	gate   chan struct{}
}

func (s *fakeSource) GetMovieByID(ctx context.Context, id domain.MovieID) (domain.Movie, error) {
	s.mu.Lock()
	s.calls++
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Movie{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Movie{}, s.err
	}
	m, ok := s.movies[id]
	if !ok {
		return domain.Movie{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func awaitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLoadsMovieOnConstruction(t *testing.T) {
	source := &fakeSource{movies: map[domain.MovieID]domain.Movie{7: {ID: 7, Title: "Nope"}}}
	c := New(source, 7)
	defer c.Close()

	st, err := c.Await(awaitCtx(t))
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !st.IsSuccess() || st.Value().Title != "Nope" {
		t.Fatalf("unexpected state %+v", st)
	}
	if c.ID() != 7 {
		t.Fatalf("unexpected id %d", c.ID())
	}
}

func TestMissingMoviePublishesError(t *testing.T) {
	source := &fakeSource{movies: map[domain.MovieID]domain.Movie{}}
	c := New(source, 8)
	defer c.Close()

	st, err := c.Await(awaitCtx(t))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !st.IsError() || st.Message != domain.ErrNotFound.Error() {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestStartsInLoading(t *testing.T) {
	source := &fakeSource{gate: make(chan struct{})}
	c := New(source, 1)
	defer c.Close()

	if !c.State().IsLoading() {
		t.Fatalf("expected loading, got %+v", c.State())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	st, err := c.Await(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if !st.IsLoading() {
		t.Fatalf("expected loading while blocked, got %+v", st)
	}
}

func TestRetryReloads(t *testing.T) {
	source := &fakeSource{err: errors.New("store offline")}
	c := New(source, 3)
	defer c.Close()

	st, _ := c.Await(awaitCtx(t))
	if !st.IsError() || st.Message != "store offline" {
		t.Fatalf("unexpected state %+v", st)
	}

	source.mu.Lock()
	source.err = nil
	source.movies = map[domain.MovieID]domain.Movie{3: {ID: 3, Title: "Heat"}}
	source.mu.Unlock()

	c.Retry()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err := c.Await(awaitCtx(t))
		if st.IsSuccess() {
			if err != nil || st.Value().Title != "Heat" {
				t.Fatalf("unexpected reloaded state %+v err %v", st, err)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("retry never succeeded, last state %+v", st)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if source.callCount() != 2 {
		t.Fatalf("expected two lookups, got %d", source.callCount())
	}
}

func TestCloseUnblocksAwait(t *testing.T) {
	source := &fakeSource{gate: make(chan struct{})}
	c := New(source, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Await(context.Background())
	}()
	c.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Await did not return after Close")
	}
	before := source.callCount()
	c.Retry()
	time.Sleep(20 * time.Millisecond)
	if source.callCount() != before {
		t.Fatalf("expected no reload after close, got %d calls", source.callCount())
	}
}
