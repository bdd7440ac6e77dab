package memory

import (
	"context"
	"sort"
	"sync"

	"movieapp/internal/domain"
)

// Store keeps movies in process memory. Reads run concurrently; UpsertAll
// holds the write lock for the whole batch.
type Store struct {
	mu     sync.RWMutex
	movies map[domain.MovieID]domain.Movie
}

func New(seed ...domain.Movie) *Store {
	s := &Store{movies: make(map[domain.MovieID]domain.Movie, len(seed))}
	for _, m := range seed {
		s.movies[m.ID] = m
	}
	return s
}

func (s *Store) UpsertAll(_ context.Context, movies []domain.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range movies {
		s.movies[m.ID] = m
	}
	return nil
}

func (s *Store) ListAll(_ context.Context) ([]domain.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(func(domain.Movie) bool { return true }), nil
}

func (s *Store) GetByID(_ context.Context, id domain.MovieID) (domain.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movies[id]
	if !ok {
		return domain.Movie{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *Store) Search(_ context.Context, substring string) ([]domain.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(func(m domain.Movie) bool {
		return domain.TitleMatches(m.Title, substring)
	}), nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.movies)
}

func (s *Store) collectLocked(keep func(domain.Movie) bool) []domain.Movie {
	out := make([]domain.Movie, 0, len(s.movies))
	for _, m := range s.movies {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
