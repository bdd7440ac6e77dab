package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"movieapp/internal/domain"
)

const defaultKey = "movieapp:movies"

// Store keeps movies in a single Redis hash: field = movie id, value = JSON.
type Store struct {
	client *redis.Client
	key    string
}

func New(client *redis.Client, key string) *Store {
	key = strings.TrimSpace(key)
	if key == "" {
		key = defaultKey
	}
	return &Store{client: client, key: key}
}

func (s *Store) UpsertAll(ctx context.Context, movies []domain.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	values := make([]any, 0, len(movies)*2)
	for _, m := range movies {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode movie %d: %w", m.ID, err)
		}
		values = append(values, field(m.ID), data)
	}
	// HSET applies all pairs atomically.
	return s.client.HSet(ctx, s.key, values...).Err()
}

func (s *Store) ListAll(ctx context.Context) ([]domain.Movie, error) {
	return s.scan(ctx, "")
}

func (s *Store) GetByID(ctx context.Context, id domain.MovieID) (domain.Movie, error) {
	data, err := s.client.HGet(ctx, s.key, field(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Movie{}, domain.ErrNotFound
		}
		return domain.Movie{}, err
	}
	var m domain.Movie
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Movie{}, fmt.Errorf("decode movie %d: %w", id, err)
	}
	return m, nil
}

func (s *Store) Search(ctx context.Context, substring string) ([]domain.Movie, error) {
	return s.scan(ctx, substring)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) scan(ctx context.Context, substring string) ([]domain.Movie, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	return decodeMatching(raw, substring)
}

func decodeMatching(raw map[string]string, substring string) ([]domain.Movie, error) {
	out := make([]domain.Movie, 0, len(raw))
	for f, value := range raw {
		var m domain.Movie
		if err := json.Unmarshal([]byte(value), &m); err != nil {
			return nil, fmt.Errorf("decode movie %s: %w", f, err)
		}
		if domain.TitleMatches(m.Title, substring) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func field(id domain.MovieID) string {
	return strconv.Itoa(int(id))
}
