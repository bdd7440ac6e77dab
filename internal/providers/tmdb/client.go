package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"movieapp/internal/domain"
	"movieapp/internal/metrics"
)

const (
	defaultBaseURL    = "https://api.themoviedb.org/3"
	defaultLanguage   = "en-US"
	trendingEndpoint  = "/trending/movie/week"
	defaultRatePerSec = 20
	maxResponseBytes  = 512 * 1024
)

var ErrNotConfigured = errors.New("tmdb api key is not configured")

type Client struct {
	apiKey   string
	baseURL  string
	language string
	http     *http.Client
	limiter  *rate.Limiter
}

type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Client   *http.Client
	// RatePerSecond caps outgoing requests; bursts up to the same amount.
	RatePerSecond int
}

type movieResult struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Overview   string `json:"overview"`
	PosterPath string `json:"poster_path"`
}

func (r movieResult) toDomain() domain.Movie {
	return domain.Movie{
		ID:         domain.MovieID(r.ID),
		Title:      r.Title,
		Overview:   r.Overview,
		PosterPath: r.PosterPath,
	}
}

type trendingPayload struct {
	Results []movieResult `json:"results"`
}

// TrendingResponse is the catalog's "trending this week" listing.
type TrendingResponse struct {
	Results []domain.Movie
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultLanguage
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = defaultRatePerSec
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// FetchTrending issues a single request for the weekly trending movies.
// Transport, status and decoding failures are reported as domain.ErrNetwork.
func (c *Client) FetchTrending(ctx context.Context, language string) (TrendingResponse, error) {
	if !c.Enabled() {
		return TrendingResponse{}, ErrNotConfigured
	}
	if strings.TrimSpace(language) == "" {
		language = c.language
	}

	start := time.Now()
	response, err := c.fetchTrending(ctx, language)
	metrics.CatalogRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CatalogRequestsTotal.WithLabelValues("error").Inc()
		return TrendingResponse{}, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	metrics.CatalogRequestsTotal.WithLabelValues("ok").Inc()
	return response, nil
}

func (c *Client) fetchTrending(ctx context.Context, language string) (TrendingResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return TrendingResponse{}, err
	}

	params := url.Values{
		"api_key":  {c.apiKey},
		"language": {language},
	}
	reqURL := c.baseURL + trendingEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return TrendingResponse{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return TrendingResponse{}, scrubAPIKey(err, c.apiKey)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return TrendingResponse{}, fmt.Errorf("tmdb HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return TrendingResponse{}, err
	}

	var payload trendingPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return TrendingResponse{}, fmt.Errorf("decode tmdb response: %w", err)
	}

	movies := make([]domain.Movie, 0, len(payload.Results))
	for _, r := range payload.Results {
		movies = append(movies, r.toDomain())
	}
	return TrendingResponse{Results: movies}, nil
}

// scrubAPIKey keeps the key out of url.Error messages, which embed the full request URL.
func scrubAPIKey(err error, apiKey string) error {
	if apiKey == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, apiKey) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, apiKey, "***"))
}
