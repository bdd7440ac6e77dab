package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"movieapp/internal/connectivity"
	"movieapp/internal/domain"
	"movieapp/internal/providers/tmdb"
	"movieapp/internal/repository"
	"movieapp/internal/search"
	"movieapp/internal/store/memory"
)

type fakeCatalog struct {
	mu      sync.Mutex
	calls   int
	results []domain.Movie
	err     error
}

func (f *fakeCatalog) FetchTrending(context.Context, string) (tmdb.TrendingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return tmdb.TrendingResponse{}, f.err
	}
	return tmdb.TrendingResponse{Results: f.results}, nil
}

type panicService struct{}

func (panicService) GetTrendingMovies(context.Context) ([]domain.Movie, error) { panic("boom") }
func (panicService) SearchMovies(context.Context, string) ([]domain.Movie, error) {
	return nil, errors.New("index corrupt")
}
func (panicService) GetMovieByID(context.Context, domain.MovieID) (domain.Movie, error) {
	return domain.Movie{}, errors.New("unused")
}

type listResult struct {
	Status  domain.ResultStatus `json:"status"`
	Data    []domain.Movie      `json:"data"`
	Message string              `json:"message"`
}

type movieResult struct {
	Status  domain.ResultStatus `json:"status"`
	Data    *domain.Movie       `json:"data"`
	Message string              `json:"message"`
}

type wsMovies struct {
	Type string     `json:"type"`
	Data listResult `json:"data"`
}

func seededRepository(online bool, catalog *fakeCatalog) *repository.MovieRepository {
	store := memory.New(
		domain.Movie{ID: 7, Title: "Nope", Overview: "sky", PosterPath: "/n.jpg"},
		domain.Movie{ID: 2, Title: "Heat"},
		domain.Movie{ID: 3, Title: "Nobody"},
	)
	if catalog == nil {
		catalog = &fakeCatalog{}
	}
	return repository.New(catalog, store, connectivity.StaticProbe(online))
}

func newTestServer(t *testing.T, movies MovieService, opts ...ServerOption) *Server {
	t.Helper()
	s := NewServer(movies, opts...)
	t.Cleanup(s.Close)
	return s
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, seededRepository(false, nil))
	rec := doGet(t, s, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestTrendingOfflineServesCache(t *testing.T) {
	catalog := &fakeCatalog{}
	s := newTestServer(t, seededRepository(false, catalog))

	rec := doGet(t, s, "/movies/trending")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body listResult
	decode(t, rec, &body)
	if body.Status != domain.ResultSuccess || len(body.Data) != 3 || body.Data[0].ID != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
	if catalog.calls != 0 {
		t.Fatalf("expected no catalog calls offline, got %d", catalog.calls)
	}
}

func TestTrendingNetworkFailureIsBadGateway(t *testing.T) {
	catalog := &fakeCatalog{err: fmt.Errorf("%w: tmdb HTTP 503: down", domain.ErrNetwork)}
	s := newTestServer(t, seededRepository(true, catalog))

	rec := doGet(t, s, "/movies/trending")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var body listResult
	decode(t, rec, &body)
	if body.Status != domain.ResultError || !strings.Contains(body.Message, "tmdb HTTP 503") {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, seededRepository(false, nil))

	rec := doGet(t, s, "/movies/search?q=no")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body listResult
	decode(t, rec, &body)
	if len(body.Data) != 2 || body.Data[0].ID != 3 || body.Data[1].ID != 7 {
		t.Fatalf("unexpected matches %+v", body.Data)
	}

	rec = doGet(t, s, "/movies/search?q=zzz")
	decode(t, rec, &body)
	if body.Status != domain.ResultSuccess || body.Data == nil || len(body.Data) != 0 {
		t.Fatalf("expected empty success, got %+v (%s)", body, rec.Body.String())
	}
}

func TestSearchFailureIsInternalError(t *testing.T) {
	s := newTestServer(t, panicService{})
	rec := doGet(t, s, "/movies/search?q=x")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body listResult
	decode(t, rec, &body)
	if body.Message != "index corrupt" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestMovieByID(t *testing.T) {
	s := newTestServer(t, seededRepository(false, nil))

	rec := doGet(t, s, "/movies/7")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body movieResult
	decode(t, rec, &body)
	if body.Status != domain.ResultSuccess || body.Data == nil || body.Data.Title != "Nope" {
		t.Fatalf("unexpected body %+v", body)
	}

	rec = doGet(t, s, "/movies/8")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body = movieResult{}
	decode(t, rec, &body)
	if body.Status != domain.ResultError || body.Data != nil || body.Message != domain.ErrNotFound.Error() {
		t.Fatalf("unexpected body %+v", body)
	}

	rec = doGet(t, s, "/movies/abc")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, seededRepository(false, nil))
	req := httptest.NewRequest(http.MethodPost, "/movies/trending", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	var env errorEnvelope
	decode(t, rec, &env)
	if env.Error.Code != "method_not_allowed" {
		t.Fatalf("unexpected error code %q", env.Error.Code)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	s := newTestServer(t, panicService{})
	rec := doGet(t, s, "/movies/trending")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, seededRepository(false, nil), WithRateLimit(0.001, 1))
	if rec := doGet(t, s, "/movies/trending"); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	rec := doGet(t, s, "/movies/trending")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatal("expected Retry-After header")
	}
	if rec := doGet(t, s, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("health must bypass the limiter, got %d", rec.Code)
	}
}

func TestNormalizeRoute(t *testing.T) {
	cases := map[string]string{
		"/health":          "/health",
		"/metrics":         "/metrics",
		"/ws":              "/ws",
		"/movies/trending": "/movies/trending",
		"/movies/search":   "/movies/search",
		"/movies/42":       "/movies/:id",
		"/favicon.ico":     "/other",
	}
	for path, want := range cases {
		if got := normalizeRoute(path); got != want {
			t.Errorf("normalizeRoute(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestCorsWhitelist(t *testing.T) {
	s := newTestServer(t, seededRepository(false, nil), WithAllowedOrigins([]string{"http://ui.local"}))

	req := httptest.NewRequest(http.MethodOptions, "/movies/trending", nil)
	req.Header.Set("Origin", "http://ui.local")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Fatalf("expected whitelisted origin, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin for unknown origin, got %q", got)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t, seededRepository(false, nil), WithAllowedOrigins([]string{"http://ui.local"}))
	srv := httptest.NewServer(s)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := http.Header{}
	header.Set("Origin", "http://evil.local")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake from foreign origin to fail")
	}
	if resp == nil {
		t.Fatalf("expected http response on rejected handshake, got error %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	header.Set("Origin", "http://ui.local")
	conn, resp, err = websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial from allowed origin: %v", err)
	}
	resp.Body.Close()
	conn.Close()
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMoviesUntil(t *testing.T, conn *websocket.Conn, match func(listResult) bool) listResult {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read ws message: %v", err)
		}
		var msg wsMovies
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal ws message: %v (raw: %s)", err, data)
		}
		if msg.Type != "movies" {
			t.Fatalf("unexpected message type %q", msg.Type)
		}
		if match(msg.Data) {
			return msg.Data
		}
	}
}

func TestWebSocketSearchSession(t *testing.T) {
	s := newTestServer(t, seededRepository(false, nil),
		WithSearchOptions(search.WithDebounce(100*time.Millisecond)))
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := dialWS(t, srv)

	trending := readMoviesUntil(t, conn, func(r listResult) bool { return r.Status == domain.ResultSuccess })
	if len(trending.Data) != 3 {
		t.Fatalf("expected trending listing of 3, got %+v", trending.Data)
	}

	for _, q := range []string{"n", "no", "nop"} {
		if err := conn.WriteJSON(wsClientMessage{Type: "query", Query: q}); err != nil {
			t.Fatalf("write query: %v", err)
		}
	}
	found := readMoviesUntil(t, conn, func(r listResult) bool { return r.Status == domain.ResultSuccess })
	if len(found.Data) != 1 || found.Data[0].ID != 7 {
		t.Fatalf("expected single match for nop, got %+v", found.Data)
	}

	if err := conn.WriteJSON(wsClientMessage{Type: "retry"}); err != nil {
		t.Fatalf("write retry: %v", err)
	}
	readMoviesUntil(t, conn, func(r listResult) bool { return r.Status == domain.ResultLoading })
	again := readMoviesUntil(t, conn, func(r listResult) bool { return r.Status == domain.ResultSuccess })
	if len(again.Data) != 1 || again.Data[0].ID != 7 {
		t.Fatalf("expected retry to repeat search, got %+v", again.Data)
	}
}

func TestWebSocketSessionErrorState(t *testing.T) {
	catalog := &fakeCatalog{err: fmt.Errorf("%w: dial tcp: refused", domain.ErrNetwork)}
	s := newTestServer(t, seededRepository(true, catalog))
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := dialWS(t, srv)
	failed := readMoviesUntil(t, conn, func(r listResult) bool { return r.Status == domain.ResultError })
	if !strings.Contains(failed.Message, "refused") {
		t.Fatalf("unexpected error message %q", failed.Message)
	}
}

func TestServerCloseDisconnectsSessions(t *testing.T) {
	s := NewServer(seededRepository(false, nil))
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := dialWS(t, srv)
	readMoviesUntil(t, conn, func(r listResult) bool { return r.Status == domain.ResultSuccess })

	s.Close()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Fatalf("expected going-away close, got %v", err)
		}
		break
	}
}
