package apihttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"movieapp/internal/detail"
	"movieapp/internal/domain"
	"movieapp/internal/search"
)

// MovieService is the read side of the movie repository.
type MovieService interface {
	GetTrendingMovies(ctx context.Context) ([]domain.Movie, error)
	SearchMovies(ctx context.Context, query string) ([]domain.Movie, error)
	GetMovieByID(ctx context.Context, id domain.MovieID) (domain.Movie, error)
}

type Server struct {
	movies         MovieService
	searchOpts     []search.Option
	detailOpts     []detail.Option
	allowedOrigins []string
	rateLimitRPS   float64
	rateLimitBurst int
	metricsHandler http.Handler
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
	wsUpgrader     *websocket.Upgrader
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSearchOptions configures the search controller created for every
// WebSocket session.
func WithSearchOptions(opts ...search.Option) ServerOption {
	return func(s *Server) {
		s.searchOpts = append(s.searchOpts, opts...)
	}
}

func WithDetailOptions(opts ...detail.Option) ServerOption {
	return func(s *Server) {
		s.detailOpts = append(s.detailOpts, opts...)
	}
}

// WithAllowedOrigins configures the origin whitelist for CORS and WebSocket
// handshakes. When empty (default), any origin is permitted.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.rateLimitRPS = rps
			s.rateLimitBurst = burst
		}
	}
}

// WithMetricsHandler replaces the default /metrics handler, e.g. with one
// bound to a custom registry.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		if h != nil {
			s.metricsHandler = h
		}
	}
}

func NewServer(movies MovieService, opts ...ServerOption) *Server {
	s := &Server{
		movies:         movies,
		rateLimitRPS:   100,
		rateLimitBurst: 200,
		metricsHandler: promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	origins := newOriginSet(s.allowedOrigins)
	s.wsUpgrader = newWSUpgrader(origins)
	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/movies/trending", s.handleTrending)
	mux.HandleFunc("/movies/search", s.handleSearch)
	mux.HandleFunc("/movies/", s.handleMovieByID)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", s.metricsHandler)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "movieapp",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	s.handler = recoveryMiddleware(s.logger,
		rateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst,
			metricsMiddleware(corsMiddleware(origins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close disconnects every WebSocket session and stops its controller.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.wsHub == nil || s.movies == nil {
		http.Error(w, "websocket not available", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed",
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("error", err.Error()))
		return
	}
	controller := search.New(s.movies, append([]search.Option{search.WithLogger(s.logger)}, s.searchOpts...)...)
	session := newWSSession(s.wsHub, conn, controller)
	if !s.wsHub.add(session) {
		session.close()
		_ = conn.Close()
		return
	}
	go session.writePump()
	go session.readPump()
}
