package apihttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"movieapp/internal/detail"
	"movieapp/internal/domain"
)

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	movies, err := s.movies.GetTrendingMovies(r.Context())
	if err != nil {
		s.logger.Warn("trending read failed", slog.String("error", err.Error()))
		writeFailure[[]domain.Movie](w, err)
		return
	}
	writeMovies(w, movies)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	query := r.URL.Query().Get("q")
	movies, err := s.movies.SearchMovies(r.Context(), query)
	if err != nil {
		s.logger.Warn("search failed", slog.String("query", query), slog.String("error", err.Error()))
		writeFailure[[]domain.Movie](w, err)
		return
	}
	writeMovies(w, movies)
}

func (s *Server) handleMovieByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/movies/"), "/")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid movie id")
		return
	}

	controller := detail.New(s.movies, domain.MovieID(id), s.detailOpts...)
	defer controller.Close()

	state, err := controller.Await(r.Context())
	if r.Context().Err() != nil {
		return
	}
	if err != nil {
		writeJSON(w, statusForError(err), state)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func writeMovies(w http.ResponseWriter, movies []domain.Movie) {
	if movies == nil {
		movies = []domain.Movie{}
	}
	writeJSON(w, http.StatusOK, domain.Success(movies))
}
