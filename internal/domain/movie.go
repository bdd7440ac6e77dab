package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

const posterBaseURL = "https://image.tmdb.org/t/p/original"

type MovieID int

// Movie is a catalog entry. ID is assigned by the remote catalog and is the
// only key local storage deduplicates on.
type Movie struct {
	ID         MovieID `json:"id"`
	Title      string  `json:"title"`
	Overview   string  `json:"overview"`
	PosterPath string  `json:"posterPath"`
}

func (m Movie) PosterURL() string {
	if strings.TrimSpace(m.PosterPath) == "" {
		return ""
	}
	return posterBaseURL + m.PosterPath
}

// Fold casers are stateless and safe for concurrent use.
var titleFolder = cases.Fold()

// TitleMatches reports whether title contains query, ignoring case.
// An empty query matches every title.
func TitleMatches(title, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(titleFolder.String(title), titleFolder.String(query))
}
