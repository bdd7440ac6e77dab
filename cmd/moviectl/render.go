package main

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"movieapp/internal/domain"
)

var (
	headerRowStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle      = lipgloss.NewStyle()
	titleStyle     = lipgloss.NewStyle().Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func renderMovieTable(movies []domain.Movie) string {
	if len(movies) == 0 {
		return "No movies found."
	}
	rows := make([][]string, len(movies))
	for i, m := range movies {
		rows[i] = []string{strconv.Itoa(int(m.ID)), m.Title, shorten(m.Overview, 60)}
	}
	t := table.New().
		Headers("ID", "Title", "Overview").
		Rows(rows...).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerRowStyle
			}
			return cellStyle
		})
	return t.Render()
}

func renderMovieDetail(m domain.Movie) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("id: ") + strconv.Itoa(int(m.ID)) + "\n")
	if poster := m.PosterURL(); poster != "" {
		b.WriteString(labelStyle.Render("poster: ") + poster + "\n")
	}
	if m.Overview != "" {
		b.WriteString("\n" + m.Overview)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderState(state domain.Result[[]domain.Movie]) string {
	return domain.Match(state,
		func() string { return labelStyle.Render("loading...") },
		func(movies []domain.Movie) string { return renderMovieTable(movies) },
		func(message string, _ *[]domain.Movie) string { return errorStyle.Render("error: " + message) },
	)
}

func shorten(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
