package domain

import "errors"

var (
	ErrNotFound = errors.New("movie not found")
	ErrNetwork  = errors.New("network failure")
)

// DefaultErrorMessage is shown when a failure carries no description.
const DefaultErrorMessage = "An error occurred"

// ErrorMessage returns the user-facing text for err.
func ErrorMessage(err error) string {
	if err == nil {
		return DefaultErrorMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return DefaultErrorMessage
}
