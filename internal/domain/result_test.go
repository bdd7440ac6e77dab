package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func describe[T any](r Result[T]) string {
	return Match(r,
		func() string { return "loading" },
		func(T) string { return "success" },
		func(msg string, _ *T) string { return "error:" + msg },
	)
}

func TestResultVariants(t *testing.T) {
	if got := describe(Loading[[]Movie]()); got != "loading" {
		t.Fatalf("got %q", got)
	}
	if got := describe(Success([]Movie{{ID: 7, Title: "Nope"}})); got != "success" {
		t.Fatalf("got %q", got)
	}
	if got := describe(Failure[[]Movie]("boom", nil)); got != "error:boom" {
		t.Fatalf("got %q", got)
	}
}

func TestFailureDefaultsMessage(t *testing.T) {
	r := Failure[Movie]("", nil)
	if r.Message != DefaultErrorMessage {
		t.Fatalf("expected default message, got %q", r.Message)
	}
	if r.Data != nil {
		t.Fatal("expected no payload")
	}
}

func TestSuccessEmptyListIsStillSuccess(t *testing.T) {
	r := Success[[]Movie](nil)
	if !r.IsSuccess() {
		t.Fatalf("expected success, got %s", r.Status)
	}
	if len(r.Value()) != 0 {
		t.Fatalf("expected no movies, got %v", r.Value())
	}
}

func TestResultJSONShape(t *testing.T) {
	raw, err := json.Marshal(Success(Movie{ID: 7, Title: "Nope", PosterPath: "/p.jpg"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"status":"success","data":{"id":7,"title":"Nope","overview":"","posterPath":"/p.jpg"}}`
	if string(raw) != want {
		t.Fatalf("got %s, want %s", raw, want)
	}

	raw, err = json.Marshal(Loading[[]Movie]())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"status":"loading"}` {
		t.Fatalf("unexpected loading json %s", raw)
	}
}

type emptyErr struct{}

func (emptyErr) Error() string { return "" }

func TestErrorMessage(t *testing.T) {
	if got := ErrorMessage(errors.New("tmdb HTTP 500")); got != "tmdb HTTP 500" {
		t.Fatalf("got %q", got)
	}
	if got := ErrorMessage(emptyErr{}); got != DefaultErrorMessage {
		t.Fatalf("got %q", got)
	}
	if got := ErrorMessage(nil); got != DefaultErrorMessage {
		t.Fatalf("got %q", got)
	}
}
