package domain

type ResultStatus string

const (
	ResultLoading ResultStatus = "loading"
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
)

// Result is the published state of an asynchronous read. Exactly one of the
// three statuses is active; Data is only meaningful for success and, optionally,
// error.
type Result[T any] struct {
	Status  ResultStatus `json:"status"`
	Data    *T           `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
}

func Loading[T any]() Result[T] {
	return Result[T]{Status: ResultLoading}
}

func Success[T any](data T) Result[T] {
	return Result[T]{Status: ResultSuccess, Data: &data}
}

// Failure builds an error result. data may carry stale payload; pass nil for none.
func Failure[T any](message string, data *T) Result[T] {
	if message == "" {
		message = DefaultErrorMessage
	}
	return Result[T]{Status: ResultError, Data: data, Message: message}
}

func (r Result[T]) IsLoading() bool { return r.Status == ResultLoading }
func (r Result[T]) IsSuccess() bool { return r.Status == ResultSuccess }
func (r Result[T]) IsError() bool   { return r.Status == ResultError }

// Value returns the payload, or the zero value when there is none.
func (r Result[T]) Value() T {
	var zero T
	if r.Data == nil {
		return zero
	}
	return *r.Data
}

// Match dispatches on the active status. Every consumer handles all three
// variants; an unknown status panics.
func Match[T, R any](r Result[T], onLoading func() R, onSuccess func(T) R, onError func(string, *T) R) R {
	switch r.Status {
	case ResultLoading:
		return onLoading()
	case ResultSuccess:
		return onSuccess(r.Value())
	case ResultError:
		return onError(r.Message, r.Data)
	default:
		panic("domain: unknown result status " + string(r.Status))
	}
}
