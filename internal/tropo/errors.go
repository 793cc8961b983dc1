package tropo

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMethodNotAllowed is returned when a webhook request is not a POST.
	ErrMethodNotAllowed = errors.New("tropo: requests are expected to submit with POST method")

	// ErrBadRequest is returned when the request body carries neither a
	// session nor a result payload.
	ErrBadRequest = errors.New("tropo: could not interpret request body")

	// ErrBodyTooLarge is returned when the request body exceeds the limit
	// set with http.MaxBytesReader.
	ErrBodyTooLarge = errors.New("tropo: request body too large")

	// ErrSessionConflict is returned when initial call data is supplied for a
	// session that already holds a call.
	ErrSessionConflict = errors.New("tropo: conflicted call data")

	// ErrSessionNotFound is returned when no call exists for a session and no
	// initial data was supplied to create one.
	ErrSessionNotFound = errors.New("tropo: no call data")

	// ErrMissingRequiredField is returned by ResultValue when a required
	// action is absent from the current result.
	ErrMissingRequiredField = errors.New("tropo: result field was not found")
)

// HTTPError is a failure with a user-facing HTTP status. It unwraps to one
// of the sentinel errors above.
type HTTPError struct {
	Status int
	Err    error
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusCode maps an error returned by this package to an HTTP status.
func StatusCode(err error) int {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &httpErr):
		return httpErr.Status
	case errors.Is(err, ErrSessionConflict):
		return http.StatusConflict
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
