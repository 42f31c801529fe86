package storefront

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when the request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrNetwork is returned when the API could not be reached or the body could not be read
	ErrNetwork = errors.New("network error")

	// ErrUnauthorized is returned on HTTP 401 and 403
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned on HTTP 404
	ErrNotFound = errors.New("not found")

	// ErrAPI is returned for any other failed or malformed response
	ErrAPI = errors.New("api error")
)

// Error is the normalized failure of every client call.
type Error struct {
	Status     string                 `json:"status"`
	HTTPStatus int                    `json:"http_status"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	kind       error
}

func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("storefront: %s (HTTP %d): %s", e.kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("storefront: %s: %s", e.kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.kind
}

func newError(kind error, httpStatus int, message string) *Error {
	if message == "" {
		message = kind.Error()
	}
	return &Error{Status: "error", HTTPStatus: httpStatus, Message: message, kind: kind}
}

// AsError extracts the normalized error, if err carries one
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
