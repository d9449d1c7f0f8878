package authapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyBaseURL    = errors.New("authapi.empty_base_url")
	ErrMalformedResult = errors.New("authapi.malformed_result")
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("auth api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Rejected reports whether the backend refused the request itself, as
// opposed to failing to process it. Timeouts and rate limiting are not
// rejections.
func (e *StatusError) Rejected() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}
