package httpfetch

import (
	"errors"
	"fmt"
	"net/http"
)

// TransientError marks network failures, timeouts, 5xx and 429 responses.
// These are retried.
type TransientError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient fetch error %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("transient fetch error %s: %v", e.URL, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// StatusError is a non-retryable non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// IsTransient reports whether err was classified as retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func classifyStatus(url string, status int) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return &TransientError{URL: url, Status: status}
	}
	return &StatusError{URL: url, Status: status}
}
