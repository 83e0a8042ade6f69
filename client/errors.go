package client

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned by Status and Wait when the server does not
	// know the job id.
	ErrJobNotFound = errors.New("job not found")

	// ErrEmptyBaseURL is returned when no server URL is configured.
	ErrEmptyBaseURL = errors.New("base URL required")
)

// StatusError reports a non-success response from the server.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Detail)
}
