package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// maxErrorBodyLen caps how much of an error response body is kept.
const maxErrorBodyLen = 200

// Sentinel errors for upstream calls.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNetwork indicates the endpoint could not be reached (refused, DNS, reset).
	ErrNetwork = errors.New("network error")

	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrDecode indicates the response body was not the expected JSON.
	ErrDecode = errors.New("decode response")
)

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, e.Body)
}

// classify wraps a transport error with ErrTimeout or ErrNetwork.
func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
