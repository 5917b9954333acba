package graph

import (
	"fmt"
	"net/http"
	"strings"
)

// AuthenticationError reports a failed token request. StatusCode is 0 when
// no HTTP response was received.
type AuthenticationError struct {
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("authentication failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response from Graph, enriched with the OData
// error code and message when one was returned.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter string
}

func (e *StatusError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph API error: %d", e.StatusCode)
	if text := http.StatusText(e.StatusCode); text != "" {
		b.WriteString(" " + text)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (code: %s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(" - " + e.Message)
	}
	if e.RetryAfter != "" {
		fmt.Fprintf(&b, " (retry after %s seconds)", e.RetryAfter)
	}
	return b.String()
}

// Throttled reports whether Graph rejected the request for rate limiting.
func (e *StatusError) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == "TooManyRequests" || e.Code == "activityLimitReached"
}

// odataError is the error envelope Graph returns on failures.
type odataError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
