package usage

import (
	"fmt"
	"strings"
)

// RequestInfo identifies a request in error reports without exposing
// header values.
type RequestInfo struct {
	URL         string
	HeaderNames []string
}

// AuthExpiredError is returned for 401 and 403 responses.
type AuthExpiredError struct {
	RequestInfo
	Status int
	// APICode is the error code from the response body, if any.
	APICode string
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("auth expired: HTTP %d%s", e.Status, apiCodeSuffix(e.APICode))
}

// HTTPStatusError is returned for any other non-2xx response.
type HTTPStatusError struct {
	RequestInfo
	Status  int
	APICode string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("request failed: HTTP %d%s", e.Status, apiCodeSuffix(e.APICode))
}

// TimeoutError is returned when an attempt exceeds the configured timeout.
type TimeoutError struct {
	RequestInfo
	Timeout string
}

func (e *TimeoutError) Error() string {
	return "request timed out after " + e.Timeout
}

// UnexpectedResponseError is returned when the body lacks the expected
// rate limit fields.
type UnexpectedResponseError struct {
	RequestInfo
	Reason string
}

func (e *UnexpectedResponseError) Error() string {
	return "unexpected JSON: " + e.Reason
}

func apiCodeSuffix(code string) string {
	if strings.TrimSpace(code) == "" {
		return ""
	}
	return " (API code: " + code + ")"
}
