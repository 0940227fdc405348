package utils

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HTTPClientConfig holds configuration for HTTP client creation
type HTTPClientConfig struct {
	Timeout time.Duration
}

// DefaultHTTPClientConfig returns default HTTP client configuration.
// Request deadlines are set per attempt by callers, so the client itself
// carries only a generous upper bound.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout: 60 * time.Second,
	}
}

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config HTTPClientConfig) *http.Client {
	return &http.Client{
		Timeout: config.Timeout,
	}
}

// NewDefaultHTTPClient creates a new HTTP client with default configuration
func NewDefaultHTTPClient() *http.Client {
	return NewHTTPClient(DefaultHTTPClientConfig())
}

// SafeCloseResponse closes an HTTP response body, reporting failures on stderr.
func SafeCloseResponse(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		if err := resp.Body.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close HTTP response body: %v\n", err)
		}
	}
}

func dirOf(path string) string {
	return filepath.Dir(path)
}
