// Package usage queries the usage endpoint and decodes its rate limit windows.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/leiske/codex-usage/pkg/logger"
	"github.com/leiske/codex-usage/pkg/utils"
)

// DefaultTimeout bounds each request attempt.
const DefaultTimeout = 15 * time.Second

// maxBodySize caps how much of a response is read.
const maxBodySize = 1 << 20

// Request is a resolved credential ready to be sent.
type Request struct {
	URL           string
	Authorization string
	Cookie        string
	// Headers are extra headers sent as-is. An authorization entry here is
	// ignored in favour of Authorization.
	Headers map[string]string
}

// HeaderNames lists the names of every header the request will carry.
func (r Request) HeaderNames() []string {
	set := map[string]struct{}{"accept": {}, "authorization": {}}
	if r.Cookie != "" {
		set["cookie"] = struct{}{}
	}
	for k := range r.Headers {
		set[strings.ToLower(k)] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Timeout per attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// Retry is the number of extra attempts after a 5xx or network failure.
	Retry int
	// InitialBackoff is the first retry delay. Zero uses the backoff default.
	InitialBackoff time.Duration
	HTTPClient     *http.Client
}

// Client fetches usage snapshots.
type Client struct {
	httpClient     *http.Client
	timeout        time.Duration
	retry          int
	initialBackoff time.Duration
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		httpClient:     cfg.HTTPClient,
		timeout:        cfg.Timeout,
		retry:          cfg.Retry,
		initialBackoff: cfg.InitialBackoff,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.retry < 0 {
		c.retry = 0
	}
	if c.httpClient == nil {
		c.httpClient = utils.NewDefaultHTTPClient()
	}
	return c
}

// Fetch performs the GET and decodes the rate limit windows. 5xx responses
// and transport failures are retried with exponential backoff; everything
// else fails immediately.
func (c *Client) Fetch(ctx context.Context, req Request) (*Snapshot, error) {
	log := logger.FromContext(ctx)
	info := RequestInfo{URL: req.URL, HeaderNames: req.HeaderNames()}

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		body, err = c.do(ctx, req, info)
		if err == nil {
			return nil
		}
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.Status >= 500 {
			return err
		}
		var timeoutErr *TimeoutError
		if errors.As(err, &timeoutErr) || isTransport(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	if c.initialBackoff > 0 {
		eb.InitialInterval = c.initialBackoff
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.retry)), ctx)

	notify := func(err error, wait time.Duration) {
		log.Debug(ctx, "usage request failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	snap, err := ParseSnapshot(body)
	if err != nil {
		var unexpected *UnexpectedResponseError
		if errors.As(err, &unexpected) {
			unexpected.RequestInfo = info
		}
		return nil, err
	}
	return snap, nil
}

// transportError marks a failure below HTTP, such as a refused connection.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransport(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

func (c *Client) do(ctx context.Context, req Request, info RequestInfo) ([]byte, error) {
	log := logger.FromContext(ctx)

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, "authorization") {
			continue
		}
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", req.Authorization)
	if req.Cookie != "" {
		httpReq.Header.Set("Cookie", req.Cookie)
	}

	log.Debug(ctx, "requesting usage", "url", info.URL, "headers", strings.Join(info.HeaderNames, ","))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{RequestInfo: info, Timeout: c.timeout.String()}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transportError{err: fmt.Errorf("failed to fetch usage: %w", err)}
	}
	defer utils.SafeCloseResponse(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{RequestInfo: info, Timeout: c.timeout.String()}
		}
		return nil, &transportError{err: fmt.Errorf("failed to read response body: %w", err)}
	}

	log.Debug(ctx, "usage response", "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthExpiredError{RequestInfo: info, Status: resp.StatusCode, APICode: apiErrorCode(body)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &HTTPStatusError{RequestInfo: info, Status: resp.StatusCode, APICode: apiErrorCode(body)}
	}
	return body, nil
}

// apiErrorCode pulls an error code from error.code, error_code, code or
// detail.code, in that order.
func apiErrorCode(body []byte) string {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return ""
	}

	nested := func(key string) any {
		if m, ok := root[key].(map[string]any); ok {
			return m["code"]
		}
		return nil
	}

	for _, c := range []any{nested("error"), root["error_code"], root["code"], nested("detail")} {
		switch t := c.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				return t
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}
