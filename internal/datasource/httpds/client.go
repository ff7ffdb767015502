// Package httpds serves split bytes over HTTP. Remote objects are entered at
// a split offset with a Range request, so every reader only transfers the
// bytes it scans.
//
// A split body is streamed for as long as its scan takes, so the Client
// bounds only connection setup and the wait for response headers. Failures
// before the body starts (transport errors, 429, 5xx) are retried with
// exponential backoff; a Retry-After from the server replaces the computed
// wait when it is shorter than MaxBackoff.
package httpds

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Config configures the Client. Zero values get defaults:
//   - DialTimeout:    10s
//   - HeaderTimeout:  30s
//   - Retries:        3
//   - InitialBackoff: 200ms
//   - MaxBackoff:     5s
//   - UserAgent:      "splitread"
type Config struct {
	DialTimeout time.Duration

	// HeaderTimeout bounds the wait for response headers after the request
	// is written. Reading the body is not bounded; the caller's context is.
	HeaderTimeout time.Duration

	// Retries is the number of retries after the first attempt. Negative
	// disables retrying.
	Retries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	UserAgent string

	// InsecureSkipVerify disables TLS certificate verification. Ignored when
	// Transport is set.
	InsecureSkipVerify bool

	// Transport overrides the default *http.Transport.
	Transport http.RoundTripper
}

// Client issues HEAD and ranged GET requests with retry.
type Client struct {
	httpClient     *http.Client
	retries        int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	userAgent      string

	// sleep replaces the timer wait between attempts when set.
	sleep func(time.Duration)
}

// NewClient constructs a Client from cfg, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.HeaderTimeout <= 0 {
		cfg.HeaderTimeout = 30 * time.Second
	}
	switch {
	case cfg.Retries == 0:
		cfg.Retries = 3
	case cfg.Retries < 0:
		cfg.Retries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "splitread"
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: cfg.DialTimeout}).DialContext,
			TLSHandshakeTimeout:   cfg.DialTimeout,
			ResponseHeaderTimeout: cfg.HeaderTimeout,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicitly configurable
			},
		}
	}

	return &Client{
		httpClient:     &http.Client{Transport: transport},
		retries:        cfg.Retries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		userAgent:      cfg.UserAgent,
	}
}

// GetFrom requests url from offset to the end. Offset 0 sends no Range
// header. A non-retryable status is returned as a response; the caller
// closes its body.
func (c *Client) GetFrom(ctx context.Context, url string, offset int64) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, url, offset)
}

// Head requests the headers of url.
func (c *Client) Head(ctx context.Context, url string) (*http.Response, error) {
	return c.do(ctx, http.MethodHead, url, 0)
}

func (c *Client) do(ctx context.Context, method, url string, offset int64) (*http.Response, error) {
	if url == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, fmt.Errorf("httpds: build request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		if offset > 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		}

		wait := backoffDuration(c.initialBackoff, attempt, c.maxBackoff)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			if !isRetryableStatus(resp.StatusCode) {
				return resp, nil
			}
			if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok && d < c.maxBackoff {
				wait = d
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("httpds: retryable status %d from %s %s", resp.StatusCode, method, url)
		}

		if attempt == c.retries {
			break
		}
		if err := sleepWithContext(ctx, c.sleep, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// isRetryableStatus treats 429 and 5xx as transient.
func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// retryAfter parses the delay-seconds form of Retry-After.
func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

// backoffDuration returns initial * 2^attempt clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt <= 0 {
		if initial > max {
			return max
		}
		return initial
	}
	d := initial << attempt
	if d > max || d <= 0 {
		return max
	}
	return d
}

// sleepWithContext waits d, or less if ctx is canceled first. A non-nil
// sleep is called instead of arming a timer.
func sleepWithContext(ctx context.Context, sleep func(time.Duration), d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if sleep != nil {
		sleep(d)
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
