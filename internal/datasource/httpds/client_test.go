package httpds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient builds a fast-backoff client; retries < 0 disables retrying.
func newTestClient(retries int) *Client {
	c := NewClient(Config{
		Retries:        retries,
		HeaderTimeout:  2 * time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
	c.sleep = func(time.Duration) {}
	return c
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true})
	if c.httpClient.Timeout != 0 {
		t.Fatalf("whole-request timeout = %v; split bodies must not be time-bounded", c.httpClient.Timeout)
	}
	if c.retries != 3 || c.initialBackoff <= 0 || c.maxBackoff <= 0 || c.userAgent != "splitread" {
		t.Fatalf("unexpected defaults: retries=%d initial=%v max=%v ua=%q", c.retries, c.initialBackoff, c.maxBackoff, c.userAgent)
	}
	tr, ok := c.httpClient.Transport.(*http.Transport)
	if !ok || tr.TLSClientConfig == nil || !tr.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("expected insecure TLS transport, got %#v", c.httpClient.Transport)
	}
	if tr.ResponseHeaderTimeout != 30*time.Second || tr.TLSHandshakeTimeout != 10*time.Second {
		t.Fatalf("header=%v tls=%v", tr.ResponseHeaderTimeout, tr.TLSHandshakeTimeout)
	}

	if c := NewClient(Config{Retries: -1}); c.retries != 0 {
		t.Fatalf("Retries=-1 gave %d retries", c.retries)
	}
}

func TestGetFrom_SendsRangeAndUserAgent(t *testing.T) {
	t.Parallel()

	var gotRange, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange, gotUA = r.Header.Get("Range"), r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	resp, err := newTestClient(-1).GetFrom(context.Background(), srv.URL, 42)
	if err != nil {
		t.Fatalf("GetFrom: %v", err)
	}
	resp.Body.Close()
	if gotRange != "bytes=42-" || gotUA != "splitread" {
		t.Fatalf("Range=%q User-Agent=%q", gotRange, gotUA)
	}
}

func TestDo_HonorsShortRetryAfter(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{Retries: 1, InitialBackoff: time.Hour, MaxBackoff: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Head(ctx, srv.URL)
	if err != nil {
		t.Fatalf("Head: %v (Retry-After not honored)", err)
	}
	resp.Body.Close()
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("hits = %d, want 2", hits)
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	for v, want := range map[string]time.Duration{"0": 0, "3": 3 * time.Second} {
		if got, ok := retryAfter(v); !ok || got != want {
			t.Errorf("retryAfter(%q) = %v, %v", v, got, ok)
		}
	}
	for _, v := range []string{"", "-1", "Wed, 21 Oct 2015 07:28:00 GMT"} {
		if _, ok := retryAfter(v); ok {
			t.Errorf("retryAfter(%q) accepted", v)
		}
	}
}

func TestDo_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := newTestClient(3).GetFrom(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("hits = %d, want 3", got)
	}
}

func TestDo_GivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := newTestClient(2).GetFrom(context.Background(), srv.URL, 0); err == nil {
		t.Fatal("expected error after retries")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("hits = %d, want 3", got)
	}
}

func TestDo_NonRetryableStatusReturned(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := newTestClient(3).GetFrom(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound || atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("status=%d hits=%d, want 404 after one attempt", resp.StatusCode, hits)
	}
}

func TestBackoffDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 500 * time.Millisecond},
		{80, 500 * time.Millisecond},
	}
	for _, c := range cases {
		if got := backoffDuration(100*time.Millisecond, c.attempt, 500*time.Millisecond); got != c.want {
			t.Errorf("backoffDuration(attempt=%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestSleepWithContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepWithContext(ctx, func(time.Duration) {}, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSleepWithContext_TimerCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()
	start := time.Now()
	if err := sleepWithContext(ctx, nil, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatalf("cancel did not cut the wait short")
	}
}

func TestSleepWithContext_InjectedSleepGetsFullWait(t *testing.T) {
	t.Parallel()

	var got time.Duration
	if err := sleepWithContext(context.Background(), func(d time.Duration) { got = d }, 3*time.Second); err != nil {
		t.Fatalf("sleepWithContext() error = %v", err)
	}
	if got != 3*time.Second {
		t.Fatalf("sleep called with %v, want 3s", got)
	}
}
