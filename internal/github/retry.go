package github

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// Default retry configuration for GitHub API reads
	defaultMaxRetries   = 3
	defaultInitialDelay = 500 * time.Millisecond
)

// retryTransport retries idempotent requests that failed with a transient
// network error or a gateway status. Writes are sent exactly once.
type retryTransport struct {
	// base is resolved on every request so that tests which swap
	// http.DefaultTransport are honored.
	base         http.RoundTripper
	maxRetries   int
	initialDelay time.Duration
	logger       *slog.Logger
}

func (t *retryTransport) transport() http.RoundTripper {
	if t.base != nil {
		return t.base
	}
	return http.DefaultTransport
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isIdempotent(req.Method) || t.maxRetries <= 0 {
		return t.transport().RoundTrip(req)
	}

	delay := t.initialDelay
	for attempt := 0; ; attempt++ {
		resp, err := t.transport().RoundTrip(req)
		if attempt >= t.maxRetries || !shouldRetry(resp, err) {
			return resp, err
		}

		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			t.log().Debug("retrying GitHub request", "url", req.URL.String(), "status", resp.StatusCode, "attempt", attempt+1)
		} else {
			t.log().Debug("retrying GitHub request", "url", req.URL.String(), "error", err, "attempt", attempt+1)
		}

		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
		delay *= 2 // 500ms -> 1s -> 2s
	}
}

func (t *retryTransport) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}

func isIdempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return isRetryableError(err)
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isRetryableError determines if an error should trigger a retry
// Returns true for transient network errors, false for permanent errors
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	retryablePatterns := []string{
		"eof",
		"timeout",
		"connection refused",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
