// Package github talks to the GitHub REST API: authentication, pull request
// lookups and issue comments.
package github

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

// DefaultAPIURL is the REST endpoint of github.com.
const DefaultAPIURL = "https://api.github.com/"

// ClientOptions configures NewClient.
type ClientOptions struct {
	// APIURL is the REST base URL. GitHub Enterprise Server uses
	// https://<host>/api/v3/.
	APIURL string
	// Timeout bounds each HTTP request. Zero means no timeout.
	Timeout time.Duration
	// MaxRetries is how often a failed read is retried. Negative disables
	// retries; zero uses the default.
	MaxRetries int
	Logger     *slog.Logger
}

// NewClient returns a go-github client authenticated with token.
func NewClient(token string, opts ClientOptions) (*github.Client, error) {
	retries := opts.MaxRetries
	if retries == 0 {
		retries = defaultMaxRetries
	}

	httpClient := &http.Client{
		Timeout: opts.Timeout,
		Transport: &retryTransport{
			maxRetries:   retries,
			initialDelay: defaultInitialDelay,
			logger:       opts.Logger,
		},
	}

	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	if opts.APIURL != "" {
		base, err := parseBaseURL(opts.APIURL)
		if err != nil {
			return nil, err
		}
		client.BaseURL = base
	}
	return client, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", raw, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid GitHub API URL %q: scheme and host are required", raw)
	}
	return base, nil
}

// splitRepo splits an "owner/name" repository name.
func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo format: %s (expected owner/repo)", repo)
	}
	return parts[0], parts[1], nil
}
