// Package github harvests organization activity from the GitHub REST API.
package github

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/fetch"
)

// Client wraps the GitHub API client with rate limiting and retries.
type Client struct {
	client   *github.Client
	throttle *fetch.Throttle
	logger   *logrus.Entry
}

// NewClient builds an authenticated client. BaseURL, when set, points at a
// GitHub Enterprise or test server.
func NewClient(cfg config.GitHubConfig, retries uint64, logger *logrus.Entry) (*Client, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	gh := github.NewClient(nil)
	if cfg.Token != "" {
		gh = gh.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, errors.ConfigErrorf("invalid github.base_url %q: %v", cfg.BaseURL, err)
		}
		gh.BaseURL = u
	}
	return &Client{
		client:   gh,
		throttle: fetch.NewThrottle(cfg.RateLimit, retries, logger),
		logger:   logger,
	}, nil
}

// do runs one API call through the throttle. Rate limiting, abuse
// detection and server errors are retried; everything else fails at once.
func (c *Client) do(ctx context.Context, op string, call func() (*github.Response, error)) error {
	err := c.throttle.Do(ctx, op, func() error {
		resp, err := call()
		if err == nil {
			return nil
		}
		if retryable(resp, err) {
			return err
		}
		return fetch.Permanent(err)
	})
	if err != nil {
		return errors.ExternalErrorf(err, "github %s", op)
	}
	return nil
}

func retryable(resp *github.Response, err error) bool {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if stderrors.As(err, &rateErr) || stderrors.As(err, &abuseErr) {
		return true
	}
	if resp == nil {
		// transport failure
		return true
	}
	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests, code == http.StatusForbidden:
		return true
	case code >= 500:
		return true
	}
	return false
}
