// Package gitlab harvests group activity from the GitLab GraphQL API.
package gitlab

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/shurcooL/graphql"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/fetch"
)

// querier is the part of graphql.Client the fetcher uses.
type querier interface {
	Query(ctx context.Context, q interface{}, variables map[string]interface{}) error
}

// Client runs GraphQL queries through a throttle.
type Client struct {
	gql      querier
	throttle *fetch.Throttle
	logger   *logrus.Entry
}

// statusError is a non-2xx answer from the endpoint.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gitlab responded %d: %s", e.code, e.body)
}

// statusTransport turns non-2xx responses into *statusError so callers can
// tell throttling and outages from bad queries.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}
	return resp, nil
}

// NewClient builds a token-authenticated client for cfg.APIURL.
func NewClient(cfg config.GitLabConfig, retries uint64, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	base := &http.Client{Transport: &statusTransport{base: http.DefaultTransport}}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := base
	if cfg.Token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	}
	return &Client{
		gql:      graphql.NewClient(cfg.APIURL, httpClient),
		throttle: fetch.NewThrottle(cfg.RateLimit, retries, logger),
		logger:   logger,
	}
}

func (c *Client) query(ctx context.Context, op string, q interface{}, vars map[string]interface{}) error {
	err := c.throttle.Do(ctx, op, func() error {
		err := c.gql.Query(ctx, q, vars)
		if err == nil || retryable(err) {
			return err
		}
		return fetch.Permanent(err)
	})
	if err != nil {
		return errors.ExternalErrorf(err, "gitlab %s", op)
	}
	return nil
}

func retryable(err error) bool {
	var se *statusError
	if stderrors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	// transport failures are retried, errors reported in the GraphQL
	// response are not
	var ue *url.Error
	return stderrors.As(err, &ue)
}
