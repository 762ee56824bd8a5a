// Package fetch holds what the GitHub and GitLab harvesters share: request
// throttling with retries, and writing organization documents.
package fetch

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Throttle spaces requests with a token bucket and retries transient
// failures with exponential backoff. Safe for concurrent use.
type Throttle struct {
	limiter    *rate.Limiter
	maxRetries uint64
	initial    time.Duration
	maxElapsed time.Duration
	logger     *logrus.Entry
}

// NewThrottle allows rps requests per second (unlimited when <= 0) and up
// to maxRetries retries per request.
func NewThrottle(rps float64, maxRetries uint64, logger *logrus.Entry) *Throttle {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Throttle{
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: maxRetries,
		initial:    time.Second,
		maxElapsed: 5 * time.Minute,
		logger:     logger,
	}
}

// WithInitialInterval sets the first retry delay.
func (t *Throttle) WithInitialInterval(d time.Duration) *Throttle {
	t.initial = d
	return t
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs fn until it succeeds, returns a Permanent error, the retries run
// out or ctx ends. Every attempt waits for a rate token.
func (t *Throttle) Do(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.initial
	b.MaxElapsedTime = t.maxElapsed

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		if err := t.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		return fn()
	}, backoff.WithContext(backoff.WithMaxRetries(b, t.maxRetries), ctx), func(err error, wait time.Duration) {
		t.logger.WithError(err).WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"wait":    wait.String(),
		}).Warn("request failed, retrying")
	})
}
