// Package retry provides the bounded retry policy shared by the outbound
// publish paths and the notification senders.
package retry

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	MaxAttempts int
	// Backoff returns the wait before the next try, after the given failed attempt (1-based).
	Backoff func(attempt int) time.Duration
}

// Linear waits base*attempt between attempts.
func Linear(maxAttempts int, base time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Backoff: func(attempt int) time.Duration {
			return base * time.Duration(attempt)
		},
	}
}

// Permanent stops the retry loop and makes Do return err as is.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs fn until it succeeds, returns a Permanent error, the context is done
// or MaxAttempts is reached. The last error is returned.
func (p Policy) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&funcBackOff{next: p.Backoff}, uint64(maxAttempts-1)),
		ctx,
	)

	attempt := 0
	return backoff.RetryNotify(
		func() error {
			attempt++
			return fn(ctx)
		},
		b,
		func(err error, wait time.Duration) {
			log.FromContext(ctx).
				WithError(err).
				WithField("operation", operation).
				WithField("attempt", attempt).
				WithField("retry_in", wait.String()).
				Warn("Operation failed, retrying")
		},
	)
}

type funcBackOff struct {
	next    func(attempt int) time.Duration
	attempt int
}

func (f *funcBackOff) NextBackOff() time.Duration {
	f.attempt++
	if f.next == nil {
		return 0
	}
	return f.next(f.attempt)
}

func (f *funcBackOff) Reset() {
	f.attempt = 0
}
