// Package retry runs I/O against external collaborators with bounded,
// jittered exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultAttempts is the total number of tries, first call included.
const DefaultAttempts = 3

// DefaultBaseDelay is the wait before the first retry.
const DefaultBaseDelay = 500 * time.Millisecond

// Policy bounds a retry loop.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	// Retriable decides whether an error is worth another try. Nil retries
	// every error.
	Retriable func(error) bool
	// OnRetry, when set, is called before each wait.
	OnRetry func(err error, wait time.Duration)
}

// Default returns the standard three-attempt policy.
func Default() Policy {
	return Policy{Attempts: DefaultAttempts, BaseDelay: DefaultBaseDelay}
}

// Permanent marks err as not worth retrying regardless of Retriable.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls fn until it succeeds, returns a non-retriable error, the attempts
// are exhausted, or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, p Policy, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	eb := backoff.NewExponentialBackOff()
	if p.BaseDelay > 0 {
		eb.InitialInterval = p.BaseDelay
	}
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if p.Retriable != nil && !p.Retriable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = p.OnRetry
	}
	return backoff.RetryNotify(op, b, notify)
}
