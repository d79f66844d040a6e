// Package poll repeats a check at a fixed interval with a hard attempt cap.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted is returned when the check never reported done.
var ErrExhausted = errors.New("poll attempts exhausted")

var errPending = errors.New("pending")

// Check reports whether the awaited state has been reached. A non-nil error
// stops polling immediately.
type Check func(ctx context.Context) (bool, error)

// Until runs check once, then re-runs it up to retries more times, interval
// apart, stopping at the first true. It returns nil on success, ErrExhausted
// when retries run out, the check's own error, or ctx.Err().
func Until(ctx context.Context, interval time.Duration, retries int, check Check) error {
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(retries)),
		ctx,
	)
	err := backoff.Retry(func() error {
		done, err := check(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errPending
		}
		return nil
	}, b)
	if errors.Is(err, errPending) {
		return ErrExhausted
	}
	return err
}
