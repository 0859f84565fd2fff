package llm

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/surgewhisper/api/internal/types"
)

const (
	maxAttempts = 6
	maxBackoff  = 32 * time.Second
	maxJitter   = 500 * time.Millisecond
	baseBackoff = time.Second
)

// retrier runs provider calls with exponential backoff on transient
// failures. Sleep and jitter are injectable so retry policy is testable
// without real elapsed time.
type retrier struct {
	sleep  func(time.Duration)
	jitter func() time.Duration
}

func newRetrier() retrier {
	return retrier{
		sleep: time.Sleep,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(maxJitter)))
		},
	}
}

// do invokes call up to maxAttempts times. Only rate-limit and
// server-side (429/5xx) failures are retried; anything else, or
// exhaustion, returns the last error.
func (r retrier) do(ctx context.Context, call func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		if !retryable(err) || attempt == maxAttempts-1 {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.sleep(backoff(attempt) + r.jitter())
	}
	return err
}

// backoff is min(32s, 1s * 2^attempt), attempt counting from 0.
func backoff(attempt int) time.Duration {
	d := baseBackoff << uint(attempt)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// retryable classifies a provider failure. StatusError carries the
// status directly; otherwise fall back to scanning the message, which
// is all some client libraries surface.
func retryable(err error) bool {
	var se *types.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}

	msg := err.Error()
	for _, code := range []string{"429", "500", "502", "503", "504", "529"} {
		if strings.Contains(msg, "status code: "+code) {
			return true
		}
	}
	return false
}
