// Package retry implements the bounded backoff policy shared by every stage
// that talks to an external service.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quote-shorts-pipeline/types"
)

// Policy bounds one stage's retry behavior.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Do runs fn up to p.MaxAttempts times, backing off exponentially between
// transient failures. A non-transient classification aborts immediately.
// The returned attempt count is also stamped onto the final PipelineError.
func Do(ctx context.Context, p Policy, fn func() error) (int, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	delay := p.BaseDelay

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return attempt, nil
		}

		if !types.IsTransient(err) {
			return attempt, stamp(err, attempt)
		}
		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return attempt, stamp(types.NonRetryable(fmt.Errorf("cancelled during retry wait: %w", ctx.Err())), attempt)
		case <-time.After(delay):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return p.MaxAttempts, stamp(err, p.MaxAttempts)
}

func stamp(err error, attempts int) error {
	var pe *types.PipelineError
	if errors.As(err, &pe) {
		pe.Attempts = attempts
	}
	return err
}
