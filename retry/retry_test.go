package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quote-shorts-pipeline/types"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo(t *testing.T) {
	t.Run("TransientTwiceThenSuccess", func(t *testing.T) {
		calls := 0
		attempts, err := Do(context.Background(), fastPolicy(3), func() error {
			calls++
			if calls < 3 {
				return types.Transient(errors.New("rate limited"))
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 3, calls)
	})

	t.Run("NonTransientFailsImmediately", func(t *testing.T) {
		calls := 0
		attempts, err := Do(context.Background(), fastPolicy(3), func() error {
			calls++
			return types.NonRetryable(errors.New("bad credentials"))
		})

		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
		assert.Equal(t, 1, calls)
		assert.Equal(t, types.ClassNonRetryable, types.ClassOf(err))
	})

	t.Run("TransientExhaustsBudget", func(t *testing.T) {
		calls := 0
		attempts, err := Do(context.Background(), fastPolicy(3), func() error {
			calls++
			return types.Transient(errors.New("timeout"))
		})

		assert.Error(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 3, types.AttemptsOf(err))
	})

	t.Run("UnclassifiedErrorNotRetried", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), fastPolicy(3), func() error {
			calls++
			return errors.New("mystery failure")
		})

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("CancelledDuringWait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := Policy{MaxAttempts: 3, BaseDelay: time.Minute}

		calls := 0
		done := make(chan error, 1)
		go func() {
			_, err := Do(ctx, p, func() error {
				calls++
				return types.Transient(errors.New("timeout"))
			})
			done <- err
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.Error(t, err)
			assert.Equal(t, 1, calls)
		case <-time.After(time.Second):
			t.Fatal("Do did not return after cancellation")
		}
	})

	t.Run("ZeroAttemptsRunsOnce", func(t *testing.T) {
		calls := 0
		attempts, err := Do(context.Background(), Policy{}, func() error {
			calls++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
		assert.Equal(t, 1, calls)
	})
}
