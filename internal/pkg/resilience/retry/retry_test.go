package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrier_Execute(t *testing.T) {
	t.Run("returns nil when the operation succeeds immediately", func(t *testing.T) {
		r := New(WithDelay(time.Millisecond))

		var calls int
		err := r.Execute(t.Context(), func() error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until the operation succeeds", func(t *testing.T) {
		r := New(WithAttempts(3), WithDelay(time.Millisecond), WithMaxDelay(2*time.Millisecond))

		var calls int
		err := r.Execute(t.Context(), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns the last error after exhausting attempts", func(t *testing.T) {
		r := New(WithAttempts(2), WithDelay(time.Millisecond), WithMaxDelay(2*time.Millisecond))

		errBoom := errors.New("boom")
		var calls int
		err := r.Execute(t.Context(), func() error {
			calls++
			return errBoom
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 2, calls)
	})

	t.Run("stops retrying when the context is canceled", func(t *testing.T) {
		r := New(WithAttempts(100), WithDelay(50*time.Millisecond))

		ctx, cancel := context.WithCancel(t.Context())

		var calls int
		err := r.Execute(ctx, func() error {
			calls++
			cancel()
			return errors.New("transient")
		})

		require.Error(t, err)
		assert.LessOrEqual(t, calls, 2)
	})
}
