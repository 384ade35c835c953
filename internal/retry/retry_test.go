package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	out, err := Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, Options{MaxAttempts: 3, BaseDelay: time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastErrorUnwrapped(t *testing.T) {
	sentinel := errors.New("still broken")
	calls := 0
	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, sentinel
	}, Options{MaxAttempts: 3, BaseDelay: time.Millisecond})

	assert.Equal(t, 3, calls)
	// The exhausted failure propagates unchanged, not wrapped.
	assert.Same(t, sentinel, err)
}

func TestDoPermanentErrorAttemptedOnce(t *testing.T) {
	authErr := errors.New("invalid credential")
	calls := 0
	_, err := Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(authErr)
	}, Options{MaxAttempts: 5, BaseDelay: time.Millisecond})

	assert.Equal(t, 1, calls)
	assert.Same(t, authErr, err)
}

func TestDoBackoffDoubles(t *testing.T) {
	var gaps []time.Duration
	last := time.Now()
	_, _ = Do(context.Background(), func(ctx context.Context) (int, error) {
		now := time.Now()
		gaps = append(gaps, now.Sub(last))
		last = now
		return 0, errors.New("nope")
	}, Options{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond})

	require.Len(t, gaps, 3)
	// First call is immediate; then 20ms, then 40ms.
	assert.Less(t, gaps[0], 10*time.Millisecond)
	assert.GreaterOrEqual(t, gaps[1], 20*time.Millisecond)
	assert.GreaterOrEqual(t, gaps[2], 40*time.Millisecond)
}

func TestDoContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Do(ctx, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("transient")
	}, Options{MaxAttempts: 3, BaseDelay: time.Hour})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
	assert.False(t, IsPermanent(errors.New("x")))
	assert.NoError(t, Permanent(nil))
}
