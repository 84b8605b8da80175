package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrierSucceedsAfterFailures(t *testing.T) {
	r := NewRetrier(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetrierExhaustsAttempts(t *testing.T) {
	r := NewRetrier(RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond})

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("always fails")
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetrierHonorsRetryableKinds(t *testing.T) {
	permanent := errors.New("permanent")
	r := NewRetrier(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		RetryableKinds: func(err error) bool {
			return !errors.Is(err, permanent)
		},
	})

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestRetrierStopsOnContextCancel(t *testing.T) {
	r := NewRetrier(RetryConfig{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := r.Do(ctx, func(context.Context) error {
		attempts++
		return errors.New("keep trying")
	})

	require.Error(t, err)
	assert.Less(t, attempts, 10)
}

func TestDelayForGrowsExponentiallyAndCaps(t *testing.T) {
	r := NewRetrier(RetryConfig{MaxAttempts: 10, BaseDelay: 10 * time.Millisecond, MaxDelay: 30 * time.Millisecond})

	d1 := r.delayFor(1)
	d2 := r.delayFor(2)
	d3 := r.delayFor(3)
	d4 := r.delayFor(4)

	assert.InDelta(t, 10*time.Millisecond, d1, float64(2*time.Millisecond))
	assert.InDelta(t, 20*time.Millisecond, d2, float64(2*time.Millisecond))
	assert.LessOrEqual(t, d3, 30*time.Millisecond)
	assert.LessOrEqual(t, d4, 30*time.Millisecond)
}
