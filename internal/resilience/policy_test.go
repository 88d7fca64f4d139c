package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyErr struct{ retry bool }

func (e flakyErr) Error() string     { return fmt.Sprintf("flaky (retry=%v)", e.retry) }
func (e flakyErr) IsRetryable() bool { return e.retry }

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Policy{Timeout: time.Second, MaxRetries: 1}, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: 5}, func(ctx context.Context) (int, error) {
		calls++
		return 0, flakyErr{retry: true}
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls, "retries are capped at one")
}

func TestDoRecoversAfterRetry(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Policy{MaxRetries: 1, Backoff: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, flakyErr{retry: true}
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: 1}, func(ctx context.Context) (int, error) {
		calls++
		return 0, flakyErr{retry: false}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoTimesOutAttempt(t *testing.T) {
	calls := 0
	start := time.Now()
	_, err := Do(context.Background(), Policy{Timeout: 20 * time.Millisecond, MaxRetries: 1}, func(ctx context.Context) (int, error) {
		calls++
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 2, calls, "an attempt timeout is transient")
	assert.Less(t, time.Since(start), time.Second)
}

func TestDoStopsOnParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{MaxRetries: 1}, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, flakyErr{retry: true}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoLateSuccessCountsAsTimeout(t *testing.T) {
	_, err := Do(context.Background(), Policy{Timeout: 5 * time.Millisecond}, func(ctx context.Context) (int, error) {
		time.Sleep(20 * time.Millisecond)
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", flakyErr{retry: true})))
	assert.False(t, IsTransient(errors.New("boom")))
	assert.False(t, IsTransient(context.Canceled))
}

func TestLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0, 1))
	assert.NoError(t, Wait(context.Background(), nil))

	l := NewLimiter(1000, 0)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
	assert.NoError(t, Wait(context.Background(), l))
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code  int
		retry bool
	}{
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tt := range tests {
		err := &StatusError{Service: "svc", StatusCode: tt.code}
		assert.Equal(t, tt.retry, err.IsRetryable(), "status %d", tt.code)
		assert.Equal(t, tt.retry, IsTransient(fmt.Errorf("call: %w", err)), "status %d", tt.code)
	}
	assert.Contains(t, (&StatusError{Service: "qdrant", StatusCode: 502, Body: "bad gateway"}).Error(), "qdrant")
}
