package presco

import (
	"context"
	"fmt"
	"testing"
	"time"

	"prescosync/lib/browser"
	"prescosync/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestBackoffSchedule(t *testing.T) {
	require.Equal(t, 5*time.Second, Backoff(1))
	require.Equal(t, 10*time.Second, Backoff(2))
	require.Equal(t, 15*time.Second, Backoff(3))
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrapers/presco")
	defer cleanup()

	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	calls := 0
	path, err := retrieveWithRetry(context.Background(), 3, sleep,
		func(_ context.Context, attempt int) (string, error) {
			calls++
			if attempt < 3 {
				return "", fmt.Errorf("attempt failed in state page_loaded: %w", context.DeadlineExceeded)
			}
			return "/tmp/presco_yesterday.csv", nil
		},
	)

	require.NoError(t, err)
	require.Equal(t, "/tmp/presco_yesterday.csv", path)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, slept)
}

func TestRetryExhaustsBudget(t *testing.T) {
	sleep := func(_ context.Context, _ time.Duration) error { return nil }

	calls := 0
	_, err := retrieveWithRetry(context.Background(), 3, sleep,
		func(_ context.Context, _ int) (string, error) {
			calls++
			return "", fmt.Errorf("navigation timeout")
		},
	)

	require.ErrorIs(t, err, ErrRetrievalExhausted)
	require.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentFailure(t *testing.T) {
	sleep := func(_ context.Context, _ time.Duration) error {
		t.Fatal("must not back off after a permanent failure")
		return nil
	}

	calls := 0
	_, err := retrieveWithRetry(context.Background(), 3, sleep,
		func(_ context.Context, _ int) (string, error) {
			calls++
			return "", fmt.Errorf("attempt failed in state authenticated: %w", LoginFailed)
		},
	)

	require.ErrorIs(t, err, LoginFailed)
	require.Equal(t, 1, calls)
}

func TestRetryableClassification(t *testing.T) {
	require.False(t, retryable(LoginFailed))
	require.False(t, retryable(fmt.Errorf("wrapped: %w", browser.ErrEmptyDownload)))
	require.True(t, retryable(context.DeadlineExceeded))
	require.True(t, retryable(fmt.Errorf("net error")))
}
