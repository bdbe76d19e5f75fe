package presco

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"prescosync/lib/browser"
)

var ErrRetrievalExhausted = fmt.Errorf("retrieval attempts exhausted")

// Backoff returns the delay before attempt n+1, given that attempt n
// (1-indexed) just failed. The schedule is linear.
func Backoff(attempt int) time.Duration {
	return time.Duration(attempt) * 5 * time.Second
}

// retryable reports whether an attempt failure is worth another try.
// Bad credentials and an empty artifact from a download that went
// through are environmental facts, not flakes.
func retryable(err error) bool {
	return !errors.Is(err, LoginFailed) &&
		!errors.Is(err, browser.ErrEmptyDownload)
}

type sleepFunc func(context.Context, time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retrieveWithRetry drives the attempt function until it succeeds, a
// permanent failure surfaces, or maxAttempts is exhausted. sleep is
// injectable so the schedule is testable without waiting it out.
func retrieveWithRetry(
	ctx context.Context,
	maxAttempts int,
	sleep sleepFunc,
	attempt func(ctx context.Context, attempt int) (string, error),
) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastErr error
	for i := 1; i <= maxAttempts; i++ {
		path, err := attempt(ctx, i)
		if err == nil {
			return path, nil
		}
		lastErr = err
		if !retryable(err) {
			return "", err
		}

		slog.WarnContext(ctx, "retrieval attempt failed",
			"attempt", i,
			"max_attempts", maxAttempts,
			"err", err,
		)
		if i == maxAttempts {
			break
		}
		if err := sleep(ctx, Backoff(i)); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %w", ErrRetrievalExhausted, maxAttempts, lastErr)
}
