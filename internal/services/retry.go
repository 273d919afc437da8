package services

import (
	"context"
	"time"

	"github.com/recyclepay/backend/internal/config"
	"github.com/sirupsen/logrus"
)

// withReadRetry retries transient storage failures of read-only operations.
// Writes must never go through here.
func withReadRetry[T any](ctx context.Context, cfg config.RetryConfig, logger logrus.FieldLogger, op string, fn func() (T, error)) (T, error) {
	attempts := cfg.ReadAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := cfg.ReadBackoff

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn()
		if err == nil || !isTransient(err) || attempt == attempts {
			return result, err
		}

		logger.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
		}).WithError(err).Warn("transient storage failure, retrying read")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, err
		case <-timer.C:
		}
		backoff *= 2
	}
	return result, err
}
