package util

import (
	"context"
	"time"

	"quiztube/internal/domain"
	"quiztube/internal/logger"

	"go.uber.org/zap"
)

// RetryNetwork runs fn once plus up to retries more times while it fails with a
// domain NetworkError, sleeping backoff between attempts. Any other error, or a
// cancelled ctx, ends the loop.
func RetryNetwork(ctx context.Context, retries int, backoff time.Duration, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || attempt >= retries || !domain.IsCode(err, domain.ErrNetwork) {
			return err
		}

		logger.Get().Warn("Retrying after network failure",
			zap.Int("attempt", attempt+1),
			zap.Int("retries", retries),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
