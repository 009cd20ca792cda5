package chain

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const maxBackoff = 10 * time.Second

// retryPolicy repeats failed calls with doubling backoff capped at maxBackoff.
type retryPolicy struct {
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func newRetryPolicy(maxRetries int, backoff time.Duration, logger *zap.Logger) retryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return retryPolicy{maxRetries: maxRetries, backoff: backoff, logger: logger}
}

// do runs fn until it succeeds, retries run out or ctx ends.
func (p retryPolicy) do(ctx context.Context, op string, fn func(context.Context) error) error {
	delay := p.backoff
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.maxRetries {
			return err
		}
		p.logger.Debug("retrying call", zap.String("op", op), zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if delay *= 2; delay > maxBackoff {
			delay = maxBackoff
		}
	}
}
