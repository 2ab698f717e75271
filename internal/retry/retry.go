package retry

import (
	"context"
	"errors"
	"time"

	"github.com/comigor/interview-bot/internal/config"
	"github.com/comigor/interview-bot/internal/logger"
)

// Policy holds configuration for retry logic
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Once is a single attempt with no backoff.
var Once = Policy{MaxAttempts: 1}

// FromConfig builds a Policy, clamping nonsensical values.
func FromConfig(cfg config.RetryConfig) Policy {
	p := Policy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.MaxDelay > 0 && p.InitialDelay > p.MaxDelay {
		p.InitialDelay = p.MaxDelay
	}
	return p
}

// Do executes fn with exponential backoff. Context errors are never retried.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := p.InitialDelay
	attempts := max(p.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt == attempts {
			break
		}

		logger.L.Warn("upstream call failed, retrying", "op", op, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return lastErr
}
