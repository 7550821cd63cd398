package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls DoVal. Zero fields take the defaults.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first. Default: 2.
	Attempts int

	// Backoff is the delay before the first retry. Default: 200ms.
	Backoff time.Duration

	// MaxBackoff caps the delay. Default: 5s.
	MaxBackoff time.Duration

	// Jitter is the ± fraction applied to each delay. Default: 0.25.
	Jitter float64

	// Retryable overrides IsTransient.
	Retryable func(error) bool
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 2
	}
	if p.Backoff <= 0 {
		p.Backoff = 200 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 5 * time.Second
	}
	if p.Jitter <= 0 {
		p.Jitter = 0.25
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// DoVal calls fn until it succeeds, returns a non-retryable error, runs out
// of attempts, or ctx is done. The last error is returned.
func DoVal[T any](ctx context.Context, source string, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.Retryable(err) || attempt == p.Attempts-1 {
			break
		}

		zap.L().Debug("retrying source",
			zap.String("source", source),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// delay returns the jittered delay before retry number attempt (0-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.Backoff) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	d += (rand.Float64()*2 - 1) * d * p.Jitter
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
