package imageset

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer is the courtesy policy applied by the Harvester after each
// acquisition. Implementations only pause after OutcomeSuccess.
type Pacer interface {
	Pace(ctx context.Context, o Outcome) error
}

// FixedDelay sleeps for a constant duration after every successful fetch.
type FixedDelay time.Duration

func (d FixedDelay) Pace(ctx context.Context, o Outcome) error {
	if o != OutcomeSuccess {
		return nil
	}
	return sleepCtx(ctx, time.Duration(d))
}

// TokenBucket spaces successful fetches across all workers with a shared
// token bucket: at most burst fetches back to back, then one per interval.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket returns a pacer allowing one success per interval with the given burst.
func NewTokenBucket(interval time.Duration, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

func (b *TokenBucket) Pace(ctx context.Context, o Outcome) error {
	if o != OutcomeSuccess {
		return nil
	}
	return b.limiter.Wait(ctx)
}

// NoPacing never pauses.
type NoPacing struct{}

func (NoPacing) Pace(ctx context.Context, _ Outcome) error { return ctx.Err() }
