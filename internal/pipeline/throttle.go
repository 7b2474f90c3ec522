package pipeline

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// throttle admits requests under a per-minute ceiling using a token bucket:
// the bucket starts full at `requestsPerMinute` credits, refills at
// requestsPerMinute/60 credits per second, clamps at capacity, and spends
// one credit per admitted request. The clock and sleeper are injectable so
// tests can drive simulated time.
type throttle struct {
	limiter *rate.Limiter
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

func newThrottle(
	requestsPerMinute int,
	now func() time.Time,
	sleep func(context.Context, time.Duration) error,
) *throttle {
	return &throttle{
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute),
		now:     now,
		sleep:   sleep,
	}
}

// wait blocks until a credit is available or ctx is canceled. Only the
// calling stage is suspended; consumers downstream are unaffected.
func (t *throttle) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := t.limiter.ReserveN(t.now(), 1)
	delay := r.DelayFrom(t.now())
	if delay <= 0 {
		return nil
	}
	if err := t.sleep(ctx, delay); err != nil {
		// Return the unspent credit so a canceled wait doesn't penalize a
		// later run sharing the limiter.
		r.CancelAt(t.now())
		return err
	}
	return nil
}

// sleepContext is the production sleeper
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
