package worker

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/ezbench/ezbench/internal/config"
)

// pacer blocks until the next pass may start.
type pacer func(ctx context.Context) error

func unpaced(context.Context) error { return nil }

// newPacer returns a pacer admitting perSecond passes. Uniform pacing uses
// a token bucket with no burst; poisson pacing sleeps for exponentially
// distributed gaps with the same mean.
func newPacer(model config.ArrivalModel, perSecond int, seed int64) pacer {
	if perSecond <= 0 {
		return unpaced
	}
	if model != config.ArrivalModelPoisson {
		return rate.NewLimiter(rate.Limit(perSecond), 1).Wait
	}

	src := rand.New(rand.NewSource(seed))
	mean := float64(time.Second) / float64(perSecond)
	return func(ctx context.Context) error {
		return sleep(ctx, poissonGap(src.ExpFloat64(), mean))
	}
}

// poissonGap scales a unit exponential sample, capped at 20 mean gaps.
func poissonGap(sample, mean float64) time.Duration {
	if sample > 20 {
		sample = 20
	}
	return time.Duration(sample * mean)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
