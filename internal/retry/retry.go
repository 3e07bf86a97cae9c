package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	// Jitter is the upper bound of the random delay added to every wait.
	Jitter time.Duration
}

var DefaultBackoff = Backoff{
	Initial: 200 * time.Millisecond,
	Max:     5 * time.Second,
	Jitter:  300 * time.Millisecond,
}

type r struct {
	rand        *rand.Rand
	curInterval time.Duration
	maxInterval time.Duration
	jitter      time.Duration
	failAfter   time.Duration
	elapsedTime time.Duration
}

func (r *r) nextInterval() time.Duration {
	var random time.Duration
	if r.jitter > 0 {
		if r.rand == nil {
			random = time.Duration(rand.Int63n(int64(r.jitter)))
		} else {
			random = time.Duration(r.rand.Int63n(int64(r.jitter)))
		}
	}

	curInterval := r.curInterval + random

	r.elapsedTime += curInterval

	r.curInterval *= 2
	if r.curInterval > r.maxInterval {
		r.curInterval = r.maxInterval
	}

	return curInterval
}

func (r *r) finished() bool {
	return r.failAfter < r.elapsedTime
}

func (r *r) wait(ctx context.Context) error {
	t := time.NewTimer(r.nextInterval())
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry calls fn until it succeeds, failAfter has elapsed or ctx is done.
// The last error from fn is returned when giving up.
func Retry[T any](ctx context.Context, b Backoff, fn func() (T, error), failAfter time.Duration) (T, error) {
	rr := r{
		curInterval: b.Initial,
		maxInterval: b.Max,
		jitter:      b.Jitter,
		failAfter:   failAfter,
	}

	for {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		if rr.finished() {
			return *new(T), err
		}

		slog.Debug("Retrying...", slog.String("error", err.Error()))

		if rr.wait(ctx) != nil {
			return *new(T), err
		}
	}
}
