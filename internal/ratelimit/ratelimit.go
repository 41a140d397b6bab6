package ratelimit

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

const window = time.Minute

// Limiter throttles outbound calls to a single external source. The budget
// is a trailing-minute allowance: up to callsPerMinute calls may burst, after
// which callers block until the window slides.
type Limiter struct {
	limiter *rate.Limiter
	sleep   func(time.Duration)
	rng     *rand.Rand
}

// New creates a limiter allowing callsPerMinute calls over the trailing minute.
func New(callsPerMinute int) *Limiter {
	if callsPerMinute <= 0 {
		callsPerMinute = 10
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(window/time.Duration(callsPerMinute)), callsPerMinute),
		sleep:   time.Sleep,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks until the budget allows another call. The only error it can
// return is a context cancellation; the limiter itself never fails.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Jitter sleeps a uniformly random 100-500ms to desynchronize call bursts.
func (l *Limiter) Jitter() {
	l.sleep(time.Duration(100+l.rng.Intn(400)) * time.Millisecond)
}

// SetSleep replaces the sleep function, used by tests.
func (l *Limiter) SetSleep(sleep func(time.Duration)) {
	l.sleep = sleep
}

// AllowAt reports whether a call at the given instant would proceed without
// sleeping. Exposed for deterministic tests.
func (l *Limiter) AllowAt(t time.Time) bool {
	return l.limiter.AllowN(t, 1)
}
