package discord

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Limiter spaces out direct messages with random jitter so a burst of
// warnings does not trip Discord's spam protection for the bot account.
type Limiter struct {
	mu       sync.Mutex
	next     time.Time
	interval time.Duration
	jitter   time.Duration
}

// NewLimiter creates a limiter. An interval of 200ms with 50ms jitter
// results in gaps between 150ms and 250ms.
func NewLimiter(interval, jitter time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		jitter:   min(jitter, interval),
	}
}

// Wait blocks until the caller's slot comes up. Slots are reserved in call
// order, so concurrent callers are spread out instead of released together.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval + l.jitterOffset())
	l.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) jitterOffset() time.Duration {
	if l.jitter <= 0 {
		return 0
	}
	return rand.N(2*l.jitter) - l.jitter
}
