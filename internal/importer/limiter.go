package importer

// limiter.go caps how many uploads parse at the same time. A parsed matrix
// is held fully in memory until the session resolves, so unbounded parallel
// uploads can exhaust memory on large workbooks. Requests wait a bounded
// time for a slot and are then told to retry.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyUploads is returned when every parse slot stays occupied for
// the whole wait window.
var ErrTooManyUploads = errors.New("too many concurrent uploads, try again shortly")

const (
	defaultParseSlots = 4
	defaultSlotWait   = 10 * time.Second
)

// ParseLimiter is a semaphore over upload parsing. A zero limit or wait
// falls back to the defaults.
type ParseLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active int
}

// NewParseLimiter creates a limiter admitting at most limit concurrent
// parses, each waiting up to maxWait for admission.
func NewParseLimiter(limit int, maxWait time.Duration) *ParseLimiter {
	if limit <= 0 {
		limit = defaultParseSlots
	}
	if maxWait <= 0 {
		maxWait = defaultSlotWait
	}
	return &ParseLimiter{
		slots:   make(chan struct{}, limit),
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot frees up, the wait window expires or the
// context is cancelled. Every successful Acquire must be paired with a
// Release.
func (l *ParseLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyUploads
	}
}

// Release frees a slot taken by Acquire.
func (l *ParseLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.slots
}

// Active returns the number of parses currently admitted.
func (l *ParseLimiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
