package importer

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseLimiter_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewParseLimiter(2, 50*time.Millisecond)

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire error = %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire error = %v", err)
	}
	if got := l.Active(); got != 2 {
		t.Errorf("Active = %d, want 2", got)
	}

	// Both slots occupied; the third waits out the window and is rejected.
	if err := l.Acquire(ctx); !errors.Is(err, ErrTooManyUploads) {
		t.Errorf("third Acquire error = %v, want ErrTooManyUploads", err)
	}

	l.Release()
	if err := l.Acquire(ctx); err != nil {
		t.Errorf("Acquire after Release error = %v", err)
	}
}

func TestParseLimiter_ContextCancelled(t *testing.T) {
	l := NewParseLimiter(1, time.Minute)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire error = %v, want context.Canceled", err)
	}
}

func TestParseLimiter_ZeroDefaults(t *testing.T) {
	l := NewParseLimiter(0, 0)
	if got := cap(l.slots); got != defaultParseSlots {
		t.Errorf("slot cap = %d, want %d", got, defaultParseSlots)
	}
	if l.maxWait != defaultSlotWait {
		t.Errorf("maxWait = %s, want %s", l.maxWait, defaultSlotWait)
	}
}
