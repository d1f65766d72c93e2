// Package slotlock serialises work on a single booking slot.
package slotlock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrLockNotAcquired = errors.New("slot lock not acquired")

// Locker is used by the appointment service to guard critical sections per slot.
// The key identifies the slot; fn runs while the lock is held.
type Locker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Local is an in-process Locker. It only serialises callers inside one
// process, so it fits single-instance deployments and tests.
type Local struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  chan struct{}
	refs int
}

// NewLocal returns a Local locker. Callers give up with ErrLockNotAcquired
// after wait; a zero wait blocks until the context is done.
func NewLocal(wait time.Duration) *Local {
	return &Local{
		wait:  wait,
		slots: make(map[string]*slot),
	}
}

func (l *Local) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	s := l.acquireRef(key)
	defer l.releaseRef(key)

	var timeout <-chan time.Time
	if l.wait > 0 {
		t := time.NewTimer(l.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return ErrLockNotAcquired
	}
	defer func() { <-s.sem }()

	return fn(ctx)
}

func (l *Local) acquireRef(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) releaseRef(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports how many slot entries are live; used by tests.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
