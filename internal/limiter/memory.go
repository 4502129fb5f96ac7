package limiter

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is a process-local limiter with the same window and lockout rules as PG.
type Memory struct {
	mu      sync.Mutex
	policy  Policy
	entries map[string]*memEntry
	now     func() time.Time
}

// NewMemory constructs an in-memory limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{policy: p, entries: map[string]*memEntry{}, now: time.Now}
}

func memKey(k Key) string { return k.Username + "\x00" + string(k.Client) }

func (l *Memory) Allow(_ context.Context, k Key) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[memKey(k)]
	if !ok {
		return true, 0, nil
	}
	if now := l.now(); e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

func (l *Memory) Success(_ context.Context, k Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, memKey(k))
	return nil
}

func (l *Memory) Failure(_ context.Context, k Key) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e, ok := l.entries[memKey(k)]
	if !ok {
		e = &memEntry{}
		l.entries[memKey(k)] = e
	}
	if now.Sub(e.updatedAt) > l.policy.Window {
		e.fails = 0
	}
	e.fails++
	e.updatedAt = now
	if l.policy.MaxFails <= 0 || e.fails < l.policy.MaxFails {
		return false, 0, nil
	}
	e.blockedUntil = now.Add(l.policy.BlockFor)
	return true, l.policy.BlockFor, nil
}
