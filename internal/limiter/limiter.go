// Package limiter defines interfaces and implementations for login rate limiting.
package limiter

import (
	"context"
	"crypto/sha256"
	"net"
	"time"
)

// Key identifies the subject of a login attempt.
type Key struct {
	Username string
	Client   []byte // hashed client address, see HashClient
}

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, k Key) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, k Key) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, k Key) (bool, time.Duration, error)
}

// Policy configures the sliding window and lockout.
type Policy struct {
	Window   time.Duration // failures older than this no longer count
	MaxFails int           // failures within Window that trigger a block; <= 0 disables limiting
	BlockFor time.Duration
}

// Enabled reports whether the policy limits anything.
func (p Policy) Enabled() bool { return p.MaxFails > 0 }

// HashClient returns a stable hash of the client host so raw addresses are not stored.
// The port is dropped: it changes on every connection.
func HashClient(remote string) []byte {
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	sum := sha256.Sum256([]byte(host))
	return sum[:]
}

// Noop never blocks.
type Noop struct{}

func (Noop) Allow(context.Context, Key) (bool, time.Duration, error)   { return true, 0, nil }
func (Noop) Success(context.Context, Key) error                        { return nil }
func (Noop) Failure(context.Context, Key) (bool, time.Duration, error) { return false, 0, nil }
