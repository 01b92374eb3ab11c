// Package ratelimit implements the sliding-window counter that gates audit
// log emission per peer.
package ratelimit

import (
	"sync"
	"time"
)

const window = 60 * time.Second

type peerState struct {
	windowStart time.Time
	logged      int
	suppressed  int
}

// Limiter is a per-peer sliding-60s-window counter. The zero value is not
// usable; construct with New.
type Limiter struct {
	mu    sync.Mutex
	max   int
	peers map[string]*peerState
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for deterministic tests.
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs a Limiter allowing at most max logged events per 60s
// window per peer.
func New(max int, opts ...Option) *Limiter {
	l := &Limiter{
		max:   max,
		peers: make(map[string]*peerState),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ShouldLog reports whether an audit line for peerID should be emitted
// right now. The window resets the first time it is observed to have
// expired; once the window's quota is exhausted, further calls increment
// the suppressed counter and return false.
func (l *Limiter) ShouldLog(peerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	p := l.peers[peerID]
	if p == nil || now.Sub(p.windowStart) >= window {
		p = &peerState{windowStart: now}
		l.peers[peerID] = p
	}

	if p.logged < l.max {
		p.logged++
		return true
	}
	p.suppressed++
	return false
}

// GetSuppressed returns the current window's suppressed count for peerID,
// or 0 if the peer is unknown or its window has expired. Callers use this
// to emit a one-time "rate limit exceeded" notice exactly when suppressed
// first transitions from 0 to 1.
func (l *Limiter) GetSuppressed(peerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.peers[peerID]
	if p == nil || l.now().Sub(p.windowStart) >= window {
		return 0
	}
	return p.suppressed
}

// Sweep evicts any peer whose window started more than maxAge ago. It is a
// memory-bound safety valve the host may call on a ticker; the limiter
// never evicts on its own, per the long-running-deployment design note.
func (l *Limiter) Sweep(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for peerID, p := range l.peers {
		if now.Sub(p.windowStart) > maxAge {
			delete(l.peers, peerID)
		}
	}
}
