package zkverify

import (
	"fmt"
	"sync"

	"github.com/medledger/core/ledgererr"
)

// RateLimitConfig bounds a per-user sliding window (spec.md §4.6). Both
// fields zero disables the limit.
type RateLimitConfig struct {
	MaxRequestsPerWindow int
	WindowDurationSecs   int64
}

// Disabled reports whether this config imposes no limit.
func (c RateLimitConfig) Disabled() bool {
	return c.MaxRequestsPerWindow == 0 && c.WindowDurationSecs == 0
}

type windowState struct {
	count       int
	windowStart int64
}

// RateLimiter enforces RateLimitConfig per user, keyed by a caller-supplied
// `now` (spec.md §5: the core never reads a clock directly).
type RateLimiter struct {
	mu     sync.Mutex
	cfg    RateLimitConfig
	states map[string]windowState
}

// NewRateLimiter creates a RateLimiter under cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, states: make(map[string]windowState)}
}

// Allow checks and, on success, records one request for user at time now.
func (rl *RateLimiter) Allow(user string, now int64) error {
	if rl.cfg.Disabled() {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	st, ok := rl.states[user]
	if !ok || now-st.windowStart >= rl.cfg.WindowDurationSecs {
		st = windowState{count: 0, windowStart: now}
	}
	if st.count >= rl.cfg.MaxRequestsPerWindow {
		rl.states[user] = st
		return fmt.Errorf("zkverify: %w: user %s", ledgererr.ErrRateLimited, user)
	}
	st.count++
	rl.states[user] = st
	return nil
}
