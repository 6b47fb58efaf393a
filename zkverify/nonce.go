package zkverify

import (
	"fmt"
	"sync"

	"github.com/medledger/core/ledgererr"
)

// NonceTable tracks the last-accepted nonce per user (spec.md §4.6): the
// table starts at 0, a request's nonce must equal current+1, and success
// atomically increments it.
type NonceTable struct {
	mu    sync.Mutex
	nonce map[string]uint64
}

// NewNonceTable creates an empty nonce table.
func NewNonceTable() *NonceTable {
	return &NonceTable{nonce: make(map[string]uint64)}
}

// Check reports whether nonce is the expected next value for user, without
// mutating state.
func (t *NonceTable) Check(user string, nonce uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	current := t.nonce[user]
	if nonce != current+1 {
		return fmt.Errorf("zkverify: %w: want %d, got %d", ledgererr.ErrInvalidNonce, current+1, nonce)
	}
	return nil
}

// Advance atomically re-validates and increments the user's nonce. Call
// only after every other check for the request has passed, so a rejected
// request never mutates nonce state.
func (t *NonceTable) Advance(user string, nonce uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	current := t.nonce[user]
	if nonce != current+1 {
		return fmt.Errorf("zkverify: %w: want %d, got %d", ledgererr.ErrInvalidNonce, current+1, nonce)
	}
	t.nonce[user] = nonce
	return nil
}

// Current returns the last-accepted nonce for user (0 if never seen).
func (t *NonceTable) Current(user string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nonce[user]
}
