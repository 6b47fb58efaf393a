// Package kv defines the abstract key-value storage interface the ledger
// core consumes (spec.md §6): a two-tier (persistent, instance) store with
// get/set/has/remove and a TTL-extension hint, keyed by composite
// (namespace_tag, ...) tuples whose ordering must be preserved for range
// scans over sequence-keyed tables.
//
// Adapted and materially rewritten from the teacher's
// core/rawdb/key_value_store.go (KVStore interface, MemoryKVStore,
// WriteBatch/iterator shape) and core/rawdb/schema.go (prefix-tuple keying),
// generalized from a single-tier blockchain database to the two-tier model
// spec.md requires and from flat byte-string prefixes to an explicit Key
// tuple type that preserves component ordering.
package kv

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"
)

// Tier selects which storage tier an operation addresses. spec.md §6
// requires exactly two: a durable, cross-process tier and a
// process-local instance tier (e.g. the policy evaluation cache).
type Tier int

const (
	Persistent Tier = iota
	Instance
)

func (t Tier) String() string {
	if t == Instance {
		return "instance"
	}
	return "persistent"
}

// Key is a composite (namespace_tag, component...) tuple. Encode preserves
// component ordering and length-prefixes each component so that distinct
// tuples never collide on their concatenated bytes (e.g. ("ab", "c") must
// not collide with ("a", "bc")).
type Key struct {
	Namespace string
	Parts     [][]byte
}

// NewKey builds a Key from a namespace tag and zero or more parts.
func NewKey(namespace string, parts ...[]byte) Key {
	return Key{Namespace: namespace, Parts: parts}
}

// Encode renders the key to a byte string safe for use as a map/B-tree key,
// preserving tuple ordering: len-prefixed namespace followed by
// len-prefixed parts.
func (k Key) Encode() []byte {
	var buf bytes.Buffer
	writeLenPrefixed(&buf, []byte(k.Namespace))
	for _, p := range k.Parts {
		writeLenPrefixed(&buf, p)
	}
	return buf.Bytes()
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var lenBytes [4]byte
	n := len(b)
	lenBytes[0] = byte(n >> 24)
	lenBytes[1] = byte(n >> 16)
	lenBytes[2] = byte(n >> 8)
	lenBytes[3] = byte(n)
	buf.Write(lenBytes[:])
	buf.Write(b)
}

// Store is the abstract two-tier key-value interface the ledger core
// consumes. All methods take a context since implementations may be
// network-backed; the core itself never blocks on it beyond a single call
// (spec.md §5: no implicit cancellation, no suspension mid-operation).
type Store interface {
	Get(ctx context.Context, tier Tier, key Key) ([]byte, bool, error)
	Set(ctx context.Context, tier Tier, key Key, value []byte) error
	Has(ctx context.Context, tier Tier, key Key) (bool, error)
	Remove(ctx context.Context, tier Tier, key Key) error
	// ExtendTTL is a hint: implementations without TTL semantics may no-op.
	// When the key's remaining TTL is below threshold, extend it to extendTo.
	ExtendTTL(ctx context.Context, tier Tier, key Key, threshold, extendTo time.Duration) error
	// Scan iterates keys with the given namespace and part prefix in
	// ascending encoded-key order, preserving tuple ordering.
	Scan(ctx context.Context, tier Tier, namespace string, prefixParts [][]byte) (Iterator, error)
}

// Iterator walks key-value pairs in ascending encoded-key order.
type Iterator interface {
	Next() bool
	Key() Key
	Value() []byte
	Release()
}

type memEntry struct {
	key   Key
	value []byte
	ttl   time.Time // zero means no TTL
}

// Memory is an in-memory, two-tier Store implementation safe for concurrent
// use. It is the reference implementation used by tests and the cmd/ledgerctl
// demo harness; production deployments supply their own Store.
type Memory struct {
	mu    sync.RWMutex
	data  [2]map[string]*memEntry
}

// NewMemory creates an empty in-memory two-tier store.
func NewMemory() *Memory {
	return &Memory{
		data: [2]map[string]*memEntry{
			make(map[string]*memEntry),
			make(map[string]*memEntry),
		},
	}
}

func (m *Memory) Get(_ context.Context, tier Tier, key Key) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[tier][string(key.Encode())]
	if !ok {
		return nil, false, nil
	}
	if !e.ttl.IsZero() && time.Now().After(e.ttl) {
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, tier Tier, key Key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[tier][string(key.Encode())] = &memEntry{key: key, value: v}
	return nil
}

func (m *Memory) Has(_ context.Context, tier Tier, key Key) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[tier][string(key.Encode())]
	if !ok {
		return false, nil
	}
	if !e.ttl.IsZero() && time.Now().After(e.ttl) {
		return false, nil
	}
	return true, nil
}

func (m *Memory) Remove(_ context.Context, tier Tier, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[tier], string(key.Encode()))
	return nil
}

func (m *Memory) ExtendTTL(_ context.Context, tier Tier, key Key, threshold, extendTo time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[tier][string(key.Encode())]
	if !ok {
		return nil
	}
	if e.ttl.IsZero() {
		return nil
	}
	if time.Until(e.ttl) < threshold {
		e.ttl = time.Now().Add(extendTo)
	}
	return nil
}

func (m *Memory) Scan(_ context.Context, tier Tier, namespace string, prefixParts [][]byte) (Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := NewKey(namespace, prefixParts...).Encode()
	var matched []*memEntry
	for _, e := range m.data[tier] {
		if bytes.HasPrefix(e.key.Encode(), prefix) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return bytes.Compare(matched[i].key.Encode(), matched[j].key.Encode()) < 0
	})
	return &memIterator{entries: matched, idx: -1}, nil
}

type memIterator struct {
	entries []*memEntry
	idx     int
}

func (it *memIterator) Next() bool {
	it.idx++
	return it.idx < len(it.entries)
}

func (it *memIterator) Key() Key {
	return it.entries[it.idx].key
}

func (it *memIterator) Value() []byte {
	out := make([]byte, len(it.entries[it.idx].value))
	copy(out, it.entries[it.idx].value)
	return out
}

func (it *memIterator) Release() {
	it.entries = nil
}
