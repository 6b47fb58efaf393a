package occ

import (
	"sync"
	"sync/atomic"

	"github.com/medledger/core/digest"
	"github.com/medledger/core/ledgererr"
)

// ConflictType classifies the kind of conflict between a proposed update
// and the record's current state (spec.md §4.4).
type ConflictType uint8

const (
	// ConflictStaleClock means the caller's base clock is dominated by the
	// record's current clock (a pure lost-update: caller read too early).
	ConflictStaleClock ConflictType = iota
	// ConflictConcurrentField means two writers updated overlapping fields
	// from a common base, neither one dominating the other.
	ConflictConcurrentField
	// ConflictConcurrentDisjoint means two writers updated disjoint fields
	// concurrently: mergeable without a real conflict.
	ConflictConcurrentDisjoint
)

func (ct ConflictType) String() string {
	switch ct {
	case ConflictStaleClock:
		return "stale-clock"
	case ConflictConcurrentField:
		return "concurrent-field"
	case ConflictConcurrentDisjoint:
		return "concurrent-disjoint"
	default:
		return "unknown"
	}
}

// ResolutionStrategy determines how a detected field-level conflict is
// handled (spec.md §4.4).
type ResolutionStrategy uint8

const (
	// LastWriterWins takes the incoming update's field value unconditionally.
	LastWriterWins ResolutionStrategy = iota
	// Merge takes the incoming value for fields it touches and keeps the
	// existing value for every other field (valid only for
	// ConflictConcurrentDisjoint; concurrent overlapping fields still
	// require ManualReview).
	Merge
	// ManualReview refuses to auto-resolve and enqueues the conflict.
	ManualReview
)

func (rs ResolutionStrategy) String() string {
	switch rs {
	case LastWriterWins:
		return "last-writer-wins"
	case Merge:
		return "merge"
	default:
		return "manual-review"
	}
}

// Conflict records a single detected conflict awaiting resolution.
type Conflict struct {
	RecordID      string
	Type          ConflictType
	IncomingClock Clock
	CurrentClock  Clock
	Fields        []string // fields touched by the incoming update
}

// Metrics collects conflict-detection statistics with atomic counters
// (grounded on the teacher's bal.ConflictMetrics).
type Metrics struct {
	TotalUpdates     atomic.Uint64
	ConflictsFound   atomic.Uint64
	StaleClockCount  atomic.Uint64
	ConcurrentField  atomic.Uint64
	Disjoint         atomic.Uint64
	AutoResolved     atomic.Uint64
	ManualReviewed   atomic.Uint64
	QueueEvictions   atomic.Uint64
}

// Snapshot is an immutable copy of Metrics.
type Snapshot struct {
	TotalUpdates    uint64
	ConflictsFound  uint64
	StaleClockCount uint64
	ConcurrentField uint64
	Disjoint        uint64
	AutoResolved    uint64
	ManualReviewed  uint64
	QueueEvictions  uint64
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalUpdates:    m.TotalUpdates.Load(),
		ConflictsFound:  m.ConflictsFound.Load(),
		StaleClockCount: m.StaleClockCount.Load(),
		ConcurrentField: m.ConcurrentField.Load(),
		Disjoint:        m.Disjoint.Load(),
		AutoResolved:    m.AutoResolved.Load(),
		ManualReviewed:  m.ManualReviewed.Load(),
		QueueEvictions:  m.QueueEvictions.Load(),
	}
}

// Record is the current OCC-tracked state of a record: its clock and a
// per-field content hash used to detect overlapping writes without
// storing full field values here.
type Record struct {
	Clock          Clock
	FieldSnapshots map[string]digest.Digest // field name -> H(field value)
}

// Store tracks OCC state for a set of records and applies the
// compare-and-swap update protocol (spec.md §4.4).
type Store struct {
	mu       sync.Mutex
	records  map[string]Record
	strategy ResolutionStrategy
	queue    []Conflict
	maxQueue int
	metrics  Metrics
}

// NewStore creates an OCC store using strategy to resolve field-level
// conflicts, with a conflict queue bounded to maxQueue entries (oldest
// evicted first once full).
func NewStore(strategy ResolutionStrategy, maxQueue int) *Store {
	if maxQueue <= 0 {
		maxQueue = 1
	}
	return &Store{
		records:  make(map[string]Record),
		strategy: strategy,
		maxQueue: maxQueue,
	}
}

// Metrics returns the store's conflict metrics.
func (s *Store) Metrics() *Metrics {
	return &s.metrics
}

// Seed installs an initial Record for recordID without going through the
// CAS protocol, used to bootstrap a record that has no prior writer.
func (s *Store) Seed(recordID string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordID] = rec
}

// Get returns the current OCC record for recordID.
func (s *Store) Get(recordID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordID]
	return r, ok
}

// Update applies a compare-and-swap write: baseClock is the clock the
// caller last observed, writerID identifies the writer, and fields is the
// set of field-name -> new content hash the update touches. On success it
// returns the new merged clock. If baseClock is not the current clock, the
// writer's tentative clock (baseClock incremented for writerID) is ordered
// against the current clock. On a real conflict it resolves according to
// the store's strategy, returning ErrPolicyViolation whenever the strategy
// queues the conflict instead of resolving it: always under ManualReview,
// and under Merge for stale and overlapping concurrent writes (disjoint
// concurrent writes are merged before the strategy is consulted).
func (s *Store) Update(recordID, writerID string, baseClock Clock, fields map[string]digest.Digest) (Clock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.TotalUpdates.Add(1)

	current, exists := s.records[recordID]
	if !exists {
		newClock := baseClock.Increment(writerID)
		s.records[recordID] = Record{Clock: newClock, FieldSnapshots: fields}
		return newClock, nil
	}

	order := Equal
	if baseClock.Compare(current.Clock) != Equal {
		order = baseClock.Increment(writerID).Compare(current.Clock)
		if order == Equal {
			order = Before
		}
	}
	switch order {
	case Equal:
		// Caller read exactly the current state: the normal CAS success
		// path.
		newClock := current.Clock.Increment(writerID)
		merged := mergeFields(current.FieldSnapshots, fields)
		s.records[recordID] = Record{Clock: newClock, FieldSnapshots: merged}
		return newClock, nil
	case Before:
		// Caller's tentative clock is not ahead of current: a stale write.
		s.metrics.ConflictsFound.Add(1)
		s.metrics.StaleClockCount.Add(1)
		return s.resolveLocked(recordID, ConflictStaleClock, current, baseClock, fields, writerID)
	case After:
		// Current is strictly behind the caller's tentative clock: the
		// caller has seen everything already applied, a clean fast-forward.
		newClock := baseClock.Increment(writerID)
		s.records[recordID] = Record{Clock: newClock, FieldSnapshots: fields}
		return newClock, nil
	default: // Concurrent
		overlap := overlappingFields(current.FieldSnapshots, fields)
		if len(overlap) == 0 {
			s.metrics.ConflictsFound.Add(1)
			s.metrics.Disjoint.Add(1)
			newClock := current.Clock.Merge(baseClock).Increment(writerID)
			merged := mergeFields(current.FieldSnapshots, fields)
			s.records[recordID] = Record{Clock: newClock, FieldSnapshots: merged}
			s.metrics.AutoResolved.Add(1)
			return newClock, nil
		}
		s.metrics.ConflictsFound.Add(1)
		s.metrics.ConcurrentField.Add(1)
		return s.resolveLocked(recordID, ConflictConcurrentField, current, baseClock, fields, writerID)
	}
}

// resolveLocked applies the store's configured strategy to a detected
// conflict. Called with s.mu held.
func (s *Store) resolveLocked(recordID string, ct ConflictType, current Record, incoming Clock, fields map[string]digest.Digest, writerID string) (Clock, error) {
	switch s.strategy {
	case LastWriterWins:
		newClock := current.Clock.Merge(incoming).Increment(writerID)
		s.records[recordID] = Record{Clock: newClock, FieldSnapshots: mergeFields(current.FieldSnapshots, fields)}
		s.metrics.AutoResolved.Add(1)
		return newClock, nil
	case Merge:
		if ct == ConflictConcurrentDisjoint {
			newClock := current.Clock.Merge(incoming).Increment(writerID)
			s.records[recordID] = Record{Clock: newClock, FieldSnapshots: mergeFields(current.FieldSnapshots, fields)}
			s.metrics.AutoResolved.Add(1)
			return newClock, nil
		}
		s.enqueueLocked(Conflict{RecordID: recordID, Type: ct, IncomingClock: incoming, CurrentClock: current.Clock, Fields: fieldNames(fields)})
		s.metrics.ManualReviewed.Add(1)
		return Clock{}, ledgererr.ErrPolicyViolation
	default: // ManualReview
		s.enqueueLocked(Conflict{RecordID: recordID, Type: ct, IncomingClock: incoming, CurrentClock: current.Clock, Fields: fieldNames(fields)})
		s.metrics.ManualReviewed.Add(1)
		return Clock{}, ledgererr.ErrPolicyViolation
	}
}

func (s *Store) enqueueLocked(c Conflict) {
	if len(s.queue) >= s.maxQueue {
		s.queue = s.queue[1:]
		s.metrics.QueueEvictions.Add(1)
	}
	s.queue = append(s.queue, c)
}

// PendingConflicts returns a copy of the current conflict queue, oldest
// first.
func (s *Store) PendingConflicts() []Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Conflict, len(s.queue))
	copy(out, s.queue)
	return out
}

// ResolveManually removes and returns the oldest queued conflict for
// recordID, for an operator to adjudicate out of band.
func (s *Store) ResolveManually(recordID string) (Conflict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.queue {
		if c.RecordID == recordID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return c, true
		}
	}
	return Conflict{}, false
}

func overlappingFields(a, b map[string]digest.Digest) []string {
	var out []string
	for k := range b {
		if _, ok := a[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func mergeFields(a, b map[string]digest.Digest) map[string]digest.Digest {
	out := make(map[string]digest.Digest, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func fieldNames(fields map[string]digest.Digest) []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	return out
}
