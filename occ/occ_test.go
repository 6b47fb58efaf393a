package occ

import (
	"testing"

	"github.com/medledger/core/digest"
)

func h(s string) digest.Digest { return digest.H([]byte(s)) }

func TestClock_Compare(t *testing.T) {
	a := Clock{"w1": 2, "w2": 1}
	b := Clock{"w1": 2, "w2": 1}
	if a.Compare(b) != Equal {
		t.Fatalf("expected Equal, got %v", a.Compare(b))
	}

	c := a.Increment("w1")
	if a.Compare(c) != Before {
		t.Fatalf("expected Before, got %v", a.Compare(c))
	}
	if c.Compare(a) != After {
		t.Fatalf("expected After, got %v", c.Compare(a))
	}

	d := Clock{"w1": 3, "w2": 0}
	if a.Compare(d) != Concurrent {
		t.Fatalf("expected Concurrent, got %v", a.Compare(d))
	}
}

func TestStore_FirstWriteSeedsRecord(t *testing.T) {
	s := NewStore(ManualReview, 8)
	clock, err := s.Update("rec-1", "w1", Clock{}, map[string]digest.Digest{"name": h("alice")})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if clock["w1"] != 1 {
		t.Fatalf("expected w1 clock 1, got %v", clock)
	}
}

func TestStore_CleanSequentialUpdates(t *testing.T) {
	s := NewStore(ManualReview, 8)
	c1, err := s.Update("rec-1", "w1", Clock{}, map[string]digest.Digest{"name": h("alice")})
	if err != nil {
		t.Fatalf("first Update failed: %v", err)
	}
	c2, err := s.Update("rec-1", "w1", c1, map[string]digest.Digest{"age": h("30")})
	if err != nil {
		t.Fatalf("second Update failed: %v", err)
	}
	if c2["w1"] != 2 {
		t.Fatalf("expected w1 clock 2, got %v", c2)
	}
}

// TestStore_ManualReviewConflict is the spec's concrete scenario: two
// writers concurrently update the same field from a shared base clock
// under the ManualReview strategy, and the conflict is queued rather than
// silently resolved.
func TestStore_ManualReviewConflict(t *testing.T) {
	s := NewStore(ManualReview, 8)
	base, err := s.Update("rec-1", "w1", Clock{}, map[string]digest.Digest{"diagnosis": h("A")})
	if err != nil {
		t.Fatalf("seed Update failed: %v", err)
	}

	// w1 and w2 both branch from `base` and touch the same field.
	if _, err := s.Update("rec-1", "w1", base, map[string]digest.Digest{"diagnosis": h("B")}); err != nil {
		t.Fatalf("w1 update failed: %v", err)
	}
	_, err = s.Update("rec-1", "w2", base, map[string]digest.Digest{"diagnosis": h("C")})
	if err == nil {
		t.Fatal("expected a conflict error for concurrent overlapping field writes")
	}

	pending := s.PendingConflicts()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending conflict, got %d", len(pending))
	}
	if pending[0].Type != ConflictConcurrentField {
		t.Fatalf("expected ConflictConcurrentField, got %v", pending[0].Type)
	}

	snap := s.Metrics().Snapshot()
	if snap.ManualReviewed != 1 {
		t.Fatalf("expected 1 manual review, got %d", snap.ManualReviewed)
	}
}

func TestStore_LastWriterWinsAutoResolves(t *testing.T) {
	s := NewStore(LastWriterWins, 8)
	base, err := s.Update("rec-1", "w1", Clock{}, map[string]digest.Digest{"diagnosis": h("A")})
	if err != nil {
		t.Fatalf("seed Update failed: %v", err)
	}
	if _, err := s.Update("rec-1", "w1", base, map[string]digest.Digest{"diagnosis": h("B")}); err != nil {
		t.Fatalf("w1 update failed: %v", err)
	}
	if _, err := s.Update("rec-1", "w2", base, map[string]digest.Digest{"diagnosis": h("C")}); err != nil {
		t.Fatalf("expected LastWriterWins to auto-resolve, got error: %v", err)
	}

	rec, ok := s.Get("rec-1")
	if !ok {
		t.Fatal("expected record to exist")
	}
	if rec.FieldSnapshots["diagnosis"] != h("C") {
		t.Fatal("expected last writer's value to win")
	}
}

func TestStore_DisjointConcurrentAutoMerges(t *testing.T) {
	s := NewStore(ManualReview, 8)
	base, err := s.Update("rec-1", "w1", Clock{}, map[string]digest.Digest{"name": h("alice")})
	if err != nil {
		t.Fatalf("seed Update failed: %v", err)
	}
	if _, err := s.Update("rec-1", "w1", base, map[string]digest.Digest{"age": h("30")}); err != nil {
		t.Fatalf("w1 update failed: %v", err)
	}
	if _, err := s.Update("rec-1", "w2", base, map[string]digest.Digest{"email": h("a@example.com")}); err != nil {
		t.Fatalf("expected disjoint concurrent update to auto-merge, got error: %v", err)
	}

	rec, _ := s.Get("rec-1")
	if len(rec.FieldSnapshots) != 3 {
		t.Fatalf("expected all 3 fields to be merged, got %d", len(rec.FieldSnapshots))
	}
}

func TestStore_ConflictQueueEviction(t *testing.T) {
	s := NewStore(ManualReview, 2)
	base, err := s.Update("rec-1", "w1", Clock{}, map[string]digest.Digest{"diagnosis": h("A")})
	if err != nil {
		t.Fatalf("seed Update failed: %v", err)
	}
	if _, err := s.Update("rec-1", "w1", base, map[string]digest.Digest{"diagnosis": h("B")}); err != nil {
		t.Fatalf("w1 update failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		_, _ = s.Update("rec-1", "wX", base, map[string]digest.Digest{"diagnosis": h("X")})
	}
	if len(s.PendingConflicts()) != 2 {
		t.Fatalf("expected queue bounded to 2, got %d", len(s.PendingConflicts()))
	}
	if s.Metrics().Snapshot().QueueEvictions != 1 {
		t.Fatalf("expected 1 eviction, got %d", s.Metrics().Snapshot().QueueEvictions)
	}
}
