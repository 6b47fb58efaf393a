package merklelog

import (
	"context"
	"fmt"
	"sync"

	"github.com/medledger/core/digest"
	"github.com/medledger/core/kv"
	"github.com/medledger/core/ledgererr"
	"github.com/medledger/core/log"
)

// Segment is one append-only Merkle log segment (spec.md §4.1). All leaf
// hashes for the current tree are kept in memory (mirroring the teacher's
// crypto/commitment_tree.go accumulator), with entries and checkpoints
// persisted through a kv.Store so a segment can be reopened.
type Segment struct {
	mu sync.RWMutex

	id     string
	store  kv.Store
	logger *log.Logger

	leaves      []digest.Digest
	entries     []Entry
	checkpoints []Checkpoint
	policy      RetentionPolicy

	compactedBelow int // number of leading leaves already compacted away
}

// NewSegment opens (or creates) a segment backed by store, identified by
// id, enforcing policy on compaction.
func NewSegment(id string, store kv.Store, policy RetentionPolicy, logger *log.Logger) *Segment {
	if logger == nil {
		logger = log.Default()
	}
	return &Segment{
		id:     id,
		store:  store,
		logger: logger.Module("merklelog").With("segment_id", id),
		policy: policy,
	}
}

// Size returns the current (uncompacted-adjusted) tree size: the number of
// leaves ever appended, including those since compacted away.
func (s *Segment) Size() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(s.compactedBelow + len(s.leaves))
}

// Append adds a new entry to the segment, chaining it to the previous
// entry's hash and persisting it, then returns the finalized entry
// (sequence and entry_hash populated).
func (s *Segment) Append(ctx context.Context, actor, action, target, result string, timestamp uint64) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := uint64(s.compactedBelow+len(s.leaves)) + 1
	var prev digest.Digest
	if len(s.entries) > 0 {
		prev = s.entries[len(s.entries)-1].EntryHash
	}

	e := Entry{
		Sequence:  seq,
		Timestamp: timestamp,
		Actor:     actor,
		Action:    action,
		Target:    target,
		Result:    result,
		PrevHash:  prev,
		SegmentID: s.id,
	}
	e.EntryHash = digest.HLeaf(e.CanonicalBytes())

	if err := s.persistEntry(ctx, e); err != nil {
		return Entry{}, err
	}

	s.entries = append(s.entries, e)
	s.leaves = append(s.leaves, e.EntryHash)
	s.logger.Debug("entry appended", "sequence", seq)
	return e, nil
}

func (s *Segment) persistEntry(ctx context.Context, e Entry) error {
	key := kv.NewKey("merklelog.entry", []byte(s.id), seqBytes(e.Sequence))
	return s.store.Set(ctx, kv.Persistent, key, e.CanonicalBytes())
}

func seqBytes(seq uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(seq)
		seq >>= 8
	}
	return b
}

// InclusionProofFor returns an inclusion proof for the entry at the given
// 1-based sequence, against the current tree size.
func (s *Segment) InclusionProofFor(sequence uint64) (InclusionProof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sequence <= uint64(s.compactedBelow) || sequence > uint64(s.compactedBelow)+uint64(len(s.leaves)) {
		return InclusionProof{}, ledgererr.ErrEntryNotFound
	}
	m := int(sequence) - 1 - s.compactedBelow
	size := len(s.leaves)
	p := InclusionPath(s.leaves, m, uint64(size))
	return InclusionProof{
		Sequence: sequence,
		LeafHash: s.leaves[m],
		TreeSize: uint64(s.compactedBelow + size),
		Path:     p,
	}, nil
}

// VerifyChain walks the persisted entries from lo to hi (1-based,
// inclusive) confirming each entry's prev_hash matches the previous
// entry's entry_hash and each entry_hash matches its own canonical bytes.
func (s *Segment) VerifyChain(lo, hi uint64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if lo == 0 || hi < lo || hi > uint64(s.compactedBelow)+uint64(len(s.entries)) {
		return ledgererr.ErrInvalidInput
	}
	if lo <= uint64(s.compactedBelow) {
		return ledgererr.ErrEntryNotFound
	}

	var prev digest.Digest
	startIdx := int(lo) - 1 - s.compactedBelow
	if startIdx > 0 {
		prev = s.entries[startIdx-1].EntryHash
	}
	for i := startIdx; i < int(hi)-s.compactedBelow; i++ {
		e := s.entries[i]
		if e.PrevHash != prev {
			return ledgererr.ErrHashChainBroken
		}
		if digest.HLeaf(e.CanonicalBytes()) != e.EntryHash {
			return ledgererr.ErrHashChainBroken
		}
		prev = e.EntryHash
	}
	return nil
}

// PublishRoot computes the current root and appends a new checkpoint,
// unsigned (no witness endorsements yet).
func (s *Segment) PublishRoot(publishedAt uint64) Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := uint64(s.compactedBelow + len(s.leaves))
	root := Root(s.leaves, uint64(len(s.leaves)))
	cp := Checkpoint{TreeSize: size, Root: root, PublishedAt: publishedAt}
	s.checkpoints = append(s.checkpoints, cp)
	s.logger.Info("checkpoint published", "tree_size", size)
	return cp
}

// AddWitness attaches a witness endorsement to the most recent checkpoint
// with the given tree size, verifying the signature before accepting it.
func (s *Segment) AddWitness(treeSize uint64, sig WitnessSignature, v Verifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.checkpoints {
		cp := &s.checkpoints[i]
		if cp.TreeSize != treeSize {
			continue
		}
		if v != nil && !v.Verify(sig, CheckpointBytes(cp.TreeSize, cp.Root)) {
			return ledgererr.ErrInvalidInput
		}
		for _, existing := range cp.Endorsements {
			if existing.WitnessID == sig.WitnessID {
				return nil
			}
		}
		cp.Endorsements = append(cp.Endorsements, sig)
		return nil
	}
	return ledgererr.ErrCheckpointNotFound
}

// LatestCheckpoint returns the most recently published checkpoint, if any.
func (s *Segment) LatestCheckpoint() (Checkpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return s.checkpoints[len(s.checkpoints)-1], true
}

// ConsistencyProofBetween returns a consistency proof between two
// previously published checkpoint sizes.
func (s *Segment) ConsistencyProofBetween(size1, size2 uint64) (ConsistencyProof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if size1 < uint64(s.compactedBelow) {
		return ConsistencyProof{}, fmt.Errorf("merklelog: %w: size1 below compaction floor", ledgererr.ErrInvalidInput)
	}
	return ConsistencyProofFor(s.leaves, size1-uint64(s.compactedBelow), size2-uint64(s.compactedBelow))
}
