package merklelog

import (
	"github.com/medledger/core/digest"
	"github.com/medledger/core/ledgererr"
)

// Compact removes leaves below keepFrom (1-based, exclusive lower bound:
// leaves with sequence < keepFrom are dropped) while leaving the tree's
// root recomputable by anyone holding the receipt and the surviving
// leaves, per spec.md §4.1's verifiable-compaction requirement.
//
// Compaction is refused if:
//   - MinRetentionSecs is non-zero and an entry being dropped has
//     Timestamp + MinRetentionSecs > compactedAt
//     (ErrRetentionPolicyViolation);
//   - RequiresWitnessForDeletion is set and the latest checkpoint at or
//     above the old tree size lacks any witness endorsement;
//   - sensitive is true and fewer than MinWitnessesForSensitive
//     endorsements are present.
func (s *Segment) Compact(keepFrom uint64, sensitive bool, compactedAt uint64) (CompactionReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldSize := uint64(s.compactedBelow + len(s.leaves))
	if keepFrom <= uint64(s.compactedBelow) || keepFrom > oldSize+1 {
		return CompactionReceipt{}, ledgererr.ErrInvalidInput
	}

	if s.policy.MinRetentionSecs > 0 {
		for _, e := range s.entries[:int(keepFrom)-1-s.compactedBelow] {
			if e.Timestamp+s.policy.MinRetentionSecs > compactedAt {
				return CompactionReceipt{}, ledgererr.ErrRetentionPolicyViolation
			}
		}
	}

	if s.policy.RequiresWitnessForDeletion || sensitive {
		cp, ok := s.latestCheckpointLocked()
		if !ok || cp.TreeSize < oldSize {
			return CompactionReceipt{}, ledgererr.ErrInsufficientWitnesses
		}
		minWitnesses := 1
		if sensitive && s.policy.MinWitnessesForSensitive > minWitnesses {
			minWitnesses = s.policy.MinWitnessesForSensitive
		}
		if len(cp.Endorsements) < minWitnesses {
			return CompactionReceipt{}, ledgererr.ErrInsufficientWitnesses
		}
	}

	oldRoot := Root(s.leaves, uint64(len(s.leaves)))

	dropCount := int(keepFrom) - 1 - s.compactedBelow
	deleted := make([]digest.Digest, dropCount)
	copy(deleted, s.leaves[:dropCount])

	s.leaves = append([]digest.Digest(nil), s.leaves[dropCount:]...)
	s.entries = append([]Entry(nil), s.entries[dropCount:]...)
	s.compactedBelow += dropCount

	newRoot := Root(s.leaves, uint64(len(s.leaves)))
	newSize := uint64(len(s.leaves))

	receipt := CompactionReceipt{
		OldRoot:       oldRoot,
		OldSize:       oldSize,
		NewRoot:       newRoot,
		NewSize:       newSize,
		DeletedHashes: deleted,
		CompactedAt:   compactedAt,
	}
	s.logger.Info("segment compacted", "old_size", oldSize, "new_size", newSize, "dropped", dropCount)
	return receipt, nil
}

func (s *Segment) latestCheckpointLocked() (Checkpoint, bool) {
	if len(s.checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return s.checkpoints[len(s.checkpoints)-1], true
}
