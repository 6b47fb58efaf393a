package merklelog

import (
	"testing"

	"github.com/medledger/core/digest"
)

func leavesOf(n int) []digest.Digest {
	out := make([]digest.Digest, n)
	for i := 0; i < n; i++ {
		out[i] = digest.HLeaf([]byte{byte(i)})
	}
	return out
}

func TestRoot_EmptyTree(t *testing.T) {
	if got := Root(nil, 0); got != digest.Zero {
		t.Fatalf("Root(empty) = %x, want zero", got)
	}
}

func TestInclusionProof_RoundTrip(t *testing.T) {
	leaves := leavesOf(7)
	size := uint64(len(leaves))
	root := Root(leaves, size)

	for m := 0; m < len(leaves); m++ {
		p := InclusionPath(leaves, m, size)
		proof := InclusionProof{
			Sequence: uint64(m + 1),
			LeafHash: leaves[m],
			TreeSize: size,
			Path:     p,
		}
		if err := VerifyInclusion(root, proof); err != nil {
			t.Fatalf("leaf %d: VerifyInclusion failed: %v", m, err)
		}
	}
}

func TestInclusionProof_CorruptedPathRejected(t *testing.T) {
	leaves := leavesOf(7)
	size := uint64(len(leaves))
	root := Root(leaves, size)

	m := 3
	p := InclusionPath(leaves, m, size)
	if len(p) == 0 {
		t.Fatal("expected non-empty path")
	}
	p[0] = digest.HLeaf([]byte("corrupt"))

	proof := InclusionProof{Sequence: uint64(m + 1), LeafHash: leaves[m], TreeSize: size, Path: p}
	if err := VerifyInclusion(root, proof); err == nil {
		t.Fatal("expected VerifyInclusion to reject a corrupted path")
	}
}

func TestInclusionProof_TrailingHashRejected(t *testing.T) {
	leaves := leavesOf(7)
	size := uint64(len(leaves))
	root := Root(leaves, size)

	m := 2
	p := InclusionPath(leaves, m, size)
	p = append(p, digest.HLeaf([]byte("extra")))

	proof := InclusionProof{Sequence: uint64(m + 1), LeafHash: leaves[m], TreeSize: size, Path: p}
	if err := VerifyInclusion(root, proof); err == nil {
		t.Fatal("expected VerifyInclusion to reject a path with trailing unused hashes")
	}
}

// TestConsistencyProof_4to8 is the spec's concrete scenario: a tree grows
// from 4 leaves to 8, and the consistency proof must validate against both
// the old and new roots.
func TestConsistencyProof_4to8(t *testing.T) {
	leaves := leavesOf(8)
	root4 := Root(leaves, 4)
	root8 := Root(leaves, 8)

	proof, err := ConsistencyProofFor(leaves, 4, 8)
	if err != nil {
		t.Fatalf("ConsistencyProofFor failed: %v", err)
	}
	if err := VerifyConsistency(root4, root8, proof); err != nil {
		t.Fatalf("VerifyConsistency(4,8) failed: %v", err)
	}
}

func TestConsistencyProof_5to8(t *testing.T) {
	leaves := leavesOf(8)
	root5 := Root(leaves, 5)
	root8 := Root(leaves, 8)

	proof, err := ConsistencyProofFor(leaves, 5, 8)
	if err != nil {
		t.Fatalf("ConsistencyProofFor failed: %v", err)
	}
	if err := VerifyConsistency(root5, root8, proof); err != nil {
		t.Fatalf("VerifyConsistency(5,8) failed: %v", err)
	}
}

func TestConsistencyProof_AllPairs(t *testing.T) {
	leaves := leavesOf(17)
	roots := make([]digest.Digest, len(leaves)+1)
	for n := 1; n <= len(leaves); n++ {
		roots[n] = Root(leaves, uint64(n))
	}

	for s1 := 1; s1 <= len(leaves); s1++ {
		for s2 := s1; s2 <= len(leaves); s2++ {
			proof, err := ConsistencyProofFor(leaves, uint64(s1), uint64(s2))
			if err != nil {
				t.Fatalf("ConsistencyProofFor(%d,%d) failed: %v", s1, s2, err)
			}
			if err := VerifyConsistency(roots[s1], roots[s2], proof); err != nil {
				t.Fatalf("VerifyConsistency(%d,%d) failed: %v", s1, s2, err)
			}
		}
	}
}

func TestConsistencyProof_CorruptedHashRejected(t *testing.T) {
	leaves := leavesOf(8)
	root4 := Root(leaves, 4)
	root8 := Root(leaves, 8)

	proof, err := ConsistencyProofFor(leaves, 4, 8)
	if err != nil {
		t.Fatalf("ConsistencyProofFor failed: %v", err)
	}
	if len(proof.Hashes) == 0 {
		t.Fatal("expected a non-empty proof")
	}
	proof.Hashes[0] = digest.HLeaf([]byte("corrupt"))

	if err := VerifyConsistency(root4, root8, proof); err == nil {
		t.Fatal("expected VerifyConsistency to reject a corrupted hash")
	}
}

func TestConsistencyProof_EmptyOldTree(t *testing.T) {
	leaves := leavesOf(5)
	root5 := Root(leaves, 5)

	proof, err := ConsistencyProofFor(leaves, 0, 5)
	if err != nil {
		t.Fatalf("ConsistencyProofFor(0,5) failed: %v", err)
	}
	if len(proof.Hashes) != 0 {
		t.Fatalf("expected empty proof for size1=0, got %d hashes", len(proof.Hashes))
	}
	if err := VerifyConsistency(digest.Zero, root5, proof); err != nil {
		t.Fatalf("VerifyConsistency(0,5) failed: %v", err)
	}
}

func TestConsistencyProof_SameSize(t *testing.T) {
	leaves := leavesOf(6)
	root6 := Root(leaves, 6)

	proof, err := ConsistencyProofFor(leaves, 6, 6)
	if err != nil {
		t.Fatalf("ConsistencyProofFor(6,6) failed: %v", err)
	}
	if err := VerifyConsistency(root6, root6, proof); err != nil {
		t.Fatalf("VerifyConsistency(6,6) failed: %v", err)
	}
}

func TestConsistencyProof_RejectsSize1GreaterThanSize2(t *testing.T) {
	leaves := leavesOf(4)
	if _, err := ConsistencyProofFor(leaves, 5, 4); err == nil {
		t.Fatal("expected error when size1 > size2")
	}
}
