package merklelog

import (
	"github.com/medledger/core/digest"
	"github.com/medledger/core/ledgererr"
)

// InclusionProof demonstrates that a leaf at the given sequence is a member
// of the tree with the given size (spec.md §4.1).
type InclusionProof struct {
	Sequence uint64
	LeafHash digest.Digest
	TreeSize uint64
	Path     []digest.Digest
}

// ConsistencyProof demonstrates that the tree at Size2 is an append-only
// extension of the tree at Size1 (spec.md §4.1).
type ConsistencyProof struct {
	Size1  uint64
	Size2  uint64
	Hashes []digest.Digest
}

// mth computes the RFC 6962 Merkle Tree Hash over leaves[lo:hi] (already
// leaf-hashed). A lone right-hand subtree at any level is promoted
// unchanged, per spec.md §4.1.
func mth(leaves []digest.Digest, lo, hi int) digest.Digest {
	n := hi - lo
	if n == 0 {
		return digest.Zero
	}
	if n == 1 {
		return leaves[lo]
	}
	k := largestPowerOfTwoLessThan(n)
	left := mth(leaves, lo, lo+k)
	right := mth(leaves, lo+k, hi)
	return digest.HNode(left, right)
}

// largestPowerOfTwoLessThan returns the largest power of two strictly less
// than n (n > 1).
func largestPowerOfTwoLessThan(n int) int {
	k := 1
	for k*2 < n {
		k *= 2
	}
	return k
}

// Root returns the MTH of leaves[0:size].
func Root(leaves []digest.Digest, size uint64) digest.Digest {
	if size == 0 {
		return digest.Zero
	}
	return mth(leaves, 0, int(size))
}

// path computes the RFC 6962 audit path PATH(m, D[lo:hi]) for leaf position
// m (0-based, relative to lo). Entries are ordered leaf-to-root: the
// deepest sibling is first, the top-level sibling last.
func path(leaves []digest.Digest, m, lo, hi int) []digest.Digest {
	n := hi - lo
	if n <= 1 {
		return nil
	}
	k := largestPowerOfTwoLessThan(n)
	if m < k {
		p := path(leaves, m, lo, lo+k)
		return append(p, mth(leaves, lo+k, hi))
	}
	p := path(leaves, m-k, lo+k, hi)
	return append(p, mth(leaves, lo, lo+k))
}

// InclusionPath computes the audit path for leaf position m (0-based)
// within a tree of the given size.
func InclusionPath(leaves []digest.Digest, m int, size uint64) []digest.Digest {
	return path(leaves, m, 0, int(size))
}

// VerifyInclusion recomputes the root from an InclusionProof's leaf and
// path, checking it against root. Reconstruction mirrors PATH's recursive
// split exactly and must consume every supplied hash; trailing unused
// hashes fail the proof.
func VerifyInclusion(root digest.Digest, proof InclusionProof) error {
	if proof.Sequence == 0 || proof.Sequence > proof.TreeSize {
		return ledgererr.ErrInvalidInclusionProof
	}
	m := int(proof.Sequence - 1)
	computed, consumed, err := reconstructPath(proof.LeafHash, m, int(proof.TreeSize), proof.Path, 0)
	if err != nil {
		return err
	}
	if consumed != len(proof.Path) {
		return ledgererr.ErrInvalidInclusionProof
	}
	if computed != root {
		return ledgererr.ErrInvalidInclusionProof
	}
	return nil
}

// reconstructPath mirrors path()'s recursion, folding the leaf hash upward
// using proof entries consumed in the same left-to-right order path()
// produced them.
func reconstructPath(leaf digest.Digest, m, n int, proof []digest.Digest, idx int) (digest.Digest, int, error) {
	if n <= 1 {
		return leaf, idx, nil
	}
	k := largestPowerOfTwoLessThan(n)
	if m < k {
		sub, idx2, err := reconstructPath(leaf, m, k, proof, idx)
		if err != nil {
			return digest.Zero, 0, err
		}
		if idx2 >= len(proof) {
			return digest.Zero, 0, ledgererr.ErrInvalidInclusionProof
		}
		return digest.HNode(sub, proof[idx2]), idx2 + 1, nil
	}
	sub, idx2, err := reconstructPath(leaf, m-k, n-k, proof, idx)
	if err != nil {
		return digest.Zero, 0, err
	}
	if idx2 >= len(proof) {
		return digest.Zero, 0, ledgererr.ErrInvalidInclusionProof
	}
	return digest.HNode(proof[idx2], sub), idx2 + 1, nil
}

// ConsistencyProofFor generates the RFC 6962 consistency proof between a
// tree of size1 and a later tree of size2, following the official
// SUBPROOF(m, D[n], b) recursion (spec.md §4.1):
//
//   - m == n, b true:  {}                       (old tree == this complete subtree, already known)
//   - m == n, b false: {MTH(D[n])}               (an unrelated complete subtree, must be supplied)
//   - m <= k:  SUBPROOF(m, D[0:k], b) : MTH(D[k:n])
//   - m >  k:  SUBPROOF(m-k, D[k:n], false) : MTH(D[0:k])
//
// where k is the largest power of two strictly less than n, and PROOF(m,D)
// = SUBPROOF(m, D, true).
func ConsistencyProofFor(leaves []digest.Digest, size1, size2 uint64) (ConsistencyProof, error) {
	if size1 > size2 {
		return ConsistencyProof{}, ledgererr.ErrInvalidInput
	}
	if size1 == 0 {
		// Every tree extends the empty tree: the proof is empty.
		return ConsistencyProof{Size1: 0, Size2: size2}, nil
	}
	hashes := subproof(leaves, int(size1), 0, int(size2), true)
	return ConsistencyProof{Size1: size1, Size2: size2, Hashes: hashes}, nil
}

func subproof(leaves []digest.Digest, m, lo, n int, b bool) []digest.Digest {
	if m == n {
		if b {
			return nil
		}
		return []digest.Digest{mth(leaves, lo, lo+n)}
	}
	k := largestPowerOfTwoLessThan(n)
	if m <= k {
		left := subproof(leaves, m, lo, k, b)
		return append(left, mth(leaves, lo+k, lo+n))
	}
	right := subproof(leaves, m-k, lo+k, n-k, false)
	return append(right, mth(leaves, lo, lo+k))
}

// VerifyConsistency verifies a ConsistencyProof against the two checkpoint
// roots it claims to connect. Verification mirrors the SUBPROOF recursion
// exactly and must fully consume the proof list; trailing unused hashes
// fail the proof.
func VerifyConsistency(root1, root2 digest.Digest, proof ConsistencyProof) error {
	if proof.Size1 > proof.Size2 {
		return ledgererr.ErrInvalidConsistencyProof
	}
	if proof.Size1 == 0 {
		return nil
	}
	if proof.Size1 == proof.Size2 {
		if len(proof.Hashes) != 0 || root1 != root2 {
			return ledgererr.ErrInvalidConsistencyProof
		}
		return nil
	}
	oldRoot, newRoot, idx, err := verifySubproof(int(proof.Size1), int(proof.Size2), true, proof.Hashes, 0, root1)
	if err != nil {
		return err
	}
	if idx != len(proof.Hashes) {
		return ledgererr.ErrInvalidConsistencyProof
	}
	if oldRoot != root1 || newRoot != root2 {
		return ledgererr.ErrInvalidConsistencyProof
	}
	return nil
}

// verifySubproof mirrors subproof(m, lo, n, b), folding proof hashes
// (consumed left to right, in the same order subproof emitted them) into
// the reconstructed old-subtree and new-subtree roots. root1 supplies the
// value for the b==true, m==n base case, where no hash is needed because
// that subtree is by definition the asserted old root.
func verifySubproof(m, n int, b bool, proof []digest.Digest, idx int, root1 digest.Digest) (oldRoot, newRoot digest.Digest, next int, err error) {
	if m == n {
		if b {
			return root1, root1, idx, nil
		}
		if idx >= len(proof) {
			return digest.Zero, digest.Zero, 0, ledgererr.ErrInvalidConsistencyProof
		}
		h := proof[idx]
		return h, h, idx + 1, nil
	}
	k := largestPowerOfTwoLessThan(n)
	if m <= k {
		oldSub, newSub, idx2, err := verifySubproof(m, k, b, proof, idx, root1)
		if err != nil {
			return digest.Zero, digest.Zero, 0, err
		}
		if idx2 >= len(proof) {
			return digest.Zero, digest.Zero, 0, ledgererr.ErrInvalidConsistencyProof
		}
		right := proof[idx2]
		return oldSub, digest.HNode(newSub, right), idx2 + 1, nil
	}
	oldSub, newSub, idx2, err := verifySubproof(m-k, n-k, false, proof, idx, root1)
	if err != nil {
		return digest.Zero, digest.Zero, 0, err
	}
	if idx2 >= len(proof) {
		return digest.Zero, digest.Zero, 0, ledgererr.ErrInvalidConsistencyProof
	}
	left := proof[idx2]
	return digest.HNode(left, oldSub), digest.HNode(left, newSub), idx2 + 1, nil
}
