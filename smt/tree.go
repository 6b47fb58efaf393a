// Package smt implements the sparse Merkle tree of spec.md §4.2: a
// configurable-depth (1..256), content-addressed tree supporting
// inclusion and non-inclusion proofs, plus two-level field proofs for
// selective disclosure of individual record fields.
//
// Materially rewritten from the teacher's crypto/nullifier_set.go. That
// file's domain-separated default-hash precomputation is kept, but its
// proof/verify path is replaced: the teacher's computeSiblingHash always
// returned the empty-subtree hash regardless of actual tree contents,
// which only happens to produce a correct proof for single-leaf trees.
// This package instead keeps a content-addressed node store (node hash ->
// (left, right) children), persisted through the kv package rather than
// an in-process map, so a real sibling is returned for any key against a
// tree of arbitrary size and a tree can be reopened across restarts.
package smt

import (
	"context"
	"sync"

	"github.com/medledger/core/digest"
	"github.com/medledger/core/kv"
	"github.com/medledger/core/ledgererr"
)

// MaxDepth bounds the configurable tree depth (spec.md §4.2: 1..256).
const MaxDepth = 256

const (
	nodeNamespace  = "smt.node"
	leafNamespace  = "smt.leaf"
)

// Tree is a sparse Merkle tree of a fixed depth over big-endian bit-string
// keys. Keys shorter than depth/8 bytes are treated as zero-padded on the
// right; keys are conventionally the digest of some higher-level
// identifier. Node and leaf contents are persisted through a kv.Store
// instance, namespaced by id so multiple trees can share one store.
type Tree struct {
	mu       sync.RWMutex
	id       string
	depth    int
	defaults []digest.Digest // defaults[i] = hash of an empty subtree of height i
	store    kv.Store
	root     digest.Digest
}

// New creates an empty sparse Merkle tree of the given depth (1..256),
// identified by id within store.
func New(id string, depth int, store kv.Store) (*Tree, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, ledgererr.ErrInvalidInput
	}
	defaults := digest.DefaultHashes(depth)
	return &Tree{
		id:       id,
		depth:    depth,
		defaults: defaults,
		store:    store,
		root:     defaults[depth],
	}, nil
}

// Depth returns the tree's configured depth.
func (t *Tree) Depth() int {
	return t.depth
}

// Root returns the current root hash.
func (t *Tree) Root() digest.Digest {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

func (t *Tree) nodeKey(h digest.Digest) kv.Key {
	return kv.NewKey(nodeNamespace, []byte(t.id), h.Bytes())
}

func (t *Tree) leafKey(key digest.Digest) kv.Key {
	return kv.NewKey(leafNamespace, []byte(t.id), key.Bytes())
}

// Get returns the raw value stored at key and whether it is present.
func (t *Tree) Get(ctx context.Context, key digest.Digest) ([]byte, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Get(ctx, kv.Persistent, t.leafKey(key))
}

// Update inserts or overwrites the value at key and returns the new root.
func (t *Tree) Update(ctx context.Context, key digest.Digest, value []byte) (digest.Digest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	leafHash := digest.HSMTLeaf(key.Bytes(), value)
	if err := t.store.Set(ctx, kv.Persistent, t.leafKey(key), value); err != nil {
		return digest.Zero, err
	}

	newRoot, err := t.insert(ctx, t.root, t.depth, key, 0, leafHash)
	if err != nil {
		return digest.Zero, err
	}
	t.root = newRoot
	return t.root, nil
}

// Remove deletes key from the tree (collapsing its leaf back to the
// empty-subtree default) and returns the new root.
func (t *Tree) Remove(ctx context.Context, key digest.Digest) (digest.Digest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Remove(ctx, kv.Persistent, t.leafKey(key)); err != nil {
		return digest.Zero, err
	}
	newRoot, err := t.insert(ctx, t.root, t.depth, key, 0, t.defaults[0])
	if err != nil {
		return digest.Zero, err
	}
	t.root = newRoot
	return t.root, nil
}

// insert recursively descends height levels from nodeHash (which
// represents a subtree of the given height), replacing the leaf reached
// by following key's bits from bitIndex, and returns the new subtree
// hash. height counts down to 0 at the leaf.
func (t *Tree) insert(ctx context.Context, nodeHash digest.Digest, height int, key digest.Digest, bitIndex int, leafHash digest.Digest) (digest.Digest, error) {
	if height == 0 {
		return leafHash, nil
	}
	left, right, err := t.childrenOf(ctx, nodeHash, height)
	if err != nil {
		return digest.Zero, err
	}
	if getBit(key, bitIndex) == 0 {
		newLeft, err := t.insert(ctx, left, height-1, key, bitIndex+1, leafHash)
		if err != nil {
			return digest.Zero, err
		}
		return t.storeNode(ctx, newLeft, right)
	}
	newRight, err := t.insert(ctx, right, height-1, key, bitIndex+1, leafHash)
	if err != nil {
		return digest.Zero, err
	}
	return t.storeNode(ctx, left, newRight)
}

func (t *Tree) storeNode(ctx context.Context, left, right digest.Digest) (digest.Digest, error) {
	h := digest.HNode(left, right)
	buf := make([]byte, 0, 64)
	buf = append(buf, left.Bytes()...)
	buf = append(buf, right.Bytes()...)
	if err := t.store.Set(ctx, kv.Persistent, t.nodeKey(h), buf); err != nil {
		return digest.Zero, err
	}
	return h, nil
}

// childrenOf returns the (left, right) children of a subtree hash at the
// given height, defaulting to the empty subtree of height-1 on either side
// if the node was never materialized (i.e. that whole subtree is empty).
func (t *Tree) childrenOf(ctx context.Context, nodeHash digest.Digest, height int) (digest.Digest, digest.Digest, error) {
	raw, ok, err := t.store.Get(ctx, kv.Persistent, t.nodeKey(nodeHash))
	if err != nil {
		return digest.Zero, digest.Zero, err
	}
	if ok && len(raw) == 64 {
		return digest.FromBytes(raw[:32]), digest.FromBytes(raw[32:]), nil
	}
	d := t.defaults[height-1]
	return d, d, nil
}

// Proof is an inclusion or non-inclusion proof for a single key.
type Proof struct {
	Key      digest.Digest
	Exists   bool
	Value    []byte
	Siblings []digest.Digest // index 0 = sibling at the root level, root-adjacent first
}

// Prove builds a Proof for key against the tree's current state.
func (t *Tree) Prove(ctx context.Context, key digest.Digest) (Proof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	value, exists, err := t.store.Get(ctx, kv.Persistent, t.leafKey(key))
	if err != nil {
		return Proof{}, err
	}
	siblings := make([]digest.Digest, t.depth)

	node := t.root
	height := t.depth
	for i := 0; i < t.depth; i++ {
		left, right, err := t.childrenOf(ctx, node, height)
		if err != nil {
			return Proof{}, err
		}
		if getBit(key, i) == 0 {
			siblings[i] = right
			node = left
		} else {
			siblings[i] = left
			node = right
		}
		height--
	}

	return Proof{Key: key, Exists: exists, Value: value, Siblings: siblings}, nil
}

// Verify checks a Proof against root. For a non-inclusion proof, Value
// must be empty.
func Verify(root digest.Digest, depth int, proof Proof) error {
	if len(proof.Siblings) != depth {
		return ledgererr.ErrInvalidInput
	}
	var cur digest.Digest
	defaults := digest.DefaultHashes(depth)
	if proof.Exists {
		cur = digest.HSMTLeaf(proof.Key.Bytes(), proof.Value)
	} else {
		cur = defaults[0]
	}
	for i := depth - 1; i >= 0; i-- {
		sibling := proof.Siblings[i]
		if getBit(proof.Key, i) == 0 {
			cur = digest.HNode(cur, sibling)
		} else {
			cur = digest.HNode(sibling, cur)
		}
	}
	if cur != root {
		return ledgererr.ErrRootMismatch
	}
	return nil
}

// getBit returns bit idx (0 = most significant bit of the key) of h.
func getBit(h digest.Digest, idx int) int {
	byteIdx := idx / 8
	bitIdx := 7 - (idx % 8)
	if byteIdx >= len(h) {
		return 0
	}
	return int((h[byteIdx] >> uint(bitIdx)) & 1)
}
