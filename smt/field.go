package smt

import (
	"context"
	"sync"

	"github.com/medledger/core/digest"
	"github.com/medledger/core/kv"
	"github.com/medledger/core/ledgererr"
)

// FieldStore holds a main record tree (keyed by record ID) whose leaf
// values are the roots of per-record field sub-trees, enabling selective
// disclosure: a holder can prove a single field of a record without
// revealing any other field (spec.md §4.2).
type FieldStore struct {
	mu         sync.Mutex
	main       *Tree
	fieldDepth int
	store      kv.Store
	fields     map[digest.Digest]*Tree // record key -> field sub-tree
}

// NewFieldStore creates a FieldStore whose main tree has mainDepth and
// whose per-record field sub-trees each have fieldDepth, all persisted
// through store.
func NewFieldStore(id string, mainDepth, fieldDepth int, store kv.Store) (*FieldStore, error) {
	main, err := New(id+".main", mainDepth, store)
	if err != nil {
		return nil, err
	}
	if fieldDepth < 1 || fieldDepth > MaxDepth {
		return nil, ledgererr.ErrInvalidInput
	}
	return &FieldStore{main: main, fieldDepth: fieldDepth, store: store, fields: make(map[digest.Digest]*Tree)}, nil
}

// MainRoot returns the root of the main record tree.
func (fs *FieldStore) MainRoot() digest.Digest {
	return fs.main.Root()
}

func (fs *FieldStore) fieldTree(recordKey digest.Digest) (*Tree, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if ft, ok := fs.fields[recordKey]; ok {
		return ft, nil
	}
	ft, err := New("field."+string(recordKey.Bytes()), fs.fieldDepth, fs.store)
	if err != nil {
		return nil, err
	}
	fs.fields[recordKey] = ft
	return ft, nil
}

// SetField sets fieldKey=fieldValue within recordKey's field sub-tree,
// then re-publishes the sub-tree's new root as recordKey's leaf in the
// main tree, and returns the updated main root.
func (fs *FieldStore) SetField(ctx context.Context, recordKey, fieldKey digest.Digest, fieldValue []byte) (digest.Digest, error) {
	ft, err := fs.fieldTree(recordKey)
	if err != nil {
		return digest.Zero, err
	}
	fieldLeaf := digest.HFieldLeaf(fieldKey.Bytes(), fieldValue)
	if _, err := ft.Update(ctx, fieldKey, fieldLeaf.Bytes()); err != nil {
		return digest.Zero, err
	}
	return fs.main.Update(ctx, recordKey, ft.Root().Bytes())
}

// FieldProof is a two-level selective-disclosure proof: membership of
// recordKey's field-tree root in the main tree, plus membership of
// fieldKey's value in that field tree.
type FieldProof struct {
	RecordKey  digest.Digest
	FieldKey   digest.Digest
	FieldValue []byte
	MainProof  Proof
	FieldProof Proof
}

// Prove builds a FieldProof for a single field of a single record. It
// fails if the record has no field tree or the field is absent.
func (fs *FieldStore) Prove(ctx context.Context, recordKey, fieldKey digest.Digest) (FieldProof, error) {
	fs.mu.Lock()
	ft, ok := fs.fields[recordKey]
	fs.mu.Unlock()
	if !ok {
		return FieldProof{}, ledgererr.ErrRecordNotFound
	}
	fieldProof, err := ft.Prove(ctx, fieldKey)
	if err != nil {
		return FieldProof{}, err
	}
	if !fieldProof.Exists {
		return FieldProof{}, ledgererr.ErrInvalidInput
	}
	mainProof, err := fs.main.Prove(ctx, recordKey)
	if err != nil {
		return FieldProof{}, err
	}
	return FieldProof{
		RecordKey:  recordKey,
		FieldKey:   fieldKey,
		FieldValue: fieldProof.Value,
		MainProof:  mainProof,
		FieldProof: fieldProof,
	}, nil
}

// VerifyField checks a FieldProof against the main tree's root, without
// requiring access to any other field of the record (selective
// disclosure): mainDepth/fieldDepth must match the FieldStore that
// produced it.
func VerifyField(mainRoot digest.Digest, mainDepth, fieldDepth int, fp FieldProof) error {
	if !fp.MainProof.Exists {
		return ledgererr.ErrRecordNotFound
	}
	fieldRoot := digest.FromBytes(fp.MainProof.Value)
	if err := Verify(mainRoot, mainDepth, fp.MainProof); err != nil {
		return err
	}
	if err := Verify(fieldRoot, fieldDepth, fp.FieldProof); err != nil {
		return err
	}
	return nil
}
