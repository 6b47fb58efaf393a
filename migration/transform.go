// Package migration implements the schema migration engine of spec.md
// §4.3: a registry of named forward/reverse transform steps between
// schema versions, lazy upgrade-on-read, dry-run previews, and
// deterministic canary bucket selection for staged rollout.
//
// Grounded on the teacher's node/config_manager.go (a validated,
// versioned, multi-source configuration manager with explicit error
// sentinels — the template for an explicitly-gated, validated registry)
// and node/config_loader.go (layered precedence/merge idiom, which
// informed the forward/reverse transform ordering here).
package migration

import (
	"fmt"

	"github.com/medledger/core/ledgererr"
)

// Record is a schema-versioned document: a flat field map plus the
// version it currently conforms to.
type Record struct {
	Version int
	Fields  map[string]any
}

// Clone returns a deep-enough copy of r suitable for transformation
// without mutating the caller's record.
func (r Record) Clone() Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{Version: r.Version, Fields: fields}
}

// ChangeFunc is a named, registered value conversion used by ChangeType
// steps. spec.md §9 leaves the set of supported conversions open; this
// package resolves that as a closed enumeration (see TransformFuncRegistry)
// rather than accepting arbitrary caller-supplied functions, so a
// migration's behavior is always fully determined by its registered name.
type ChangeFunc struct {
	Forward func(any) (any, error)
	Reverse func(any) (any, error)
}

// TransformFuncRegistry is the closed set of named ChangeType conversions
// available to ChangeType steps. Callers needing a new conversion must
// register it here by name before referencing it in a TransformSet;
// referencing an unregistered name fails at Apply/Reverse time with
// ErrTransformFailed.
var TransformFuncRegistry = map[string]ChangeFunc{
	"identity": {
		Forward: func(v any) (any, error) { return v, nil },
		Reverse: func(v any) (any, error) { return v, nil },
	},
	"string_to_int": {
		Forward: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("migration: %w: expected string", ledgererr.ErrTransformFailed)
			}
			var n int
			if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
				return nil, fmt.Errorf("migration: %w: %v", ledgererr.ErrTransformFailed, err)
			}
			return n, nil
		},
		Reverse: func(v any) (any, error) {
			return fmt.Sprintf("%d", v), nil
		},
	},
	"int_to_string": {
		Forward: func(v any) (any, error) {
			return fmt.Sprintf("%v", v), nil
		},
		Reverse: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("migration: %w: expected string", ledgererr.ErrTransformFailed)
			}
			var n int
			if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
				return nil, fmt.Errorf("migration: %w: %v", ledgererr.ErrTransformFailed, err)
			}
			return n, nil
		},
	},
}

// Step is a single schema transform (spec.md §4.3: AddField, RemoveField,
// RenameField, CopyField, ChangeType).
type Step interface {
	Apply(Record) (Record, error)
	Reverse(Record) (Record, error)
	Describe() string
}

// AddField adds a new field with a default value. Its reverse removes it.
type AddField struct {
	Field   string
	Default any
}

func (s AddField) Apply(r Record) (Record, error) {
	out := r.Clone()
	out.Fields[s.Field] = s.Default
	return out, nil
}

func (s AddField) Reverse(r Record) (Record, error) {
	out := r.Clone()
	delete(out.Fields, s.Field)
	return out, nil
}

func (s AddField) Describe() string { return fmt.Sprintf("add_field(%s)", s.Field) }

// RemoveField deletes a field, retaining its last value so Reverse can
// restore it.
type RemoveField struct {
	Field string
	// last holds the removed value across an Apply/Reverse pair within a
	// single migration run; for field-level restoration across
	// independently-run reversals, callers should prefer AddField with an
	// explicit default instead.
	last    any
	present bool
}

func (s *RemoveField) Apply(r Record) (Record, error) {
	out := r.Clone()
	if v, ok := out.Fields[s.Field]; ok {
		s.last = v
		s.present = true
	}
	delete(out.Fields, s.Field)
	return out, nil
}

func (s *RemoveField) Reverse(r Record) (Record, error) {
	out := r.Clone()
	if s.present {
		out.Fields[s.Field] = s.last
	}
	return out, nil
}

func (s *RemoveField) Describe() string { return fmt.Sprintf("remove_field(%s)", s.Field) }

// RenameField renames From to To.
type RenameField struct {
	From, To string
}

func (s RenameField) Apply(r Record) (Record, error) {
	out := r.Clone()
	v, ok := out.Fields[s.From]
	if !ok {
		return Record{}, fmt.Errorf("migration: %w: field %q absent", ledgererr.ErrTransformFailed, s.From)
	}
	delete(out.Fields, s.From)
	out.Fields[s.To] = v
	return out, nil
}

func (s RenameField) Reverse(r Record) (Record, error) {
	return RenameField{From: s.To, To: s.From}.Apply(r)
}

func (s RenameField) Describe() string { return fmt.Sprintf("rename_field(%s->%s)", s.From, s.To) }

// CopyField copies the value of From into To, leaving From intact. Its
// reverse deletes To (restoring the pre-copy state) without touching From.
type CopyField struct {
	From, To string
}

func (s CopyField) Apply(r Record) (Record, error) {
	out := r.Clone()
	v, ok := out.Fields[s.From]
	if !ok {
		return Record{}, fmt.Errorf("migration: %w: field %q absent", ledgererr.ErrTransformFailed, s.From)
	}
	out.Fields[s.To] = v
	return out, nil
}

func (s CopyField) Reverse(r Record) (Record, error) {
	out := r.Clone()
	delete(out.Fields, s.To)
	return out, nil
}

func (s CopyField) Describe() string { return fmt.Sprintf("copy_field(%s->%s)", s.From, s.To) }

// ChangeType converts Field's value with the named registered ChangeFunc.
type ChangeType struct {
	Field string
	Func  string
}

func (s ChangeType) Apply(r Record) (Record, error) {
	cf, ok := TransformFuncRegistry[s.Func]
	if !ok {
		return Record{}, fmt.Errorf("migration: %w: unregistered change function %q", ledgererr.ErrTransformFailed, s.Func)
	}
	out := r.Clone()
	v, ok := out.Fields[s.Field]
	if !ok {
		return Record{}, fmt.Errorf("migration: %w: field %q absent", ledgererr.ErrTransformFailed, s.Field)
	}
	nv, err := cf.Forward(v)
	if err != nil {
		return Record{}, err
	}
	out.Fields[s.Field] = nv
	return out, nil
}

func (s ChangeType) Reverse(r Record) (Record, error) {
	cf, ok := TransformFuncRegistry[s.Func]
	if !ok {
		return Record{}, fmt.Errorf("migration: %w: unregistered change function %q", ledgererr.ErrTransformFailed, s.Func)
	}
	out := r.Clone()
	v, ok := out.Fields[s.Field]
	if !ok {
		return Record{}, fmt.Errorf("migration: %w: field %q absent", ledgererr.ErrTransformFailed, s.Field)
	}
	nv, err := cf.Reverse(v)
	if err != nil {
		return Record{}, err
	}
	out.Fields[s.Field] = nv
	return out, nil
}

func (s ChangeType) Describe() string { return fmt.Sprintf("change_type(%s, %s)", s.Field, s.Func) }
