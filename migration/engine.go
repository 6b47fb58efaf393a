package migration

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/medledger/core/ledgererr"
	"github.com/medledger/core/log"
)

// Engine drives record migrations through a Registry: forward/reverse
// application along a discovered path, lazy upgrade-on-read, and
// canary-gated staged rollout (spec.md §4.3).
type Engine struct {
	registry *Registry
	logger   *log.Logger
}

// NewEngine creates a migration Engine over the given registry.
func NewEngine(registry *Registry, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{registry: registry, logger: logger.Module("migration")}
}

// StepResult records one applied (or reversed) transform, for dry-run
// previews and audit trails.
type StepResult struct {
	Describe string
	Before   Record
	After    Record
}

// Migrate walks the registered path from record.Version to targetVersion
// and returns the transformed record plus the per-step trail. If dryRun
// is true, the steps are computed and returned but record itself is left
// untouched by the caller's perspective: the returned Record is a new
// value, never the input's backing map.
func (e *Engine) Migrate(record Record, targetVersion int, dryRun bool) (Record, []StepResult, error) {
	if record.Version == targetVersion {
		return record.Clone(), nil, nil
	}

	path, err := e.registry.Path(record.Version, targetVersion)
	if err != nil {
		return Record{}, nil, err
	}

	ascending := targetVersion > record.Version
	cur := record.Clone()
	var trail []StepResult

	for _, ed := range path {
		steps := ed.steps
		hopVersion := ed.to
		if !ascending {
			steps = reverseSteps(steps)
			hopVersion = ed.from
		}
		for _, step := range steps {
			before := cur
			var after Record
			var stepErr error
			if ascending {
				after, stepErr = step.Apply(cur)
			} else {
				after, stepErr = step.Reverse(cur)
			}
			if stepErr != nil {
				return Record{}, trail, fmt.Errorf("migration: step %s: %w", step.Describe(), stepErr)
			}
			after.Version = hopVersion
			trail = append(trail, StepResult{Describe: step.Describe(), Before: before, After: after})
			cur = after
		}
	}

	if dryRun {
		e.logger.Debug("dry run migration computed", "from", record.Version, "to", targetVersion, "steps", len(trail))
		return cur, trail, nil
	}
	e.logger.Info("record migrated", "from", record.Version, "to", targetVersion)
	return cur, trail, nil
}

func reverseSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[len(steps)-1-i] = s
	}
	return out
}

// LazyUpgrade migrates record to currentSchemaVersion only if it is not
// already at that version, returning the (possibly unchanged) record.
// This is the read-path hook spec.md §4.3 calls lazy upgrade-on-read: a
// record need never be proactively rewritten in bulk, only brought
// current the next time it is read.
func (e *Engine) LazyUpgrade(record Record, currentSchemaVersion int) (Record, error) {
	if record.Version == currentSchemaVersion {
		return record, nil
	}
	upgraded, _, err := e.Migrate(record, currentSchemaVersion, false)
	if err != nil {
		return Record{}, err
	}
	return upgraded, nil
}

// CanaryBucket deterministically assigns callerID to a bucket in [0,100)
// for staged rollout of newVersion, so the same caller always lands in
// the same bucket for a given target version (spec.md §4.3). The hash
// formula is bucket = first8BE(SHA256(callerID || "|" || newVersion)) mod 100.
func CanaryBucket(callerID string, newVersion int) int {
	h := sha256.New()
	h.Write([]byte(callerID))
	h.Write([]byte("|"))
	var vb [8]byte
	binary.BigEndian.PutUint64(vb[:], uint64(newVersion))
	h.Write(vb[:])
	sum := h.Sum(nil)
	first8 := binary.BigEndian.Uint64(sum[:8])
	return int(first8 % 100)
}

// CanaryEligible reports whether callerID falls within the first
// percent% of buckets for newVersion, per CanaryBucket.
func CanaryEligible(callerID string, newVersion int, percent int) bool {
	if percent <= 0 {
		return false
	}
	if percent >= 100 {
		return true
	}
	return CanaryBucket(callerID, newVersion) < percent
}

// ValidateCanaryPercentage rejects percentages outside [0,100].
func ValidateCanaryPercentage(percent int) error {
	if percent < 0 || percent > 100 {
		return ledgererr.ErrInvalidCanaryPercentage
	}
	return nil
}
