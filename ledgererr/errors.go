// Package ledgererr centralizes the error kinds that spec.md §7 requires be
// surfaced identically across the Merkle log, SMT, migration, OCC, policy,
// and ZK-verifier packages. Each kind is a distinct sentinel so callers can
// use errors.Is against a single, stable value regardless of which package
// returned it. Individual packages still wrap these with fmt.Errorf("%w: ...")
// for context, following the teacher's per-file Err* block convention.
package ledgererr

import "errors"

// Shape / validation.
var (
	ErrEmptyPublicInputs    = errors.New("ledger: empty public inputs")
	ErrTooManyPublicInputs  = errors.New("ledger: too many public inputs")
	ErrDegenerateProof      = errors.New("ledger: degenerate proof component")
	ErrOversizedComponent   = errors.New("ledger: proof component exceeds curve order")
	ErrMalformedG1Point     = errors.New("ledger: malformed G1 point")
	ErrMalformedG2Point     = errors.New("ledger: malformed G2 point")
	ErrZeroedPublicInput    = errors.New("ledger: zeroed public input")
	ErrMalformedProofData   = errors.New("ledger: malformed proof data")
	ErrInvalidRecordType    = errors.New("ledger: invalid record type")
	ErrInvalidInput         = errors.New("ledger: invalid input")
)

// Temporal.
var (
	ErrExpiredProof           = errors.New("ledger: expired proof")
	ErrRetentionPolicyViolation = errors.New("ledger: retention policy violation")
	ErrTimelockNotExpired     = errors.New("ledger: timelock not expired")
)

// Ordering / version.
var (
	ErrInvalidNonce            = errors.New("ledger: invalid nonce")
	ErrVersionTooNew           = errors.New("ledger: version too new")
	ErrNoMigrationPath         = errors.New("ledger: no migration path")
	ErrAlreadyMigrated         = errors.New("ledger: migration already registered")
	ErrRollbackUnavailable     = errors.New("ledger: rollback unavailable")
	ErrWrongPhase              = errors.New("ledger: wrong phase")
	ErrPhaseNotAdvanceable     = errors.New("ledger: phase not advanceable")
	ErrHashChainBroken         = errors.New("ledger: hash chain broken")
	ErrRootMismatch            = errors.New("ledger: root mismatch")
	ErrInvalidConsistencyProof = errors.New("ledger: invalid consistency proof")
	ErrInvalidInclusionProof   = errors.New("ledger: invalid inclusion proof")
)

// Authorization.
var (
	ErrUnauthorized         = errors.New("ledger: unauthorized")
	ErrRateLimited          = errors.New("ledger: rate limited")
	ErrPaused               = errors.New("ledger: verifier paused")
	ErrNotAGuardian         = errors.New("ledger: not a guardian")
	ErrAlreadyApproved      = errors.New("ledger: already approved")
	ErrInsufficientApprovals = errors.New("ledger: insufficient approvals")
	ErrSelfDelegation       = errors.New("ledger: self delegation")
	ErrHasDelegated         = errors.New("ledger: has delegated")
)

// Resource.
var (
	ErrEntryNotFound      = errors.New("ledger: entry not found")
	ErrRecordNotFound     = errors.New("ledger: record not found")
	ErrKeyNotFound        = errors.New("ledger: key not found")
	ErrKeyRevoked         = errors.New("ledger: key revoked")
	ErrUserNotFound       = errors.New("ledger: user not found")
	ErrCheckpointNotFound = errors.New("ledger: checkpoint not found")
)

// Policy / transform.
var (
	ErrPolicyViolation       = errors.New("ledger: policy violation")
	ErrInvalidPolicy         = errors.New("ledger: invalid policy")
	ErrTransformFailed       = errors.New("ledger: transform failed")
	ErrInvalidCanaryPercentage = errors.New("ledger: invalid canary percentage")
)

// Reentrancy / concurrency guard.
var (
	ErrReentrantCall      = errors.New("ledger: reentrant call into guarded operation")
	ErrInsufficientWitnesses = errors.New("ledger: insufficient witness endorsements")
)
