package zkverify

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/medledger/core/ledgererr"
	"github.com/medledger/core/log"
)

// MaxBatchSize is spec.md §4.6's batch-size bound.
const MaxBatchSize = 64

// Verifier gates access requests behind proof verification, nonce replay
// protection, rate limiting, and an audit chain (spec.md §4.6).
type Verifier struct {
	mu      sync.RWMutex
	keys    map[string]VerificationKey // keyed by resource class
	nonces  *NonceTable
	limiter *RateLimiter
	audit   *AuditChain
	logger  *log.Logger
	paused  atomic.Bool
	backend PairingBackend
}

// NewVerifier creates a Verifier. rateLimit configures the sliding window;
// poseidon may be nil to use the default stand-in (see NewSHA256Poseidon).
func NewVerifier(rateLimit RateLimitConfig, poseidon PoseidonHash, logger *log.Logger) *Verifier {
	if logger == nil {
		logger = log.Default()
	}
	return &Verifier{
		keys:    make(map[string]VerificationKey),
		nonces:  NewNonceTable(),
		limiter: NewRateLimiter(rateLimit),
		audit:   NewAuditChain(poseidon),
		logger:  logger.Module("zkverify"),
		backend: bn254PairingBackend{},
	}
}

// RegisterKey binds a VerificationKey to resourceClass.
func (v *Verifier) RegisterKey(resourceClass string, vk VerificationKey) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[resourceClass] = vk
}

// SetBackend overrides the pairing backend, primarily for tests that
// stub out the cryptographic check.
func (v *Verifier) SetBackend(b PairingBackend) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.backend = b
}

// Pause halts all verification entry points; every call fails with Paused
// and no state mutates until Resume.
func (v *Verifier) Pause()  { v.paused.Store(true) }
func (v *Verifier) Resume() { v.paused.Store(false) }
func (v *Verifier) Paused() bool { return v.paused.Load() }

// AuditChain exposes the chain for Verify()/Entries() calls.
func (v *Verifier) AuditChain() *AuditChain { return v.audit }

// VerifyResult is the outcome of verifying a single envelope.
type VerifyResult struct {
	User       string
	ResourceID string
	Valid      bool
	Entry      AuditEntry
}

// Verify checks env against resourceClass's registered key, performing
// shape validation, expiry, nonce, pairing, and rate-limit checks in that
// order, then advances the nonce and appends an audit entry on success. skipPairing lets batch
// verification reuse this for per-envelope bookkeeping after a successful
// recursive composition check.
func (v *Verifier) Verify(resourceClass string, env Envelope, now int64, skipPairing bool) (VerifyResult, error) {
	if v.Paused() {
		return VerifyResult{}, ledgererr.ErrPaused
	}

	pf, err := ValidateShape(env.Proof, env.PublicInputs)
	if err != nil {
		return VerifyResult{}, err
	}

	if env.ExpiresAt != 0 && now > env.ExpiresAt {
		return VerifyResult{}, ledgererr.ErrExpiredProof
	}

	if err := v.nonces.Check(env.User, env.Nonce); err != nil {
		return VerifyResult{}, err
	}

	if !skipPairing {
		v.mu.RLock()
		vk, ok := v.keys[resourceClass]
		backend := v.backend
		v.mu.RUnlock()
		if !ok {
			return VerifyResult{}, fmt.Errorf("zkverify: %w: no key registered for %s", ledgererr.ErrInvalidInput, resourceClass)
		}
		valid, err := backend.Verify(vk, pf, env.PublicInputs)
		if err != nil {
			return VerifyResult{}, err
		}
		if !valid {
			return VerifyResult{}, ledgererr.ErrMalformedProofData
		}
	}

	// Rate-limit budget is only consumed once a proof is known to verify:
	// consuming it earlier would mutate state on a call that otherwise
	// errors out, violating the all-or-nothing requirement on failure.
	if err := v.limiter.Allow(env.User, now); err != nil {
		return VerifyResult{}, err
	}

	if err := v.nonces.Advance(env.User, env.Nonce); err != nil {
		return VerifyResult{}, err
	}

	entry := v.audit.Append(env.User, env.ResourceID, env.PublicInputs, env.Nonce, now)
	v.logger.Info("access verified", "user", env.User, "resource", env.ResourceID, "nonce", env.Nonce)
	return VerifyResult{User: env.User, ResourceID: env.ResourceID, Valid: true, Entry: entry}, nil
}

// BatchResult aggregates per-envelope outcomes of a batch verification,
// mirroring the shape of the teacher's BatchVerificationResult
// (proofs/batch_verifier.go) without its worker-pool concurrency: spec.md
// §5 requires this core execute single-threaded, so batch verification
// here is a plain sequential loop.
type BatchResult struct {
	Results      []VerifyResult
	Errors       []error
	TotalValid   int
	TotalInvalid int
	RecursiveOK  bool
}

// VerifyBatch accepts up to MaxBatchSize envelopes for resourceClass.
// It first attempts recursive composition against the registered key; if
// that validates, per-envelope verification still runs shape, nonce, rate,
// and expiry checks but skips the per-proof pairing check (spec.md §4.6).
func (v *Verifier) VerifyBatch(resourceClass string, envs []Envelope, now int64, compose RecursiveComposer) (BatchResult, error) {
	if v.Paused() {
		return BatchResult{}, ledgererr.ErrPaused
	}
	if len(envs) == 0 {
		return BatchResult{}, ledgererr.ErrEmptyPublicInputs
	}
	if len(envs) > MaxBatchSize {
		return BatchResult{}, fmt.Errorf("zkverify: %w: batch size %d exceeds max %d", ledgererr.ErrInvalidInput, len(envs), MaxBatchSize)
	}

	v.mu.RLock()
	vk, ok := v.keys[resourceClass]
	v.mu.RUnlock()
	if !ok {
		return BatchResult{}, fmt.Errorf("zkverify: %w: no key registered for %s", ledgererr.ErrInvalidInput, resourceClass)
	}

	recursiveOK := false
	if compose != nil {
		proofs := make([]Proof, len(envs))
		for i, e := range envs {
			proofs[i] = e.Proof
		}
		recursiveOK, _ = compose(vk, proofs)
	}

	var out BatchResult
	out.RecursiveOK = recursiveOK
	for _, env := range envs {
		res, err := v.Verify(resourceClass, env, now, recursiveOK)
		if err != nil {
			out.Errors = append(out.Errors, err)
			out.TotalInvalid++
			continue
		}
		out.Results = append(out.Results, res)
		out.TotalValid++
	}
	return out, nil
}

// RecursiveComposer attempts to validate an entire batch of proofs in one
// aggregated check against vk, returning true if the composition itself
// verifies. spec.md §4.6 leaves the composition scheme unspecified beyond
// "recursive composition against the verification key"; callers inject a
// concrete scheme (e.g. a SNARK-of-SNARKs aggregator).
type RecursiveComposer func(vk VerificationKey, proofs []Proof) (bool, error)
