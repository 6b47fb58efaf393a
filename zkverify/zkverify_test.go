package zkverify

import (
	"errors"
	"testing"

	"github.com/medledger/core/ledgererr"
	"github.com/medledger/core/pairing"
)

// stubBackend always returns a fixed verdict, standing in for a real
// Groth16 witness the way the teacher's groth16_verifier.go lets callers
// swap BLSGroth16Backend implementations.
type stubBackend struct{ valid bool }

func (s stubBackend) Verify(VerificationKey, *parsedProof, [][]byte) (bool, error) {
	return s.valid, nil
}

func validG1Bytes() []byte { return pairing.G1Generator().Marshal() }
func validG2Bytes() []byte { return pairing.G2Generator().Marshal() }

func testVK() VerificationKey {
	return VerificationKey{
		Alpha: validG1Bytes(),
		Beta:  validG2Bytes(),
		Gamma: validG2Bytes(),
		Delta: validG2Bytes(),
		IC:    [][]byte{validG1Bytes(), validG1Bytes()},
	}
}

func testProof() Proof {
	return Proof{A: validG1Bytes(), B: validG2Bytes(), C: validG1Bytes()}
}

func nonZeroInput() []byte {
	return append(make([]byte, 31), 0x01)
}

func TestValidateShape_RejectsEmptyPublicInputs(t *testing.T) {
	_, err := ValidateShape(testProof(), nil)
	if !errors.Is(err, ledgererr.ErrEmptyPublicInputs) {
		t.Fatalf("expected ErrEmptyPublicInputs, got %v", err)
	}
}

func TestValidateShape_RejectsTooManyPublicInputs(t *testing.T) {
	inputs := make([][]byte, MaxPublicInputs+1)
	for i := range inputs {
		inputs[i] = nonZeroInput()
	}
	_, err := ValidateShape(testProof(), inputs)
	if !errors.Is(err, ledgererr.ErrTooManyPublicInputs) {
		t.Fatalf("expected ErrTooManyPublicInputs, got %v", err)
	}
}

func TestValidateShape_RejectsZeroedPublicInput(t *testing.T) {
	_, err := ValidateShape(testProof(), [][]byte{make([]byte, 32)})
	if !errors.Is(err, ledgererr.ErrZeroedPublicInput) {
		t.Fatalf("expected ErrZeroedPublicInput, got %v", err)
	}
}

func TestValidateShape_RejectsDegenerateG1(t *testing.T) {
	p := testProof()
	p.A = make([]byte, 64)
	_, err := ValidateShape(p, [][]byte{nonZeroInput()})
	if !errors.Is(err, ledgererr.ErrDegenerateProof) {
		t.Fatalf("expected ErrDegenerateProof, got %v", err)
	}
}

func TestValidateShape_RejectsMalformedG2Length(t *testing.T) {
	p := testProof()
	p.B = make([]byte, 64)
	_, err := ValidateShape(p, [][]byte{nonZeroInput()})
	if !errors.Is(err, ledgererr.ErrMalformedG2Point) {
		t.Fatalf("expected ErrMalformedG2Point, got %v", err)
	}
}

func TestValidateShape_Accepts(t *testing.T) {
	_, err := ValidateShape(testProof(), [][]byte{nonZeroInput()})
	if err != nil {
		t.Fatalf("expected well-formed proof to validate, got %v", err)
	}
}

// TestVerifier_ReplaySequence is spec.md's concrete scenario 6.
func TestVerifier_ReplaySequence(t *testing.T) {
	v := NewVerifier(RateLimitConfig{}, nil, nil)
	v.RegisterKey("labs", testVK())
	v.SetBackend(stubBackend{valid: true})

	env := Envelope{User: "U", ResourceID: "resource", Proof: testProof(), PublicInputs: [][]byte{nonZeroInput()}, Nonce: 1}
	res, err := v.Verify("labs", env, 1000, false)
	if err != nil || !res.Valid {
		t.Fatalf("expected first request (nonce=1) to succeed, got %v err=%v", res, err)
	}
	if len(v.AuditChain().Entries()) != 1 {
		t.Fatalf("expected audit length 1, got %d", len(v.AuditChain().Entries()))
	}

	_, err = v.Verify("labs", env, 1000, false)
	if !errors.Is(err, ledgererr.ErrInvalidNonce) {
		t.Fatalf("expected replay with nonce=1 to fail InvalidNonce, got %v", err)
	}
	if len(v.AuditChain().Entries()) != 1 {
		t.Fatal("expected audit length unchanged after rejected replay")
	}

	malformed := env
	malformed.Nonce = 2
	malformed.Proof.A = make([]byte, 64)
	_, err = v.Verify("labs", malformed, 1000, false)
	if !errors.Is(err, ledgererr.ErrDegenerateProof) {
		t.Fatalf("expected DegenerateProof for all-zero G1, got %v", err)
	}
	if len(v.AuditChain().Entries()) != 1 {
		t.Fatal("expected audit length unchanged after malformed proof")
	}

	valid2 := env
	valid2.Nonce = 2
	res, err = v.Verify("labs", valid2, 1000, false)
	if err != nil || !res.Valid {
		t.Fatalf("expected nonce=2 valid shape to succeed, got %v err=%v", res, err)
	}
	if len(v.AuditChain().Entries()) != 2 {
		t.Fatalf("expected audit length 2, got %d", len(v.AuditChain().Entries()))
	}
	if err := v.AuditChain().Verify(); err != nil {
		t.Fatalf("expected audit chain to verify, got %v", err)
	}
}

func TestVerifier_PauseBlocksAllCalls(t *testing.T) {
	v := NewVerifier(RateLimitConfig{}, nil, nil)
	v.RegisterKey("labs", testVK())
	v.SetBackend(stubBackend{valid: true})
	v.Pause()

	env := Envelope{User: "U", ResourceID: "r", Proof: testProof(), PublicInputs: [][]byte{nonZeroInput()}, Nonce: 1}
	_, err := v.Verify("labs", env, 0, false)
	if !errors.Is(err, ledgererr.ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if len(v.AuditChain().Entries()) != 0 {
		t.Fatal("expected no state mutation while paused")
	}

	v.Resume()
	_, err = v.Verify("labs", env, 0, false)
	if err != nil {
		t.Fatalf("expected success after resume, got %v", err)
	}
}

func TestVerifier_ExpiredProofRejected(t *testing.T) {
	v := NewVerifier(RateLimitConfig{}, nil, nil)
	v.RegisterKey("labs", testVK())
	v.SetBackend(stubBackend{valid: true})

	env := Envelope{User: "U", ResourceID: "r", Proof: testProof(), PublicInputs: [][]byte{nonZeroInput()}, Nonce: 1, ExpiresAt: 100}
	_, err := v.Verify("labs", env, 200, false)
	if !errors.Is(err, ledgererr.ErrExpiredProof) {
		t.Fatalf("expected ErrExpiredProof, got %v", err)
	}
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxRequestsPerWindow: 2, WindowDurationSecs: 60})
	if err := rl.Allow("u1", 0); err != nil {
		t.Fatalf("expected first request allowed: %v", err)
	}
	if err := rl.Allow("u1", 10); err != nil {
		t.Fatalf("expected second request allowed: %v", err)
	}
	if err := rl.Allow("u1", 20); !errors.Is(err, ledgererr.ErrRateLimited) {
		t.Fatalf("expected third request rate-limited, got %v", err)
	}
	if err := rl.Allow("u1", 61); err != nil {
		t.Fatalf("expected request allowed after window reset: %v", err)
	}
}

func TestVerifier_FailedPairingDoesNotConsumeRateLimit(t *testing.T) {
	v := NewVerifier(RateLimitConfig{MaxRequestsPerWindow: 1, WindowDurationSecs: 60}, nil, nil)
	v.RegisterKey("labs", testVK())
	v.SetBackend(stubBackend{valid: false})

	env := Envelope{User: "U", ResourceID: "r", Proof: testProof(), PublicInputs: [][]byte{nonZeroInput()}, Nonce: 1}
	if _, err := v.Verify("labs", env, 0, false); !errors.Is(err, ledgererr.ErrMalformedProofData) {
		t.Fatalf("expected ErrMalformedProofData, got %v", err)
	}

	v.SetBackend(stubBackend{valid: true})
	env.Nonce = 1
	if _, err := v.Verify("labs", env, 0, false); err != nil {
		t.Fatalf("expected the rate-limit slot to still be available after the failed pairing, got %v", err)
	}
}

func TestRateLimiter_DisabledWhenBothZero(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})
	for i := 0; i < 100; i++ {
		if err := rl.Allow("u1", 0); err != nil {
			t.Fatalf("expected disabled rate limiter to allow unconditionally, got %v", err)
		}
	}
}

func TestVerifier_BatchSkipsPairingOnRecursiveSuccess(t *testing.T) {
	v := NewVerifier(RateLimitConfig{}, nil, nil)
	v.RegisterKey("labs", testVK())
	v.SetBackend(stubBackend{valid: false}) // pairing would fail if ever invoked

	envs := []Envelope{
		{User: "U1", ResourceID: "r", Proof: testProof(), PublicInputs: [][]byte{nonZeroInput()}, Nonce: 1},
		{User: "U2", ResourceID: "r", Proof: testProof(), PublicInputs: [][]byte{nonZeroInput()}, Nonce: 1},
	}
	compose := func(VerificationKey, []Proof) (bool, error) { return true, nil }

	result, err := v.VerifyBatch("labs", envs, 0, compose)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.RecursiveOK {
		t.Fatal("expected recursive composition to report success")
	}
	if result.TotalValid != 2 || result.TotalInvalid != 0 {
		t.Fatalf("expected both envelopes to pass via recursive composition, got valid=%d invalid=%d", result.TotalValid, result.TotalInvalid)
	}
}

func TestVerifier_BatchRejectsOversized(t *testing.T) {
	v := NewVerifier(RateLimitConfig{}, nil, nil)
	v.RegisterKey("labs", testVK())
	envs := make([]Envelope, MaxBatchSize+1)
	for i := range envs {
		envs[i] = Envelope{User: "U", ResourceID: "r", Proof: testProof(), PublicInputs: [][]byte{nonZeroInput()}, Nonce: uint64(i + 1)}
	}
	_, err := v.VerifyBatch("labs", envs, 0, nil)
	if err == nil {
		t.Fatal("expected oversized batch to be rejected")
	}
}

func TestVerifier_BatchRejectsEmpty(t *testing.T) {
	v := NewVerifier(RateLimitConfig{}, nil, nil)
	_, err := v.VerifyBatch("labs", nil, 0, nil)
	if !errors.Is(err, ledgererr.ErrEmptyPublicInputs) {
		t.Fatalf("expected ErrEmptyPublicInputs for empty batch, got %v", err)
	}
}

func TestAuditChain_VerifyDetectsTampering(t *testing.T) {
	chain := NewAuditChain(nil)
	chain.Append("U", "r1", [][]byte{nonZeroInput()}, 1, 100)
	chain.Append("U", "r2", [][]byte{nonZeroInput()}, 2, 200)

	if err := chain.Verify(); err != nil {
		t.Fatalf("expected clean chain to verify, got %v", err)
	}

	entries := chain.entries
	entries[0].ProofHash[0] ^= 0xFF
	if err := chain.Verify(); err == nil {
		t.Fatal("expected tampered entry to fail verification")
	}
}
