package zkverify

import (
	"fmt"

	"github.com/medledger/core/ledgererr"
	"github.com/medledger/core/pairing"
)

// PairingBackend performs the cryptographic pairing check for an
// already-shape-validated proof. Pluggable the way the teacher's
// groth16_verifier.go swaps BLSGroth16Backend implementations
// (DefaultGroth16Backend/SetGroth16Backend): production uses
// bn254PairingBackend, tests can inject a deterministic stub instead of
// constructing a real satisfying Groth16 witness by hand.
type PairingBackend interface {
	Verify(vk VerificationKey, pf *parsedProof, publicInputs [][]byte) (bool, error)
}

// bn254PairingBackend is the default PairingBackend. It folds the Groth16
// pairing equation into BN254 group elements (parsing and accumulating the
// verification key's IC terms), then asks pairing.PairingCheck for the final
// multi-pairing equality. pairing.PairingCheck treats that equality as the
// abstract external primitive spec.md §6 describes and does not itself run a
// Miller loop, so this backend fails closed on any non-empty pairing list
// until a deployment injects a PairingBackend backed by a real pairing
// implementation via SetBackend.
type bn254PairingBackend struct{}

func (bn254PairingBackend) Verify(vk VerificationKey, pf *parsedProof, publicInputs [][]byte) (bool, error) {
	return verifyPairing(vk, pf, publicInputs)
}

// verifyPairing checks e(-A,B) * e(Alpha,Beta) * e(IC_input,Gamma) * e(C,Delta) == 1,
// the same Groth16 pairing equation the teacher's groth16_verifier.go checks
// over BLS12-381, retargeted to BN254 via pairing.PairingCheck.
func verifyPairing(vk VerificationKey, pf *parsedProof, publicInputs [][]byte) (bool, error) {
	alpha, err := pairing.ParseG1(vk.Alpha)
	if err != nil {
		return false, fmt.Errorf("zkverify: verification key alpha: %w", err)
	}
	beta, err := pairing.ParseG2(vk.Beta)
	if err != nil {
		return false, fmt.Errorf("zkverify: verification key beta: %w", err)
	}
	gamma, err := pairing.ParseG2(vk.Gamma)
	if err != nil {
		return false, fmt.Errorf("zkverify: verification key gamma: %w", err)
	}
	delta, err := pairing.ParseG2(vk.Delta)
	if err != nil {
		return false, fmt.Errorf("zkverify: verification key delta: %w", err)
	}
	if len(vk.IC) != len(publicInputs)+1 {
		return false, fmt.Errorf("zkverify: %w: IC length %d, need %d", ledgererr.ErrMalformedProofData, len(vk.IC), len(publicInputs)+1)
	}

	icAcc, err := pairing.ParseG1(vk.IC[0])
	if err != nil {
		return false, fmt.Errorf("zkverify: verification key IC[0]: %w", err)
	}
	for i, in := range publicInputs {
		term, err := pairing.ParseG1(vk.IC[i+1])
		if err != nil {
			return false, fmt.Errorf("zkverify: verification key IC[%d]: %w", i+1, err)
		}
		icAcc = pairing.G1Add(icAcc, pairing.G1ScalarMulBytes(term, in))
	}

	negA := pairing.G1Neg(pf.a)
	ok := pairing.PairingCheck(
		[]*pairing.G1Point{negA, alpha, icAcc, pf.c},
		[]*pairing.G2Point{pf.b, beta, gamma, delta},
	)
	return ok, nil
}
