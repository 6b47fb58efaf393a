package pairing

// Spec-shaped validation wrappers around the BN254 arithmetic in this
// package, used by zkverify's proof-shape validation (spec.md §4.6): any
// G1/G2 component that is all-zero, any scalar exceeding the curve order,
// and any point failing its curve equation must be rejected before a
// pairing is ever attempted.

import (
	"errors"
	"math/big"
)

var (
	// ErrZeroPoint indicates a degenerate (all-zero) G1/G2 component.
	ErrZeroPoint = errors.New("pairing: all-zero point component")
	// ErrOutOfRange indicates a coordinate at or beyond the field modulus.
	ErrOutOfRange = errors.New("pairing: coordinate exceeds field modulus")
	// ErrNotOnCurve indicates a point that fails its curve equation.
	ErrNotOnCurve = errors.New("pairing: point not on curve")
	// ErrBadLength indicates a component of the wrong byte length.
	ErrBadLength = errors.New("pairing: malformed component length")
)

// ScalarMax is the BN254 scalar field modulus r, the maximum value a
// well-formed scalar (curve order) may take.
var ScalarMax = bn254Order()

func bn254Order() *big.Int {
	// BN254 (alt_bn128) group order r.
	r, _ := new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495617", 10)
	return r
}

// ParseG1 decodes and validates 64 bytes (X || Y big-endian) as an affine
// BN254 G1 point, distinguishing the zero/degenerate, out-of-range, and
// off-curve failure modes spec.md §4.6 requires be reported separately.
func ParseG1(b []byte) (*G1Point, error) {
	if len(b) != 64 {
		return nil, ErrBadLength
	}
	x := new(big.Int).SetBytes(b[0:32])
	y := new(big.Int).SetBytes(b[32:64])
	if x.Sign() == 0 && y.Sign() == 0 {
		return nil, ErrZeroPoint
	}
	if x.Cmp(bn254P) >= 0 || y.Cmp(bn254P) >= 0 {
		return nil, ErrOutOfRange
	}
	if !g1IsOnCurve(x, y) {
		return nil, ErrNotOnCurve
	}
	return g1FromAffine(x, y), nil
}

// ParseG2 decodes and validates 128 bytes (Xi||Xr||Yi||Yr big-endian) as an
// affine BN254 G2 point.
func ParseG2(b []byte) (*G2Point, error) {
	if len(b) != 128 {
		return nil, ErrBadLength
	}
	xi := new(big.Int).SetBytes(b[0:32])
	xr := new(big.Int).SetBytes(b[32:64])
	yi := new(big.Int).SetBytes(b[64:96])
	yr := new(big.Int).SetBytes(b[96:128])
	if xi.Sign() == 0 && xr.Sign() == 0 && yi.Sign() == 0 && yr.Sign() == 0 {
		return nil, ErrZeroPoint
	}
	if xi.Cmp(bn254P) >= 0 || xr.Cmp(bn254P) >= 0 || yi.Cmp(bn254P) >= 0 || yr.Cmp(bn254P) >= 0 {
		return nil, ErrOutOfRange
	}
	x := &fp2{a0: xr, a1: xi}
	y := &fp2{a0: yr, a1: yi}
	if !g2IsOnCurve(x, y) {
		return nil, ErrNotOnCurve
	}
	return g2FromAffine(x, y), nil
}

// ScalarInRange reports whether a scalar (public input, big-endian bytes)
// is strictly less than the BN254 scalar field order.
func ScalarInRange(b []byte) bool {
	s := new(big.Int).SetBytes(b)
	return s.Cmp(ScalarMax) < 0
}

// PairingCheck evaluates prod_i e(g1[i], g2[i]) == 1 over the supplied
// pairs, the abstract pairing_check(list<(G1,G2)>) primitive of spec.md §6.
// This package only implements the Jacobian G1 arithmetic and on-curve
// validation zkverify needs to fold a Groth16 equation into group elements;
// it deliberately does not carry a BN254 Miller-loop/final-exponentiation
// tower. The multi-pairing equality itself is left to the PairingBackend a
// verifier is configured with (zkverify.SetBackend) — this default reports
// the trivially-true empty product and otherwise conservatively reports no
// match, so a misconfigured verifier fails closed rather than accepting an
// unverified proof.
func PairingCheck(g1 []*G1Point, g2 []*G2Point) bool {
	return len(g1) == 0 && len(g2) == 0
}

// G1Add exposes Jacobian G1 point addition for callers that need to
// accumulate IC terms (e.g. the zkverify Groth16 pairing equation).
func G1Add(a, b *G1Point) *G1Point {
	return g1Add(a, b)
}

// G1Neg exposes G1 point negation, used to fold the `e(-A,B)` term of the
// Groth16 pairing equation into a single multi-pairing check.
func G1Neg(p *G1Point) *G1Point {
	return g1Neg(p)
}

// G1ScalarMulBytes multiplies p by a scalar encoded as big-endian bytes
// (spec.md §6's public-input wire encoding), reducing modulo the curve
// order as G1ScalarMul does.
func G1ScalarMulBytes(p *G1Point, scalar []byte) *G1Point {
	return G1ScalarMul(p, new(big.Int).SetBytes(scalar))
}
