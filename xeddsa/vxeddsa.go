package xeddsa

import (
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// ProofSize is the length in bytes of a VXEdDSA proof.
	ProofSize = 96
	// OutputSize is the length in bytes of the VRF output extracted
	// from a proof.
	OutputSize = 32

	maxHashToPointAttempts = 256
)

// hashToPointPrefix domain-separates VXEdDSA's hash-to-point from
// XEdDSA's nonce hashing.
var hashToPointPrefix = [32]byte{
	0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd,
	0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd,
	0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd,
	0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd, 0xfd,
}

// hashToPoint deterministically maps data to a point on the curve
// using try-and-increment: it is not constant-time, which is only a
// concern when run over secret data. Here it always runs over public
// data (a public key and a message), so the non-constant-time cost is
// a pure efficiency trade-off, not a security one.
func hashToPoint(data []byte) (*edwards25519.Point, error) {
	for counter := 0; counter < maxHashToPointAttempts; counter++ {
		h := sha512.New()
		h.Write(hashToPointPrefix[:])
		h.Write(data)
		h.Write([]byte{byte(counter)})
		sum := h.Sum(nil)

		var candidate [32]byte
		copy(candidate[:], sum[:32])
		candidate[31] &= 0x7f

		p, err := new(edwards25519.Point).SetBytes(candidate[:])
		if err == nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("xeddsa: hash-to-point did not converge after %d attempts", maxHashToPointAttempts)
}

// Prove computes a 96-byte VXEdDSA proof that the holder of the
// Montgomery private key kMont produced the VRF output for msg. The
// first 32 bytes of the proof are the compressed point from which
// ProofToHash extracts the uniform output.
func Prove(kMont [KeySize]byte, msg []byte) ([ProofSize]byte, error) {
	var proof [ProofSize]byte

	a, aPrime, err := calculateKeyPair(kMont)
	if err != nil {
		return proof, err
	}

	Bv, err := hashToPoint(append(append([]byte(nil), aPrime[:]...), msg...))
	if err != nil {
		return proof, err
	}
	V := new(edwards25519.Point).ScalarMult(a, Bv)
	Vbytes := V.Bytes()

	// The nonce is derived deterministically from the secret scalar,
	// the message, and V, so that ProofToHash(Prove(k, M)) is stable
	// across calls without requiring external randomness.
	h1 := sha512.New()
	h1.Write(hash1Prefix[:])
	h1.Write(a.Bytes())
	h1.Write(msg)
	h1.Write(Vbytes)
	r, err := new(edwards25519.Scalar).SetUniformBytes(h1.Sum(nil))
	if err != nil {
		return proof, fmt.Errorf("xeddsa: reduce VRF nonce: %w", err)
	}

	R := new(edwards25519.Point).ScalarBaseMult(r)
	Rbytes := R.Bytes()
	Rv := new(edwards25519.Point).ScalarMult(r, Bv)
	Rvbytes := Rv.Bytes()

	h2 := sha512.New()
	h2.Write(aPrime[:])
	h2.Write(Vbytes)
	h2.Write(Rbytes)
	h2.Write(Rvbytes)
	h2.Write(msg)
	hScalar, err := new(edwards25519.Scalar).SetUniformBytes(h2.Sum(nil))
	if err != nil {
		return proof, fmt.Errorf("xeddsa: reduce VRF challenge: %w", err)
	}

	s := new(edwards25519.Scalar).MultiplyAdd(hScalar, a, r)

	copy(proof[0:32], Vbytes)
	copy(proof[32:64], hScalar.Bytes())
	copy(proof[64:96], s.Bytes())
	return proof, nil
}

// ProofToHash extracts the uniformly-random 32-byte VRF output from a
// proof produced by Prove. It performs no verification; callers that
// have not already verified the proof with Verify2 must not treat the
// result as trustworthy.
func ProofToHash(proof [ProofSize]byte) ([OutputSize]byte, error) {
	var out [OutputSize]byte
	V, err := new(edwards25519.Point).SetBytes(proof[0:32])
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrBadProof, err)
	}
	cV := new(edwards25519.Point).MultByCofactor(V)
	sum := sha512.Sum512(cV.Bytes())
	copy(out[:], sum[:32])
	return out, nil
}

// Verify2 verifies a VXEdDSA proof produced over msg by the holder of
// the Montgomery private key corresponding to pMont, and returns the
// VRF output on success. On failure it returns a zero output and
// false.
func Verify2(pMont [KeySize]byte, msg []byte, proof [ProofSize]byte) ([OutputSize]byte, bool, error) {
	var zero [OutputSize]byte

	aPrime, err := montgomeryToEdwards(pMont)
	if err != nil {
		return zero, false, err
	}
	Aprime, err := new(edwards25519.Point).SetBytes(aPrime[:])
	if err != nil {
		return zero, false, fmt.Errorf("%w: %v", ErrBadPoint, err)
	}

	V, err := new(edwards25519.Point).SetBytes(proof[0:32])
	if err != nil {
		return zero, false, nil
	}
	h, err := new(edwards25519.Scalar).SetCanonicalBytes(proof[32:64])
	if err != nil {
		return zero, false, nil
	}
	s, err := new(edwards25519.Scalar).SetCanonicalBytes(proof[64:96])
	if err != nil {
		return zero, false, nil
	}

	Bv, err := hashToPoint(append(append([]byte(nil), aPrime[:]...), msg...))
	if err != nil {
		return zero, false, err
	}

	negH := new(edwards25519.Scalar).Negate(h)
	Rcheck := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(negH, Aprime, s)

	sBv := new(edwards25519.Point).ScalarMult(s, Bv)
	hV := new(edwards25519.Point).ScalarMult(h, V)
	RvCheck := new(edwards25519.Point).Add(sBv, new(edwards25519.Point).Negate(hV))

	h2 := sha512.New()
	h2.Write(aPrime[:])
	h2.Write(V.Bytes())
	h2.Write(Rcheck.Bytes())
	h2.Write(RvCheck.Bytes())
	h2.Write(msg)
	hWant, err := new(edwards25519.Scalar).SetUniformBytes(h2.Sum(nil))
	if err != nil {
		return zero, false, fmt.Errorf("xeddsa: reduce VRF challenge: %w", err)
	}

	if h.Equal(hWant) != 1 {
		return zero, false, nil
	}

	var proofOut [ProofSize]byte
	copy(proofOut[:], proof[:])
	out, err := ProofToHash(proofOut)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}
