// Package xeddsa implements XEdDSA and VXEdDSA: an Edwards-curve
// signature scheme, and its verifiable-random-function sibling, both
// built on a single Montgomery-form (X25519) key pair.
//
// A Montgomery key pair already used for Diffie-Hellman can sign
// messages without publishing a second, Edwards-form key: Sign
// deterministically derives the Edwards twin of the Montgomery
// private scalar and signs with it; Verify performs the birational
// map in the other direction and reduces to a standard Ed25519
// verification.
package xeddsa

import (
	"crypto/ed25519"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
)

const (
	// SignatureSize is the length in bytes of an XEdDSA signature.
	SignatureSize = 64
	// KeySize is the length in bytes of a Montgomery public or
	// private key.
	KeySize = 32
)

// Error conditions named in the XEdDSA/VXEdDSA specification.
var (
	ErrBadLength    = errors.New("xeddsa: bad input length")
	ErrBadPoint     = errors.New("xeddsa: public key does not decode to a valid point")
	ErrBadSignature = errors.New("xeddsa: bad signature")
	ErrBadProof     = errors.New("xeddsa: bad VRF proof")
)

// hash1Prefix domain-separates the nonce hash used by Sign/Prove from
// both ordinary message hashing and from the seed-expansion hashing
// standard Ed25519 performs. It is 32 bytes of 0xFE, matching the
// convention in the XEdDSA specification.
var hash1Prefix = [32]byte{
	0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe, 0xfe,
}

// calculateKeyPair derives the Edwards-form signing scalar a and the
// canonical (positive-sign) Edwards public point A' from a raw,
// RFC 7748-clamped Montgomery private scalar.
func calculateKeyPair(kMont [KeySize]byte) (a *edwards25519.Scalar, aPrime [KeySize]byte, err error) {
	a0, err := new(edwards25519.Scalar).SetBytesWithClamping(kMont[:])
	if err != nil {
		return nil, aPrime, fmt.Errorf("xeddsa: clamp scalar: %w", err)
	}
	A := new(edwards25519.Point).ScalarBaseMult(a0)
	Abytes := A.Bytes()

	sign := Abytes[31] >> 7
	a = a0
	if sign == 1 {
		a = new(edwards25519.Scalar).Negate(a0)
	}
	copy(aPrime[:], Abytes)
	aPrime[31] &= 0x7f
	return a, aPrime, nil
}

// montgomeryToEdwards converts the Montgomery u-coordinate of a
// public key to the canonical (positive-sign) compressed encoding of
// its Edwards twin, via the birational map y = (u-1)/(u+1).
func montgomeryToEdwards(u [KeySize]byte) ([KeySize]byte, error) {
	var out [KeySize]byte

	uElem, err := new(field.Element).SetBytes(u[:])
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrBadPoint, err)
	}
	one, err := new(field.Element).SetBytes(oneBytes())
	if err != nil {
		return out, err
	}
	num := new(field.Element).Subtract(uElem, one)
	den := new(field.Element).Add(uElem, one)
	denInv := new(field.Element).Invert(den)
	y := new(field.Element).Multiply(num, denInv)

	yBytes := y.Bytes()
	yBytes[31] &= 0x7f
	copy(out[:], yBytes)

	if _, err := new(edwards25519.Point).SetBytes(out[:]); err != nil {
		return out, fmt.Errorf("%w: %v", ErrBadPoint, err)
	}
	return out, nil
}

func oneBytes() []byte {
	b := make([]byte, KeySize)
	b[0] = 1
	return b
}

// Sign produces a 64-byte XEdDSA signature over msg using the
// Montgomery private key kMont. rnd supplies the 64 bytes of fresh
// randomness Z mixed into the nonce; a nil rnd selects the
// deterministic mode (Z is all zero), which tests use to obtain
// reproducible signatures.
func Sign(kMont [KeySize]byte, msg []byte, rnd io.Reader) ([SignatureSize]byte, error) {
	var sig [SignatureSize]byte

	a, aPrime, err := calculateKeyPair(kMont)
	if err != nil {
		return sig, err
	}

	var z [64]byte
	if rnd != nil {
		if _, err := io.ReadFull(rnd, z[:]); err != nil {
			return sig, fmt.Errorf("xeddsa: read nonce: %w", err)
		}
	}

	h1 := sha512.New()
	h1.Write(hash1Prefix[:])
	h1.Write(a.Bytes())
	h1.Write(msg)
	h1.Write(z[:])
	r, err := new(edwards25519.Scalar).SetUniformBytes(h1.Sum(nil))
	if err != nil {
		return sig, fmt.Errorf("xeddsa: reduce nonce: %w", err)
	}
	R := new(edwards25519.Point).ScalarBaseMult(r)
	Rbytes := R.Bytes()

	h2 := sha512.New()
	h2.Write(Rbytes)
	h2.Write(aPrime[:])
	h2.Write(msg)
	hScalar, err := new(edwards25519.Scalar).SetUniformBytes(h2.Sum(nil))
	if err != nil {
		return sig, fmt.Errorf("xeddsa: reduce challenge: %w", err)
	}

	s := new(edwards25519.Scalar).MultiplyAdd(hScalar, a, r)

	copy(sig[:32], Rbytes)
	copy(sig[32:], s.Bytes())
	return sig, nil
}

// Verify reports whether sig is a valid XEdDSA signature over msg
// under the Montgomery public key pMont. It returns ErrBadLength if
// sig is not SignatureSize bytes and ErrBadPoint if pMont does not
// decode to a point on the curve; any other failure to verify is
// reported as (false, nil).
func Verify(pMont [KeySize]byte, msg, sig []byte) (bool, error) {
	if len(sig) != SignatureSize {
		return false, ErrBadLength
	}
	aPrime, err := montgomeryToEdwards(pMont)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(aPrime[:]), msg, sig), nil
}
