// Package x3dh implements the Extended Triple Diffie-Hellman
// handshake: an initiator establishes a shared secret with a
// responder from a published prekey bundle, without either party
// needing to be online at the same time.
package x3dh

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/kaelbauer/signalcore/primitives"
)

// Error conditions named in the X3DH specification.
var (
	ErrBadPrekeySignature = errors.New("x3dh: signed prekey signature does not verify")
	ErrUnknownOPK         = errors.New("x3dh: one-time prekey id not found")
	ErrMissingPrekey      = errors.New("x3dh: bundle is missing a required prekey")
	ErrDerivationFailed   = errors.New("x3dh: key derivation failed")
)

// info is the HKDF info string domain-separating X3DH's root key
// derivation, per the Signal specification.
const info = "X3DH-Signal"

// domainSeparator is 32 bytes of 0xFF, prepended to the concatenated
// Diffie-Hellman outputs to prevent a cross-protocol attacker from
// confusing this derivation with one performed over a different
// curve or construction.
var domainSeparator = [32]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// IdentityKeyPair is a user's long-lived X25519 identity key.
type IdentityKeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// SignedPreKey is a medium-lived X25519 key pair, signed by the
// owner's identity key so recipients can authenticate it.
type SignedPreKey struct {
	Private   [32]byte
	Public    [32]byte
	Signature [64]byte
}

// OneTimePreKey is a single-use X25519 key pair, consumed and
// discarded the first time a handshake uses it.
type OneTimePreKey struct {
	ID      uint32
	Private [32]byte
	Public  [32]byte
}

// Bundle is the public material a responder publishes so that an
// initiator can start a session asynchronously.
type Bundle struct {
	IdentityKey    [32]byte
	SignedPreKey   [32]byte
	SignedPreKeyID uint32
	Signature      [64]byte
	OneTimePreKey  *[32]byte
	OneTimePreKeyID uint32
}

// InitialMessage is the first message of a session, sent by the
// initiator; it carries the handshake inputs the responder needs to
// derive the same shared secret.
type InitialMessage struct {
	IdentityKey     [32]byte
	EphemeralKey    [32]byte
	SignedPreKeyID  uint32
	OneTimePreKeyID uint32 // Meaningful only when HasOneTimePreKey is true.
	HasOneTimePreKey bool
}

// GenerateIdentity draws a fresh identity key pair.
func GenerateIdentity(r io.Reader) (IdentityKeyPair, error) {
	priv, pub, err := primitives.GenerateX25519(r)
	if err != nil {
		return IdentityKeyPair{}, fmt.Errorf("x3dh: GenerateIdentity: %w", err)
	}
	return IdentityKeyPair{Private: priv, Public: pub}, nil
}

// GenerateSignedPreKey draws a fresh signed prekey and signs its
// public point with the XEdDSA-compatible Ed25519 signature produced
// by the caller-supplied sign function — callers typically pass
// xeddsa.Sign bound to the identity's private scalar.
func GenerateSignedPreKey(r io.Reader, sign func(msg []byte) ([64]byte, error)) (SignedPreKey, error) {
	priv, pub, err := primitives.GenerateX25519(r)
	if err != nil {
		return SignedPreKey{}, fmt.Errorf("x3dh: GenerateSignedPreKey: %w", err)
	}
	sig, err := sign(pub[:])
	if err != nil {
		return SignedPreKey{}, fmt.Errorf("x3dh: GenerateSignedPreKey: sign: %w", err)
	}
	return SignedPreKey{Private: priv, Public: pub, Signature: sig}, nil
}

// GenerateOneTimePreKeys draws n fresh one-time prekeys, numbered
// sequentially starting at startID.
func GenerateOneTimePreKeys(r io.Reader, startID uint32, n int) ([]OneTimePreKey, error) {
	out := make([]OneTimePreKey, n)
	for i := 0; i < n; i++ {
		priv, pub, err := primitives.GenerateX25519(r)
		if err != nil {
			return nil, fmt.Errorf("x3dh: GenerateOneTimePreKeys: %w", err)
		}
		out[i] = OneTimePreKey{ID: startID + uint32(i), Private: priv, Public: pub}
	}
	return out, nil
}

// verifyFunc is the verification side of GenerateSignedPreKey,
// taking a caller-supplied XEdDSA-compatible verify function so this
// package does not need to import xeddsa directly.
type verifyFunc func(pub [32]byte, msg, sig []byte) (bool, error)

// InitiatorResult is the output of RunInitiator.
type InitiatorResult struct {
	SK      [32]byte
	Message InitialMessage
	// Ephemeral is the initiator's fresh ephemeral key pair, used for
	// DH2, DH3 and DH4. ratchet.NewInitiator does not take it: it
	// generates a separate key pair for the first sending chain.
	Ephemeral struct {
		Private [32]byte
		Public  [32]byte
	}
}

// RunInitiator performs the initiator's half of X3DH against a
// responder's bundle, verifying the signed prekey's signature with
// verify before deriving anything.
func RunInitiator(identity IdentityKeyPair, bundle Bundle, verify verifyFunc) (InitiatorResult, error) {
	var result InitiatorResult

	ok, err := verify(bundle.IdentityKey, bundle.SignedPreKey[:], bundle.Signature[:])
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrBadPrekeySignature, err)
	}
	if !ok {
		return result, ErrBadPrekeySignature
	}

	ephPriv, ephPub, err := primitives.GenerateX25519(rand.Reader)
	if err != nil {
		return result, fmt.Errorf("x3dh: RunInitiator: %w", err)
	}

	dh1, err := primitives.X25519(identity.Private, bundle.SignedPreKey)
	if err != nil {
		return result, fmt.Errorf("%w: DH1: %v", ErrDerivationFailed, err)
	}
	dh2, err := primitives.X25519(ephPriv, bundle.IdentityKey)
	if err != nil {
		return result, fmt.Errorf("%w: DH2: %v", ErrDerivationFailed, err)
	}
	dh3, err := primitives.X25519(ephPriv, bundle.SignedPreKey)
	if err != nil {
		return result, fmt.Errorf("%w: DH3: %v", ErrDerivationFailed, err)
	}

	ikm := make([]byte, 0, 32*5)
	ikm = append(ikm, domainSeparator[:]...)
	ikm = append(ikm, dh1[:]...)
	ikm = append(ikm, dh2[:]...)
	ikm = append(ikm, dh3[:]...)

	hasOPK := bundle.OneTimePreKey != nil
	if hasOPK {
		dh4, err := primitives.X25519(ephPriv, *bundle.OneTimePreKey)
		if err != nil {
			return result, fmt.Errorf("%w: DH4: %v", ErrDerivationFailed, err)
		}
		ikm = append(ikm, dh4[:]...)
	}

	sk, err := primitives.HKDF(ikm, make([]byte, 32), []byte(info), 32)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrDerivationFailed, err)
	}

	copy(result.SK[:], sk)
	result.Ephemeral.Private = ephPriv
	result.Ephemeral.Public = ephPub
	result.Message = InitialMessage{
		IdentityKey:      identity.Public,
		EphemeralKey:     ephPub,
		SignedPreKeyID:   bundle.SignedPreKeyID,
		OneTimePreKeyID:  bundle.OneTimePreKeyID,
		HasOneTimePreKey: hasOPK,
	}
	primitives.Wipe(ikm)
	return result, nil
}

// OneTimePreKeyStore looks up and deletes one-time prekeys by ID. The
// responder deletes the consumed key before sending any reply.
type OneTimePreKeyStore interface {
	Lookup(id uint32) (priv [32]byte, ok bool)
	Delete(id uint32)
}

// RunResponder performs the responder's half of X3DH, reversing the
// Diffie-Hellman operands relative to RunInitiator, and deleting the
// consumed one-time prekey (if any) from opks before returning.
func RunResponder(identity IdentityKeyPair, signedPreKey SignedPreKey, opks OneTimePreKeyStore, msg InitialMessage) ([32]byte, error) {
	var sk [32]byte

	dh1, err := primitives.X25519(signedPreKey.Private, msg.IdentityKey)
	if err != nil {
		return sk, fmt.Errorf("%w: DH1: %v", ErrDerivationFailed, err)
	}
	dh2, err := primitives.X25519(identity.Private, msg.EphemeralKey)
	if err != nil {
		return sk, fmt.Errorf("%w: DH2: %v", ErrDerivationFailed, err)
	}
	dh3, err := primitives.X25519(signedPreKey.Private, msg.EphemeralKey)
	if err != nil {
		return sk, fmt.Errorf("%w: DH3: %v", ErrDerivationFailed, err)
	}

	ikm := make([]byte, 0, 32*5)
	ikm = append(ikm, domainSeparator[:]...)
	ikm = append(ikm, dh1[:]...)
	ikm = append(ikm, dh2[:]...)
	ikm = append(ikm, dh3[:]...)

	if msg.HasOneTimePreKey {
		opkPriv, ok := opks.Lookup(msg.OneTimePreKeyID)
		if !ok {
			return sk, ErrUnknownOPK
		}
		dh4, err := primitives.X25519(opkPriv, msg.EphemeralKey)
		if err != nil {
			return sk, fmt.Errorf("%w: DH4: %v", ErrDerivationFailed, err)
		}
		ikm = append(ikm, dh4[:]...)
		// The OPK must be deleted before any reply is emitted.
		opks.Delete(msg.OneTimePreKeyID)
	}

	out, err := primitives.HKDF(ikm, make([]byte, 32), []byte(info), 32)
	if err != nil {
		return sk, fmt.Errorf("%w: %v", ErrDerivationFailed, err)
	}
	copy(sk[:], out)
	primitives.Wipe(ikm)
	return sk, nil
}
