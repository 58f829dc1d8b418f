// Package primitives wraps the raw cryptographic building blocks used
// throughout signalcore: Curve25519 Diffie-Hellman, Ed25519 signing,
// HKDF-SHA-256, AES-256-GCM, and a CSPRNG. It contains no protocol
// logic — no sessions, no handshakes, no framing.
package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size in bytes of an X25519 scalar, public point,
	// and every derived symmetric key in this package.
	KeySize = 32
	// NonceSize is the size in bytes of an AES-256-GCM nonce.
	NonceSize = 12
	// TagSize is the size in bytes of an AES-256-GCM authentication tag.
	TagSize = 16
)

// ErrAllZeroOutput is returned by X25519 when the computed shared
// secret is the all-zero point, which happens only for maliciously
// chosen public keys.
var ErrAllZeroOutput = errors.New("primitives: all-zero X25519 output")

// ErrBadTag is returned by Open when the AEAD authentication tag does
// not verify.
var ErrBadTag = errors.New("primitives: AEAD authentication failed")

// GenerateX25519 draws a fresh, RFC 7748-clamped X25519 key pair from
// r. The returned scalar is the private key; the returned point is
// its public key.
func GenerateX25519(r io.Reader) (scalar, public [KeySize]byte, err error) {
	if _, err = io.ReadFull(r, scalar[:]); err != nil {
		return scalar, public, fmt.Errorf("primitives: GenerateX25519: %w", err)
	}
	Clamp(&scalar)
	pub, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return scalar, public, fmt.Errorf("primitives: GenerateX25519: %w", err)
	}
	copy(public[:], pub)
	return scalar, public, nil
}

// Clamp applies the RFC 7748 clamping operation to a raw 32-byte
// X25519 scalar in place.
func Clamp(scalar *[KeySize]byte) {
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
}

// X25519 computes the Diffie-Hellman shared secret between scalar and
// point. It rejects the all-zero output, since that only occurs for a
// small-order or otherwise malicious public key.
func X25519(scalar, point [KeySize]byte) ([KeySize]byte, error) {
	var out [KeySize]byte
	shared, err := curve25519.X25519(scalar[:], point[:])
	if err != nil {
		// With fixed 32-byte inputs, curve25519.X25519 fails only when
		// the output is all zero.
		return out, fmt.Errorf("%w: %v", ErrAllZeroOutput, err)
	}
	copy(out[:], shared)
	if isAllZero(out[:]) {
		return out, ErrAllZeroOutput
	}
	return out, nil
}

func isAllZero(b []byte) bool {
	var acc byte
	for _, c := range b {
		acc |= c
	}
	return acc == 0
}

// Sign produces a plain Ed25519 signature over msg using the 64-byte
// Ed25519 private key priv. This is the stdlib signature scheme, used
// where a caller holds a native Ed25519 key rather than an X25519 one
// — XEdDSA (package xeddsa) is the entry point for signing with a
// Montgomery key pair.
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify reports whether sig is a valid Ed25519 signature over msg
// under pub.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pub, msg, sig)
}

// HKDF runs HKDF-SHA-256 over ikm with the given salt and info and
// returns l bytes of output key material.
func HKDF(ikm, salt, info []byte, l int) ([]byte, error) {
	out := make([]byte, l)
	r := hkdf.New(sha256.New, ikm, salt, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("primitives: HKDF: %w", err)
	}
	return out, nil
}

// HMAC computes HMAC-SHA-256 over msg under key.
func HMAC(key, msg []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(msg)
	return h.Sum(nil)
}

// Seal encrypts and authenticates plaintext under an AES-256-GCM key
// keyed by key, authenticating aad, using the 12-byte nonce.
func Seal(key [KeySize]byte, nonce [NonceSize]byte, aad, plaintext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce[:], plaintext, aad), nil
}

// Open decrypts and authenticates ciphertext under an AES-256-GCM key
// keyed by key, authenticating aad, using the 12-byte nonce. Open
// returns ErrBadTag if the tag does not verify.
func Open(key [KeySize]byte, nonce [NonceSize]byte, aad, ciphertext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, ErrBadTag
	}
	return plaintext, nil
}

func newGCM(key [KeySize]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("primitives: AES key setup: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("primitives: GCM setup: %w", err)
	}
	return aead, nil
}

// Random returns n cryptographically random bytes read from the OS
// CSPRNG.
func Random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("primitives: Random: %w", err)
	}
	return b, nil
}

// Wipe overwrites b with zeros. The //go:noinline pragma and the call
// to runtime.KeepAlive prevent the compiler from eliding the write as
// dead code, which it would otherwise be free to do since b is never
// read again.
//
//go:noinline
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
