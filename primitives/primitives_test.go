package primitives

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
)

func TestX25519RoundTrip(t *testing.T) {
	aPriv, aPub, err := GenerateX25519(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	bPriv, bPub, err := GenerateX25519(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	s1, err := X25519(aPriv, bPub)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := X25519(bPriv, aPub)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Fatalf("shared secrets diverge: %x vs %x", s1, s2)
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	var key [KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		t.Fatal(err)
	}
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("the quick brown fox")
	aad := []byte("associated data")

	ct, err := Seal(key, nonce, aad, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := Open(key, nonce, aad, ct)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("got %q, want %q", pt, plaintext)
	}
}

func TestOpenBadTag(t *testing.T) {
	var key [KeySize]byte
	rand.Read(key[:])
	var nonce [NonceSize]byte
	rand.Read(nonce[:])

	ct, err := Seal(key, nonce, nil, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	ct[0] ^= 0xff
	if _, err := Open(key, nonce, nil, ct); err != ErrBadTag {
		t.Fatalf("expected ErrBadTag, got %v", err)
	}
}

func TestSignVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("hello")
	sig := Sign(priv, msg)
	if !Verify(pub, msg, sig) {
		t.Fatal("expected valid signature")
	}
	sig[len(sig)-1] ^= 0xff
	if Verify(pub, msg, sig) {
		t.Fatal("expected invalid signature after bit flip")
	}
}

func TestHKDFDeterministic(t *testing.T) {
	ikm := []byte("input key material")
	salt := []byte("salt")
	info := []byte("info")
	k1, err := HKDF(ikm, salt, info, 64)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := HKDF(ikm, salt, info, 64)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("HKDF output not deterministic")
	}
}
