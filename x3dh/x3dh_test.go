package x3dh

import (
	"crypto/sha256"
	"testing"

	"github.com/kaelbauer/signalcore/primitives"
	"github.com/kaelbauer/signalcore/xeddsa"
)

// seeded reproduces a fixed X25519 key pair from a named seed, the
// same "derive a key from a label" pattern the specification's
// literal test scenarios use.
func seeded(t *testing.T, label string) (priv, pub [32]byte) {
	t.Helper()
	sum := sha256.Sum256([]byte(label))
	priv, pub, err := primitives.GenerateX25519(constReader(sum))
	if err != nil {
		t.Fatal(err)
	}
	return priv, pub
}

type constReader [32]byte

func (c constReader) Read(p []byte) (int, error) { return copy(p, c[:]), nil }

type memOPKStore struct {
	keys map[uint32][32]byte
}

func (m *memOPKStore) Lookup(id uint32) ([32]byte, bool) {
	k, ok := m.keys[id]
	return k, ok
}

func (m *memOPKStore) Delete(id uint32) { delete(m.keys, id) }

// TestX3DHAgreement: Alice (IK from seed "A") and Bob (IK from seed
// "B", SPK from seed "Sb", OPK from seed "Ob") must derive identical
// session keys. Alice's ephemeral key is not seeded: RunInitiator
// always draws it from crypto/rand, so the test checks agreement, not
// a fixed SK value.
func TestX3DHAgreement(t *testing.T) {
	aIKPriv, aIKPub := seeded(t, "A")
	bIKPriv, bIKPub := seeded(t, "B")
	bSPKPriv, bSPKPub := seeded(t, "Sb")
	bOPKPriv, bOPKPub := seeded(t, "Ob")

	aliceIdentity := IdentityKeyPair{Private: aIKPriv, Public: aIKPub}
	bobIdentity := IdentityKeyPair{Private: bIKPriv, Public: bIKPub}

	sig, err := xeddsa.Sign(bIKPriv, bSPKPub[:], nil)
	if err != nil {
		t.Fatal(err)
	}
	bob := SignedPreKey{Private: bSPKPriv, Public: bSPKPub, Signature: sig}

	opk := bOPKPub
	bundle := Bundle{
		IdentityKey:     bobIdentity.Public,
		SignedPreKey:    bob.Public,
		SignedPreKeyID:  1,
		Signature:       bob.Signature,
		OneTimePreKey:   &opk,
		OneTimePreKeyID: 7,
	}

	result, err := RunInitiator(aliceIdentity, bundle, xeddsa.Verify)
	if err != nil {
		t.Fatal(err)
	}

	store := &memOPKStore{keys: map[uint32][32]byte{7: bOPKPriv}}
	skBob, err := RunResponder(bobIdentity, bob, store, result.Message)
	if err != nil {
		t.Fatal(err)
	}

	if result.SK != skBob {
		t.Fatalf("session keys diverge: alice=%x bob=%x", result.SK, skBob)
	}
	if _, ok := store.Lookup(7); ok {
		t.Fatal("one-time prekey must be deleted after first use")
	}
}

func TestX3DHWithoutOneTimePreKey(t *testing.T) {
	aIKPriv, aIKPub := seeded(t, "A2")
	bIKPriv, bIKPub := seeded(t, "B2")
	bSPKPriv, bSPKPub := seeded(t, "Sb2")

	aliceIdentity := IdentityKeyPair{Private: aIKPriv, Public: aIKPub}
	bobIdentity := IdentityKeyPair{Private: bIKPriv, Public: bIKPub}

	sig, err := xeddsa.Sign(bIKPriv, bSPKPub[:], nil)
	if err != nil {
		t.Fatal(err)
	}
	bob := SignedPreKey{Private: bSPKPriv, Public: bSPKPub, Signature: sig}

	bundle := Bundle{
		IdentityKey:    bobIdentity.Public,
		SignedPreKey:   bob.Public,
		SignedPreKeyID: 1,
		Signature:      bob.Signature,
	}

	result, err := RunInitiator(aliceIdentity, bundle, xeddsa.Verify)
	if err != nil {
		t.Fatal(err)
	}

	store := &memOPKStore{keys: map[uint32][32]byte{}}
	skBob, err := RunResponder(bobIdentity, bob, store, result.Message)
	if err != nil {
		t.Fatal(err)
	}
	if result.SK != skBob {
		t.Fatal("session keys diverge without an OPK")
	}
}

func TestRunInitiatorRejectsBadSignature(t *testing.T) {
	aIKPriv, aIKPub := seeded(t, "A3")
	_, bIKPub := seeded(t, "B3")
	_, bSPKPub := seeded(t, "Sb3")

	aliceIdentity := IdentityKeyPair{Private: aIKPriv, Public: aIKPub}
	var badSig [64]byte
	bundle := Bundle{
		IdentityKey:    bIKPub,
		SignedPreKey:   bSPKPub,
		SignedPreKeyID: 1,
		Signature:      badSig,
	}
	if _, err := RunInitiator(aliceIdentity, bundle, xeddsa.Verify); err == nil {
		t.Fatal("expected bad prekey signature to be rejected")
	}
}

func TestRunResponderUnknownOPK(t *testing.T) {
	aIKPriv, aIKPub := seeded(t, "A4")
	bIKPriv, bIKPub := seeded(t, "B4")
	bSPKPriv, bSPKPub := seeded(t, "Sb4")

	aliceIdentity := IdentityKeyPair{Private: aIKPriv, Public: aIKPub}
	bobIdentity := IdentityKeyPair{Private: bIKPriv, Public: bIKPub}
	sig, err := xeddsa.Sign(bIKPriv, bSPKPub[:], nil)
	if err != nil {
		t.Fatal(err)
	}
	bob := SignedPreKey{Private: bSPKPriv, Public: bSPKPub, Signature: sig}

	opk := [32]byte{1, 2, 3}
	bundle := Bundle{
		IdentityKey:     bobIdentity.Public,
		SignedPreKey:    bob.Public,
		SignedPreKeyID:  1,
		Signature:       bob.Signature,
		OneTimePreKey:   &opk,
		OneTimePreKeyID: 99,
	}
	result, err := RunInitiator(aliceIdentity, bundle, xeddsa.Verify)
	if err != nil {
		t.Fatal(err)
	}

	store := &memOPKStore{keys: map[uint32][32]byte{}}
	if _, err := RunResponder(bobIdentity, bob, store, result.Message); err != ErrUnknownOPK {
		t.Fatalf("expected ErrUnknownOPK, got %v", err)
	}
}

func TestBundleWireRoundTrip(t *testing.T) {
	_, bIKPub := seeded(t, "B5")
	_, bSPKPub := seeded(t, "Sb5")
	opk := [32]byte{9, 9, 9}
	var sig [64]byte
	copy(sig[:], []byte("signature-placeholder-signature-placeholder!!!"))

	b := Bundle{
		IdentityKey:     bIKPub,
		SignedPreKey:    bSPKPub,
		SignedPreKeyID:  42,
		Signature:       sig,
		OneTimePreKey:   &opk,
		OneTimePreKeyID: 7,
	}
	decoded, err := UnmarshalBundle(b.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if decoded.IdentityKey != b.IdentityKey || decoded.SignedPreKeyID != b.SignedPreKeyID ||
		*decoded.OneTimePreKey != *b.OneTimePreKey || decoded.OneTimePreKeyID != b.OneTimePreKeyID {
		t.Fatal("bundle did not round-trip through the wire format")
	}
}
