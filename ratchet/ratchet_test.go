package ratchet

import (
	"bytes"
	"crypto/rand"
	"testing"

	mrand "github.com/ericlagergren/saferand"

	"github.com/kaelbauer/signalcore/primitives"
)

func newPair(t *testing.T) (alice, bob *Session) {
	t.Helper()
	var sk [32]byte
	if _, err := rand.Read(sk[:]); err != nil {
		t.Fatal(err)
	}
	bobPriv, bobPub, err := primitives.GenerateX25519(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	bob, err = NewResponder(sk, bobPriv, bobPub)
	if err != nil {
		t.Fatal(err)
	}
	alice, err = NewInitiator(sk, bobPub)
	if err != nil {
		t.Fatal(err)
	}
	return alice, bob
}

// TestPingPong reproduces the specification's literal scenario 3:
// Alice sends, Bob receives (which runs his first DH ratchet step) and
// replies, both decrypt correctly.
func TestPingPong(t *testing.T) {
	alice, bob := newPair(t)

	msg, err := alice.Seal([]byte("ping"), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := bob.Open(msg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "ping" {
		t.Fatalf("got %q", got)
	}

	reply, err := bob.Seal([]byte("pong"), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err = alice.Open(reply, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "pong" {
		t.Fatalf("got %q", got)
	}
}

func TestAliceBobManyMessages(t *testing.T) {
	alice, bob := newPair(t)

	const N = 200
	send, recv := alice, bob
	plaintext := make([]byte, 256)
	ad := make([]byte, 64)
	for i := 0; i < N; i++ {
		rand.Read(plaintext)
		rand.Read(ad)
		msg, err := send.Seal(plaintext, ad)
		if err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
		got, err := recv.Open(msg, ad)
		if err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
		if !bytes.Equal(plaintext, got) {
			t.Fatalf("#%d: plaintext mismatch", i)
		}
		send, recv = recv, send
	}
}

// TestOutOfOrder reproduces scenario 4: five messages delivered out
// of order all decrypt.
func TestOutOfOrder(t *testing.T) {
	alice, bob := newPair(t)

	const N = 5
	msgs := make([]Message, N)
	plaintext := []byte("fixed plaintext")
	for i := range msgs {
		m, err := alice.Seal(plaintext, nil)
		if err != nil {
			t.Fatal(err)
		}
		msgs[i] = m
	}
	mrand.Shuffle(len(msgs), func(i, j int) { msgs[i], msgs[j] = msgs[j], msgs[i] })

	for i, m := range msgs {
		got, err := bob.Open(m, nil)
		if err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("#%d: plaintext mismatch", i)
		}
	}
}

// TestDroppedMessage reproduces scenario 5: a lost message is
// recovered once it finally arrives.
func TestDroppedMessage(t *testing.T) {
	alice, bob := newPair(t)

	m1, err := alice.Seal([]byte("one"), nil)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := alice.Seal([]byte("two"), nil)
	if err != nil {
		t.Fatal(err)
	}
	m3, err := alice.Seal([]byte("three"), nil)
	if err != nil {
		t.Fatal(err)
	}

	got2, err := bob.Open(m2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got2) != "two" {
		t.Fatalf("got %q", got2)
	}
	got3, err := bob.Open(m3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got3) != "three" {
		t.Fatalf("got %q", got3)
	}
	got1, err := bob.Open(m1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got1) != "one" {
		t.Fatalf("got %q", got1)
	}
}

// TestChainOverflow reproduces scenario 6: sending 2000 messages in
// one chain and only delivering the last one must fail with
// ErrChainTooLong.
func TestChainOverflow(t *testing.T) {
	alice, bob := newPair(t)

	const N = MaxSkipPerChain + 1000
	var last Message
	for i := 0; i < N; i++ {
		m, err := alice.Seal([]byte("x"), nil)
		if err != nil {
			t.Fatal(err)
		}
		last = m
	}
	if _, err := bob.Open(last, nil); !errorIsChainTooLong(err) {
		t.Fatalf("expected ErrChainTooLong, got %v", err)
	}
}

func errorIsChainTooLong(err error) bool {
	for err != nil {
		if err == ErrChainTooLong {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func TestResume(t *testing.T) {
	alice, bob := newPair(t)

	msg, err := alice.Seal([]byte("before resume"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bob.Open(msg, nil); err != nil {
		t.Fatal(err)
	}

	bob2 := Resume(bob.State().Clone())
	reply, err := bob2.Seal([]byte("after resume"), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := alice.Open(reply, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "after resume" {
		t.Fatalf("got %q", got)
	}
}

func TestSealBeforeSendChainPanics(t *testing.T) {
	var sk [32]byte
	rand.Read(sk[:])
	priv, pub, err := primitives.GenerateX25519(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	bob, err := NewResponder(sk, priv, pub)
	if err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic sealing before the sending chain exists")
		}
	}()
	bob.Seal(nil, nil)
}

func TestFailedOpenDoesNotMutateState(t *testing.T) {
	alice, bob := newPair(t)

	msg, err := alice.Seal([]byte("hello"), nil)
	if err != nil {
		t.Fatal(err)
	}
	before := *bob.State()

	msg.Ciphertext[0] ^= 0xff
	if _, err := bob.Open(msg, nil); err == nil {
		t.Fatal("expected decryption failure")
	}

	after := *bob.State()
	if before != after {
		t.Fatal("failed Open must not mutate session state")
	}
}
