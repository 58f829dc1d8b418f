// Package ratchet implements the Double Ratchet Algorithm: a stateful
// send/receive machine combining a Diffie-Hellman ratchet (for
// post-compromise recovery) with a symmetric chain ratchet (for
// per-message forward secrecy).
//
// A session is single-owner: exactly one caller may call Seal or Open
// on a given *Session at a time, and the package starts no goroutines
// of its own.
package ratchet

import (
	"errors"
	"fmt"

	"github.com/kaelbauer/signalcore/primitives"
)

// ErrDecryptFailed is returned by Open when the message's AEAD tag
// does not verify. This is expected during normal operation — a
// forged packet or an expired skipped key — and callers typically
// discard the message and continue.
var ErrDecryptFailed = errors.New("ratchet: message authentication failed")

// State is a session's complete cryptographic state. It is a plain
// struct so that callers may persist and resume it (see Resume)
// across process restarts; nothing here is hidden behind interfaces.
type State struct {
	// DHs is the sending (self) ratchet key pair.
	DHs struct {
		Private [32]byte
		Public  [32]byte
	}
	// DHr is the peer's current ratchet public key. HasDHr is false
	// until the first DH ratchet step runs (responder-initialized
	// sessions start this way).
	DHr    [32]byte
	HasDHr bool

	RK [32]byte

	CKs    [32]byte
	HasCKs bool
	CKr    [32]byte
	HasCKr bool

	Ns, Nr, PN uint32
}

// Clone performs a deep copy of the state. *State contains no
// pointers or slices, so clone is a plain value copy, but the method
// is kept so callers never need to know that.
func (s *State) Clone() *State {
	c := *s
	return &c
}

func (s *State) wipe() {
	primitives.Wipe(s.DHs.Private[:])
	primitives.Wipe(s.RK[:])
	primitives.Wipe(s.CKs[:])
	primitives.Wipe(s.CKr[:])
}

// Message is a single ciphertext produced by Seal and consumed by
// Open.
type Message struct {
	Header     Header
	Ciphertext []byte
}

// Session encapsulates one side of an asynchronous, authenticated
// conversation.
type Session struct {
	state *State
	store Store
}

// Option configures a Session.
type Option func(*Session)

// WithStore overrides the default in-memory skipped-key store. Most
// callers do not need this; it exists for callers that want to cap
// memory differently or persist skipped keys alongside session state.
func WithStore(store Store) Option {
	return func(s *Session) { s.store = store }
}

func applyOptions(s *Session, opts []Option) {
	for _, fn := range opts {
		fn(s)
	}
	if s.store == nil {
		s.store = newMemoryStore()
	}
}

// NewInitiator creates a session for the party that ran the
// initiator's half of X3DH. SK is the 32-byte shared secret X3DH
// produced; dhr is the responder's signed prekey public point, used
// as the initial DH ratchet target.
//
// Per the specification, the initiator immediately runs one
// half-step of the DH ratchet so that it can send before ever
// receiving a reply.
func NewInitiator(SK [32]byte, dhr [32]byte, opts ...Option) (*Session, error) {
	s := &Session{}
	applyOptions(s, opts)

	priv, pub, err := generateDH()
	if err != nil {
		return nil, fmt.Errorf("ratchet: NewInitiator: %w", err)
	}

	dh, err := primitives.X25519(priv, dhr)
	if err != nil {
		return nil, fmt.Errorf("ratchet: NewInitiator: %w", err)
	}
	rk, cks, err := kdfRK(SK, dh)
	if err != nil {
		return nil, fmt.Errorf("ratchet: NewInitiator: %w", err)
	}

	state := &State{RK: rk, DHr: dhr, HasDHr: true, CKs: cks, HasCKs: true}
	state.DHs.Private = priv
	state.DHs.Public = pub
	s.state = state
	return s, nil
}

// NewResponder creates a session for the party that ran the
// responder's half of X3DH. SK is the shared secret; dhs is the
// signed prekey pair the responder already published (and whose
// public half the initiator used as dhr above). The responder has no
// sending chain until the first inbound message triggers a DH
// ratchet step.
func NewResponder(SK [32]byte, dhsPriv, dhsPub [32]byte, opts ...Option) (*Session, error) {
	s := &Session{}
	applyOptions(s, opts)

	state := &State{RK: SK}
	state.DHs.Private = dhsPriv
	state.DHs.Public = dhsPub
	s.state = state
	return s, nil
}

// Resume continues a session from previously saved state, e.g. after
// a process restart.
func Resume(state *State, opts ...Option) *Session {
	s := &Session{state: state}
	applyOptions(s, opts)
	return s
}

// State returns the session's current state, e.g. so the caller can
// persist it. The caller must not mutate the returned value while the
// Session is in use.
func (s *Session) State() *State {
	return s.state
}

// Seal advances the sending chain, encrypts plaintext, authenticates
// additionalData, and returns the resulting message. Seal panics if
// the session has no sending chain yet (a freshly created responder
// session that has not received its first message).
func (s *Session) Seal(plaintext, additionalData []byte) (Message, error) {
	st := s.state
	if !st.HasCKs {
		panic("ratchet: Seal called before the sending chain is established")
	}

	newCKs, mk := kdfCK(st.CKs)
	h := Header{DHPub: st.DHs.Public, PN: st.PN, N: st.Ns}
	ad := concat(additionalData, h)

	ct, err := seal(mk, plaintext, ad)
	primitives.Wipe(mk[:])
	if err != nil {
		return Message{}, fmt.Errorf("ratchet: Seal: %w", err)
	}

	st.CKs = newCKs
	st.Ns++
	return Message{Header: h, Ciphertext: ct}, nil
}

// Open authenticates additionalData, decrypts msg, and returns the
// resulting plaintext. Session state is only mutated if decryption
// succeeds — a failed Open leaves the session exactly as it was.
func (s *Session) Open(msg Message, additionalData []byte) ([]byte, error) {
	h := msg.Header
	ad := concat(additionalData, h)

	if mk, err := s.store.LoadKey(h.N, h.DHPub); err == nil {
		pt, openErr := open(mk, msg.Ciphertext, ad)
		if openErr != nil {
			// Put the key back so that a message that fails to
			// authenticate does not consume it.
			storeErr := s.store.StoreKey(h.N, h.DHPub, mk)
			primitives.Wipe(mk[:])
			if storeErr != nil {
				return nil, storeErr
			}
			return nil, ErrDecryptFailed
		}
		primitives.Wipe(mk[:])
		return pt, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Work on a clone so a failed decryption never mutates the live
	// session state.
	tmp := s.state.Clone()

	if !tmp.HasDHr || tmp.DHr != h.DHPub {
		if err := skipMessageKeys(tmp, s.store, h.PN); err != nil {
			return nil, err
		}
		if err := dhRatchet(tmp, h.DHPub); err != nil {
			return nil, fmt.Errorf("ratchet: Open: %w", err)
		}
	}
	if err := skipMessageKeys(tmp, s.store, h.N); err != nil {
		return nil, err
	}

	newCKr, mk := kdfCK(tmp.CKr)
	pt, err := open(mk, msg.Ciphertext, ad)
	primitives.Wipe(mk[:])
	if err != nil {
		return nil, ErrDecryptFailed
	}

	tmp.CKr = newCKr
	tmp.Nr++

	s.state.wipe()
	s.state = tmp
	return pt, nil
}

// skipMessageKeys stores a message key for every index in
// [state.Nr, until) of the current receiving chain, so that messages
// delivered out of order can still be decrypted later.
func skipMessageKeys(state *State, store Store, until uint32) error {
	if !state.HasCKr {
		return nil
	}
	for state.Nr < until {
		newCKr, mk := kdfCK(state.CKr)
		err := store.StoreKey(state.Nr, state.DHr, mk)
		primitives.Wipe(mk[:])
		if err != nil {
			return err
		}
		state.CKr = newCKr
		state.Nr++
	}
	return nil
}

// dhRatchet performs a full Diffie-Hellman ratchet step: it closes
// out the current receiving chain under the peer's new public key,
// then immediately generates a fresh sending key pair and opens a new
// sending chain, per the specification's receive algorithm.
func dhRatchet(state *State, peerPub [32]byte) error {
	state.PN = state.Ns
	state.Ns = 0
	state.Nr = 0
	state.DHr = peerPub
	state.HasDHr = true

	dh, err := primitives.X25519(state.DHs.Private, state.DHr)
	if err != nil {
		return err
	}
	rk, ckr, err := kdfRK(state.RK, dh)
	if err != nil {
		return err
	}
	state.RK, state.CKr, state.HasCKr = rk, ckr, true

	priv, pub, err := generateDH()
	if err != nil {
		return err
	}
	state.DHs.Private, state.DHs.Public = priv, pub

	dh, err = primitives.X25519(state.DHs.Private, state.DHr)
	if err != nil {
		return err
	}
	rk, cks, err := kdfRK(state.RK, dh)
	if err != nil {
		return err
	}
	state.RK, state.CKs, state.HasCKs = rk, cks, true
	return nil
}
