package x3dh

import (
	"fmt"

	"github.com/kaelbauer/signalcore/wire"
)

// hasOPKFlag marks the presence of a one-time prekey in the fixed
// framing below, since an OPK is optional but every other field is
// fixed-width.
const (
	hasOPKFlag   = 1
	hasNoOPKFlag = 0
	bundleFixed  = 32 + 4 + 32 + 64 + 1 // IdentityKey, SignedPreKeyID, SignedPreKey, Signature, opk-flag
	initMsgFixed = 32 + 32 + 4 + 1 + 4  // IdentityKey, EphemeralKey, SignedPreKeyID, opk-flag, OneTimePreKeyID
)

// Marshal encodes the bundle as a fixed-width blob: every public key
// is 32 bytes and every signature is 64 bytes, per the wire contract
// in the specification's framing section.
func (b Bundle) Marshal() []byte {
	size := bundleFixed
	if b.OneTimePreKey != nil {
		size += 32 + 4
	}
	buf := make([]byte, 0, size)
	buf = append(buf, b.IdentityKey[:]...)
	buf = wire.PutUint32(buf, b.SignedPreKeyID)
	buf = append(buf, b.SignedPreKey[:]...)
	buf = append(buf, b.Signature[:]...)
	if b.OneTimePreKey != nil {
		buf = append(buf, hasOPKFlag)
		buf = wire.PutUint32(buf, b.OneTimePreKeyID)
		buf = append(buf, b.OneTimePreKey[:]...)
	} else {
		buf = append(buf, hasNoOPKFlag)
	}
	return buf
}

// UnmarshalBundle decodes a Bundle encoded by Bundle.Marshal.
func UnmarshalBundle(data []byte) (Bundle, error) {
	var b Bundle
	if len(data) < bundleFixed {
		return b, fmt.Errorf("x3dh: bundle too short: %d bytes", len(data))
	}
	n := 0
	copy(b.IdentityKey[:], data[n:n+32])
	n += 32
	id, err := wire.Uint32(data[n:])
	if err != nil {
		return b, fmt.Errorf("x3dh: bundle: %w", err)
	}
	b.SignedPreKeyID = id
	n += 4
	copy(b.SignedPreKey[:], data[n:n+32])
	n += 32
	copy(b.Signature[:], data[n:n+64])
	n += 64
	flag := data[n]
	n++
	switch flag {
	case hasNoOPKFlag:
		// no OPK present
	case hasOPKFlag:
		if len(data) < n+4+32 {
			return b, fmt.Errorf("x3dh: bundle truncated before one-time prekey")
		}
		opkID, err := wire.Uint32(data[n:])
		if err != nil {
			return b, fmt.Errorf("x3dh: bundle: %w", err)
		}
		b.OneTimePreKeyID = opkID
		n += 4
		var opk [32]byte
		copy(opk[:], data[n:n+32])
		b.OneTimePreKey = &opk
		n += 32
	default:
		return b, fmt.Errorf("x3dh: bad one-time-prekey flag: %d", flag)
	}
	return b, nil
}

// Marshal encodes the initial message as fixed-width fields, per the
// wire contract in the specification's framing section. The
// ciphertext produced by the first ratchet-encrypted payload is not
// part of this encoding: callers append it (and the ratchet header)
// separately, since ratchet.Header.Append already defines that
// layout.
func (m InitialMessage) Marshal() []byte {
	buf := make([]byte, 0, initMsgFixed)
	buf = append(buf, m.IdentityKey[:]...)
	buf = append(buf, m.EphemeralKey[:]...)
	buf = wire.PutUint32(buf, m.SignedPreKeyID)
	if m.HasOneTimePreKey {
		buf = append(buf, hasOPKFlag)
	} else {
		buf = append(buf, hasNoOPKFlag)
	}
	buf = wire.PutUint32(buf, m.OneTimePreKeyID)
	return buf
}

// UnmarshalInitialMessage decodes an InitialMessage encoded by
// InitialMessage.Marshal.
func UnmarshalInitialMessage(data []byte) (InitialMessage, error) {
	var m InitialMessage
	if len(data) < initMsgFixed {
		return m, fmt.Errorf("x3dh: initial message too short: %d bytes", len(data))
	}
	n := 0
	copy(m.IdentityKey[:], data[n:n+32])
	n += 32
	copy(m.EphemeralKey[:], data[n:n+32])
	n += 32
	spkID, err := wire.Uint32(data[n:])
	if err != nil {
		return m, fmt.Errorf("x3dh: initial message: %w", err)
	}
	m.SignedPreKeyID = spkID
	n += 4
	m.HasOneTimePreKey = data[n] == hasOPKFlag
	n++
	opkID, err := wire.Uint32(data[n:])
	if err != nil {
		return m, fmt.Errorf("x3dh: initial message: %w", err)
	}
	m.OneTimePreKeyID = opkID
	return m, nil
}
