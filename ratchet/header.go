package ratchet

import (
	"encoding/binary"
	"fmt"

	"github.com/kaelbauer/signalcore/wire"
)

// HeaderSize is the encoded size in bytes of a Header: a 32-byte
// Diffie-Hellman public key followed by two big-endian uint32
// counters.
const HeaderSize = 32 + 4 + 4

// Header accompanies every ratchet message, per the specification's
// fixed wire layout:
//
//	struct RatchetHeader {
//	    u8   dh_pub[32]
//	    u32  prev_chain_len   // PN
//	    u32  msg_number       // N
//	}
type Header struct {
	// DHPub is the sender's current ratchet public key.
	DHPub [32]byte
	// PN is the number of messages in the sender's previous sending
	// chain.
	PN uint32
	// N is the message's index within the sender's current sending
	// chain.
	N uint32
}

// Append serializes h in network byte order and appends it to buf.
func (h Header) Append(buf []byte) []byte {
	var fixed [HeaderSize]byte
	copy(fixed[0:32], h.DHPub[:])
	binary.BigEndian.PutUint32(fixed[32:36], h.PN)
	binary.BigEndian.PutUint32(fixed[36:40], h.N)
	return append(buf, fixed[:]...)
}

// DecodeHeader parses a Header from the front of data.
func DecodeHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, fmt.Errorf("ratchet: short header: %d bytes", len(data))
	}
	copy(h.DHPub[:], data[0:32])
	h.PN = binary.BigEndian.Uint32(data[32:36])
	h.N = binary.BigEndian.Uint32(data[36:40])
	return h, nil
}

// concat binds additionalData to the header so that both are
// authenticated together by the AEAD call in Seal/Open. The
// length-prefix on additionalData keeps the two fields
// unambiguous — otherwise a header that happens to look like the
// tail of additionalData could be shuffled across the boundary
// without changing the authenticated bytes.
func concat(additionalData []byte, h Header) []byte {
	buf := make([]byte, 0, 8+len(additionalData)+HeaderSize)
	buf = wire.PrependLength(buf, additionalData)
	buf = h.Append(buf)
	return buf
}
