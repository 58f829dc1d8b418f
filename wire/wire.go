// Package wire holds the small set of fixed-width encoding helpers
// shared by x3dh and ratchet, so that both protocols frame bytes on
// the wire the same way: big-endian integers, and any variable-length
// field preceded by an explicit 8-byte length so it can never be
// confused with a neighboring fixed-width field.
package wire

import (
	"encoding/binary"
	"fmt"
)

// PrependLength appends an 8-byte big-endian length prefix followed
// by data to buf.
func PrependLength(buf, data []byte) []byte {
	var lenPrefix [8]byte
	binary.BigEndian.PutUint64(lenPrefix[:], uint64(len(data)))
	buf = append(buf, lenPrefix[:]...)
	buf = append(buf, data...)
	return buf
}

// ReadLengthPrefixed reads an 8-byte big-endian length prefix from
// the front of data followed by that many bytes, and returns the
// payload and what remains of data after it.
func ReadLengthPrefixed(data []byte) (payload, rest []byte, err error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("wire: short length prefix: %d bytes", len(data))
	}
	n := binary.BigEndian.Uint64(data[:8])
	data = data[8:]
	if uint64(len(data)) < n {
		return nil, nil, fmt.Errorf("wire: length prefix %d exceeds remaining %d bytes", n, len(data))
	}
	return data[:n], data[n:], nil
}

// PutUint32 appends a big-endian uint32 to buf.
func PutUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

// Uint32 reads a big-endian uint32 from the front of data.
func Uint32(data []byte) (uint32, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("wire: short uint32: %d bytes", len(data))
	}
	return binary.BigEndian.Uint32(data[:4]), nil
}
