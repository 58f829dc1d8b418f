package ratchet

import (
	"crypto/rand"

	"github.com/kaelbauer/signalcore/primitives"
)

// rkInfo and mkInfo domain-separate the root-chain and message-key
// HKDF derivations from each other and from any other protocol in the
// module that might reuse the same HKDF primitive.
const (
	rkInfo = "DR-RK"
	mkInfo = "DR-Message"
)

// generateDH draws a fresh X25519 ratchet key pair.
func generateDH() (priv, pub [32]byte, err error) {
	return primitives.GenerateX25519(rand.Reader)
}

// kdfRK implements KDF_RK from the specification: a KDF keyed by the
// 32-byte root key rk, applied to a Diffie-Hellman output, yielding a
// fresh (root key, chain key) pair.
//
// Following the teacher's derivation (and confirmed against other
// Double Ratchet implementations), the Diffie-Hellman output is the
// HKDF input key material and the root key is the HKDF salt — this
// looks backwards next to the "KDF keyed by rk" phrasing in the
// whitepaper, but it is the construction every reference
// implementation actually uses.
func kdfRK(rk [32]byte, dhOut [32]byte) (newRK, ck [32]byte, err error) {
	out, err := primitives.HKDF(dhOut[:], rk[:], []byte(rkInfo), 64)
	if err != nil {
		return newRK, ck, err
	}
	copy(newRK[:], out[:32])
	copy(ck[:], out[32:64])
	return newRK, ck, nil
}

// kdfCK implements KDF_CK from the specification using HMAC-SHA-256
// with single-byte constants, the construction the teacher's djb.go
// and nist.go backends both use: this is the chosen resolution of the
// specification's KDF_CK open question.
func kdfCK(ck [32]byte) (newCK, mk [32]byte) {
	const (
		ckConst = 0x02
		mkConst = 0x01
	)
	sum := primitives.HMAC(ck[:], []byte{ckConst})
	copy(newCK[:], sum)
	sum = primitives.HMAC(ck[:], []byte{mkConst})
	copy(mk[:], sum)
	return newCK, mk
}

// deriveAEAD turns a one-time message key into an independent
// AES-256-GCM key and nonce via a single HKDF call. Since mk is used
// exactly once, deriving the nonce alongside the key this way (rather
// than fixing it to zero) costs nothing and avoids ever reusing a
// (key, nonce) pair even if a future change reused a message key by
// mistake — the chosen resolution of the specification's nonce-policy
// open question.
func deriveAEAD(mk [32]byte) (key [32]byte, nonce [12]byte, err error) {
	out, err := primitives.HKDF(mk[:], nil, []byte(mkInfo), 32+12)
	if err != nil {
		return key, nonce, err
	}
	copy(key[:], out[:32])
	copy(nonce[:], out[32:44])
	return key, nonce, nil
}

// seal encrypts plaintext under the message key mk, authenticating
// additionalData.
func seal(mk [32]byte, plaintext, additionalData []byte) ([]byte, error) {
	key, nonce, err := deriveAEAD(mk)
	if err != nil {
		return nil, err
	}
	defer primitives.Wipe(key[:])
	return primitives.Seal(key, nonce, additionalData, plaintext)
}

// open decrypts ciphertext under the message key mk, authenticating
// additionalData.
func open(mk [32]byte, ciphertext, additionalData []byte) ([]byte, error) {
	key, nonce, err := deriveAEAD(mk)
	if err != nil {
		return nil, err
	}
	defer primitives.Wipe(key[:])
	return primitives.Open(key, nonce, additionalData, ciphertext)
}
