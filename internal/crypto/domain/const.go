// Package domain defines the encryption key model: configured keys, their
// canary bindings, the key ring built from them and the encrypted field envelope.
package domain

// Algorithm represents the AEAD algorithm used for field encryption.
//
// Both supported algorithms take a 256-bit key and a 96-bit nonce and append
// a 128-bit authentication tag to the ciphertext.
type Algorithm string

const (
	// AESGCM represents AES-256 in Galois/Counter Mode.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents ChaCha20-Poly1305, preferred on hosts without AES-NI.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

const (
	// KeySize is the required length of every encryption key in bytes.
	KeySize = 32

	// NonceSize is the nonce length produced by both supported algorithms.
	NonceSize = 12

	// CanaryValue is the fixed plaintext sealed under every configured key.
	// A key whose canary opens to this value is bound to the canary id.
	CanaryValue = "credvault encryption key canary"
)

// ParseAlgorithm validates an algorithm name from configuration.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch alg := Algorithm(s); alg {
	case AESGCM, ChaCha20:
		return alg, nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
