package service

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

// DefaultKeyLength is the RSA modulus size used when none is requested.
const DefaultKeyLength = 2048

// RSAGenerator generates RSA key pairs.
type RSAGenerator struct{}

// NewRSAGenerator creates a new RSAGenerator.
func NewRSAGenerator() *RSAGenerator {
	return &RSAGenerator{}
}

// Generate returns a PKCS#1 PEM private key and its PKIX PEM public key.
func (g *RSAGenerator) Generate(keyLength int) ([]byte, *secretsDomain.RSADetails, error) {
	key, err := generateRSAKey(keyLength)
	if err != nil {
		return nil, nil, err
	}

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	public := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	return encodePrivateKey(key), &secretsDomain.RSADetails{PublicKey: string(public)}, nil
}

func generateRSAKey(keyLength int) (*rsa.PrivateKey, error) {
	if keyLength == 0 {
		keyLength = DefaultKeyLength
	}
	switch keyLength {
	case 2048, 3072, 4096:
	default:
		return nil, fmt.Errorf(
			"%w: key length must be 2048, 3072 or 4096",
			secretsDomain.ErrInvalidGenerationParameters,
		)
	}

	key, err := rsa.GenerateKey(rand.Reader, keyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate rsa key: %w", err)
	}
	return key, nil
}

func encodePrivateKey(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}
