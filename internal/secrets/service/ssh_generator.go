package service

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

// SSHGenerator generates RSA key pairs encoded for OpenSSH.
type SSHGenerator struct{}

// NewSSHGenerator creates a new SSHGenerator.
func NewSSHGenerator() *SSHGenerator {
	return &SSHGenerator{}
}

// Generate returns a PEM private key, the authorized_keys form of the public
// key with the optional comment, and its unpadded base64 SHA256 fingerprint.
func (g *SSHGenerator) Generate(keyLength int, comment string) ([]byte, *secretsDomain.SSHDetails, error) {
	key, err := generateRSAKey(keyLength)
	if err != nil {
		return nil, nil, err
	}

	pub, err := ssh.NewPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode ssh public key: %w", err)
	}

	public := string(bytes.TrimSpace(ssh.MarshalAuthorizedKey(pub)))
	if comment = strings.TrimSpace(comment); comment != "" {
		public += " " + comment
	}

	return encodePrivateKey(key), &secretsDomain.SSHDetails{
		PublicKey:   public,
		Fingerprint: strings.TrimPrefix(ssh.FingerprintSHA256(pub), "SHA256:"),
	}, nil
}
