package service

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

func TestRSAGenerator_Generate(t *testing.T) {
	gen := NewRSAGenerator()

	t.Run("Success_DefaultLength", func(t *testing.T) {
		private, details, err := gen.Generate(0)
		require.NoError(t, err)

		block, _ := pem.Decode(private)
		require.NotNil(t, block)
		assert.Equal(t, "RSA PRIVATE KEY", block.Type)
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		require.NoError(t, err)
		assert.Equal(t, DefaultKeyLength, key.N.BitLen())

		block, _ = pem.Decode([]byte(details.PublicKey))
		require.NotNil(t, block)
		assert.Equal(t, "PUBLIC KEY", block.Type)
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		require.NoError(t, err)
		assert.True(t, key.PublicKey.Equal(pub.(*rsa.PublicKey)))
	})

	t.Run("Error_UnsupportedLength", func(t *testing.T) {
		_, _, err := gen.Generate(1024)
		assert.ErrorIs(t, err, secretsDomain.ErrInvalidGenerationParameters)
	})
}

func TestSSHGenerator_Generate(t *testing.T) {
	gen := NewSSHGenerator()

	private, details, err := gen.Generate(2048, " ops@example ")
	require.NoError(t, err)

	signer, err := ssh.ParsePrivateKey(private)
	require.NoError(t, err)

	pub, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(details.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, "ops@example", comment)
	assert.Equal(t, signer.PublicKey().Marshal(), pub.Marshal())
	assert.True(t, strings.HasPrefix(details.PublicKey, "ssh-rsa "))

	assert.Equal(t, "SHA256:"+details.Fingerprint, ssh.FingerprintSHA256(pub))
	assert.NotContains(t, details.Fingerprint, "=")
}

func TestUserGenerator_Generate(t *testing.T) {
	gen := NewUserGenerator(NewPasswordGenerator())

	t.Run("Success_RandomUsername", func(t *testing.T) {
		password, details, err := gen.Generate("", secretsDomain.PasswordParameters{})
		require.NoError(t, err)
		assert.Len(t, password, DefaultPasswordLength)
		assert.Len(t, details.Username, usernameLength)
		assert.Empty(t, strings.Trim(details.Username, upperChars+lowerChars))
		assert.Empty(t, details.PasswordHash)
	})

	t.Run("Success_GivenUsername", func(t *testing.T) {
		_, details, err := gen.Generate("admin", secretsDomain.PasswordParameters{Length: 16})
		require.NoError(t, err)
		assert.Equal(t, "admin", details.Username)
	})
}

func TestCredentialGenerator_Generate(t *testing.T) {
	gen := NewCredentialGenerator()

	t.Run("Success_Password", func(t *testing.T) {
		params := secretsDomain.GenerateParameters{
			Password: secretsDomain.PasswordParameters{Length: 24, IncludeSpecial: true},
		}
		cred, err := gen.Generate(secretsDomain.TypePassword, params)
		require.NoError(t, err)
		assert.Len(t, cred.Value, 24)
		assert.IsType(t, &secretsDomain.PasswordDetails{}, cred.Details)
		require.NotNil(t, cred.Parameters)
		assert.Equal(t, params.Password, *cred.Parameters)
	})

	t.Run("Success_RSA", func(t *testing.T) {
		cred, err := gen.Generate(secretsDomain.TypeRSA, secretsDomain.GenerateParameters{})
		require.NoError(t, err)
		assert.IsType(t, &secretsDomain.RSADetails{}, cred.Details)
		assert.Nil(t, cred.Parameters)
	})

	t.Run("Success_SSH", func(t *testing.T) {
		cred, err := gen.Generate(secretsDomain.TypeSSH, secretsDomain.GenerateParameters{})
		require.NoError(t, err)
		assert.IsType(t, &secretsDomain.SSHDetails{}, cred.Details)
	})

	t.Run("Success_User", func(t *testing.T) {
		cred, err := gen.Generate(secretsDomain.TypeUser, secretsDomain.GenerateParameters{Username: "app"})
		require.NoError(t, err)
		assert.Equal(t, "app", cred.Details.(*secretsDomain.UserDetails).Username)
	})

	t.Run("Error_NotGeneratable", func(t *testing.T) {
		for _, typ := range []secretsDomain.Type{
			secretsDomain.TypeValue,
			secretsDomain.TypeJSON,
			secretsDomain.TypeCertificate,
		} {
			_, err := gen.Generate(typ, secretsDomain.GenerateParameters{})
			assert.ErrorIs(t, err, secretsDomain.ErrUnsupportedSecretType)
		}
	})
}
