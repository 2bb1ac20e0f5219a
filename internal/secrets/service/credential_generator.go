package service

import (
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

// CredentialGenerator dispatches generation to the generator of each secret type.
type CredentialGenerator struct {
	passwords *PasswordGenerator
	ssh       *SSHGenerator
	rsa       *RSAGenerator
	users     *UserGenerator
}

// NewCredentialGenerator creates a CredentialGenerator with the default generators.
func NewCredentialGenerator() *CredentialGenerator {
	passwords := NewPasswordGenerator()
	return &CredentialGenerator{
		passwords: passwords,
		ssh:       NewSSHGenerator(),
		rsa:       NewRSAGenerator(),
		users:     NewUserGenerator(passwords),
	}
}

// Generate creates credential material for t. Password credentials carry the
// parameters they were generated with.
func (g *CredentialGenerator) Generate(
	t secretsDomain.Type,
	params secretsDomain.GenerateParameters,
) (*secretsDomain.Credential, error) {
	switch t {
	case secretsDomain.TypePassword:
		value, err := g.passwords.Generate(params.Password)
		if err != nil {
			return nil, err
		}
		p := params.Password
		return &secretsDomain.Credential{
			Value:      value,
			Details:    &secretsDomain.PasswordDetails{},
			Parameters: &p,
		}, nil
	case secretsDomain.TypeSSH:
		value, details, err := g.ssh.Generate(params.KeyLength, params.SSHComment)
		if err != nil {
			return nil, err
		}
		return &secretsDomain.Credential{Value: value, Details: details}, nil
	case secretsDomain.TypeRSA:
		value, details, err := g.rsa.Generate(params.KeyLength)
		if err != nil {
			return nil, err
		}
		return &secretsDomain.Credential{Value: value, Details: details}, nil
	case secretsDomain.TypeUser:
		value, details, err := g.users.Generate(params.Username, params.Password)
		if err != nil {
			return nil, err
		}
		return &secretsDomain.Credential{Value: value, Details: details}, nil
	default:
		return nil, secretsDomain.ErrUnsupportedSecretType
	}
}
