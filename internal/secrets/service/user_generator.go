package service

import (
	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

const usernameLength = 20

// UserGenerator generates a username and password pair.
type UserGenerator struct {
	passwords *PasswordGenerator
}

// NewUserGenerator creates a new UserGenerator.
func NewUserGenerator(passwords *PasswordGenerator) *UserGenerator {
	return &UserGenerator{passwords: passwords}
}

// Generate returns a password and the username. A random letters-only
// username is generated when username is empty.
func (g *UserGenerator) Generate(
	username string,
	params secretsDomain.PasswordParameters,
) ([]byte, *secretsDomain.UserDetails, error) {
	if username == "" {
		raw, err := g.passwords.Generate(secretsDomain.PasswordParameters{
			Length:        usernameLength,
			ExcludeNumber: true,
		})
		if err != nil {
			return nil, nil, err
		}
		username = string(raw)
	}

	password, err := g.passwords.Generate(params)
	if err != nil {
		return nil, nil, err
	}
	return password, &secretsDomain.UserDetails{Username: username}, nil
}
