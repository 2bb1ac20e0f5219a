// Package service provides the default credential generators and the password
// hasher used for user secrets.
package service

import (
	"crypto/rand"
	"fmt"
	"math/big"

	secretsDomain "github.com/allisson/credvault/internal/secrets/domain"
)

const (
	DefaultPasswordLength = 30
	MinPasswordLength     = 8
	MaxPasswordLength     = 200

	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	numberChars  = "0123456789"
	specialChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// PasswordGenerator generates random passwords over configurable character sets.
type PasswordGenerator struct{}

// NewPasswordGenerator creates a new PasswordGenerator.
func NewPasswordGenerator() *PasswordGenerator {
	return &PasswordGenerator{}
}

// Generate returns a password honoring params. A zero Length means
// DefaultPasswordLength. Every enabled character set contributes at least one character.
func (g *PasswordGenerator) Generate(params secretsDomain.PasswordParameters) ([]byte, error) {
	length := params.Length
	if length == 0 {
		length = DefaultPasswordLength
	}
	if length < MinPasswordLength || length > MaxPasswordLength {
		return nil, fmt.Errorf(
			"%w: length must be between %d and %d",
			secretsDomain.ErrInvalidGenerationParameters, MinPasswordLength, MaxPasswordLength,
		)
	}

	var sets []string
	if !params.ExcludeUpper {
		sets = append(sets, upperChars)
	}
	if !params.ExcludeLower {
		sets = append(sets, lowerChars)
	}
	if !params.ExcludeNumber {
		sets = append(sets, numberChars)
	}
	if params.IncludeSpecial {
		sets = append(sets, specialChars)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: every character set is excluded", secretsDomain.ErrInvalidGenerationParameters)
	}

	var all string
	password := make([]byte, 0, length)
	for _, set := range sets {
		c, err := randomChar(set)
		if err != nil {
			return nil, err
		}
		password = append(password, c)
		all += set
	}
	for len(password) < length {
		c, err := randomChar(all)
		if err != nil {
			return nil, err
		}
		password = append(password, c)
	}

	if err := shuffle(password); err != nil {
		return nil, err
	}
	return password, nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return int(v.Int64()), nil
}

func randomChar(set string) (byte, error) {
	i, err := randomInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

// shuffle is a Fisher-Yates shuffle over crypto/rand.
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
