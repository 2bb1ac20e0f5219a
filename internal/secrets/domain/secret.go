// Package domain defines the secret record: a versioned, named credential whose
// sensitive parts are stored as encrypted fields and whose type-specific
// payload is a tagged union of details.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
)

// Type is the secret type tag persisted with every version.
type Type string

const (
	TypeValue       Type = "value"
	TypeJSON        Type = "json"
	TypePassword    Type = "password"
	TypeCertificate Type = "certificate"
	TypeSSH         Type = "ssh"
	TypeRSA         Type = "rsa"
	TypeUser        Type = "user"
)

// Types lists every supported type tag.
var Types = []Type{TypeValue, TypeJSON, TypePassword, TypeCertificate, TypeSSH, TypeRSA, TypeUser}

// ParseType validates a type tag.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", ErrUnsupportedSecretType
}

// Generatable reports whether the type's material can be generated.
func (t Type) Generatable() bool {
	switch t {
	case TypePassword, TypeSSH, TypeRSA, TypeUser:
		return true
	default:
		return false
	}
}

// Secret is one version of a named secret.
type Secret struct {
	// ID identifies this version.
	ID uuid.UUID
	// NameID references the shared name row.
	NameID uuid.UUID
	// Name is the slash-delimited path, always with a leading slash.
	Name string
	// Version starts at 1 and grows by one per write to the same name.
	Version uint
	Type    Type
	// Value is the primary encrypted field.
	Value cryptoDomain.EncryptedValue
	// Details is the type-specific payload, never nil for a persisted secret.
	Details Details
	// Plaintext holds the decrypted primary value on the read path only; callers zero it after use.
	Plaintext []byte `json:"-"`
	// CreatedAt is when this version was created.
	CreatedAt time.Time
	// UpdatedAt is when the encrypted columns were last rewritten in place.
	UpdatedAt time.Time
}

// EncryptedFields returns pointers to every encrypted field of the secret so
// callers can refresh them in place.
func (s *Secret) EncryptedFields() []*cryptoDomain.EncryptedValue {
	fields := []*cryptoDomain.EncryptedValue{&s.Value}
	if p, ok := s.Details.(*PasswordDetails); ok {
		fields = append(fields, &p.Parameters)
	}
	return fields
}

// NormalizeName trims surrounding whitespace and adds the leading slash when missing.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}
