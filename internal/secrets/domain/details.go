package domain

import (
	"encoding/json"
	"fmt"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
)

// Details is the type-specific payload of a secret.
type Details interface {
	Type() Type
}

// ValueDetails carries nothing beyond the encrypted value.
type ValueDetails struct{}

func (*ValueDetails) Type() Type { return TypeValue }

// JSONDetails marks a value that holds a JSON document.
type JSONDetails struct{}

func (*JSONDetails) Type() Type { return TypeJSON }

// PasswordDetails holds the encrypted generation parameters of a password.
// Parameters is absent for passwords that were set rather than generated.
type PasswordDetails struct {
	Parameters cryptoDomain.EncryptedValue
	// GenerationParameters is populated on the read path only.
	GenerationParameters *PasswordParameters
}

func (*PasswordDetails) Type() Type { return TypePassword }

// CertificateDetails holds the public parts of a certificate; the private key is the value.
type CertificateDetails struct {
	CAName      string `json:"ca_name,omitempty"`
	CA          string `json:"ca,omitempty"`
	Certificate string `json:"certificate"`
}

func (*CertificateDetails) Type() Type { return TypeCertificate }

// SSHDetails holds the public half of an SSH key pair; the private key is the value.
type SSHDetails struct {
	PublicKey   string `json:"public_key"`
	Fingerprint string `json:"public_key_fingerprint"`
}

func (*SSHDetails) Type() Type { return TypeSSH }

// RSADetails holds the PKIX public key; the private key is the value.
type RSADetails struct {
	PublicKey string `json:"public_key"`
}

func (*RSADetails) Type() Type { return TypeRSA }

// UserDetails holds the username and a one-way hash of the password; the password is the value.
type UserDetails struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

func (*UserDetails) Type() Type { return TypeUser }

// PasswordParameters describes how a password was generated.
type PasswordParameters struct {
	Length         int  `json:"length,omitempty"`
	ExcludeUpper   bool `json:"exclude_upper"`
	ExcludeLower   bool `json:"exclude_lower"`
	ExcludeNumber  bool `json:"exclude_number"`
	IncludeSpecial bool `json:"include_special"`
}

// MarshalMetadata encodes the plain part of details for the metadata column.
// Types without plain details encode to an empty object.
func MarshalMetadata(details Details) ([]byte, error) {
	switch d := details.(type) {
	case *CertificateDetails, *SSHDetails, *RSADetails, *UserDetails:
		return json.Marshal(d)
	case *ValueDetails, *JSONDetails, *PasswordDetails, nil:
		return []byte("{}"), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedSecretType, details)
	}
}

// UnmarshalDetails rebuilds details from the persisted type tag, metadata
// column and parameters envelope.
func UnmarshalDetails(t Type, metadata []byte, parameters cryptoDomain.EncryptedValue) (Details, error) {
	var details Details
	switch t {
	case TypeValue:
		return &ValueDetails{}, nil
	case TypeJSON:
		return &JSONDetails{}, nil
	case TypePassword:
		return &PasswordDetails{Parameters: parameters}, nil
	case TypeCertificate:
		details = &CertificateDetails{}
	case TypeSSH:
		details = &SSHDetails{}
	case TypeRSA:
		details = &RSADetails{}
	case TypeUser:
		details = &UserDetails{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSecretType, t)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, details); err != nil {
			return nil, fmt.Errorf("failed to decode %s metadata: %w", t, err)
		}
	}
	return details, nil
}

// Parameters returns the parameters envelope of details, zero for
// types that have none.
func Parameters(details Details) cryptoDomain.EncryptedValue {
	if p, ok := details.(*PasswordDetails); ok {
		return p.Parameters
	}
	return cryptoDomain.EncryptedValue{}
}
