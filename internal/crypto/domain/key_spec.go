package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// KeySpec is one entry of the ENCRYPTION_KEYS setting before the material is
// decoded. Value is base64 key material, or a base64 KMS ciphertext when a
// KMS key URI is configured.
type KeySpec struct {
	Name   string
	Value  string
	Active bool
}

// ParseKeySpecs parses "name:base64,name:base64" and marks the entry named
// active. Names must be unique and active must name one of them.
func ParseKeySpecs(raw, active string) ([]KeySpec, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrKeysNotSet
	}
	if active == "" {
		return nil, ErrNoActiveKey
	}

	var specs []KeySpec
	seen := make(map[string]struct{})
	foundActive := false

	for part := range strings.SplitSeq(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 || p[0] == "" || p[1] == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKeysFormat, part)
		}
		if _, ok := seen[p[0]]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKeyName, p[0])
		}
		seen[p[0]] = struct{}{}

		spec := KeySpec{Name: p[0], Value: p[1], Active: p[0] == active}
		if spec.Active {
			foundActive = true
		}
		specs = append(specs, spec)
	}

	if !foundActive {
		return nil, fmt.Errorf("%w: ACTIVE_ENCRYPTION_KEY=%s", ErrActiveKeyNotFound, active)
	}

	return specs, nil
}

// Decode returns the base64-decoded value.
func (s KeySpec) Decode() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s.Value)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrInvalidKeysFormat, s.Name, err)
	}
	return b, nil
}
