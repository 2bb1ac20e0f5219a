// Package validation provides custom validation rules for the application.
package validation

import (
	"encoding/json"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/credvault/internal/errors"
)

// MaxNameLength is the longest accepted secret name, leading slash included.
const MaxNameLength = 1024

// WrapValidationError wraps validation errors as target, which defaults to ErrInvalidInput.
func WrapValidationError(err error, target ...error) error {
	if err == nil {
		return nil
	}
	sentinel := apperrors.ErrInvalidInput
	if len(target) > 0 && target[0] != nil {
		sentinel = target[0]
	}
	return apperrors.Wrap(sentinel, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// SecretName validates a slash-delimited secret path
var SecretName = validation.NewStringRuleWithError(
	func(s string) bool {
		return !strings.Contains(s, "//") && !strings.HasSuffix(s, "/")
	},
	validation.NewError("validation_secret_name", "must not contain '//' or end with '/'"),
)

// JSON validates that a string or byte slice holds a JSON document
var JSON = validation.By(func(value any) error {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return validation.NewError("validation_json_type", "must be a string or byte slice")
	}
	if len(raw) == 0 {
		return nil // Let Required handle empty values
	}
	if !json.Valid(raw) {
		return validation.NewError("validation_json", "must be valid JSON")
	}
	return nil
})
