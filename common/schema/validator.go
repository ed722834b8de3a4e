// Package schema validates metadata documents against a published metadata
// schema version. The archive treats the validator as a pluggable
// capability: the default implementation checks the schema version pin and
// the schema's required fields, which is enough to drive the asset and
// version status machinery.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dandihub/archive/common/models"
)

// Validator checks a metadata document against a schema version and returns
// the ordered list of violations. An empty list means the document is valid.
// The error return is reserved for validator failures (for example an
// unreachable schema registry), never for document violations.
type Validator interface {
	Validate(document models.Metadata, schemaVersion string) ([]models.ValidationError, error)
}

// RequiredFieldValidator enforces the schema version pin and the presence of
// the schema's required fields. Violations are reported in deterministic
// order: version pin first, then required fields sorted by name.
type RequiredFieldValidator struct {
	allowedVersions []string
	requiredFields  []string
}

// NewRequiredFieldValidator builds a validator for the given allowed schema
// versions and required field names.
func NewRequiredFieldValidator(allowedVersions, requiredFields []string) *RequiredFieldValidator {
	required := append([]string(nil), requiredFields...)
	sort.Strings(required)
	return &RequiredFieldValidator{
		allowedVersions: append([]string(nil), allowedVersions...),
		requiredFields:  required,
	}
}

// Validate checks the document. A document whose schemaVersion is not in the
// allowed set yields a single version error; required fields are only
// checked once the version pin holds.
func (v *RequiredFieldValidator) Validate(document models.Metadata, schemaVersion string) ([]models.ValidationError, error) {
	if !v.versionAllowed(schemaVersion) {
		rendered := schemaVersion
		if rendered == "" {
			rendered = "none"
		}
		return []models.ValidationError{{
			Field: "",
			Message: fmt.Sprintf("Metadata version %s is not allowed. Allowed versions are: %s",
				rendered, strings.Join(v.allowedVersions, ", ")),
		}}, nil
	}

	var errs []models.ValidationError
	for _, field := range v.requiredFields {
		if !hasValue(document, field) {
			errs = append(errs, models.ValidationError{Field: field, Message: "field required"})
		}
	}
	return errs, nil
}

func (v *RequiredFieldValidator) versionAllowed(version string) bool {
	for _, allowed := range v.allowedVersions {
		if version == allowed {
			return true
		}
	}
	return false
}

// hasValue reports whether the document carries a non-empty value for the
// field. Empty strings, empty collections and explicit nulls count as
// missing.
func hasValue(document models.Metadata, field string) bool {
	value, ok := document[field]
	if !ok || value == nil {
		return false
	}
	switch typed := value.(type) {
	case string:
		return typed != ""
	case []interface{}:
		return len(typed) > 0
	case map[string]interface{}:
		return len(typed) > 0
	}
	return true
}
