package engine

import "rocket-transfer/internal/schema"

// identifierCandidates are checked in order when a schema does not
// configure an identifier field explicitly.
var identifierCandidates = []string{"uid", "name", "title"}

// IdentifierField returns the field whose value stands in for an entity on
// the wire: the configured identifier, else the first present candidate,
// else "id".
func IdentifierField(s *schema.Schema) string {
	if s.Identifier != "" {
		return s.Identifier
	}
	for _, candidate := range identifierCandidates {
		if s.HasAttribute(candidate) {
			return candidate
		}
	}
	return "id"
}

// ValidateIdentifierField checks that the identifier field exists and is
// constrained tightly enough to name entities unambiguously. UID-typed
// fields are unique by construction, so required alone suffices there.
func ValidateIdentifierField(s *schema.Schema) error {
	field := IdentifierField(s)
	attr := s.Attribute(field)
	if attr == nil {
		return ConfigurationError("%s has no identifier field %q", s.UID, field)
	}
	if attr.IsUID() {
		if !attr.Required {
			return ConfigurationError("%s identifier field %q must be required", s.UID, field)
		}
		return nil
	}
	if !attr.Required || !attr.Unique {
		return ConfigurationError("%s identifier field %q must be required and unique", s.UID, field)
	}
	return nil
}
