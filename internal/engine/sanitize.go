package engine

import "rocket-transfer/internal/schema"

// Sanitize drops every field the schema does not declare, protecting the
// store from drift between an exported document and the live schema.
func Sanitize(s *schema.Schema, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		if s.HasAttribute(key) {
			out[key] = value
		}
	}
	return out
}
