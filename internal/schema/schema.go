package schema

// Schema kinds. Components share the Schema shape but have kind "component"
// and are never import/export roots.
const (
	KindCollection    = "collection"
	KindSingle        = "single"
	KindComponentType = "component"
)

type Schema struct {
	UID        string      `json:"uid"`
	Kind       string      `json:"kind"`
	Identifier string      `json:"identifier,omitempty"` // configured identifier field, optional
	Attributes []Attribute `json:"attributes"`
}

// Attribute returns a pointer to the attribute with the given name, or nil.
func (s *Schema) Attribute(name string) *Attribute {
	for i := range s.Attributes {
		if s.Attributes[i].Name == name {
			return &s.Attributes[i]
		}
	}
	return nil
}

// HasAttribute returns true if the schema has an attribute with the given name.
func (s *Schema) HasAttribute(name string) bool {
	return s.Attribute(name) != nil
}

// AttributeNames returns all attribute names.
func (s *Schema) AttributeNames() []string {
	names := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		names[i] = a.Name
	}
	return names
}

// IsComponent returns true if this schema describes a component.
func (s *Schema) IsComponent() bool {
	return s.Kind == KindComponentType
}
