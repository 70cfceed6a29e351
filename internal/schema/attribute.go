package schema

// Kind is the closed set of attribute kinds. Dispatch on it exhaustively;
// an unknown kind means the definition row is malformed, not a new case to
// silently fall through.
type Kind string

const (
	KindScalar      Kind = "scalar"
	KindRelation    Kind = "relation"
	KindComponent   Kind = "component"
	KindDynamicZone Kind = "dynamiczone"
	KindMedia       Kind = "media"
)

// Cardinality of a relation attribute.
const (
	CardinalityOne  = "one"
	CardinalityMany = "many"
)

type Attribute struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Type     string `json:"type,omitempty"` // scalar type: string, uid, int, ...
	Required bool   `json:"required,omitempty"`
	Unique   bool   `json:"unique,omitempty"`

	// Relation attributes.
	Target      string `json:"target,omitempty"`
	Cardinality string `json:"cardinality,omitempty"`

	// Component attributes.
	Component  string `json:"component,omitempty"`
	Repeatable bool   `json:"repeatable,omitempty"`

	// Dynamic zone attributes.
	Components []string `json:"components,omitempty"`

	// Media attributes.
	Multiple     bool     `json:"multiple,omitempty"`
	AllowedTypes []string `json:"allowed_types,omitempty"`
}

func (a Attribute) IsRelation() bool    { return a.Kind == KindRelation }
func (a Attribute) IsComponent() bool   { return a.Kind == KindComponent }
func (a Attribute) IsDynamicZone() bool { return a.Kind == KindDynamicZone }
func (a Attribute) IsMedia() bool       { return a.Kind == KindMedia }

// IsUID returns true for uid-typed scalar attributes. A uid field is unique
// by construction, so identifier validation only demands required on it.
func (a Attribute) IsUID() bool { return a.Kind == KindScalar && a.Type == "uid" }

// IsToMany returns true for relations that hold multiple targets.
func (a Attribute) IsToMany() bool { return a.Cardinality == CardinalityMany }
