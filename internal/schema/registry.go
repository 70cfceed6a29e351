package schema

import "sync"

// Registry holds all known content-type and component schemas, keyed by UID.
// Content types and components share one namespace (relation targets and
// dynamic-zone entries both reference it).
type Registry struct {
	mu           sync.RWMutex
	contentTypes map[string]*Schema
	components   map[string]*Schema
}

func NewRegistry() *Registry {
	return &Registry{
		contentTypes: make(map[string]*Schema),
		components:   make(map[string]*Schema),
	}
}

// GetModel returns the schema with the given UID (content type or component),
// or nil.
func (r *Registry) GetModel(uid string) *Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s := r.contentTypes[uid]; s != nil {
		return s
	}
	return r.components[uid]
}

// AllContentTypes returns all registered content-type schemas.
func (r *Registry) AllContentTypes() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]*Schema, 0, len(r.contentTypes))
	for _, s := range r.contentTypes {
		schemas = append(schemas, s)
	}
	return schemas
}

// Load replaces all content types and components in the registry.
// Called during startup and after schema reloads.
func (r *Registry) Load(contentTypes, components []*Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contentTypes = make(map[string]*Schema, len(contentTypes))
	for _, s := range contentTypes {
		r.contentTypes[s.UID] = s
	}

	r.components = make(map[string]*Schema, len(components))
	for _, s := range components {
		r.components[s.UID] = s
	}
}
