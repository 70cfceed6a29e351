package store

import "context"

// Status of a document version.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Populate describes which nested fields to expand when reading documents.
// Values are either the boolean true (expand the reference shallowly), a
// nested Populate (recurse into an inline component), or a DynamicZone
// (per-component populate for polymorphic items).
type Populate map[string]any

// DynamicZone populates dynamic-zone items by their __component tag.
type DynamicZone struct {
	On map[string]Populate
}

// Query carries the arguments of a document operation. Zero values mean
// "not specified": empty Locale matches any locale on reads, Filters nil
// means no filtering, Populate nil means no expansion.
type Query struct {
	Filters  map[string]any
	Status   Status
	Locale   string
	Populate any // true, Populate, or nil
	Data     map[string]any
	Sort     string
	Limit    int
}

// Collection is the per-content-type document API. Entries are plain
// map[string]any trees: the stored data payload plus documentId, locale,
// publishedAt, createdAt and updatedAt carriers.
//
// FindFirst and FindOne return (nil, nil) when no document matches.
type Collection interface {
	FindFirst(ctx context.Context, q Query) (map[string]any, error)
	FindOne(ctx context.Context, documentID string, q Query) (map[string]any, error)
	FindMany(ctx context.Context, q Query) ([]map[string]any, error)
	Create(ctx context.Context, q Query) (map[string]any, error)
	Update(ctx context.Context, documentID string, q Query) (map[string]any, error)
}

// Service hands out collections by content type.
type Service interface {
	Documents(contentType string) Collection
}
