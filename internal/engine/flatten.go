package engine

import (
	"fmt"
	"log"

	"rocket-transfer/internal/media"
	"rocket-transfer/internal/schema"
)

// Flattener converts populated store entries into the portable wire shape:
// relations become identifier values, components stay inline, media becomes
// URL descriptors.
type Flattener struct {
	reg        *schema.Registry
	publicHost string
}

func NewFlattener(reg *schema.Registry, publicHost string) *Flattener {
	return &Flattener{reg: reg, publicHost: publicHost}
}

// FlattenOptions controls a single flatten pass. ProcessLocalizations is
// set only at the top level; sibling locales never recurse into their own
// localizations.
type FlattenOptions struct {
	ProcessLocalizations bool
}

// Flatten rewrites one populated entry into a plain portable object. A
// field that fails to flatten is logged and nulled; the rest of the entry
// survives.
func (f *Flattener) Flatten(entry map[string]any, s *schema.Schema, opts FlattenOptions) map[string]any {
	out := make(map[string]any, len(entry))
	idField := IdentifierField(s)

	for key, value := range entry {
		switch key {
		case "documentId", "createdBy", "updatedBy":
			continue
		case "id":
			if idField != "id" {
				continue
			}
		case "localizations":
			if !opts.ProcessLocalizations {
				continue
			}
			out[key] = f.flattenLocalizations(value, s)
			continue
		}

		attr := s.Attribute(key)
		if attr == nil || value == nil {
			out[key] = value
			continue
		}

		flattened, err := f.flattenAttribute(attr, value)
		if err != nil {
			log.Printf("WARN: flatten %s.%s: %v", s.UID, key, err)
			out[key] = nil
			continue
		}
		out[key] = flattened
	}
	return out
}

func (f *Flattener) flattenLocalizations(value any, s *schema.Schema) []any {
	siblings := asSlice(value)
	out := make([]any, 0, len(siblings))
	for _, sib := range siblings {
		m, ok := sib.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, f.Flatten(m, s, FlattenOptions{ProcessLocalizations: false}))
	}
	return out
}

// flattenAttribute dispatches on the attribute kind. The recover keeps a
// single malformed value from taking the whole entry down.
func (f *Flattener) flattenAttribute(attr *schema.Attribute, value any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic flattening value: %v", r)
		}
	}()

	switch attr.Kind {
	case schema.KindRelation:
		return f.flattenRelation(attr, value)
	case schema.KindComponent:
		return f.flattenComponent(attr, value)
	case schema.KindDynamicZone:
		return f.flattenDynamicZone(attr, value), nil
	case schema.KindMedia:
		return f.flattenMedia(attr, value), nil
	default:
		return value, nil
	}
}

func (f *Flattener) flattenRelation(attr *schema.Attribute, value any) (any, error) {
	target := f.reg.GetModel(attr.Target)
	if target == nil {
		return nil, fmt.Errorf("relation target %s not registered", attr.Target)
	}
	idField := IdentifierField(target)

	if attr.IsToMany() {
		items := asSlice(value)
		out := make([]any, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m[idField])
			}
		}
		return out, nil
	}

	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("relation value is %T, want object", value)
	}
	return m[idField], nil
}

func (f *Flattener) flattenComponent(attr *schema.Attribute, value any) (any, error) {
	comp := f.reg.GetModel(attr.Component)
	if comp == nil {
		return nil, fmt.Errorf("component %s not registered", attr.Component)
	}

	if attr.Repeatable {
		items := asSlice(value)
		out := make([]any, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				out = append(out, f.Flatten(m, comp, FlattenOptions{}))
			}
		}
		return out, nil
	}

	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("component value is %T, want object", value)
	}
	return f.Flatten(m, comp, FlattenOptions{}), nil
}

// flattenDynamicZone keeps each item tagged with its __component uid;
// items whose component is no longer registered are dropped.
func (f *Flattener) flattenDynamicZone(attr *schema.Attribute, value any) []any {
	items := asSlice(value)
	out := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		uid, _ := m["__component"].(string)
		comp := f.reg.GetModel(uid)
		if comp == nil {
			log.Printf("WARN: dropping dynamic zone item with unknown component %q", uid)
			continue
		}
		flattened := f.Flatten(m, comp, FlattenOptions{})
		flattened["__component"] = uid
		out = append(out, flattened)
	}
	return out
}

func (f *Flattener) flattenMedia(attr *schema.Attribute, value any) any {
	if attr.Multiple {
		items := asSlice(value)
		out := make([]any, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				out = append(out, f.mediaDescriptor(m))
			}
		}
		return out
	}
	if m, ok := value.(map[string]any); ok {
		return f.mediaDescriptor(m)
	}
	return nil
}

// mediaDescriptor strips a file entry down to the portable shape. URLs are
// absolutized so the importing side can download the asset.
func (f *Flattener) mediaDescriptor(file map[string]any) map[string]any {
	url, _ := file["url"].(string)
	return map[string]any{
		"url":             media.AbsoluteURL(f.publicHost, url),
		"name":            file["name"],
		"hash":            file["hash"],
		"caption":         file["caption"],
		"alternativeText": file["alternativeText"],
		"createdAt":       file["createdAt"],
		"updatedAt":       file["updatedAt"],
		"publishedAt":     file["publishedAt"],
	}
}

func asSlice(value any) []any {
	if s, ok := value.([]any); ok {
		return s
	}
	if value == nil {
		return nil
	}
	return []any{value}
}
