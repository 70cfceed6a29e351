package engine

import (
	"context"
	"fmt"
	"log"

	"rocket-transfer/internal/schema"
	"rocket-transfer/internal/store"
)

// hydrate rewrites one portable object into storable data: identifier
// values become relation refs, media descriptors become file refs,
// components and dynamic zone items recurse. A field that fails stays out
// of the write; the failure is recorded and the rest of the object
// survives.
func (i *Importer) hydrate(ctx context.Context, ictx *importContext, obj map[string]any, s *schema.Schema) map[string]any {
	out := make(map[string]any, len(obj))
	for key, value := range obj {
		attr := s.Attribute(key)
		if attr == nil || value == nil {
			out[key] = value
			continue
		}

		hydrated, err := i.hydrateAttribute(ctx, ictx, attr, value)
		if err != nil {
			if ictx.opts.IgnoreMissingRelations && IsRelationNotFound(err) {
				out[key] = nil
				continue
			}
			ictx.addFailureErr(err, map[string]any{"field": fmt.Sprintf("%s.%s", s.UID, key), "value": value})
			out[key] = nil
			continue
		}
		out[key] = hydrated
	}
	return out
}

func (i *Importer) hydrateAttribute(ctx context.Context, ictx *importContext, attr *schema.Attribute, value any) (any, error) {
	switch attr.Kind {
	case schema.KindRelation:
		return i.hydrateRelation(ctx, ictx, attr, value)
	case schema.KindComponent:
		return i.hydrateComponent(ctx, ictx, attr, value)
	case schema.KindDynamicZone:
		return i.hydrateDynamicZone(ctx, ictx, value)
	case schema.KindMedia:
		return i.hydrateMedia(ctx, ictx, attr, value)
	default:
		return value, nil
	}
}

func (i *Importer) hydrateRelation(ctx context.Context, ictx *importContext, attr *schema.Attribute, value any) (any, error) {
	target := i.reg.GetModel(attr.Target)
	if target == nil {
		return nil, fmt.Errorf("relation target %s not registered", attr.Target)
	}

	if attr.IsToMany() {
		items := asSlice(value)
		out := make([]any, 0, len(items))
		for _, item := range items {
			ref, err := i.resolveRelation(ctx, ictx, target, item)
			if err != nil {
				// Item-level isolation: record and drop, keep the rest.
				if ictx.opts.IgnoreMissingRelations && IsRelationNotFound(err) {
					continue
				}
				ictx.addFailureErr(err, map[string]any{"relation": attr.Target, "value": item})
				continue
			}
			out = append(out, ref)
		}
		return out, nil
	}

	return i.resolveRelation(ctx, ictx, target, value)
}

// resolveRelation turns one identifier value into a relation ref. The
// resolution order: batch ledger, exact store lookup across both statuses,
// recursive in-batch import, then auto-creation when allowed.
func (i *Importer) resolveRelation(ctx context.Context, ictx *importContext, target *schema.Schema, raw any) (map[string]any, error) {
	value := stringValue(raw)
	if value == "" {
		return nil, fmt.Errorf("empty relation value for %s", target.UID)
	}
	idField := IdentifierField(target)
	key := ledgerKey(target.UID, value)

	if docID, ok := ictx.processed[key]; ok {
		return store.RelationRef(target.UID, docID), nil
	}

	docID, err := i.lookupStore(ctx, target, idField, value)
	if err != nil {
		return nil, err
	}
	if docID != "" {
		ictx.processed[key] = docID
		return store.RelationRef(target.UID, docID), nil
	}

	if entry, ok := findInBatch(ictx, target.UID, idField, value); ok {
		if !ictx.importing[key] {
			ictx.importing[key] = true
			i.importEntry(ctx, ictx, target, entry)
			delete(ictx.importing, key)
			if docID, ok := ictx.processed[key]; ok {
				return store.RelationRef(target.UID, docID), nil
			}
		}
		return nil, fmt.Errorf("in-batch dependency %s %q failed to import", target.UID, value)
	}

	strat := i.strategies[target.UID]
	if strat != nil {
		if candidate := i.fuzzySearch(ctx, target, strat, value); candidate != nil {
			docID := stringValue(candidate["documentId"])
			ictx.processed[key] = docID
			return store.RelationRef(target.UID, docID), nil
		}
	}

	diag := RelationDiagnostics{
		ContentType:     target.UID,
		IdentifierField: idField,
		Value:           raw,
		SearchedBatch:   true,
		SearchedStore:   true,
	}
	if ictx.opts.DisallowNewRelations {
		return nil, RelationNotFoundError(diag)
	}
	if ictx.opts.CreateMissingEntities || (strat != nil && strat.AutoCreate) {
		return i.createMinimal(ctx, ictx, target, idField, value, strat)
	}
	return nil, RelationNotFoundError(diag)
}

// lookupStore finds a documentId by exact identifier match, preferring the
// published version. Divergent draft and published matches mean the
// identifier names two different documents; that is a conflict, not a pick.
func (i *Importer) lookupStore(ctx context.Context, target *schema.Schema, idField, value string) (string, error) {
	coll := i.store.Documents(target.UID)
	filters := map[string]any{idField: value}

	pub, err := coll.FindFirst(ctx, store.Query{Filters: filters, Status: store.StatusPublished})
	if err != nil {
		return "", fmt.Errorf("lookup %s %q: %w", target.UID, value, err)
	}
	draft, err := coll.FindFirst(ctx, store.Query{Filters: filters, Status: store.StatusDraft})
	if err != nil {
		return "", fmt.Errorf("lookup %s %q: %w", target.UID, value, err)
	}

	pubID := ""
	if pub != nil {
		pubID = stringValue(pub["documentId"])
	}
	draftID := ""
	if draft != nil {
		draftID = stringValue(draft["documentId"])
	}
	if pubID != "" && draftID != "" && pubID != draftID {
		return "", ConflictError("%s %q names document %s as published and %s as draft", target.UID, value, pubID, draftID)
	}
	if pubID != "" {
		return pubID, nil
	}
	return draftID, nil
}

// createMinimal creates a draft carrying just the identifier value plus
// any strategy defaults, so the relation has something to point at.
func (i *Importer) createMinimal(ctx context.Context, ictx *importContext, target *schema.Schema, idField, value string, strat *SearchStrategy) (map[string]any, error) {
	data := map[string]any{idField: value}
	if strat != nil {
		for k, v := range strat.Defaults {
			data[k] = v
		}
	}
	created, err := i.store.Documents(target.UID).Create(ctx, store.Query{Data: Sanitize(target, data), Status: store.StatusDraft})
	if err != nil {
		return nil, fmt.Errorf("create missing %s %q: %w", target.UID, value, err)
	}
	docID := stringValue(created["documentId"])
	key := ledgerKey(target.UID, value)
	ictx.processed[key] = docID
	ictx.created[key] = true
	log.Printf("created missing %s %q as %s", target.UID, value, docID)
	return store.RelationRef(target.UID, docID), nil
}

func (i *Importer) hydrateComponent(ctx context.Context, ictx *importContext, attr *schema.Attribute, value any) (any, error) {
	comp := i.reg.GetModel(attr.Component)
	if comp == nil {
		return nil, fmt.Errorf("component %s not registered", attr.Component)
	}

	if attr.Repeatable {
		items := asSlice(value)
		out := make([]any, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				out = append(out, i.hydrate(ctx, ictx, m, comp))
			}
		}
		return out, nil
	}

	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("component value is %T, want object", value)
	}
	return i.hydrate(ctx, ictx, m, comp), nil
}

func (i *Importer) hydrateDynamicZone(ctx context.Context, ictx *importContext, value any) (any, error) {
	items := asSlice(value)
	out := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		uid, _ := m["__component"].(string)
		comp := i.reg.GetModel(uid)
		if comp == nil {
			ictx.addFailure(fmt.Sprintf("dynamic zone item has unknown component %q", uid), m)
			continue
		}
		hydrated := i.hydrate(ctx, ictx, m, comp)
		hydrated["__component"] = uid
		out = append(out, hydrated)
	}
	return out, nil
}

// hydrateMedia resolves descriptors through the media resolver. An
// unresolvable descriptor is a recorded failure and the reference is
// dropped; the entry itself still imports.
func (i *Importer) hydrateMedia(ctx context.Context, ictx *importContext, attr *schema.Attribute, value any) (any, error) {
	resolveOne := func(item any) any {
		m, ok := item.(map[string]any)
		if !ok {
			ictx.addFailure(fmt.Sprintf("media value is %T, want descriptor object", item), item)
			return nil
		}
		file, err := i.media.FindOrImportFile(ctx, m, attr.AllowedTypes)
		if err != nil {
			ictx.addFailure(fmt.Sprintf("resolve media: %v", err), m)
			return nil
		}
		if file == nil {
			ictx.addFailure("media descriptor could not be resolved", m)
			return nil
		}
		return store.FileRef(stringValue(file["id"]))
	}

	if attr.Multiple {
		items := asSlice(value)
		out := make([]any, 0, len(items))
		for _, item := range items {
			if ref := resolveOne(item); ref != nil {
				out = append(out, ref)
			}
		}
		return out, nil
	}
	return resolveOne(value), nil
}
