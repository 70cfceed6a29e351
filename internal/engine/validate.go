package engine

import (
	"context"
	"fmt"

	"rocket-transfer/internal/media"
	"rocket-transfer/internal/portable"
	"rocket-transfer/internal/schema"
	"rocket-transfer/internal/store"
)

// ValidationIssue is one pre-flight problem. Path points into the
// document: contentType[index].status.locale.field.
type ValidationIssue struct {
	Error string    `json:"error"`
	Data  IssueData `json:"data"`
}

type IssueData struct {
	Path  string `json:"path"`
	Entry any    `json:"entry,omitempty"`
}

// Validate checks the whole document before any write: schema existence,
// field shapes, required values, resolvable required relations, media
// descriptor shapes, in-batch identifier duplicates and store-level
// uniqueness. A non-empty result aborts the import.
func (i *Importer) Validate(ctx context.Context, doc *portable.Document, opts ImportOptions) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{
			Error: fmt.Sprintf(format, args...),
			Data:  IssueData{Path: path},
		})
	}

	for _, uid := range sortedKeys(doc.Data) {
		s := i.reg.GetModel(uid)
		if s == nil {
			add(uid, "unknown content type %s", uid)
			continue
		}
		if s.IsComponent() {
			add(uid, "%s is a component, not a content type", uid)
			continue
		}
		if err := ValidateIdentifierField(s); err != nil {
			// Reported per entry at processing time, not here.
			continue
		}
		idField := IdentifierField(s)
		seen := map[string]int{}

		for idx, entry := range doc.Data[uid] {
			entryPath := fmt.Sprintf("%s[%d]", uid, idx)
			firstValue := ""
			for _, version := range entry.Versions() {
				for _, locale := range orderedLocales(version.Locales) {
					obj := version.Locales[locale]
					path := fmt.Sprintf("%s.%s.%s", entryPath, version.Status, locale)
					i.validateObject(ctx, &issues, path, obj, s, opts, doc)
					if firstValue == "" {
						firstValue = stringValue(obj[idField])
					}
				}
			}

			if firstValue == "" {
				add(entryPath, "missing identifier field %q", idField)
				continue
			}
			if prev, ok := seen[firstValue]; ok {
				add(entryPath, "duplicate identifier %q also used by %s[%d]", firstValue, uid, prev)
				continue
			}
			seen[firstValue] = idx

			i.validateUniqueness(ctx, &issues, entryPath, s, idField, firstValue, entry)
		}
	}
	return issues
}

func (i *Importer) validateObject(ctx context.Context, issues *[]ValidationIssue, path string, obj map[string]any, s *schema.Schema, opts ImportOptions, doc *portable.Document) {
	add := func(format string, args ...any) {
		*issues = append(*issues, ValidationIssue{
			Error: fmt.Sprintf(format, args...),
			Data:  IssueData{Path: path, Entry: obj},
		})
	}

	for key := range obj {
		if s.HasAttribute(key) || isMetaField(key) {
			continue
		}
		add("unknown field %q on %s", key, s.UID)
	}

	for idx := range s.Attributes {
		attr := &s.Attributes[idx]
		value, present := obj[attr.Name]

		if attr.Required && (!present || value == nil) {
			add("required field %q is missing", attr.Name)
			continue
		}
		if !present || value == nil {
			continue
		}

		fieldPath := path + "." + attr.Name
		switch attr.Kind {
		case schema.KindRelation:
			i.validateRelation(ctx, issues, fieldPath, attr, value, opts, doc)
		case schema.KindComponent:
			i.validateComponent(ctx, issues, fieldPath, attr, value, opts, doc)
		case schema.KindDynamicZone:
			i.validateDynamicZone(ctx, issues, fieldPath, attr, value, opts, doc)
		case schema.KindMedia:
			validateMedia(issues, fieldPath, attr, value)
		}
	}
}

// validateRelation checks that required relation values will resolve:
// in the batch, in the store, or by creation rules. Optional relations
// may fail at processing time without blocking the batch.
func (i *Importer) validateRelation(ctx context.Context, issues *[]ValidationIssue, path string, attr *schema.Attribute, value any, opts ImportOptions, doc *portable.Document) {
	if !attr.Required || opts.IgnoreMissingRelations {
		return
	}
	target := i.reg.GetModel(attr.Target)
	if target == nil {
		*issues = append(*issues, ValidationIssue{
			Error: fmt.Sprintf("relation target %s not registered", attr.Target),
			Data:  IssueData{Path: path},
		})
		return
	}
	if opts.CreateMissingEntities {
		return
	}
	if strat := i.strategies[target.UID]; strat != nil && strat.AutoCreate {
		return
	}

	values := []any{value}
	if attr.IsToMany() {
		values = asSlice(value)
	}
	idField := IdentifierField(target)
	for _, v := range values {
		sv := stringValue(v)
		if sv == "" {
			continue
		}
		if _, inBatch := findInBatchDoc(doc, target.UID, idField, sv); inBatch {
			continue
		}
		docID, err := i.lookupStore(ctx, target, idField, sv)
		if err == nil && docID != "" {
			continue
		}
		*issues = append(*issues, ValidationIssue{
			Error: fmt.Sprintf("required relation %s %q cannot be resolved", target.UID, sv),
			Data:  IssueData{Path: path, Entry: v},
		})
	}
}

func (i *Importer) validateComponent(ctx context.Context, issues *[]ValidationIssue, path string, attr *schema.Attribute, value any, opts ImportOptions, doc *portable.Document) {
	comp := i.reg.GetModel(attr.Component)
	if comp == nil {
		*issues = append(*issues, ValidationIssue{
			Error: fmt.Sprintf("component %s not registered", attr.Component),
			Data:  IssueData{Path: path},
		})
		return
	}
	items := []any{value}
	if attr.Repeatable {
		items = asSlice(value)
	}
	for idx, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			*issues = append(*issues, ValidationIssue{
				Error: fmt.Sprintf("component value is %T, want object", item),
				Data:  IssueData{Path: fmt.Sprintf("%s[%d]", path, idx)},
			})
			continue
		}
		itemPath := path
		if attr.Repeatable {
			itemPath = fmt.Sprintf("%s[%d]", path, idx)
		}
		i.validateObject(ctx, issues, itemPath, m, comp, opts, doc)
	}
}

func (i *Importer) validateDynamicZone(ctx context.Context, issues *[]ValidationIssue, path string, attr *schema.Attribute, value any, opts ImportOptions, doc *portable.Document) {
	for idx, item := range asSlice(value) {
		itemPath := fmt.Sprintf("%s[%d]", path, idx)
		m, ok := item.(map[string]any)
		if !ok {
			*issues = append(*issues, ValidationIssue{
				Error: fmt.Sprintf("dynamic zone item is %T, want object", item),
				Data:  IssueData{Path: itemPath},
			})
			continue
		}
		uid, _ := m["__component"].(string)
		comp := i.reg.GetModel(uid)
		if comp == nil {
			*issues = append(*issues, ValidationIssue{
				Error: fmt.Sprintf("dynamic zone item has unknown component %q", uid),
				Data:  IssueData{Path: itemPath},
			})
			continue
		}
		if !containsString(attr.Components, uid) {
			*issues = append(*issues, ValidationIssue{
				Error: fmt.Sprintf("component %q not allowed in this dynamic zone", uid),
				Data:  IssueData{Path: itemPath},
			})
			continue
		}
		i.validateObject(ctx, issues, itemPath, m, comp, opts, doc)
	}
}

// validateMedia checks descriptor shape. A relative URL without a hash is
// unusable: it cannot be downloaded and cannot match an existing file.
func validateMedia(issues *[]ValidationIssue, path string, attr *schema.Attribute, value any) {
	items := []any{value}
	if attr.Multiple {
		items = asSlice(value)
	}
	for idx, item := range items {
		itemPath := path
		if attr.Multiple {
			itemPath = fmt.Sprintf("%s[%d]", path, idx)
		}
		m, ok := item.(map[string]any)
		if !ok {
			*issues = append(*issues, ValidationIssue{
				Error: fmt.Sprintf("media value is %T, want descriptor object", item),
				Data:  IssueData{Path: itemPath},
			})
			continue
		}
		url, _ := m["url"].(string)
		hash, _ := m["hash"].(string)
		if url == "" && hash == "" {
			*issues = append(*issues, ValidationIssue{
				Error: "media descriptor needs a url or a hash",
				Data:  IssueData{Path: itemPath, Entry: m},
			})
			continue
		}
		if url != "" && !media.IsAbsoluteURL(url) && hash == "" {
			*issues = append(*issues, ValidationIssue{
				Error: fmt.Sprintf("media url %q is relative and descriptor has no hash", url),
				Data:  IssueData{Path: itemPath, Entry: m},
			})
		}
	}
}

// validateUniqueness checks non-identifier unique fields against the
// store: a value already taken by a different entity would make the write
// fail halfway through the batch.
func (i *Importer) validateUniqueness(ctx context.Context, issues *[]ValidationIssue, entryPath string, s *schema.Schema, idField, idValue string, entry portable.Entry) {
	coll := i.store.Documents(s.UID)
	for idx := range s.Attributes {
		attr := &s.Attributes[idx]
		if !attr.Unique || attr.Name == idField || attr.Kind != schema.KindScalar {
			continue
		}
		for _, version := range entry.Versions() {
			for locale, obj := range version.Locales {
				value := obj[attr.Name]
				if value == nil {
					continue
				}
				existing, err := coll.FindFirst(ctx, store.Query{Filters: map[string]any{attr.Name: value}})
				if err != nil || existing == nil {
					continue
				}
				if stringValue(existing[idField]) != idValue {
					*issues = append(*issues, ValidationIssue{
						Error: fmt.Sprintf("unique field %q value %v already belongs to another %s", attr.Name, value, s.UID),
						Data:  IssueData{Path: fmt.Sprintf("%s.%s.%s.%s", entryPath, version.Status, locale, attr.Name)},
					})
				}
			}
		}
	}
}

func findInBatchDoc(doc *portable.Document, contentType, idField, value string) (portable.Entry, bool) {
	for _, entry := range doc.Data[contentType] {
		for _, version := range entry.Versions() {
			for _, obj := range version.Locales {
				if stringValue(obj[idField]) == value {
					return entry, true
				}
			}
		}
	}
	return portable.Entry{}, false
}

func isMetaField(key string) bool {
	switch key {
	case "id", "publishedAt", "createdAt", "updatedAt", "__component":
		return true
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
