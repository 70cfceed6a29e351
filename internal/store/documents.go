package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Reference shapes stored inside document data. Relations and media are
// never embedded in _documents rows; they are stored as refs and expanded
// on read according to the populate spec.

// RelationRef builds the stored representation of a relation value.
func RelationRef(contentType, documentID string) map[string]any {
	return map[string]any{"__type": contentType, "documentId": documentID}
}

// FileRef builds the stored representation of a media value.
func FileRef(fileID string) map[string]any {
	return map[string]any{"fileId": fileID}
}

// IsRelationRef reports whether a value is a stored relation reference.
func IsRelationRef(m map[string]any) bool {
	_, hasType := m["__type"]
	_, hasDoc := m["documentId"]
	return hasType && hasDoc && len(m) == 2
}

// IsFileRef reports whether a value is a stored media reference.
func IsFileRef(m map[string]any) bool {
	_, ok := m["fileId"]
	return ok && len(m) == 1
}

// Documents returns the collection for a content type.
func (s *Store) Documents(contentType string) Collection {
	return &collection{store: s, contentType: contentType}
}

type collection struct {
	store       *Store
	contentType string
}

// Carrier keys attached to every entry on read and stripped from data on write.
var carrierKeys = []string{"id", "documentId", "locale", "publishedAt", "createdAt", "updatedAt", "localizations"}

func (c *collection) FindFirst(ctx context.Context, q Query) (map[string]any, error) {
	q.Limit = 1
	entries, err := c.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

func (c *collection) FindOne(ctx context.Context, documentID string, q Query) (map[string]any, error) {
	if q.Filters == nil {
		q.Filters = map[string]any{}
	}
	q.Filters["documentId"] = documentID
	return c.FindFirst(ctx, q)
}

func (c *collection) FindMany(ctx context.Context, q Query) ([]map[string]any, error) {
	d := c.store.Dialect
	pb := d.NewParamBuilder()

	sqlStr := "SELECT id, document_id, locale, status, data, published_at, created_at, updated_at FROM _documents WHERE content_type = " + pb.Add(c.contentType)
	if q.Status != "" {
		sqlStr += " AND status = " + pb.Add(string(q.Status))
	}
	if q.Locale != "" {
		sqlStr += " AND locale = " + pb.Add(q.Locale)
	}
	for field, value := range q.Filters {
		sqlStr += " AND " + c.filterExpr(pb, field, value)
	}
	if q.Sort != "" {
		sqlStr += " ORDER BY " + d.JSONField("data", q.Sort)
	} else {
		sqlStr += " ORDER BY id"
	}
	if q.Limit > 0 {
		sqlStr += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := QueryRows(ctx, c.store.DB, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.contentType, err)
	}

	entries := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		entry, err := decodeDocumentRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode %s document: %w", c.contentType, err)
		}
		entries = append(entries, entry)
	}

	for _, entry := range entries {
		if err := c.expandEntry(ctx, entry, q.Populate, q.Status); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (c *collection) Create(ctx context.Context, q Query) (map[string]any, error) {
	d := c.store.Dialect

	documentID, _ := q.Data["documentId"].(string)
	if documentID == "" {
		documentID = uuid.NewString()
	}
	locale := q.Locale
	if locale == "" {
		locale = "default"
	}
	status := q.Status
	if status == "" {
		status = StatusDraft
	}

	payload, err := json.Marshal(stripCarriers(q.Data))
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", c.contentType, err)
	}

	pb := d.NewParamBuilder()
	publishedAt := "NULL"
	if status == StatusPublished {
		publishedAt = d.NowExpr()
	}
	sqlStr := fmt.Sprintf(
		"INSERT INTO _documents (content_type, document_id, locale, status, data, published_at) VALUES (%s, %s, %s, %s, %s, %s)",
		pb.Add(c.contentType), pb.Add(documentID), pb.Add(locale), pb.Add(string(status)), pb.Add(string(payload)), publishedAt)

	if _, err := Exec(ctx, c.store.DB, sqlStr, pb.Params()...); err != nil {
		return nil, d.MapError(err)
	}

	return c.FindOne(ctx, documentID, Query{Status: status, Locale: locale})
}

func (c *collection) Update(ctx context.Context, documentID string, q Query) (map[string]any, error) {
	d := c.store.Dialect

	locale := q.Locale
	if locale == "" {
		locale = "default"
	}
	status := q.Status
	if status == "" {
		status = StatusDraft
	}

	payload, err := json.Marshal(stripCarriers(q.Data))
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", c.contentType, err)
	}

	pb := d.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"UPDATE _documents SET data = %s, updated_at = %s WHERE content_type = %s AND document_id = %s AND locale = %s AND status = %s",
		pb.Add(string(payload)), d.NowExpr(), pb.Add(c.contentType), pb.Add(documentID), pb.Add(locale), pb.Add(string(status)))

	affected, err := Exec(ctx, c.store.DB, sqlStr, pb.Params()...)
	if err != nil {
		return nil, d.MapError(err)
	}
	if affected == 0 {
		// New locale or status variant of an existing document.
		data := q.Data
		if data == nil {
			data = map[string]any{}
		}
		data["documentId"] = documentID
		return c.Create(ctx, Query{Data: data, Locale: locale, Status: status})
	}

	return c.FindOne(ctx, documentID, Query{Status: status, Locale: locale})
}

func (c *collection) filterExpr(pb ParamBuilder, field string, value any) string {
	d := c.store.Dialect

	col := d.JSONField("data", field)
	if field == "documentId" {
		col = "document_id"
	} else if d.Name() == "postgres" {
		// ->> yields text; coerce the comparison value to match.
		value = coerceJSONParam(value)
	}

	if values, ok := value.([]any); ok {
		if d.Name() == "postgres" {
			for i := range values {
				values[i] = coerceJSONParam(values[i])
			}
		}
		return InExpr(col, pb, values)
	}
	return col + " = " + pb.Add(value)
}

func coerceJSONParam(v any) any {
	if _, ok := v.(string); ok {
		return v
	}
	return fmt.Sprintf("%v", v)
}

func decodeDocumentRow(row map[string]any) (map[string]any, error) {
	entry := map[string]any{}

	raw, _ := row["data"].(string)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}

	entry["documentId"] = fmt.Sprintf("%v", row["document_id"])
	entry["locale"] = row["locale"]
	entry["publishedAt"] = row["published_at"]
	entry["createdAt"] = row["created_at"]
	entry["updatedAt"] = row["updated_at"]
	return entry, nil
}

func stripCarriers(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, k := range carrierKeys {
		delete(out, k)
	}
	return out
}

// --- populate expansion ---

func (c *collection) expandEntry(ctx context.Context, entry map[string]any, pop any, status Status) error {
	if pop == nil {
		return nil
	}

	popAll := pop == true
	popMap, _ := pop.(Populate)

	for key, value := range entry {
		if isCarrierKey(key) {
			continue
		}
		var spec any
		if popAll {
			spec = true
		} else if popMap != nil {
			spec = popMap[key]
		}
		if spec == nil {
			continue
		}
		expanded, err := c.expandValue(ctx, value, spec, status)
		if err != nil {
			return err
		}
		entry[key] = expanded
	}

	if popAll || (popMap != nil && popMap["localizations"] == true) {
		if err := c.attachLocalizations(ctx, entry, pop, status); err != nil {
			return err
		}
	}
	return nil
}

func (c *collection) expandValue(ctx context.Context, value, spec any, status Status) (any, error) {
	switch v := value.(type) {
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			expanded, err := c.expandValue(ctx, item, spec, status)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded)
		}
		return out, nil

	case map[string]any:
		if IsRelationRef(v) {
			return c.loadRelationTarget(ctx, v, status)
		}
		if IsFileRef(v) {
			return c.loadFile(ctx, v)
		}
		// Inline component or dynamic-zone item.
		itemSpec := spec
		if dz, ok := spec.(DynamicZone); ok {
			comp, _ := v["__component"].(string)
			if sub, found := dz.On[comp]; found {
				itemSpec = sub
			} else {
				itemSpec = true
			}
		}
		for key, nested := range v {
			if key == "__component" {
				continue
			}
			var sub any
			if itemSpec == true {
				sub = true
			} else if m, ok := itemSpec.(Populate); ok {
				sub = m[key]
			}
			if sub == nil {
				continue
			}
			expanded, err := c.expandValue(ctx, nested, sub, status)
			if err != nil {
				return nil, err
			}
			v[key] = expanded
		}
		return v, nil

	default:
		return value, nil
	}
}

// loadRelationTarget fetches the referenced document shallowly: its own
// fields only, relations inside it left as refs. Preference order: the
// reading status, then published, then draft.
func (c *collection) loadRelationTarget(ctx context.Context, ref map[string]any, status Status) (any, error) {
	contentType, _ := ref["__type"].(string)
	documentID, _ := ref["documentId"].(string)
	if contentType == "" || documentID == "" {
		return nil, nil
	}

	target := &collection{store: c.store, contentType: contentType}
	tried := []Status{status, StatusPublished, StatusDraft}
	for _, st := range tried {
		if st == "" {
			continue
		}
		entry, err := target.FindOne(ctx, documentID, Query{Status: st})
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}
	return nil, nil
}

func (c *collection) loadFile(ctx context.Context, ref map[string]any) (any, error) {
	fileID, _ := ref["fileId"].(string)
	if fileID == "" {
		return nil, nil
	}

	pb := c.store.Dialect.NewParamBuilder()
	row, err := QueryRow(ctx, c.store.DB,
		"SELECT id, name, hash, url, mime, caption, alternative_text, created_at, updated_at FROM _files WHERE id = "+pb.Add(fileID),
		pb.Params()...)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load file %s: %w", fileID, err)
	}

	return map[string]any{
		"id":              row["id"],
		"name":            row["name"],
		"hash":            row["hash"],
		"url":             row["url"],
		"mime":            row["mime"],
		"caption":         row["caption"],
		"alternativeText": row["alternative_text"],
		"createdAt":       row["created_at"],
		"updatedAt":       row["updated_at"],
	}, nil
}

// attachLocalizations loads sibling locale rows of the same document and
// status. Siblings are expanded with the same populate spec minus the
// localizations key, so they cannot recurse into each other.
func (c *collection) attachLocalizations(ctx context.Context, entry map[string]any, pop any, status Status) error {
	documentID, _ := entry["documentId"].(string)
	locale, _ := entry["locale"].(string)
	if documentID == "" {
		return nil
	}

	d := c.store.Dialect
	pb := d.NewParamBuilder()
	sqlStr := "SELECT id, document_id, locale, status, data, published_at, created_at, updated_at FROM _documents WHERE content_type = " +
		pb.Add(c.contentType) + " AND document_id = " + pb.Add(documentID) + " AND locale != " + pb.Add(locale)
	if status != "" {
		sqlStr += " AND status = " + pb.Add(string(status))
	}

	rows, err := QueryRows(ctx, c.store.DB, sqlStr, pb.Params()...)
	if err != nil {
		return fmt.Errorf("load localizations: %w", err)
	}

	subPop := withoutLocalizations(pop)
	siblings := make([]any, 0, len(rows))
	for _, row := range rows {
		sibling, err := decodeDocumentRow(row)
		if err != nil {
			return err
		}
		if err := c.expandEntry(ctx, sibling, subPop, status); err != nil {
			return err
		}
		siblings = append(siblings, sibling)
	}
	entry["localizations"] = siblings
	return nil
}

func withoutLocalizations(pop any) any {
	m, ok := pop.(Populate)
	if !ok {
		if pop == true {
			return nil
		}
		return pop
	}
	out := make(Populate, len(m))
	for k, v := range m {
		if k == "localizations" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isCarrierKey(key string) bool {
	for _, k := range carrierKeys {
		if k == key {
			return true
		}
	}
	return false
}
