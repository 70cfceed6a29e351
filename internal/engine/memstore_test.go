package engine

import (
	"context"
	"fmt"

	"rocket-transfer/internal/portable"
	"rocket-transfer/internal/store"
)

// memStore is an in-memory store.Service for engine tests. It mirrors the
// SQL store's contract: rows keyed by (documentId, locale, status), refs
// expanded on read when a populate is given, localizations attached as
// sibling locale rows.
type memStore struct {
	colls map[string]*memCollection
	files map[string]map[string]any
	seq   int
}

func newMemStore() *memStore {
	return &memStore{
		colls: map[string]*memCollection{},
		files: map[string]map[string]any{},
	}
}

func (m *memStore) Documents(contentType string) store.Collection {
	return m.collection(contentType)
}

func (m *memStore) collection(contentType string) *memCollection {
	if c, ok := m.colls[contentType]; ok {
		return c
	}
	c := &memCollection{store: m, contentType: contentType}
	m.colls[contentType] = c
	return c
}

// seed inserts a row directly, bypassing Create bookkeeping.
func (m *memStore) seed(contentType, documentID, locale string, status store.Status, data map[string]any) {
	c := m.collection(contentType)
	c.rows = append(c.rows, &memRow{
		documentID: documentID,
		locale:     locale,
		status:     status,
		data:       data,
	})
}

type memRow struct {
	documentID string
	locale     string
	status     store.Status
	data       map[string]any
}

type memCollection struct {
	store       *memStore
	contentType string
	rows        []*memRow
	creates     int
	updates     int
}

func (c *memCollection) FindFirst(_ context.Context, q store.Query) (map[string]any, error) {
	matches := c.match(q)
	if len(matches) == 0 {
		return nil, nil
	}
	return c.entry(matches[0], q.Populate), nil
}

func (c *memCollection) FindOne(_ context.Context, documentID string, q store.Query) (map[string]any, error) {
	for _, row := range c.match(q) {
		if row.documentID == documentID {
			return c.entry(row, q.Populate), nil
		}
	}
	return nil, nil
}

func (c *memCollection) FindMany(_ context.Context, q store.Query) ([]map[string]any, error) {
	matches := c.match(q)
	out := make([]map[string]any, 0, len(matches))
	for i, row := range matches {
		if q.Limit > 0 && i >= q.Limit {
			break
		}
		out = append(out, c.entry(row, q.Populate))
	}
	return out, nil
}

func (c *memCollection) Create(_ context.Context, q store.Query) (map[string]any, error) {
	c.creates++
	c.store.seq++
	locale := q.Locale
	if locale == "" {
		locale = portable.DefaultLocale
	}
	row := &memRow{
		documentID: fmt.Sprintf("doc-%d", c.store.seq),
		locale:     locale,
		status:     q.Status,
		data:       q.Data,
	}
	c.rows = append(c.rows, row)
	return c.entry(row, nil), nil
}

func (c *memCollection) Update(_ context.Context, documentID string, q store.Query) (map[string]any, error) {
	c.updates++
	locale := q.Locale
	if locale == "" {
		locale = portable.DefaultLocale
	}
	for _, row := range c.rows {
		if row.documentID == documentID && row.locale == locale && row.status == q.Status {
			row.data = q.Data
			return c.entry(row, nil), nil
		}
	}
	// New locale or status variant of an existing document.
	row := &memRow{documentID: documentID, locale: locale, status: q.Status, data: q.Data}
	c.rows = append(c.rows, row)
	return c.entry(row, nil), nil
}

func (c *memCollection) match(q store.Query) []*memRow {
	var out []*memRow
	for _, row := range c.rows {
		if q.Status != "" && row.status != q.Status {
			continue
		}
		if q.Locale != "" && row.locale != q.Locale {
			continue
		}
		if !rowMatches(row, q.Filters) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func rowMatches(row *memRow, filters map[string]any) bool {
	for field, want := range filters {
		var got any
		if field == "documentId" {
			got = row.documentID
		} else {
			got = row.data[field]
		}
		if list, ok := want.([]any); ok {
			found := false
			for _, w := range list {
				if fmt.Sprint(got) == fmt.Sprint(w) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func (c *memCollection) entry(row *memRow, populate any) map[string]any {
	out := make(map[string]any, len(row.data)+3)
	for k, v := range row.data {
		if populate != nil {
			v = c.store.expand(v)
		}
		out[k] = v
	}
	out["documentId"] = row.documentID
	out["locale"] = row.locale
	// Row timestamps mirror the SQL store, which stamps every row. Draft
	// and published variants of one document never share them.
	out["createdAt"] = "2026-01-01T08:00:00Z"
	out["updatedAt"] = "2026-01-01T08:00:00Z"
	if row.status == store.StatusPublished {
		out["publishedAt"] = "2026-01-01T00:00:00Z"
		out["createdAt"] = "2026-01-01T09:00:00Z"
		out["updatedAt"] = "2026-01-01T09:00:00Z"
	}
	if populate != nil {
		out["localizations"] = c.localizations(row)
	}
	return out
}

func (c *memCollection) localizations(row *memRow) []any {
	var out []any
	for _, sib := range c.rows {
		if sib.documentID != row.documentID || sib.status != row.status || sib.locale == row.locale {
			continue
		}
		sibEntry := make(map[string]any, len(sib.data)+2)
		for k, v := range sib.data {
			sibEntry[k] = c.store.expand(v)
		}
		sibEntry["documentId"] = sib.documentID
		sibEntry["locale"] = sib.locale
		out = append(out, sibEntry)
	}
	return out
}

// expand walks a value and replaces relation and file refs with the entry
// they point at, at any nesting depth.
func (m *memStore) expand(value any) any {
	switch v := value.(type) {
	case map[string]any:
		if store.IsRelationRef(v) {
			return m.expandRelation(v)
		}
		if store.IsFileRef(v) {
			if file, ok := m.files[fmt.Sprint(v["fileId"])]; ok {
				return file
			}
			return nil
		}
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = m.expand(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = m.expand(item)
		}
		return out
	default:
		return value
	}
}

func (m *memStore) expandRelation(ref map[string]any) any {
	contentType := fmt.Sprint(ref["__type"])
	documentID := fmt.Sprint(ref["documentId"])
	coll, ok := m.colls[contentType]
	if !ok {
		return nil
	}
	var fallback *memRow
	for _, row := range coll.rows {
		if row.documentID != documentID {
			continue
		}
		if row.status == store.StatusPublished {
			return coll.entry(row, nil)
		}
		if fallback == nil {
			fallback = row
		}
	}
	if fallback == nil {
		return nil
	}
	return coll.entry(fallback, nil)
}

// memResolver is a media.Resolver backed by a map from hash to file entry.
type memResolver struct {
	byHash map[string]map[string]any
	calls  int
}

func (r *memResolver) FindOrImportFile(_ context.Context, descriptor map[string]any, _ []string) (map[string]any, error) {
	r.calls++
	hash, _ := descriptor["hash"].(string)
	if file, ok := r.byHash[hash]; ok {
		return file, nil
	}
	return nil, nil
}
