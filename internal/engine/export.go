package engine

import (
	"context"
	"fmt"
	"log"
	"sort"

	"rocket-transfer/internal/portable"
	"rocket-transfer/internal/schema"
	"rocket-transfer/internal/store"
)

// DefaultExportDepth bounds the relation-closure expansion of an export.
const DefaultExportDepth = 20

// adminUserType is never exported, even when referenced by createdBy-style
// relations; accounts do not travel between installations.
const adminUserType = "admin::user"

// ExportOptions selects what goes into a portable document.
type ExportOptions struct {
	ContentTypes     []string       `json:"contentTypes"`
	DocumentIDs      []string       `json:"documentIds"`
	Search           map[string]any `json:"search"`
	ApplySearch      bool           `json:"applySearch"`
	ExportAllLocales bool           `json:"exportAllLocales"`
	ExportRelations  bool           `json:"exportRelations"`
	MaxDepth         int            `json:"maxDepth"`
}

// DefaultExportOptions returns the option set an empty request implies:
// every locale, the default depth bound, no relation closure.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		ExportAllLocales: true,
		MaxDepth:         DefaultExportDepth,
	}
}

// Exporter builds portable documents from the store.
type Exporter struct {
	store         store.Service
	reg           *schema.Registry
	flattener     *Flattener
	populateDepth int
}

func NewExporter(svc store.Service, reg *schema.Registry, publicHost string) *Exporter {
	return &Exporter{
		store:         svc,
		reg:           reg,
		flattener:     NewFlattener(reg, publicHost),
		populateDepth: DefaultPopulateDepth,
	}
}

// exportContext accumulates one export run. processed tracks documentIds
// already emitted; seen tracks identifier values per content type that
// have been emitted or queued, so the closure converges.
type exportContext struct {
	opts      ExportOptions
	doc       *portable.Document
	processed map[string]bool
	seen      map[string]map[string]bool
	pending   map[string]map[string]bool
}

func (c *exportContext) discover(contentType, idValue string) {
	if contentType == adminUserType || idValue == "" {
		return
	}
	if c.seen[contentType][idValue] {
		return
	}
	if c.seen[contentType] == nil {
		c.seen[contentType] = map[string]bool{}
	}
	c.seen[contentType][idValue] = true
	if c.pending[contentType] == nil {
		c.pending[contentType] = map[string]bool{}
	}
	c.pending[contentType][idValue] = true
}

// Export produces a version-3 document for the requested content types,
// then expands the relation closure breadth-first until it reaches a
// fixpoint or the depth bound.
func (e *Exporter) Export(ctx context.Context, opts ExportOptions) (*portable.Document, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultExportDepth
	}

	ectx := &exportContext{
		opts:      opts,
		doc:       portable.NewDocument(),
		processed: map[string]bool{},
		seen:      map[string]map[string]bool{},
		pending:   map[string]map[string]bool{},
	}

	for _, uid := range opts.ContentTypes {
		s := e.reg.GetModel(uid)
		if s == nil {
			return nil, UnknownContentTypeError(uid)
		}
		if err := ValidateIdentifierField(s); err != nil {
			log.Printf("WARN: skipping export of %s: %v", uid, err)
			continue
		}
		if err := e.exportSet(ctx, ectx, s, e.rootFilters(opts)); err != nil {
			return nil, err
		}
	}

	if opts.ExportRelations {
		if err := e.expandRelations(ctx, ectx); err != nil {
			return nil, err
		}
	}

	return ectx.doc, nil
}

func (e *Exporter) rootFilters(opts ExportOptions) map[string]any {
	filters := map[string]any{}
	if len(opts.DocumentIDs) > 0 {
		ids := make([]any, len(opts.DocumentIDs))
		for i, id := range opts.DocumentIDs {
			ids[i] = id
		}
		filters["documentId"] = ids
	}
	if opts.ApplySearch {
		for field, value := range opts.Search {
			filters[field] = value
		}
	}
	if len(filters) == 0 {
		return nil
	}
	return filters
}

// expandRelations drains the pending queue in depth waves. Each wave
// exports the entities discovered by the previous one; hitting the bound
// with work left logs a truncation warning rather than failing the run.
func (e *Exporter) expandRelations(ctx context.Context, ectx *exportContext) error {
	for depth := 0; depth < ectx.opts.MaxDepth; depth++ {
		if !hasPending(ectx) {
			return nil
		}
		wave := ectx.pending
		ectx.pending = map[string]map[string]bool{}

		for _, uid := range sortedKeys(wave) {
			s := e.reg.GetModel(uid)
			if s == nil {
				log.Printf("WARN: skipping related export of unknown content type %s", uid)
				continue
			}
			if err := ValidateIdentifierField(s); err != nil {
				log.Printf("WARN: skipping related export of %s: %v", uid, err)
				continue
			}
			values := sortedKeys(wave[uid])
			idField := IdentifierField(s)
			in := make([]any, len(values))
			for i, v := range values {
				in[i] = v
			}
			if err := e.exportSet(ctx, ectx, s, map[string]any{idField: in}); err != nil {
				return err
			}
		}
	}
	if hasPending(ectx) {
		log.Printf("WARN: relation expansion truncated at depth %d", ectx.opts.MaxDepth)
	}
	return nil
}

// exportSet fetches both statuses of the matching documents, groups rows
// per logical document, and emits one portable entry each.
func (e *Exporter) exportSet(ctx context.Context, ectx *exportContext, s *schema.Schema, filters map[string]any) error {
	coll := e.store.Documents(s.UID)
	plan := BuildPopulatePlan(e.reg, s, e.populateDepth)

	published, err := coll.FindMany(ctx, store.Query{Status: store.StatusPublished, Filters: filters, Populate: plan})
	if err != nil {
		return fmt.Errorf("export %s published: %w", s.UID, err)
	}
	drafts, err := coll.FindMany(ctx, store.Query{Status: store.StatusDraft, Filters: filters, Populate: plan})
	if err != nil {
		return fmt.Errorf("export %s drafts: %w", s.UID, err)
	}

	pubByDoc := groupByDocument(published, ectx.opts.ExportAllLocales)
	draftByDoc := groupByDocument(drafts, ectx.opts.ExportAllLocales)

	for _, docID := range documentOrder(pubByDoc, draftByDoc) {
		if ectx.processed[docID] {
			continue
		}
		ectx.processed[docID] = true

		entry := GroupByLocale(e.flattener, s, draftByDoc[docID], pubByDoc[docID], ectx.opts.ExportAllLocales)
		ectx.doc.Data[s.UID] = append(ectx.doc.Data[s.UID], entry)

		e.recordEntry(ectx, s, entry)
	}
	return nil
}

// recordEntry marks the entry's own identity as seen and queues every
// relation value it carries for the next closure wave.
func (e *Exporter) recordEntry(ectx *exportContext, s *schema.Schema, entry portable.Entry) {
	idField := IdentifierField(s)
	for _, version := range entry.Versions() {
		for _, obj := range version.Locales {
			if idValue := stringValue(obj[idField]); idValue != "" {
				if ectx.seen[s.UID] == nil {
					ectx.seen[s.UID] = map[string]bool{}
				}
				ectx.seen[s.UID][idValue] = true
			}
			e.collectRefs(ectx, s, obj)
		}
	}
}

func (e *Exporter) collectRefs(ectx *exportContext, s *schema.Schema, obj map[string]any) {
	for i := range s.Attributes {
		attr := &s.Attributes[i]
		value := obj[attr.Name]
		if value == nil {
			continue
		}
		switch attr.Kind {
		case schema.KindRelation:
			if attr.IsToMany() {
				for _, v := range asSlice(value) {
					ectx.discover(attr.Target, stringValue(v))
				}
			} else {
				ectx.discover(attr.Target, stringValue(value))
			}

		case schema.KindComponent:
			comp := e.reg.GetModel(attr.Component)
			if comp == nil {
				continue
			}
			if attr.Repeatable {
				for _, item := range asSlice(value) {
					if m, ok := item.(map[string]any); ok {
						e.collectRefs(ectx, comp, m)
					}
				}
			} else if m, ok := value.(map[string]any); ok {
				e.collectRefs(ectx, comp, m)
			}

		case schema.KindDynamicZone:
			for _, item := range asSlice(value) {
				m, ok := item.(map[string]any)
				if !ok {
					continue
				}
				uid, _ := m["__component"].(string)
				if comp := e.reg.GetModel(uid); comp != nil {
					e.collectRefs(ectx, comp, m)
				}
			}
		}
	}
}

// groupByDocument folds locale rows into one primary entry per documentId
// with the other locales attached as localizations. The default locale
// wins as primary when present.
func groupByDocument(rows []map[string]any, allLocales bool) map[string]map[string]any {
	byDoc := map[string][]map[string]any{}
	for _, row := range rows {
		docID := stringValue(row["documentId"])
		if docID == "" {
			continue
		}
		byDoc[docID] = append(byDoc[docID], row)
	}

	out := make(map[string]map[string]any, len(byDoc))
	for docID, group := range byDoc {
		primary := group[0]
		for _, row := range group {
			if stringValue(row["locale"]) == portable.DefaultLocale {
				primary = row
				break
			}
		}
		if allLocales {
			var siblings []any
			for _, row := range group {
				if row["locale"] != primary["locale"] {
					// Rows carry their own localizations from populate;
					// drop them so each locale appears exactly once.
					delete(row, "localizations")
					siblings = append(siblings, row)
				}
			}
			primary["localizations"] = siblings
		} else {
			delete(primary, "localizations")
		}
		out[docID] = primary
	}
	return out
}

func documentOrder(pub, draft map[string]map[string]any) []string {
	set := map[string]bool{}
	for id := range pub {
		set[id] = true
	}
	for id := range draft {
		set[id] = true
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func hasPending(ectx *exportContext) bool {
	for _, values := range ectx.pending {
		if len(values) > 0 {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
