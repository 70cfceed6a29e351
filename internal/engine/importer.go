package engine

import (
	"context"
	"fmt"
	"log"
	"sort"

	"rocket-transfer/internal/media"
	"rocket-transfer/internal/portable"
	"rocket-transfer/internal/schema"
	"rocket-transfer/internal/store"
)

// Existing-entity policies.
const (
	ActionWarn   = "warn"
	ActionSkip   = "skip"
	ActionUpdate = "update"
)

// ImportOptions controls one import batch. DefaultImportOptions supplies
// the defaults; a zero value is not usable directly.
type ImportOptions struct {
	ExistingAction         string `json:"existingAction"`
	IgnoreMissingRelations bool   `json:"ignoreMissingRelations"`
	AllowDraftOnPublished  bool   `json:"allowDraftOnPublished"`
	AllowLocaleUpdates     bool   `json:"allowLocaleUpdates"`
	DisallowNewRelations   bool   `json:"disallowNewRelations"`
	CreateMissingEntities  bool   `json:"createMissingEntities"`
}

func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		ExistingAction:        ActionWarn,
		AllowDraftOnPublished: true,
	}
}

// Failure records one non-fatal problem hit during an import. The batch
// keeps going; the caller gets the full list.
type Failure struct {
	Error   string `json:"error"`
	Data    any    `json:"data,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Result is what an import run returns: pre-flight validation issues (the
// batch did not run) or processing failures (the batch ran around them).
type Result struct {
	Failures []Failure         `json:"failures"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
}

// ProgressFunc receives progress updates. Calls are fire-and-forget; a
// panicking or slow callback cannot fail or block the import.
type ProgressFunc func(fraction float64, message string)

// Importer applies portable documents to the store.
type Importer struct {
	store      store.Service
	reg        *schema.Registry
	media      media.Resolver
	guard      *RunGuard
	strategies map[string]*SearchStrategy
	progress   ProgressFunc
}

func NewImporter(svc store.Service, reg *schema.Registry, resolver media.Resolver, guard *RunGuard) *Importer {
	return &Importer{
		store:      svc,
		reg:        reg,
		media:      resolver,
		guard:      guard,
		strategies: map[string]*SearchStrategy{},
	}
}

// SetStrategy registers a fuzzy-match fallback for one content type.
func (i *Importer) SetStrategy(contentType string, strat *SearchStrategy) {
	i.strategies[contentType] = strat
}

func (i *Importer) SetProgress(fn ProgressFunc) {
	i.progress = fn
}

// importContext accumulates one batch. processed maps (contentType,
// identifier value) to the documentId it resolved to; created marks the
// subset this batch created, which the skip and warn policies treat as
// updatable.
type importContext struct {
	opts      ImportOptions
	doc       *portable.Document
	processed map[string]string
	created   map[string]bool
	importing map[string]bool
	failures  []Failure
}

func ledgerKey(contentType, idValue string) string {
	return contentType + "\x00" + idValue
}

func (c *importContext) addFailure(msg string, data any) {
	c.failures = append(c.failures, Failure{Error: msg, Data: data})
}

func (c *importContext) addFailureErr(err error, data any) {
	f := Failure{Error: err.Error(), Data: data}
	if appErr, ok := err.(*AppError); ok {
		f.Details = appErr.Details
	}
	c.failures = append(c.failures, f)
}

// Import validates and applies a portable document. Only one import runs
// at a time per process; a concurrent call fails with IMPORT_IN_PROGRESS.
// Validation issues abort before any write. Processing failures are
// collected per field and entry; the batch always runs to the end.
func (i *Importer) Import(ctx context.Context, doc *portable.Document, opts ImportOptions) (*Result, error) {
	if opts.ExistingAction == "" {
		opts.ExistingAction = ActionWarn
	}
	if !i.guard.TryAcquire() {
		return nil, ImportInProgressError()
	}
	defer i.guard.Release()

	if issues := i.Validate(ctx, doc, opts); len(issues) > 0 {
		return &Result{Failures: []Failure{}, Errors: issues}, nil
	}

	ictx := &importContext{
		opts:      opts,
		doc:       doc,
		processed: map[string]string{},
		created:   map[string]bool{},
		importing: map[string]bool{},
		failures:  []Failure{},
	}

	total := 0
	for _, entries := range doc.Data {
		total += len(entries)
	}
	done := 0

	for _, uid := range sortedKeys(doc.Data) {
		s := i.reg.GetModel(uid)
		if err := ValidateIdentifierField(s); err != nil {
			ictx.addFailureErr(err, uid)
			done += len(doc.Data[uid])
			continue
		}
		for _, entry := range doc.Data[uid] {
			i.importEntry(ctx, ictx, s, entry)
			done++
			i.reportProgress(float64(done)/float64(total), fmt.Sprintf("imported %d/%d entries", done, total))
		}
	}

	return &Result{Failures: ictx.failures}, nil
}

func (i *Importer) reportProgress(fraction float64, message string) {
	if i.progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("WARN: progress callback panicked: %v", r)
		}
	}()
	i.progress(fraction, message)
}

// importEntry applies one portable entry, published version first so a
// draft that follows lands on the document the published pass created.
func (i *Importer) importEntry(ctx context.Context, ictx *importContext, s *schema.Schema, entry portable.Entry) {
	defer func() {
		if r := recover(); r != nil {
			ictx.addFailure(fmt.Sprintf("entry import panicked: %v", r), s.UID)
		}
	}()

	for _, version := range entry.Versions() {
		i.importVersion(ctx, ictx, s, store.Status(version.Status), version.Locales)
	}
}

func (i *Importer) importVersion(ctx context.Context, ictx *importContext, s *schema.Schema, status store.Status, locales portable.LocaleMap) {
	idField := IdentifierField(s)
	names := orderedLocales(locales)
	firstObj := locales[names[0]]

	idValue := stringValue(firstObj[idField])
	if idValue == "" {
		ictx.addFailure(fmt.Sprintf("%s entry has no value for identifier field %q", s.UID, idField), firstObj)
		return
	}
	key := ledgerKey(s.UID, idValue)
	coll := i.store.Documents(s.UID)

	documentID, proceed := i.resolveTarget(ctx, ictx, s, coll, key, idField, idValue, status, names, locales, firstObj)
	if !proceed {
		return
	}

	for _, locale := range names {
		data := Sanitize(s, i.hydrate(ctx, ictx, locales[locale], s))
		q := store.Query{Data: data, Status: status, Locale: locale}

		if documentID == "" {
			created, err := coll.Create(ctx, q)
			if err != nil {
				ictx.addFailure(fmt.Sprintf("create %s %q: %v", s.UID, idValue, err), locales[locale])
				return
			}
			documentID = stringValue(created["documentId"])
			ictx.processed[key] = documentID
			ictx.created[key] = true
			continue
		}

		if _, err := coll.Update(ctx, documentID, q); err != nil {
			ictx.addFailure(fmt.Sprintf("update %s %q locale %s: %v", s.UID, idValue, locale, err), locales[locale])
			continue
		}
		ictx.processed[key] = documentID
	}
}

// resolveTarget runs the existing-entity state machine for one version.
// It returns the documentId to write to ("" means create) and whether the
// write should proceed at all.
func (i *Importer) resolveTarget(
	ctx context.Context,
	ictx *importContext,
	s *schema.Schema,
	coll store.Collection,
	key, idField, idValue string,
	status store.Status,
	names []string,
	locales portable.LocaleMap,
	firstObj map[string]any,
) (string, bool) {
	if docID, ok := ictx.processed[key]; ok {
		// Identity already resolved this batch. Entities the batch
		// created stay writable under every policy; pre-existing ones
		// re-enter the policy below.
		if ictx.created[key] {
			return docID, true
		}
		switch ictx.opts.ExistingAction {
		case ActionUpdate:
			return docID, true
		case ActionSkip:
			i.importMissingLocales(ctx, ictx, s, coll, docID, names, locales)
			return "", false
		default:
			ictx.addFailure(fmt.Sprintf("%s %q already exists", s.UID, idValue), firstObj)
			return "", false
		}
	}

	existingID, err := i.lookupStore(ctx, s, idField, idValue)
	if err != nil {
		ictx.addFailureErr(err, firstObj)
		return "", false
	}
	if existingID == "" {
		return "", true
	}

	switch ictx.opts.ExistingAction {
	case ActionWarn:
		ictx.addFailure(fmt.Sprintf("%s %q already exists", s.UID, idValue), firstObj)
		return "", false

	case ActionSkip:
		ictx.processed[key] = existingID
		i.importMissingLocales(ctx, ictx, s, coll, existingID, names, locales)
		return "", false

	default: // update
		if status == store.StatusDraft && !ictx.opts.AllowDraftOnPublished {
			pub, err := coll.FindFirst(ctx, store.Query{Filters: map[string]any{idField: idValue}, Status: store.StatusPublished})
			if err != nil {
				ictx.addFailure(fmt.Sprintf("lookup %s %q: %v", s.UID, idValue, err), firstObj)
				return "", false
			}
			if pub != nil {
				ictx.addFailure(fmt.Sprintf("%s %q has a published version; draft update not allowed", s.UID, idValue), firstObj)
				return "", false
			}
		}
		return existingID, true
	}
}

// importMissingLocales is the one write path the skip policy allows: when
// allowLocaleUpdates is set, locales the document does not have yet in any
// status are added; everything else stays untouched.
func (i *Importer) importMissingLocales(ctx context.Context, ictx *importContext, s *schema.Schema, coll store.Collection, documentID string, names []string, locales portable.LocaleMap) {
	if !ictx.opts.AllowLocaleUpdates {
		return
	}
	rows, err := coll.FindMany(ctx, store.Query{Filters: map[string]any{"documentId": documentID}})
	if err != nil {
		ictx.addFailure(fmt.Sprintf("list locales of %s %s: %v", s.UID, documentID, err), nil)
		return
	}
	existing := map[string]bool{}
	for _, row := range rows {
		existing[stringValue(row["locale"])] = true
	}

	for _, locale := range names {
		if existing[locale] {
			continue
		}
		data := Sanitize(s, i.hydrate(ctx, ictx, locales[locale], s))
		if _, err := coll.Update(ctx, documentID, store.Query{Data: data, Status: store.StatusDraft, Locale: locale}); err != nil {
			ictx.addFailure(fmt.Sprintf("add locale %s to %s %s: %v", locale, s.UID, documentID, err), locales[locale])
		}
	}
}

// findInBatch scans the batch document for an entry of the given type
// whose identifier matches, in any status or locale.
func findInBatch(ictx *importContext, contentType, idField, value string) (portable.Entry, bool) {
	return findInBatchDoc(ictx.doc, contentType, idField, value)
}

// orderedLocales puts the default locale first so it drives creation, then
// the rest sorted for determinism.
func orderedLocales(locales portable.LocaleMap) []string {
	names := make([]string, 0, len(locales))
	hasDefault := false
	for name := range locales {
		if name == portable.DefaultLocale {
			hasDefault = true
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if hasDefault {
		names = append([]string{portable.DefaultLocale}, names...)
	}
	return names
}
