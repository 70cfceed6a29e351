package engine

import (
	"context"
	"strings"
	"testing"

	"rocket-transfer/internal/portable"
	"rocket-transfer/internal/schema"
	"rocket-transfer/internal/store"
)

func validateDoc(t *testing.T, mem *memStore, doc *portable.Document, opts ImportOptions) []ValidationIssue {
	t.Helper()
	imp := testImporter(mem, testRegistry())
	return imp.Validate(context.Background(), doc, opts)
}

func hasIssue(issues []ValidationIssue, substr string) bool {
	for _, issue := range issues {
		if strings.Contains(issue.Error, substr) {
			return true
		}
	}
	return false
}

func TestValidateUnknownContentTypeAndField(t *testing.T) {
	doc := portable.NewDocument()
	doc.Data["api::nope.nope"] = []portable.Entry{
		publishedEntry(map[string]any{"x": 1}),
	}
	doc.Data["api::category.category"] = []portable.Entry{
		publishedEntry(map[string]any{"name": "Tech", "color": "red"}),
	}

	issues := validateDoc(t, newMemStore(), doc, DefaultImportOptions())
	if !hasIssue(issues, "unknown content type") {
		t.Errorf("expected unknown content type issue, got %v", issues)
	}
	if !hasIssue(issues, `unknown field "color"`) {
		t.Errorf("expected unknown field issue, got %v", issues)
	}
}

func TestValidateComponentAsRoot(t *testing.T) {
	doc := portable.NewDocument()
	doc.Data["shared.meta"] = []portable.Entry{
		publishedEntry(map[string]any{"keywords": "k"}),
	}
	issues := validateDoc(t, newMemStore(), doc, DefaultImportOptions())
	if !hasIssue(issues, "component, not a content type") {
		t.Errorf("expected component root issue, got %v", issues)
	}
}

func TestValidateRequiredField(t *testing.T) {
	doc := docWith("api::category.category", publishedEntry(map[string]any{}))
	issues := validateDoc(t, newMemStore(), doc, DefaultImportOptions())
	if !hasIssue(issues, `required field "name" is missing`) {
		t.Errorf("expected required field issue, got %v", issues)
	}
}

func TestValidateDuplicateIdentifiers(t *testing.T) {
	doc := portable.NewDocument()
	doc.Data["api::category.category"] = []portable.Entry{
		publishedEntry(map[string]any{"name": "Tech"}),
		publishedEntry(map[string]any{"name": "Tech"}),
	}
	issues := validateDoc(t, newMemStore(), doc, DefaultImportOptions())
	if !hasIssue(issues, "duplicate identifier") {
		t.Errorf("expected duplicate identifier issue, got %v", issues)
	}
}

func TestValidateRelativeMediaURLWithoutHash(t *testing.T) {
	doc := docWith("api::article.article", publishedEntry(map[string]any{
		"title": "A",
		"cover": map[string]any{"url": "/uploads/cover.png", "name": "cover.png"},
	}))
	issues := validateDoc(t, newMemStore(), doc, DefaultImportOptions())
	if !hasIssue(issues, "relative") {
		t.Errorf("expected relative url issue, got %v", issues)
	}

	// With a hash the descriptor can match an existing file, so it passes.
	doc = docWith("api::article.article", publishedEntry(map[string]any{
		"title": "A",
		"cover": map[string]any{"url": "/uploads/cover.png", "hash": "abc"},
	}))
	if issues := validateDoc(t, newMemStore(), doc, DefaultImportOptions()); len(issues) != 0 {
		t.Errorf("hashed relative descriptor should pass, got %v", issues)
	}
}

func TestValidateUnknownDynamicZoneComponent(t *testing.T) {
	doc := docWith("api::article.article", publishedEntry(map[string]any{
		"title": "A",
		"blocks": []any{
			map[string]any{"__component": "unknown.gone", "text": "x"},
		},
	}))
	issues := validateDoc(t, newMemStore(), doc, DefaultImportOptions())
	if !hasIssue(issues, "unknown component") {
		t.Errorf("expected unknown component issue, got %v", issues)
	}
}

func TestValidateDisallowedDynamicZoneComponent(t *testing.T) {
	reg := testRegistry()
	// A component that is registered but not in the zone's allow list.
	extra := &schema.Schema{
		UID:  "shared.extra",
		Kind: schema.KindComponentType,
		Attributes: []schema.Attribute{
			{Name: "note", Kind: schema.KindScalar, Type: "string"},
		},
	}
	var components []*schema.Schema
	for _, uid := range []string{"shared.quote", "shared.meta"} {
		components = append(components, reg.GetModel(uid))
	}
	reg.Load(reg.AllContentTypes(), append(components, extra))

	imp := NewImporter(newMemStore(), reg, &memResolver{}, &RunGuard{})
	doc := docWith("api::article.article", publishedEntry(map[string]any{
		"title": "A",
		"blocks": []any{
			map[string]any{"__component": "shared.extra", "note": "x"},
		},
	}))
	issues := imp.Validate(context.Background(), doc, DefaultImportOptions())
	if !hasIssue(issues, "not allowed in this dynamic zone") {
		t.Errorf("expected disallowed component issue, got %v", issues)
	}
}

func articleSlugAttr() schema.Attribute {
	return schema.Attribute{Name: "slug", Kind: schema.KindScalar, Type: "string", Unique: true}
}

func TestValidateUnresolvableRequiredRelation(t *testing.T) {
	reg := testRegistry()
	// Make the category relation required for this test.
	article := reg.GetModel("api::article.article")
	article.Attribute("category").Required = true

	imp := NewImporter(newMemStore(), reg, &memResolver{}, &RunGuard{})
	doc := docWith("api::article.article", publishedEntry(map[string]any{
		"title":    "A",
		"category": "Ghost",
	}))

	issues := imp.Validate(context.Background(), doc, DefaultImportOptions())
	if !hasIssue(issues, "cannot be resolved") {
		t.Errorf("expected unresolvable relation issue, got %v", issues)
	}

	// Resolvable in-batch: no issue.
	doc.Data["api::category.category"] = []portable.Entry{
		publishedEntry(map[string]any{"name": "Ghost"}),
	}
	if issues := imp.Validate(context.Background(), doc, DefaultImportOptions()); len(issues) != 0 {
		t.Errorf("in-batch relation should validate, got %v", issues)
	}

	// createMissingEntities waives the check.
	doc.Data = map[string][]portable.Entry{
		"api::article.article": {publishedEntry(map[string]any{"title": "A", "category": "Ghost"})},
	}
	opts := DefaultImportOptions()
	opts.CreateMissingEntities = true
	if issues := imp.Validate(context.Background(), doc, opts); len(issues) != 0 {
		t.Errorf("creation rules waive resolvability, got %v", issues)
	}
}

func TestValidateUniqueFieldCollision(t *testing.T) {
	reg := testRegistry()
	article := reg.GetModel("api::article.article")
	article.Attributes = append(article.Attributes, articleSlugAttr())

	mem := newMemStore()
	mem.seed("api::article.article", "doc-a1", "default", store.StatusPublished,
		map[string]any{"title": "Other", "slug": "taken"})

	imp := NewImporter(mem, reg, &memResolver{}, &RunGuard{})
	doc := docWith("api::article.article", publishedEntry(map[string]any{
		"title": "Mine",
		"slug":  "taken",
	}))
	issues := imp.Validate(context.Background(), doc, DefaultImportOptions())
	if !hasIssue(issues, "already belongs to another") {
		t.Errorf("expected uniqueness issue, got %v", issues)
	}
}
