package engine

import (
	"testing"
)

func TestFlattenRelationsBecomeIdentifiers(t *testing.T) {
	reg := testRegistry()
	f := NewFlattener(reg, "https://cms.example.com")
	article := reg.GetModel("api::article.article")

	entry := map[string]any{
		"documentId": "doc-1",
		"title":      "Go 1.24",
		"category":   map[string]any{"documentId": "doc-2", "name": "Tech"},
		"tags": []any{
			map[string]any{"documentId": "doc-3", "name": "go"},
			map[string]any{"documentId": "doc-4", "name": "release"},
		},
	}

	out := f.Flatten(entry, article, FlattenOptions{})
	if out["category"] != "Tech" {
		t.Errorf("category should flatten to identifier value, got %v", out["category"])
	}
	tags, _ := out["tags"].([]any)
	if len(tags) != 2 || tags[0] != "go" || tags[1] != "release" {
		t.Errorf("tags should flatten to identifier values, got %v", out["tags"])
	}
	if _, ok := out["documentId"]; ok {
		t.Error("documentId must not reach the wire")
	}
}

func TestFlattenStripsInternalFields(t *testing.T) {
	reg := testRegistry()
	f := NewFlattener(reg, "")
	article := reg.GetModel("api::article.article")

	out := f.Flatten(map[string]any{
		"id":        float64(42),
		"title":     "A",
		"createdBy": map[string]any{"documentId": "u1"},
		"updatedBy": map[string]any{"documentId": "u1"},
	}, article, FlattenOptions{})

	for _, key := range []string{"id", "createdBy", "updatedBy"} {
		if _, ok := out[key]; ok {
			t.Errorf("%s must be stripped", key)
		}
	}
}

func TestFlattenComponentAndDynamicZone(t *testing.T) {
	reg := testRegistry()
	f := NewFlattener(reg, "")
	article := reg.GetModel("api::article.article")

	entry := map[string]any{
		"title": "A",
		"seo":   map[string]any{"keywords": "go,cms"},
		"blocks": []any{
			map[string]any{
				"__component": "shared.quote",
				"text":        "quoted",
				"author":      map[string]any{"documentId": "doc-9", "name": "Ada"},
			},
			map[string]any{
				"__component": "unknown.gone",
				"text":        "dropped",
			},
		},
	}

	out := f.Flatten(entry, article, FlattenOptions{})

	seo, _ := out["seo"].(map[string]any)
	if seo["keywords"] != "go,cms" {
		t.Errorf("component should stay inline, got %v", out["seo"])
	}

	blocks, _ := out["blocks"].([]any)
	if len(blocks) != 1 {
		t.Fatalf("unknown component items should be dropped, got %d items", len(blocks))
	}
	quote, _ := blocks[0].(map[string]any)
	if quote["__component"] != "shared.quote" {
		t.Error("dynamic zone items must keep their __component tag")
	}
	if quote["author"] != "Ada" {
		t.Errorf("relation inside dynamic zone should flatten, got %v", quote["author"])
	}
}

func TestFlattenMediaDescriptor(t *testing.T) {
	reg := testRegistry()
	f := NewFlattener(reg, "https://cms.example.com")
	article := reg.GetModel("api::article.article")

	out := f.Flatten(map[string]any{
		"title": "A",
		"cover": map[string]any{
			"url":       "/uploads/cover.png",
			"name":      "cover.png",
			"hash":      "abc123",
			"mime":      "image/png",
			"createdAt": "2026-01-01T00:00:00Z",
			"updatedAt": "2026-01-02T00:00:00Z",
		},
	}, article, FlattenOptions{})

	cover, _ := out["cover"].(map[string]any)
	if cover["url"] != "https://cms.example.com/uploads/cover.png" {
		t.Errorf("relative media url should be absolutized, got %v", cover["url"])
	}
	if cover["hash"] != "abc123" {
		t.Errorf("hash should survive, got %v", cover["hash"])
	}
	if cover["createdAt"] != "2026-01-01T00:00:00Z" || cover["updatedAt"] != "2026-01-02T00:00:00Z" {
		t.Errorf("file timestamps should survive, got %v", cover)
	}
	if _, ok := cover["publishedAt"]; !ok {
		t.Error("descriptor should carry a publishedAt key")
	}
	if _, ok := cover["mime"]; ok {
		t.Error("mime is not part of the descriptor shape")
	}
}

func TestFlattenFieldFailureIsolated(t *testing.T) {
	reg := testRegistry()
	f := NewFlattener(reg, "")
	article := reg.GetModel("api::article.article")

	// category holds a scalar instead of an object; the field fails but
	// the rest of the entry survives.
	out := f.Flatten(map[string]any{
		"title":    "A",
		"category": "not-an-object",
	}, article, FlattenOptions{})

	if out["category"] != nil {
		t.Errorf("failed field should be nil, got %v", out["category"])
	}
	if out["title"] != "A" {
		t.Error("other fields must survive a field failure")
	}
}

func TestFlattenLocalizationsOnlyAtTopLevel(t *testing.T) {
	reg := testRegistry()
	f := NewFlattener(reg, "")
	article := reg.GetModel("api::article.article")

	entry := map[string]any{
		"title":  "Hello",
		"locale": "en",
		"localizations": []any{
			map[string]any{
				"title":  "Hallo",
				"locale": "de",
				// A localization carrying its own localizations must not
				// recurse.
				"localizations": []any{
					map[string]any{"title": "Hello", "locale": "en"},
				},
			},
		},
	}

	out := f.Flatten(entry, article, FlattenOptions{ProcessLocalizations: true})
	sibs, _ := out["localizations"].([]any)
	if len(sibs) != 1 {
		t.Fatalf("expected 1 localization, got %d", len(sibs))
	}
	de, _ := sibs[0].(map[string]any)
	if _, ok := de["localizations"]; ok {
		t.Error("nested localizations must not recurse")
	}

	// Without the flag the field disappears entirely.
	out = f.Flatten(entry, article, FlattenOptions{})
	if _, ok := out["localizations"]; ok {
		t.Error("localizations must be dropped when not processing locales")
	}
}
