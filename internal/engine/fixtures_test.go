package engine

import "rocket-transfer/internal/schema"

// testRegistry builds the content model used across engine tests: articles
// with relations, a dynamic zone, a component and media, plus the
// supporting types.
func testRegistry() *schema.Registry {
	article := &schema.Schema{
		UID:  "api::article.article",
		Kind: schema.KindCollection,
		Attributes: []schema.Attribute{
			{Name: "title", Kind: schema.KindScalar, Type: "string", Required: true, Unique: true},
			{Name: "body", Kind: schema.KindScalar, Type: "text"},
			{Name: "category", Kind: schema.KindRelation, Target: "api::category.category", Cardinality: schema.CardinalityOne},
			{Name: "tags", Kind: schema.KindRelation, Target: "api::tag.tag", Cardinality: schema.CardinalityMany},
			{Name: "seo", Kind: schema.KindComponent, Component: "shared.meta"},
			{Name: "blocks", Kind: schema.KindDynamicZone, Components: []string{"shared.quote", "shared.meta"}},
			{Name: "cover", Kind: schema.KindMedia, AllowedTypes: []string{"images"}},
			{Name: "owner", Kind: schema.KindRelation, Target: "admin::user", Cardinality: schema.CardinalityOne},
		},
	}
	adminUser := &schema.Schema{
		UID:  "admin::user",
		Kind: schema.KindCollection,
		Attributes: []schema.Attribute{
			{Name: "email", Kind: schema.KindScalar, Type: "string", Required: true, Unique: true},
		},
		Identifier: "email",
	}
	category := &schema.Schema{
		UID:  "api::category.category",
		Kind: schema.KindCollection,
		Attributes: []schema.Attribute{
			{Name: "name", Kind: schema.KindScalar, Type: "string", Required: true, Unique: true},
		},
	}
	tag := &schema.Schema{
		UID:  "api::tag.tag",
		Kind: schema.KindCollection,
		Attributes: []schema.Attribute{
			{Name: "name", Kind: schema.KindScalar, Type: "string", Required: true, Unique: true},
		},
	}
	author := &schema.Schema{
		UID:  "api::author.author",
		Kind: schema.KindCollection,
		Attributes: []schema.Attribute{
			{Name: "name", Kind: schema.KindScalar, Type: "string", Required: true, Unique: true},
			{Name: "avatar", Kind: schema.KindMedia, AllowedTypes: []string{"images"}},
		},
	}
	quote := &schema.Schema{
		UID:  "shared.quote",
		Kind: schema.KindComponentType,
		Attributes: []schema.Attribute{
			{Name: "text", Kind: schema.KindScalar, Type: "string"},
			{Name: "author", Kind: schema.KindRelation, Target: "api::author.author", Cardinality: schema.CardinalityOne},
		},
	}
	meta := &schema.Schema{
		UID:  "shared.meta",
		Kind: schema.KindComponentType,
		Attributes: []schema.Attribute{
			{Name: "keywords", Kind: schema.KindScalar, Type: "string"},
		},
	}

	reg := schema.NewRegistry()
	reg.Load(
		[]*schema.Schema{article, category, tag, author, adminUser},
		[]*schema.Schema{quote, meta},
	)
	return reg
}

func testImporter(svc *memStore, reg *schema.Registry) *Importer {
	return NewImporter(svc, reg, &memResolver{byHash: map[string]map[string]any{}}, &RunGuard{})
}
