package engine

import (
	"rocket-transfer/internal/portable"
	"rocket-transfer/internal/schema"
)

// GroupByLocale flattens the draft and published variants of one entity
// into a portable entry keyed by locale. Draft locales that match their
// published counterpart (ignoring row timestamps) are omitted, so the wire
// document only carries drafts that actually differ.
func GroupByLocale(f *Flattener, s *schema.Schema, draft, published map[string]any, allLocales bool) portable.Entry {
	opts := FlattenOptions{ProcessLocalizations: allLocales}
	entry := portable.Entry{}

	if published != nil {
		entry.Published = localeMapOf(f.Flatten(published, s, opts))
	}
	if draft != nil {
		entry.Draft = localeMapOf(f.Flatten(draft, s, opts))
	}

	for locale, draftObj := range entry.Draft {
		if pubObj, ok := entry.Published[locale]; ok && valuesEqual(draftObj, pubObj) {
			delete(entry.Draft, locale)
		}
	}
	if len(entry.Draft) == 0 {
		entry.Draft = nil
	}
	return entry
}

// localeMapOf spreads a flattened entry and its flattened localizations
// into a locale-keyed map. The locale field moves into the key; the
// localizations array is consumed here and never reaches the wire.
func localeMapOf(flat map[string]any) portable.LocaleMap {
	lm := portable.LocaleMap{}
	addLocale(lm, flat)
	return lm
}

func addLocale(lm portable.LocaleMap, obj map[string]any) {
	locale, _ := obj["locale"].(string)
	if locale == "" {
		locale = portable.DefaultLocale
	}
	delete(obj, "locale")

	siblings := asSlice(obj["localizations"])
	delete(obj, "localizations")

	lm[locale] = obj
	for _, sib := range siblings {
		if m, ok := sib.(map[string]any); ok {
			addLocale(lm, m)
		}
	}
}

// volatileKeys are row timestamps that always differ between the draft
// and published variants of the same content. They never count toward a
// content diff.
var volatileKeys = map[string]bool{
	"publishedAt": true,
	"createdAt":   true,
	"updatedAt":   true,
}

// valuesEqual is a deep equality over decoded JSON values that ignores
// volatile keys at every object level and compares numbers by value,
// since the same entry may carry float64 from the decoder and int from
// the store.
func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok {
			return false
		}
		return mapsEqual(av, bv)
	case []any:
		bv, ok := b.([]any)
		if !ok {
			return false
		}
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	default:
		if af, aok := toFloat64(a); aok {
			bf, bok := toFloat64(b)
			return bok && af == bf
		}
		return a == b
	}
}

func mapsEqual(a, b map[string]any) bool {
	keys := map[string]bool{}
	for k := range a {
		keys[k] = true
	}
	for k := range b {
		keys[k] = true
	}
	for k := range keys {
		if volatileKeys[k] {
			continue
		}
		if !valuesEqual(a[k], b[k]) {
			return false
		}
	}
	return true
}

// toFloat64 converts numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
