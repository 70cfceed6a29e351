package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"rocket-transfer/internal/schema"
	"rocket-transfer/internal/store"
)

// SearchStrategy is an opt-in, per-content-type fallback for relation
// values that resolve neither in the batch nor by exact store lookup.
// Match is an expr-lang boolean expression over {candidate, value}; when
// empty, candidates match by case-insensitive equality on SearchFields.
type SearchStrategy struct {
	SearchFields []string       `json:"searchFields"`
	Match        string         `json:"match"`
	AutoCreate   bool           `json:"autoCreate"`
	Defaults     map[string]any `json:"defaults"`

	compiled *vm.Program
}

func compileMatch(expression string) (*vm.Program, error) {
	prog, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile match expression: %w", err)
	}
	return prog, nil
}

// matches evaluates the strategy against one candidate entry.
func (s *SearchStrategy) matches(candidate map[string]any, value string) bool {
	if s.Match == "" {
		for _, field := range s.SearchFields {
			if fv, ok := candidate[field].(string); ok && strings.EqualFold(fv, value) {
				return true
			}
		}
		return false
	}

	if s.compiled == nil {
		prog, err := compileMatch(s.Match)
		if err != nil {
			log.Printf("WARN: search strategy: %v", err)
			return false
		}
		s.compiled = prog
	}

	result, err := expr.Run(s.compiled, map[string]any{
		"candidate": candidate,
		"value":     value,
	})
	if err != nil {
		log.Printf("WARN: search strategy evaluation: %v", err)
		return false
	}
	matched, _ := result.(bool)
	return matched
}

// fuzzySearch scans store candidates of the target type for a strategy
// match, published entries first.
func (i *Importer) fuzzySearch(ctx context.Context, target *schema.Schema, strat *SearchStrategy, value string) map[string]any {
	coll := i.store.Documents(target.UID)
	for _, status := range []store.Status{store.StatusPublished, store.StatusDraft} {
		candidates, err := coll.FindMany(ctx, store.Query{Status: status, Limit: 200})
		if err != nil {
			log.Printf("WARN: fuzzy search %s: %v", target.UID, err)
			return nil
		}
		for _, candidate := range candidates {
			if strat.matches(candidate, value) {
				return candidate
			}
		}
	}
	return nil
}
