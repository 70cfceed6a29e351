package engine

import (
	"rocket-transfer/internal/schema"
	"rocket-transfer/internal/store"
)

// DefaultPopulateDepth bounds populate plan recursion through nested
// components and dynamic zones.
const DefaultPopulateDepth = 5

// BuildPopulatePlan computes the populate tree needed to export a schema
// with every relation, media field, component and dynamic zone loaded.
// Exhausted depth collapses to true, which populates one level of
// everything and stops.
func BuildPopulatePlan(reg *schema.Registry, s *schema.Schema, maxDepth int) any {
	if maxDepth < 1 {
		return true
	}

	plan := store.Populate{}
	for i := range s.Attributes {
		attr := &s.Attributes[i]
		switch attr.Kind {
		case schema.KindRelation, schema.KindMedia:
			plan[attr.Name] = true

		case schema.KindComponent:
			comp := reg.GetModel(attr.Component)
			if comp == nil {
				continue
			}
			plan[attr.Name] = BuildPopulatePlan(reg, comp, maxDepth-1)

		case schema.KindDynamicZone:
			on := map[string]store.Populate{}
			nested := false
			for _, uid := range attr.Components {
				comp := reg.GetModel(uid)
				if comp == nil {
					continue
				}
				sub := BuildPopulatePlan(reg, comp, maxDepth-1)
				if m, ok := sub.(store.Populate); ok {
					on[uid] = m
					nested = true
				} else {
					on[uid] = store.Populate{}
				}
			}
			if nested {
				plan[attr.Name] = store.DynamicZone{On: on}
			} else {
				plan[attr.Name] = true
			}
		}
	}

	// A schema of plain scalars needs no per-field plan.
	if len(plan) == 0 {
		return true
	}
	return plan
}
