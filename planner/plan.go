// Package planner compiles an operation's selection set into a FieldPlan: a
// tree describing which subschema resolves which fields, and how to stitch
// in fields that belong elsewhere (spec.md §2 "Planner", §3 "FieldPlan").
package planner

import (
	"github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/subschema"
)

// FieldPlan is the immutable result of planning a selection set at a
// particular parent type (spec.md §3).
type FieldPlan struct {
	// SubschemaPlans is the ordered sequence of fetches needed to resolve
	// this selection set.
	SubschemaPlans []*SubschemaPlan
	// StitchPlans maps a response key directly resolvable in the
	// originating subschema (i.e. the subschema that already holds the
	// parent object) to the per-concrete-type follow-up plan for that key.
	StitchPlans map[string]*StitchPlan
}

func newFieldPlan() *FieldPlan {
	return &FieldPlan{StitchPlans: map[string]*StitchPlan{}}
}

// IsEmpty reports whether a (typically supplemental) plan resolves nothing
// at all, in which case spec.md §4.2 says to omit it from a StitchPlan.
func (p *FieldPlan) IsEmpty() bool {
	return p == nil || (len(p.SubschemaPlans) == 0 && len(p.StitchPlans) == 0)
}

// SubschemaPlan is one fetch to one subschema as part of a FieldPlan
// (spec.md §3).
type SubschemaPlan struct {
	Target *subschema.Subschema
	// Originating is the subschema whose result contained the parent
	// object, when this plan is a follow-up fetch; nil at the root or when
	// planning a fresh supplemental plan.
	Originating *subschema.Subschema
	Fields      []*graphql.Selection
	// StitchPlans maps a response key resolved by THIS subschema plan to
	// its per-concrete-type follow-up plan.
	StitchPlans map[string]*StitchPlan
}

func newSubschemaPlan(target, originating *subschema.Subschema) *SubschemaPlan {
	return &SubschemaPlan{Target: target, Originating: originating, StitchPlans: map[string]*StitchPlan{}}
}

// StitchPlan is a per-concrete-type dispatch table of follow-up FieldPlans,
// consulted once the runtime type of a value is known (spec.md §3, glossary).
type StitchPlan struct {
	PlansByType map[string]*FieldPlan
	// PossibleTypes names every concrete type this StitchPlan's parent return
	// type could resolve to at the time it was built, including types whose
	// supplemental plan turned out empty and so have no entry in
	// PlansByType. The composer uses it to tell "this runtime type legitimately
	// has nothing to stitch" from "this runtime type was never a possible
	// type at all" (spec.md §7 #4 invariant violations).
	PossibleTypes map[string]bool
}

// StitchingTypenameAlias is the synthetic field the planner injects so the
// composer can discover a stitched object's concrete runtime type
// (spec.md §4.2, §6 "Synthetic field").
const StitchingTypenameAlias = "__stitching__typename"
