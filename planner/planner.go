package planner

import (
	"fmt"

	"github.com/samsarahq/go/oops"

	"github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/subschema"
	"github.com/stitchgql/federate/superschema"
)

// Planner is a pure function of (super-schema, operation, variable values)
// -> FieldPlan (spec.md §2). It memoises on the identity of its recursive
// sub-calls (spec.md §4.2 "Memoisation").
type Planner struct {
	super *superschema.SuperSchema
	memo  *memo
}

// New builds a Planner over a SuperSchema. Planners are cheap and safe to
// keep for the lifetime of the SuperSchema (spec.md §3 "Lifecycle").
func New(super *superschema.SuperSchema) *Planner {
	return &Planner{super: super, memo: newMemo()}
}

// Plan compiles op into a FieldPlan, or returns an error if op's kind has no
// root type (spec.md §4.2 "Output").
func (p *Planner) Plan(op *graphql.OperationDefinition, variables map[string]interface{}) (*FieldPlan, error) {
	rootType := p.super.GetRootType(op.Kind)
	if rootType == nil {
		return nil, oops.Errorf("Schema is not configured to execute %s operation.", op.Kind)
	}

	fieldNodes, err := collectEffectiveFieldNodes(p.super, rootType, op.SelectionSet)
	if err != nil {
		return nil, err
	}

	return p.createFieldPlan(nil, rootType, fieldNodes)
}

// collectEffectiveFieldNodes implements spec.md §4.2 step 2: flatten inline
// fragments whose type condition is satisfied by parentType directly into
// the enclosing selection, recursively. Fragment spreads are expected to
// have been inlined upstream; encountering one here would be a document the
// gateway never should have produced, so there is nothing left to detect
// here — only InlineFragment and Selection survive in graphql.SelectionSet.
func collectEffectiveFieldNodes(super *superschema.SuperSchema, parentType *graphql.Object, sel *graphql.SelectionSet) ([]*graphql.Selection, error) {
	if sel == nil {
		return nil, nil
	}

	out := make([]*graphql.Selection, 0, len(sel.Selections))
	out = append(out, sel.Selections...)

	for _, frag := range sel.InlineFragments {
		if !graphql.IsSubType(super.Schema.Types, frag.TypeCondition, parentType) {
			continue
		}
		inner, err := collectEffectiveFieldNodes(super, parentType, frag.SelectionSet)
		if err != nil {
			return nil, err
		}
		out = append(out, inner...)
	}

	return out, nil
}

// createFieldPlan is `_createFieldPlan` (spec.md §4.2): convert an ordered
// sequence of field nodes at parentType into a FieldPlan. fromSubschema is
// the subschema that already holds the parent object, or nil at the root or
// when building a fresh supplemental plan.
func (p *Planner) createFieldPlan(fromSubschema *subschema.Subschema, parentType *graphql.Object, fieldNodes []*graphql.Selection) (*FieldPlan, error) {
	if cached, ok := p.memo.lookupFieldPlan(parentType, fieldNodes); ok {
		return cached, nil
	}

	plan := newFieldPlan()
	for _, field := range fieldNodes {
		if err := p.addFieldToFieldPlan(plan, fromSubschema, parentType, field); err != nil {
			return nil, err
		}
	}

	p.memo.storeFieldPlan(parentType, fieldNodes, plan)
	return plan, nil
}

// addFieldToFieldPlan is `_addFieldToFieldPlan` (spec.md §4.2).
func (p *Planner) addFieldToFieldPlan(plan *FieldPlan, fromSubschema *subschema.Subschema, parentType *graphql.Object, field *graphql.Selection) error {
	candidates := p.super.SubschemasFor(parentType.Name, field.Name)
	if len(candidates) == 0 {
		// Not resolvable anywhere: ignore the field (spec.md §4.2).
		return nil
	}

	if field.SelectionSet == nil {
		target := chooseSubschema(candidates, fromSubschema, plan)
		subPlan := findOrCreateSubschemaPlan(plan, target, fromSubschema)
		subPlan.Fields = append(subPlan.Fields, field)
		return nil
	}

	fieldDef := p.super.GetFieldDef(parentType, field.Name)
	if fieldDef == nil {
		return oops.Errorf("type %s has no field %s", parentType.Name, field.Name)
	}
	returnType := graphql.NamedType(fieldDef.Type)

	target := chooseSubschema(candidates, fromSubschema, plan)

	ownSel, otherSel := splitSelectionSet(p.super, target, returnType, field.SelectionSet, true)

	stitch, err := p.buildStitchPlan(returnType, otherSel)
	if err != nil {
		return err
	}

	ownNonEmpty := ownSel != nil && (len(ownSel.Selections) > 0 || len(ownSel.InlineFragments) > 0)

	if ownNonEmpty {
		fieldCopy := cloneSelection(field)
		fieldCopy.SelectionSet = ownSel

		subPlan := findOrCreateSubschemaPlan(plan, target, fromSubschema)
		subPlan.Fields = append(subPlan.Fields, fieldCopy)

		if stitch != nil {
			if sameSubschema(target, fromSubschema) {
				plan.StitchPlans[field.ResponseKey()] = stitch
			} else {
				subPlan.StitchPlans[field.ResponseKey()] = stitch
			}
		}
		return nil
	}

	if stitch != nil {
		if sameSubschema(target, fromSubschema) {
			plan.StitchPlans[field.ResponseKey()] = stitch
			return nil
		}

		// ownSelections is empty but the stitch plan is non-empty: still
		// record the stitch and fetch the bare typename marker so the
		// composer can dispatch the follow-up (spec.md §4.2).
		subPlan := findOrCreateSubschemaPlan(plan, target, fromSubschema)
		fieldCopy := cloneSelection(field)
		fieldCopy.SelectionSet = &graphql.SelectionSet{
			Selections: []*graphql.Selection{typenameMarker()},
		}
		subPlan.Fields = append(subPlan.Fields, fieldCopy)
		subPlan.StitchPlans[field.ResponseKey()] = stitch
	}

	return nil
}

// buildStitchPlan builds a StitchPlan from the selections that could not be
// resolved by the chosen subschema, one supplemental FieldPlan per possible
// concrete runtime type of returnType (spec.md §4.2 "Build a StitchPlan").
func (p *Planner) buildStitchPlan(returnType graphql.Type, otherSel *graphql.SelectionSet) (*StitchPlan, error) {
	if otherSel == nil || (len(otherSel.Selections) == 0 && len(otherSel.InlineFragments) == 0) {
		return nil, nil
	}

	var possibleTypes []*graphql.Object
	if graphql.IsAbstract(returnType) {
		possibleTypes = p.super.GetPossibleTypes(returnType)
	} else if obj, ok := returnType.(*graphql.Object); ok {
		possibleTypes = []*graphql.Object{obj}
	} else {
		return nil, oops.Errorf("cannot stitch selections on non-composite type %s", returnType)
	}

	plansByType := map[string]*FieldPlan{}
	possible := map[string]bool{}
	for _, obj := range possibleTypes {
		possible[obj.Name] = true

		fieldNodes, err := p.fieldNodesForType(obj, otherSel)
		if err != nil {
			return nil, err
		}
		if len(fieldNodes) == 0 {
			continue
		}

		supplemental, err := p.createSupplementalFieldPlan(obj, fieldNodes)
		if err != nil {
			return nil, err
		}
		if supplemental.IsEmpty() {
			// Invariant: types whose supplemental plan is empty are omitted.
			continue
		}
		plansByType[obj.Name] = supplemental
	}

	if len(plansByType) == 0 {
		return nil, nil
	}
	return &StitchPlan{PlansByType: plansByType, PossibleTypes: possible}, nil
}

// createSupplementalFieldPlan is `_createSupplementalFieldPlan` (spec.md
// §4.2 "Memoisation"): a fresh FieldPlan for one concrete type's share of a
// StitchPlan, built with no originating subschema.
func (p *Planner) createSupplementalFieldPlan(obj *graphql.Object, fieldNodes []*graphql.Selection) (*FieldPlan, error) {
	return p.createFieldPlan(nil, obj, fieldNodes)
}

// fieldNodesForType is `_collectSubFields`-equivalent: project sel onto a
// concrete runtime type, keeping base fields plus any inline fragment whose
// type condition the concrete type satisfies. Memoised on (obj, sel)
// pointer identity (spec.md §9 "Memoisation") so that two stitch plans
// projecting the same otherSel onto the same obj share one output slice,
// letting createFieldPlan's own memo hit on the resulting call.
func (p *Planner) fieldNodesForType(obj *graphql.Object, sel *graphql.SelectionSet) ([]*graphql.Selection, error) {
	if cached, ok := p.memo.lookupSubFields(obj, sel); ok {
		return cached, nil
	}

	out := make([]*graphql.Selection, 0, len(sel.Selections))
	out = append(out, sel.Selections...)
	for _, frag := range sel.InlineFragments {
		if !graphql.IsSubType(p.super.Schema.Types, frag.TypeCondition, obj) {
			continue
		}
		inner, err := p.fieldNodesForType(obj, frag.SelectionSet)
		if err != nil {
			return nil, err
		}
		out = append(out, inner...)
	}

	p.memo.storeSubFields(obj, sel, out)
	return out, nil
}

// chooseSubschema implements the preference rule from spec.md §4.2: prefer
// fromSubschema if it is among the candidates, else prefer a subschema that
// already has an entry in plan, else take the first candidate.
func chooseSubschema(candidates []*subschema.Subschema, fromSubschema *subschema.Subschema, plan *FieldPlan) *subschema.Subschema {
	if fromSubschema != nil {
		for _, c := range candidates {
			if c.Name == fromSubschema.Name {
				return fromSubschema
			}
		}
	}

	for _, sp := range plan.SubschemaPlans {
		for _, c := range candidates {
			if c.Name == sp.Target.Name {
				return c
			}
		}
	}

	return candidates[0]
}

func sameSubschema(a, b *subschema.Subschema) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name
}

func findOrCreateSubschemaPlan(plan *FieldPlan, target, fromSubschema *subschema.Subschema) *SubschemaPlan {
	for _, sp := range plan.SubschemaPlans {
		if sp.Target.Name == target.Name && sameSubschema(sp.Originating, fromSubschema) {
			return sp
		}
	}
	sp := newSubschemaPlan(target, fromSubschema)
	plan.SubschemaPlans = append(plan.SubschemaPlans, sp)
	return sp
}

func typenameMarker() *graphql.Selection {
	return &graphql.Selection{Name: "__typename", Alias: StitchingTypenameAlias}
}

func cloneSelection(sel *graphql.Selection) *graphql.Selection {
	return &graphql.Selection{
		Alias:      sel.Alias,
		Name:       sel.Name,
		Args:       sel.Args,
		Directives: sel.Directives,
	}
}

// splitSelectionSet is the "Selection split" procedure of spec.md §4.2. It
// classifies each selection in sel into the half resolvable by target
// (own) and the half that must be fetched elsewhere (other), recursing into
// nested selection sets. When top is true and other ends up non-empty, it
// injects the stitching typename marker into own so the composer can later
// discover the concrete runtime type (spec.md §4.2 "__stitching__typename
// injection").
func splitSelectionSet(super *superschema.SuperSchema, target *subschema.Subschema, parentType graphql.Type, sel *graphql.SelectionSet, top bool) (own, other *graphql.SelectionSet) {
	own = &graphql.SelectionSet{}
	other = &graphql.SelectionSet{}

	typeName := namedTypeName(parentType)

	for _, field := range sel.Selections {
		if field.Name == "__typename" {
			own.Selections = append(own.Selections, field)
			continue
		}

		resolvable := subschemaInSet(super.SubschemasFor(typeName, field.Name), target)

		if field.SelectionSet == nil {
			if resolvable {
				own.Selections = append(own.Selections, field)
			} else {
				other.Selections = append(other.Selections, field)
			}
			continue
		}

		if !resolvable {
			// The whole field, subtree untouched, must be fetched
			// elsewhere; it will be (re)planned fresh from its own parent
			// type there.
			other.Selections = append(other.Selections, field)
			continue
		}

		fieldDef := super.GetFieldDef(parentType, field.Name)
		var childType graphql.Type
		if fieldDef != nil {
			childType = graphql.NamedType(fieldDef.Type)
		}

		childOwn, childOther := splitSelectionSet(super, target, childType, field.SelectionSet, false)

		if len(childOwn.Selections) > 0 || len(childOwn.InlineFragments) > 0 {
			c := cloneSelection(field)
			c.SelectionSet = childOwn
			own.Selections = append(own.Selections, c)
		}
		if len(childOther.Selections) > 0 || len(childOther.InlineFragments) > 0 {
			c := cloneSelection(field)
			c.SelectionSet = childOther
			other.Selections = append(other.Selections, c)
		}
	}

	for _, frag := range sel.InlineFragments {
		refined := super.GetType(frag.TypeCondition)
		if refined == nil {
			refined = parentType
		}
		childOwn, childOther := splitSelectionSet(super, target, refined, frag.SelectionSet, false)
		if len(childOwn.Selections) > 0 || len(childOwn.InlineFragments) > 0 {
			own.InlineFragments = append(own.InlineFragments, &graphql.InlineFragment{TypeCondition: frag.TypeCondition, SelectionSet: childOwn})
		}
		if len(childOther.Selections) > 0 || len(childOther.InlineFragments) > 0 {
			other.InlineFragments = append(other.InlineFragments, &graphql.InlineFragment{TypeCondition: frag.TypeCondition, SelectionSet: childOther})
		}
	}

	otherNonEmpty := len(other.Selections) > 0 || len(other.InlineFragments) > 0
	if top && otherNonEmpty {
		own.Selections = append([]*graphql.Selection{typenameMarker()}, own.Selections...)
	}

	return own, other
}

func subschemaInSet(set []*subschema.Subschema, target *subschema.Subschema) bool {
	for _, s := range set {
		if s.Name == target.Name {
			return true
		}
	}
	return false
}

func namedTypeName(t graphql.Type) string {
	if t == nil {
		return ""
	}
	return fmt.Sprint(graphql.NamedType(t))
}
