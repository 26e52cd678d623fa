package planner

import (
	"reflect"
	"sync"

	"github.com/stitchgql/federate/graphql"
)

// memo caches createFieldPlan results keyed on the *identity* of the
// fieldNodes slice (its backing array pointer), not its contents, per
// spec.md §9: "memoise field-plan construction with an open hash on pointer
// identity". A memo lives as long as its Planner; within it,
// fieldNodesForType hands back the same []*graphql.Selection slice for the
// same inputs, so repeated planning of one projection hits here without
// needing a deep-equality key.
type memo struct {
	mu    sync.Mutex
	byPtr map[memoKey]*FieldPlan

	subFieldsMu  sync.Mutex
	subFieldsPtr map[subFieldsKey][]*graphql.Selection
}

type memoKey struct {
	parentType *graphql.Object
	ptr        uintptr
	len        int
}

// subFieldsKey identifies one fieldNodesForType call by the pointer identity
// of its (obj, sel) inputs, both of which are themselves pointers.
type subFieldsKey struct {
	obj *graphql.Object
	sel *graphql.SelectionSet
}

func newMemo() *memo {
	return &memo{
		byPtr:        make(map[memoKey]*FieldPlan),
		subFieldsPtr: make(map[subFieldsKey][]*graphql.Selection),
	}
}

func sliceIdentity(fieldNodes []*graphql.Selection) (uintptr, int) {
	if len(fieldNodes) == 0 {
		return 0, 0
	}
	return reflect.ValueOf(fieldNodes).Pointer(), len(fieldNodes)
}

func (m *memo) lookupFieldPlan(parentType *graphql.Object, fieldNodes []*graphql.Selection) (*FieldPlan, bool) {
	if len(fieldNodes) == 0 {
		return nil, false
	}
	ptr, n := sliceIdentity(fieldNodes)
	key := memoKey{parentType: parentType, ptr: ptr, len: n}

	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.byPtr[key]
	return plan, ok
}

func (m *memo) storeFieldPlan(parentType *graphql.Object, fieldNodes []*graphql.Selection, plan *FieldPlan) {
	if len(fieldNodes) == 0 {
		return
	}
	ptr, n := sliceIdentity(fieldNodes)
	key := memoKey{parentType: parentType, ptr: ptr, len: n}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPtr[key] = plan
}

// lookupSubFields returns the cached fieldNodesForType output for (obj, sel),
// so repeated calls with the same inputs return the identical slice and
// preserve the pointer-identity signal lookupFieldPlan depends on.
func (m *memo) lookupSubFields(obj *graphql.Object, sel *graphql.SelectionSet) ([]*graphql.Selection, bool) {
	key := subFieldsKey{obj: obj, sel: sel}

	m.subFieldsMu.Lock()
	defer m.subFieldsMu.Unlock()
	out, ok := m.subFieldsPtr[key]
	return out, ok
}

func (m *memo) storeSubFields(obj *graphql.Object, sel *graphql.SelectionSet, out []*graphql.Selection) {
	key := subFieldsKey{obj: obj, sel: sel}

	m.subFieldsMu.Lock()
	defer m.subFieldsMu.Unlock()
	m.subFieldsPtr[key] = out
}
