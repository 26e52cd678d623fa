package composer

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/internal/logging"
	"github.com/stitchgql/federate/planner"
	"github.com/stitchgql/federate/subschema"
)

func op() *graphql.OperationDefinition {
	return &graphql.OperationDefinition{Kind: graphql.Query}
}

func subOf(name string, exec subschema.Executor) *subschema.Subschema {
	return &subschema.Subschema{Name: name, Executor: exec}
}

func staticExecutor(data map[string]interface{}, errs ...*graphql.Error) subschema.Executor {
	return func(ctx context.Context, req subschema.Request) (subschema.Result, error) {
		return subschema.Result{Data: data, Errors: errs}, nil
	}
}

// Scenario 1 (spec.md §8): single subschema passthrough.
func TestCompose_SingleSubschemaPassthrough(t *testing.T) {
	subA := subOf("A", staticExecutor(map[string]interface{}{"a": 1}))

	plan := &planner.FieldPlan{
		SubschemaPlans: []*planner.SubschemaPlan{
			{Target: subA, Fields: []*graphql.Selection{{Name: "a"}}, StitchPlans: map[string]*planner.StitchPlan{}},
		},
		StitchPlans: map[string]*planner.StitchPlan{},
	}

	c := New(op(), nil, logging.Nop{})
	resp, err := c.Compose(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, normalizeInt(resp.Data))
	assert.Empty(t, resp.Errors)
}

func normalizeInt(m map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range m {
		if i, ok := v.(int); ok {
			out[k] = float64(i)
			continue
		}
		out[k] = v
	}
	return out
}

// Scenario 2 (spec.md §8): cross-subschema merge via a stitch plan attached
// to the fetching subschema's own SubschemaPlan.
func TestCompose_CrossSubschemaMerge(t *testing.T) {
	subA := subOf("A", staticExecutor(map[string]interface{}{
		"user": map[string]interface{}{"name": "x", planner.StitchingTypenameAlias: "User"},
	}))
	subB := subOf("B", staticExecutor(map[string]interface{}{"email": "y"}))

	userStitch := &planner.StitchPlan{
		PossibleTypes: map[string]bool{"User": true},
		PlansByType: map[string]*planner.FieldPlan{
			"User": {
				SubschemaPlans: []*planner.SubschemaPlan{
					{Target: subB, Fields: []*graphql.Selection{{Name: "email"}}, StitchPlans: map[string]*planner.StitchPlan{}},
				},
				StitchPlans: map[string]*planner.StitchPlan{},
			},
		},
	}

	plan := &planner.FieldPlan{
		SubschemaPlans: []*planner.SubschemaPlan{
			{
				Target: subA,
				Fields: []*graphql.Selection{{Name: "user", SelectionSet: &graphql.SelectionSet{
					Selections: []*graphql.Selection{{Name: "name"}},
				}}},
				StitchPlans: map[string]*planner.StitchPlan{"user": userStitch},
			},
		},
		StitchPlans: map[string]*planner.StitchPlan{},
	}

	c := New(op(), nil, logging.Nop{})
	resp, err := c.Compose(context.Background(), plan)
	require.NoError(t, err)
	require.Empty(t, resp.Errors)

	want := map[string]interface{}{
		"user": map[string]interface{}{"name": "x", "email": "y"},
	}
	if diff := cmp.Diff(want, resp.Data); diff != "" {
		t.Errorf("merged response mismatch (-want +got):\n%s", diff)
	}
}

// Scenario 4 (spec.md §8): null bubbling at leaves — a field-level null from
// one subschema coexists with data merged in from another.
func TestCompose_NullLeafCoexistsWithOtherSubschemaData(t *testing.T) {
	subA := subOf("A", staticExecutor(map[string]interface{}{
		"user": map[string]interface{}{"name": nil, planner.StitchingTypenameAlias: "User"},
	}))
	subB := subOf("B", staticExecutor(map[string]interface{}{"email": "e"}))

	userStitch := &planner.StitchPlan{
		PossibleTypes: map[string]bool{"User": true},
		PlansByType: map[string]*planner.FieldPlan{
			"User": {
				SubschemaPlans: []*planner.SubschemaPlan{
					{Target: subB, Fields: []*graphql.Selection{{Name: "email"}}, StitchPlans: map[string]*planner.StitchPlan{}},
				},
				StitchPlans: map[string]*planner.StitchPlan{},
			},
		},
	}

	plan := &planner.FieldPlan{
		SubschemaPlans: []*planner.SubschemaPlan{
			{
				Target:      subA,
				Fields:      []*graphql.Selection{{Name: "user"}},
				StitchPlans: map[string]*planner.StitchPlan{"user": userStitch},
			},
		},
		StitchPlans: map[string]*planner.StitchPlan{},
	}

	c := New(op(), nil, logging.Nop{})
	resp, err := c.Compose(context.Background(), plan)
	require.NoError(t, err)

	user := resp.Data["user"].(map[string]interface{})
	assert.Nil(t, user["name"])
	assert.Equal(t, "e", user["email"])
}

// Root `data: null` must null the whole response while preserving errors.
func TestCompose_RootNullPropagatesWholeResponse(t *testing.T) {
	subA := subOf("A", func(ctx context.Context, req subschema.Request) (subschema.Result, error) {
		return subschema.Result{Data: nil, Errors: []*graphql.Error{graphql.NewError("boom")}}, nil
	})

	plan := &planner.FieldPlan{
		SubschemaPlans: []*planner.SubschemaPlan{
			{Target: subA, Fields: []*graphql.Selection{{Name: "a"}}, StitchPlans: map[string]*planner.StitchPlan{}},
		},
		StitchPlans: map[string]*planner.StitchPlan{},
	}

	c := New(op(), nil, logging.Nop{})
	resp, err := c.Compose(context.Background(), plan)
	require.NoError(t, err)
	assert.Nil(t, resp.Data)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "boom", resp.Errors[0].Message)
}

// Missing __stitching__typename is a fatal invariant violation (spec.md §7
// #4), surfaced as an error rather than a panic.
func TestCompose_MissingStitchingTypenameIsInvariantViolation(t *testing.T) {
	subA := subOf("A", staticExecutor(map[string]interface{}{
		"user": map[string]interface{}{"name": "x"}, // no stitching typename marker
	}))
	subB := subOf("B", staticExecutor(map[string]interface{}{"email": "y"}))

	userStitch := &planner.StitchPlan{
		PossibleTypes: map[string]bool{"User": true},
		PlansByType: map[string]*planner.FieldPlan{
			"User": {
				SubschemaPlans: []*planner.SubschemaPlan{
					{Target: subB, Fields: []*graphql.Selection{{Name: "email"}}, StitchPlans: map[string]*planner.StitchPlan{}},
				},
				StitchPlans: map[string]*planner.StitchPlan{},
			},
		},
	}

	plan := &planner.FieldPlan{
		SubschemaPlans: []*planner.SubschemaPlan{
			{
				Target:      subA,
				Fields:      []*graphql.Selection{{Name: "user"}},
				StitchPlans: map[string]*planner.StitchPlan{"user": userStitch},
			},
		},
		StitchPlans: map[string]*planner.StitchPlan{},
	}

	c := New(op(), nil, logging.Nop{})
	resp, err := c.Compose(context.Background(), plan)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Errors)

	user := resp.Data["user"].(map[string]interface{})
	assert.Equal(t, "x", user["name"])
	_, hasEmail := user["email"]
	assert.False(t, hasEmail)
}

// Scenario 3 (spec.md §8): abstract/union stitching dispatches a different
// per-type supplemental plan depending on the runtime __stitching__typename,
// validated against the StitchPlan's recorded PossibleTypes.
func TestCompose_AbstractStitchDispatchesByRuntimeType(t *testing.T) {
	subA := subOf("A", staticExecutor(map[string]interface{}{
		"owner": map[string]interface{}{"name": "x", planner.StitchingTypenameAlias: "Admin"},
	}))
	subAdmin := subOf("Admin-sub", staticExecutor(map[string]interface{}{"level": "root"}))
	subMember := subOf("Member-sub", staticExecutor(map[string]interface{}{"joinedAt": "2020"}))

	ownerStitch := &planner.StitchPlan{
		PossibleTypes: map[string]bool{"Admin": true, "Member": true},
		PlansByType: map[string]*planner.FieldPlan{
			"Admin": {
				SubschemaPlans: []*planner.SubschemaPlan{
					{Target: subAdmin, Fields: []*graphql.Selection{{Name: "level"}}, StitchPlans: map[string]*planner.StitchPlan{}},
				},
				StitchPlans: map[string]*planner.StitchPlan{},
			},
			"Member": {
				SubschemaPlans: []*planner.SubschemaPlan{
					{Target: subMember, Fields: []*graphql.Selection{{Name: "joinedAt"}}, StitchPlans: map[string]*planner.StitchPlan{}},
				},
				StitchPlans: map[string]*planner.StitchPlan{},
			},
		},
	}

	plan := &planner.FieldPlan{
		SubschemaPlans: []*planner.SubschemaPlan{
			{
				Target:      subA,
				Fields:      []*graphql.Selection{{Name: "owner"}},
				StitchPlans: map[string]*planner.StitchPlan{"owner": ownerStitch},
			},
		},
		StitchPlans: map[string]*planner.StitchPlan{},
	}

	c := New(op(), nil, logging.Nop{})
	resp, err := c.Compose(context.Background(), plan)
	require.NoError(t, err)
	require.Empty(t, resp.Errors)

	want := map[string]interface{}{
		"owner": map[string]interface{}{"name": "x", "level": "root"},
	}
	if diff := cmp.Diff(want, resp.Data); diff != "" {
		t.Errorf("abstract stitch mismatch (-want +got):\n%s", diff)
	}
}

// A runtime typename outside a StitchPlan's recorded PossibleTypes is a
// fatal invariant violation (spec.md §7 #4), not a silent skip.
func TestCompose_AbstractStitchUnknownRuntimeTypeIsInvariantViolation(t *testing.T) {
	subA := subOf("A", staticExecutor(map[string]interface{}{
		"owner": map[string]interface{}{"name": "x", planner.StitchingTypenameAlias: "Robot"},
	}))
	subAdmin := subOf("Admin-sub", staticExecutor(map[string]interface{}{"level": "root"}))

	ownerStitch := &planner.StitchPlan{
		PossibleTypes: map[string]bool{"Admin": true},
		PlansByType: map[string]*planner.FieldPlan{
			"Admin": {
				SubschemaPlans: []*planner.SubschemaPlan{
					{Target: subAdmin, Fields: []*graphql.Selection{{Name: "level"}}, StitchPlans: map[string]*planner.StitchPlan{}},
				},
				StitchPlans: map[string]*planner.StitchPlan{},
			},
		},
	}

	plan := &planner.FieldPlan{
		SubschemaPlans: []*planner.SubschemaPlan{
			{
				Target:      subA,
				Fields:      []*graphql.Selection{{Name: "owner"}},
				StitchPlans: map[string]*planner.StitchPlan{"owner": ownerStitch},
			},
		},
		StitchPlans: map[string]*planner.StitchPlan{},
	}

	c := New(op(), nil, logging.Nop{})
	resp, err := c.Compose(context.Background(), plan)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Errors)

	owner := resp.Data["owner"].(map[string]interface{})
	assert.Equal(t, "x", owner["name"])
	_, hasLevel := owner["level"]
	assert.False(t, hasLevel)
}

// A stitched array with elements sharing the same concrete type dispatches a
// single batched fetch (the "batching hook" of SPEC_FULL.md) rather than one
// per element.
func TestCompose_BatchesArrayStitchToSameSubschema(t *testing.T) {
	var calls int
	subA := subOf("A", staticExecutor(map[string]interface{}{
		"users": []interface{}{
			map[string]interface{}{"name": "x", planner.StitchingTypenameAlias: "User"},
			map[string]interface{}{"name": "y", planner.StitchingTypenameAlias: "User"},
		},
	}))
	subB := subOf("B", func(ctx context.Context, req subschema.Request) (subschema.Result, error) {
		calls++
		targets, ok := req.Variables["__stitchTargets"].([]interface{})
		require.True(t, ok)
		items := make([]interface{}, len(targets))
		for i := range targets {
			items[i] = map[string]interface{}{"email": "e"}
		}
		return subschema.Result{Data: map[string]interface{}{"__batchResults": items}}, nil
	})

	userFieldPlan := &planner.FieldPlan{
		SubschemaPlans: []*planner.SubschemaPlan{
			{Target: subB, Fields: []*graphql.Selection{{Name: "email"}}, StitchPlans: map[string]*planner.StitchPlan{}},
		},
		StitchPlans: map[string]*planner.StitchPlan{},
	}
	userStitch := &planner.StitchPlan{
		PossibleTypes: map[string]bool{"User": true},
		PlansByType:   map[string]*planner.FieldPlan{"User": userFieldPlan},
	}

	plan := &planner.FieldPlan{
		SubschemaPlans: []*planner.SubschemaPlan{
			{
				Target:      subA,
				Fields:      []*graphql.Selection{{Name: "users"}},
				StitchPlans: map[string]*planner.StitchPlan{"users": userStitch},
			},
		},
		StitchPlans: map[string]*planner.StitchPlan{},
	}

	c := New(op(), nil, logging.Nop{})
	resp, err := c.Compose(context.Background(), plan)
	require.NoError(t, err)
	require.Empty(t, resp.Errors)
	assert.Equal(t, 1, calls, "expected exactly one batched fetch for both array elements")

	users := resp.Data["users"].([]interface{})
	require.Len(t, users, 2)
	for _, u := range users {
		obj := u.(map[string]interface{})
		assert.Equal(t, "e", obj["email"])
	}
}
