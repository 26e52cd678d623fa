package superschema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/subschema"
)

func str() *graphql.Scalar {
	return &graphql.Scalar{Name: "String", Specified: true}
}

func queryOf(fields map[string]*graphql.Field) *graphql.Object {
	return &graphql.Object{Name: "Query", Fields: fields}
}

// Enum/Union/Interface/InputObject row of spec.md §4.1's merge policy table:
// two subschemas contributing different members/fields/values for the same
// named type merge rather than overwrite.
func TestBuild_MergesEnumAcrossSubschemas(t *testing.T) {
	enum1 := &graphql.Enum{Name: "Color", Values: []string{"RED", "GREEN"}}
	schema1 := &graphql.Schema{
		Types: map[string]graphql.Type{"Color": enum1, "String": str()},
		Query: queryOf(map[string]*graphql.Field{}),
	}
	schema1.Types["Query"] = schema1.Query
	sub1 := &subschema.Subschema{Name: "s1", Schema: schema1}

	enum2 := &graphql.Enum{Name: "Color", Values: []string{"GREEN", "BLUE"}}
	schema2 := &graphql.Schema{
		Types: map[string]graphql.Type{"Color": enum2, "String": str()},
		Query: queryOf(map[string]*graphql.Field{}),
	}
	schema2.Types["Query"] = schema2.Query
	sub2 := &subschema.Subschema{Name: "s2", Schema: schema2}

	super, err := Build([]*subschema.Subschema{sub1, sub2})
	require.NoError(t, err)

	merged := super.GetType("Color").(*graphql.Enum)
	assert.ElementsMatch(t, []string{"RED", "GREEN", "BLUE"}, merged.Values)
}

func TestBuild_MergesUnionMembersAcrossSubschemas(t *testing.T) {
	admin := &graphql.Object{Name: "Admin", Fields: map[string]*graphql.Field{"id": {Name: "id", Type: str()}}}
	member := &graphql.Object{Name: "Member", Fields: map[string]*graphql.Field{"id": {Name: "id", Type: str()}}}

	union1 := &graphql.Union{Name: "Actor", Members: map[string]*graphql.Object{"Admin": admin}}
	schema1 := &graphql.Schema{
		Types: map[string]graphql.Type{"Actor": union1, "Admin": admin, "String": str()},
		Query: queryOf(map[string]*graphql.Field{}),
	}
	schema1.Types["Query"] = schema1.Query
	sub1 := &subschema.Subschema{Name: "s1", Schema: schema1}

	union2 := &graphql.Union{Name: "Actor", Members: map[string]*graphql.Object{"Member": member}}
	schema2 := &graphql.Schema{
		Types: map[string]graphql.Type{"Actor": union2, "Member": member, "String": str()},
		Query: queryOf(map[string]*graphql.Field{}),
	}
	schema2.Types["Query"] = schema2.Query
	sub2 := &subschema.Subschema{Name: "s2", Schema: schema2}

	super, err := Build([]*subschema.Subschema{sub1, sub2})
	require.NoError(t, err)

	merged := super.GetType("Actor").(*graphql.Union)
	assert.Len(t, merged.Members, 2)
	assert.Contains(t, merged.Members, "Admin")
	assert.Contains(t, merged.Members, "Member")
}

func TestBuild_MergesInterfaceFieldsAcrossSubschemas(t *testing.T) {
	iface1 := &graphql.Interface{Name: "Node", Fields: map[string]*graphql.Field{"id": {Name: "id", Type: str()}}}
	schema1 := &graphql.Schema{
		Types: map[string]graphql.Type{"Node": iface1, "String": str()},
		Query: queryOf(map[string]*graphql.Field{}),
	}
	schema1.Types["Query"] = schema1.Query
	sub1 := &subschema.Subschema{Name: "s1", Schema: schema1}

	iface2 := &graphql.Interface{Name: "Node", Fields: map[string]*graphql.Field{"createdAt": {Name: "createdAt", Type: str()}}}
	schema2 := &graphql.Schema{
		Types: map[string]graphql.Type{"Node": iface2, "String": str()},
		Query: queryOf(map[string]*graphql.Field{}),
	}
	schema2.Types["Query"] = schema2.Query
	sub2 := &subschema.Subschema{Name: "s2", Schema: schema2}

	super, err := Build([]*subschema.Subschema{sub1, sub2})
	require.NoError(t, err)

	merged := super.GetType("Node").(*graphql.Interface)
	assert.Contains(t, merged.Fields, "id")
	assert.Contains(t, merged.Fields, "createdAt")
}

func TestBuild_MergesInputObjectFieldsAcrossSubschemas(t *testing.T) {
	input1 := &graphql.InputObject{Name: "Filter", InputFields: map[string]graphql.Type{"name": str()}}
	schema1 := &graphql.Schema{
		Types: map[string]graphql.Type{"Filter": input1, "String": str()},
		Query: queryOf(map[string]*graphql.Field{}),
	}
	schema1.Types["Query"] = schema1.Query
	sub1 := &subschema.Subschema{Name: "s1", Schema: schema1}

	input2 := &graphql.InputObject{Name: "Filter", InputFields: map[string]graphql.Type{"status": str()}}
	schema2 := &graphql.Schema{
		Types: map[string]graphql.Type{"Filter": input2, "String": str()},
		Query: queryOf(map[string]*graphql.Field{}),
	}
	schema2.Types["Query"] = schema2.Query
	sub2 := &subschema.Subschema{Name: "s2", Schema: schema2}

	super, err := Build([]*subschema.Subschema{sub1, sub2})
	require.NoError(t, err)

	merged := super.GetType("Filter").(*graphql.InputObject)
	assert.Contains(t, merged.InputFields, "name")
	assert.Contains(t, merged.InputFields, "status")
}

func TestBuild_MergesDirectiveLocationsAndArgs(t *testing.T) {
	dir1 := &graphql.Directive{
		Name:      "auth",
		Locations: map[string]bool{"FIELD": true},
		Args:      map[string]graphql.Type{"role": str()},
	}
	schema1 := &graphql.Schema{
		Types:      map[string]graphql.Type{"String": str()},
		Directives: map[string]*graphql.Directive{"auth": dir1},
		Query:      queryOf(map[string]*graphql.Field{}),
	}
	schema1.Types["Query"] = schema1.Query
	sub1 := &subschema.Subschema{Name: "s1", Schema: schema1}

	dir2 := &graphql.Directive{
		Name:       "auth",
		Locations:  map[string]bool{"OBJECT": true},
		Repeatable: true,
		Args:       map[string]graphql.Type{"scope": str()},
	}
	schema2 := &graphql.Schema{
		Types:      map[string]graphql.Type{"String": str()},
		Directives: map[string]*graphql.Directive{"auth": dir2},
		Query:      queryOf(map[string]*graphql.Field{}),
	}
	schema2.Types["Query"] = schema2.Query
	sub2 := &subschema.Subschema{Name: "s2", Schema: schema2}

	super, err := Build([]*subschema.Subschema{sub1, sub2})
	require.NoError(t, err)

	merged := super.Schema.Directives["auth"]
	assert.True(t, merged.Locations["FIELD"])
	assert.True(t, merged.Locations["OBJECT"])
	assert.True(t, merged.Repeatable)
	assert.Contains(t, merged.Args, "role")
	assert.Contains(t, merged.Args, "scope")
}

func TestBuild_DuplicateSubschemaNameErrors(t *testing.T) {
	schema := &graphql.Schema{
		Types: map[string]graphql.Type{"String": str()},
		Query: queryOf(map[string]*graphql.Field{}),
	}
	schema.Types["Query"] = schema.Query

	sub1 := &subschema.Subschema{Name: "dup", Schema: schema}
	sub2 := &subschema.Subschema{Name: "dup", Schema: schema}

	_, err := Build([]*subschema.Subschema{sub1, sub2})
	assert.Error(t, err)
}

func TestBuild_SubschemaNamesSortedIncludesIntrospection(t *testing.T) {
	schema := &graphql.Schema{
		Types: map[string]graphql.Type{"String": str()},
		Query: queryOf(map[string]*graphql.Field{}),
	}
	schema.Types["Query"] = schema.Query

	subB := &subschema.Subschema{Name: "bbb", Schema: schema}
	subA := &subschema.Subschema{Name: "aaa", Schema: schema}

	super, err := Build([]*subschema.Subschema{subB, subA})
	require.NoError(t, err)

	assert.Equal(t, []string{"__introspection", "aaa", "bbb"}, super.SubschemaNames())
}

func TestDescribeSchema_ResolvesSchemaAndTypeMetaFields(t *testing.T) {
	widget := &graphql.Object{Name: "Widget", Fields: map[string]*graphql.Field{"id": {Name: "id", Type: str()}}}
	schema := &graphql.Schema{
		Types: map[string]graphql.Type{"Widget": widget, "String": str()},
		Query: queryOf(map[string]*graphql.Field{"widget": {Name: "widget", Type: widget}}),
	}
	schema.Types["Query"] = schema.Query
	sub := &subschema.Subschema{Name: "s1", Schema: schema}

	super, err := Build([]*subschema.Subschema{sub})
	require.NoError(t, err)

	introspectionSub := super.Subschemas()[introspectionSubschemaName]
	require.NotNil(t, introspectionSub)

	req := subschema.Request{Document: &graphql.Document{
		Operations: []*graphql.OperationDefinition{{
			Kind: graphql.Query,
			SelectionSet: &graphql.SelectionSet{Selections: []*graphql.Selection{
				{Name: "__schema"},
				{Name: "__type", Args: map[string]interface{}{"name": "Widget"}},
			}},
		}},
	}}

	result, err := introspectionSub.Executor(context.Background(), req)
	require.NoError(t, err)

	data := result.Data.(map[string]interface{})
	schemaDesc := data["__schema"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"name": "Query"}, schemaDesc["queryType"])
	typeDesc := data["__type"].(map[string]interface{})
	assert.Equal(t, "OBJECT", typeDesc["kind"])
	assert.Equal(t, "Widget", typeDesc["name"])
}

// Variable coercion (spec.md §4.1): required-missing, maxErrors cutoff, and
// the unknown-type-name path now that namedType can return nil for an
// unresolvable type (see gateway.namedType).
func TestGetVariableValues_RequiredMissingIsReported(t *testing.T) {
	defs := []*graphql.VariableDefinition{
		{Name: "id", Type: &graphql.NonNull{Type: str()}},
	}
	_, errs := GetVariableValues(defs, map[string]interface{}{}, VariableOptions{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "id")
}

func TestGetVariableValues_DefaultAppliedWhenAbsent(t *testing.T) {
	defs := []*graphql.VariableDefinition{
		{Name: "limit", Type: str(), HasDefault: true, DefaultValue: 10},
	}
	coerced, errs := GetVariableValues(defs, map[string]interface{}{}, VariableOptions{})
	assert.Empty(t, errs)
	assert.Equal(t, 10, coerced["limit"])
}

func TestGetVariableValues_StopsAtMaxErrors(t *testing.T) {
	defs := []*graphql.VariableDefinition{
		{Name: "a", Type: &graphql.NonNull{Type: str()}},
		{Name: "b", Type: &graphql.NonNull{Type: str()}},
		{Name: "c", Type: &graphql.NonNull{Type: str()}},
	}
	_, errs := GetVariableValues(defs, map[string]interface{}{}, VariableOptions{MaxErrors: 2})
	assert.Len(t, errs, 2)
}

func TestGetVariableValues_UnknownTypeIsReportedWithoutAbortingLoop(t *testing.T) {
	defs := []*graphql.VariableDefinition{
		{Name: "bogus", Type: nil},
		{Name: "ok", Type: str()},
	}
	coerced, errs := GetVariableValues(defs, map[string]interface{}{
		"bogus": "anything",
		"ok":    "fine",
	}, VariableOptions{})

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "bogus")
	// Coercion kept going past the unknown-type variable and still coerced
	// the next one (spec.md §4.1: reported, not aborting).
	assert.Equal(t, "fine", coerced["ok"])
	assert.Equal(t, "anything", coerced["bogus"])
}
