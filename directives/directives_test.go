package directives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
)

func boolValue(b bool) *ast.Value {
	raw := "false"
	if b {
		raw = "true"
	}
	return &ast.Value{Kind: ast.BooleanValue, Raw: raw}
}

func variableValue(name string) *ast.Value {
	return &ast.Value{Kind: ast.Variable, Raw: name}
}

func skipDirective(v *ast.Value) *ast.Directive {
	return &ast.Directive{Name: "skip", Arguments: ast.ArgumentList{{Name: "if", Value: v}}}
}

func includeDirective(v *ast.Value) *ast.Directive {
	return &ast.Directive{Name: "include", Arguments: ast.ArgumentList{{Name: "if", Value: v}}}
}

func TestShouldInclude_NoDirectives(t *testing.T) {
	include, err := ShouldInclude(nil, nil)
	require.NoError(t, err)
	assert.True(t, include)
}

func TestShouldInclude_SkipTrueExcludes(t *testing.T) {
	include, err := ShouldInclude(ast.DirectiveList{skipDirective(boolValue(true))}, nil)
	require.NoError(t, err)
	assert.False(t, include)
}

func TestShouldInclude_IncludeFalseExcludes(t *testing.T) {
	include, err := ShouldInclude(ast.DirectiveList{includeDirective(boolValue(false))}, nil)
	require.NoError(t, err)
	assert.False(t, include)
}

func TestShouldInclude_ResolvesFromVariable(t *testing.T) {
	include, err := ShouldInclude(ast.DirectiveList{skipDirective(variableValue("omit"))}, map[string]interface{}{"omit": true})
	require.NoError(t, err)
	assert.False(t, include)
}

func TestConvert_InlinesFragmentSpread(t *testing.T) {
	fragments := ast.FragmentDefinitionList{
		{
			Name:          "UserFields",
			TypeCondition: "User",
			SelectionSet:  ast.SelectionSet{&ast.Field{Name: "name"}},
		},
	}
	sel := ast.SelectionSet{
		&ast.Field{Name: "id"},
		&ast.FragmentSpread{Name: "UserFields"},
	}

	out, err := Convert(sel, nil, fragments)
	require.NoError(t, err)
	require.Len(t, out.Selections, 1)
	assert.Equal(t, "id", out.Selections[0].Name)
	require.Len(t, out.InlineFragments, 1)
	assert.Equal(t, "User", out.InlineFragments[0].TypeCondition)
	require.Len(t, out.InlineFragments[0].SelectionSet.Selections, 1)
	assert.Equal(t, "name", out.InlineFragments[0].SelectionSet.Selections[0].Name)
}

func TestConvert_DropsSkippedField(t *testing.T) {
	sel := ast.SelectionSet{
		&ast.Field{Name: "id"},
		&ast.Field{Name: "secret", Directives: ast.DirectiveList{skipDirective(boolValue(true))}},
	}

	out, err := Convert(sel, nil, nil)
	require.NoError(t, err)
	require.Len(t, out.Selections, 1)
	assert.Equal(t, "id", out.Selections[0].Name)
}

func TestConvert_UnknownFragmentErrors(t *testing.T) {
	sel := ast.SelectionSet{&ast.FragmentSpread{Name: "Missing"}}
	_, err := Convert(sel, nil, nil)
	assert.Error(t, err)
}
