// Package directives evaluates @skip/@include against coerced variables and
// inlines fragment spreads, turning a parsed vektah/gqlparser/v2 selection
// set into the core graphql package's lightweight AST (spec.md §4.2 step 1,
// SPEC_FULL.md §4.2). The planner never sees a FragmentSpread or a raw
// directive: by the time a selection set reaches it, skip/include has
// already been resolved and every spread has become an InlineFragment.
package directives

import (
	"github.com/vektah/gqlparser/v2/ast"

	coregraphql "github.com/stitchgql/federate/graphql"
)

// Convert inlines fragments and applies @skip/@include to sel, returning the
// core SelectionSet the planner consumes. fragments resolves a named
// fragment definition from the operation's document; vars are the already
// coerced variable values.
func Convert(sel ast.SelectionSet, vars map[string]interface{}, fragments ast.FragmentDefinitionList) (*coregraphql.SelectionSet, error) {
	out := &coregraphql.SelectionSet{}

	for _, s := range sel {
		switch node := s.(type) {
		case *ast.Field:
			include, err := ShouldInclude(node.Directives, vars)
			if err != nil {
				return nil, err
			}
			if !include {
				continue
			}
			args, err := convertArguments(node.Arguments, vars)
			if err != nil {
				return nil, err
			}
			var children *coregraphql.SelectionSet
			if len(node.SelectionSet) > 0 {
				children, err = Convert(node.SelectionSet, vars, fragments)
				if err != nil {
					return nil, err
				}
			}
			out.Selections = append(out.Selections, &coregraphql.Selection{
				Alias:        node.Alias,
				Name:         node.Name,
				Args:         args,
				SelectionSet: children,
			})

		case *ast.InlineFragment:
			include, err := ShouldInclude(node.Directives, vars)
			if err != nil {
				return nil, err
			}
			if !include {
				continue
			}
			children, err := Convert(node.SelectionSet, vars, fragments)
			if err != nil {
				return nil, err
			}
			out.InlineFragments = append(out.InlineFragments, &coregraphql.InlineFragment{
				TypeCondition: node.TypeCondition,
				SelectionSet:  children,
			})

		case *ast.FragmentSpread:
			include, err := ShouldInclude(node.Directives, vars)
			if err != nil {
				return nil, err
			}
			if !include {
				continue
			}
			def := fragments.ForName(node.Name)
			if def == nil {
				return nil, coregraphql.NewError("Unknown fragment \"%s\".", node.Name)
			}
			children, err := Convert(def.SelectionSet, vars, fragments)
			if err != nil {
				return nil, err
			}
			out.InlineFragments = append(out.InlineFragments, &coregraphql.InlineFragment{
				TypeCondition: def.TypeCondition,
				SelectionSet:  children,
			})

		default:
			return nil, coregraphql.NewError("unsupported selection node %T", s)
		}
	}

	return out, nil
}

// ShouldInclude implements the combined @skip/@include rule: a selection is
// included unless some @skip(if: true) or @include(if: false) applies to it.
func ShouldInclude(dirs ast.DirectiveList, vars map[string]interface{}) (bool, error) {
	include := true
	for _, d := range dirs {
		switch d.Name {
		case "skip":
			v, err := boolArg(d, "if", vars)
			if err != nil {
				return false, err
			}
			if v {
				include = false
			}
		case "include":
			v, err := boolArg(d, "if", vars)
			if err != nil {
				return false, err
			}
			if !v {
				include = false
			}
		}
	}
	return include, nil
}

func boolArg(d *ast.Directive, name string, vars map[string]interface{}) (bool, error) {
	arg := d.Arguments.ForName(name)
	if arg == nil {
		return false, coregraphql.NewError("Directive \"@%s\" argument \"%s\" of type \"Boolean!\" is required.", d.Name, name)
	}
	raw, err := arg.Value.Value(vars)
	if err != nil {
		return false, err
	}
	b, ok := raw.(bool)
	if !ok {
		return false, coregraphql.NewError("Directive \"@%s\" argument \"%s\" must be a boolean.", d.Name, name)
	}
	return b, nil
}

func convertArguments(args ast.ArgumentList, vars map[string]interface{}) (map[string]interface{}, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(args))
	for _, arg := range args {
		v, err := arg.Value.Value(vars)
		if err != nil {
			return nil, err
		}
		out[arg.Name] = v
	}
	return out, nil
}
