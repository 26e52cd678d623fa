package gateway

import (
	"github.com/vektah/gqlparser/v2/ast"

	coregraphql "github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/superschema"
)

// resolveOperation implements the entry-point resolution rules of spec.md
// §4.5 over a raw parsed document, before any conversion to the core AST.
func resolveOperation(ops ast.OperationList, name string) (*ast.OperationDefinition, error) {
	if name == "" {
		switch len(ops) {
		case 0:
			return nil, coregraphql.NewError("Must provide an operation.")
		case 1:
			return ops[0], nil
		default:
			return nil, coregraphql.NewError("Must provide operation name if query contains multiple operations.")
		}
	}
	for _, op := range ops {
		if op.Name == name {
			return op, nil
		}
	}
	return nil, coregraphql.NewError("Unknown operation named \"%s\".", name)
}

func convertKind(k ast.Operation) coregraphql.OperationKind {
	switch k {
	case ast.Mutation:
		return coregraphql.Mutation
	case ast.Subscription:
		return coregraphql.Subscription
	default:
		return coregraphql.Query
	}
}

func convertVariableDefinitions(defs ast.VariableDefinitionList, super *superschema.SuperSchema) ([]*coregraphql.VariableDefinition, error) {
	out := make([]*coregraphql.VariableDefinition, 0, len(defs))
	for _, d := range defs {
		vd := &coregraphql.VariableDefinition{Name: d.Variable, Type: convertType(d.Type, super)}
		if d.DefaultValue != nil {
			val, err := d.DefaultValue.Value(nil)
			if err != nil {
				return nil, err
			}
			vd.DefaultValue = val
			vd.HasDefault = true
		}
		out = append(out, vd)
	}
	return out, nil
}

// convertType maps a client-supplied type reference onto the core type
// system, resolving named types against the merged schema so a variable of
// type "User" coerces consistently with the planner's own view of "User".
func convertType(t *ast.Type, super *superschema.SuperSchema) coregraphql.Type {
	if t.NonNull {
		inner := *t
		inner.NonNull = false
		return &coregraphql.NonNull{Type: convertType(&inner, super)}
	}
	if t.Elem != nil {
		return &coregraphql.List{Type: convertType(t.Elem, super)}
	}
	return namedType(t.NamedType, super)
}

// namedType resolves a client-supplied named type reference against the
// built-in scalars and the merged schema. It returns nil when name matches
// no known type, so an unresolvable variable type is reported rather than
// silently treated as an ad hoc scalar (spec.md §4.1).
func namedType(name string, super *superschema.SuperSchema) coregraphql.Type {
	switch name {
	case "Int", "Float", "String", "Boolean", "ID":
		return &coregraphql.Scalar{Name: name, Specified: true}
	}
	return super.GetType(name)
}

// flattenRoot projects a root selection set down to plain field selections,
// inlining any fragment whose type condition matches rootType (the root
// operation object is always concrete, so this mirrors the planner's own
// collectEffectiveFieldNodes without needing to export it).
func flattenRoot(super *superschema.SuperSchema, rootType *coregraphql.Object, sel *coregraphql.SelectionSet) []*coregraphql.Selection {
	if sel == nil {
		return nil
	}
	out := append([]*coregraphql.Selection{}, sel.Selections...)
	for _, frag := range sel.InlineFragments {
		if !coregraphql.IsSubType(super.Schema.Types, frag.TypeCondition, rootType) {
			continue
		}
		out = append(out, flattenRoot(super, rootType, frag.SelectionSet)...)
	}
	return out
}
