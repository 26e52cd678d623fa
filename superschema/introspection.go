package superschema

import (
	"context"

	"github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/subschema"
)

// newIntrospectionSubschema builds the internal subschema bound to
// __schema/__type (spec.md §4.1 "add an internal introspection subschema
// whose executor runs the underlying query engine against the merged schema
// itself"). It resolves exactly the two meta-fields; it is not a general
// introspection engine since the core does not implement query execution
// beyond what stitching needs (spec.md §1 Non-goals).
func newIntrospectionSubschema(merged *graphql.Schema) *subschema.Subschema {
	return &subschema.Subschema{
		Name:   introspectionSubschemaName,
		Schema: merged,
		Executor: func(ctx context.Context, req subschema.Request) (subschema.Result, error) {
			data := map[string]interface{}{}
			for _, op := range req.Document.Operations {
				for _, sel := range op.SelectionSet.Selections {
					switch sel.Name {
					case "__schema":
						data[sel.ResponseKey()] = describeSchema(merged, sel.SelectionSet)
					case "__type":
						name, _ := sel.Args["name"].(string)
						data[sel.ResponseKey()] = describeType(merged.Types[name], sel.SelectionSet)
					}
				}
			}
			return subschema.Result{Data: data}, nil
		},
	}
}

func describeSchema(schema *graphql.Schema, sel *graphql.SelectionSet) map[string]interface{} {
	types := make([]interface{}, 0, len(schema.Types))
	for _, t := range schema.Types {
		types = append(types, describeType(t, nil))
	}
	out := map[string]interface{}{"types": types}
	if schema.Query != nil {
		out["queryType"] = map[string]interface{}{"name": schema.Query.Name}
	}
	if schema.Mutation != nil {
		out["mutationType"] = map[string]interface{}{"name": schema.Mutation.Name}
	}
	if schema.Subscription != nil {
		out["subscriptionType"] = map[string]interface{}{"name": schema.Subscription.Name}
	}
	return out
}

func describeType(t graphql.Type, sel *graphql.SelectionSet) map[string]interface{} {
	if t == nil {
		return nil
	}
	switch typ := t.(type) {
	case *graphql.Object:
		fields := make([]interface{}, 0, len(typ.Fields))
		for name, f := range typ.Fields {
			fields = append(fields, map[string]interface{}{
				"name": name,
				"type": map[string]interface{}{"name": f.Type.String()},
			})
		}
		return map[string]interface{}{"kind": "OBJECT", "name": typ.Name, "description": typ.Description, "fields": fields}
	case *graphql.Interface:
		return map[string]interface{}{"kind": "INTERFACE", "name": typ.Name, "description": typ.Description}
	case *graphql.Union:
		return map[string]interface{}{"kind": "UNION", "name": typ.Name, "description": typ.Description}
	case *graphql.Enum:
		return map[string]interface{}{"kind": "ENUM", "name": typ.Name, "description": typ.Description, "enumValues": typ.Values}
	case *graphql.InputObject:
		return map[string]interface{}{"kind": "INPUT_OBJECT", "name": typ.Name, "description": typ.Description}
	case *graphql.Scalar:
		return map[string]interface{}{"kind": "SCALAR", "name": typ.Name, "description": typ.Description}
	default:
		return map[string]interface{}{"kind": "UNKNOWN", "name": typ.String()}
	}
}
