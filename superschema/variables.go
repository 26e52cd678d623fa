package superschema

import (
	"github.com/hashicorp/go-multierror"

	"github.com/stitchgql/federate/graphql"
)

// DefaultMaxErrors is the default cap on variable coercion errors collected
// before aborting, per spec.md §6.
const DefaultMaxErrors = 50

// VariableOptions configures GetVariableValues.
type VariableOptions struct {
	MaxErrors int
}

// GetVariableValues coerces raw client-provided variable inputs against an
// operation's variable definitions (spec.md §4.1 "Variable coercion").
//
// Required (non-null) variables missing or explicitly null fail. Defaults
// apply when the name is absent from inputs. Coercion aborts once the error
// count reaches opts.MaxErrors; unknown/illegal variable *types* are
// reported but do not abort the loop (spec.md §4.1).
func GetVariableValues(defs []*graphql.VariableDefinition, inputs map[string]interface{}, opts VariableOptions) (map[string]interface{}, []error) {
	maxErrors := opts.MaxErrors
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}

	coerced := make(map[string]interface{}, len(defs))
	var collected []error

	for _, def := range defs {
		if len(collected) >= maxErrors {
			break
		}

		raw, present := inputs[def.Name]

		if !present {
			if def.HasDefault {
				coerced[def.Name] = def.DefaultValue
				continue
			}
			if isNonNull(def.Type) {
				collected = append(collected, graphql.NewError(
					"Variable \"$%s\" of required type \"%s\" was not provided.", def.Name, def.Type))
			}
			continue
		}

		if raw == nil {
			if isNonNull(def.Type) {
				collected = append(collected, graphql.NewError(
					"Variable \"$%s\" of non-null type \"%s\" must not be null.", def.Name, def.Type))
				continue
			}
			coerced[def.Name] = nil
			continue
		}

		if err := checkKnownType(def.Type); err != nil {
			// Unknown/illegal types are reported but do not abort the loop.
			collected = append(collected, graphql.NewError(
				"Variable \"$%s\": %v", def.Name, err))
		}

		coerced[def.Name] = raw
	}

	if len(collected) == 0 {
		return coerced, nil
	}

	// Collected through go-multierror; only the individual errors are
	// returned (spec.md §4.5, "the coercion errors are returned"), not the
	// aggregate itself.
	agg := multierror.Append(nil, collected...)
	return coerced, agg.Errors
}

func isNonNull(t graphql.Type) bool {
	_, ok := t.(*graphql.NonNull)
	return ok
}

func checkKnownType(t graphql.Type) error {
	switch typ := t.(type) {
	case *graphql.NonNull:
		return checkKnownType(typ.Type)
	case *graphql.List:
		return checkKnownType(typ.Type)
	case nil:
		return graphql.NewError("variable has no declared type")
	default:
		return nil
	}
}
