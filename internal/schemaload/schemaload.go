// Package schemaload decodes a subschema's static JSON schema descriptor
// (SPEC_FULL.md's "static subschema list from config") into a
// graphql.Schema, the same DTO-then-hydrate approach internal/cache uses for
// FieldPlans.
package schemaload

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/stitchgql/federate/graphql"
)

type schemaDTO struct {
	Query        string             `json:"query"`
	Mutation     string             `json:"mutation,omitempty"`
	Subscription string             `json:"subscription,omitempty"`
	Types        []typeDTO          `json:"types"`
	Directives   map[string]dirDTO  `json:"directives,omitempty"`
}

type typeDTO struct {
	Kind        string             `json:"kind"` // scalar, enum, object, interface, union, input
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Specified   bool               `json:"specified,omitempty"`
	Values      []string           `json:"values,omitempty"`      // enum
	Fields      map[string]fieldDTO `json:"fields,omitempty"`     // object, interface
	Interfaces  []string           `json:"interfaces,omitempty"`  // object
	Members     []string           `json:"members,omitempty"`     // union
	InputFields map[string]string  `json:"inputFields,omitempty"` // input
}

type fieldDTO struct {
	Type string            `json:"type"`
	Args map[string]string `json:"args,omitempty"`
}

type dirDTO struct {
	Locations  []string          `json:"locations"`
	Repeatable bool              `json:"repeatable,omitempty"`
	Args       map[string]string `json:"args,omitempty"`
}

// Load reads and decodes the schema descriptor at path.
func Load(path string) (*graphql.Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schemaload: %w", err)
	}
	var dto schemaDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("schemaload: decoding %s: %w", path, err)
	}
	return dto.hydrate()
}

func (dto schemaDTO) hydrate() (*graphql.Schema, error) {
	types := make(map[string]graphql.Type, len(dto.Types))

	// First pass: register every named type so field/arg type references can
	// resolve regardless of declaration order.
	for _, t := range dto.Types {
		switch t.Kind {
		case "scalar":
			types[t.Name] = &graphql.Scalar{Name: t.Name, Description: t.Description, Specified: t.Specified}
		case "enum":
			types[t.Name] = &graphql.Enum{Name: t.Name, Description: t.Description, Values: t.Values}
		case "object":
			types[t.Name] = &graphql.Object{Name: t.Name, Description: t.Description, Interfaces: t.Interfaces}
		case "interface":
			types[t.Name] = &graphql.Interface{Name: t.Name, Description: t.Description}
		case "union":
			types[t.Name] = &graphql.Union{Name: t.Name, Description: t.Description}
		case "input":
			types[t.Name] = &graphql.InputObject{Name: t.Name, Description: t.Description}
		default:
			return nil, fmt.Errorf("schemaload: type %q has unknown kind %q", t.Name, t.Kind)
		}
	}

	resolve := func(ref string) (graphql.Type, error) { return parseTypeRef(ref, types) }

	// Second pass: fill in fields, args, union members, input fields, which
	// may reference any type registered above.
	for _, t := range dto.Types {
		switch t.Kind {
		case "object":
			obj := types[t.Name].(*graphql.Object)
			fields, err := hydrateFields(t.Fields, resolve)
			if err != nil {
				return nil, err
			}
			obj.Fields = fields
		case "interface":
			iface := types[t.Name].(*graphql.Interface)
			fields, err := hydrateFields(t.Fields, resolve)
			if err != nil {
				return nil, err
			}
			iface.Fields = fields
		case "union":
			union := types[t.Name].(*graphql.Union)
			union.Members = make(map[string]*graphql.Object, len(t.Members))
			for _, m := range t.Members {
				obj, ok := types[m].(*graphql.Object)
				if !ok {
					return nil, fmt.Errorf("schemaload: union %q member %q is not an object", t.Name, m)
				}
				union.Members[m] = obj
			}
		case "input":
			input := types[t.Name].(*graphql.InputObject)
			input.InputFields = make(map[string]graphql.Type, len(t.InputFields))
			for name, ref := range t.InputFields {
				typ, err := resolve(ref)
				if err != nil {
					return nil, err
				}
				input.InputFields[name] = typ
			}
		}
	}

	directives := make(map[string]*graphql.Directive, len(dto.Directives))
	for name, d := range dto.Directives {
		args, err := hydrateArgs(d.Args, resolve)
		if err != nil {
			return nil, err
		}
		locs := make(map[string]bool, len(d.Locations))
		for _, l := range d.Locations {
			locs[l] = true
		}
		directives[name] = &graphql.Directive{Name: name, Locations: locs, Repeatable: d.Repeatable, Args: args}
	}

	schema := &graphql.Schema{Types: types, Directives: directives}
	if dto.Query != "" {
		obj, ok := types[dto.Query].(*graphql.Object)
		if !ok {
			return nil, fmt.Errorf("schemaload: query root %q is not an object", dto.Query)
		}
		schema.Query = obj
	}
	if dto.Mutation != "" {
		obj, ok := types[dto.Mutation].(*graphql.Object)
		if !ok {
			return nil, fmt.Errorf("schemaload: mutation root %q is not an object", dto.Mutation)
		}
		schema.Mutation = obj
	}
	if dto.Subscription != "" {
		obj, ok := types[dto.Subscription].(*graphql.Object)
		if !ok {
			return nil, fmt.Errorf("schemaload: subscription root %q is not an object", dto.Subscription)
		}
		schema.Subscription = obj
	}
	return schema, nil
}

func hydrateFields(dtos map[string]fieldDTO, resolve func(string) (graphql.Type, error)) (map[string]*graphql.Field, error) {
	fields := make(map[string]*graphql.Field, len(dtos))
	for name, f := range dtos {
		typ, err := resolve(f.Type)
		if err != nil {
			return nil, err
		}
		args, err := hydrateArgs(f.Args, resolve)
		if err != nil {
			return nil, err
		}
		fields[name] = &graphql.Field{Name: name, Type: typ, Args: args}
	}
	return fields, nil
}

func hydrateArgs(dtos map[string]string, resolve func(string) (graphql.Type, error)) (map[string]graphql.Type, error) {
	if len(dtos) == 0 {
		return nil, nil
	}
	args := make(map[string]graphql.Type, len(dtos))
	for name, ref := range dtos {
		typ, err := resolve(ref)
		if err != nil {
			return nil, err
		}
		args[name] = typ
	}
	return args, nil
}

// parseTypeRef parses a type reference like "String!", "[Widget]", or
// "[ID!]!" against the already-registered named types.
func parseTypeRef(ref string, types map[string]graphql.Type) (graphql.Type, error) {
	if ref == "" {
		return nil, fmt.Errorf("schemaload: empty type reference")
	}
	if ref[len(ref)-1] == '!' {
		inner, err := parseTypeRef(ref[:len(ref)-1], types)
		if err != nil {
			return nil, err
		}
		return &graphql.NonNull{Type: inner}, nil
	}
	if ref[0] == '[' && ref[len(ref)-1] == ']' {
		inner, err := parseTypeRef(ref[1:len(ref)-1], types)
		if err != nil {
			return nil, err
		}
		return &graphql.List{Type: inner}, nil
	}
	typ, ok := types[ref]
	if !ok {
		return nil, fmt.Errorf("schemaload: unknown type %q", ref)
	}
	return typ, nil
}
