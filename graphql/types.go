// Package graphql holds the minimal typed representation the planner and
// composer consume: a schema's type system and a parsed operation's
// selection sets. It does not implement the query language grammar or value
// coercion beyond what SuperSchema needs for variables; those are left to
// whatever parses client documents (see the directives package and the
// gateway entry point, which both build on vektah/gqlparser/v2).
package graphql

import "fmt"

// Type is a GraphQL type: a Scalar, Enum, Object, Interface, Union,
// InputObject, List, or NonNull.
type Type interface {
	String() string
	isType()
}

// Scalar is a leaf value, either one of the specified scalars (Int, Float,
// String, Boolean, ID) or a custom scalar defined by a subschema.
type Scalar struct {
	Name        string
	Description string
	// Specified is true for Int/Float/String/Boolean/ID.
	Specified bool
}

func (s *Scalar) isType()        {}
func (s *Scalar) String() string { return s.Name }

// Enum is a leaf value restricted to a fixed set of named values.
type Enum struct {
	Name        string
	Description string
	Values      []string
}

func (e *Enum) isType()        {}
func (e *Enum) String() string { return e.Name }

// Object is a composite output type with its own fields.
type Object struct {
	Name        string
	Description string
	Fields      map[string]*Field
	Interfaces  []string
}

func (o *Object) isType()        {}
func (o *Object) String() string { return o.Name }

// Interface is an abstract output type implemented by a set of objects.
type Interface struct {
	Name        string
	Description string
	Fields      map[string]*Field
}

func (i *Interface) isType()        {}
func (i *Interface) String() string { return i.Name }

// Union is an abstract output type that is one of a fixed set of objects,
// with no fields of its own beyond __typename.
type Union struct {
	Name        string
	Description string
	Members     map[string]*Object
}

func (u *Union) isType()        {}
func (u *Union) String() string { return u.Name }

// InputObject is a composite input type.
type InputObject struct {
	Name        string
	Description string
	InputFields map[string]Type
}

func (i *InputObject) isType()        {}
func (i *InputObject) String() string { return i.Name }

// List wraps an element type.
type List struct {
	Type Type
}

func (l *List) isType()        {}
func (l *List) String() string { return fmt.Sprintf("[%s]", l.Type) }

// NonNull wraps a type that may not resolve to null.
type NonNull struct {
	Type Type
}

func (n *NonNull) isType()        {}
func (n *NonNull) String() string { return fmt.Sprintf("%s!", n.Type) }

var (
	_ Type = (*Scalar)(nil)
	_ Type = (*Enum)(nil)
	_ Type = (*Object)(nil)
	_ Type = (*Interface)(nil)
	_ Type = (*Union)(nil)
	_ Type = (*InputObject)(nil)
	_ Type = (*List)(nil)
	_ Type = (*NonNull)(nil)
)

// NamedType strips List/NonNull wrappers to get at the underlying named type.
func NamedType(t Type) Type {
	for {
		switch inner := t.(type) {
		case *List:
			t = inner.Type
		case *NonNull:
			t = inner.Type
		default:
			return t
		}
	}
}

// IsAbstract reports whether t is an Interface or Union, which cannot be
// committed to a single subschema without knowing the concrete runtime type.
func IsAbstract(t Type) bool {
	switch t.(type) {
	case *Interface, *Union:
		return true
	default:
		return false
	}
}

// IsSubType reports whether concrete satisfies the abstract type named by
// abstractName. Used when flattening inline fragments at the planner's root
// (spec step 2) and to enumerate possible types for stitch plans.
func IsSubType(types map[string]Type, abstractName string, concrete *Object) bool {
	if concrete.Name == abstractName {
		return true
	}
	switch abs := types[abstractName].(type) {
	case *Union:
		_, ok := abs.Members[concrete.Name]
		return ok
	case *Interface:
		for _, name := range concrete.Interfaces {
			if name == abstractName {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// PossibleTypes returns every concrete Object type that could satisfy t: just
// t itself if t is already concrete, or every implementor/member if t is
// abstract.
func PossibleTypes(types map[string]Type, t Type) []*Object {
	switch typ := t.(type) {
	case *Object:
		return []*Object{typ}
	case *Union:
		out := make([]*Object, 0, len(typ.Members))
		for _, obj := range typ.Members {
			out = append(out, obj)
		}
		return out
	case *Interface:
		var out []*Object
		for _, candidate := range types {
			obj, ok := candidate.(*Object)
			if !ok {
				continue
			}
			for _, name := range obj.Interfaces {
				if name == typ.Name {
					out = append(out, obj)
					break
				}
			}
		}
		return out
	default:
		return nil
	}
}

// Field describes one field of an Object or Interface.
type Field struct {
	Name string
	Args map[string]Type
	Type Type
}

// Directive describes a schema-level directive definition (e.g. @skip).
type Directive struct {
	Name        string
	Description string
	Locations   map[string]bool
	Repeatable  bool
	Args        map[string]Type
}

// OperationKind enumerates the three root operation kinds.
type OperationKind string

const (
	Query        OperationKind = "query"
	Mutation     OperationKind = "mutation"
	Subscription OperationKind = "subscription"
)

// Schema is a single subschema's (or the merged super-schema's) type system.
type Schema struct {
	Query        *Object
	Mutation     *Object
	Subscription *Object
	Types        map[string]Type
	Directives   map[string]*Directive
}

// RootType returns the root object for the given operation kind, or nil if
// the schema has none.
func (s *Schema) RootType(kind OperationKind) *Object {
	switch kind {
	case Query:
		return s.Query
	case Mutation:
		return s.Mutation
	case Subscription:
		return s.Subscription
	default:
		return nil
	}
}
