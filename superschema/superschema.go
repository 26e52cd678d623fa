// Package superschema merges a set of federated subschemas into the single
// union schema clients write queries against (spec.md §3, §4.1).
package superschema

import (
	"sort"

	"github.com/samsarahq/go/oops"

	"github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/subschema"
)

const introspectionSubschemaName = "__introspection"

// SuperSchema is the immutable, shareable result of merging N subschemas
// (spec.md §3 "Lifecycle"). Build it once per subschema set.
type SuperSchema struct {
	Schema *graphql.Schema

	// byTypeAndField maps typeName -> fieldName -> the set of subschemas
	// (by name) able to resolve that field, preserving subschema order for
	// determinism (spec.md §4.1 invariants).
	byTypeAndField map[string]map[string][]*subschema.Subschema
	bySubschema    map[string]*subschema.Subschema

	introspection *subschema.Subschema
}

// Build merges subschemas into a SuperSchema, per the policy table in
// spec.md §4.1.
func Build(subschemas []*subschema.Subschema) (*SuperSchema, error) {
	if len(subschemas) == 0 {
		return nil, oops.Errorf("superschema: at least one subschema is required")
	}

	ss := &SuperSchema{
		byTypeAndField: make(map[string]map[string][]*subschema.Subschema),
		bySubschema:    make(map[string]*subschema.Subschema),
	}

	merged := &graphql.Schema{
		Types:      make(map[string]graphql.Type),
		Directives: make(map[string]*graphql.Directive),
	}

	// Root types: union the fields of every subschema's root type per kind.
	canonicalRootName := map[graphql.OperationKind]string{
		graphql.Query:        "Query",
		graphql.Mutation:     "Mutation",
		graphql.Subscription: "Subscription",
	}
	rootObjects := map[graphql.OperationKind]*graphql.Object{}
	for _, kind := range []graphql.OperationKind{graphql.Query, graphql.Mutation, graphql.Subscription} {
		rootObjects[kind] = &graphql.Object{Name: canonicalRootName[kind], Fields: map[string]*graphql.Field{}}
	}

	for _, sub := range subschemas {
		if sub.Name == "" {
			return nil, oops.Errorf("superschema: subschema must have a name")
		}
		if _, exists := ss.bySubschema[sub.Name]; exists {
			return nil, oops.Errorf("superschema: duplicate subschema name %q", sub.Name)
		}
		ss.bySubschema[sub.Name] = sub

		for _, kind := range []graphql.OperationKind{graphql.Query, graphql.Mutation, graphql.Subscription} {
			root := sub.Schema.RootType(kind)
			if root == nil {
				continue
			}
			mergeObjectFieldsInto(rootObjects[kind], root)
			ss.recordFields(rootObjects[kind].Name, root, sub)
		}

		for name, typ := range sub.Schema.Types {
			if isIntrospectionType(name) {
				continue
			}
			if err := mergeType(merged.Types, name, typ); err != nil {
				return nil, oops.Wrapf(err, "merging type %s", name)
			}
			if obj, ok := typ.(*graphql.Object); ok {
				ss.recordFields(name, obj, sub)
			}
			if iface, ok := typ.(*graphql.Interface); ok {
				ss.recordInterfaceFields(name, iface, sub)
			}
		}

		for name, dir := range sub.Schema.Directives {
			mergeDirective(merged.Directives, name, dir)
		}
	}

	merged.Query = rootObjects[graphql.Query]
	merged.Types["Query"] = merged.Query
	if len(rootObjects[graphql.Mutation].Fields) > 0 {
		merged.Mutation = rootObjects[graphql.Mutation]
		merged.Types["Mutation"] = merged.Mutation
	}
	if len(rootObjects[graphql.Subscription].Fields) > 0 {
		merged.Subscription = rootObjects[graphql.Subscription]
		merged.Types["Subscription"] = merged.Subscription
	}

	// Always record __typename for every composite type (invariant (a)/(b)).
	for name, typ := range merged.Types {
		switch typ.(type) {
		case *graphql.Object, *graphql.Interface, *graphql.Union:
			ss.registerTypename(name, subschemas)
		}
	}

	// Bind __schema/__type to the internal introspection subschema.
	introspectionSub := newIntrospectionSubschema(merged)
	ss.bySubschema[introspectionSubschemaName] = introspectionSub
	ss.introspection = introspectionSub
	ss.byTypeAndField[merged.Query.Name]["__schema"] = []*subschema.Subschema{introspectionSub}
	ss.byTypeAndField[merged.Query.Name]["__type"] = []*subschema.Subschema{introspectionSub}

	ss.Schema = merged
	return ss, nil
}

func (ss *SuperSchema) recordFields(typeName string, obj *graphql.Object, sub *subschema.Subschema) {
	if ss.byTypeAndField[typeName] == nil {
		ss.byTypeAndField[typeName] = make(map[string][]*subschema.Subschema)
	}
	for fieldName := range obj.Fields {
		ss.byTypeAndField[typeName][fieldName] = appendSubschema(ss.byTypeAndField[typeName][fieldName], sub)
	}
}

func (ss *SuperSchema) recordInterfaceFields(typeName string, iface *graphql.Interface, sub *subschema.Subschema) {
	if ss.byTypeAndField[typeName] == nil {
		ss.byTypeAndField[typeName] = make(map[string][]*subschema.Subschema)
	}
	for fieldName := range iface.Fields {
		ss.byTypeAndField[typeName][fieldName] = appendSubschema(ss.byTypeAndField[typeName][fieldName], sub)
	}
}

func (ss *SuperSchema) registerTypename(typeName string, subschemas []*subschema.Subschema) {
	if ss.byTypeAndField[typeName] == nil {
		ss.byTypeAndField[typeName] = make(map[string][]*subschema.Subschema)
	}
	if len(ss.byTypeAndField[typeName]["__typename"]) > 0 {
		return
	}
	// __typename is resolvable anywhere the type itself is known; attribute
	// it to every subschema contributing to the type so the planner's
	// preference rule (stick with fromSubschema) works uniformly.
	for _, sub := range subschemas {
		if _, ok := sub.Schema.Types[typeName]; ok {
			ss.byTypeAndField[typeName]["__typename"] = appendSubschema(ss.byTypeAndField[typeName]["__typename"], sub)
		}
	}
	if len(ss.byTypeAndField[typeName]["__typename"]) == 0 && len(subschemas) > 0 {
		ss.byTypeAndField[typeName]["__typename"] = []*subschema.Subschema{subschemas[0]}
	}
}

func appendSubschema(set []*subschema.Subschema, sub *subschema.Subschema) []*subschema.Subschema {
	for _, existing := range set {
		if existing.Name == sub.Name {
			return set
		}
	}
	return append(set, sub)
}

func isIntrospectionType(name string) bool {
	switch name {
	case "__Schema", "__Type", "__Field", "__InputValue", "__EnumValue", "__Directive", "__TypeKind", "__DirectiveLocation":
		return true
	default:
		return len(name) >= 2 && name[0] == '_' && name[1] == '_'
	}
}

// SubschemasFor returns the ordered set of subschemas able to resolve
// typeName.fieldName, or nil if none (spec.md §4.2 "If absent, ignore the
// field").
func (ss *SuperSchema) SubschemasFor(typeName, fieldName string) []*subschema.Subschema {
	byField, ok := ss.byTypeAndField[typeName]
	if !ok {
		return nil
	}
	return byField[fieldName]
}

// GetRootType returns the merged root object for kind, or nil.
func (ss *SuperSchema) GetRootType(kind graphql.OperationKind) *graphql.Object {
	return ss.Schema.RootType(kind)
}

// Subschemas returns every subschema known to ss, keyed by name (including
// the internal introspection subschema). Used by the plan cache to rehydrate
// stored FieldPlans.
func (ss *SuperSchema) Subschemas() map[string]*subschema.Subschema {
	return ss.bySubschema
}

// GetType looks up a merged type by name.
func (ss *SuperSchema) GetType(name string) graphql.Type {
	return ss.Schema.Types[name]
}

// GetPossibleTypes enumerates the concrete object types satisfying t.
func (ss *SuperSchema) GetPossibleTypes(t graphql.Type) []*graphql.Object {
	return graphql.PossibleTypes(ss.Schema.Types, t)
}

// GetFieldDef resolves a field definition on parent, falling through to the
// protocol meta-fields per spec.md §4.1.
func (ss *SuperSchema) GetFieldDef(parent graphql.Type, name string) *graphql.Field {
	switch typ := parent.(type) {
	case *graphql.Object:
		if f, ok := typ.Fields[name]; ok {
			return f
		}
	case *graphql.Interface:
		if f, ok := typ.Fields[name]; ok {
			return f
		}
	}

	if name == "__typename" {
		return &graphql.Field{Name: "__typename", Type: &graphql.NonNull{Type: &graphql.Scalar{Name: "String", Specified: true}}}
	}
	if obj, ok := parent.(*graphql.Object); ok && obj.Name == ss.Schema.Query.Name {
		switch name {
		case "__schema":
			return &graphql.Field{Name: "__schema", Type: &graphql.NonNull{Type: &graphql.Object{Name: "__Schema"}}}
		case "__type":
			return &graphql.Field{Name: "__type", Args: map[string]graphql.Type{"name": &graphql.NonNull{Type: &graphql.Scalar{Name: "String", Specified: true}}}, Type: &graphql.Object{Name: "__Type"}}
		}
	}
	return nil
}

// mergeObjectFieldsInto unions src's fields into dst, first definition wins
// on name conflicts (spec.md §4.1 table, Object/Interface row).
func mergeObjectFieldsInto(dst *graphql.Object, src *graphql.Object) {
	if dst.Description == "" {
		dst.Description = src.Description
	}
	for name, field := range src.Fields {
		if _, exists := dst.Fields[name]; !exists {
			dst.Fields[name] = field
		}
	}
	for _, iface := range src.Interfaces {
		if !containsString(dst.Interfaces, iface) {
			dst.Interfaces = append(dst.Interfaces, iface)
		}
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func mergeType(into map[string]graphql.Type, name string, typ graphql.Type) error {
	existing, ok := into[name]
	if !ok {
		into[name] = cloneTop(typ)
		return nil
	}

	switch t := typ.(type) {
	case *graphql.Scalar:
		// Keep first name/description; nothing else to merge.
		return nil

	case *graphql.Enum:
		e, ok := existing.(*graphql.Enum)
		if !ok {
			return oops.Errorf("type %s kind mismatch merging enum", name)
		}
		for _, v := range t.Values {
			if !containsString(e.Values, v) {
				e.Values = append(e.Values, v)
			}
		}
		return nil

	case *graphql.Union:
		u, ok := existing.(*graphql.Union)
		if !ok {
			return oops.Errorf("type %s kind mismatch merging union", name)
		}
		for member, obj := range t.Members {
			if _, exists := u.Members[member]; !exists {
				u.Members[member] = obj
			}
		}
		return nil

	case *graphql.InputObject:
		i, ok := existing.(*graphql.InputObject)
		if !ok {
			return oops.Errorf("type %s kind mismatch merging input object", name)
		}
		for field, ft := range t.InputFields {
			if _, exists := i.InputFields[field]; !exists {
				i.InputFields[field] = ft
			}
		}
		return nil

	case *graphql.Object:
		o, ok := existing.(*graphql.Object)
		if !ok {
			return oops.Errorf("type %s kind mismatch merging object", name)
		}
		mergeObjectFieldsInto(o, t)
		return nil

	case *graphql.Interface:
		i, ok := existing.(*graphql.Interface)
		if !ok {
			return oops.Errorf("type %s kind mismatch merging interface", name)
		}
		if i.Fields == nil {
			i.Fields = map[string]*graphql.Field{}
		}
		for fname, f := range t.Fields {
			if _, exists := i.Fields[fname]; !exists {
				i.Fields[fname] = f
			}
		}
		return nil

	default:
		return oops.Errorf("type %s: unsupported kind %T", name, typ)
	}
}

func cloneTop(typ graphql.Type) graphql.Type {
	switch t := typ.(type) {
	case *graphql.Object:
		fields := make(map[string]*graphql.Field, len(t.Fields))
		for k, v := range t.Fields {
			fields[k] = v
		}
		return &graphql.Object{Name: t.Name, Description: t.Description, Fields: fields, Interfaces: append([]string{}, t.Interfaces...)}
	case *graphql.Interface:
		fields := make(map[string]*graphql.Field, len(t.Fields))
		for k, v := range t.Fields {
			fields[k] = v
		}
		return &graphql.Interface{Name: t.Name, Description: t.Description, Fields: fields}
	case *graphql.Union:
		members := make(map[string]*graphql.Object, len(t.Members))
		for k, v := range t.Members {
			members[k] = v
		}
		return &graphql.Union{Name: t.Name, Description: t.Description, Members: members}
	case *graphql.InputObject:
		fields := make(map[string]graphql.Type, len(t.InputFields))
		for k, v := range t.InputFields {
			fields[k] = v
		}
		return &graphql.InputObject{Name: t.Name, Description: t.Description, InputFields: fields}
	case *graphql.Enum:
		return &graphql.Enum{Name: t.Name, Description: t.Description, Values: append([]string{}, t.Values...)}
	case *graphql.Scalar:
		return &graphql.Scalar{Name: t.Name, Description: t.Description, Specified: t.Specified}
	default:
		return typ
	}
}

func mergeDirective(into map[string]*graphql.Directive, name string, dir *graphql.Directive) {
	existing, ok := into[name]
	if !ok {
		locations := make(map[string]bool, len(dir.Locations))
		for k, v := range dir.Locations {
			locations[k] = v
		}
		args := make(map[string]graphql.Type, len(dir.Args))
		for k, v := range dir.Args {
			args[k] = v
		}
		into[name] = &graphql.Directive{
			Name:        dir.Name,
			Description: dir.Description,
			Locations:   locations,
			Repeatable:  dir.Repeatable,
			Args:        args,
		}
		return
	}
	for loc, v := range dir.Locations {
		existing.Locations[loc] = v || existing.Locations[loc]
	}
	existing.Repeatable = existing.Repeatable || dir.Repeatable
	for arg, t := range dir.Args {
		if _, exists := existing.Args[arg]; !exists {
			existing.Args[arg] = t
		}
	}
}

// subschemasSorted is a small helper for deterministic iteration in tests
// and logs.
func subschemasSorted(m map[string]*subschema.Subschema) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SubschemaNames returns the names of every subschema known to ss, sorted,
// for deterministic logging (e.g. a plan cache miss reporting which
// subschemas it will rehydrate stitch plans against).
func (ss *SuperSchema) SubschemaNames() []string {
	return subschemasSorted(ss.bySubschema)
}
