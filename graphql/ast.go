package graphql

// SelectionSet is the parsed, typed representation of a `{ ... }` block.
// Selections holds plain field selections (fragment spreads are not
// representable here; they are inlined upstream by directives.Convert);
// InlineFragments holds `... on Type { ... }` blocks that a flattening pass
// has not yet merged into Selections.
type SelectionSet struct {
	Selections      []*Selection
	InlineFragments []*InlineFragment
}

// Clone makes a shallow-structural copy of the selection set so planner
// mutations (splitting a set across subschemas) never alias the original
// operation's AST.
func (s *SelectionSet) Clone() *SelectionSet {
	if s == nil {
		return nil
	}
	out := &SelectionSet{
		Selections:      make([]*Selection, len(s.Selections)),
		InlineFragments: make([]*InlineFragment, len(s.InlineFragments)),
	}
	copy(out.Selections, s.Selections)
	copy(out.InlineFragments, s.InlineFragments)
	return out
}

// Selection is one field selection: `alias: name(args) { selectionSet }`.
type Selection struct {
	Alias        string
	Name         string
	Args         map[string]interface{}
	Directives   []*DirectiveUsage
	SelectionSet *SelectionSet
}

// ResponseKey is the key this selection occupies in the response object:
// the alias if present, else the field name (spec.md glossary).
func (s *Selection) ResponseKey() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

// InlineFragment is `... on TypeCondition { selectionSet }`. Fragment
// spreads (`...FragmentName`) must be inlined into one of these upstream of
// the planner (spec.md §4.2 step 2); encountering one here is a protocol
// error.
type InlineFragment struct {
	TypeCondition string
	Directives    []*DirectiveUsage
	SelectionSet  *SelectionSet
}

// DirectiveUsage is a directive applied at a particular selection, e.g.
// `@skip(if: $cond)`.
type DirectiveUsage struct {
	Name string
	Args map[string]interface{}
}

// VariableDefinition declares one `$name: Type = default` in an operation.
type VariableDefinition struct {
	Name         string
	Type         Type
	DefaultValue interface{}
	HasDefault   bool
}

// OperationDefinition is one named or anonymous operation in a document.
type OperationDefinition struct {
	Name         string
	Kind         OperationKind
	Variables    []*VariableDefinition
	SelectionSet *SelectionSet
}

// Document is a parsed client request: one or more operations. Fragment
// definitions are not kept; their spreads are already expanded into
// InlineFragments by the time the planner sees them, and the composer's
// outgoing documents carry only operation headers and selections.
type Document struct {
	Operations []*OperationDefinition
	Raw        string // original query text; the gateway and composer leave it empty
}

// OperationByName implements the entry-point resolution rules of spec.md
// §4.5: with no name and exactly one operation, return it; with no name and
// several operations, error; with a name, find the match or error.
func (d *Document) OperationByName(name string) (*OperationDefinition, error) {
	if name == "" {
		switch len(d.Operations) {
		case 0:
			return nil, NewError("Must provide an operation.")
		case 1:
			return d.Operations[0], nil
		default:
			return nil, NewError("Must provide operation name if query contains multiple operations.")
		}
	}
	for _, op := range d.Operations {
		if op.Name == name {
			return op, nil
		}
	}
	return nil, NewError("Unknown operation named \"%s\".", name)
}
