// Package gateway is the entry-point wrapper (spec.md §4.5, SPEC_FULL.md
// §4.5): parse, resolve the operation, coerce variables, plan, and compose,
// in that order. It is the only package that imports a query-language parser
// (vektah/gqlparser/v2) — the planner and composer work exclusively in terms
// of the core graphql package's already-resolved AST.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/stitchgql/federate/composer"
	"github.com/stitchgql/federate/directives"
	coregraphql "github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/internal/cache"
	"github.com/stitchgql/federate/internal/logging"
	"github.com/stitchgql/federate/planner"
	"github.com/stitchgql/federate/stream"
	"github.com/stitchgql/federate/subschema"
	"github.com/stitchgql/federate/superschema"
)

// Request is one client-supplied GraphQL request.
type Request struct {
	Query         string
	OperationName string
	Variables     map[string]interface{}
}

// Response is what Execute returns: an assembled result plus, for an
// operation with incremental follow-up data (a `@defer`/`@stream`-bearing
// stitch or a subscription), the consolidated stream of subsequent payloads.
type Response struct {
	Data       map[string]interface{}
	Errors     []*coregraphql.Error
	HasNext    bool
	Subsequent *stream.Consolidator
}

// Gateway drives one SuperSchema's worth of requests to completion.
type Gateway struct {
	super   *superschema.SuperSchema
	log     logging.Logger
	cache   *cache.PlanCache
	varOpts superschema.VariableOptions
}

// Option configures a Gateway at construction time.
type Option func(*Gateway)

// WithLogger installs a non-default logger.
func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithPlanCache wires an (optional) distributed FieldPlan memo cache. A nil
// cache is accepted and simply never used.
func WithPlanCache(c *cache.PlanCache) Option {
	return func(g *Gateway) { g.cache = c }
}

// WithVariableOptions overrides the default variable-coercion limits.
func WithVariableOptions(opts superschema.VariableOptions) Option {
	return func(g *Gateway) { g.varOpts = opts }
}

// New builds a Gateway over super.
func New(super *superschema.SuperSchema, opts ...Option) *Gateway {
	g := &Gateway{super: super, log: logging.Nop{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Execute parses, plans, and composes req into a Response (spec.md §4.5).
func (g *Gateway) Execute(ctx context.Context, req Request) (*Response, error) {
	doc, gqlErr := parser.ParseQuery(&ast.Source{Input: req.Query})
	if gqlErr != nil {
		return nil, wrapGqlError(gqlErr)
	}

	rawOp, err := resolveOperation(doc.Operations, req.OperationName)
	if err != nil {
		return nil, err
	}

	varDefs, err := convertVariableDefinitions(rawOp.VariableDefinitions, g.super)
	if err != nil {
		return nil, err
	}

	coerced, coerceErrs := superschema.GetVariableValues(varDefs, req.Variables, g.varOpts)
	if len(coerceErrs) > 0 {
		out := make([]*coregraphql.Error, 0, len(coerceErrs))
		for _, e := range coerceErrs {
			out = append(out, coregraphql.WrapError(e, nil))
		}
		return &Response{Errors: out}, nil
	}

	selSet, err := directives.Convert(rawOp.SelectionSet, coerced, doc.Fragments)
	if err != nil {
		return nil, err
	}

	kind := convertKind(rawOp.Operation)
	op := &coregraphql.OperationDefinition{Name: rawOp.Name, Kind: kind, Variables: varDefs, SelectionSet: selSet}

	if kind == coregraphql.Subscription {
		return g.executeSubscription(ctx, op, coerced)
	}

	plan, err := g.plan(ctx, op, coerced)
	if err != nil {
		return nil, err
	}

	comp := composer.New(op, coerced, g.log)
	resp, err := comp.Compose(ctx, plan)
	if err != nil {
		return nil, err
	}

	return &Response{Data: resp.Data, Errors: resp.Errors, HasNext: resp.HasNext, Subsequent: comp.Subsequent()}, nil
}

// plan builds (or fetches from the optional cache) the FieldPlan for op. The
// cache key is derived from op's kind and its fully resolved selection set
// (post skip/include, post fragment-inlining), which is all the planner's
// output depends on — variable values themselves never influence Plan.
func (g *Gateway) plan(ctx context.Context, op *coregraphql.OperationDefinition, variables map[string]interface{}) (*planner.FieldPlan, error) {
	if g.cache != nil {
		if key, ok := planCacheKey(op); ok {
			if cached, hit := g.cache.Get(ctx, key, g.super.Subschemas()); hit {
				return cached, nil
			}
			g.log.Debug("plan cache miss", "key", key, "subschemas", g.super.SubschemaNames())
			p, err := planner.New(g.super).Plan(op, variables)
			if err != nil {
				return nil, err
			}
			if err := g.cache.Set(ctx, key, p); err != nil {
				g.log.Warn("plan cache set failed", "error", err)
			}
			return p, nil
		}
	}
	return planner.New(g.super).Plan(op, variables)
}

func planCacheKey(op *coregraphql.OperationDefinition) (string, bool) {
	raw, err := json.Marshal(struct {
		Kind         coregraphql.OperationKind
		SelectionSet *coregraphql.SelectionSet
	}{op.Kind, op.SelectionSet})
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(raw)
	return op.Name + ":" + hex.EncodeToString(sum[:]), true
}

// executeSubscription implements SPEC_FULL.md's "Subscription fan-in": a
// subscription's single root field is sent to the first subschema that
// resolves it, which must expose a Subscriber (spec.md §8 scenario 5); other
// candidates are not consulted. Its lazy sequence
// is piped through the same Stream Consolidator a query's incremental
// follow-up fetches use.
func (g *Gateway) executeSubscription(ctx context.Context, op *coregraphql.OperationDefinition, variables map[string]interface{}) (*Response, error) {
	rootType := g.super.GetRootType(coregraphql.Subscription)
	if rootType == nil {
		return nil, coregraphql.NewError("Schema is not configured to execute subscription operation.")
	}

	fieldNodes := flattenRoot(g.super, rootType, op.SelectionSet)
	if len(fieldNodes) != 1 {
		return nil, coregraphql.NewError("Subscription operations must select exactly one top-level field.")
	}
	field := fieldNodes[0]

	candidates := g.super.SubschemasFor(rootType.Name, field.Name)
	if len(candidates) == 0 {
		return nil, coregraphql.NewError("Cannot query field \"%s\" on type \"%s\".", field.Name, rootType.Name)
	}
	target := candidates[0]
	if target.Subscriber == nil {
		return nil, coregraphql.NewError("Subschema is not configured to execute subscription operation.")
	}

	req := subschema.Request{
		Document: &coregraphql.Document{
			Operations: []*coregraphql.OperationDefinition{{
				Name:         op.Name,
				Kind:         coregraphql.Subscription,
				Variables:    op.Variables,
				SelectionSet: &coregraphql.SelectionSet{Selections: fieldNodes},
			}},
		},
		Variables: variables,
	}

	result, err := target.Subscriber(ctx, req)
	if err != nil {
		return nil, coregraphql.WrapError(err, nil)
	}

	consolidator := stream.NewConsolidator()

	var data map[string]interface{}
	var errs []*coregraphql.Error
	var hasNext bool

	switch {
	case result.InitialResult != nil:
		if dm, ok := result.InitialResult.Data.(map[string]interface{}); ok {
			data = dm
		}
		errs = result.InitialResult.Errors
		hasNext = result.InitialResult.HasNext
		if result.SubsequentResults != nil {
			consolidator.AddSource(result.SubsequentResults)
		}

	case result.SubsequentResults != nil:
		hasNext = true
		consolidator.AddSource(result.SubsequentResults)

	default:
		if dm, ok := result.Data.(map[string]interface{}); ok {
			data = dm
		}
		errs = result.Errors
	}

	consolidator.Close()

	return &Response{Data: data, Errors: errs, HasNext: hasNext, Subsequent: consolidator}, nil
}

func wrapGqlError(e *gqlerror.Error) *coregraphql.Error {
	return &coregraphql.Error{Message: e.Message, OriginalError: e}
}
