// Package composer drives a FieldPlan to completion: dispatches the initial
// sub-queries in parallel, merges results, walks stitch plans as concrete
// types become known, and recursively dispatches follow-up fetches until the
// plan is exhausted (spec.md §4.3).
package composer

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/internal/concurrency"
	"github.com/stitchgql/federate/internal/debug"
	"github.com/stitchgql/federate/internal/logging"
	"github.com/stitchgql/federate/internal/otelkit"
	"github.com/stitchgql/federate/planner"
	"github.com/stitchgql/federate/stream"
	"github.com/stitchgql/federate/subschema"
)

// Composer is single-use: construct one per operation execution (spec.md §5
// "Shared resources").
type Composer struct {
	op        *graphql.OperationDefinition
	variables map[string]interface{}
	log       logging.Logger

	wg sync.WaitGroup

	mu           sync.Mutex
	data         map[string]interface{}
	errs         []*graphql.Error
	nulled       bool
	hasNext      bool
	consolidator *stream.Consolidator
}

// New builds a Composer for one execution of op with coerced variables.
func New(op *graphql.OperationDefinition, variables map[string]interface{}, log logging.Logger) *Composer {
	if log == nil {
		log = logging.Nop{}
	}
	return &Composer{
		op:        op,
		variables: variables,
		log:       log,
		data:      map[string]interface{}{},
	}
}

// Compose drives plan to completion and returns the assembled response
// (spec.md §4.3 "compose()"). If any dispatched fetch returned an
// incremental result, the returned Response has HasNext set and the
// Composer's Subsequent method yields the consolidated follow-up stream.
func (c *Composer) Compose(ctx context.Context, plan *planner.FieldPlan) (*Response, error) {
	if plan.IsEmpty() {
		return &Response{Data: c.data}, nil
	}

	mutation := c.op != nil && c.op.Kind == graphql.Mutation

	for _, sp := range plan.SubschemaPlans {
		if mutation {
			// Root mutation fields run one subschema's root fields to
			// completion before the next begins (SPEC_FULL.md "Root-level
			// partial mutation ordering").
			c.runRootFetch(ctx, sp)
		} else {
			c.dispatchRootAsync(ctx, sp)
		}
	}
	c.wg.Wait()

	if len(plan.StitchPlans) > 0 {
		c.walkStitchPlans(ctx, c.data, plan.StitchPlans, nil)
		c.wg.Wait()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resp := &Response{Errors: c.errs, HasNext: c.hasNext}
	if c.nulled {
		resp.Data = nil
	} else {
		resp.Data = c.data
	}
	return resp, nil
}

// Subsequent returns the consolidated stream of incremental follow-up
// payloads registered during Compose, or nil if no dispatch returned an
// incremental result.
func (c *Composer) Subsequent() *stream.Consolidator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consolidator
}

func (c *Composer) dispatchRootAsync(ctx context.Context, sp *planner.SubschemaPlan) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runRootFetch(ctx, sp)
	}()
}

func (c *Composer) runRootFetch(ctx context.Context, sp *planner.SubschemaPlan) {
	defer c.recoverPanic(sp.Target.Name, nil)

	if err := concurrency.Acquire(ctx); err != nil {
		c.appendError(graphql.WrapError(err, nil))
		return
	}
	defer concurrency.Release(ctx)

	spanCtx, span := otelkit.StartSpan(ctx, "dispatch."+sp.Target.Name,
		attribute.String("subschema", sp.Target.Name))
	defer span.End()

	req := c.buildRequest(sp)
	result, err := sp.Target.Executor(spanCtx, req)
	if err != nil {
		otelkit.RecordError(span, err)
		result = subschema.Result{Errors: []*graphql.Error{graphql.WrapError(err, nil)}}
	}

	result = c.registerIncremental(result)
	c.handleResult(spanCtx, nil, nil, c.data, sp.StitchPlans, result, nil)
}

// stitchTarget is one object awaiting a follow-up fetch: the container that
// holds it (so a later failure can null the slot), its key in that
// container, the object itself (into which merged data is written), and its
// response path (for error reporting).
type stitchTarget struct {
	parent    interface{}
	parentKey pathComponent
	obj       map[string]interface{}
	path      []interface{}
}

// dispatchBatch issues one outgoing fetch for every stitchTarget that needs
// the same SubschemaPlan. Grouping happens by *planner.SubschemaPlan pointer
// identity at the call site (walkStitchValue), which guarantees the grouped
// targets share identical field selections (the same supplemental FieldPlan
// is reused, per-type, for every element of a stitched array) — the
// "batching hook" of SPEC_FULL.md. A group of size 1 degrades to an
// ordinary one-fetch-per-object dispatch.
func (c *Composer) dispatchBatch(ctx context.Context, sp *planner.SubschemaPlan, targets []stitchTarget) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.recoverPanic(sp.Target.Name, targets)

		if err := concurrency.Acquire(ctx); err != nil {
			for _, t := range targets {
				c.appendError(graphql.WrapError(err, t.path))
			}
			return
		}
		defer concurrency.Release(ctx)

		spanCtx, span := otelkit.StartSpan(ctx, "dispatch."+sp.Target.Name,
			attribute.String("subschema", sp.Target.Name),
			attribute.Int("batchSize", len(targets)))
		defer span.End()

		req := c.buildRequest(sp)
		if len(targets) == 1 {
			req.Variables["__stitchTarget"] = targets[0].obj
		} else {
			rows := make([]interface{}, len(targets))
			for i, t := range targets {
				rows[i] = t.obj
			}
			req.Variables["__stitchTargets"] = rows
		}

		result, err := sp.Target.Executor(spanCtx, req)
		if err != nil {
			otelkit.RecordError(span, err)
			agg := graphql.WrapError(err, targets[0].path)
			c.appendError(agg)
			for _, t := range targets {
				c.nullSlot(t.parent, t.parentKey)
			}
			return
		}

		if len(targets) == 1 {
			t := targets[0]
			result = c.registerIncremental(result)
			c.handleResult(spanCtx, t.parent, t.parentKey, t.obj, sp.StitchPlans, result, t.path)
			return
		}
		c.handleBatchResult(spanCtx, sp, targets, result)
	}()
}

func (c *Composer) handleBatchResult(ctx context.Context, sp *planner.SubschemaPlan, targets []stitchTarget, result subschema.Result) {
	c.mu.Lock()
	c.errs = append(c.errs, result.Errors...)
	c.mu.Unlock()

	if result.Data == nil {
		for _, t := range targets {
			c.nullSlot(t.parent, t.parentKey)
		}
		return
	}

	dataMap, ok := result.Data.(map[string]interface{})
	if !ok {
		c.reportInvariantViolation(fmt.Sprintf("batched subschema result from %s is not an object", sp.Target.Name), targets[0].path)
		return
	}
	rawItems, ok := dataMap["__batchResults"]
	if !ok {
		c.reportInvariantViolation(fmt.Sprintf("batched subschema result from %s missing __batchResults", sp.Target.Name), targets[0].path)
		return
	}
	items, ok := rawItems.([]interface{})
	if !ok || len(items) != len(targets) {
		c.reportInvariantViolation(fmt.Sprintf("batched subschema result from %s has wrong shape", sp.Target.Name), targets[0].path)
		return
	}

	for i, t := range targets {
		switch item := items[i].(type) {
		case map[string]interface{}:
			c.handleResult(ctx, t.parent, t.parentKey, t.obj, sp.StitchPlans, subschema.Result{Data: item}, t.path)
		case nil:
			c.handleResult(ctx, t.parent, t.parentKey, t.obj, sp.StitchPlans, subschema.Result{Data: nil}, t.path)
		default:
			c.reportInvariantViolation(fmt.Sprintf("batched subschema result item %d from %s is not an object", i, sp.Target.Name), t.path)
		}
	}
}

// handleResult is `_handleResult` (spec.md §4.3): append errors, apply the
// null-propagation gate, deep-merge data into target, then walk any stitch
// plans hanging off this fetch.
func (c *Composer) handleResult(ctx context.Context, parent interface{}, parentKey pathComponent, target map[string]interface{}, stitchPlans map[string]*planner.StitchPlan, result subschema.Result, path []interface{}) {
	c.mu.Lock()
	c.errs = append(c.errs, result.Errors...)

	if parent != nil {
		if getAt(parent, parentKey) == nil {
			c.mu.Unlock()
			return
		}
	} else if c.nulled {
		c.mu.Unlock()
		return
	}

	if result.Data == nil {
		if len(path) == 0 {
			c.nulled = true
		} else if parent != nil {
			setAt(parent, parentKey, nil)
		}
		c.mu.Unlock()
		return
	}

	dataMap, ok := result.Data.(map[string]interface{})
	if !ok {
		c.mu.Unlock()
		c.reportInvariantViolation(fmt.Sprintf("subschema result data is not an object at path %v", path), path)
		return
	}

	DeepMerge(target, dataMap)
	c.mu.Unlock()

	if len(stitchPlans) > 0 {
		c.walkStitchPlans(ctx, target, stitchPlans, path)
	}
}

// walkStitchPlans implements spec.md §4.3 step 5: for each stitch key, find
// the merged value, resolve its concrete type, and dispatch the matching
// per-type FieldPlan's follow-up fetches.
func (c *Composer) walkStitchPlans(ctx context.Context, mergedData map[string]interface{}, stitchPlans map[string]*planner.StitchPlan, path []interface{}) {
	for key, stitch := range stitchPlans {
		value, ok := mergedData[key]
		if !ok {
			continue
		}
		c.walkStitchValue(ctx, mergedData, key, value, stitch, appendPath(path, key))
	}
}

func (c *Composer) walkStitchValue(ctx context.Context, parent interface{}, parentKey pathComponent, value interface{}, stitch *planner.StitchPlan, path []interface{}) {
	switch v := value.(type) {
	case nil:
		return

	case []interface{}:
		groups := map[*planner.SubschemaPlan][]stitchTarget{}
		var order []*planner.SubschemaPlan

		for i, elem := range v {
			elemPath := appendPath(path, i)
			if elem == nil {
				continue
			}
			obj, ok := elem.(map[string]interface{})
			if !ok {
				c.reportInvariantViolation(fmt.Sprintf("stitched array element is not an object at path %v", elemPath), elemPath)
				continue
			}
			fieldPlan, ok := c.resolveStitchArm(obj, stitch, elemPath)
			if !ok {
				continue
			}
			for _, sp := range fieldPlan.SubschemaPlans {
				if _, seen := groups[sp]; !seen {
					order = append(order, sp)
				}
				groups[sp] = append(groups[sp], stitchTarget{parent: v, parentKey: i, obj: obj, path: elemPath})
			}
			if len(fieldPlan.StitchPlans) > 0 {
				c.walkStitchPlans(ctx, obj, fieldPlan.StitchPlans, elemPath)
			}
		}

		for _, sp := range order {
			c.dispatchBatch(ctx, sp, groups[sp])
		}

	case map[string]interface{}:
		fieldPlan, ok := c.resolveStitchArm(v, stitch, path)
		if !ok {
			return
		}
		for _, sp := range fieldPlan.SubschemaPlans {
			c.dispatchBatch(ctx, sp, []stitchTarget{{parent: parent, parentKey: parentKey, obj: v, path: path}})
		}
		if len(fieldPlan.StitchPlans) > 0 {
			c.walkStitchPlans(ctx, v, fieldPlan.StitchPlans, path)
		}

	default:
		c.reportInvariantViolation(fmt.Sprintf("cannot stitch into non-object value at path %v", path), path)
	}
}

// resolveStitchArm reads obj's stitching-typename marker, validates it
// against stitch, and returns the per-type FieldPlan to dispatch next.
// Per spec.md §7 #4, a missing marker or a type name outside the possible
// types recorded when the StitchPlan was built is a fatal invariant
// violation; a recognized type with no entry in PlansByType legitimately has
// nothing left to stitch (its supplemental plan was empty at plan time).
func (c *Composer) resolveStitchArm(obj map[string]interface{}, stitch *planner.StitchPlan, path []interface{}) (*planner.FieldPlan, bool) {
	raw, ok := obj[planner.StitchingTypenameAlias]
	if !ok {
		c.reportInvariantViolation(fmt.Sprintf("missing %s at path %v", planner.StitchingTypenameAlias, path), path)
		return nil, false
	}
	typeName, ok := raw.(string)
	if !ok {
		c.reportInvariantViolation(fmt.Sprintf("%s is not a string at path %v", planner.StitchingTypenameAlias, path), path)
		return nil, false
	}
	delete(obj, planner.StitchingTypenameAlias)

	if !stitch.PossibleTypes[typeName] {
		c.reportInvariantViolation(fmt.Sprintf("unknown runtime type %q at path %v", typeName, path), path)
		return nil, false
	}

	fieldPlan, ok := stitch.PlansByType[typeName]
	if !ok {
		return nil, false
	}
	return fieldPlan, true
}

func (c *Composer) nullSlot(parent interface{}, key pathComponent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if parent == nil {
		c.nulled = true
		return
	}
	setAt(parent, key, nil)
}

func (c *Composer) buildRequest(sp *planner.SubschemaPlan) subschema.Request {
	vars := make(map[string]interface{}, len(c.variables))
	for k, v := range c.variables {
		vars[k] = v
	}

	var opName string
	var opVars []*graphql.VariableDefinition
	var opKind graphql.OperationKind = graphql.Query
	if c.op != nil {
		opName = c.op.Name
		opVars = c.op.Variables
		opKind = c.op.Kind
	}

	return subschema.Request{
		Document: &graphql.Document{
			Operations: []*graphql.OperationDefinition{{
				Name:         opName,
				Kind:         opKind,
				Variables:    opVars,
				SelectionSet: &graphql.SelectionSet{Selections: sp.Fields},
			}},
		},
		Variables: vars,
	}
}

// registerIncremental implements spec.md §4.3 "Incremental results":
// normalizes an incremental executor result into a plain Result carrying its
// initial payload, registering the lazy subsequentResults sequence with this
// Composer's stream consolidator.
func (c *Composer) registerIncremental(result subschema.Result) subschema.Result {
	if result.InitialResult == nil {
		return result
	}

	c.mu.Lock()
	if result.InitialResult.HasNext {
		c.hasNext = true
	}
	if c.consolidator == nil {
		c.consolidator = stream.NewConsolidator()
	}
	consolidator := c.consolidator
	c.mu.Unlock()

	if result.SubsequentResults != nil {
		consolidator.AddSource(result.SubsequentResults)
	}

	return subschema.Result{Data: result.InitialResult.Data, Errors: result.InitialResult.Errors}
}

func (c *Composer) appendError(err *graphql.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *Composer) reportInvariantViolation(msg string, path []interface{}) {
	c.log.Error("stitching invariant violated", "message", msg, "path", path)
	c.log.Debug("stitching invariant violation path detail", "path", debug.Dump(path))
	c.appendError(&graphql.Error{Message: msg, Path: path, OriginalError: graphql.NewInvariantViolation("%s", msg)})
}

func (c *Composer) recoverPanic(subschemaName string, targets []stitchTarget) {
	r := recover()
	if r == nil {
		return
	}
	err := graphql.WrapError(fmt.Errorf("panic dispatching subschema %s: %v", subschemaName, r), nil)
	c.appendError(err)
	for _, t := range targets {
		c.nullSlot(t.parent, t.parentKey)
	}
}
