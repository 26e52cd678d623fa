// Package cache implements the optional distributed FieldPlan memo cache
// named in SPEC_FULL.md's domain stack, backed by redis/go-redis/v9. Plans
// hold pointers to in-process *subschema.Subschema values, which cannot be
// meaningfully shared across processes, so entries are serialized to a
// registry-relative DTO (subschemas referenced by name) and rehydrated
// against the caller's own subschema set on read.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stitchgql/federate/graphql"
	"github.com/stitchgql/federate/planner"
	"github.com/stitchgql/federate/subschema"
)

// PlanCache stores and retrieves FieldPlans keyed by an opaque cache key
// computed by the caller (the gateway uses the operation name plus a hash of
// its kind and directive-resolved selection set). A nil *PlanCache is valid and behaves as an always-miss cache, so
// callers can wire it unconditionally and skip the nil check at call sites.
type PlanCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a PlanCache against a redis address. addr == "" disables
// caching: New returns nil, and every method on a nil *PlanCache degrades to
// an always-miss/no-op, matching SPEC_FULL.md's "optional" framing.
func New(addr string, ttl time.Duration) *PlanCache {
	if addr == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PlanCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// Get looks up key and, on a hit, rehydrates the stored plan against subs
// (looked up by name). A miss, a decode error, or a reference to a
// subschema name absent from subs are all reported as ok == false so the
// caller falls back to re-planning rather than failing the request.
func (c *PlanCache) Get(ctx context.Context, key string, subs map[string]*subschema.Subschema) (*planner.FieldPlan, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var dto fieldPlanDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, false
	}
	plan, ok := dto.hydrate(subs)
	if !ok {
		return nil, false
	}
	return plan, true
}

// Set stores plan under key with the cache's configured TTL.
func (c *PlanCache) Set(ctx context.Context, key string, plan *planner.FieldPlan) error {
	if c == nil {
		return nil
	}
	dto := dehydrateFieldPlan(plan)
	raw, err := json.Marshal(dto)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Close releases the underlying redis client.
func (c *PlanCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

type fieldPlanDTO struct {
	SubschemaPlans []subschemaPlanDTO       `json:"subschemaPlans,omitempty"`
	StitchPlans    map[string]stitchPlanDTO `json:"stitchPlans,omitempty"`
}

type subschemaPlanDTO struct {
	Target      string                   `json:"target"`
	Originating string                   `json:"originating,omitempty"`
	Fields      []selectionDTO           `json:"fields"`
	StitchPlans map[string]stitchPlanDTO `json:"stitchPlans,omitempty"`
}

type stitchPlanDTO struct {
	PlansByType   map[string]fieldPlanDTO `json:"plansByType"`
	PossibleTypes []string                `json:"possibleTypes,omitempty"`
}

type selectionDTO struct {
	Alias    string                 `json:"alias,omitempty"`
	Name     string                 `json:"name"`
	Args     map[string]interface{} `json:"args,omitempty"`
	Children []selectionDTO         `json:"children,omitempty"`
}

func dehydrateFieldPlan(p *planner.FieldPlan) fieldPlanDTO {
	if p == nil {
		return fieldPlanDTO{}
	}
	dto := fieldPlanDTO{}
	for _, sp := range p.SubschemaPlans {
		dto.SubschemaPlans = append(dto.SubschemaPlans, dehydrateSubschemaPlan(sp))
	}
	if len(p.StitchPlans) > 0 {
		dto.StitchPlans = make(map[string]stitchPlanDTO, len(p.StitchPlans))
		for k, v := range p.StitchPlans {
			dto.StitchPlans[k] = dehydrateStitchPlan(v)
		}
	}
	return dto
}

func dehydrateSubschemaPlan(sp *planner.SubschemaPlan) subschemaPlanDTO {
	dto := subschemaPlanDTO{Target: sp.Target.Name}
	if sp.Originating != nil {
		dto.Originating = sp.Originating.Name
	}
	for _, f := range sp.Fields {
		dto.Fields = append(dto.Fields, dehydrateSelection(f))
	}
	if len(sp.StitchPlans) > 0 {
		dto.StitchPlans = make(map[string]stitchPlanDTO, len(sp.StitchPlans))
		for k, v := range sp.StitchPlans {
			dto.StitchPlans[k] = dehydrateStitchPlan(v)
		}
	}
	return dto
}

func dehydrateStitchPlan(sp *planner.StitchPlan) stitchPlanDTO {
	dto := stitchPlanDTO{PlansByType: make(map[string]fieldPlanDTO, len(sp.PlansByType))}
	for typeName, fp := range sp.PlansByType {
		dto.PlansByType[typeName] = dehydrateFieldPlan(fp)
	}
	for typeName := range sp.PossibleTypes {
		dto.PossibleTypes = append(dto.PossibleTypes, typeName)
	}
	return dto
}

func dehydrateSelection(s *graphql.Selection) selectionDTO {
	dto := selectionDTO{Alias: s.Alias, Name: s.Name, Args: s.Args}
	if s.SelectionSet != nil {
		for _, child := range s.SelectionSet.Selections {
			dto.Children = append(dto.Children, dehydrateSelection(child))
		}
	}
	return dto
}

func (dto fieldPlanDTO) hydrate(subs map[string]*subschema.Subschema) (*planner.FieldPlan, bool) {
	plan := &planner.FieldPlan{StitchPlans: map[string]*planner.StitchPlan{}}
	for _, spDTO := range dto.SubschemaPlans {
		sp, ok := spDTO.hydrate(subs)
		if !ok {
			return nil, false
		}
		plan.SubschemaPlans = append(plan.SubschemaPlans, sp)
	}
	for key, stDTO := range dto.StitchPlans {
		st, ok := stDTO.hydrate(subs)
		if !ok {
			return nil, false
		}
		plan.StitchPlans[key] = st
	}
	return plan, true
}

func (dto subschemaPlanDTO) hydrate(subs map[string]*subschema.Subschema) (*planner.SubschemaPlan, bool) {
	target, ok := subs[dto.Target]
	if !ok {
		return nil, false
	}
	var originating *subschema.Subschema
	if dto.Originating != "" {
		originating, ok = subs[dto.Originating]
		if !ok {
			return nil, false
		}
	}
	sp := &planner.SubschemaPlan{
		Target:      target,
		Originating: originating,
		StitchPlans: map[string]*planner.StitchPlan{},
	}
	for _, fDTO := range dto.Fields {
		sp.Fields = append(sp.Fields, fDTO.hydrate())
	}
	for key, stDTO := range dto.StitchPlans {
		st, ok := stDTO.hydrate(subs)
		if !ok {
			return nil, false
		}
		sp.StitchPlans[key] = st
	}
	return sp, true
}

func (dto stitchPlanDTO) hydrate(subs map[string]*subschema.Subschema) (*planner.StitchPlan, bool) {
	st := &planner.StitchPlan{
		PlansByType:   make(map[string]*planner.FieldPlan, len(dto.PlansByType)),
		PossibleTypes: make(map[string]bool, len(dto.PossibleTypes)),
	}
	for typeName, fpDTO := range dto.PlansByType {
		fp, ok := fpDTO.hydrate(subs)
		if !ok {
			return nil, false
		}
		st.PlansByType[typeName] = fp
	}
	for _, typeName := range dto.PossibleTypes {
		st.PossibleTypes[typeName] = true
	}
	return st, true
}

func (dto selectionDTO) hydrate() *graphql.Selection {
	sel := &graphql.Selection{Alias: dto.Alias, Name: dto.Name, Args: dto.Args}
	if len(dto.Children) > 0 {
		sel.SelectionSet = &graphql.SelectionSet{}
		for _, child := range dto.Children {
			sel.SelectionSet.Selections = append(sel.SelectionSet.Selections, child.hydrate())
		}
	}
	return sel
}
