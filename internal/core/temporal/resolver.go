package temporal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/strata/internal/core/common"
	"github.com/agenthands/strata/internal/core/model"
	"github.com/agenthands/strata/internal/llm"
	"github.com/agenthands/strata/internal/logger"
)

const defaultContradictionPrompt = `Does the New Fact contradict any of the Existing Facts?
Be conservative. Only identify contradictions that represent a change in state
or a logical impossibility (e.g. "lives in Seattle" vs "moved to SF"), not
facts that can be true at the same time.

New Fact: %s

Existing Facts:
%s

Return a JSON object with the UUIDs of the EXISTING facts contradicted by the
new fact. Example: {"contradicted_edge_uuids": ["uuid-1"]}
If none, return an empty list.`

// Invalidation closes an edge's validity interval. The record stays in the
// graph; only invalid_at and expired_at change.
type Invalidation struct {
	EdgeUUID  string
	InvalidAt time.Time
	ExpiredAt time.Time
}

// Resolver decides which currently-valid edges a new fact invalidates.
// Statically single-valued relation types short-circuit; everything else is a
// language-level judgment that defaults to "no invalidation" on uncertainty.
type Resolver struct {
	LLM          llm.LLMClient // nil restricts resolution to the static rule
	Prompt       string
	singleValued map[string]bool
}

func NewResolver(llmClient llm.LLMClient, prompt string, singleValuedRelations []string) *Resolver {
	sv := make(map[string]bool, len(singleValuedRelations))
	for _, rel := range singleValuedRelations {
		sv[strings.ToUpper(rel)] = true
	}
	return &Resolver{LLM: llmClient, Prompt: prompt, singleValued: sv}
}

func (r *Resolver) IsSingleValued(relation string) bool {
	return r.singleValued[strings.ToUpper(relation)]
}

// Resolve returns the invalidations the new edge causes among existing edges
// on the same relationship slot. When the new fact is itself older than a
// competing fact, Resolve closes the new edge's interval instead by setting
// newEdge.InvalidAt; edges already invalidated by a later fact are never
// reopened.
func (r *Resolver) Resolve(ctx context.Context, newEdge *model.EntityEdge, existing []model.EntityEdge, now time.Time) ([]Invalidation, error) {
	var current []model.EntityEdge
	for _, e := range existing {
		if e.UUID == newEdge.UUID {
			continue
		}
		if e.IsCurrentlyValid(now) {
			current = append(current, e)
		}
	}
	if len(current) == 0 {
		return nil, nil
	}

	contradicted, err := r.contradictedBy(ctx, newEdge, current)
	if err != nil {
		// Uncertain evidence never invalidates.
		logger.Get().Warn("contradiction judgment failed, keeping existing facts valid",
			zap.String("edge", newEdge.UUID), zap.Error(err))
		return nil, nil
	}

	var invalidations []Invalidation
	for _, old := range contradicted {
		if supersedes(old, *newEdge) {
			// The new fact is the older of the two: it enters the graph with
			// its interval already closed by the competing fact.
			boundary := invalidationBoundary(old)
			newEdge.InvalidAt = &boundary
			continue
		}
		invalidations = append(invalidations, Invalidation{
			EdgeUUID:  old.UUID,
			InvalidAt: invalidationBoundary(*newEdge),
			ExpiredAt: now,
		})
	}
	return invalidations, nil
}

// contradictedBy selects the existing edges the new fact contradicts.
func (r *Resolver) contradictedBy(ctx context.Context, newEdge *model.EntityEdge, current []model.EntityEdge) ([]model.EntityEdge, error) {
	if r.IsSingleValued(newEdge.Name) {
		return current, nil
	}
	if r.LLM == nil {
		return nil, nil
	}

	var facts strings.Builder
	byUUID := make(map[string]model.EntityEdge, len(current))
	for _, e := range current {
		fmt.Fprintf(&facts, "- UUID: %s, Fact: %s\n", e.UUID, e.Fact)
		byUUID[e.UUID] = e
	}

	tmpl := r.Prompt
	if tmpl == "" {
		tmpl = defaultContradictionPrompt
	}
	prompt := fmt.Sprintf(tmpl, newEdge.Fact, facts.String())

	response, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrContradictionJudgment, err)
	}
	result, err := common.ParseJSON[model.ContradictionResult](response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrContradictionJudgment, err)
	}

	var contradicted []model.EntityEdge
	for _, uuid := range result.ContradictedEdgeUUIDs {
		if e, ok := byUUID[uuid]; ok {
			contradicted = append(contradicted, e)
		}
	}
	return contradicted, nil
}

// supersedes reports whether old is the later of two competing facts, in
// which case old stays valid and the newcomer is closed instead. Ordering
// follows valid_at chronology with created_at as tie-break when valid_at is
// absent on both sides.
func supersedes(old, incoming model.EntityEdge) bool {
	switch {
	case old.ValidAt != nil && incoming.ValidAt != nil:
		return incoming.ValidAt.Before(*old.ValidAt)
	case old.ValidAt == nil && incoming.ValidAt == nil:
		return incoming.CreatedAt.Before(old.CreatedAt)
	default:
		// Only one side carries real-world evidence; the append order is the
		// best remaining signal, and the new record is by definition later.
		return false
	}
}

// invalidationBoundary is the instant a superseding fact closes the loser's
// interval: the winner's valid_at when known, else its append time.
func invalidationBoundary(winner model.EntityEdge) time.Time {
	if winner.ValidAt != nil {
		return *winner.ValidAt
	}
	return winner.CreatedAt
}
