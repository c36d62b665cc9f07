package dedupe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/strata/internal/config"
	"github.com/agenthands/strata/internal/core/common"
	"github.com/agenthands/strata/internal/core/model"
	"github.com/agenthands/strata/internal/llm"
	"github.com/agenthands/strata/internal/logger"
)

const defaultNodesPrompt = `You decide whether a newly mentioned entity is the same real-world object as one of the known entities.

<NEW ENTITY>
Name: %s
Type: %s
Context: %s
</NEW ENTITY>

<KNOWN ENTITIES>
%s
</KNOWN ENTITIES>

Return a JSON object:
{"is_duplicate": true/false, "duplicate_of": "<uuid of the known entity, or empty>", "reason": "..."}
Only mark a duplicate when you are confident both refer to the same object.`

const defaultEdgesPrompt = `You decide whether two statements express the same fact.

Statement A: %s
Statement B: %s

Return a JSON object: {"is_duplicate": true/false}
Two statements are the same fact only when they assert the same relationship
with the same meaning, not merely related information.`

// Decision is the outcome of resolving one candidate against the graph.
// A non-empty ExistingUUID means merge; otherwise create new.
type Decision struct {
	ExistingUUID string
	Score        float64
}

// Resolver implements the three-band deduplication policy: auto-merge above
// the merge threshold, language-level disambiguation in the review band,
// create-new below. Ties at a boundary favor no merge.
type Resolver struct {
	LLM     llm.LLMClient // nil selects the deterministic threshold-only fallback
	Prompts config.DeduplicationPrompts
	Cfg     config.DedupeConfig
}

func NewResolver(llmClient llm.LLMClient, prompts config.DeduplicationPrompts, cfg config.DedupeConfig) *Resolver {
	return &Resolver{LLM: llmClient, Prompts: prompts, Cfg: cfg}
}

type scoredCandidate struct {
	node  model.EntityNode
	score float64
}

// ResolveEntity scores the candidate against existing nodes by blended
// name-string and embedding similarity and applies the band policy.
func (r *Resolver) ResolveEntity(ctx context.Context, candidate model.ExtractedEntity, candidateEmbedding []float32, existing []model.EntityNode) (Decision, error) {
	scored := r.scoreCandidates(candidate, candidateEmbedding, existing)
	if len(scored) == 0 {
		return Decision{}, nil
	}

	top := scored[0]
	switch {
	case top.score > r.Cfg.MergeThreshold:
		return Decision{ExistingUUID: top.node.UUID, Score: top.score}, nil
	case top.score > r.Cfg.ReviewThreshold:
		return r.disambiguate(ctx, candidate, scored)
	default:
		return Decision{Score: top.score}, nil
	}
}

func (r *Resolver) scoreCandidates(candidate model.ExtractedEntity, candidateEmbedding []float32, existing []model.EntityNode) []scoredCandidate {
	var scored []scoredCandidate
	for _, node := range existing {
		if candidate.EntityType != "" && !nodeHasLabel(node, candidate.EntityType) {
			continue
		}
		nameScore := common.NameSimilarity(candidate.Name, node.Name)

		wName, wVec := r.Cfg.NameWeight, r.Cfg.EmbeddingWeight
		var vecScore float64
		if len(candidateEmbedding) > 0 && len(node.NameEmbedding) > 0 {
			vecScore = common.CosineSimilarity(candidateEmbedding, node.NameEmbedding)
		} else {
			// No embedding on one side: fall back to name-only scoring.
			wName, wVec = 1, 0
		}

		score := wName*nameScore + wVec*vecScore
		scored = append(scored, scoredCandidate{node: node, score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].node.UUID < scored[j].node.UUID
	})

	if r.Cfg.MaxCandidates > 0 && len(scored) > r.Cfg.MaxCandidates {
		scored = scored[:r.Cfg.MaxCandidates]
	}
	return scored
}

// disambiguate defers the ambiguous band to the language capability. Any
// failure or a nil client resolves to no merge.
func (r *Resolver) disambiguate(ctx context.Context, candidate model.ExtractedEntity, scored []scoredCandidate) (Decision, error) {
	if r.LLM == nil {
		return Decision{Score: scored[0].score}, nil
	}

	var known strings.Builder
	valid := make(map[string]float64, len(scored))
	for _, sc := range scored {
		fmt.Fprintf(&known, "- UUID: %s, Name: %s, Summary: %s\n", sc.node.UUID, sc.node.Name, sc.node.Summary)
		valid[sc.node.UUID] = sc.score
	}

	tmpl := r.Prompts.Nodes
	if tmpl == "" {
		tmpl = defaultNodesPrompt
	}
	prompt := fmt.Sprintf(tmpl, candidate.Name, candidate.EntityType, attributeContext(candidate), known.String())

	response, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		logger.Get().Warn("disambiguation call failed, keeping entities separate",
			zap.String("candidate", candidate.Name), zap.Error(err))
		return Decision{Score: scored[0].score}, nil
	}

	verdict, err := common.ParseJSON[model.DisambiguationVerdict](response)
	if err != nil {
		logger.Get().Warn("unparseable disambiguation verdict, keeping entities separate",
			zap.String("candidate", candidate.Name), zap.Error(err))
		return Decision{Score: scored[0].score}, nil
	}

	if verdict.IsDuplicate {
		if score, ok := valid[verdict.DuplicateOf]; ok {
			return Decision{ExistingUUID: verdict.DuplicateOf, Score: score}, nil
		}
	}
	return Decision{Score: scored[0].score}, nil
}

// ResolveEdge reports the UUID of an existing edge on the same
// (source, target, relation) key that states the same fact, or "" when the
// candidate is genuinely new. Duplicate edges gain provenance, not records.
func (r *Resolver) ResolveEdge(ctx context.Context, candidate *model.EntityEdge, existing []model.EntityEdge) (string, error) {
	var best *model.EntityEdge
	bestScore := 0.0
	for i := range existing {
		e := &existing[i]
		var score float64
		if len(candidate.FactEmbedding) > 0 && len(e.FactEmbedding) > 0 {
			score = common.CosineSimilarity(candidate.FactEmbedding, e.FactEmbedding)
		} else {
			score = common.TokenOverlap(candidate.Fact, e.Fact)
		}
		if score > bestScore || (score == bestScore && best != nil && e.UUID < best.UUID) {
			best = e
			bestScore = score
		}
	}
	if best == nil {
		return "", nil
	}

	switch {
	case bestScore > r.Cfg.MergeThreshold:
		return best.UUID, nil
	case bestScore > r.Cfg.ReviewThreshold && r.LLM != nil:
		tmpl := r.Prompts.Edges
		if tmpl == "" {
			tmpl = defaultEdgesPrompt
		}
		prompt := fmt.Sprintf(tmpl, candidate.Fact, best.Fact)
		response, err := r.LLM.Generate(ctx, prompt)
		if err != nil {
			return "", nil
		}
		verdict, err := common.ParseJSON[model.DisambiguationVerdict](response)
		if err != nil || !verdict.IsDuplicate {
			return "", nil
		}
		return best.UUID, nil
	default:
		return "", nil
	}
}

func nodeHasLabel(node model.EntityNode, label string) bool {
	for _, l := range node.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

func attributeContext(candidate model.ExtractedEntity) string {
	if len(candidate.Attributes) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(candidate.Attributes))
	for k, v := range candidate.Attributes {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
