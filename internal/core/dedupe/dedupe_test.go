package dedupe

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/strata/internal/config"
	"github.com/agenthands/strata/internal/core/model"
)

type mockLLM struct {
	Response      string
	ResponseQueue []string
	Err           error
	Prompts       []string
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.ResponseQueue) > 0 {
		resp := m.ResponseQueue[0]
		m.ResponseQueue = m.ResponseQueue[1:]
		return resp, nil
	}
	return m.Response, nil
}

func testCfg() config.DedupeConfig {
	return config.DedupeConfig{
		MergeThreshold:  0.9,
		ReviewThreshold: 0.6,
		NameWeight:      0.5,
		EmbeddingWeight: 0.5,
		MaxCandidates:   10,
	}
}

func TestResolveEntity_AutoMerge(t *testing.T) {
	r := NewResolver(nil, config.DeduplicationPrompts{}, testCfg())

	existing := []model.EntityNode{
		{UUID: "n1", Name: "Acme Corp", NameEmbedding: []float32{1, 0}},
	}
	candidate := model.ExtractedEntity{Name: "ACME Corp."}

	decision, err := r.ResolveEntity(context.Background(), candidate, []float32{1, 0}, existing)
	require.NoError(t, err)
	assert.Equal(t, "n1", decision.ExistingUUID)
}

func TestResolveEntity_NoCandidates(t *testing.T) {
	r := NewResolver(nil, config.DeduplicationPrompts{}, testCfg())

	decision, err := r.ResolveEntity(context.Background(), model.ExtractedEntity{Name: "Solo"}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, decision.ExistingUUID)
}

func TestResolveEntity_BoundaryFavorsNoMerge(t *testing.T) {
	// Identical names with no embeddings score exactly 1.0 under name-only
	// weighting; drop the merge threshold to that score and verify the
	// strict comparison keeps the tie out of the auto-merge band.
	cfg := testCfg()
	cfg.MergeThreshold = 1.0
	cfg.ReviewThreshold = 1.0
	r := NewResolver(nil, config.DeduplicationPrompts{}, cfg)

	existing := []model.EntityNode{{UUID: "n1", Name: "Acme"}}
	decision, err := r.ResolveEntity(context.Background(), model.ExtractedEntity{Name: "Acme"}, nil, existing)
	require.NoError(t, err)
	assert.Empty(t, decision.ExistingUUID, "a score equal to the threshold must not merge")
	assert.Equal(t, 1.0, decision.Score)
}

func TestResolveEntity_ReviewBandAsksLLM(t *testing.T) {
	cfg := testCfg()
	cfg.ReviewThreshold = 0.5
	llm := &mockLLM{Response: `{"is_duplicate": true, "duplicate_of": "n1"}`}
	r := NewResolver(llm, config.DeduplicationPrompts{}, cfg)

	existing := []model.EntityNode{{UUID: "n1", Name: "Jonathon Smith"}}
	candidate := model.ExtractedEntity{Name: "Jonathan Smith"}

	decision, err := r.ResolveEntity(context.Background(), candidate, nil, existing)
	require.NoError(t, err)
	assert.Equal(t, "n1", decision.ExistingUUID)
	require.Len(t, llm.Prompts, 1)
	assert.Contains(t, llm.Prompts[0], "Jonathan Smith")
}

func TestResolveEntity_LLMFailureKeepsSeparate(t *testing.T) {
	cfg := testCfg()
	cfg.ReviewThreshold = 0.5
	llm := &mockLLM{Err: fmt.Errorf("provider down")}
	r := NewResolver(llm, config.DeduplicationPrompts{}, cfg)

	existing := []model.EntityNode{{UUID: "n1", Name: "Jonathon Smith"}}
	decision, err := r.ResolveEntity(context.Background(), model.ExtractedEntity{Name: "Jonathan Smith"}, nil, existing)
	require.NoError(t, err)
	assert.Empty(t, decision.ExistingUUID)
}

func TestResolveEntity_UnparseableVerdictKeepsSeparate(t *testing.T) {
	cfg := testCfg()
	cfg.ReviewThreshold = 0.5
	llm := &mockLLM{Response: "I think they might be the same person?"}
	r := NewResolver(llm, config.DeduplicationPrompts{}, cfg)

	existing := []model.EntityNode{{UUID: "n1", Name: "Jonathon Smith"}}
	decision, err := r.ResolveEntity(context.Background(), model.ExtractedEntity{Name: "Jonathan Smith"}, nil, existing)
	require.NoError(t, err)
	assert.Empty(t, decision.ExistingUUID)
}

func TestResolveEntity_VerdictOutsideCandidateSetIgnored(t *testing.T) {
	cfg := testCfg()
	cfg.ReviewThreshold = 0.5
	llm := &mockLLM{Response: `{"is_duplicate": true, "duplicate_of": "hallucinated"}`}
	r := NewResolver(llm, config.DeduplicationPrompts{}, cfg)

	existing := []model.EntityNode{{UUID: "n1", Name: "Jonathon Smith"}}
	decision, err := r.ResolveEntity(context.Background(), model.ExtractedEntity{Name: "Jonathan Smith"}, nil, existing)
	require.NoError(t, err)
	assert.Empty(t, decision.ExistingUUID)
}

func TestResolveEntity_TypeFilter(t *testing.T) {
	r := NewResolver(nil, config.DeduplicationPrompts{}, testCfg())

	existing := []model.EntityNode{
		{UUID: "n1", Name: "Mercury", Labels: []string{"Entity", "Planet"}},
	}
	candidate := model.ExtractedEntity{Name: "Mercury", EntityType: "Element"}

	decision, err := r.ResolveEntity(context.Background(), candidate, nil, existing)
	require.NoError(t, err)
	assert.Empty(t, decision.ExistingUUID, "type mismatch must not merge on name alone")
}

func TestResolveEntity_Idempotent(t *testing.T) {
	r := NewResolver(nil, config.DeduplicationPrompts{}, testCfg())
	existing := []model.EntityNode{
		{UUID: "n1", Name: "Acme Corp", NameEmbedding: []float32{1, 0}},
		{UUID: "n2", Name: "Acme Labs", NameEmbedding: []float32{0.9, 0.1}},
	}
	candidate := model.ExtractedEntity{Name: "Acme Corp"}

	first, err := r.ResolveEntity(context.Background(), candidate, []float32{1, 0}, existing)
	require.NoError(t, err)
	second, err := r.ResolveEntity(context.Background(), candidate, []float32{1, 0}, existing)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "n1", first.ExistingUUID)
}

func TestResolveEdge_Duplicate(t *testing.T) {
	r := NewResolver(nil, config.DeduplicationPrompts{}, testCfg())

	existing := []model.EntityEdge{
		{UUID: "e1", Fact: "Alice works at Acme", FactEmbedding: []float32{1, 0}},
	}
	candidate := &model.EntityEdge{Fact: "Alice works at Acme Corp", FactEmbedding: []float32{0.99, 0.01}}

	uuid, err := r.ResolveEdge(context.Background(), candidate, existing)
	require.NoError(t, err)
	assert.Equal(t, "e1", uuid)
}

func TestResolveEdge_ReviewBandLLM(t *testing.T) {
	llm := &mockLLM{Response: `{"is_duplicate": true}`}
	cfg := testCfg()
	cfg.MergeThreshold = 0.95
	r := NewResolver(llm, config.DeduplicationPrompts{}, cfg)

	existing := []model.EntityEdge{
		{UUID: "e1", Fact: "Alice joined Acme as an engineer"},
	}
	candidate := &model.EntityEdge{Fact: "Alice joined Acme engineering"}

	uuid, err := r.ResolveEdge(context.Background(), candidate, existing)
	require.NoError(t, err)
	assert.Equal(t, "e1", uuid)
}

func TestResolveEdge_NewFact(t *testing.T) {
	r := NewResolver(nil, config.DeduplicationPrompts{}, testCfg())

	existing := []model.EntityEdge{
		{UUID: "e1", Fact: "Alice works at Acme", FactEmbedding: []float32{1, 0}},
	}
	candidate := &model.EntityEdge{Fact: "Alice left Acme", FactEmbedding: []float32{0, 1}}

	uuid, err := r.ResolveEdge(context.Background(), candidate, existing)
	require.NoError(t, err)
	assert.Empty(t, uuid)
}
