package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/strata/internal/config"
	"github.com/agenthands/strata/internal/core/dedupe"
	"github.com/agenthands/strata/internal/core/extraction"
	"github.com/agenthands/strata/internal/core/summary"
	"github.com/agenthands/strata/internal/core/temporal"
	"github.com/agenthands/strata/internal/driver"
	"github.com/agenthands/strata/internal/llm"
)

// memoryDriver keeps committed state in maps so reads observe prior writes,
// which is what the concurrency and retry tests exercise.
type memoryDriver struct {
	mu       sync.Mutex
	nodes    map[string]map[string]interface{}
	edges    []map[string]interface{}
	episodes []map[string]interface{}
	batches  [][]driver.Query

	// FailCommits fails that many entity-bearing batches before succeeding.
	FailCommits int
}

func newMemoryDriver() *memoryDriver {
	return &memoryDriver{nodes: make(map[string]map[string]interface{})}
}

func (m *memoryDriver) seedNode(params map[string]interface{}) {
	m.nodes[params["uuid"].(string)] = params
}

func (m *memoryDriver) seedEdge(params map[string]interface{}) {
	m.edges = append(m.edges, params)
}

func (m *memoryDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch query {
	case driver.GetRecentEpisodesQuery:
		return neo4j.EagerResult{}, nil
	case driver.GetGroupNodesQuery:
		keys := []string{"uuid", "name", "summary", "labels", "name_embedding", "created_at", "attributes"}
		var records []*neo4j.Record
		for _, n := range m.nodes {
			if n["group_id"] != params["group_id"] {
				continue
			}
			records = append(records, &neo4j.Record{Keys: keys, Values: []interface{}{
				n["uuid"], n["name"], n["summary"],
				toIfaceStrings(n["labels"]), toIfaceFloats(n["name_embedding"]),
				n["created_at"], n["attributes"],
			}})
		}
		return neo4j.EagerResult{Records: records}, nil
	case driver.GetEdgesByKeyQuery:
		keys := []string{"uuid", "name", "fact", "created_at", "expired_at", "valid_at", "invalid_at", "fact_embedding"}
		var records []*neo4j.Record
		for _, e := range m.edges {
			if e["source_uuid"] != params["source_uuid"] || e["target_uuid"] != params["target_uuid"] || e["name"] != params["name"] {
				continue
			}
			records = append(records, &neo4j.Record{Keys: keys, Values: []interface{}{
				e["uuid"], e["name"], e["fact"], e["created_at"],
				e["expired_at"], e["valid_at"], e["invalid_at"],
				toIfaceFloats(e["fact_embedding"]),
			}})
		}
		return neo4j.EagerResult{Records: records}, nil
	}
	return neo4j.EagerResult{}, nil
}

func (m *memoryDriver) ExecuteBatch(ctx context.Context, queries []driver.Query) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCommits > 0 && batchSavesEntities(queries) {
		m.FailCommits--
		return fmt.Errorf("transient write conflict")
	}

	m.batches = append(m.batches, queries)
	for _, q := range queries {
		switch q.Cypher {
		case driver.SaveEpisodicNodeQuery:
			m.episodes = append(m.episodes, q.Params)
		case driver.SaveEntityNodeQuery:
			m.nodes[q.Params["uuid"].(string)] = q.Params
		case driver.SaveEntityEdgeQuery:
			m.edges = append(m.edges, q.Params)
		case driver.InvalidateEdgeQuery:
			for _, e := range m.edges {
				if e["uuid"] == q.Params["uuid"] {
					e["invalid_at"] = q.Params["invalid_at"]
					e["expired_at"] = q.Params["expired_at"]
				}
			}
		case driver.AppendEdgeEpisodesQuery:
			for _, e := range m.edges {
				if e["uuid"] == q.Params["uuid"] {
					existing, _ := e["episodes"].([]string)
					e["episodes"] = append(existing, q.Params["episodes"].([]string)...)
				}
			}
		}
	}
	return nil
}

func (m *memoryDriver) BuildIndices(ctx context.Context) error { return nil }

func (m *memoryDriver) Close(ctx context.Context) error { return nil }

func (m *memoryDriver) edgeByUUID(uuid string) map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.edges {
		if e["uuid"] == uuid {
			return e
		}
	}
	return nil
}

func batchSavesEntities(queries []driver.Query) bool {
	for _, q := range queries {
		if q.Cypher == driver.SaveEntityNodeQuery {
			return true
		}
	}
	return false
}

func toIfaceStrings(v interface{}) interface{} {
	s, ok := v.([]string)
	if !ok {
		return v
	}
	out := make([]interface{}, len(s))
	for i, x := range s {
		out[i] = x
	}
	return out
}

func toIfaceFloats(v interface{}) interface{} {
	f, ok := v.([]float32)
	if !ok {
		return v
	}
	out := make([]interface{}, len(f))
	for i, x := range f {
		out[i] = float64(x)
	}
	return out
}

type mockLLM struct {
	mu            sync.Mutex
	Response      string
	ResponseQueue []string
	Err           error
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

type mockEmbedder struct {
	Vectors map[string][]float32
	Default []float32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := m.Vectors[text]; ok {
		return v, nil
	}
	if m.Default != nil {
		return m.Default, nil
	}
	return []float32{0, 1}, nil
}

func newTestPipeline(d driver.GraphDriver, llmClient llm.LLMClient, embedder llm.EmbedderClient, relations config.TemporalConfig) *Pipeline {
	cfg := config.Default()
	return NewPipeline(
		d, llmClient, embedder,
		extraction.NewExtractor(llmClient, cfg.Extraction),
		dedupe.NewResolver(llmClient, cfg.Deduplication, cfg.Dedupe),
		temporal.NewResolver(llmClient, cfg.Temporal.Contradiction, relations.SingleValuedRelations),
		summary.NewSummarizer(llmClient, cfg.Summary),
		config.ConcurrencyConfig{ExtractionBudget: 4, BulkIngest: 1},
		relations.ReflexiveRelations,
	)
}
