package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/agenthands/strata/internal/config"
	"github.com/agenthands/strata/internal/driver"
)

func testDefaults() appconfig.SearchConfig {
	return appconfig.SearchConfig{
		RankConstant:    60,
		MMRLambda:       0.5,
		BFSMaxDepth:     3,
		BFSMaxFrontier:  1000,
		SignalTimeoutMS: 5000,
		CandidateLimit:  50,
	}
}

var nodeEmbeddingKeys = []string{"uuid", "name", "summary", "name_embedding"}

func nodeEmbeddingRecord(uuid, name string, vec []interface{}) *neo4j.Record {
	return record(nodeEmbeddingKeys, uuid, name, "summary of "+name, vec)
}

func TestSearch_FusesSemanticAndLexical(t *testing.T) {
	d := &mockDriver{Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
		switch query {
		case driver.NodeEmbeddingsQuery:
			return neo4j.EagerResult{Records: []*neo4j.Record{
				nodeEmbeddingRecord("n1", "Acme Corp", []interface{}{1.0, 0.0}),
				nodeEmbeddingRecord("n2", "Globex", []interface{}{0.0, 1.0}),
			}}, nil
		case driver.NodeFulltextQuery:
			return neo4j.EagerResult{Records: []*neo4j.Record{
				record([]string{"uuid", "name", "summary"}, "n1", "Acme Corp", "makes widgets"),
			}}, nil
		}
		return neo4j.EagerResult{}, nil
	}}
	e := NewEngine(d, &mockEmbedder{Vector: []float32{1, 0}}, nil, testDefaults())

	results, err := e.Search(context.Background(), "g1", "acme widgets", Config{
		Scopes:  []Scope{ScopeNodes},
		Methods: []Method{CosineSimilarity, BM25},
	})
	require.NoError(t, err)
	require.NotEmpty(t, results.Items)

	// n1 ranks first: top of the semantic list and the only lexical hit.
	assert.Equal(t, "n1", results.Items[0].UUID)
	assert.Contains(t, results.Items[0].Signals, "nodes:cosine_similarity")
	assert.Contains(t, results.Items[0].Signals, "nodes:bm25")
	assert.ElementsMatch(t, []string{"nodes:cosine_similarity", "nodes:bm25"}, results.ContributingSignals)
}

func TestSearch_EmptyQuery(t *testing.T) {
	d := &mockDriver{}
	e := NewEngine(d, &mockEmbedder{}, nil, testDefaults())

	results, err := e.Search(context.Background(), "g1", "   ", Config{})
	require.NoError(t, err)
	assert.Empty(t, results.Items)
	assert.Empty(t, d.Queries)
}

func TestSearch_FailedSignalDropped(t *testing.T) {
	d := &mockDriver{Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
		if query == driver.NodeEmbeddingsQuery {
			return neo4j.EagerResult{}, fmt.Errorf("vector store unavailable")
		}
		return neo4j.EagerResult{Records: []*neo4j.Record{
			record([]string{"uuid", "name", "summary"}, "n1", "Acme Corp", "makes widgets"),
		}}, nil
	}}
	e := NewEngine(d, &mockEmbedder{Vector: []float32{1, 0}}, nil, testDefaults())

	results, err := e.Search(context.Background(), "g1", "acme widgets", Config{
		Scopes:  []Scope{ScopeNodes},
		Methods: []Method{CosineSimilarity, BM25},
	})
	require.NoError(t, err, "one failed signal must not fail the query")
	require.NotEmpty(t, results.Items)
	assert.Equal(t, []string{"nodes:bm25"}, results.ContributingSignals)
}

func TestSearch_EmbeddingFailureDropsSemanticSignal(t *testing.T) {
	d := &mockDriver{Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
		return neo4j.EagerResult{Records: []*neo4j.Record{
			record([]string{"uuid", "name", "summary"}, "n1", "Acme Corp", "makes widgets"),
		}}, nil
	}}
	e := NewEngine(d, &mockEmbedder{Err: fmt.Errorf("embedder down")}, nil, testDefaults())

	results, err := e.Search(context.Background(), "g1", "acme widgets", Config{
		Scopes:  []Scope{ScopeNodes},
		Methods: []Method{CosineSimilarity, BM25},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"nodes:bm25"}, results.ContributingSignals)
}

func TestSearch_BFSSeedsFromTopHits(t *testing.T) {
	var bfsFrontiers [][]string
	d := &mockDriver{Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
		switch query {
		case driver.NodeFulltextQuery:
			return neo4j.EagerResult{Records: []*neo4j.Record{
				record([]string{"uuid", "name", "summary"}, "n1", "Acme Corp", "makes widgets"),
			}}, nil
		case driver.NeighborsQuery:
			frontier := params["frontier"].([]string)
			bfsFrontiers = append(bfsFrontiers, frontier)
			if len(bfsFrontiers) == 1 {
				return neo4j.EagerResult{Records: []*neo4j.Record{
					neighborRecord("n1", "n9", "e-19", ""),
				}}, nil
			}
			return neo4j.EagerResult{}, nil
		}
		return neo4j.EagerResult{}, nil
	}}
	e := NewEngine(d, nil, nil, testDefaults())

	results, err := e.Search(context.Background(), "g1", "acme widgets", Config{
		Scopes:  []Scope{ScopeNodes},
		Methods: []Method{BM25, BreadthFirstSearch},
	})
	require.NoError(t, err)

	require.NotEmpty(t, bfsFrontiers)
	assert.Equal(t, []string{"n1"}, bfsFrontiers[0], "traversal seeds from the lexical hit")
	assert.Contains(t, results.ContributingSignals, "nodes:bfs")

	var uuids []string
	for _, item := range results.Items {
		uuids = append(uuids, item.UUID)
	}
	assert.Contains(t, uuids, "n9")
}

func TestSearch_ExplicitBFSOrigins(t *testing.T) {
	var frontiers [][]string
	d := &mockDriver{Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
		if query == driver.NeighborsQuery {
			frontiers = append(frontiers, params["frontier"].([]string))
		}
		return neo4j.EagerResult{}, nil
	}}
	e := NewEngine(d, nil, nil, testDefaults())

	_, err := e.Search(context.Background(), "g1", "anything", Config{
		Scopes:     []Scope{ScopeNodes},
		Methods:    []Method{BreadthFirstSearch},
		BFSOrigins: []string{"seed-1", "seed-2"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, frontiers)
	assert.Equal(t, []string{"seed-1", "seed-2"}, frontiers[0])
}

func TestSearch_TruncationSurfaces(t *testing.T) {
	d := &mockDriver{Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
		if query != driver.NeighborsQuery {
			return neo4j.EagerResult{}, nil
		}
		frontier := params["frontier"].([]string)
		var records []*neo4j.Record
		for i := 0; i < 5; i++ {
			records = append(records, neighborRecord(frontier[0], fmt.Sprintf("m%d", i), fmt.Sprintf("e%d", i), ""))
		}
		return neo4j.EagerResult{Records: records}, nil
	}}
	e := NewEngine(d, nil, nil, testDefaults())

	results, err := e.Search(context.Background(), "g1", "anything", Config{
		Scopes:         []Scope{ScopeNodes},
		Methods:        []Method{BreadthFirstSearch},
		BFSOrigins:     []string{"seed"},
		BFSMaxFrontier: 3,
	})
	require.NoError(t, err)
	assert.True(t, results.Truncated)
}

func TestSearch_InvalidEdgesExcludedFromSemantic(t *testing.T) {
	edgeKeys := []string{"uuid", "name", "fact", "fact_embedding", "invalid_at"}
	d := &mockDriver{Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
		if query == driver.EdgeEmbeddingsQuery {
			return neo4j.EagerResult{Records: []*neo4j.Record{
				record(edgeKeys, "e-live", "WORKS_AT", "Alice works at Acme", []interface{}{1.0, 0.0}, nil),
				record(edgeKeys, "e-dead", "WORKS_AT", "Alice worked at Initech", []interface{}{1.0, 0.0}, "2020-01-01T00:00:00Z"),
			}}, nil
		}
		return neo4j.EagerResult{}, nil
	}}
	e := NewEngine(d, &mockEmbedder{Vector: []float32{1, 0}}, nil, testDefaults())

	results, err := e.Search(context.Background(), "g1", "where does alice work", Config{
		Scopes:  []Scope{ScopeEdges},
		Methods: []Method{CosineSimilarity},
	})
	require.NoError(t, err)
	require.Len(t, results.Items, 1)
	assert.Equal(t, "e-live", results.Items[0].UUID)

	// With IncludeInvalid the expired fact comes back.
	results, err = e.Search(context.Background(), "g1", "where does alice work", Config{
		Scopes:         []Scope{ScopeEdges},
		Methods:        []Method{CosineSimilarity},
		IncludeInvalid: true,
	})
	require.NoError(t, err)
	assert.Len(t, results.Items, 2)
}

func TestSearch_LimitApplied(t *testing.T) {
	d := &mockDriver{Handler: func(query string, params map[string]interface{}) (neo4j.EagerResult, error) {
		if query != driver.NodeEmbeddingsQuery {
			return neo4j.EagerResult{}, nil
		}
		var records []*neo4j.Record
		for i := 0; i < 10; i++ {
			records = append(records, nodeEmbeddingRecord(fmt.Sprintf("n%02d", i), fmt.Sprintf("node %d", i), []interface{}{1.0, 0.0}))
		}
		return neo4j.EagerResult{Records: records}, nil
	}}
	e := NewEngine(d, &mockEmbedder{Vector: []float32{1, 0}}, nil, testDefaults())

	results, err := e.Search(context.Background(), "g1", "node", Config{
		Scopes:  []Scope{ScopeNodes},
		Methods: []Method{CosineSimilarity},
		Limit:   3,
	})
	require.NoError(t, err)
	assert.Len(t, results.Items, 3)
}
