package search

import (
	"context"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/strata/internal/driver"
)

// mockDriver routes ExecuteQuery through a scripted handler so tests can
// shape per-query results, including frontier-dependent BFS responses.
// Signal sub-searches run concurrently, hence the mutex.
type mockDriver struct {
	mu      sync.Mutex
	Handler func(query string, params map[string]interface{}) (neo4j.EagerResult, error)
	Queries []string
}

func (m *mockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	if err := ctx.Err(); err != nil {
		return neo4j.EagerResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.Handler == nil {
		return neo4j.EagerResult{}, nil
	}
	return m.Handler(query, params)
}

func (m *mockDriver) ExecuteBatch(ctx context.Context, queries []driver.Query) error {
	return nil
}

func (m *mockDriver) BuildIndices(ctx context.Context) error { return nil }

func (m *mockDriver) Close(ctx context.Context) error { return nil }

func record(keys []string, values ...interface{}) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

var neighborKeys = []string{"from_uuid", "uuid", "name", "summary", "edge_uuid", "edge_name", "fact", "invalid_at"}

// neighborRecord builds one row of the frontier expansion result.
func neighborRecord(from, to, edgeUUID, invalidAt string) *neo4j.Record {
	var inv interface{}
	if invalidAt != "" {
		inv = invalidAt
	}
	return record(neighborKeys, from, to, "name-"+to, "summary-"+to, edgeUUID, "RELATES_TO", "fact-"+edgeUUID, inv)
}

type mockEmbedder struct {
	Vector []float32
	Err    error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}
