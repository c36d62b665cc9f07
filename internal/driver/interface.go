package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Query pairs a Cypher statement with its parameters, the unit of work for
// batched transactional commits.
type Query struct {
	Cypher string
	Params map[string]interface{}
}

// GraphDriver is the transactional interface the core depends on. The driver
// is the sole writer of persisted state; ExecuteBatch commits all queries in
// one write transaction or none of them.
type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	ExecuteBatch(ctx context.Context, queries []Query) error
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}
