package driver

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/agenthands/strata/internal/logger"
)

// MemgraphDriver implements GraphDriver over the Bolt protocol. It works
// against Memgraph and Neo4j; index creation degrades gracefully where the
// backend lacks a feature.
type MemgraphDriver struct {
	Driver neo4j.DriverWithContext
}

func NewMemgraphDriver(uri, username, password string) (*MemgraphDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, err
	}

	logger.Get().Info("connected to graph store", zap.String("uri", uri))
	return &MemgraphDriver{Driver: driver}, nil
}

func (d *MemgraphDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *MemgraphDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

// ExecuteBatch runs all queries inside a single write transaction. The store
// serializes conflicting concurrent transactions; a failure rolls everything
// back.
func (d *MemgraphDriver) ExecuteBatch(ctx context.Context, queries []Query) error {
	session := d.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		for _, q := range queries {
			if _, err := tx.Run(ctx, q.Cypher, q.Params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit batch of %d queries: %w", len(queries), err)
	}
	return nil
}

func (d *MemgraphDriver) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :Entity(uuid);",
		"CREATE INDEX ON :Episodic(uuid);",
		"CREATE INDEX ON :Community(uuid);",

		"CREATE INDEX ON :Entity(group_id);",
		"CREATE INDEX ON :Episodic(group_id);",
		"CREATE INDEX ON :Community(group_id);",

		"CREATE INDEX ON :Entity(name);",
	}

	for _, q := range queries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			// Index may already exist, or the backend may not support the
			// statement. Neither should block startup.
			logger.Get().Warn("failed to create index", zap.String("query", q), zap.Error(err))
		}
	}

	return nil
}
