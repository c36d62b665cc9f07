package search

import (
	"context"
	"time"

	"github.com/agenthands/strata/internal/driver"
)

// bfsResult is the outcome of a breadth-first expansion: nodes and edges
// encountered, scored inversely to distance from the seed set. Truncated
// marks a hit of the frontier budget, which is partial data, not an error.
type bfsResult struct {
	Nodes     []candidate
	Edges     []candidate
	Truncated bool
}

// breadthFirst expands from origin UUIDs up to maxDepth, visiting each node
// at most once and bounding the total frontier to maxFrontier.
func breadthFirst(ctx context.Context, d driver.GraphDriver, origins []string, maxDepth, maxFrontier int, includeInvalid bool) (*bfsResult, error) {
	if len(origins) == 0 || maxDepth <= 0 {
		return &bfsResult{}, nil
	}
	if maxFrontier <= 0 {
		maxFrontier = 1000
	}

	visited := make(map[string]bool, len(origins))
	seenEdges := make(map[string]bool)
	for _, o := range origins {
		visited[o] = true
	}

	result := &bfsResult{}
	frontier := origins
	now := time.Now().UTC()

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		res, err := d.ExecuteQuery(ctx, driver.NeighborsQuery, map[string]interface{}{
			"frontier": frontier,
		})
		if err != nil {
			return nil, err
		}

		score := 1.0 / float64(1+depth)
		var next []string
		for _, rec := range res.Records {
			if !includeInvalid {
				if invalidAt := driver.RecordTime(rec, "invalid_at"); invalidAt != nil && !invalidAt.After(now) {
					continue
				}
			}

			if edgeUUID := driver.RecordString(rec, "edge_uuid"); edgeUUID != "" && !seenEdges[edgeUUID] {
				seenEdges[edgeUUID] = true
				result.Edges = append(result.Edges, candidate{
					UUID:    edgeUUID,
					Kind:    KindEdge,
					Name:    driver.RecordString(rec, "edge_name"),
					Content: driver.RecordString(rec, "fact"),
					Score:   score,
				})
			}

			nodeUUID := driver.RecordString(rec, "uuid")
			if nodeUUID == "" || visited[nodeUUID] {
				continue
			}
			visited[nodeUUID] = true
			result.Nodes = append(result.Nodes, candidate{
				UUID:    nodeUUID,
				Kind:    KindNode,
				Name:    driver.RecordString(rec, "name"),
				Content: driver.RecordString(rec, "summary"),
				Score:   score,
			})

			if len(visited) >= maxFrontier {
				result.Truncated = true
				return result, nil
			}
			next = append(next, nodeUUID)
		}
		frontier = next
	}

	return result, nil
}

// nodeDistances returns BFS hop counts from the center node to every node
// reachable within maxDepth. Used by the node-distance reranker.
func nodeDistances(ctx context.Context, d driver.GraphDriver, center string, maxDepth, maxFrontier int) (map[string]int, error) {
	distances := map[string]int{center: 0}
	frontier := []string{center}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		res, err := d.ExecuteQuery(ctx, driver.NeighborsQuery, map[string]interface{}{
			"frontier": frontier,
		})
		if err != nil {
			return nil, err
		}
		var next []string
		for _, rec := range res.Records {
			nodeUUID := driver.RecordString(rec, "uuid")
			if nodeUUID == "" {
				continue
			}
			if _, seen := distances[nodeUUID]; seen {
				continue
			}
			distances[nodeUUID] = depth
			if len(distances) >= maxFrontier {
				return distances, nil
			}
			next = append(next, nodeUUID)
		}
		frontier = next
	}
	return distances, nil
}
