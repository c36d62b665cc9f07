package community

import (
	"sort"

	"github.com/agenthands/strata/internal/core/model"
)

// LabelPropagationDetector clusters entities with the label propagation
// algorithm over the undirected entity graph, weighting parallel edges as
// stronger connections.
type LabelPropagationDetector struct {
	MaxIterations int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{MaxIterations: 20}
}

func (d *LabelPropagationDetector) Detect(nodes []model.EntityNode, edges []model.EntityEdge) ([][]model.EntityNode, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	adj := make(map[string]map[string]int) // node -> neighbor -> weight
	nodeMap := make(map[string]model.EntityNode)

	for _, n := range nodes {
		nodeMap[n.UUID] = n
		adj[n.UUID] = make(map[string]int)
	}

	for _, e := range edges {
		if _, ok := nodeMap[e.SourceUUID]; !ok {
			continue
		}
		if _, ok := nodeMap[e.TargetUUID]; !ok {
			continue
		}
		adj[e.SourceUUID][e.TargetUUID]++
		adj[e.TargetUUID][e.SourceUUID]++
	}

	// Each node starts with its own label.
	labels := make(map[string]string)
	nodeUUIDs := make([]string, len(nodes))
	for i, n := range nodes {
		labels[n.UUID] = n.UUID
		nodeUUIDs[i] = n.UUID
	}
	sort.Strings(nodeUUIDs) // deterministic propagation order

	for iter := 0; iter < d.MaxIterations; iter++ {
		changeCount := 0

		for _, u := range nodeUUIDs {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			labelCounts := make(map[string]int)
			maxCount := 0
			for v, weight := range neighbors {
				label := labels[v]
				labelCounts[label] += weight
				if labelCounts[label] > maxCount {
					maxCount = labelCounts[label]
				}
			}

			var candidates []string
			for label, count := range labelCounts {
				if count == maxCount {
					candidates = append(candidates, label)
				}
			}

			// Lexicographically largest candidate wins ties, which keeps the
			// algorithm deterministic across runs.
			sort.Strings(candidates)
			bestLabel := candidates[len(candidates)-1]

			if labels[u] != bestLabel {
				labels[u] = bestLabel
				changeCount++
			}
		}

		if changeCount == 0 {
			break
		}
	}

	clusters := make(map[string][]model.EntityNode)
	for _, uuid := range nodeUUIDs {
		clusters[labels[uuid]] = append(clusters[labels[uuid]], nodeMap[uuid])
	}

	labelKeys := make([]string, 0, len(clusters))
	for label := range clusters {
		labelKeys = append(labelKeys, label)
	}
	sort.Strings(labelKeys)

	var communities [][]model.EntityNode
	for _, label := range labelKeys {
		// Singletons are not clusters.
		if cluster := clusters[label]; len(cluster) >= 2 {
			communities = append(communities, cluster)
		}
	}
	return communities, nil
}
