package search

import (
	"math"
	"sort"

	"github.com/agenthands/strata/internal/core/common"
)

// rrf fuses ranked signal lists with Reciprocal Rank Fusion: an item's fused
// score is the sum over signals of 1/(rankConstant + rank). Items absent from
// a signal contribute nothing for it. Ties break on raw semantic score, then
// lexicographic UUID, so a fixed input always yields the same order.
func rrf(signals map[string][]candidate, rankConstant int) []fused {
	if rankConstant <= 0 {
		rankConstant = 60
	}

	items := make(map[string]*fused)
	for signalName, ranked := range signals {
		for rank, c := range ranked {
			f, ok := items[c.UUID]
			if !ok {
				base := c
				base.Score = 0 // fused score accumulates below
				f = &fused{candidate: base, Signals: make(map[string]float64)}
				items[c.UUID] = f
			}
			f.Score += 1.0 / float64(rankConstant+rank+1)
			f.Signals[signalName] = c.Score
			if c.Semantic > f.Semantic {
				f.Semantic = c.Semantic
			}
			if f.Name == "" {
				f.Name = c.Name
			}
			if f.Content == "" {
				f.Content = c.Content
			}
		}
	}

	out := make([]fused, 0, len(items))
	for _, f := range items {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Semantic != out[j].Semantic {
			return out[i].Semantic > out[j].Semantic
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}

// mmr greedily reorders candidates maximizing
// lambda*relevance - (1-lambda)*maxSimilarityToSelected. Candidates without
// embeddings keep their fused order after the reranked ones.
func mmr(queryVector []float32, ranked []fused, embeddings map[string][]float32, lambda float64, limit int) []fused {
	if lambda <= 0 || lambda > 1 {
		lambda = 0.5
	}

	var pool []fused
	var tail []fused
	for _, f := range ranked {
		if _, ok := embeddings[f.UUID]; ok {
			pool = append(pool, f)
		} else {
			tail = append(tail, f)
		}
	}

	normQuery := common.NormalizeL2(queryVector)
	relevance := make(map[string]float64, len(pool))
	for _, f := range pool {
		relevance[f.UUID] = common.CosineSimilarity(normQuery, common.NormalizeL2(embeddings[f.UUID]))
	}

	var selected []fused
	remaining := pool
	for len(remaining) > 0 && (limit <= 0 || len(selected) < limit) {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i, f := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				sim := common.CosineSimilarity(embeddings[f.UUID], embeddings[s.UUID])
				if sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*relevance[f.UUID] - (1-lambda)*maxSim
			if score > bestScore || (score == bestScore && bestIdx >= 0 && f.UUID < remaining[bestIdx].UUID) {
				bestScore = score
				bestIdx = i
			}
		}
		pick := remaining[bestIdx]
		pick.Score = bestScore
		selected = append(selected, pick)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return append(selected, tail...)
}

// rerankByDistance orders candidates by ascending hop count from a focal
// node, breaking ties by the base fused score. Unreachable candidates sort
// last in fused order.
func rerankByDistance(ranked []fused, distances map[string]int) []fused {
	out := make([]fused, len(ranked))
	copy(out, ranked)
	dist := func(uuid string) int {
		if d, ok := distances[uuid]; ok {
			return d
		}
		return math.MaxInt32
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := dist(out[i].UUID), dist(out[j].UUID)
		if di != dj {
			return di < dj
		}
		return out[i].Score > out[j].Score
	})
	return out
}
