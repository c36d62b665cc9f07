package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appconfig "github.com/agenthands/strata/internal/config"
	"github.com/agenthands/strata/internal/core/common"
	"github.com/agenthands/strata/internal/core/model"
	"github.com/agenthands/strata/internal/driver"
	"github.com/agenthands/strata/internal/llm"
	"github.com/agenthands/strata/internal/logger"
)

type Method string

const (
	CosineSimilarity   Method = "cosine_similarity"
	BM25               Method = "bm25"
	BreadthFirstSearch Method = "bfs"
)

type Reranker string

const (
	RRFRerank          Reranker = "rrf"
	MMRRerank          Reranker = "mmr"
	NodeDistanceRerank Reranker = "node_distance"
	LLMRerank          Reranker = "llm"
)

type Scope string

const (
	ScopeNodes       Scope = "nodes"
	ScopeEdges       Scope = "edges"
	ScopeCommunities Scope = "communities"
)

const (
	KindNode      = "node"
	KindEdge      = "edge"
	KindCommunity = "community"
)

// Config selects which entity classes to search, which signals to run, and
// how to fuse them. Zero values fall back to engine defaults.
type Config struct {
	Scopes         []Scope
	Methods        []Method
	Reranker       Reranker
	Limit          int
	RankConstant   int
	MMRLambda      float64
	BFSOrigins     []string // explicit seed nodes; empty seeds from the top of other signals
	BFSMaxDepth    int
	BFSMaxFrontier int
	CenterNodeUUID string // focal node for node-distance reranking
	IncludeInvalid bool   // traverse and return expired facts too
	SignalTimeout  time.Duration
	CandidateLimit int
}

// Results carries the fused ranking plus which signals actually contributed
// (a timed-out signal is dropped, not fatal) and whether traversal truncated.
type Results struct {
	Items               []model.SearchResult
	ContributingSignals []string
	Truncated           bool
}

type candidate struct {
	UUID     string
	Kind     string
	Name     string
	Content  string
	Score    float64 // native scale of the producing signal
	Semantic float64 // raw cosine when produced by the semantic signal
}

type fused struct {
	candidate
	Signals map[string]float64
}

// Engine executes hybrid retrieval: independent sub-searches per enabled
// signal run concurrently against the graph store, then a configurable fusion
// strategy merges their rankings.
type Engine struct {
	Driver   driver.GraphDriver
	Embedder llm.EmbedderClient
	Reranker llm.RerankerClient
	Defaults appconfig.SearchConfig
}

func NewEngine(d driver.GraphDriver, embedder llm.EmbedderClient, reranker llm.RerankerClient, defaults appconfig.SearchConfig) *Engine {
	return &Engine{Driver: d, Embedder: embedder, Reranker: reranker, Defaults: defaults}
}

func (e *Engine) Search(ctx context.Context, groupID, query string, cfg Config) (*Results, error) {
	if strings.TrimSpace(query) == "" {
		return &Results{}, nil
	}
	e.applyDefaults(&cfg)

	var queryVector []float32
	if e.needsEmbedding(cfg) && e.Embedder != nil {
		vec, err := e.Embedder.Embed(ctx, strings.ReplaceAll(query, "\n", " "))
		if err != nil {
			logger.Get().Warn("query embedding failed, dropping semantic signal", zap.Error(err))
		} else {
			queryVector = vec
		}
	}

	signals := make(map[string][]candidate)
	embeddings := make(map[string][]float32)
	var contributed []string
	var mu sync.Mutex

	record := func(name string, ranked []candidate, vecs map[string][]float32) {
		mu.Lock()
		defer mu.Unlock()
		if len(ranked) > 0 {
			signals[name] = ranked
			contributed = append(contributed, name)
		}
		for k, v := range vecs {
			embeddings[k] = v
		}
	}

	// Semantic and lexical sub-searches are independent; each gets its own
	// timeout and a timed-out signal is dropped rather than failing the query.
	g, gctx := errgroup.WithContext(ctx)
	for _, scope := range cfg.Scopes {
		for _, method := range cfg.Methods {
			scope, method := scope, method
			switch method {
			case CosineSimilarity:
				if queryVector == nil {
					continue
				}
				g.Go(func() error {
					sctx, cancel := context.WithTimeout(gctx, cfg.SignalTimeout)
					defer cancel()
					ranked, vecs, err := e.semanticSearch(sctx, groupID, scope, queryVector, cfg)
					if err != nil {
						logSignalError(scope, method, err)
						return nil
					}
					record(signalName(scope, method), ranked, vecs)
					return nil
				})
			case BM25:
				if scope == ScopeCommunities {
					continue
				}
				g.Go(func() error {
					sctx, cancel := context.WithTimeout(gctx, cfg.SignalTimeout)
					defer cancel()
					ranked, err := e.lexicalSearch(sctx, groupID, scope, query, cfg)
					if err != nil {
						logSignalError(scope, method, err)
						return nil
					}
					record(signalName(scope, method), ranked, nil)
					return nil
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Graph traversal seeds from explicit origins or from the best nodes the
	// other signals found, so it runs after them.
	truncated := false
	if hasMethod(cfg.Methods, BreadthFirstSearch) {
		origins := cfg.BFSOrigins
		if len(origins) == 0 {
			origins = topNodeUUIDs(signals, 3)
		}
		sctx, cancel := context.WithTimeout(ctx, cfg.SignalTimeout)
		bfs, err := breadthFirst(sctx, e.Driver, origins, cfg.BFSMaxDepth, cfg.BFSMaxFrontier, cfg.IncludeInvalid)
		cancel()
		if err != nil {
			logSignalError(ScopeNodes, BreadthFirstSearch, err)
		} else {
			truncated = bfs.Truncated
			if hasScope(cfg.Scopes, ScopeNodes) && len(bfs.Nodes) > 0 {
				record(signalName(ScopeNodes, BreadthFirstSearch), bfs.Nodes, nil)
			}
			if hasScope(cfg.Scopes, ScopeEdges) && len(bfs.Edges) > 0 {
				record(signalName(ScopeEdges, BreadthFirstSearch), bfs.Edges, nil)
			}
		}
	}

	ranked := rrf(signals, cfg.RankConstant)

	switch cfg.Reranker {
	case MMRRerank:
		if queryVector != nil {
			ranked = mmr(queryVector, ranked, embeddings, cfg.MMRLambda, cfg.Limit)
		}
	case NodeDistanceRerank:
		if cfg.CenterNodeUUID != "" {
			distances, err := nodeDistances(ctx, e.Driver, cfg.CenterNodeUUID, cfg.BFSMaxDepth, cfg.BFSMaxFrontier)
			if err != nil {
				logger.Get().Warn("node distance rerank failed, keeping fused order", zap.Error(err))
			} else {
				ranked = rerankByDistance(ranked, distances)
			}
		}
	case LLMRerank:
		if e.Reranker != nil {
			ranked = e.llmRerank(ctx, query, ranked)
		}
	}

	if cfg.Limit > 0 && len(ranked) > cfg.Limit {
		ranked = ranked[:cfg.Limit]
	}

	sort.Strings(contributed)
	results := &Results{ContributingSignals: contributed, Truncated: truncated}
	for _, f := range ranked {
		results.Items = append(results.Items, model.SearchResult{
			UUID:    f.UUID,
			Kind:    f.Kind,
			Name:    f.Name,
			Content: f.Content,
			Score:   f.Score,
			Signals: f.Signals,
		})
	}
	return results, nil
}

func (e *Engine) applyDefaults(cfg *Config) {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []Scope{ScopeNodes, ScopeEdges}
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = []Method{CosineSimilarity, BM25}
	}
	if cfg.Reranker == "" {
		cfg.Reranker = RRFRerank
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	if cfg.RankConstant <= 0 {
		cfg.RankConstant = e.Defaults.RankConstant
	}
	if cfg.MMRLambda == 0 {
		cfg.MMRLambda = e.Defaults.MMRLambda
	}
	if cfg.BFSMaxDepth <= 0 {
		cfg.BFSMaxDepth = e.Defaults.BFSMaxDepth
	}
	if cfg.BFSMaxFrontier <= 0 {
		cfg.BFSMaxFrontier = e.Defaults.BFSMaxFrontier
	}
	if cfg.SignalTimeout <= 0 {
		cfg.SignalTimeout = time.Duration(e.Defaults.SignalTimeoutMS) * time.Millisecond
		if cfg.SignalTimeout <= 0 {
			cfg.SignalTimeout = 10 * time.Second
		}
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = e.Defaults.CandidateLimit
		if cfg.CandidateLimit <= 0 {
			cfg.CandidateLimit = 50
		}
	}
}

func (e *Engine) needsEmbedding(cfg Config) bool {
	if cfg.Reranker == MMRRerank {
		return true
	}
	return hasMethod(cfg.Methods, CosineSimilarity)
}

// semanticSearch ranks candidates by cosine similarity between the query
// vector and stored embeddings.
func (e *Engine) semanticSearch(ctx context.Context, groupID string, scope Scope, queryVector []float32, cfg Config) ([]candidate, map[string][]float32, error) {
	var cypher, kind string
	switch scope {
	case ScopeNodes:
		cypher, kind = driver.NodeEmbeddingsQuery, KindNode
	case ScopeEdges:
		cypher, kind = driver.EdgeEmbeddingsQuery, KindEdge
	case ScopeCommunities:
		cypher, kind = driver.CommunityEmbeddingsQuery, KindCommunity
	default:
		return nil, nil, fmt.Errorf("unknown scope %q", scope)
	}

	res, err := e.Driver.ExecuteQuery(ctx, cypher, map[string]interface{}{
		"group_id": groupID,
		"limit":    cfg.CandidateLimit * 10,
	})
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	vecs := make(map[string][]float32)
	var ranked []candidate
	for _, rec := range res.Records {
		if kind == KindEdge && !cfg.IncludeInvalid {
			if invalidAt := driver.RecordTime(rec, "invalid_at"); invalidAt != nil && !invalidAt.After(now) {
				continue
			}
		}

		var embKey, content string
		if kind == KindEdge {
			embKey, content = "fact_embedding", driver.RecordString(rec, "fact")
		} else {
			embKey, content = "name_embedding", driver.RecordString(rec, "summary")
		}
		vec := driver.RecordVector(rec, embKey)
		if len(vec) == 0 {
			continue
		}
		uuid := driver.RecordString(rec, "uuid")
		score := common.CosineSimilarity(queryVector, vec)
		vecs[uuid] = vec
		ranked = append(ranked, candidate{
			UUID:     uuid,
			Kind:     kind,
			Name:     driver.RecordString(rec, "name"),
			Content:  content,
			Score:    score,
			Semantic: score,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].UUID < ranked[j].UUID
	})
	if len(ranked) > cfg.CandidateLimit {
		ranked = ranked[:cfg.CandidateLimit]
	}
	return ranked, vecs, nil
}

// lexicalSearch retrieves keyword candidates per query token and scores them
// by token overlap.
func (e *Engine) lexicalSearch(ctx context.Context, groupID string, scope Scope, query string, cfg Config) ([]candidate, error) {
	var cypher, kind string
	switch scope {
	case ScopeNodes:
		cypher, kind = driver.NodeFulltextQuery, KindNode
	case ScopeEdges:
		cypher, kind = driver.EdgeFulltextQuery, KindEdge
	default:
		return nil, fmt.Errorf("unknown scope %q", scope)
	}

	terms := searchTerms(query)
	now := time.Now().UTC()
	seen := make(map[string]bool)
	var ranked []candidate
	for _, term := range terms {
		res, err := e.Driver.ExecuteQuery(ctx, cypher, map[string]interface{}{
			"group_id": groupID,
			"term":     term,
			"limit":    cfg.CandidateLimit,
		})
		if err != nil {
			return nil, err
		}
		for _, rec := range res.Records {
			uuid := driver.RecordString(rec, "uuid")
			if uuid == "" || seen[uuid] {
				continue
			}
			if kind == KindEdge && !cfg.IncludeInvalid {
				if invalidAt := driver.RecordTime(rec, "invalid_at"); invalidAt != nil && !invalidAt.After(now) {
					continue
				}
			}
			seen[uuid] = true
			name := driver.RecordString(rec, "name")
			var content string
			if kind == KindEdge {
				content = driver.RecordString(rec, "fact")
			} else {
				content = driver.RecordString(rec, "summary")
			}
			ranked = append(ranked, candidate{
				UUID:    uuid,
				Kind:    kind,
				Name:    name,
				Content: content,
				Score:   common.TokenOverlap(query, name+" "+content),
			})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].UUID < ranked[j].UUID
	})
	if len(ranked) > cfg.CandidateLimit {
		ranked = ranked[:cfg.CandidateLimit]
	}
	return ranked, nil
}

func (e *Engine) llmRerank(ctx context.Context, query string, ranked []fused) []fused {
	docs := make([]string, len(ranked))
	for i, f := range ranked {
		docs[i] = f.Name + ": " + f.Content
	}
	indices, err := e.Reranker.Rank(ctx, query, docs)
	if err != nil || len(indices) == 0 {
		return ranked
	}
	out := make([]fused, 0, len(ranked))
	used := make(map[int]bool)
	for _, idx := range indices {
		if idx >= 0 && idx < len(ranked) && !used[idx] {
			used[idx] = true
			out = append(out, ranked[idx])
		}
	}
	for i, f := range ranked {
		if !used[i] {
			out = append(out, f)
		}
	}
	return out
}

func signalName(scope Scope, method Method) string {
	return string(scope) + ":" + string(method)
}

func logSignalError(scope Scope, method Method, err error) {
	logger.Get().Warn("search signal dropped",
		zap.String("signal", signalName(scope, method)), zap.Error(err))
}

func hasMethod(methods []Method, m Method) bool {
	for _, x := range methods {
		if x == m {
			return true
		}
	}
	return false
}

func hasScope(scopes []Scope, s Scope) bool {
	for _, x := range scopes {
		if x == s {
			return true
		}
	}
	return false
}

// topNodeUUIDs seeds graph traversal from the strongest node hits of the
// already-completed signals.
func topNodeUUIDs(signals map[string][]candidate, k int) []string {
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]bool)
	var out []string
	for _, name := range names {
		for _, c := range signals[name] {
			if c.Kind != KindNode || seen[c.UUID] {
				continue
			}
			seen[c.UUID] = true
			out = append(out, c.UUID)
			if len(out) >= k {
				return out
			}
		}
	}
	return out
}

func searchTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, ".,!?\"'()")
		if len(f) > 2 {
			terms = append(terms, f)
		}
		if len(terms) >= 5 {
			break
		}
	}
	if len(terms) == 0 {
		terms = []string{strings.ToLower(strings.TrimSpace(query))}
	}
	return terms
}
