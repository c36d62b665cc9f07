package core

import (
	"context"
	"fmt"

	"github.com/agenthands/strata/internal/config"
	"github.com/agenthands/strata/internal/core/community"
	"github.com/agenthands/strata/internal/core/dedupe"
	"github.com/agenthands/strata/internal/core/extraction"
	"github.com/agenthands/strata/internal/core/ingest"
	"github.com/agenthands/strata/internal/core/model"
	"github.com/agenthands/strata/internal/core/search"
	"github.com/agenthands/strata/internal/core/summary"
	"github.com/agenthands/strata/internal/core/temporal"
	"github.com/agenthands/strata/internal/driver"
	"github.com/agenthands/strata/internal/llm"
)

// Graph is the top-level handle on a temporally-aware knowledge graph. It
// owns the driver and the capability clients and exposes the ingestion,
// search, and community operations the server routes to.
type Graph struct {
	Driver   driver.GraphDriver
	LLM      llm.LLMClient
	Embedder llm.EmbedderClient

	Pipeline    *ingest.Pipeline
	Engine      *search.Engine
	Communities *community.Builder
}

// New wires a Graph from configuration: driver, resilient LLM/embedder
// clients, and every stage of the episode pipeline.
func New(ctx context.Context, cfg *config.Config) (*Graph, error) {
	d, err := driver.NewMemgraphDriver(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to graph database: %w", err)
	}

	llmClient, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		d.Close(ctx)
		return nil, err
	}
	resilient := llm.NewResilientClient(llmClient, embedder, cfg.LLM.Provider, cfg.LLM.MaxRetries)

	return NewWithClients(d, resilient, resilient, cfg), nil
}

// NewWithClients assembles a Graph around caller-supplied driver and clients.
// Tests inject mocks here.
func NewWithClients(d driver.GraphDriver, llmClient llm.LLMClient, embedder llm.EmbedderClient, cfg *config.Config) *Graph {
	extractor := extraction.NewExtractor(llmClient, cfg.Extraction)
	deduper := dedupe.NewResolver(llmClient, cfg.Deduplication, cfg.Dedupe)
	temporalResolver := temporal.NewResolver(llmClient, cfg.Temporal.Contradiction, cfg.Relations.SingleValuedRelations)
	summarizer := summary.NewSummarizer(llmClient, cfg.Summary)

	pipeline := ingest.NewPipeline(
		d, llmClient, embedder,
		extractor, deduper, temporalResolver, summarizer,
		cfg.Concurrency, cfg.Relations.ReflexiveRelations,
	)

	var reranker llm.RerankerClient
	if llmClient != nil {
		reranker = llm.NewSimpleLLMReranker(llmClient)
	}

	return &Graph{
		Driver:      d,
		LLM:         llmClient,
		Embedder:    embedder,
		Pipeline:    pipeline,
		Engine:      search.NewEngine(d, embedder, reranker, cfg.Search),
		Communities: community.NewBuilder(d, summarizer, embedder),
	}
}

// AddEpisode ingests a single episode end to end.
func (g *Graph) AddEpisode(ctx context.Context, episode ingest.EpisodeInput, opts ingest.Options) (*ingest.Result, error) {
	return g.Pipeline.AddEpisode(ctx, episode, opts)
}

// AddEpisodeBulk ingests a batch of episodes with bounded parallelism.
func (g *Graph) AddEpisodeBulk(ctx context.Context, episodes []ingest.EpisodeInput, opts ingest.Options) []ingest.Status {
	return g.Pipeline.AddEpisodeBulk(ctx, episodes, opts)
}

// Search runs a hybrid query over the graph.
func (g *Graph) Search(ctx context.Context, groupID, query string, cfg search.Config) (*search.Results, error) {
	return g.Engine.Search(ctx, groupID, query, cfg)
}

// BuildCommunities recomputes the community layer for a group.
func (g *Graph) BuildCommunities(ctx context.Context, groupID string) ([]model.CommunityNode, error) {
	return g.Communities.Build(ctx, groupID)
}

// BuildIndices creates the database indices and constraints.
func (g *Graph) BuildIndices(ctx context.Context) error {
	return g.Driver.BuildIndices(ctx)
}

// Close releases the database connection.
func (g *Graph) Close(ctx context.Context) error {
	return g.Driver.Close(ctx)
}
