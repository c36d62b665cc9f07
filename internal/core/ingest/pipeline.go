package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/agenthands/strata/internal/config"
	"github.com/agenthands/strata/internal/core/common"
	"github.com/agenthands/strata/internal/core/dedupe"
	"github.com/agenthands/strata/internal/core/extraction"
	"github.com/agenthands/strata/internal/core/model"
	"github.com/agenthands/strata/internal/core/summary"
	"github.com/agenthands/strata/internal/core/temporal"
	"github.com/agenthands/strata/internal/driver"
	"github.com/agenthands/strata/internal/llm"
	"github.com/agenthands/strata/internal/logger"
)

type BuildMode string

const (
	BuildFull         BuildMode = "full"
	BuildEntitiesOnly BuildMode = "entities_only"
	BuildEdgesOnly    BuildMode = "edges_only"
)

type EpisodeInput struct {
	GroupID           string    `json:"group_id"`
	Name              string    `json:"name"`
	Content           string    `json:"content"`
	Source            string    `json:"source"`
	SourceDescription string    `json:"source_description"`
	ReferenceTime     time.Time `json:"reference_time"`
}

type Options struct {
	Mode             BuildMode
	Schema           model.EntityTypeSchema
	PreviousEpisodes int // how many recent episodes feed the extraction context
}

type Result struct {
	EpisodeUUID          string   `json:"episode_uuid"`
	NodeUUIDs            []string `json:"node_uuids"`
	EdgeUUIDs            []string `json:"edge_uuids"`
	InvalidatedEdgeUUIDs []string `json:"invalidated_edge_uuids"`
}

// Status is the per-episode outcome of a bulk ingestion; a batch never
// aborts wholesale on one episode's failure.
type Status struct {
	Index       int     `json:"index"`
	EpisodeUUID string  `json:"episode_uuid,omitempty"`
	Result      *Result `json:"result,omitempty"`
	Err         error   `json:"-"`
	Error       string  `json:"error,omitempty"`
}

// Pipeline orchestrates extraction, deduplication, temporal resolution, and
// the transactional commit for each episode. The semaphore caps in-flight
// capability calls process-wide; the lock table closes the duplicate-node
// race across concurrently ingested episodes.
type Pipeline struct {
	Driver     driver.GraphDriver
	LLM        llm.LLMClient
	Embedder   llm.EmbedderClient
	Extractor  *extraction.Extractor
	Deduper    *dedupe.Resolver
	Temporal   *temporal.Resolver
	Summarizer *summary.Summarizer

	Locks       *KeyedLocks
	Sem         *semaphore.Weighted
	BulkWorkers int

	reflexive map[string]bool

	// Injectable for deterministic tests.
	UUIDGenerator func() string
	Now           func() time.Time
}

func NewPipeline(
	d driver.GraphDriver,
	llmClient llm.LLMClient,
	embedder llm.EmbedderClient,
	extractor *extraction.Extractor,
	deduper *dedupe.Resolver,
	temporalResolver *temporal.Resolver,
	summarizer *summary.Summarizer,
	cfg config.ConcurrencyConfig,
	reflexiveRelations []string,
) *Pipeline {
	budget := cfg.ExtractionBudget
	if budget <= 0 {
		budget = 8
	}
	workers := cfg.BulkIngest
	if workers <= 0 {
		workers = 4
	}
	reflexive := make(map[string]bool, len(reflexiveRelations))
	for _, rel := range reflexiveRelations {
		reflexive[strings.ToUpper(rel)] = true
	}
	return &Pipeline{
		Driver:        d,
		LLM:           llmClient,
		Embedder:      embedder,
		Extractor:     extractor,
		Deduper:       deduper,
		Temporal:      temporalResolver,
		Summarizer:    summarizer,
		Locks:         NewKeyedLocks(),
		Sem:           semaphore.NewWeighted(int64(budget)),
		BulkWorkers:   workers,
		reflexive:     reflexive,
		UUIDGenerator: func() string { return uuid.New().String() },
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// AddEpisode ingests one episode: the episode record is persisted first so
// provenance exists even when a later step fails, extraction runs outside
// any lock, and the merge/commit phase holds the entity-cluster claims.
func (p *Pipeline) AddEpisode(ctx context.Context, episode EpisodeInput, opts Options) (*Result, error) {
	if strings.TrimSpace(episode.Content) == "" {
		return nil, fmt.Errorf("episode content must not be empty")
	}
	if episode.ReferenceTime.IsZero() {
		return nil, fmt.Errorf("episode reference time must be set")
	}
	if opts.Mode == "" {
		opts.Mode = BuildFull
	}

	episodeUUID := p.UUIDGenerator()
	now := p.Now()
	if err := p.persistEpisode(ctx, episodeUUID, episode, now); err != nil {
		return nil, fmt.Errorf("failed to save episode: %w", err)
	}

	ext, err := p.extractPhase(ctx, episode, opts)
	if err != nil {
		return nil, fmt.Errorf("episode %s: %w", episodeUUID, err)
	}

	clusterKeys := make([]string, 0, len(ext.entities))
	for _, c := range ext.entities {
		clusterKeys = append(clusterKeys, common.NormalizeName(c.entity.Name))
	}

	// Claim the name clusters for dedupe+commit only; extraction already ran.
	held := p.Locks.Lock(clusterKeys)
	defer p.Locks.Unlock(held)

	var result *Result
	for attempt := 0; attempt < 2; attempt++ {
		result, err = p.mergeAndCommit(ctx, episodeUUID, episode, opts, ext)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Get().Warn("commit failed, retrying with fresh snapshot",
			zap.String("episode", episodeUUID), zap.Error(err))
	}
	return nil, fmt.Errorf("episode %s: %w: %v", episodeUUID, model.ErrCommitConflict, err)
}

func (p *Pipeline) persistEpisode(ctx context.Context, episodeUUID string, episode EpisodeInput, now time.Time) error {
	return p.Driver.ExecuteBatch(ctx, []driver.Query{{
		Cypher: driver.SaveEpisodicNodeQuery,
		Params: map[string]interface{}{
			"uuid":               episodeUUID,
			"name":               episode.Name,
			"group_id":           episode.GroupID,
			"created_at":         now.Format(time.RFC3339),
			"valid_at":           episode.ReferenceTime.UTC().Format(time.RFC3339),
			"content":            episode.Content,
			"source":             episode.Source,
			"source_description": episode.SourceDescription,
			"entity_edges":       []string{},
		},
	}})
}

type extractedCandidate struct {
	entity    model.ExtractedEntity
	embedding []float32
}

type extractResult struct {
	entities       []extractedCandidate
	edges          []model.ExtractedEdge
	factEmbeddings [][]float32 // parallel to edges
}

// extractPhase runs every capability call for the episode under the shared
// concurrency budget, before any cluster lock is taken.
func (p *Pipeline) extractPhase(ctx context.Context, episode EpisodeInput, opts Options) (*extractResult, error) {
	previous, err := p.recentEpisodes(ctx, episode.GroupID, opts.PreviousEpisodes)
	if err != nil {
		logger.Get().Warn("failed to load previous episodes for context", zap.Error(err))
	}

	candidates, err := withBudget(ctx, p.Sem, func() ([]model.ExtractedEntity, error) {
		return p.Extractor.ExtractNodes(ctx, episode.Content, opts.Schema, previous)
	})
	if err != nil {
		return nil, err
	}

	// Merge same-name mentions within the episode before touching the graph.
	byKey := make(map[string]int)
	var entities []extractedCandidate
	for _, c := range candidates {
		key := common.NormalizeName(c.Name)
		if idx, ok := byKey[key]; ok {
			prev := &entities[idx]
			for k, v := range c.Attributes {
				if prev.entity.Attributes == nil {
					prev.entity.Attributes = make(map[string]interface{})
				}
				if _, exists := prev.entity.Attributes[k]; !exists {
					prev.entity.Attributes[k] = v
				}
			}
			continue
		}
		byKey[key] = len(entities)
		entities = append(entities, extractedCandidate{entity: c})
	}

	if p.Embedder != nil {
		for i := range entities {
			vec, err := withBudget(ctx, p.Sem, func() ([]float32, error) {
				return p.Embedder.Embed(ctx, entities[i].entity.Name)
			})
			if err == nil {
				entities[i].embedding = vec
			}
		}
	}

	result := &extractResult{entities: entities}
	if opts.Mode == BuildEntitiesOnly {
		return result, nil
	}

	nodeViews := make([]model.EntityNode, len(entities))
	for i, c := range entities {
		nodeViews[i] = model.EntityNode{Name: c.entity.Name}
	}
	edges, err := withBudget(ctx, p.Sem, func() ([]model.ExtractedEdge, error) {
		return p.Extractor.ExtractEdges(ctx, episode.Content, nodeViews)
	})
	if err != nil {
		return nil, err
	}
	result.edges = edges

	result.factEmbeddings = make([][]float32, len(edges))
	if p.Embedder != nil {
		for i := range edges {
			vec, err := withBudget(ctx, p.Sem, func() ([]float32, error) {
				return p.Embedder.Embed(ctx, edges[i].Fact)
			})
			if err == nil {
				result.factEmbeddings[i] = vec
			}
		}
	}
	return result, nil
}

type resolvedEntity struct {
	node  model.EntityNode
	isNew bool
}

// mergeAndCommit resolves candidates against a fresh snapshot and commits
// every change for the episode in a single transaction.
func (p *Pipeline) mergeAndCommit(ctx context.Context, episodeUUID string, episode EpisodeInput, opts Options, ext *extractResult) (*Result, error) {
	now := p.Now()
	existing, err := p.groupNodes(ctx, episode.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to read group nodes: %w", err)
	}

	var queries []driver.Query
	result := &Result{EpisodeUUID: episodeUUID}
	resolvedByKey := make(map[string]resolvedEntity)

	for _, cand := range ext.entities {
		attrs, schemaErr := opts.Schema.ValidateAttributes(cand.entity.EntityType, cand.entity.Attributes)
		if schemaErr != nil {
			// Candidate dropped; the episode continues.
			logger.Get().Warn("candidate dropped",
				zap.String("episode", episodeUUID),
				zap.String("candidate", cand.entity.Name),
				zap.Error(schemaErr))
			continue
		}
		cand.entity.Attributes = attrs

		decision, err := p.Deduper.ResolveEntity(ctx, cand.entity, cand.embedding, existing)
		if err != nil {
			return nil, fmt.Errorf("dedup failed for candidate %q: %w", cand.entity.Name, err)
		}

		var resolved resolvedEntity
		if decision.ExistingUUID != "" {
			node := findNode(existing, decision.ExistingUUID)
			if node == nil {
				return nil, fmt.Errorf("dedup resolved to unknown node %s", decision.ExistingUUID)
			}
			merged := *node
			merged.Summary = p.refreshSummary(ctx, merged, episode.Content)
			merged.Attributes = dedupe.MergeAttributes(merged.Attributes, cand.entity.Attributes, merged.CreatedAt, episode.ReferenceTime)
			resolved = resolvedEntity{node: merged}
		} else {
			if opts.Mode == BuildEdgesOnly {
				// Edge-only builds never create entities.
				continue
			}
			node := model.EntityNode{
				UUID:          p.UUIDGenerator(),
				Name:          cand.entity.Name,
				GroupID:       episode.GroupID,
				CreatedAt:     now,
				Summary:       dedupe.FoldMention("", snippet(episode.Content)),
				Attributes:    cand.entity.Attributes,
				Labels:        entityLabels(cand.entity.EntityType),
				NameEmbedding: cand.embedding,
			}
			resolved = resolvedEntity{node: node, isNew: true}
			existing = append(existing, node)
		}

		resolvedByKey[common.NormalizeName(cand.entity.Name)] = resolved
		result.NodeUUIDs = append(result.NodeUUIDs, resolved.node.UUID)

		queries = append(queries, saveEntityQuery(resolved.node))
		queries = append(queries, driver.Query{
			Cypher: driver.SaveEpisodicEdgeQuery,
			Params: map[string]interface{}{
				"uuid":        p.UUIDGenerator(),
				"source_uuid": episodeUUID,
				"target_uuid": resolved.node.UUID,
				"group_id":    episode.GroupID,
				"created_at":  now.Format(time.RFC3339),
			},
		})
	}

	if opts.Mode != BuildEntitiesOnly {
		edgeQueries, err := p.resolveEdges(ctx, episodeUUID, episode, ext, resolvedByKey, result, now)
		if err != nil {
			return nil, err
		}
		queries = append(queries, edgeQueries...)
	}

	if len(result.EdgeUUIDs) > 0 {
		queries = append(queries, driver.Query{
			Cypher: `MATCH (n:Episodic {uuid: $uuid}) SET n.entity_edges = $entity_edges RETURN n.uuid AS uuid`,
			Params: map[string]interface{}{"uuid": episodeUUID, "entity_edges": result.EdgeUUIDs},
		})
	}

	if len(queries) == 0 {
		return result, nil
	}
	if err := p.Driver.ExecuteBatch(ctx, queries); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) resolveEdges(
	ctx context.Context,
	episodeUUID string,
	episode EpisodeInput,
	ext *extractResult,
	resolvedByKey map[string]resolvedEntity,
	result *Result,
	now time.Time,
) ([]driver.Query, error) {
	var queries []driver.Query

	for i, raw := range ext.edges {
		source, okS := resolvedByKey[common.NormalizeName(raw.SourceName)]
		target, okT := resolvedByKey[common.NormalizeName(raw.TargetName)]
		if !okS || !okT {
			continue
		}
		relation := strings.ToUpper(strings.TrimSpace(raw.RelationType))
		if relation == "" {
			relation = "RELATES_TO"
		}
		if source.node.UUID == target.node.UUID && !p.reflexive[relation] {
			logger.Get().Debug("rejecting reflexive edge",
				zap.String("relation", relation), zap.String("node", source.node.UUID))
			continue
		}

		newEdge := &model.EntityEdge{
			UUID:          p.UUIDGenerator(),
			SourceUUID:    source.node.UUID,
			TargetUUID:    target.node.UUID,
			GroupID:       episode.GroupID,
			Name:          relation,
			Fact:          raw.Fact,
			CreatedAt:     now,
			Episodes:      []string{episodeUUID},
			FactEmbedding: ext.factEmbeddings[i],
		}
		if raw.ValidAt != "" {
			if t, err := time.Parse(time.RFC3339, raw.ValidAt); err == nil {
				tt := t.UTC()
				newEdge.ValidAt = &tt
			}
		}
		if newEdge.ValidAt == nil {
			rt := episode.ReferenceTime.UTC()
			newEdge.ValidAt = &rt
		}

		existingEdges, err := p.edgesByKey(ctx, newEdge.Key())
		if err != nil {
			return nil, fmt.Errorf("failed to read edges for key: %w", err)
		}

		duplicateUUID, err := p.Deduper.ResolveEdge(ctx, newEdge, existingEdges)
		if err != nil {
			return nil, err
		}
		if duplicateUUID != "" {
			// Same fact again: provenance only, no new record.
			queries = append(queries, driver.Query{
				Cypher: driver.AppendEdgeEpisodesQuery,
				Params: map[string]interface{}{"uuid": duplicateUUID, "episodes": []string{episodeUUID}},
			})
			result.EdgeUUIDs = append(result.EdgeUUIDs, duplicateUUID)
			continue
		}

		invalidations, err := p.Temporal.Resolve(ctx, newEdge, existingEdges, now)
		if err != nil {
			return nil, err
		}
		for _, inv := range invalidations {
			queries = append(queries, driver.Query{
				Cypher: driver.InvalidateEdgeQuery,
				Params: map[string]interface{}{
					"uuid":       inv.EdgeUUID,
					"invalid_at": inv.InvalidAt.Format(time.RFC3339),
					"expired_at": inv.ExpiredAt.Format(time.RFC3339),
				},
			})
			result.InvalidatedEdgeUUIDs = append(result.InvalidatedEdgeUUIDs, inv.EdgeUUID)
		}

		queries = append(queries, saveEdgeQuery(*newEdge))
		result.EdgeUUIDs = append(result.EdgeUUIDs, newEdge.UUID)
	}
	return queries, nil
}

func (p *Pipeline) refreshSummary(ctx context.Context, node model.EntityNode, content string) string {
	if p.Summarizer == nil {
		return dedupe.FoldMention(node.Summary, snippet(content))
	}
	updated, err := p.Summarizer.SummarizeNode(ctx, node, []string{snippet(content)})
	if err != nil || updated == "" {
		return dedupe.FoldMention(node.Summary, snippet(content))
	}
	return updated
}

// withBudget runs one capability call under the shared semaphore.
func withBudget[T any](ctx context.Context, sem *semaphore.Weighted, fn func() (T, error)) (T, error) {
	var zero T
	if err := sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer sem.Release(1)
	return fn()
}

func (p *Pipeline) recentEpisodes(ctx context.Context, groupID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	res, err := p.Driver.ExecuteQuery(ctx, driver.GetRecentEpisodesQuery, map[string]interface{}{
		"group_id": groupID,
		"limit":    limit,
	})
	if err != nil {
		return nil, err
	}
	var previous []string
	for _, rec := range res.Records {
		previous = append(previous, driver.RecordString(rec, "content"))
	}
	return previous, nil
}

func (p *Pipeline) groupNodes(ctx context.Context, groupID string) ([]model.EntityNode, error) {
	res, err := p.Driver.ExecuteQuery(ctx, driver.GetGroupNodesQuery, map[string]interface{}{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	var nodes []model.EntityNode
	for _, rec := range res.Records {
		node := model.EntityNode{
			UUID:          driver.RecordString(rec, "uuid"),
			Name:          driver.RecordString(rec, "name"),
			Summary:       driver.RecordString(rec, "summary"),
			Labels:        driver.RecordStrings(rec, "labels"),
			NameEmbedding: driver.RecordVector(rec, "name_embedding"),
			Attributes:    driver.RecordMap(rec, "attributes"),
			GroupID:       groupID,
		}
		if created := driver.RecordTime(rec, "created_at"); created != nil {
			node.CreatedAt = *created
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (p *Pipeline) edgesByKey(ctx context.Context, key model.EdgeKey) ([]model.EntityEdge, error) {
	res, err := p.Driver.ExecuteQuery(ctx, driver.GetEdgesByKeyQuery, map[string]interface{}{
		"source_uuid": key.SourceUUID,
		"target_uuid": key.TargetUUID,
		"name":        key.Name,
	})
	if err != nil {
		return nil, err
	}
	var edges []model.EntityEdge
	for _, rec := range res.Records {
		edge := model.EntityEdge{
			UUID:          driver.RecordString(rec, "uuid"),
			SourceUUID:    key.SourceUUID,
			TargetUUID:    key.TargetUUID,
			Name:          driver.RecordString(rec, "name"),
			Fact:          driver.RecordString(rec, "fact"),
			ValidAt:       driver.RecordTime(rec, "valid_at"),
			InvalidAt:     driver.RecordTime(rec, "invalid_at"),
			ExpiredAt:     driver.RecordTime(rec, "expired_at"),
			FactEmbedding: driver.RecordVector(rec, "fact_embedding"),
		}
		if created := driver.RecordTime(rec, "created_at"); created != nil {
			edge.CreatedAt = *created
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func saveEntityQuery(node model.EntityNode) driver.Query {
	return driver.Query{
		Cypher: driver.SaveEntityNodeQuery,
		Params: map[string]interface{}{
			"uuid":           node.UUID,
			"name":           node.Name,
			"group_id":       node.GroupID,
			"created_at":     node.CreatedAt.Format(time.RFC3339),
			"summary":        node.Summary,
			"name_embedding": node.NameEmbedding,
			"attributes":     node.Attributes,
			"labels":         node.Labels,
		},
	}
}

func saveEdgeQuery(edge model.EntityEdge) driver.Query {
	return driver.Query{
		Cypher: driver.SaveEntityEdgeQuery,
		Params: map[string]interface{}{
			"uuid":           edge.UUID,
			"source_uuid":    edge.SourceUUID,
			"target_uuid":    edge.TargetUUID,
			"group_id":       edge.GroupID,
			"name":           edge.Name,
			"fact":           edge.Fact,
			"created_at":     edge.CreatedAt.Format(time.RFC3339),
			"expired_at":     driver.TimeParam(edge.ExpiredAt),
			"valid_at":       driver.TimeParam(edge.ValidAt),
			"invalid_at":     driver.TimeParam(edge.InvalidAt),
			"episodes":       edge.Episodes,
			"fact_embedding": edge.FactEmbedding,
		},
	}
}

func findNode(nodes []model.EntityNode, uuid string) *model.EntityNode {
	for i := range nodes {
		if nodes[i].UUID == uuid {
			return &nodes[i]
		}
	}
	return nil
}

func entityLabels(entityType string) []string {
	labels := []string{"Entity"}
	if entityType != "" {
		labels = append(labels, entityType)
	}
	return labels
}

func snippet(content string) string {
	content = strings.TrimSpace(content)
	if len(content) > 300 {
		content = content[:300]
	}
	return content
}
