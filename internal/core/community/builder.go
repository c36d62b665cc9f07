package community

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/strata/internal/core/model"
	"github.com/agenthands/strata/internal/core/summary"
	"github.com/agenthands/strata/internal/driver"
	"github.com/agenthands/strata/internal/llm"
	"github.com/agenthands/strata/internal/logger"
)

type Detector interface {
	Detect(nodes []model.EntityNode, edges []model.EntityEdge) ([][]model.EntityNode, error)
}

// Builder rebuilds the community layer for a group: cluster, summarize, name,
// embed, persist. It runs outside the hot ingestion path.
type Builder struct {
	Driver     driver.GraphDriver
	Detector   Detector
	Summarizer *summary.Summarizer
	Embedder   llm.EmbedderClient
}

func NewBuilder(d driver.GraphDriver, s *summary.Summarizer, embedder llm.EmbedderClient) *Builder {
	return &Builder{
		Driver:     d,
		Detector:   NewLabelPropagationDetector(),
		Summarizer: s,
		Embedder:   embedder,
	}
}

func (b *Builder) Build(ctx context.Context, groupID string) ([]model.CommunityNode, error) {
	nodes, err := b.loadGroupNodes(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group nodes: %w", err)
	}
	edges, err := b.loadGroupEdges(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group edges: %w", err)
	}

	// Only currently-valid relationships shape community structure.
	now := time.Now().UTC()
	var validEdges []model.EntityEdge
	for _, e := range edges {
		if e.IsCurrentlyValid(now) {
			validEdges = append(validEdges, e)
		}
	}

	clusters, err := b.Detector.Detect(nodes, validEdges)
	if err != nil {
		return nil, fmt.Errorf("community detection failed: %w", err)
	}

	var communities []model.CommunityNode
	for _, cluster := range clusters {
		community, queries, err := b.buildOne(ctx, groupID, cluster, now)
		if err != nil {
			logger.Get().Warn("skipping community", zap.String("group_id", groupID), zap.Error(err))
			continue
		}
		if err := b.Driver.ExecuteBatch(ctx, queries); err != nil {
			return communities, fmt.Errorf("failed to persist community %s: %w", community.UUID, err)
		}
		communities = append(communities, *community)
	}
	return communities, nil
}

func (b *Builder) buildOne(ctx context.Context, groupID string, cluster []model.EntityNode, now time.Time) (*model.CommunityNode, []driver.Query, error) {
	communitySummary, err := b.Summarizer.SummarizeCommunity(ctx, cluster)
	if err != nil {
		return nil, nil, err
	}
	name, err := b.Summarizer.GenerateCommunityName(ctx, communitySummary)
	if err != nil || name == "" {
		name = cluster[0].Name + " cluster"
	}

	community := &model.CommunityNode{
		UUID:      uuid.New().String(),
		Name:      name,
		GroupID:   groupID,
		CreatedAt: now,
		Summary:   communitySummary,
	}
	if b.Embedder != nil {
		if vec, err := b.Embedder.Embed(ctx, name+" "+communitySummary); err == nil {
			community.NameEmbedding = vec
		}
	}

	queries := []driver.Query{{
		Cypher: driver.SaveCommunityNodeQuery,
		Params: map[string]interface{}{
			"uuid":           community.UUID,
			"name":           community.Name,
			"group_id":       community.GroupID,
			"created_at":     community.CreatedAt.Format(time.RFC3339),
			"summary":        community.Summary,
			"name_embedding": community.NameEmbedding,
		},
	}}
	for _, member := range cluster {
		queries = append(queries, driver.Query{
			Cypher: driver.SaveCommunityEdgeQuery,
			Params: map[string]interface{}{
				"uuid":        uuid.New().String(),
				"source_uuid": community.UUID,
				"target_uuid": member.UUID,
				"group_id":    groupID,
				"created_at":  now.Format(time.RFC3339),
			},
		})
	}
	return community, queries, nil
}

func (b *Builder) loadGroupNodes(ctx context.Context, groupID string) ([]model.EntityNode, error) {
	res, err := b.Driver.ExecuteQuery(ctx, driver.GetGroupNodesQuery, map[string]interface{}{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	var nodes []model.EntityNode
	for _, rec := range res.Records {
		nodes = append(nodes, model.EntityNode{
			UUID:          driver.RecordString(rec, "uuid"),
			Name:          driver.RecordString(rec, "name"),
			Summary:       driver.RecordString(rec, "summary"),
			Labels:        driver.RecordStrings(rec, "labels"),
			NameEmbedding: driver.RecordVector(rec, "name_embedding"),
			GroupID:       groupID,
		})
	}
	return nodes, nil
}

func (b *Builder) loadGroupEdges(ctx context.Context, groupID string) ([]model.EntityEdge, error) {
	res, err := b.Driver.ExecuteQuery(ctx, driver.GetGroupEdgesQuery, map[string]interface{}{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	var edges []model.EntityEdge
	for _, rec := range res.Records {
		edges = append(edges, model.EntityEdge{
			UUID:       driver.RecordString(rec, "uuid"),
			SourceUUID: driver.RecordString(rec, "source_uuid"),
			TargetUUID: driver.RecordString(rec, "target_uuid"),
			Name:       driver.RecordString(rec, "name"),
			Fact:       driver.RecordString(rec, "fact"),
			ValidAt:    driver.RecordTime(rec, "valid_at"),
			InvalidAt:  driver.RecordTime(rec, "invalid_at"),
			GroupID:    groupID,
		})
	}
	return edges, nil
}
