package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/strata/internal/config"
	"github.com/agenthands/strata/internal/core/common"
	"github.com/agenthands/strata/internal/core/model"
	"github.com/agenthands/strata/internal/llm"
)

const defaultNodesPrompt = `You extract entities from text for a knowledge graph.

<ENTITY TYPES>
%s
</ENTITY TYPES>

<PREVIOUS EPISODES>
%s
</PREVIOUS EPISODES>

<CURRENT EPISODE>
%s
</CURRENT EPISODE>

Extract the entities explicitly mentioned in the CURRENT EPISODE. Use the
previous episodes only to resolve references like pronouns.
Return a JSON object:
{"extracted_entities": [{"name": "...", "entity_type": "...", "attributes": {}}]}
Use an empty entity_type when none of the declared types fits.`

const defaultEdgesPrompt = `You extract relationships between entities for a knowledge graph.

<ENTITIES>
%s
</ENTITIES>

<EPISODE>
%s
</EPISODE>

Extract factual relationships between the listed entities that the episode
supports. Each fact must be a single self-contained statement.
Return a JSON object:
{"extracted_edges": [{"source_entity_name": "...", "target_entity_name": "...",
"relation_type": "UPPER_SNAKE_CASE", "fact": "...", "valid_at": "RFC3339 or empty"}]}
Set valid_at only when the episode states when the fact became true.`

// Extractor turns episode content into candidate entities and relationships
// via the language capability.
type Extractor struct {
	LLM     llm.LLMClient
	Prompts config.ExtractionPrompts
}

func NewExtractor(llmClient llm.LLMClient, prompts config.ExtractionPrompts) *Extractor {
	return &Extractor{
		LLM:     llmClient,
		Prompts: prompts,
	}
}

func (e *Extractor) ExtractNodes(ctx context.Context, content string, schema model.EntityTypeSchema, previousEpisodes []string) ([]model.ExtractedEntity, error) {
	tmpl := e.Prompts.Nodes
	if tmpl == "" {
		tmpl = defaultNodesPrompt
	}
	prompt := fmt.Sprintf(tmpl, describeSchema(schema), strings.Join(previousEpisodes, "\n---\n"), content)

	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExtraction, err)
	}

	result, err := common.ParseJSON[model.ExtractedEntities](response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExtraction, err)
	}

	var entities []model.ExtractedEntity
	for _, ent := range result.ExtractedEntities {
		if strings.TrimSpace(ent.Name) == "" {
			continue
		}
		entities = append(entities, ent)
	}
	return entities, nil
}

func (e *Extractor) ExtractEdges(ctx context.Context, content string, entities []model.EntityNode) ([]model.ExtractedEdge, error) {
	if len(entities) < 2 {
		return nil, nil
	}

	var entityContext strings.Builder
	for _, n := range entities {
		fmt.Fprintf(&entityContext, "- %s\n", n.Name)
	}

	tmpl := e.Prompts.Edges
	if tmpl == "" {
		tmpl = defaultEdgesPrompt
	}
	prompt := fmt.Sprintf(tmpl, entityContext.String(), content)

	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExtraction, err)
	}

	result, err := common.ParseJSON[model.ExtractedEdges](response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExtraction, err)
	}

	var edges []model.ExtractedEdge
	for _, edge := range result.ExtractedEdges {
		if edge.SourceName == "" || edge.TargetName == "" || edge.Fact == "" {
			continue
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func describeSchema(schema model.EntityTypeSchema) string {
	if len(schema) == 0 {
		return "Person, Organization, Place, Event, Thing"
	}
	var b strings.Builder
	for name, spec := range schema {
		if spec.Description != "" {
			fmt.Fprintf(&b, "- %s: %s\n", name, spec.Description)
		} else {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	return b.String()
}
