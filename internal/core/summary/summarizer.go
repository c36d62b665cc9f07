package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/strata/internal/config"
	"github.com/agenthands/strata/internal/core/common"
	"github.com/agenthands/strata/internal/core/dedupe"
	"github.com/agenthands/strata/internal/core/model"
	"github.com/agenthands/strata/internal/llm"
)

const defaultNodesPrompt = `Update the entity summary with the new mentions.
Keep it factual and under three sentences; drop the oldest details first when
space runs out.

Current summary: %s

New mentions:
%s

Return a JSON object: {"summary": "..."}`

const defaultCommunitiesPrompt = `Summarize what connects the following entities in two or three sentences.

%s

Return a JSON object: {"summary": "..."}`

const defaultCommunityNamePrompt = `Give a short descriptive name (at most five words) for a group of entities described as:

%s

Return a JSON object: {"name": "..."}`

type Summarizer struct {
	LLM     llm.LLMClient
	Prompts config.SummaryPrompts
}

func NewSummarizer(llmClient llm.LLMClient, prompts config.SummaryPrompts) *Summarizer {
	return &Summarizer{LLM: llmClient, Prompts: prompts}
}

// SummarizeNode folds new mentions into a node summary. Without a language
// client the mentions are folded verbatim, bounded-length.
func (s *Summarizer) SummarizeNode(ctx context.Context, node model.EntityNode, newMentions []string) (string, error) {
	if s.LLM == nil {
		summary := node.Summary
		for _, m := range newMentions {
			summary = dedupe.FoldMention(summary, m)
		}
		return summary, nil
	}

	var mentions strings.Builder
	for _, m := range newMentions {
		fmt.Fprintf(&mentions, "- %s\n", m)
	}

	tmpl := s.Prompts.Nodes
	if tmpl == "" {
		tmpl = defaultNodesPrompt
	}
	prompt := fmt.Sprintf(tmpl, node.Summary, mentions.String())

	response, err := s.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	result, err := common.ParseJSON[model.EntitySummary](response)
	if err != nil {
		return "", fmt.Errorf("failed to parse summary result: %w", err)
	}
	return result.Summary, nil
}

// SummarizeCommunity map-reduces member summaries into one community summary,
// chunking recursively when the member list outgrows a single call.
func (s *Summarizer) SummarizeCommunity(ctx context.Context, nodes []model.EntityNode) (string, error) {
	const chunkSize = 20

	if len(nodes) <= chunkSize {
		var summaries strings.Builder
		for _, n := range nodes {
			if n.Summary != "" {
				fmt.Fprintf(&summaries, "- %s: %s\n", n.Name, n.Summary)
			} else {
				fmt.Fprintf(&summaries, "- %s\n", n.Name)
			}
		}
		if summaries.Len() == 0 {
			return "No significant information.", nil
		}

		tmpl := s.Prompts.Communities
		if tmpl == "" {
			tmpl = defaultCommunitiesPrompt
		}
		response, err := s.LLM.Generate(ctx, fmt.Sprintf(tmpl, summaries.String()))
		if err != nil {
			return "", fmt.Errorf("failed to generate community summary: %w", err)
		}

		if result, err := common.ParseJSON[model.EntitySummary](response); err == nil {
			return result.Summary, nil
		}
		return response, nil
	}

	var intermediate []model.EntityNode
	for i := 0; i < len(nodes); i += chunkSize {
		end := i + chunkSize
		if end > len(nodes) {
			end = len(nodes)
		}
		chunkSummary, err := s.SummarizeCommunity(ctx, nodes[i:end])
		if err != nil {
			continue
		}
		intermediate = append(intermediate, model.EntityNode{
			Name:    fmt.Sprintf("Part %d", len(intermediate)+1),
			Summary: chunkSummary,
		})
	}
	if len(intermediate) == 0 {
		return "", fmt.Errorf("failed to summarize any community chunk")
	}

	return s.SummarizeCommunity(ctx, intermediate)
}

func (s *Summarizer) GenerateCommunityName(ctx context.Context, summary string) (string, error) {
	tmpl := s.Prompts.CommunityName
	if tmpl == "" {
		tmpl = defaultCommunityNamePrompt
	}

	response, err := s.LLM.Generate(ctx, fmt.Sprintf(tmpl, summary))
	if err != nil {
		return "", fmt.Errorf("failed to generate community name: %w", err)
	}

	if result, err := common.ParseJSON[model.CommunityName](response); err == nil {
		return result.Name, nil
	}
	return strings.TrimSpace(response), nil
}
