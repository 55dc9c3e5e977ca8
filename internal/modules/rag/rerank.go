package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/paperdesk-backend/internal/platform/apierr"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
	"github.com/yungbote/paperdesk-backend/internal/platform/openai"
)

const rerankSystem = "You rank document passages by how well they answer a query. " +
	"Respond with passage ids ordered from most to least relevant. " +
	"Only return ids that were given to you."

const rerankPassageEvidenceLimit = 600

type llmReranker struct {
	log *logger.Logger
	llm openai.Client
}

func NewLLMReranker(log *logger.Logger, llm openai.Client) Reranker {
	return &llmReranker{log: log, llm: llm}
}

func (r *llmReranker) Rerank(ctx context.Context, query string, passages map[string]string, topK int) ([]string, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = len(passages)
	}

	ids := make([]string, 0, len(passages))
	for id := range passages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nPassages:\n", query)
	for _, id := range ids {
		fmt.Fprintf(&sb, "id: %s\n%s\n\n", id, truncateRunes(strings.TrimSpace(passages[id]), rerankPassageEvidenceLimit))
	}
	fmt.Fprintf(&sb, "Return the ids of the %d most relevant passages, most relevant first.", topK)

	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"ranking"},
		"properties": map[string]any{
			"ranking": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	}

	out, err := r.llm.GenerateJSON(ctx, rerankSystem, sb.String(), "passage_ranking", schema)
	if err != nil {
		return nil, err
	}
	raw, ok := out["ranking"].([]any)
	if !ok {
		return nil, apierr.New(502, apierr.CodeMalformedOutput, fmt.Errorf("rerank: missing ranking array"))
	}

	ordered := make([]string, 0, topK)
	for _, item := range raw {
		id, ok := item.(string)
		if !ok || strings.TrimSpace(id) == "" {
			continue
		}
		ordered = append(ordered, id)
		if len(ordered) >= topK {
			break
		}
	}
	return ordered, nil
}
