package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/paperdesk-backend/internal/observability"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
	"github.com/yungbote/paperdesk-backend/internal/platform/openai"
)

const (
	defaultMaxConcepts = 5
	maxConceptLen      = 50
	promptTextLimit    = 4000
)

const extractSystem = "You extract the key technical concepts from text. " +
	"Return short concept names in order of relevance, most relevant first."

// ConceptExtractor pulls concept keywords out of free text. Extraction is
// best-effort: any LLM or parse failure yields an empty list.
type ConceptExtractor interface {
	Extract(ctx context.Context, text string, maxConcepts int) []string
}

type conceptExtractor struct {
	log   *logger.Logger
	llm   openai.Client
	cache Cache
}

func NewConceptExtractor(log *logger.Logger, llm openai.Client, cache Cache) ConceptExtractor {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &conceptExtractor{log: log, llm: llm, cache: cache}
}

func (e *conceptExtractor) Extract(ctx context.Context, text string, maxConcepts int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxConcepts <= 0 {
		maxConcepts = defaultMaxConcepts
	}

	// Identical (text, maxConcepts) pairs hit the same key; the input is
	// hashed as-is, no normalization.
	key := cacheKey(text, maxConcepts)
	if values, ok := e.cache.Get(ctx, key); ok {
		incCache(true)
		return values
	}
	incCache(false)

	user := fmt.Sprintf(
		"Extract up to %d key concepts from the following text. Each concept must be at most %d characters.\n\n%s",
		maxConcepts, maxConceptLen, clipRunes(text, promptTextLimit),
	)
	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"concepts"},
		"properties": map[string]any{
			"concepts": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	}

	out, err := e.llm.GenerateJSON(ctx, extractSystem, user, "concept_list", schema)
	if err != nil {
		e.log.Warn("Concept extraction failed", "error", err)
		return nil
	}
	raw, ok := out["concepts"].([]any)
	if !ok {
		e.log.Warn("Concept extraction returned no concepts array")
		return nil
	}

	concepts := make([]string, 0, maxConcepts)
	seen := make(map[string]bool, maxConcepts)
	for _, item := range raw {
		name, ok := item.(string)
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" || utf8.RuneCountInString(name) > maxConceptLen || seen[name] {
			continue
		}
		seen[name] = true
		concepts = append(concepts, name)
		if len(concepts) >= maxConcepts {
			break
		}
	}

	e.cache.Set(ctx, key, concepts)
	return concepts
}

func cacheKey(text string, maxConcepts int) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("concept_extract:%d:%s", maxConcepts, hex.EncodeToString(sum[:]))
}

func clipRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func incCache(hit bool) {
	if m := observability.Current(); m != nil {
		m.IncConceptCache(hit)
	}
}
