package kg

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/paperdesk-backend/internal/domain"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
	"github.com/yungbote/paperdesk-backend/internal/platform/openai"
)

// Extractor runs the schema-constrained LLM calls the graph builder needs.
type Extractor interface {
	ExtractConcepts(ctx context.Context, text string) ([]domain.Concept, error)
	ExtractRelations(ctx context.Context, conceptNames []string) ([]domain.ConceptRelation, error)
	ExtractHierarchy(ctx context.Context, conceptNames []string) ([]domain.ConceptHierarchy, error)
	ExtractAuthors(ctx context.Context, text string) ([]domain.Author, error)
}

type llmExtractor struct {
	log *logger.Logger
	llm openai.Client
}

func NewLLMExtractor(log *logger.Logger, llm openai.Client) Extractor {
	return &llmExtractor{log: log, llm: llm}
}

const conceptExtractionSystem = "You analyze academic and technical documents and extract their key concepts. " +
	"Concept names are short noun phrases. importance and confidence are between 0 and 1."

func (e *llmExtractor) ExtractConcepts(ctx context.Context, text string) ([]domain.Concept, error) {
	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"concepts"},
		"properties": map[string]any{
			"concepts": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"name", "type", "field", "description", "importance", "frequency", "confidence"},
					"properties": map[string]any{
						"name":        map[string]any{"type": "string"},
						"type":        map[string]any{"type": "string"},
						"field":       map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"importance":  map[string]any{"type": "number"},
						"frequency":   map[string]any{"type": "integer"},
						"confidence":  map[string]any{"type": "number"},
					},
				},
			},
		},
	}
	user := "Extract the key concepts from this document:\n\n" + text
	out, err := e.llm.GenerateJSON(ctx, conceptExtractionSystem, user, "document_concepts", schema)
	if err != nil {
		return nil, err
	}
	raw, ok := out["concepts"].([]any)
	if !ok {
		return nil, fmt.Errorf("concept extraction: missing concepts array")
	}
	concepts := make([]domain.Concept, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := domain.Concept{
			Name:        asString(obj["name"]),
			Type:        asString(obj["type"]),
			Field:       asString(obj["field"]),
			Description: asString(obj["description"]),
			Importance:  asFloat(obj["importance"]),
			Frequency:   int64(asFloat(obj["frequency"])),
			Confidence:  asFloat(obj["confidence"]),
		}
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		concepts = append(concepts, c)
	}
	return concepts, nil
}

const relationExtractionSystem = "You infer semantic relations between concepts. " +
	"relationType is a short verb phrase; strength is between 0 and 1. " +
	"Only relate concepts from the given list."

func (e *llmExtractor) ExtractRelations(ctx context.Context, conceptNames []string) ([]domain.ConceptRelation, error) {
	if len(conceptNames) < 2 {
		return nil, nil
	}
	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"relations"},
		"properties": map[string]any{
			"relations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"concept1", "concept2", "relationType", "strength"},
					"properties": map[string]any{
						"concept1":     map[string]any{"type": "string"},
						"concept2":     map[string]any{"type": "string"},
						"relationType": map[string]any{"type": "string"},
						"strength":     map[string]any{"type": "number"},
					},
				},
			},
		},
	}
	user := "Infer pairwise relations between these concepts:\n" + strings.Join(conceptNames, ", ")
	out, err := e.llm.GenerateJSON(ctx, relationExtractionSystem, user, "concept_relations", schema)
	if err != nil {
		return nil, err
	}
	raw, ok := out["relations"].([]any)
	if !ok {
		return nil, fmt.Errorf("relation extraction: missing relations array")
	}
	relations := make([]domain.ConceptRelation, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		r := domain.ConceptRelation{
			Concept1:     asString(obj["concept1"]),
			Concept2:     asString(obj["concept2"]),
			RelationType: asString(obj["relationType"]),
			Strength:     asFloat(obj["strength"]),
		}
		if r.Concept1 == "" || r.Concept2 == "" {
			continue
		}
		relations = append(relations, r)
	}
	return relations, nil
}

const hierarchyExtractionSystem = "You infer is-a hierarchies between concepts. " +
	"Only use concepts from the given list; child is the more specific concept."

func (e *llmExtractor) ExtractHierarchy(ctx context.Context, conceptNames []string) ([]domain.ConceptHierarchy, error) {
	if len(conceptNames) < 2 {
		return nil, nil
	}
	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"hierarchy"},
		"properties": map[string]any{
			"hierarchy": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"child", "parent", "confidence"},
					"properties": map[string]any{
						"child":      map[string]any{"type": "string"},
						"parent":     map[string]any{"type": "string"},
						"confidence": map[string]any{"type": "number"},
					},
				},
			},
		},
	}
	user := "Infer is-a relationships among these concepts:\n" + strings.Join(conceptNames, ", ")
	out, err := e.llm.GenerateJSON(ctx, hierarchyExtractionSystem, user, "concept_hierarchy", schema)
	if err != nil {
		return nil, err
	}
	raw, ok := out["hierarchy"].([]any)
	if !ok {
		return nil, fmt.Errorf("hierarchy extraction: missing hierarchy array")
	}
	pairs := make([]domain.ConceptHierarchy, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		h := domain.ConceptHierarchy{
			Child:      asString(obj["child"]),
			Parent:     asString(obj["parent"]),
			Confidence: asFloat(obj["confidence"]),
		}
		if h.Child == "" || h.Parent == "" || h.Child == h.Parent {
			continue
		}
		pairs = append(pairs, h)
	}
	return pairs, nil
}

const authorExtractionSystem = "You extract author records from document headers. " +
	"Leave affiliation or email empty when the text does not state them."

func (e *llmExtractor) ExtractAuthors(ctx context.Context, text string) ([]domain.Author, error) {
	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"authors"},
		"properties": map[string]any{
			"authors": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"name", "affiliation", "email"},
					"properties": map[string]any{
						"name":        map[string]any{"type": "string"},
						"affiliation": map[string]any{"type": "string"},
						"email":       map[string]any{"type": "string"},
					},
				},
			},
		},
	}
	user := "Extract the authors from this document excerpt:\n\n" + text
	out, err := e.llm.GenerateJSON(ctx, authorExtractionSystem, user, "document_authors", schema)
	if err != nil {
		return nil, err
	}
	raw, ok := out["authors"].([]any)
	if !ok {
		return nil, fmt.Errorf("author extraction: missing authors array")
	}
	authors := make([]domain.Author, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		a := domain.Author{
			Name:        asString(obj["name"]),
			Affiliation: asString(obj["affiliation"]),
			Email:       asString(obj["email"]),
		}
		if strings.TrimSpace(a.Name) == "" {
			continue
		}
		authors = append(authors, a)
	}
	return authors, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asFloat(v any) float64 {
	switch typed := v.(type) {
	case float64:
		return typed
	case float32:
		return float64(typed)
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	default:
		return 0
	}
}
