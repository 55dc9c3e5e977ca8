package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/paperdesk-backend/internal/platform/envutil"
)

// Retrieval holds the tuning knobs for the retrieval funnel.
//
// VectorWeight and TextWeight are parsed for forward compatibility with a
// weighted fusion stage but are not consumed by the current funnel, which
// refines lexical candidates with vector scores instead of blending them.
type Retrieval struct {
	TopK                      int     `yaml:"top_k"`
	SimilarityThreshold       float64 `yaml:"similarity_threshold"`
	RerankEnabled             bool    `yaml:"rerank_enabled"`
	RerankExpandFactor        int     `yaml:"rerank_expand_factor"`
	VectorTopK                int     `yaml:"vector_top_k"`
	VectorSimilarityThreshold float64 `yaml:"vector_similarity_threshold"`
	VectorWeight              float64 `yaml:"vector_weight"`
	TextWeight                float64 `yaml:"text_weight"`
	MaxContextChars           int     `yaml:"max_context_chars"`
}

func DefaultRetrieval() Retrieval {
	return Retrieval{
		TopK:                      5,
		SimilarityThreshold:       0.3,
		RerankEnabled:             true,
		RerankExpandFactor:        6,
		VectorTopK:                20,
		VectorSimilarityThreshold: 0.25,
		VectorWeight:              0.6,
		TextWeight:                0.4,
		MaxContextChars:           12000,
	}
}

// LoadRetrieval resolves the retrieval config with increasing precedence:
// built-in defaults, then the optional YAML file at RAG_CONFIG_PATH, then
// RAG_* environment variables.
func LoadRetrieval() (Retrieval, error) {
	cfg := DefaultRetrieval()

	if path := strings.TrimSpace(os.Getenv("RAG_CONFIG_PATH")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Retrieval{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		var file struct {
			Retrieval Retrieval `yaml:"retrieval"`
		}
		file.Retrieval = cfg
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Retrieval{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg = file.Retrieval
	}

	cfg.TopK = envutil.Int("RAG_TOP_K", cfg.TopK)
	cfg.SimilarityThreshold = envutil.Float("RAG_SIMILARITY_THRESHOLD", cfg.SimilarityThreshold)
	cfg.RerankEnabled = envutil.Bool("RAG_RERANK_ENABLED", cfg.RerankEnabled)
	cfg.RerankExpandFactor = envutil.Int("RAG_RERANK_EXPAND_FACTOR", cfg.RerankExpandFactor)
	cfg.VectorTopK = envutil.Int("RAG_VECTOR_TOP_K", cfg.VectorTopK)
	cfg.VectorSimilarityThreshold = envutil.Float("RAG_VECTOR_SIMILARITY_THRESHOLD", cfg.VectorSimilarityThreshold)
	cfg.VectorWeight = envutil.Float("RAG_VECTOR_WEIGHT", cfg.VectorWeight)
	cfg.TextWeight = envutil.Float("RAG_TEXT_WEIGHT", cfg.TextWeight)
	cfg.MaxContextChars = envutil.Int("RAG_MAX_CONTEXT_CHARS", cfg.MaxContextChars)

	if err := cfg.Validate(); err != nil {
		return Retrieval{}, err
	}
	return cfg, nil
}

func (c Retrieval) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("config: top_k must be positive, got %d", c.TopK)
	}
	if c.RerankExpandFactor <= 0 {
		return fmt.Errorf("config: rerank_expand_factor must be positive, got %d", c.RerankExpandFactor)
	}
	if c.VectorTopK <= 0 {
		return fmt.Errorf("config: vector_top_k must be positive, got %d", c.VectorTopK)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("config: similarity_threshold out of range: %v", c.SimilarityThreshold)
	}
	if c.VectorSimilarityThreshold < 0 || c.VectorSimilarityThreshold > 1 {
		return fmt.Errorf("config: vector_similarity_threshold out of range: %v", c.VectorSimilarityThreshold)
	}
	if c.MaxContextChars <= 0 {
		return fmt.Errorf("config: max_context_chars must be positive, got %d", c.MaxContextChars)
	}
	return nil
}
