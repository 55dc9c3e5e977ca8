package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/paperdesk-backend/internal/config"
	"github.com/yungbote/paperdesk-backend/internal/data/repos/documents"
	"github.com/yungbote/paperdesk-backend/internal/domain"
	"github.com/yungbote/paperdesk-backend/internal/observability"
	"github.com/yungbote/paperdesk-backend/internal/platform/apierr"
	"github.com/yungbote/paperdesk-backend/internal/platform/elastic"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
	"github.com/yungbote/paperdesk-backend/internal/platform/qdrant"
)

// Embedder turns query text into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// VectorSearcher is the slice of the vector store the funnel needs.
type VectorSearcher interface {
	QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]qdrant.Match, error)
}

// LexicalSearcher is the slice of the full-text index the funnel needs.
type LexicalSearcher interface {
	Search(ctx context.Context, userID, documentID, query string, topK int) ([]elastic.Hit, error)
}

// Reranker reorders chunkID->text candidates by relevance to the query and
// returns at most topK chunk IDs, best first.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages map[string]string, topK int) ([]string, error)
}

// GraphExpander supplies concept-graph hints for a user query: an augmented
// query string and a set of graph-related document IDs worth prioritizing.
type GraphExpander interface {
	ExpandQuery(ctx context.Context, userID, query string) (string, []string, error)
}

type Request struct {
	UserID              string
	Query               string
	DocumentID          string
	DocumentIDs         []string
	TopK                int
	SimilarityThreshold float64
}

type Result struct {
	Passages    []domain.Passage
	Context     string
	GraphBiased bool
}

type Service interface {
	Retrieve(ctx context.Context, req Request) (*Result, error)
}

type service struct {
	log      *logger.Logger
	cfg      config.Retrieval
	embedder Embedder
	vectors  VectorSearcher
	lexical  LexicalSearcher
	reranker Reranker
	graph    GraphExpander
	docs     documents.DocumentRepo
}

// NewService wires the retrieval funnel. lexical, reranker, graph and docs
// may be nil; the corresponding stage is skipped.
func NewService(
	log *logger.Logger,
	cfg config.Retrieval,
	embedder Embedder,
	vectors VectorSearcher,
	lexical LexicalSearcher,
	reranker Reranker,
	graph GraphExpander,
	docs documents.DocumentRepo,
) Service {
	return &service{
		log:      log,
		cfg:      cfg,
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		reranker: reranker,
		graph:    graph,
		docs:     docs,
	}
}

const graphPreviewTopK = 3

func (s *service) Retrieve(ctx context.Context, req Request) (*Result, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("rag: query must not be blank")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("rag: user id must not be blank")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	threshold := req.SimilarityThreshold
	if threshold <= 0 {
		threshold = s.cfg.SimilarityThreshold
	}

	if err := s.checkScope(ctx, req); err != nil {
		return nil, err
	}

	scope := scopeFilter(req.DocumentID, req.DocumentIDs)
	explicitScope := req.DocumentID != "" || len(req.DocumentIDs) > 0

	var graphDocIDs []string
	if s.graph != nil && !explicitScope {
		augmented, docIDs, err := s.graph.ExpandQuery(ctx, req.UserID, query)
		if err != nil {
			s.log.Debug("Graph expansion unavailable", "user_id", req.UserID, "error", err)
		} else {
			if strings.TrimSpace(augmented) != "" {
				query = augmented
			}
			graphDocIDs = docIDs
		}
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apierr.Unavailable(fmt.Errorf("rag: embed query: %w", err))
	}
	if len(vecs) == 0 {
		return nil, apierr.Unavailable(fmt.Errorf("rag: embed query: empty response"))
	}
	queryVec := vecs[0]

	// Preview the graph-prioritized scope with a small preview search. Any
	// failure or an empty preview keeps the unrestricted user scope.
	graphBiased := false
	if len(graphDocIDs) > 0 {
		prioritized := map[string]any{"document_id": map[string]any{"$in": graphDocIDs}}
		preview, err := s.vectors.QueryMatches(ctx, req.UserID, queryVec, graphPreviewTopK, prioritized)
		switch {
		case err != nil:
			s.log.Debug("Graph scope preview failed", "user_id", req.UserID, "error", err)
		case len(preview) > 0:
			scope = prioritized
			graphBiased = true
		}
	}

	rerank := s.cfg.RerankEnabled && s.reranker != nil

	if s.lexical != nil {
		expand := 2
		if rerank {
			expand = s.cfg.RerankExpandFactor
		}
		esTopK := s.cfg.VectorTopK * expand
		start := time.Now()
		hits, err := s.lexical.Search(ctx, req.UserID, req.DocumentID, query, esTopK)
		switch {
		case err != nil:
			observeStage("lexical", "error", start, 0)
			incFallback("lexical_error")
			s.log.Warn("Lexical recall failed, falling back to vector-only", "error", err)
			return s.vectorOnly(ctx, req.UserID, queryVec, topK, threshold, scope, graphBiased)
		case len(hits) == 0:
			observeStage("lexical", "ok", start, 0)
			incFallback("lexical_empty")
			return s.vectorOnly(ctx, req.UserID, queryVec, topK, threshold, scope, graphBiased)
		default:
			observeStage("lexical", "ok", start, len(hits))
		}
	}

	refineTopK, refineThreshold := topK, threshold
	if rerank {
		refineTopK = topK * s.cfg.RerankExpandFactor
		refineThreshold = s.cfg.VectorSimilarityThreshold
	}
	candidates, err := s.queryVectors(ctx, req.UserID, queryVec, refineTopK, refineThreshold, scope)
	if err != nil {
		return nil, err
	}

	if rerank && len(candidates) > topK {
		candidates = s.rerankCandidates(ctx, query, candidates, 2*topK)
	} else if len(candidates) > 2*topK {
		candidates = candidates[:2*topK]
	}

	final := diversityFilter(candidates, 2*topK)
	return &Result{
		Passages:    final,
		Context:     buildContext(final, s.cfg.MaxContextChars),
		GraphBiased: graphBiased,
	}, nil
}

// checkScope enforces document ownership before any search runs.
func (s *service) checkScope(ctx context.Context, req Request) error {
	if req.DocumentID == "" || s.docs == nil {
		return nil
	}
	ownerID, err := uuid.Parse(req.UserID)
	if err != nil {
		return apierr.Unauthorized(fmt.Errorf("rag: invalid user id %q", req.UserID))
	}
	docID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		return apierr.NotFound(fmt.Errorf("rag: invalid document id %q", req.DocumentID))
	}
	if _, err := s.docs.GetOwned(ctx, nil, ownerID, docID); err != nil {
		return err
	}
	return nil
}

func (s *service) vectorOnly(
	ctx context.Context,
	userID string,
	queryVec []float32,
	topK int,
	threshold float64,
	scope map[string]any,
	graphBiased bool,
) (*Result, error) {
	passages, err := s.queryVectors(ctx, userID, queryVec, topK, threshold, scope)
	if err != nil {
		return nil, err
	}
	return &Result{
		Passages:    passages,
		Context:     buildContext(passages, s.cfg.MaxContextChars),
		GraphBiased: graphBiased,
	}, nil
}

func (s *service) queryVectors(
	ctx context.Context,
	userID string,
	queryVec []float32,
	topK int,
	threshold float64,
	scope map[string]any,
) ([]domain.Passage, error) {
	start := time.Now()
	matches, err := s.vectors.QueryMatches(ctx, userID, queryVec, topK, scope)
	if err != nil {
		observeStage("vector", "error", start, 0)
		return nil, apierr.Unavailable(fmt.Errorf("rag: vector search: %w", err))
	}
	passages := make([]domain.Passage, 0, len(matches))
	for _, m := range matches {
		if m.Score < threshold {
			continue
		}
		passages = append(passages, passageFromMatch(m))
	}
	observeStage("vector", "ok", start, len(passages))
	return passages, nil
}

func (s *service) rerankCandidates(ctx context.Context, query string, candidates []domain.Passage, target int) []domain.Passage {
	byID := make(map[string]domain.Passage, len(candidates))
	texts := make(map[string]string, len(candidates))
	for _, p := range candidates {
		byID[p.ChunkID] = p
		texts[p.ChunkID] = p.Text
	}

	start := time.Now()
	ids, err := s.reranker.Rerank(ctx, query, texts, target)
	if err != nil {
		observeStage("rerank", "error", start, 0)
		incFallback("rerank_error")
		s.log.Warn("Rerank failed, keeping vector order", "error", err)
		return candidates
	}

	out := make([]domain.Passage, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		observeStage("rerank", "error", start, 0)
		incFallback("rerank_empty")
		return candidates
	}
	observeStage("rerank", "ok", start, len(out))
	return out
}

func scopeFilter(documentID string, documentIDs []string) map[string]any {
	switch {
	case documentID != "":
		return map[string]any{"document_id": documentID}
	case len(documentIDs) > 0:
		return map[string]any{"document_id": map[string]any{"$in": documentIDs}}
	default:
		return nil
	}
}

func passageFromMatch(m qdrant.Match) domain.Passage {
	p := domain.Passage{
		ChunkID:  m.ID,
		Score:    m.Score,
		Metadata: m.Payload,
	}
	if m.Payload != nil {
		p.DocumentID, _ = m.Payload["document_id"].(string)
		p.Title, _ = m.Payload["title"].(string)
		p.Text, _ = m.Payload["text"].(string)
	}
	return p
}

func observeStage(stage, status string, start time.Time, resultCount int) {
	if m := observability.Current(); m != nil {
		m.ObserveRetrievalStage(stage, status, time.Since(start), resultCount)
	}
}

func incFallback(reason string) {
	if m := observability.Current(); m != nil {
		m.IncRetrievalFallback(reason)
	}
}
