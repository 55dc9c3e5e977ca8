package kg

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/paperdesk-backend/internal/domain"
	"github.com/yungbote/paperdesk-backend/internal/observability"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
)

// GraphStore is the write surface the builder needs from the concept graph.
type GraphStore interface {
	UpsertConcepts(ctx context.Context, concepts []domain.Concept) (int, error)
	UpsertDocument(ctx context.Context, doc domain.DocumentNode) error
	MergeContains(ctx context.Context, documentID string, concepts []domain.Concept) error
	MergeRelatedTo(ctx context.Context, relations []domain.ConceptRelation) (int, error)
	MergeHierarchy(ctx context.Context, relations []domain.ConceptHierarchy) (int, error)
	MergeAuthors(ctx context.Context, documentID string, authors []domain.Author) (int, error)
	LinkSimilarDocuments(ctx context.Context, documentID, userID string) ([]domain.DocumentSimilarity, error)
	DeleteDocumentGraph(ctx context.Context, documentID string) error
}

type BuildRequest struct {
	DocumentID      string
	Title           string
	Content         string
	UserID          string
	KnowledgeBaseID string
	DocType         string
}

// excerpt bounds keep extraction prompts inside the model context window
const (
	conceptExcerptLimit = 8000
	authorExcerptLimit  = 3000
)

type Builder struct {
	log       *logger.Logger
	store     GraphStore
	extractor Extractor
}

func NewBuilder(log *logger.Logger, store GraphStore, extractor Extractor) *Builder {
	return &Builder{log: log, store: store, extractor: extractor}
}

// BuildForDocument extracts concepts from the document and merges them into
// the knowledge graph. Only the initial concept extraction is fatal; every
// later stage fails soft, shrinking the counts but keeping success true.
func (b *Builder) BuildForDocument(ctx context.Context, req BuildRequest) *domain.GraphBuildResult {
	start := time.Now()
	result := &domain.GraphBuildResult{DocumentID: req.DocumentID}

	excerpt := clipRunes(req.Title+"\n\n"+req.Content, conceptExcerptLimit)

	stageStart := time.Now()
	concepts, err := b.extractor.ExtractConcepts(ctx, excerpt)
	if err != nil {
		observeBuildStage("extract_concepts", "error", stageStart)
		incGraphBuild(true)
		b.log.Error("Concept extraction failed", "document_id", req.DocumentID, "error", err)
		result.ErrorMessage = err.Error()
		result.Elapsed = time.Since(start)
		return result
	}
	observeBuildStage("extract_concepts", "ok", stageStart)
	result.Success = true

	stageStart = time.Now()
	if newCount, err := b.store.UpsertConcepts(ctx, concepts); err != nil {
		observeBuildStage("upsert_concepts", "error", stageStart)
		b.log.Warn("Concept upsert failed", "document_id", req.DocumentID, "error", err)
	} else {
		observeBuildStage("upsert_concepts", "ok", stageStart)
		result.ConceptCount = len(concepts)
		result.NewConceptCount = newCount
	}

	stageStart = time.Now()
	node := domain.DocumentNode{
		DocumentID:      req.DocumentID,
		Title:           req.Title,
		Type:            req.DocType,
		UserID:          req.UserID,
		KnowledgeBaseID: req.KnowledgeBaseID,
		CreateTime:      time.Now().UTC(),
	}
	if err := b.store.UpsertDocument(ctx, node); err != nil {
		observeBuildStage("upsert_document", "error", stageStart)
		b.log.Warn("Document node upsert failed", "document_id", req.DocumentID, "error", err)
	} else {
		observeBuildStage("upsert_document", "ok", stageStart)
	}

	stageStart = time.Now()
	if err := b.store.MergeContains(ctx, req.DocumentID, concepts); err != nil {
		observeBuildStage("merge_contains", "error", stageStart)
		b.log.Warn("CONTAINS merge failed", "document_id", req.DocumentID, "error", err)
	} else {
		observeBuildStage("merge_contains", "ok", stageStart)
	}

	names := make([]string, 0, len(concepts))
	for _, c := range concepts {
		names = append(names, c.Name)
	}

	// Enrichment stages are independent; each swallows its own failure so a
	// bad relation inference never costs us the hierarchy or authors.
	var relatedCount, hierarchyCount int
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		relatedCount = b.buildRelations(ctx, req.DocumentID, names)
		return nil
	})
	g.Go(func() error {
		hierarchyCount = b.buildHierarchy(ctx, req.DocumentID, names)
		return nil
	})
	g.Go(func() error {
		b.buildAuthors(ctx, req)
		return nil
	})
	_ = g.Wait()
	result.RelationshipCount = relatedCount + hierarchyCount

	stageStart = time.Now()
	if _, err := b.store.LinkSimilarDocuments(ctx, req.DocumentID, req.UserID); err != nil {
		observeBuildStage("link_similar", "error", stageStart)
		b.log.Warn("SIMILAR_TO linkage failed", "document_id", req.DocumentID, "error", err)
	} else {
		observeBuildStage("link_similar", "ok", stageStart)
	}

	incGraphBuild(false)
	result.Elapsed = time.Since(start)
	b.log.Info("Knowledge graph build finished",
		"document_id", req.DocumentID,
		"concepts", result.ConceptCount,
		"new_concepts", result.NewConceptCount,
		"relationships", result.RelationshipCount,
		"elapsed", result.Elapsed,
	)
	return result
}

func (b *Builder) buildRelations(ctx context.Context, documentID string, names []string) int {
	stageStart := time.Now()
	relations, err := b.extractor.ExtractRelations(ctx, names)
	if err != nil {
		observeBuildStage("extract_relations", "error", stageStart)
		b.log.Warn("Relation inference failed", "document_id", documentID, "error", err)
		return 0
	}
	merged, err := b.store.MergeRelatedTo(ctx, relations)
	if err != nil {
		observeBuildStage("extract_relations", "error", stageStart)
		b.log.Warn("RELATED_TO merge failed", "document_id", documentID, "error", err)
		return 0
	}
	observeBuildStage("extract_relations", "ok", stageStart)
	return merged
}

func (b *Builder) buildHierarchy(ctx context.Context, documentID string, names []string) int {
	stageStart := time.Now()
	pairs, err := b.extractor.ExtractHierarchy(ctx, names)
	if err != nil {
		observeBuildStage("extract_hierarchy", "error", stageStart)
		b.log.Warn("Hierarchy inference failed", "document_id", documentID, "error", err)
		return 0
	}
	merged, err := b.store.MergeHierarchy(ctx, pairs)
	if err != nil {
		observeBuildStage("extract_hierarchy", "error", stageStart)
		b.log.Warn("IS_A merge failed", "document_id", documentID, "error", err)
		return 0
	}
	observeBuildStage("extract_hierarchy", "ok", stageStart)
	return merged
}

func (b *Builder) buildAuthors(ctx context.Context, req BuildRequest) {
	stageStart := time.Now()
	excerpt := clipRunes(req.Title+"\n\n"+req.Content, authorExcerptLimit)
	authors, err := b.extractor.ExtractAuthors(ctx, excerpt)
	if err != nil {
		observeBuildStage("extract_authors", "error", stageStart)
		b.log.Warn("Author extraction failed", "document_id", req.DocumentID, "error", err)
		return
	}
	if _, err := b.store.MergeAuthors(ctx, req.DocumentID, authors); err != nil {
		observeBuildStage("extract_authors", "error", stageStart)
		b.log.Warn("AUTHORED_BY merge failed", "document_id", req.DocumentID, "error", err)
		return
	}
	observeBuildStage("extract_authors", "ok", stageStart)
}

// DeleteForDocument removes the document node and its edges. Shared concept
// and author nodes stay.
func (b *Builder) DeleteForDocument(ctx context.Context, documentID string) error {
	return b.store.DeleteDocumentGraph(ctx, documentID)
}

func clipRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func observeBuildStage(stage, status string, start time.Time) {
	if m := observability.Current(); m != nil {
		m.ObserveGraphBuildStage(stage, status, time.Since(start))
	}
}

func incGraphBuild(failed bool) {
	if m := observability.Current(); m != nil {
		m.IncGraphBuild(failed)
	}
}
