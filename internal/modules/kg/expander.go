package kg

import (
	"context"
	"strings"

	"github.com/yungbote/paperdesk-backend/internal/domain"
	"github.com/yungbote/paperdesk-backend/internal/modules/rag/extract"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
)

// GraphReader is the read surface the expander and visualizer need from the
// concept graph.
type GraphReader interface {
	FindDocumentsByConceptNetwork(ctx context.Context, concepts []string, userID string, maxDepth int) ([]string, error)
	FindConceptByName(ctx context.Context, name string) (*domain.Concept, error)
	FindRelatedConcepts(ctx context.Context, name string, depth, limit int) ([]domain.Concept, error)
	GetDocumentNode(ctx context.Context, documentID string) (*domain.DocumentNode, error)
	ListUserDocuments(ctx context.Context, userID string, limit int) ([]domain.DocumentNode, error)
	ListKnowledgeBaseDocuments(ctx context.Context, userID, knowledgeBaseID string, limit int) ([]domain.DocumentNode, error)
	TopConcepts(ctx context.Context, userID string, limit int) ([]string, error)
	DocumentConcepts(ctx context.Context, documentID string, limit int) ([]domain.Concept, error)
}

const (
	queryConceptLimit = 5
	expansionDepth    = 2
)

// QueryExpander turns a user query into graph hints: an augmented query and
// the ids of documents reachable through the concept network.
type QueryExpander struct {
	log       *logger.Logger
	store     GraphReader
	extractor extract.ConceptExtractor
}

func NewQueryExpander(log *logger.Logger, store GraphReader, extractor extract.ConceptExtractor) *QueryExpander {
	return &QueryExpander{log: log, store: store, extractor: extractor}
}

func (e *QueryExpander) ExpandQuery(ctx context.Context, userID, query string) (string, []string, error) {
	concepts := e.extractor.Extract(ctx, query, queryConceptLimit)
	if len(concepts) == 0 {
		return "", nil, nil
	}

	docIDs, err := e.store.FindDocumentsByConceptNetwork(ctx, concepts, userID, expansionDepth)
	if err != nil {
		return "", nil, err
	}

	// Append concept keywords not already present in the query text.
	extras := make([]string, 0, len(concepts))
	lowered := strings.ToLower(query)
	for _, c := range concepts {
		if !strings.Contains(lowered, strings.ToLower(c)) {
			extras = append(extras, c)
		}
	}
	augmented := query
	if len(extras) > 0 {
		augmented = query + " " + strings.Join(extras, " ")
	}
	return augmented, docIDs, nil
}
