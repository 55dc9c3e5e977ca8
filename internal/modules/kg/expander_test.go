package kg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/paperdesk-backend/internal/domain"
)

type fakeConceptExtractor struct {
	concepts []string
}

func (f *fakeConceptExtractor) Extract(ctx context.Context, text string, maxConcepts int) []string {
	if len(f.concepts) > maxConcepts {
		return f.concepts[:maxConcepts]
	}
	return f.concepts
}

type fakeGraphReader struct {
	networkDocs []string
	networkErr  error
	lastDepth   int
	lastSeeds   []string

	concepts map[string]*domain.Concept
	related  map[string][]domain.Concept
	docNodes map[string]*domain.DocumentNode
	userDocs []domain.DocumentNode
	kbDocs   []domain.DocumentNode
	top      []string
	docLinks map[string][]domain.Concept
}

func (f *fakeGraphReader) FindDocumentsByConceptNetwork(ctx context.Context, concepts []string, userID string, maxDepth int) ([]string, error) {
	f.lastSeeds = concepts
	f.lastDepth = maxDepth
	return f.networkDocs, f.networkErr
}

func (f *fakeGraphReader) FindConceptByName(ctx context.Context, name string) (*domain.Concept, error) {
	return f.concepts[name], nil
}

func (f *fakeGraphReader) FindRelatedConcepts(ctx context.Context, name string, depth, limit int) ([]domain.Concept, error) {
	related := f.related[name]
	if len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}

func (f *fakeGraphReader) GetDocumentNode(ctx context.Context, documentID string) (*domain.DocumentNode, error) {
	return f.docNodes[documentID], nil
}

func (f *fakeGraphReader) ListUserDocuments(ctx context.Context, userID string, limit int) ([]domain.DocumentNode, error) {
	docs := f.userDocs
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (f *fakeGraphReader) ListKnowledgeBaseDocuments(ctx context.Context, userID, knowledgeBaseID string, limit int) ([]domain.DocumentNode, error) {
	docs := f.kbDocs
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (f *fakeGraphReader) TopConcepts(ctx context.Context, userID string, limit int) ([]string, error) {
	top := f.top
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (f *fakeGraphReader) DocumentConcepts(ctx context.Context, documentID string, limit int) ([]domain.Concept, error) {
	links := f.docLinks[documentID]
	if len(links) > limit {
		links = links[:limit]
	}
	return links, nil
}

func TestExpandQueryAugmentsAndFindsDocuments(t *testing.T) {
	reader := &fakeGraphReader{networkDocs: []string{"doc-3", "doc-1"}}
	extractor := &fakeConceptExtractor{concepts: []string{"transformer", "attention"}}
	e := NewQueryExpander(testLogger(t), reader, extractor)

	augmented, docIDs, err := e.ExpandQuery(context.Background(), "user-1", "how does attention work")
	if err != nil {
		t.Fatalf("ExpandQuery: %v", err)
	}
	if len(docIDs) != 2 || docIDs[0] != "doc-3" {
		t.Fatalf("unexpected doc ids %v", docIDs)
	}
	if !strings.Contains(augmented, "transformer") {
		t.Fatalf("expected missing concept appended, got %q", augmented)
	}
	if strings.Count(augmented, "attention") != 1 {
		t.Fatalf("concepts already in the query must not be repeated: %q", augmented)
	}
	if reader.lastDepth != expansionDepth {
		t.Fatalf("expected traversal depth %d, got %d", expansionDepth, reader.lastDepth)
	}
}

func TestExpandQueryNoConceptsIsSilent(t *testing.T) {
	reader := &fakeGraphReader{}
	e := NewQueryExpander(testLogger(t), reader, &fakeConceptExtractor{})

	augmented, docIDs, err := e.ExpandQuery(context.Background(), "user-1", "hello")
	if err != nil || augmented != "" || docIDs != nil {
		t.Fatalf("expected no signal, got %q / %v / %v", augmented, docIDs, err)
	}
	if reader.lastSeeds != nil {
		t.Fatal("graph must not be queried without seed concepts")
	}
}

func TestExpandQuerySurfacesGraphErrors(t *testing.T) {
	reader := &fakeGraphReader{networkErr: errors.New("neo4j down")}
	e := NewQueryExpander(testLogger(t), reader, &fakeConceptExtractor{concepts: []string{"graphs"}})

	_, _, err := e.ExpandQuery(context.Background(), "user-1", "query")
	if err == nil {
		t.Fatal("expected the graph error to surface to the caller")
	}
}

func manyDocIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("doc-%d", i)
	}
	return out
}
