package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/yungbote/paperdesk-backend/internal/config"
	"github.com/yungbote/paperdesk-backend/internal/platform/apierr"
	"github.com/yungbote/paperdesk-backend/internal/platform/elastic"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
	"github.com/yungbote/paperdesk-backend/internal/platform/qdrant"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type vectorCall struct {
	namespace string
	topK      int
	filter    map[string]any
}

type fakeVectorSearcher struct {
	calls []vectorCall
	fn    func(call vectorCall) ([]qdrant.Match, error)
}

func (f *fakeVectorSearcher) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]qdrant.Match, error) {
	call := vectorCall{namespace: namespace, topK: topK, filter: filter}
	f.calls = append(f.calls, call)
	return f.fn(call)
}

type fakeLexical struct {
	hits []elastic.Hit
	err  error

	lastTopK int
	called   bool
}

func (f *fakeLexical) Search(ctx context.Context, userID, documentID, query string, topK int) ([]elastic.Hit, error) {
	f.called = true
	f.lastTopK = topK
	return f.hits, f.err
}

type fakeReranker struct {
	ids    []string
	err    error
	called bool
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, passages map[string]string, topK int) ([]string, error) {
	f.called = true
	return f.ids, f.err
}

type fakeGraphExpander struct {
	augmented string
	docIDs    []string
	err       error
}

func (f *fakeGraphExpander) ExpandQuery(ctx context.Context, userID, query string) (string, []string, error) {
	return f.augmented, f.docIDs, f.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	logg, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	return logg
}

func matchesAcrossDocs(docCount, perDoc int, startScore float64) []qdrant.Match {
	out := make([]qdrant.Match, 0, docCount*perDoc)
	rank := 0
	for d := 1; d <= docCount; d++ {
		for c := 0; c < perDoc; c++ {
			out = append(out, qdrant.Match{
				ID:    fmt.Sprintf("doc-%d-chunk-%d", d, c),
				Score: startScore - float64(rank)*0.001,
				Payload: map[string]any{
					"document_id": fmt.Sprintf("doc-%d", d),
					"title":       fmt.Sprintf("Document %d", d),
					"text":        fmt.Sprintf("passage %d of document %d", c, d),
				},
			})
			rank++
		}
	}
	return out
}

func TestRetrieveFallsBackToVectorOnlyWhenLexicalEmpty(t *testing.T) {
	vectors := &fakeVectorSearcher{
		fn: func(call vectorCall) ([]qdrant.Match, error) {
			return matchesAcrossDocs(1, call.topK, 0.9), nil
		},
	}
	lexical := &fakeLexical{hits: nil}
	reranker := &fakeReranker{}

	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{}, vectors, lexical, reranker, nil, nil)
	res, err := svc.Retrieve(context.Background(), Request{UserID: "user-1", Query: "transformer attention"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Passages) > 5 {
		t.Fatalf("expected at most 5 passages on fallback, got %d", len(res.Passages))
	}
	if reranker.called {
		t.Fatal("reranker must not run on the vector-only fallback")
	}
	if len(vectors.calls) != 1 {
		t.Fatalf("expected a single vector query, got %d", len(vectors.calls))
	}
	if vectors.calls[0].topK != 5 {
		t.Fatalf("fallback must use nominal topK, got %d", vectors.calls[0].topK)
	}
	if vectors.calls[0].namespace != "user-1" {
		t.Fatalf("unexpected namespace %q", vectors.calls[0].namespace)
	}
}

func TestRetrieveFallsBackToVectorOnlyWhenLexicalErrors(t *testing.T) {
	vectors := &fakeVectorSearcher{
		fn: func(call vectorCall) ([]qdrant.Match, error) {
			return matchesAcrossDocs(1, 3, 0.9), nil
		},
	}
	lexical := &fakeLexical{err: errors.New("cluster red")}

	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{}, vectors, lexical, nil, nil, nil)
	res, err := svc.Retrieve(context.Background(), Request{UserID: "user-1", Query: "graph neural networks"})
	if err != nil {
		t.Fatalf("lexical errors must not be fatal: %v", err)
	}
	if len(res.Passages) != 3 {
		t.Fatalf("expected 3 passages, got %d", len(res.Passages))
	}
}

func TestRetrieveSkipsRerankWhenCandidatesFitTopK(t *testing.T) {
	vectors := &fakeVectorSearcher{
		fn: func(call vectorCall) ([]qdrant.Match, error) {
			return matchesAcrossDocs(3, 1, 0.9), nil
		},
	}
	lexical := &fakeLexical{hits: []elastic.Hit{{DocumentID: "doc-1", Title: "Document 1"}}}
	reranker := &fakeReranker{}

	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{}, vectors, lexical, reranker, nil, nil)
	res, err := svc.Retrieve(context.Background(), Request{UserID: "user-1", Query: "attention heads"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if reranker.called {
		t.Fatal("rerank must be skipped when candidates fit within topK")
	}
	if len(res.Passages) != 3 {
		t.Fatalf("expected all 3 candidates to survive, got %d", len(res.Passages))
	}
	for i, p := range res.Passages {
		want := fmt.Sprintf("doc-%d-chunk-0", i+1)
		if p.ChunkID != want {
			t.Fatalf("passage %d: got %q, want %q", i, p.ChunkID, want)
		}
	}
	// esTopK = vectorTopK * expandFactor when reranking is configured on.
	if lexical.lastTopK != 120 {
		t.Fatalf("expected lexical recall of 120 candidates, got %d", lexical.lastTopK)
	}
}

func TestRetrieveRerankOrdersAndDropsMissing(t *testing.T) {
	vectors := &fakeVectorSearcher{
		fn: func(call vectorCall) ([]qdrant.Match, error) {
			return matchesAcrossDocs(4, 3, 0.9), nil
		},
	}
	lexical := &fakeLexical{hits: []elastic.Hit{{DocumentID: "doc-1"}}}
	reranker := &fakeReranker{ids: []string{"doc-3-chunk-0", "doc-1-chunk-2", "ghost-chunk", "doc-2-chunk-1"}}

	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{}, vectors, lexical, reranker, nil, nil)
	res, err := svc.Retrieve(context.Background(), Request{UserID: "user-1", Query: "bert pretraining"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !reranker.called {
		t.Fatal("expected rerank to run with 12 candidates over topK 5")
	}
	want := []string{"doc-3-chunk-0", "doc-1-chunk-2", "doc-2-chunk-1"}
	if len(res.Passages) != len(want) {
		t.Fatalf("expected %d passages, got %d", len(want), len(res.Passages))
	}
	for i, id := range want {
		if res.Passages[i].ChunkID != id {
			t.Fatalf("passage %d: got %q, want %q", i, res.Passages[i].ChunkID, id)
		}
	}
}

func TestRetrieveRerankErrorKeepsVectorOrder(t *testing.T) {
	vectors := &fakeVectorSearcher{
		fn: func(call vectorCall) ([]qdrant.Match, error) {
			return matchesAcrossDocs(4, 3, 0.9), nil
		},
	}
	lexical := &fakeLexical{hits: []elastic.Hit{{DocumentID: "doc-1"}}}
	reranker := &fakeReranker{err: errors.New("llm overloaded")}

	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{}, vectors, lexical, reranker, nil, nil)
	res, err := svc.Retrieve(context.Background(), Request{UserID: "user-1", Query: "bert pretraining"})
	if err != nil {
		t.Fatalf("rerank errors must not be fatal: %v", err)
	}
	if len(res.Passages) != 12 {
		t.Fatalf("expected all 12 candidates in vector order, got %d", len(res.Passages))
	}
	if res.Passages[0].ChunkID != "doc-1-chunk-0" {
		t.Fatalf("expected pre-rerank order, got %q first", res.Passages[0].ChunkID)
	}
}

func TestRetrieveVectorErrorIsFatal(t *testing.T) {
	vectors := &fakeVectorSearcher{
		fn: func(call vectorCall) ([]qdrant.Match, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{}, vectors, nil, nil, nil, nil)
	_, err := svc.Retrieve(context.Background(), Request{UserID: "user-1", Query: "anything"})
	if err == nil {
		t.Fatal("expected vector failure to surface")
	}
	if !apierr.IsCode(err, apierr.CodeExternalServiceUnavailable) {
		t.Fatalf("expected external_service_unavailable, got %v", err)
	}
}

func TestRetrieveEmbedErrorIsFatal(t *testing.T) {
	vectors := &fakeVectorSearcher{
		fn: func(call vectorCall) ([]qdrant.Match, error) { return nil, nil },
	}
	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{err: errors.New("quota")}, vectors, nil, nil, nil, nil)
	_, err := svc.Retrieve(context.Background(), Request{UserID: "user-1", Query: "anything"})
	if !apierr.IsCode(err, apierr.CodeExternalServiceUnavailable) {
		t.Fatalf("expected external_service_unavailable, got %v", err)
	}
}

func TestRetrieveAppliesSimilarityThreshold(t *testing.T) {
	vectors := &fakeVectorSearcher{
		fn: func(call vectorCall) ([]qdrant.Match, error) {
			return []qdrant.Match{
				{ID: "keep", Score: 0.8, Payload: map[string]any{"document_id": "doc-1", "text": "kept"}},
				{ID: "drop", Score: 0.1, Payload: map[string]any{"document_id": "doc-1", "text": "dropped"}},
			}, nil
		},
	}
	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{}, vectors, nil, nil, nil, nil)
	res, err := svc.Retrieve(context.Background(), Request{UserID: "user-1", Query: "threshold check"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Passages) != 1 || res.Passages[0].ChunkID != "keep" {
		t.Fatalf("expected only the above-threshold passage, got %+v", res.Passages)
	}
}

func TestRetrieveGraphPreviewSwitchesScope(t *testing.T) {
	vectors := &fakeVectorSearcher{}
	vectors.fn = func(call vectorCall) ([]qdrant.Match, error) {
		if len(vectors.calls) == 1 {
			// preview call
			return matchesAcrossDocs(1, 1, 0.9), nil
		}
		return matchesAcrossDocs(2, 2, 0.9), nil
	}
	graph := &fakeGraphExpander{
		augmented: "transformers attention mechanism",
		docIDs:    []string{"doc-7", "doc-9"},
	}

	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{}, vectors, nil, nil, graph, nil)
	res, err := svc.Retrieve(context.Background(), Request{UserID: "user-1", Query: "transformers"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !res.GraphBiased {
		t.Fatal("expected the prioritized graph scope to win after a non-empty preview")
	}
	if len(vectors.calls) != 2 {
		t.Fatalf("expected preview + refine, got %d vector calls", len(vectors.calls))
	}
	preview := vectors.calls[0]
	if preview.topK != graphPreviewTopK {
		t.Fatalf("preview topK = %d, want %d", preview.topK, graphPreviewTopK)
	}
	inner, ok := preview.filter["document_id"].(map[string]any)
	if !ok {
		t.Fatalf("preview filter missing document_id scope: %+v", preview.filter)
	}
	if ids, ok := inner["$in"].([]string); !ok || len(ids) != 2 {
		t.Fatalf("preview filter ids = %+v", inner["$in"])
	}
	refine := vectors.calls[1]
	if _, ok := refine.filter["document_id"]; !ok {
		t.Fatal("refine must keep the prioritized scope after a successful preview")
	}
}

func TestRetrieveGraphPreviewFailureKeepsUserScope(t *testing.T) {
	vectors := &fakeVectorSearcher{}
	vectors.fn = func(call vectorCall) ([]qdrant.Match, error) {
		if len(vectors.calls) == 1 {
			return nil, errors.New("neo4j down")
		}
		return matchesAcrossDocs(1, 2, 0.9), nil
	}
	graph := &fakeGraphExpander{docIDs: []string{"doc-7"}}

	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{}, vectors, nil, nil, graph, nil)
	res, err := svc.Retrieve(context.Background(), Request{UserID: "user-1", Query: "transformers"})
	if err != nil {
		t.Fatalf("preview failures must not be fatal: %v", err)
	}
	if res.GraphBiased {
		t.Fatal("a failed preview must not bias the scope")
	}
	refine := vectors.calls[len(vectors.calls)-1]
	if refine.filter != nil {
		t.Fatalf("expected unrestricted user scope, got %+v", refine.filter)
	}
}

func TestRetrieveGraphExpanderErrorIsSilent(t *testing.T) {
	vectors := &fakeVectorSearcher{
		fn: func(call vectorCall) ([]qdrant.Match, error) {
			return matchesAcrossDocs(1, 1, 0.9), nil
		},
	}
	graph := &fakeGraphExpander{err: errors.New("neo4j down")}

	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{}, vectors, nil, nil, graph, nil)
	res, err := svc.Retrieve(context.Background(), Request{UserID: "user-1", Query: "transformers"})
	if err != nil {
		t.Fatalf("graph expansion errors must not be fatal: %v", err)
	}
	if res.GraphBiased {
		t.Fatal("no graph signal expected")
	}
	if len(vectors.calls) != 1 {
		t.Fatalf("no preview expected when expansion fails, got %d calls", len(vectors.calls))
	}
}

func TestRetrieveExplicitDocumentScopeSkipsGraph(t *testing.T) {
	vectors := &fakeVectorSearcher{
		fn: func(call vectorCall) ([]qdrant.Match, error) {
			return matchesAcrossDocs(1, 1, 0.9), nil
		},
	}
	graph := &fakeGraphExpander{docIDs: []string{"doc-7"}}

	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{}, vectors, nil, nil, graph, nil)
	res, err := svc.Retrieve(context.Background(), Request{
		UserID:      "user-1",
		Query:       "transformers",
		DocumentIDs: []string{"doc-42"},
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.GraphBiased {
		t.Fatal("explicit scope must win over graph bias")
	}
	inner, ok := vectors.calls[0].filter["document_id"].(map[string]any)
	if !ok {
		t.Fatalf("expected caller scope filter, got %+v", vectors.calls[0].filter)
	}
	if ids, ok := inner["$in"].([]string); !ok || len(ids) != 1 || ids[0] != "doc-42" {
		t.Fatalf("unexpected scope ids %+v", inner["$in"])
	}
}

func TestRetrieveValidatesInput(t *testing.T) {
	svc := NewService(testLogger(t), config.DefaultRetrieval(), &fakeEmbedder{}, &fakeVectorSearcher{fn: func(vectorCall) ([]qdrant.Match, error) { return nil, nil }}, nil, nil, nil, nil)
	if _, err := svc.Retrieve(context.Background(), Request{UserID: "user-1", Query: "   "}); err == nil {
		t.Fatal("expected blank query to be rejected")
	}
	if _, err := svc.Retrieve(context.Background(), Request{Query: "q"}); err == nil {
		t.Fatal("expected blank user id to be rejected")
	}
}
