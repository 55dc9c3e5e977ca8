package elastic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	return &Client{
		log:     newTestLogger(t).With("service", "ElasticClient"),
		baseURL: "http://elastic.test",
		index:   "paperdesk_documents",
		http:    &http.Client{Transport: rt},
	}
}

func jsonResponse(t *testing.T, status int, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(raw))),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func decodeRequestBody(t *testing.T, req *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read request body: %v", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return out
}

func TestSearchBuildsScopedBoolQuery(t *testing.T) {
	var captured map[string]any
	var capturedPath string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedPath = req.URL.Path
		captured = decodeRequestBody(t, req)
		return jsonResponse(t, http.StatusOK, map[string]any{
			"hits": map[string]any{"hits": []any{}},
		}), nil
	})

	_, err := client.Search(context.Background(), "user-1", "doc-1", "transformer attention", 12)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if capturedPath != "/paperdesk_documents/_search" {
		t.Fatalf("path: got=%q", capturedPath)
	}
	if captured["size"].(float64) != 12 {
		t.Fatalf("size: got=%v", captured["size"])
	}

	must := captured["query"].(map[string]any)["bool"].(map[string]any)["must"].([]any)
	if len(must) != 3 {
		t.Fatalf("must clauses: want=3 got=%d", len(must))
	}
	userTerm := must[0].(map[string]any)["term"].(map[string]any)
	if userTerm["user_id"] != "user-1" {
		t.Fatalf("user term: got=%v", userTerm)
	}
	docTerm := must[1].(map[string]any)["term"].(map[string]any)
	if docTerm["document_id"] != "doc-1" {
		t.Fatalf("document term: got=%v", docTerm)
	}
	multiMatch := must[2].(map[string]any)["multi_match"].(map[string]any)
	if multiMatch["query"] != "transformer attention" {
		t.Fatalf("multi_match query: got=%v", multiMatch["query"])
	}
}

func TestSearchOmitsDocumentTermWhenUnscoped(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		captured = decodeRequestBody(t, req)
		return jsonResponse(t, http.StatusOK, map[string]any{
			"hits": map[string]any{"hits": []any{}},
		}), nil
	})

	_, err := client.Search(context.Background(), "user-1", "", "attention", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	must := captured["query"].(map[string]any)["bool"].(map[string]any)["must"].([]any)
	if len(must) != 2 {
		t.Fatalf("must clauses: want=2 got=%d", len(must))
	}
}

func TestSearchPrefersHighlightSnippet(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{
			"hits": map[string]any{
				"hits": []any{
					map[string]any{
						"_id":    "doc-1",
						"_score": 7.5,
						"_source": map[string]any{
							"document_id": "doc-1",
							"title":       "Attention Is All You Need",
							"content":     "full body text",
							"doc_type":    "pdf",
						},
						"highlight": map[string]any{
							"content": []any{"the <em>attention</em> mechanism"},
						},
					},
					map[string]any{
						"_id":    "doc-2",
						"_score": 3.0,
						"_source": map[string]any{
							"document_id": "doc-2",
							"title":       "Unrelated",
							"content":     strings.Repeat("x", 250),
						},
					},
				},
			},
		}), nil
	})

	hits, err := client.Search(context.Background(), "user-1", "", "attention", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits: want=2 got=%d", len(hits))
	}
	if hits[0].Snippet != "the <em>attention</em> mechanism" {
		t.Fatalf("highlight snippet: got=%q", hits[0].Snippet)
	}
	if hits[0].Score != 7.5 {
		t.Fatalf("score: got=%v", hits[0].Score)
	}
	if !strings.HasSuffix(hits[1].Snippet, "...") || len(hits[1].Snippet) != 203 {
		t.Fatalf("truncated snippet: got len=%d", len(hits[1].Snippet))
	}
}

func TestSearchBlankQueryShortCircuits(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})

	hits, err := client.Search(context.Background(), "user-1", "", "   ", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("hits: want=0 got=%d", len(hits))
	}
}

func TestSearchSurfacesHTTPError(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusServiceUnavailable,
			Body:       io.NopCloser(strings.NewReader(`{"error":"shard failure"}`)),
		}, nil
	})

	_, err := client.Search(context.Background(), "user-1", "", "attention", 5)
	if err == nil {
		t.Fatalf("Search: expected error, got nil")
	}
	var opError *OperationError
	if !errors.As(err, &opError) {
		t.Fatalf("expected *OperationError, got=%T", err)
	}
	if opError.Code != OperationErrorQueryFailed || opError.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("error: got=%v", opError)
	}
}

func TestDeleteDocumentToleratesMissing(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader(`{"result":"not_found"}`)),
		}, nil
	})

	if err := client.DeleteDocument(context.Background(), "doc-404"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
}

func TestUpdateStatusSwallowsFailures(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       io.NopCloser(strings.NewReader(`{}`)),
		}, nil
	})

	if err := client.UpdateStatus(context.Background(), "doc-1", "ready"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
}

func TestNilClientSearchReturnsUnavailable(t *testing.T) {
	var client *Client
	_, err := client.Search(context.Background(), "user-1", "", "attention", 5)
	if err == nil {
		t.Fatalf("Search on nil client: expected error, got nil")
	}
	var opError *OperationError
	if !errors.As(err, &opError) || opError.Code != OperationErrorUnavailable {
		t.Fatalf("error: got=%v", err)
	}
}
