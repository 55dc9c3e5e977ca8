package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/yungbote/paperdesk-backend/internal/platform/ctxutil"
	"github.com/yungbote/paperdesk-backend/internal/platform/envutil"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
)

// Hit is one full-text search result. Snippet carries the highlighted
// fragment when the index returned one, otherwise a truncated excerpt.
type Hit struct {
	DocumentID string
	Title      string
	DocType    string
	Snippet    string
	Score      float64
}

// IndexedDocument is the source body stored per document.
type IndexedDocument struct {
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	DocType    string `json:"doc_type,omitempty"`
	Status     string `json:"status,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type Searcher interface {
	// Search runs a bool query scoped to the user (and optionally one
	// document) with a multi_match over title and content.
	Search(ctx context.Context, userID, documentID, query string, topK int) ([]Hit, error)
	IndexDocument(ctx context.Context, doc IndexedDocument) error
	GetDocument(ctx context.Context, documentID string) (*IndexedDocument, error)
	UpdateStatus(ctx context.Context, documentID, status string) error
	DeleteDocument(ctx context.Context, documentID string) error
}

type Client struct {
	log      *logger.Logger
	baseURL  string
	index    string
	username string
	password string
	http     *http.Client
}

// NewFromEnv builds a client from ELASTIC_* env vars. Returns (nil, nil)
// when ELASTIC_URL is unset so callers can treat the lexical store as
// optional and run vector-only.
func NewFromEnv(log *logger.Logger) (*Client, error) {
	rawURL := strings.TrimSpace(os.Getenv("ELASTIC_URL"))
	if rawURL == "" {
		return nil, nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid ELASTIC_URL %q", rawURL)
	}

	timeoutSeconds := envutil.Int("ELASTIC_TIMEOUT_SECONDS", 10)
	c := &Client{
		log:      log.With("service", "ElasticClient"),
		baseURL:  strings.TrimRight(rawURL, "/"),
		index:    envutil.Str("ELASTIC_INDEX", "paperdesk_documents"),
		username: strings.TrimSpace(os.Getenv("ELASTIC_USERNAME")),
		password: os.Getenv("ELASTIC_PASSWORD"),
		http: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}

	if err := c.ping(context.Background()); err != nil {
		return nil, err
	}
	log.Info("Elasticsearch client ready", "url", c.baseURL, "index", c.index)
	return c, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID        string              `json:"_id"`
			Score     *float64            `json:"_score"`
			Source    IndexedDocument     `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *Client) Search(ctx context.Context, userID, documentID, query string, topK int) ([]Hit, error) {
	if c == nil {
		return nil, opErr("search", OperationErrorUnavailable, "elasticsearch not configured", nil)
	}
	const op = "search"
	if strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}
	if topK <= 0 {
		topK = 10
	}

	must := []map[string]any{
		{"term": map[string]any{"user_id": userID}},
	}
	if strings.TrimSpace(documentID) != "" {
		must = append(must, map[string]any{"term": map[string]any{"document_id": documentID}})
	}
	must = append(must, map[string]any{
		"multi_match": map[string]any{
			"query":  query,
			"fields": []string{"title", "content"},
		},
	})

	req := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"must": must},
		},
		"highlight": map[string]any{
			"fields": map[string]any{
				"title":   map[string]any{"fragment_size": 150, "number_of_fragments": 1},
				"content": map[string]any{"fragment_size": 300, "number_of_fragments": 1},
			},
		},
		"size": topK,
	}

	var resp searchResponse
	if err := c.doJSON(ctx, op, http.MethodPost, "/"+c.index+"/_search", req, &resp); err != nil {
		return nil, err
	}

	out := make([]Hit, 0, len(resp.Hits.Hits))
	for _, raw := range resp.Hits.Hits {
		docID := strings.TrimSpace(raw.Source.DocumentID)
		if docID == "" {
			docID = strings.TrimSpace(raw.ID)
		}
		if docID == "" {
			continue
		}
		score := 0.0
		if raw.Score != nil {
			score = *raw.Score
		}
		out = append(out, Hit{
			DocumentID: docID,
			Title:      raw.Source.Title,
			DocType:    raw.Source.DocType,
			Snippet:    pickSnippet(raw.Highlight, raw.Source.Content),
			Score:      score,
		})
	}
	return out, nil
}

func (c *Client) IndexDocument(ctx context.Context, doc IndexedDocument) error {
	if c == nil {
		return nil
	}
	const op = "index_document"
	docID := strings.TrimSpace(doc.DocumentID)
	if docID == "" {
		return opErr(op, OperationErrorValidation, "document id is required", nil)
	}
	path := "/" + c.index + "/_doc/" + url.PathEscape(docID) + "?refresh=wait_for"
	return c.doJSON(ctx, op, http.MethodPut, path, doc, nil)
}

// UpdateStatus is best-effort: a missing document or transport failure is
// logged and swallowed so ingestion status flips never fail the caller.
// GetDocument returns (nil, nil) when the document is not indexed.
func (c *Client) GetDocument(ctx context.Context, documentID string) (*IndexedDocument, error) {
	if c == nil {
		return nil, opErr("get_document", OperationErrorUnavailable, "elasticsearch not configured", nil)
	}
	const op = "get_document"
	docID := strings.TrimSpace(documentID)
	if docID == "" {
		return nil, opErr(op, OperationErrorValidation, "document id must not be blank", nil)
	}

	var envelope struct {
		Found  bool            `json:"found"`
		Source IndexedDocument `json:"_source"`
	}
	path := "/" + c.index + "/_doc/" + url.PathEscape(docID)
	err := c.doJSON(ctx, op, http.MethodGet, path, nil, &envelope)
	var opError *OperationError
	if errors.As(err, &opError) && opError.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !envelope.Found {
		return nil, nil
	}
	return &envelope.Source, nil
}

func (c *Client) UpdateStatus(ctx context.Context, documentID, status string) error {
	if c == nil {
		return nil
	}
	const op = "update_status"
	docID := strings.TrimSpace(documentID)
	if docID == "" {
		return nil
	}
	path := "/" + c.index + "/_update/" + url.PathEscape(docID)
	req := map[string]any{"doc": map[string]any{"status": status}}
	if err := c.doJSON(ctx, op, http.MethodPost, path, req, nil); err != nil {
		c.log.Warn("elasticsearch status update failed", "document_id", docID, "status", status, "error", err)
	}
	return nil
}

func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	if c == nil {
		return nil
	}
	const op = "delete_document"
	docID := strings.TrimSpace(documentID)
	if docID == "" {
		return nil
	}
	path := "/" + c.index + "/_doc/" + url.PathEscape(docID)
	err := c.doJSON(ctx, op, http.MethodDelete, path, nil, nil)
	var opError *OperationError
	if errors.As(err, &opError) && opError.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) ping(ctx context.Context) error {
	const op = "bootstrap_ping"
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ping request failed", err)
	}
	c.applyAuth(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "elasticsearch ping failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("elasticsearch ping returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, c.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "elasticsearch request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("elasticsearch http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode response failed", err)
	}
	return nil
}

func (c *Client) applyAuth(req *http.Request) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func pickSnippet(highlight map[string][]string, content string) string {
	if titleParts := highlight["title"]; len(titleParts) > 0 {
		return strings.Join(titleParts, " ... ")
	}
	if contentParts := highlight["content"]; len(contentParts) > 0 {
		return strings.Join(contentParts, " ... ")
	}
	return truncateContent(content, 200)
}

func truncateContent(content string, maxLength int) string {
	if content == "" {
		return ""
	}
	runes := []rune(content)
	if len(runes) <= maxLength {
		return content
	}
	return string(runes[:maxLength]) + "..."
}

func truncateBody(raw []byte) string {
	const maxBytes = 1024
	if len(raw) <= maxBytes {
		return string(raw)
	}
	return string(raw[:maxBytes]) + "..."
}
