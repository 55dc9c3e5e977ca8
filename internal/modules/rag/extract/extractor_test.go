package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
)

type fakeLLM struct {
	jsonOut map[string]any
	jsonErr error
	calls   int
}

func (f *fakeLLM) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.calls++
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	return f.jsonOut, nil
}

func (f *fakeLLM) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("not implemented")
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	logg, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	return logg
}

func TestExtractDeduplicatesAndBounds(t *testing.T) {
	llm := &fakeLLM{jsonOut: map[string]any{
		"concepts": []any{
			"  transformer  ",
			"transformer",
			"",
			strings.Repeat("x", 51),
			"attention",
			"bert",
			"gpt",
			"t5",
			"overflow",
		},
	}}
	e := NewConceptExtractor(testLogger(t), llm, nil)

	got := e.Extract(context.Background(), "some paper text", 5)
	want := []string{"transformer", "attention", "bert", "gpt", "t5"}
	if len(got) != len(want) {
		t.Fatalf("expected %d concepts, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("concept %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractMemoizesExactInput(t *testing.T) {
	llm := &fakeLLM{jsonOut: map[string]any{"concepts": []any{"graphs"}}}
	e := NewConceptExtractor(testLogger(t), llm, NewMemoryCache())

	first := e.Extract(context.Background(), "knowledge graphs", 3)
	second := e.Extract(context.Background(), "knowledge graphs", 3)
	if llm.calls != 1 {
		t.Fatalf("expected a single LLM call, got %d", llm.calls)
	}
	if len(first) != 1 || len(second) != 1 || second[0] != "graphs" {
		t.Fatalf("unexpected results: %v / %v", first, second)
	}

	// A different maxConcepts is a different key.
	e.Extract(context.Background(), "knowledge graphs", 5)
	if llm.calls != 2 {
		t.Fatalf("expected a second LLM call for a new key, got %d", llm.calls)
	}
}

func TestExtractFailureYieldsEmptyList(t *testing.T) {
	llm := &fakeLLM{jsonErr: errors.New("llm down")}
	e := NewConceptExtractor(testLogger(t), llm, NewMemoryCache())
	if got := e.Extract(context.Background(), "text", 3); len(got) != 0 {
		t.Fatalf("expected empty list on failure, got %v", got)
	}
	// Failures are not cached; the next call retries.
	e.Extract(context.Background(), "text", 3)
	if llm.calls != 2 {
		t.Fatalf("expected retry after failure, got %d calls", llm.calls)
	}
}

func TestExtractMalformedOutputYieldsEmptyList(t *testing.T) {
	llm := &fakeLLM{jsonOut: map[string]any{"concepts": "not-an-array"}}
	e := NewConceptExtractor(testLogger(t), llm, NewMemoryCache())
	if got := e.Extract(context.Background(), "text", 3); len(got) != 0 {
		t.Fatalf("expected empty list on malformed output, got %v", got)
	}
}

func TestExtractBlankInput(t *testing.T) {
	llm := &fakeLLM{}
	e := NewConceptExtractor(testLogger(t), llm, nil)
	if got := e.Extract(context.Background(), "   ", 3); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
	if llm.calls != 0 {
		t.Fatal("blank input must not call the LLM")
	}
}
