package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/paperdesk-backend/internal/platform/apierr"
)

type fakeLLM struct {
	jsonOut map[string]any
	jsonErr error

	lastUser string
}

func (f *fakeLLM) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.lastUser = user
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	return f.jsonOut, nil
}

func (f *fakeLLM) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("not implemented")
}

func TestLLMRerankerOrdersAndCaps(t *testing.T) {
	llm := &fakeLLM{jsonOut: map[string]any{
		"ranking": []any{"c", "a", "", "b", "d"},
	}}
	r := NewLLMReranker(testLogger(t), llm)

	ids, err := r.Rerank(context.Background(), "query", map[string]string{
		"a": "alpha", "b": "beta", "c": "gamma", "d": "delta",
	}, 3)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	want := []string{"c", "a", "b"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("id %d: got %q, want %q", i, ids[i], want[i])
		}
	}
	if !strings.Contains(llm.lastUser, "id: a") || !strings.Contains(llm.lastUser, "alpha") {
		t.Fatalf("prompt missing passage evidence: %q", llm.lastUser)
	}
}

func TestLLMRerankerMalformedOutput(t *testing.T) {
	llm := &fakeLLM{jsonOut: map[string]any{"ranking": "not-an-array"}}
	r := NewLLMReranker(testLogger(t), llm)
	_, err := r.Rerank(context.Background(), "query", map[string]string{"a": "alpha"}, 1)
	if !apierr.IsCode(err, apierr.CodeMalformedOutput) {
		t.Fatalf("expected malformed_output, got %v", err)
	}
}

func TestLLMRerankerEmptyInput(t *testing.T) {
	r := NewLLMReranker(testLogger(t), &fakeLLM{})
	ids, err := r.Rerank(context.Background(), "query", nil, 5)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected no-op, got %v / %v", ids, err)
	}
}
