package rag

import (
	"strings"
	"testing"

	"github.com/yungbote/paperdesk-backend/internal/domain"
)

func TestBuildContextLabelsPassages(t *testing.T) {
	passages := []domain.Passage{
		{Title: "Attention Is All You Need", Text: "The transformer architecture."},
		{Title: "", Text: "Untitled chunk."},
	}
	got := buildContext(passages, 12000)
	if !strings.HasPrefix(got, "[1] Attention Is All You Need\n") {
		t.Fatalf("missing first ordinal label: %q", got)
	}
	if !strings.Contains(got, "\n\n[2]\nUntitled chunk.") {
		t.Fatalf("missing second section: %q", got)
	}
}

func TestBuildContextStopsAtBudget(t *testing.T) {
	passages := []domain.Passage{
		{Title: "A", Text: strings.Repeat("x", 50)},
		{Title: "B", Text: strings.Repeat("y", 50)},
		{Title: "C", Text: strings.Repeat("z", 50)},
	}
	got := buildContext(passages, 120)
	if strings.Contains(got, "z") {
		t.Fatalf("third passage should not fit in 120 chars: %q", got)
	}
	if !strings.Contains(got, "[1] A") || !strings.Contains(got, "[2] B") {
		t.Fatalf("first two passages expected: %q", got)
	}
}

func TestBuildContextTruncatesOversizedFirstPassage(t *testing.T) {
	passages := []domain.Passage{{Title: "Big", Text: strings.Repeat("x", 500)}}
	got := buildContext(passages, 100)
	if len(got) != 100 {
		t.Fatalf("expected truncation to 100 chars, got %d", len(got))
	}
}

func TestBuildContextBudgetCountsRunes(t *testing.T) {
	// 50 runes of text but 146 bytes; a byte-based budget would reject it.
	passages := []domain.Passage{
		{Title: "", Text: strings.Repeat("€", 48) + "ab"},
	}
	got := buildContext(passages, 120)
	if !strings.HasSuffix(got, "ab") {
		t.Fatalf("multibyte passage should fit a 120-rune budget: %q", got)
	}

	oversized := []domain.Passage{
		{Title: "", Text: strings.Repeat("é", 300)},
	}
	got = buildContext(oversized, 100)
	if n := len([]rune(got)); n != 100 {
		t.Fatalf("expected truncation to 100 runes, got %d", n)
	}
}

func TestBuildContextEmpty(t *testing.T) {
	if got := buildContext(nil, 1000); got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
}
