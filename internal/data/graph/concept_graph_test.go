package graph

import (
	"testing"

	"github.com/yungbote/paperdesk-backend/internal/domain"
)

func TestConceptRowsDeduplicatesNames(t *testing.T) {
	rows := conceptRows([]domain.Concept{
		{Name: "transformer", Type: "model", Importance: 0.9},
		{Name: " transformer ", Type: "architecture", Importance: 0.5},
		{Name: "attention", Importance: 0.8},
		{Name: "transformer"},
	})
	if len(rows) != 2 {
		t.Fatalf("rows: want=2 got=%d", len(rows))
	}
	if rows[0]["name"] != "transformer" || rows[1]["name"] != "attention" {
		t.Fatalf("unexpected row order: %v, %v", rows[0]["name"], rows[1]["name"])
	}
	if rows[0]["type"] != "model" {
		t.Fatalf("first occurrence should win, got type=%v", rows[0]["type"])
	}
}

func TestConceptRowsSkipsBlankNames(t *testing.T) {
	rows := conceptRows([]domain.Concept{
		{Name: ""},
		{Name: "   "},
	})
	if len(rows) != 0 {
		t.Fatalf("rows: want=0 got=%d", len(rows))
	}
}
