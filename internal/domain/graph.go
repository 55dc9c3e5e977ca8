package domain

import "time"

// Concept is a knowledge graph node keyed by its name. Two documents naming
// the same concept share one node; Frequency counts how many extractions
// have named it.
type Concept struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Field       string  `json:"field"`
	Description string  `json:"description"`
	Importance  float64 `json:"importance"`
	Frequency   int64   `json:"frequency"`
	Confidence  float64 `json:"confidence"`
}

// ConceptRelation is an undirected RELATED_TO edge between two concepts.
type ConceptRelation struct {
	Concept1     string  `json:"concept1"`
	Concept2     string  `json:"concept2"`
	RelationType string  `json:"relationType"`
	Strength     float64 `json:"strength"`
	Confidence   float64 `json:"confidence"`
}

// ConceptHierarchy is a directed IS_A edge from child to parent.
type ConceptHierarchy struct {
	Child      string  `json:"child"`
	Parent     string  `json:"parent"`
	Confidence float64 `json:"confidence"`
}

// Author is extracted from document text; fields other than Name may be empty.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
	Email       string `json:"email"`
}

// DocumentNode mirrors a relational document row into the graph.
type DocumentNode struct {
	DocumentID      string
	Title           string
	Type            string
	UserID          string
	KnowledgeBaseID string
	CreateTime      time.Time
}

// DocumentSimilarity is a scored SIMILAR_TO candidate between two documents.
type DocumentSimilarity struct {
	DocumentID    string
	SharedCount   int64
	AvgImportance float64
	Score         float64
}

// GraphBuildResult summarizes one knowledge graph build run. Counts reflect
// only the stages that completed; a failed enrichment stage lowers its count
// without flipping Success once concept extraction itself succeeded.
type GraphBuildResult struct {
	DocumentID        string        `json:"documentId"`
	ConceptCount      int           `json:"conceptCount"`
	NewConceptCount   int           `json:"newConceptCount"`
	RelationshipCount int           `json:"relationshipCount"`
	Success           bool          `json:"success"`
	ErrorMessage      string        `json:"errorMessage,omitempty"`
	Elapsed           time.Duration `json:"elapsed"`
}

// GraphNode and GraphEdge make up a visualization payload.
type GraphNode struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Kind  string         `json:"kind"`
	Props map[string]any `json:"props,omitempty"`
}

type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

type GraphView struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
