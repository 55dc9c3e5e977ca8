package domain

// Passage is a retrievable chunk of an ingested document.
type Passage struct {
	ChunkID    string
	DocumentID string
	Title      string
	Text       string
	Score      float64
	Metadata   map[string]any
}

// ScoredDocument pairs a document ID with a retrieval relevance score.
type ScoredDocument struct {
	DocumentID string
	Score      float64
}
