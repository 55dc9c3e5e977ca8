package kg

import (
	"context"
	"strings"

	"github.com/yungbote/paperdesk-backend/internal/domain"
	"github.com/yungbote/paperdesk-backend/internal/modules/rag/extract"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
)

// Fan-out caps keep visualization payloads predictable regardless of how
// dense a user's graph has become.
const (
	maxSeedConcepts       = 10
	maxRelatedPerSeed     = 3
	maxGraphDocuments     = 8
	maxConceptLinksPerDoc = 5
	topConceptFallback    = 20
)

// Visualizer renders bounded concept/document views of the knowledge graph.
// Every failure degrades to an empty view; visualization never errors.
type Visualizer struct {
	log       *logger.Logger
	store     GraphReader
	extractor extract.ConceptExtractor
}

func NewVisualizer(log *logger.Logger, store GraphReader, extractor extract.ConceptExtractor) *Visualizer {
	return &Visualizer{log: log, store: store, extractor: extractor}
}

// ConceptGraph renders the neighborhood of the concepts found in the query.
func (v *Visualizer) ConceptGraph(ctx context.Context, userID, query string) domain.GraphView {
	seeds := v.extractor.Extract(ctx, query, maxSeedConcepts)
	if len(seeds) == 0 {
		return emptyView()
	}
	return v.renderSeeds(ctx, userID, seeds)
}

// KnowledgeBaseGraph renders the documents of one knowledge base with their
// strongest concepts.
func (v *Visualizer) KnowledgeBaseGraph(ctx context.Context, userID, knowledgeBaseID string) domain.GraphView {
	docs, err := v.store.ListKnowledgeBaseDocuments(ctx, userID, knowledgeBaseID, maxGraphDocuments)
	if err != nil {
		v.log.Warn("Knowledge base graph unavailable", "kb_id", knowledgeBaseID, "error", err)
		return emptyView()
	}
	return v.renderDocuments(ctx, docs, true)
}

// GlobalGraph renders the query neighborhood, or the user's newest documents
// and most shared concepts when no query is given.
func (v *Visualizer) GlobalGraph(ctx context.Context, userID, query string) domain.GraphView {
	if strings.TrimSpace(query) != "" {
		return v.ConceptGraph(ctx, userID, query)
	}

	docs, err := v.store.ListUserDocuments(ctx, userID, maxGraphDocuments)
	if err != nil {
		v.log.Warn("Global graph unavailable", "error", err)
		return emptyView()
	}
	view := v.renderDocuments(ctx, docs, true)

	names, err := v.store.TopConcepts(ctx, userID, topConceptFallback)
	if err != nil {
		v.log.Warn("Top concepts unavailable", "error", err)
		return view
	}
	b := newViewBuilder(view)
	for _, name := range names {
		b.addConcept(domain.Concept{Name: name})
	}
	return b.view()
}

func (v *Visualizer) renderSeeds(ctx context.Context, userID string, seeds []string) domain.GraphView {
	if len(seeds) > maxSeedConcepts {
		seeds = seeds[:maxSeedConcepts]
	}
	b := newViewBuilder(emptyView())

	for _, seed := range seeds {
		concept, err := v.store.FindConceptByName(ctx, seed)
		if err != nil {
			v.log.Warn("Concept lookup failed", "concept", seed, "error", err)
			continue
		}
		if concept == nil {
			continue
		}
		b.addConcept(*concept)

		related, err := v.store.FindRelatedConcepts(ctx, seed, 1, maxRelatedPerSeed)
		if err != nil {
			v.log.Warn("Related concepts unavailable", "concept", seed, "error", err)
			continue
		}
		for _, r := range related {
			b.addConcept(r)
			b.addEdge(conceptNodeID(concept.Name), conceptNodeID(r.Name), "RELATED_TO")
		}
	}

	docIDs, err := v.store.FindDocumentsByConceptNetwork(ctx, seeds, userID, expansionDepth)
	if err != nil {
		v.log.Warn("Concept network documents unavailable", "error", err)
		return b.view()
	}
	if len(docIDs) > maxGraphDocuments {
		docIDs = docIDs[:maxGraphDocuments]
	}
	docs := make([]domain.DocumentNode, 0, len(docIDs))
	for _, id := range docIDs {
		doc, err := v.store.GetDocumentNode(ctx, id)
		if err != nil || doc == nil {
			continue
		}
		docs = append(docs, *doc)
	}
	return v.linkDocuments(ctx, b, docs, false)
}

func (v *Visualizer) renderDocuments(ctx context.Context, docs []domain.DocumentNode, addConcepts bool) domain.GraphView {
	if len(docs) > maxGraphDocuments {
		docs = docs[:maxGraphDocuments]
	}
	return v.linkDocuments(ctx, newViewBuilder(emptyView()), docs, addConcepts)
}

// linkDocuments adds the documents and up to maxConceptLinksPerDoc CONTAINS
// edges each. When addConcepts is false, only links to concepts already in
// the view are drawn.
func (v *Visualizer) linkDocuments(ctx context.Context, b *viewBuilder, docs []domain.DocumentNode, addConcepts bool) domain.GraphView {
	for _, doc := range docs {
		b.addDocument(doc)
		concepts, err := v.store.DocumentConcepts(ctx, doc.DocumentID, maxConceptLinksPerDoc)
		if err != nil {
			v.log.Warn("Document concepts unavailable", "document_id", doc.DocumentID, "error", err)
			continue
		}
		for _, c := range concepts {
			if addConcepts {
				b.addConcept(c)
			} else if !b.hasNode(conceptNodeID(c.Name)) {
				continue
			}
			b.addEdge(documentNodeID(doc.DocumentID), conceptNodeID(c.Name), "CONTAINS")
		}
	}
	return b.view()
}

func emptyView() domain.GraphView {
	return domain.GraphView{Nodes: []domain.GraphNode{}, Edges: []domain.GraphEdge{}}
}

func conceptNodeID(name string) string { return "concept:" + name }
func documentNodeID(id string) string  { return "document:" + id }

type viewBuilder struct {
	nodes map[string]bool
	edges map[string]bool
	out   domain.GraphView
}

func newViewBuilder(seed domain.GraphView) *viewBuilder {
	b := &viewBuilder{
		nodes: make(map[string]bool),
		edges: make(map[string]bool),
		out:   seed,
	}
	for _, n := range seed.Nodes {
		b.nodes[n.ID] = true
	}
	for _, e := range seed.Edges {
		b.edges[e.From + "|" + e.To + "|" + e.Kind] = true
	}
	return b
}

func (b *viewBuilder) addConcept(c domain.Concept) {
	id := conceptNodeID(c.Name)
	if c.Name == "" || b.nodes[id] {
		return
	}
	b.nodes[id] = true
	props := map[string]any{}
	if c.Type != "" {
		props["type"] = c.Type
	}
	if c.Importance > 0 {
		props["importance"] = c.Importance
	}
	if c.Frequency > 0 {
		props["frequency"] = c.Frequency
	}
	b.out.Nodes = append(b.out.Nodes, domain.GraphNode{
		ID:    id,
		Label: c.Name,
		Kind:  "concept",
		Props: props,
	})
}

func (b *viewBuilder) addDocument(doc domain.DocumentNode) {
	id := documentNodeID(doc.DocumentID)
	if doc.DocumentID == "" || b.nodes[id] {
		return
	}
	b.nodes[id] = true
	props := map[string]any{}
	if doc.Type != "" {
		props["doc_type"] = doc.Type
	}
	b.out.Nodes = append(b.out.Nodes, domain.GraphNode{
		ID:    id,
		Label: doc.Title,
		Kind:  "document",
		Props: props,
	})
}

func (b *viewBuilder) addEdge(from, to, kind string) {
	key := from + "|" + to + "|" + kind
	if b.edges[key] || !b.nodes[from] || !b.nodes[to] {
		return
	}
	b.edges[key] = true
	b.out.Edges = append(b.out.Edges, domain.GraphEdge{From: from, To: to, Kind: kind})
}

func (b *viewBuilder) hasNode(id string) bool { return b.nodes[id] }

func (b *viewBuilder) view() domain.GraphView { return b.out }
