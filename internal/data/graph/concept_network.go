package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/yungbote/paperdesk-backend/internal/domain"
)

const (
	minTraversalDepth = 1
	maxTraversalDepth = 3

	defaultNetworkLimit = 50
)

// ClampDepth bounds a traversal depth to a small positive integer. Cypher
// cannot bind path-length bounds as parameters, so the depth is interpolated
// into the query text and must be validated first.
func ClampDepth(depth int) int {
	if depth < minTraversalDepth {
		return minTraversalDepth
	}
	if depth > maxTraversalDepth {
		return maxTraversalDepth
	}
	return depth
}

// FindDocumentsByConceptNetwork traverses RELATED_TO edges up to maxDepth
// hops from the seed concepts and returns the user's document ids that
// contain any concept in the expanded set, ordered by distinct matched
// concept count. Empty seeds return an empty set without touching the store.
func (s *Store) FindDocumentsByConceptNetwork(ctx context.Context, concepts []string, userID string, maxDepth int) ([]string, error) {
	seeds := make([]string, 0, len(concepts))
	for _, name := range concepts {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			seeds = append(seeds, trimmed)
		}
	}
	if len(seeds) == 0 {
		return []string{}, nil
	}
	if !s.available() {
		return nil, fmt.Errorf("graph store unavailable")
	}

	cypher := fmt.Sprintf(`
MATCH (concept:Concept)-[:RELATED_TO*1..%d]-(related:Concept)
WHERE concept.name IN $concepts
MATCH (doc:Document {userId: $userId})-[:CONTAINS]->(related)
WITH DISTINCT doc, count(related) AS relatedCount
RETURN doc.documentId AS documentId
ORDER BY relatedCount DESC
LIMIT %d
`, ClampDepth(maxDepth), defaultNetworkLimit)

	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"concepts": seeds,
			"userId":   userID,
		})
		if err != nil {
			return nil, err
		}
		var ids []string
		for res.Next(ctx) {
			if id := stringValue(res.Record(), "documentId"); id != "" {
				ids = append(ids, id)
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("find documents by concept network: %w", err)
	}
	ids, _ := out.([]string)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// FindConceptByName looks a concept node up by its exact natural key.
// Returns (nil, nil) when absent.
func (s *Store) FindConceptByName(ctx context.Context, name string) (*domain.Concept, error) {
	if !s.available() {
		return nil, fmt.Errorf("graph store unavailable")
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, nil
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept {name: $name})
RETURN c
`, map[string]any{"name": trimmed})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		concept := conceptFromRecord(res.Record(), "c")
		return &concept, nil
	})
	if err != nil {
		return nil, fmt.Errorf("find concept by name: %w", err)
	}
	concept, _ := out.(*domain.Concept)
	return concept, nil
}

// FindRelatedConcepts returns concepts within depth hops of the named one,
// most important first.
func (s *Store) FindRelatedConcepts(ctx context.Context, name string, depth, limit int) ([]domain.Concept, error) {
	if !s.available() {
		return nil, fmt.Errorf("graph store unavailable")
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return []domain.Concept{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	cypher := fmt.Sprintf(`
MATCH (c:Concept {name: $name})-[:RELATED_TO*1..%d]-(related:Concept)
RETURN DISTINCT related
ORDER BY related.importance DESC
LIMIT $limit
`, ClampDepth(depth))

	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"name":  trimmed,
			"limit": limit,
		})
		if err != nil {
			return nil, err
		}
		var concepts []domain.Concept
		for res.Next(ctx) {
			concepts = append(concepts, conceptFromRecord(res.Record(), "related"))
		}
		return concepts, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("find related concepts: %w", err)
	}
	concepts, _ := out.([]domain.Concept)
	return concepts, nil
}

// GetDocumentNode returns (nil, nil) when the document has no graph node.
func (s *Store) GetDocumentNode(ctx context.Context, documentID string) (*domain.DocumentNode, error) {
	if !s.available() {
		return nil, fmt.Errorf("graph store unavailable")
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (d:Document {documentId: $documentId})
RETURN d
`, map[string]any{"documentId": documentID})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		doc := documentFromRecord(res.Record(), "d")
		return &doc, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get document node: %w", err)
	}
	doc, _ := out.(*domain.DocumentNode)
	return doc, nil
}

// ListUserDocuments returns the user's document nodes, newest first.
func (s *Store) ListUserDocuments(ctx context.Context, userID string, limit int) ([]domain.DocumentNode, error) {
	if !s.available() {
		return nil, fmt.Errorf("graph store unavailable")
	}
	if limit <= 0 {
		limit = defaultNetworkLimit
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (d:Document {userId: $userId})
RETURN d
ORDER BY d.createTime DESC
LIMIT $limit
`, map[string]any{"userId": userID, "limit": limit})
		if err != nil {
			return nil, err
		}
		var docs []domain.DocumentNode
		for res.Next(ctx) {
			docs = append(docs, documentFromRecord(res.Record(), "d"))
		}
		return docs, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list user documents: %w", err)
	}
	docs, _ := out.([]domain.DocumentNode)
	return docs, nil
}

// ListKnowledgeBaseDocuments scopes the listing to one knowledge base.
func (s *Store) ListKnowledgeBaseDocuments(ctx context.Context, userID, knowledgeBaseID string, limit int) ([]domain.DocumentNode, error) {
	if !s.available() {
		return nil, fmt.Errorf("graph store unavailable")
	}
	if limit <= 0 {
		limit = defaultNetworkLimit
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (d:Document {userId: $userId, kbId: $kbId})
RETURN d
LIMIT $limit
`, map[string]any{"userId": userID, "kbId": knowledgeBaseID, "limit": limit})
		if err != nil {
			return nil, err
		}
		var docs []domain.DocumentNode
		for res.Next(ctx) {
			docs = append(docs, documentFromRecord(res.Record(), "d"))
		}
		return docs, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list knowledge base documents: %w", err)
	}
	docs, _ := out.([]domain.DocumentNode)
	return docs, nil
}

// TopConcepts returns the user's most widely contained concept names, used
// as seeds when a visualization request carries no query.
func (s *Store) TopConcepts(ctx context.Context, userID string, limit int) ([]string, error) {
	if !s.available() {
		return nil, fmt.Errorf("graph store unavailable")
	}
	if limit <= 0 {
		limit = 20
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (d:Document {userId: $userId})-[:CONTAINS]->(c:Concept)
RETURN c.name AS conceptName, count(d) AS docCount, max(c.importance) AS importance
ORDER BY docCount DESC, importance DESC
LIMIT $limit
`, map[string]any{"userId": userID, "limit": limit})
		if err != nil {
			return nil, err
		}
		var names []string
		for res.Next(ctx) {
			if name := stringValue(res.Record(), "conceptName"); name != "" {
				names = append(names, name)
			}
		}
		return names, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("top concepts: %w", err)
	}
	names, _ := out.([]string)
	return names, nil
}

// DocumentConcepts returns the concepts a document CONTAINS, strongest
// edges first.
func (s *Store) DocumentConcepts(ctx context.Context, documentID string, limit int) ([]domain.Concept, error) {
	if !s.available() {
		return nil, fmt.Errorf("graph store unavailable")
	}
	if limit <= 0 {
		limit = 10
	}

	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (d:Document {documentId: $documentId})-[r:CONTAINS]->(c:Concept)
RETURN c
ORDER BY r.importance DESC
LIMIT $limit
`, map[string]any{"documentId": documentID, "limit": limit})
		if err != nil {
			return nil, err
		}
		var concepts []domain.Concept
		for res.Next(ctx) {
			concepts = append(concepts, conceptFromRecord(res.Record(), "c"))
		}
		return concepts, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("document concepts: %w", err)
	}
	concepts, _ := out.([]domain.Concept)
	return concepts, nil
}

func conceptFromRecord(record *db.Record, key string) domain.Concept {
	raw, _ := record.Get(key)
	node, ok := raw.(neo4j.Node)
	if !ok {
		return domain.Concept{}
	}
	return domain.Concept{
		Name:        nodeString(node, "name"),
		Type:        nodeString(node, "type"),
		Field:       nodeString(node, "field"),
		Description: nodeString(node, "description"),
		Importance:  nodeFloat(node, "importance"),
		Frequency:   nodeInt(node, "frequency"),
		Confidence:  nodeFloat(node, "confidence"),
	}
}

func documentFromRecord(record *db.Record, key string) domain.DocumentNode {
	raw, _ := record.Get(key)
	node, ok := raw.(neo4j.Node)
	if !ok {
		return domain.DocumentNode{}
	}
	return domain.DocumentNode{
		DocumentID:      nodeString(node, "documentId"),
		Title:           nodeString(node, "title"),
		Type:            nodeString(node, "type"),
		UserID:          nodeString(node, "userId"),
		KnowledgeBaseID: nodeString(node, "kbId"),
	}
}

func nodeString(node neo4j.Node, key string) string {
	if raw, ok := node.Props[key]; ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return ""
}

func nodeFloat(node neo4j.Node, key string) float64 {
	switch v := node.Props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func nodeInt(node neo4j.Node, key string) int64 {
	switch v := node.Props[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func stringValue(record *db.Record, key string) string {
	raw, _ := record.Get(key)
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func intValue(record *db.Record, key string) int64 {
	raw, _ := record.Get(key)
	if n, ok := raw.(int64); ok {
		return n
	}
	return 0
}

func floatValue(record *db.Record, key string) float64 {
	raw, _ := record.Get(key)
	switch v := raw.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}
