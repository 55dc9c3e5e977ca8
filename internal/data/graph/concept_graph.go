package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/paperdesk-backend/internal/domain"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
	"github.com/yungbote/paperdesk-backend/internal/platform/neo4jdb"
)

// Store executes concept graph reads and writes against Neo4j. All upserts
// use MERGE on natural keys so concurrent ingestion of documents sharing a
// concept never duplicates nodes or edges.
type Store struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewStore(client *neo4jdb.Client, log *logger.Logger) *Store {
	return &Store{
		client: client,
		log:    log.With("service", "ConceptGraphStore"),
	}
}

func (s *Store) available() bool {
	return s != nil && s.client != nil && s.client.Driver != nil
}

func (s *Store) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.client.Database,
	})
}

func (s *Store) readSession(ctx context.Context) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.client.Database,
	})
}

// EnsureSchema creates uniqueness constraints for the natural keys.
// Best-effort; may fail for restricted users.
func (s *Store) EnsureSchema(ctx context.Context) {
	if !s.available() {
		return
	}
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT concept_name_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.name IS UNIQUE`,
		`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.documentId IS UNIQUE`,
		`CREATE CONSTRAINT author_name_unique IF NOT EXISTS FOR (a:Author) REQUIRE a.name IS UNIQUE`,
	}
	for _, stmt := range statements {
		if res, err := session.Run(ctx, stmt, nil); err != nil {
			s.log.Warn("neo4j schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

// UpsertConcepts merges each concept by name in one statement. A new name
// gets frequency=1; an existing one gets an atomic frequency increment and
// its descriptive fields overwritten. Returns how many names were new.
// conceptRows prepares the UNWIND batch. Names are trimmed and deduplicated
// keeping the first occurrence; a repeated name in one batch would MERGE-match
// its own earlier row and increment frequency twice.
func conceptRows(concepts []domain.Concept) []map[string]any {
	rows := make([]map[string]any, 0, len(concepts))
	seen := make(map[string]struct{}, len(concepts))
	for _, c := range concepts {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		rows = append(rows, map[string]any{
			"name":        name,
			"type":        c.Type,
			"field":       c.Field,
			"description": c.Description,
			"importance":  c.Importance,
			"confidence":  c.Confidence,
		})
	}
	return rows
}

func (s *Store) UpsertConcepts(ctx context.Context, concepts []domain.Concept) (int, error) {
	if !s.available() {
		return 0, fmt.Errorf("graph store unavailable")
	}
	rows := conceptRows(concepts)
	if len(rows) == 0 {
		return 0, nil
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	newCount, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $rows AS row
MERGE (c:Concept {name: row.name})
ON CREATE SET
    c.type = row.type,
    c.field = row.field,
    c.description = row.description,
    c.importance = row.importance,
    c.confidence = row.confidence,
    c.frequency = 1
ON MATCH SET
    c.type = row.type,
    c.field = row.field,
    c.description = row.description,
    c.importance = row.importance,
    c.confidence = row.confidence,
    c.frequency = c.frequency + 1
WITH c
RETURN sum(CASE WHEN c.frequency = 1 THEN 1 ELSE 0 END) AS newCount
`, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		count, _ := record.Get("newCount")
		return count, nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert concepts: %w", err)
	}
	if n, ok := newCount.(int64); ok {
		return int(n), nil
	}
	return 0, nil
}

// UpsertDocument creates the document node once; re-ingestion is a no-op
// beyond relinking.
func (s *Store) UpsertDocument(ctx context.Context, doc domain.DocumentNode) error {
	if !s.available() {
		return fmt.Errorf("graph store unavailable")
	}
	docID := strings.TrimSpace(doc.DocumentID)
	if docID == "" {
		return fmt.Errorf("upsert document: missing documentId")
	}
	createTime := doc.CreateTime
	if createTime.IsZero() {
		createTime = time.Now().UTC()
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (d:Document {documentId: $documentId})
ON CREATE SET
    d.title = $title,
    d.type = $type,
    d.userId = $userId,
    d.kbId = $kbId,
    d.createTime = $createTime
`, map[string]any{
			"documentId": docID,
			"title":      doc.Title,
			"type":       doc.Type,
			"userId":     doc.UserID,
			"kbId":       doc.KnowledgeBaseID,
			"createTime": createTime.Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// MergeContains links the document to each concept, overwriting edge
// properties on re-extraction.
func (s *Store) MergeContains(ctx context.Context, documentID string, concepts []domain.Concept) error {
	if !s.available() {
		return fmt.Errorf("graph store unavailable")
	}
	rows := make([]map[string]any, 0, len(concepts))
	for _, c := range concepts {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"name":       name,
			"importance": c.Importance,
			"frequency":  c.Frequency,
			"confidence": c.Confidence,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (d:Document {documentId: $documentId})
UNWIND $rows AS row
MATCH (c:Concept {name: row.name})
MERGE (d)-[r:CONTAINS]->(c)
SET r.importance = row.importance,
    r.frequency = row.frequency,
    r.confidence = row.confidence
`, map[string]any{"documentId": documentID, "rows": rows})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("merge contains edges: %w", err)
	}
	return nil
}

// MergeRelatedTo creates undirected concept relations; strength and type are
// overwritten on conflict. Returns how many relation rows were applied.
func (s *Store) MergeRelatedTo(ctx context.Context, relations []domain.ConceptRelation) (int, error) {
	if !s.available() {
		return 0, fmt.Errorf("graph store unavailable")
	}
	rows := make([]map[string]any, 0, len(relations))
	for _, rel := range relations {
		c1 := strings.TrimSpace(rel.Concept1)
		c2 := strings.TrimSpace(rel.Concept2)
		if c1 == "" || c2 == "" || c1 == c2 {
			continue
		}
		confidence := rel.Confidence
		if confidence == 0 {
			confidence = 0.8
		}
		rows = append(rows, map[string]any{
			"concept1":     c1,
			"concept2":     c2,
			"relationType": rel.RelationType,
			"strength":     rel.Strength,
			"confidence":   confidence,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $rows AS row
MATCH (c1:Concept {name: row.concept1})
MATCH (c2:Concept {name: row.concept2})
MERGE (c1)-[r:RELATED_TO]-(c2)
SET r.relationType = row.relationType,
    r.strength = row.strength,
    r.confidence = row.confidence
`, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return 0, fmt.Errorf("merge related_to edges: %w", err)
	}
	return len(rows), nil
}

// MergeHierarchy creates directed IS_A edges from child to parent.
func (s *Store) MergeHierarchy(ctx context.Context, relations []domain.ConceptHierarchy) (int, error) {
	if !s.available() {
		return 0, fmt.Errorf("graph store unavailable")
	}
	rows := make([]map[string]any, 0, len(relations))
	for _, rel := range relations {
		child := strings.TrimSpace(rel.Child)
		parent := strings.TrimSpace(rel.Parent)
		if child == "" || parent == "" || child == parent {
			continue
		}
		rows = append(rows, map[string]any{
			"child":      child,
			"parent":     parent,
			"confidence": rel.Confidence,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $rows AS row
MATCH (child:Concept {name: row.child})
MATCH (parent:Concept {name: row.parent})
MERGE (child)-[r:IS_A]->(parent)
SET r.confidence = row.confidence
`, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return 0, fmt.Errorf("merge is_a edges: %w", err)
	}
	return len(rows), nil
}

// MergeAuthors merges author nodes by name with set-if-present field
// semantics, then links the document. Empty affiliation/email never null
// out previously known values.
func (s *Store) MergeAuthors(ctx context.Context, documentID string, authors []domain.Author) (int, error) {
	if !s.available() {
		return 0, fmt.Errorf("graph store unavailable")
	}
	rows := make([]map[string]any, 0, len(authors))
	for _, a := range authors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"name":        name,
			"affiliation": nullable(a.Affiliation),
			"email":       nullable(a.Email),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (d:Document {documentId: $documentId})
UNWIND $rows AS row
MERGE (a:Author {name: row.name})
ON CREATE SET
    a.affiliation = row.affiliation,
    a.email = row.email
ON MATCH SET
    a.affiliation = COALESCE(row.affiliation, a.affiliation),
    a.email = COALESCE(row.email, a.email)
MERGE (d)-[:AUTHORED_BY]->(a)
`, map[string]any{"documentId": documentID, "rows": rows})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return 0, fmt.Errorf("merge authors: %w", err)
	}
	return len(rows), nil
}

// LinkSimilarDocuments scores the user's other documents by shared concepts
// (0.7 x sharedCount + 0.3 x avgImportance), merges SIMILAR_TO edges to the
// top 5, and returns them.
func (s *Store) LinkSimilarDocuments(ctx context.Context, documentID, userID string) ([]domain.DocumentSimilarity, error) {
	if !s.available() {
		return nil, fmt.Errorf("graph store unavailable")
	}
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (currentDoc:Document {documentId: $documentId})-[:CONTAINS]->(c:Concept)
WITH currentDoc, collect(c) AS currentConcepts
MATCH (otherDoc:Document {userId: $userId})-[:CONTAINS]->(sharedConcept:Concept)
WHERE otherDoc.documentId <> $documentId
  AND sharedConcept IN currentConcepts
WITH currentDoc, otherDoc,
     count(DISTINCT sharedConcept) AS sharedCount,
     avg(sharedConcept.importance) AS avgImportance
WHERE sharedCount >= 1
WITH currentDoc, otherDoc, sharedCount, avgImportance,
     (toFloat(sharedCount) * 0.7 + avgImportance * 0.3) AS similarity
ORDER BY similarity DESC
LIMIT 5
MERGE (currentDoc)-[r:SIMILAR_TO]-(otherDoc)
SET r.similarity = similarity,
    r.similarityType = 'SEMANTIC',
    r.sharedConcepts = sharedCount
RETURN otherDoc.documentId AS documentId, sharedCount, avgImportance, similarity
`, map[string]any{"documentId": documentID, "userId": userID})
		if err != nil {
			return nil, err
		}
		var similar []domain.DocumentSimilarity
		for res.Next(ctx) {
			record := res.Record()
			similar = append(similar, domain.DocumentSimilarity{
				DocumentID:    stringValue(record, "documentId"),
				SharedCount:   intValue(record, "sharedCount"),
				AvgImportance: floatValue(record, "avgImportance"),
				Score:         floatValue(record, "similarity"),
			})
		}
		return similar, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("link similar documents: %w", err)
	}
	similar, _ := out.([]domain.DocumentSimilarity)
	return similar, nil
}

// DeleteDocumentGraph removes the document node and every edge incident to
// it. Concept and Author nodes stay; they may be shared with other documents.
func (s *Store) DeleteDocumentGraph(ctx context.Context, documentID string) error {
	if !s.available() {
		return fmt.Errorf("graph store unavailable")
	}
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (d:Document {documentId: $documentId})
DETACH DELETE d
`, map[string]any{"documentId": documentID})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("delete document graph: %w", err)
	}
	return nil
}

func nullable(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}
