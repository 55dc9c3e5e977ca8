package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document is the relational record for an ingested paper.
// Chunk text lives in the vector and lexical stores; this row carries
// ownership, knowledge-base scope, and lifecycle state.
type Document struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	KnowledgeBaseID *uuid.UUID     `gorm:"type:uuid;index" json:"knowledge_base_id,omitempty"`
	Title           string         `gorm:"column:title;not null" json:"title"`
	DocType         string         `gorm:"column:doc_type" json:"doc_type,omitempty"`
	Summary         string         `gorm:"column:summary" json:"summary,omitempty"`
	Status          string         `gorm:"column:status;not null;index" json:"status"`
	ChunkCount      int            `gorm:"column:chunk_count;not null;default:0" json:"chunk_count"`
	Metadata        datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string { return "document" }

const (
	DocumentStatusUploaded = "uploaded"
	DocumentStatusIndexing = "indexing"
	DocumentStatusReady    = "ready"
	DocumentStatusFailed   = "failed"
)
