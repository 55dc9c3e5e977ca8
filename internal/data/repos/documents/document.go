package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/paperdesk-backend/internal/domain"
	"github.com/yungbote/paperdesk-backend/internal/platform/apierr"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
)

type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, docs []*domain.Document) ([]*domain.Document, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Document, error)
	// GetOwned enforces the retrieval scope: a missing row is NotFound and a
	// row owned by another user is Unauthorized.
	GetOwned(ctx context.Context, tx *gorm.DB, ownerUserID, id uuid.UUID) (*domain.Document, error)
	ListByOwner(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, limit int) ([]*domain.Document, error)
	ListByKnowledgeBase(ctx context.Context, tx *gorm.DB, ownerUserID, knowledgeBaseID uuid.UUID, limit int) ([]*domain.Document, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{
		db:  db,
		log: baseLog.With("repo", "DocumentRepo"),
	}
}

func (r *documentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, docs []*domain.Document) ([]*domain.Document, error) {
	if len(docs) == 0 {
		return []*domain.Document{}, nil
	}
	if err := r.conn(tx).WithContext(ctx).Create(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Document, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var doc domain.Document
	err := r.conn(tx).WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == uuid.Nil {
		return nil, nil
	}
	return &doc, nil
}

func (r *documentRepo) GetOwned(ctx context.Context, tx *gorm.DB, ownerUserID, id uuid.UUID) (*domain.Document, error) {
	doc, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apierr.NotFound(fmt.Errorf("document %s not found", id))
	}
	if ownerUserID == uuid.Nil || doc.OwnerUserID != ownerUserID {
		return nil, apierr.Unauthorized(fmt.Errorf("document %s not owned by user", id))
	}
	return doc, nil
}

func (r *documentRepo) ListByOwner(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, limit int) ([]*domain.Document, error) {
	var out []*domain.Document
	if ownerUserID == uuid.Nil {
		return out, nil
	}
	q := r.conn(tx).WithContext(ctx).
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) ListByKnowledgeBase(ctx context.Context, tx *gorm.DB, ownerUserID, knowledgeBaseID uuid.UUID, limit int) ([]*domain.Document, error) {
	var out []*domain.Document
	if ownerUserID == uuid.Nil || knowledgeBaseID == uuid.Nil {
		return out, nil
	}
	q := r.conn(tx).WithContext(ctx).
		Where("owner_user_id = ? AND knowledge_base_id = ?", ownerUserID, knowledgeBaseID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.conn(tx).WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *documentRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Document{}).Error
}
