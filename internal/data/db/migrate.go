package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/paperdesk-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Document{},
		&domain.JobRun{},
	)
}

func EnsureDocumentIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_document_owner_status
		ON document (owner_user_id, status, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_document_owner_status: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_document_kb
		ON document (knowledge_base_id)
		WHERE knowledge_base_id IS NOT NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_document_kb: %w", err)
	}
	return nil
}

func EnsureJobIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_run_claim
		ON job_run (status, created_at)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_claim: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureDocumentIndexes(s.db); err != nil {
		s.log.Error("Document index migration failed", "error", err)
		return err
	}
	if err := EnsureJobIndexes(s.db); err != nil {
		s.log.Error("Job index migration failed", "error", err)
		return err
	}
	return nil
}
