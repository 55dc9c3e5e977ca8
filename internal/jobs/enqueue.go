package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	jobsrepo "github.com/yungbote/paperdesk-backend/internal/data/repos/jobs"
	"github.com/yungbote/paperdesk-backend/internal/domain"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
)

const JobTypeKGBuild = "kg_build"

// Enqueuer submits background job runs. Submission is fire-and-forget from
// the caller's point of view: once the row is queued, build failures land on
// the job run, never on the enqueuer.
type Enqueuer struct {
	log  *logger.Logger
	db   *gorm.DB
	repo jobsrepo.JobRunRepo
}

func NewEnqueuer(log *logger.Logger, db *gorm.DB, repo jobsrepo.JobRunRepo) *Enqueuer {
	return &Enqueuer{log: log, db: db, repo: repo}
}

// EnqueueGraphBuild queues a knowledge graph build for the document. A
// runnable run for the same document is reused instead of duplicated;
// (nil, nil) means such a run already exists.
func (e *Enqueuer) EnqueueGraphBuild(ctx context.Context, ownerUserID, documentID uuid.UUID) (*domain.JobRun, error) {
	if ownerUserID == uuid.Nil || documentID == uuid.Nil {
		return nil, fmt.Errorf("jobs: owner and document ids required")
	}

	has, err := e.repo.HasRunnableForEntity(ctx, e.db, ownerUserID, "document", documentID, JobTypeKGBuild)
	if err != nil {
		return nil, err
	}
	if has {
		e.log.Debug("Graph build already queued", "document_id", documentID)
		return nil, nil
	}

	payload, err := json.Marshal(map[string]any{"document_id": documentID.String()})
	if err != nil {
		return nil, err
	}
	entityID := documentID
	runs, err := e.repo.Create(ctx, e.db, []*domain.JobRun{{
		OwnerUserID: ownerUserID,
		JobType:     JobTypeKGBuild,
		EntityType:  "document",
		EntityID:    &entityID,
		Status:      "queued",
		Stage:       "queued",
		Payload:     datatypes.JSON(payload),
	}})
	if err != nil {
		return nil, err
	}
	return runs[0], nil
}
