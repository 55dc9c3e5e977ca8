package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/paperdesk-backend/internal/domain"
	"github.com/yungbote/paperdesk-backend/internal/platform/logger"
)

type fakeJobRunRepo struct {
	runnable bool
	created  []*domain.JobRun
}

func (f *fakeJobRunRepo) Create(ctx context.Context, tx *gorm.DB, jobs []*domain.JobRun) ([]*domain.JobRun, error) {
	for _, j := range jobs {
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
	}
	f.created = append(f.created, jobs...)
	return jobs, nil
}

func (f *fakeJobRunRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*domain.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRunRepo) GetLatestByEntity(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*domain.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRunRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*domain.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}

func (f *fakeJobRunRepo) UpdateFieldsUnlessStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	return true, nil
}

func (f *fakeJobRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return nil
}

func (f *fakeJobRunRepo) HasRunnableForEntity(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (bool, error) {
	return f.runnable, nil
}

func (f *fakeJobRunRepo) CountByStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error) {
	return nil, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	logg, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	return logg
}

func TestEnqueueGraphBuildCreatesQueuedRun(t *testing.T) {
	repo := &fakeJobRunRepo{}
	e := NewEnqueuer(testLogger(t), nil, repo)
	owner := uuid.New()
	docID := uuid.New()

	run, err := e.EnqueueGraphBuild(context.Background(), owner, docID)
	if err != nil {
		t.Fatalf("EnqueueGraphBuild: %v", err)
	}
	if run == nil {
		t.Fatal("expected a queued run")
	}
	if run.JobType != JobTypeKGBuild || run.Status != "queued" || run.EntityType != "document" {
		t.Fatalf("unexpected run shape: %+v", run)
	}
	if run.EntityID == nil || *run.EntityID != docID {
		t.Fatalf("entity id: want=%s got=%v", docID, run.EntityID)
	}
	var payload map[string]string
	if err := json.Unmarshal(run.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["document_id"] != docID.String() {
		t.Fatalf("payload document_id: want=%s got=%s", docID, payload["document_id"])
	}
}

func TestEnqueueGraphBuildSuppressesDuplicate(t *testing.T) {
	repo := &fakeJobRunRepo{runnable: true}
	e := NewEnqueuer(testLogger(t), nil, repo)

	run, err := e.EnqueueGraphBuild(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("EnqueueGraphBuild: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil run for an already-runnable build, got %+v", run)
	}
	if len(repo.created) != 0 {
		t.Fatalf("no row should be created, got %d", len(repo.created))
	}
}

func TestEnqueueGraphBuildRejectsNilIDs(t *testing.T) {
	e := NewEnqueuer(testLogger(t), nil, &fakeJobRunRepo{})
	if _, err := e.EnqueueGraphBuild(context.Background(), uuid.Nil, uuid.New()); err == nil {
		t.Fatal("expected error for nil owner id")
	}
	if _, err := e.EnqueueGraphBuild(context.Background(), uuid.New(), uuid.Nil); err == nil {
		t.Fatal("expected error for nil document id")
	}
}
