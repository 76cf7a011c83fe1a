package database

import (
	"context"
	"errors"
	"testing"

	"github.com/partscout/partscout/internal/models"
	"github.com/partscout/partscout/internal/testutil"
)

func newStores(t *testing.T) (*JobStore, *PartStore, context.Context) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)

	ctx := context.Background()
	tdb.Cleanup(ctx)
	t.Cleanup(func() { tdb.Cleanup(context.Background()) })

	db := &DB{DB: tdb.DB}
	return NewJobStore(db), NewPartStore(db), ctx
}

func createTestParts(t *testing.T, parts *PartStore, ctx context.Context, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p := &models.Part{
			Name: "Test part",
			MPN:  "TP-100",
		}
		if err := parts.Create(ctx, p); err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		ids = append(ids, p.ID)
	}
	return ids
}

func TestJobStore_CreateAndGet(t *testing.T) {
	jobs, parts, ctx := newStores(t)
	partIDs := createTestParts(t, parts, ctx, 2)

	mappings := []models.FieldMapping{
		{Field: models.FieldMPN, Providers: []string{"lcsc"}, Priority: 1},
	}
	job, err := jobs.Create(ctx, "tester", partIDs, mappings, true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	loaded, err := jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if loaded.Status != models.JobStatusPending {
		t.Errorf("expected pending, got %s", loaded.Status)
	}
	if loaded.CreatedBy != "tester" || !loaded.PrefetchDetails {
		t.Errorf("fields did not round-trip: %+v", loaded)
	}
	if len(loaded.FieldMappings) != 1 || loaded.FieldMappings[0].Field != models.FieldMPN {
		t.Errorf("mappings did not round-trip: %+v", loaded.FieldMappings)
	}
	if len(loaded.Parts) != 2 {
		t.Errorf("expected 2 job parts, got %d", len(loaded.Parts))
	}
	for _, p := range loaded.Parts {
		if p.State != models.JobPartPending {
			t.Errorf("part %s not pending: %s", p.PartID, p.State)
		}
	}
}

func TestJobStore_GetByID_NotFound(t *testing.T) {
	jobs, _, ctx := newStores(t)
	_, err := jobs.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobStore_ClaimPending(t *testing.T) {
	jobs, parts, ctx := newStores(t)
	partIDs := createTestParts(t, parts, ctx, 1)

	first, err := jobs.Create(ctx, "tester", partIDs, nil, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := jobs.Create(ctx, "tester", partIDs, nil, false); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	claimed, err := jobs.ClaimPending(ctx)
	if err != nil {
		t.Fatalf("ClaimPending failed: %v", err)
	}
	if claimed.ID != first.ID {
		t.Errorf("expected oldest job %s, got %s", first.ID, claimed.ID)
	}
	if claimed.Status != models.JobStatusInProgress {
		t.Errorf("claimed job not in progress: %s", claimed.Status)
	}

	// Second claim gets the second job, third finds nothing
	if _, err := jobs.ClaimPending(ctx); err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if _, err := jobs.ClaimPending(ctx); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound with no pending jobs, got %v", err)
	}
}

func TestJobStore_StatusTransitions(t *testing.T) {
	jobs, parts, ctx := newStores(t)
	partIDs := createTestParts(t, parts, ctx, 1)

	job, err := jobs.Create(ctx, "tester", partIDs, nil, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// pending -> completed is not allowed
	if err := jobs.UpdateStatus(ctx, job.ID, models.JobStatusCompleted, ""); err == nil {
		t.Error("pending -> completed must fail")
	}

	if err := jobs.UpdateStatus(ctx, job.ID, models.JobStatusInProgress, ""); err != nil {
		t.Fatalf("pending -> in_progress failed: %v", err)
	}

	// Repeating the same transition is idempotent
	if err := jobs.UpdateStatus(ctx, job.ID, models.JobStatusInProgress, ""); err != nil {
		t.Errorf("idempotent repeat failed: %v", err)
	}

	if err := jobs.UpdateStatus(ctx, job.ID, models.JobStatusCompleted, ""); err != nil {
		t.Fatalf("in_progress -> completed failed: %v", err)
	}

	// Terminal jobs stay terminal
	if err := jobs.UpdateStatus(ctx, job.ID, models.JobStatusStopped, ""); err == nil {
		t.Error("completed -> stopped must fail")
	}
}

func TestJobStore_MarkPartAndResults(t *testing.T) {
	jobs, parts, ctx := newStores(t)
	partIDs := createTestParts(t, parts, ctx, 2)

	job, err := jobs.Create(ctx, "tester", partIDs, nil, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := jobs.MarkPart(ctx, job.ID, partIDs[0], models.JobPartCompleted, ""); err != nil {
		t.Fatalf("MarkPart failed: %v", err)
	}
	if err := jobs.MarkPart(ctx, job.ID, partIDs[1], models.JobPartSkipped, "no match"); err != nil {
		t.Fatalf("MarkPart failed: %v", err)
	}
	if err := jobs.MarkPart(ctx, job.ID, "missing-part", models.JobPartCompleted, ""); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound for unknown part, got %v", err)
	}

	if err := jobs.SaveResults(ctx, job.ID, []byte(`[{"part_id":"x"}]`)); err != nil {
		t.Fatalf("SaveResults failed: %v", err)
	}

	loaded, err := jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	completed, skipped, total := loaded.Counts()
	if completed != 1 || skipped != 1 || total != 2 {
		t.Errorf("unexpected counts: %d/%d/%d", completed, skipped, total)
	}
	if len(loaded.SearchResults) == 0 {
		t.Error("results blob missing")
	}

	var skipReason string
	for _, p := range loaded.Parts {
		if p.PartID == partIDs[1] {
			skipReason = p.SkipReason
		}
	}
	if skipReason != "no match" {
		t.Errorf("skip reason did not round-trip: %q", skipReason)
	}
}

func TestJobStore_Delete(t *testing.T) {
	jobs, parts, ctx := newStores(t)
	partIDs := createTestParts(t, parts, ctx, 1)

	job, err := jobs.Create(ctx, "tester", partIDs, nil, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := jobs.Delete(ctx, job.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := jobs.GetByID(ctx, job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound after delete, got %v", err)
	}
	if err := jobs.Delete(ctx, job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("double delete should report ErrJobNotFound, got %v", err)
	}
}

func TestJobStore_ListByStatus(t *testing.T) {
	jobs, parts, ctx := newStores(t)
	partIDs := createTestParts(t, parts, ctx, 1)

	for i := 0; i < 3; i++ {
		if _, err := jobs.Create(ctx, "tester", partIDs, nil, false); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	pending, err := jobs.ListByStatus(ctx, models.JobStatusPending, 2)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("limit not honored, got %d jobs", len(pending))
	}

	done, err := jobs.ListByStatus(ctx, models.JobStatusCompleted, 0)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(done) != 0 {
		t.Errorf("expected no completed jobs, got %d", len(done))
	}
}
