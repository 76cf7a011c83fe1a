package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/partscout/partscout/internal/models"
)

// ErrJobNotFound is returned when a job id does not exist
var ErrJobNotFound = errors.New("import job not found")

// JobStore handles import job database operations
type JobStore struct {
	db *DB
}

// NewJobStore creates a new job store
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

// Create inserts a new pending job together with its part rows
func (s *JobStore) Create(ctx context.Context, createdBy string, partIDs []string, mappings []models.FieldMapping, prefetch bool) (*models.ImportJob, error) {
	mappingsJSON, err := json.Marshal(mappings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode field mappings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	job := &models.ImportJob{
		ID:              uuid.NewString(),
		Status:          models.JobStatusPending,
		CreatedBy:       createdBy,
		FieldMappings:   mappings,
		PrefetchDetails: prefetch,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO import_jobs (id, status, created_by, field_mappings, prefetch_details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, job.ID, job.Status, createdBy, mappingsJSON, prefetch).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	for _, partID := range partIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO import_job_parts (job_id, part_id, state)
			VALUES ($1, $2, $3)
			ON CONFLICT (job_id, part_id) DO NOTHING
		`, job.ID, partID, models.JobPartPending); err != nil {
			return nil, fmt.Errorf("failed to insert job part: %w", err)
		}
		job.Parts = append(job.Parts, models.JobPart{
			JobID:  job.ID,
			PartID: partID,
			State:  models.JobPartPending,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit job: %w", err)
	}

	return job, nil
}

// GetByID loads a job with its part rows
func (s *JobStore) GetByID(ctx context.Context, id string) (*models.ImportJob, error) {
	job := &models.ImportJob{}
	var mappingsJSON []byte
	var results sql.NullString
	var jobErr sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, created_by, field_mappings, prefetch_details,
		       search_results, error, created_at, updated_at
		FROM import_jobs
		WHERE id = $1
	`, id).Scan(
		&job.ID, &job.Status, &job.CreatedBy, &mappingsJSON, &job.PrefetchDetails,
		&results, &jobErr, &job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	if err := json.Unmarshal(mappingsJSON, &job.FieldMappings); err != nil {
		return nil, fmt.Errorf("failed to decode field mappings: %w", err)
	}
	if results.Valid {
		job.SearchResults = []byte(results.String)
	}
	if jobErr.Valid {
		job.Error = jobErr.String
	}

	parts, err := s.jobParts(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Parts = parts

	return job, nil
}

// ListByStatus returns job summaries in creation order, oldest first
func (s *JobStore) ListByStatus(ctx context.Context, status models.JobStatus, limit int) ([]*models.ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, created_by, prefetch_details, error, created_at, updated_at
		FROM import_jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ImportJob
	for rows.Next() {
		job := &models.ImportJob{}
		var jobErr sql.NullString
		if err := rows.Scan(&job.ID, &job.Status, &job.CreatedBy, &job.PrefetchDetails,
			&jobErr, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if jobErr.Valid {
			job.Error = jobErr.String
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimPending atomically flips the oldest pending job to in_progress and
// returns it. Returns ErrJobNotFound when no pending job exists. Safe with
// multiple workers: the conditional UPDATE lets only one claim each job.
func (s *JobStore) ClaimPending(ctx context.Context) (*models.ImportJob, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		UPDATE import_jobs
		SET status = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM import_jobs
			WHERE status = $2
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`, models.JobStatusInProgress, models.JobStatusPending).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// SaveResults stores the serialized result blob
func (s *JobStore) SaveResults(ctx context.Context, id string, blob []byte) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE import_jobs SET search_results = $1, updated_at = NOW() WHERE id = $2
	`, blob, id)
	if err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	return s.checkAffected(res)
}

// UpdateStatus moves the job to a new status, optionally recording an error
// message. The allowed transitions are enforced in SQL so concurrent writers
// cannot resurrect a terminal job.
func (s *JobStore) UpdateStatus(ctx context.Context, id string, status models.JobStatus, errMsg string) error {
	var from []models.JobStatus
	switch status {
	case models.JobStatusInProgress:
		from = []models.JobStatus{models.JobStatusPending}
	case models.JobStatusCompleted, models.JobStatusFailed:
		from = []models.JobStatus{models.JobStatusInProgress}
	case models.JobStatusStopped:
		from = []models.JobStatus{models.JobStatusPending, models.JobStatusInProgress}
	default:
		return fmt.Errorf("cannot transition a job to %q", status)
	}

	fromStrings := make([]string, len(from))
	for i, st := range from {
		fromStrings[i] = string(st)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = $1, error = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)
	`, status, errMsg, id, pq.Array(fromStrings))
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the job is gone or it is not in an allowed source state;
		// distinguish for the caller
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		if current.Status == status {
			// Idempotent repeat of the same transition
			return nil
		}
		return fmt.Errorf("job %s is %s, cannot move to %s", id, current.Status, status)
	}
	return nil
}

// MarkPart sets one part's state. Conditional update: marking an already
// completed/skipped part as completed/skipped again is a no-op, and any part
// can be reset to pending while the job is not terminal.
func (s *JobStore) MarkPart(ctx context.Context, jobID, partID string, state models.JobPartState, skipReason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE import_job_parts
		SET state = $1, skip_reason = NULLIF($2, ''), updated_at = NOW()
		WHERE job_id = $3 AND part_id = $4
	`, state, skipReason, jobID, partID)
	if err != nil {
		return fmt.Errorf("failed to mark job part: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: part %s in job %s", ErrJobNotFound, partID, jobID)
	}
	return nil
}

// Delete removes a job and its part rows
func (s *JobStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM import_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return s.checkAffected(res)
}

func (s *JobStore) jobParts(ctx context.Context, jobID string) ([]models.JobPart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, part_id, state, skip_reason, updated_at
		FROM import_job_parts
		WHERE job_id = $1
		ORDER BY part_id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job parts: %w", err)
	}
	defer rows.Close()

	var parts []models.JobPart
	for rows.Next() {
		var p models.JobPart
		var skipReason sql.NullString
		if err := rows.Scan(&p.JobID, &p.PartID, &p.State, &skipReason, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job part: %w", err)
		}
		if skipReason.Valid {
			p.SkipReason = skipReason.String
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

func (s *JobStore) checkAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}
