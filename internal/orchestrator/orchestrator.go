// Package orchestrator runs bulk part-information searches as resumable
// background jobs: tiered field mappings, cross-provider dedup, best-effort
// local part matching and per-part completion state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/partscout/partscout/internal/logging"
	"github.com/partscout/partscout/internal/models"
	"github.com/partscout/partscout/internal/providers"
)

var (
	// ErrNoPartsSelected is returned when a job is started without parts
	ErrNoPartsSelected = errors.New("no parts selected")

	// ErrNoValidParts is returned when none of the requested part ids exist
	ErrNoValidParts = errors.New("no valid parts found")

	// ErrNoResults means no provider returned anything for any part; the
	// job is deleted rather than left around empty
	ErrNoResults = errors.New("no search results found for any part")
)

// JobStore persists import jobs and their per-part state
type JobStore interface {
	Create(ctx context.Context, createdBy string, partIDs []string, mappings []models.FieldMapping, prefetch bool) (*models.ImportJob, error)
	GetByID(ctx context.Context, id string) (*models.ImportJob, error)
	ClaimPending(ctx context.Context) (*models.ImportJob, error)
	SaveResults(ctx context.Context, id string, blob []byte) error
	UpdateStatus(ctx context.Context, id string, status models.JobStatus, errMsg string) error
	MarkPart(ctx context.Context, jobID, partID string, state models.JobPartState, skipReason string) error
	Delete(ctx context.Context, id string) error
}

// PartStore loads local parts for keyword extraction and result matching
type PartStore interface {
	GetByIDs(ctx context.Context, ids []string) ([]*models.Part, error)
	FindByMPN(ctx context.Context, mpn string) ([]string, error)
}

// Searcher is the retriever surface the orchestrator needs
type Searcher interface {
	SearchKeywords(ctx context.Context, p providers.Provider, keywords []string) (map[string][]models.SearchResult, error)
	Details(ctx context.Context, providerKey, id string) (*models.PartDetail, error)
}

// Archiver stores a copy of provider files, used for datasheet prefetch.
// Optional; a nil archiver disables archiving.
type Archiver interface {
	Archive(ctx context.Context, providerKey string, file models.File) error
}

// Config holds orchestrator settings
type Config struct {
	// MaxConcurrentJobs bounds how many claimed jobs run at once
	MaxConcurrentJobs int
	// PollInterval is how often the worker looks for pending jobs
	PollInterval time.Duration
}

// Service orchestrates bulk import jobs
type Service struct {
	jobs      JobStore
	parts     PartStore
	search    Searcher
	registry  *providers.Registry
	archiver  Archiver
	logger    *logging.Logger
	maxJobs   int
	pollEvery time.Duration
}

// New creates an orchestrator service. archiver may be nil.
func New(jobs JobStore, parts PartStore, search Searcher, registry *providers.Registry, archiver Archiver, logger *logging.Logger, cfg Config) *Service {
	maxJobs := cfg.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = 2
	}
	pollEvery := cfg.PollInterval
	if pollEvery <= 0 {
		pollEvery = 2 * time.Second
	}
	return &Service{
		jobs:      jobs,
		parts:     parts,
		search:    search,
		registry:  registry,
		archiver:  archiver,
		logger:    logger,
		maxJobs:   maxJobs,
		pollEvery: pollEvery,
	}
}

// StartJob validates the request, persists a pending job and returns its id.
// The search itself runs later on the background worker.
func (s *Service) StartJob(ctx context.Context, partIDs []string, mappings []models.FieldMapping, prefetch bool, createdBy string) (string, error) {
	if len(partIDs) == 0 {
		return "", ErrNoPartsSelected
	}

	parts, err := s.parts.GetByIDs(ctx, partIDs)
	if err != nil {
		return "", fmt.Errorf("failed to load parts: %w", err)
	}
	if len(parts) == 0 {
		return "", ErrNoValidParts
	}

	validIDs := make([]string, 0, len(parts))
	for _, p := range parts {
		validIDs = append(validIDs, p.ID)
	}

	job, err := s.jobs.Create(ctx, createdBy, validIDs, mappings, prefetch)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("import job created",
		logging.WithField("job_id", job.ID),
		logging.WithField("parts", len(validIDs)),
		logging.WithField("created_by", createdBy))

	return job.ID, nil
}

// JobStatus is the progress snapshot returned to callers
type JobStatus struct {
	ID             string           `json:"id"`
	Status         models.JobStatus `json:"status"`
	Progress       float64          `json:"progressPercentage"`
	CompletedCount int              `json:"completedCount"`
	SkippedCount   int              `json:"skippedCount"`
	TotalCount     int              `json:"totalCount"`
	Error          string           `json:"error,omitempty"`
	Parts          []models.JobPart `json:"parts,omitempty"`
}

// GetJobStatus returns the current status and progress of a job
func (s *Service) GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	completed, skipped, total := job.Counts()
	return &JobStatus{
		ID:             job.ID,
		Status:         job.Status,
		Progress:       job.Progress(),
		CompletedCount: completed,
		SkippedCount:   skipped,
		TotalCount:     total,
		Error:          job.Error,
		Parts:          job.Parts,
	}, nil
}

// GetJobResults deserializes the stored result blob, re-resolving local
// parts by id. Parts deleted since the search simply lose their local match.
func (s *Service) GetJobResults(ctx context.Context, jobID string) ([]models.PartOutcome, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(job.SearchResults) == 0 {
		return []models.PartOutcome{}, nil
	}
	return DeserializeResults(ctx, job.SearchResults, s.parts)
}

// MarkPart transitions one part's state and completes the job when every
// part is done. Safe to repeat; marking a completed part completed again is
// a no-op.
func (s *Service) MarkPart(ctx context.Context, jobID, partID string, state models.JobPartState, skipReason string) error {
	switch state {
	case models.JobPartPending, models.JobPartCompleted, models.JobPartSkipped:
	default:
		return fmt.Errorf("invalid part state %q", state)
	}

	if err := s.jobs.MarkPart(ctx, jobID, partID, state, skipReason); err != nil {
		return err
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == models.JobStatusInProgress && job.AllPartsDone() {
		if err := s.jobs.UpdateStatus(ctx, jobID, models.JobStatusCompleted, ""); err != nil {
			return err
		}
		s.logger.Info("import job completed", logging.WithField("job_id", jobID))
	}
	return nil
}

// StopJob stops a pending or in-progress job
func (s *Service) StopJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.CanStop() {
		return fmt.Errorf("job %s is %s and cannot be stopped", jobID, job.Status)
	}
	return s.jobs.UpdateStatus(ctx, jobID, models.JobStatusStopped, "")
}

// DeleteJob removes a job entirely
func (s *Service) DeleteJob(ctx context.Context, jobID string) error {
	return s.jobs.Delete(ctx, jobID)
}

// runJob executes the search phase of a claimed job. The job is already
// in_progress. Zero results across all parts deletes the job; an unhandled
// failure deletes it too rather than leaving a half-written record.
func (s *Service) runJob(ctx context.Context, job *models.ImportJob) error {
	partIDs := make([]string, 0, len(job.Parts))
	for _, p := range job.Parts {
		partIDs = append(partIDs, p.PartID)
	}

	parts, err := s.parts.GetByIDs(ctx, partIDs)
	if err != nil {
		return s.failJob(ctx, job.ID, fmt.Errorf("failed to load parts: %w", err))
	}
	if len(parts) == 0 {
		return s.failJob(ctx, job.ID, ErrNoValidParts)
	}

	outcomes := make([]models.PartOutcome, 0, len(parts))
	anyResults := false
	for _, part := range parts {
		outcome := s.searchPart(ctx, part, job.FieldMappings)
		if outcome.HasResults() {
			anyResults = true
		}
		outcomes = append(outcomes, outcome)
	}

	if !anyResults {
		return s.failJob(ctx, job.ID, ErrNoResults)
	}

	if job.PrefetchDetails {
		s.prefetch(ctx, outcomes)
	}

	blob, err := SerializeResults(outcomes)
	if err != nil {
		return s.failJob(ctx, job.ID, fmt.Errorf("failed to serialize results: %w", err))
	}
	if err := s.jobs.SaveResults(ctx, job.ID, blob); err != nil {
		return s.failJob(ctx, job.ID, fmt.Errorf("failed to persist results: %w", err))
	}

	s.logger.Info("import job search finished",
		logging.WithField("job_id", job.ID),
		logging.WithField("parts", len(outcomes)))
	return nil
}

// failJob deletes the job and returns the surfaced error
func (s *Service) failJob(ctx context.Context, jobID string, cause error) error {
	s.logger.Warn("import job failed, deleting",
		logging.WithField("job_id", jobID),
		logging.WithField("error", cause.Error()))
	if err := s.jobs.Delete(ctx, jobID); err != nil {
		s.logger.Error("failed to delete failed job",
			logging.WithField("job_id", jobID),
			logging.WithField("error", err.Error()))
	}
	return cause
}

// tierSearch is one mapping's extracted work within a priority tier
type tierSearch struct {
	field   string
	keyword string
}

// searchPart runs the tiered search for one part. Provider failures become
// per-part error strings, never abort the part.
func (s *Service) searchPart(ctx context.Context, part *models.Part, mappings []models.FieldMapping) models.PartOutcome {
	outcome := models.PartOutcome{PartID: part.ID}

	for _, tier := range groupByPriority(mappings) {
		entries, errs := s.searchTier(ctx, part, tier)
		outcome.Errors = append(outcome.Errors, errs...)
		if len(entries) > 0 {
			// First non-empty tier wins; lower-priority tiers are not
			// consulted for this part
			outcome.SearchResults = entries
			break
		}
	}

	s.resolveLocalParts(ctx, outcome.SearchResults)
	return outcome
}

// searchTier runs all mappings of one priority tier, grouping keywords per
// provider so batch-capable providers get one round trip, then dedups by
// (provider_key, provider_id) with first-seen-wins source metadata.
func (s *Service) searchTier(ctx context.Context, part *models.Part, tier []models.FieldMapping) ([]models.ResultEntry, []string) {
	type source struct {
		field   string
		keyword string
	}

	// keywords per provider, in mapping order
	perProvider := make(map[string][]string)
	keywordSource := make(map[string]map[string]source) // provider -> keyword -> source
	var providerOrder []string

	for _, mapping := range tier {
		keyword := extractKeyword(part, mapping.Field)
		if keyword == "" || len(mapping.Providers) == 0 {
			continue
		}
		for _, key := range mapping.Providers {
			if _, seen := keywordSource[key]; !seen {
				keywordSource[key] = make(map[string]source)
				providerOrder = append(providerOrder, key)
			}
			if _, dup := keywordSource[key][keyword]; !dup {
				keywordSource[key][keyword] = source{field: mapping.Field, keyword: keyword}
				perProvider[key] = append(perProvider[key], keyword)
			}
		}
	}

	var entries []models.ResultEntry
	var errs []string
	seen := make(map[string]bool)

	for _, key := range providerOrder {
		p := s.registry.Get(key)
		if p == nil || !p.Active() {
			errs = append(errs, fmt.Sprintf("provider %s is not available", key))
			continue
		}

		keywords := perProvider[key]
		results, err := s.search.SearchKeywords(ctx, p, keywords)
		if err != nil {
			errs = append(errs, fmt.Sprintf("provider %s: %v", key, err))
			continue
		}

		for _, keyword := range keywords {
			src := keywordSource[key][keyword]
			for _, dto := range results[keyword] {
				dedupKey := dto.DedupKey()
				if seen[dedupKey] {
					continue
				}
				seen[dedupKey] = true
				entries = append(entries, models.ResultEntry{
					DTO:           dto,
					SourceField:   src.field,
					SourceKeyword: src.keyword,
				})
			}
		}
	}

	return entries, errs
}

// resolveLocalParts attaches a best-effort local part match by MPN
func (s *Service) resolveLocalParts(ctx context.Context, entries []models.ResultEntry) {
	for i := range entries {
		mpn := entries[i].DTO.MPN
		if mpn == "" {
			continue
		}
		ids, err := s.parts.FindByMPN(ctx, mpn)
		if err != nil {
			s.logger.Warn("local part lookup failed",
				logging.WithField("mpn", mpn),
				logging.WithField("error", err.Error()))
			continue
		}
		if len(ids) > 0 {
			entries[i].LocalPartID = ids[0]
		}
	}
}

// prefetch warms the detail cache for every candidate; failures are logged
// and skipped
func (s *Service) prefetch(ctx context.Context, outcomes []models.PartOutcome) {
	for _, outcome := range outcomes {
		for _, entry := range outcome.SearchResults {
			detail, err := s.search.Details(ctx, entry.DTO.ProviderKey, entry.DTO.ProviderID)
			if err != nil {
				s.logger.Warn("detail prefetch failed",
					logging.WithField("provider", entry.DTO.ProviderKey),
					logging.WithField("id", entry.DTO.ProviderID),
					logging.WithField("error", err.Error()))
				continue
			}
			s.archiveDatasheets(ctx, entry.DTO.ProviderKey, detail)
		}
	}
}

func (s *Service) archiveDatasheets(ctx context.Context, providerKey string, detail *models.PartDetail) {
	if s.archiver == nil {
		return
	}
	for _, ds := range detail.Datasheets {
		if err := s.archiver.Archive(ctx, providerKey, ds); err != nil {
			s.logger.Warn("datasheet archive failed",
				logging.WithField("provider", providerKey),
				logging.WithField("url", ds.URL),
				logging.WithField("error", err.Error()))
		}
	}
}

// extractKeyword pulls the search value for a mapping field out of the part
func extractKeyword(part *models.Part, field string) string {
	switch field {
	case models.FieldMPN:
		return part.MPN
	case models.FieldName:
		return part.Name
	}
	if supplierID, ok := models.ParseSupplierSPNField(field); ok {
		return part.SupplierOrderNumber(supplierID)
	}
	return ""
}

// groupByPriority splits mappings into tiers, ascending priority
func groupByPriority(mappings []models.FieldMapping) [][]models.FieldMapping {
	byPriority := make(map[int][]models.FieldMapping)
	var priorities []int
	for _, m := range mappings {
		if _, ok := byPriority[m.Priority]; !ok {
			priorities = append(priorities, m.Priority)
		}
		byPriority[m.Priority] = append(byPriority[m.Priority], m)
	}
	sort.Ints(priorities)

	tiers := make([][]models.FieldMapping, 0, len(priorities))
	for _, p := range priorities {
		tiers = append(tiers, byPriority[p])
	}
	return tiers
}
