package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/partscout/partscout/internal/logging"
	"github.com/partscout/partscout/internal/models"
	"github.com/partscout/partscout/internal/orchestrator"
)

// JobService is the orchestrator surface the job endpoints need
type JobService interface {
	StartJob(ctx context.Context, partIDs []string, mappings []models.FieldMapping, prefetch bool, createdBy string) (string, error)
	GetJobStatus(ctx context.Context, jobID string) (*orchestrator.JobStatus, error)
	GetJobResults(ctx context.Context, jobID string) ([]models.PartOutcome, error)
	MarkPart(ctx context.Context, jobID, partID string, state models.JobPartState, skipReason string) error
	StopJob(ctx context.Context, jobID string) error
	DeleteJob(ctx context.Context, jobID string) error
}

// JobAPI handles import job lifecycle requests
type JobAPI struct {
	svc    JobService
	logger *logging.Logger
}

// NewJobAPI creates a new job API handler
func NewJobAPI(svc JobService, logger *logging.Logger) *JobAPI {
	return &JobAPI{svc: svc, logger: logger}
}

// RegisterRoutes registers job routes on the given mux
func (api *JobAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/jobs", corsMiddleware(api.handleJobs))
	mux.HandleFunc("/api/jobs/", corsMiddleware(api.handleJobItem))
}

func (api *JobAPI) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	api.createJob(w, r)
}

// handleJobItem routes /api/jobs/{id}[...] to the right operation:
//
//	GET    /api/jobs/{id}                 status
//	DELETE /api/jobs/{id}                 delete
//	GET    /api/jobs/{id}/results         deserialized results
//	POST   /api/jobs/{id}/stop            stop
//	POST   /api/jobs/{id}/parts/{partID}  mark part state
func (api *JobAPI) handleJobItem(w http.ResponseWriter, r *http.Request) {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, http.StatusBadRequest, "Job ID required")
		return
	}
	jobID := segments[0]

	switch {
	case len(segments) == 1 && r.Method == http.MethodGet:
		api.getStatus(w, r, jobID)
	case len(segments) == 1 && r.Method == http.MethodDelete:
		api.deleteJob(w, r, jobID)
	case len(segments) == 2 && segments[1] == "results" && r.Method == http.MethodGet:
		api.getResults(w, r, jobID)
	case len(segments) == 2 && segments[1] == "stop" && r.Method == http.MethodPost:
		api.stopJob(w, r, jobID)
	case len(segments) == 3 && segments[1] == "parts" && r.Method == http.MethodPost:
		api.markPart(w, r, jobID, segments[2])
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createJobRequest struct {
	PartIDs         []string              `json:"partIds"`
	FieldMappings   []models.FieldMapping `json:"fieldMappings"`
	PrefetchDetails bool                  `json:"prefetchDetails"`
}

func (api *JobAPI) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	createdBy := requestUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	jobID, err := api.svc.StartJob(ctx, req.PartIDs, req.FieldMappings, req.PrefetchDetails, createdBy)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			api.logger.Error("Failed to create job", logging.WithFields(map[string]interface{}{
				"created_by": createdBy,
				"error":      err.Error(),
			}))
			writeError(w, status, "Failed to create job")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	api.logger.Info("Import job requested", logging.WithFields(map[string]interface{}{
		"job_id":     jobID,
		"created_by": createdBy,
		"parts":      len(req.PartIDs),
	}))

	writeJSON(w, http.StatusCreated, map[string]string{"id": jobID})
}

func (api *JobAPI) getStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, err := api.svc.GetJobStatus(ctx, jobID)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (api *JobAPI) getResults(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	outcomes, err := api.svc.GetJobResults(ctx, jobID)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": outcomes,
		"count":   len(outcomes),
	})
}

type markPartRequest struct {
	State      models.JobPartState `json:"state"`
	SkipReason string              `json:"skipReason,omitempty"`
}

func (api *JobAPI) markPart(w http.ResponseWriter, r *http.Request, jobID, partID string) {
	var req markPartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := api.svc.MarkPart(ctx, jobID, partID, req.State, req.SkipReason); err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError && strings.Contains(err.Error(), "invalid part state") {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (api *JobAPI) stopJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := api.svc.StopJob(ctx, jobID); err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError && strings.Contains(err.Error(), "cannot be stopped") {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (api *JobAPI) deleteJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := api.svc.DeleteJob(ctx, jobID); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	api.logger.Info("Import job deleted", logging.WithField("job_id", jobID))
	writeJSON(w, http.StatusNoContent, nil)
}
