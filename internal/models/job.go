package models

import (
	"strings"
	"time"
)

// JobStatus is the lifecycle state of an import job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusStopped    JobStatus = "stopped"
)

// JobPartState is the per-part completion state within a job
type JobPartState string

const (
	JobPartPending   JobPartState = "pending"
	JobPartCompleted JobPartState = "completed"
	JobPartSkipped   JobPartState = "skipped"
)

// Search field names for field mappings. Supplier order numbers use the
// "supplier_spn_<supplierID>" form.
const (
	FieldMPN               = "mpn"
	FieldName              = "name"
	fieldSupplierSPNPrefix = "supplier_spn_"
)

// SupplierSPNField builds the field name selecting a supplier's order number
func SupplierSPNField(supplierID string) string {
	return fieldSupplierSPNPrefix + supplierID
}

// ParseSupplierSPNField extracts the supplier ID from a supplier_spn field
// name, reporting whether the field has that form
func ParseSupplierSPNField(field string) (string, bool) {
	if !strings.HasPrefix(field, fieldSupplierSPNPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(field, fieldSupplierSPNPrefix)
	return id, id != ""
}

// FieldMapping maps one part field to the providers that should be searched
// with its value. Lower Priority is tried first.
type FieldMapping struct {
	Field     string   `json:"field"`
	Providers []string `json:"providers"`
	Priority  int      `json:"priority"`
}

// ImportJob is one persisted multi-part search-and-apply operation
type ImportJob struct {
	ID              string         `json:"id"`
	Status          JobStatus      `json:"status"`
	CreatedBy       string         `json:"createdBy"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	FieldMappings   []FieldMapping `json:"fieldMappings"`
	PrefetchDetails bool           `json:"prefetchDetails"`
	// SearchResults is the serialized per-part result blob (see PartOutcome)
	SearchResults []byte    `json:"-"`
	Error         string    `json:"error,omitempty"`
	Parts         []JobPart `json:"parts,omitempty"`
}

// JobPart tracks one target part's state within a job
type JobPart struct {
	JobID      string       `json:"jobId"`
	PartID     string       `json:"partId"`
	State      JobPartState `json:"state"`
	SkipReason string       `json:"skipReason,omitempty"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// AllPartsDone reports whether every part is completed or skipped
func (j *ImportJob) AllPartsDone() bool {
	for _, p := range j.Parts {
		if p.State == JobPartPending {
			return false
		}
	}
	return true
}

// Counts returns the number of completed, skipped and total parts
func (j *ImportJob) Counts() (completed, skipped, total int) {
	for _, p := range j.Parts {
		switch p.State {
		case JobPartCompleted:
			completed++
		case JobPartSkipped:
			skipped++
		}
	}
	return completed, skipped, len(j.Parts)
}

// Progress returns the fraction of parts that are completed or skipped,
// in percent
func (j *ImportJob) Progress() float64 {
	completed, skipped, total := j.Counts()
	if total == 0 {
		return 0
	}
	return float64(completed+skipped) / float64(total) * 100
}

// CanStop reports whether the job may transition to STOPPED
func (j *ImportJob) CanStop() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusInProgress
}

// ResultEntry pairs one search result with a best-effort matched local part
type ResultEntry struct {
	DTO         SearchResult `json:"dto"`
	LocalPartID string       `json:"localPart,omitempty"`
	// SourceField and SourceKeyword record which field mapping produced
	// this entry
	SourceField   string `json:"sourceField,omitempty"`
	SourceKeyword string `json:"sourceKeyword,omitempty"`
}

// PartOutcome is the per-part slice of the serialized job result blob
type PartOutcome struct {
	PartID        string        `json:"part_id"`
	SearchResults []ResultEntry `json:"search_results"`
	Errors        []string      `json:"errors,omitempty"`
}

// HasResults reports whether this part produced at least one result
func (o PartOutcome) HasResults() bool {
	return len(o.SearchResults) > 0
}
