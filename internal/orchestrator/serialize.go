package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/partscout/partscout/internal/models"
)

// SerializeResults flattens the per-part outcomes into the persisted job
// blob. The shape round-trips: DTO fields survive exactly, local part links
// survive as ids and are re-resolved on read.
func SerializeResults(outcomes []models.PartOutcome) ([]byte, error) {
	blob, err := json.Marshal(outcomes)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize search results: %w", err)
	}
	return blob, nil
}

// DeserializeResults rebuilds the outcomes from a stored blob and
// re-resolves each localPart id against the part store. A part deleted since
// serialization yields an empty local part link, not an error.
func DeserializeResults(ctx context.Context, blob []byte, parts PartStore) ([]models.PartOutcome, error) {
	var outcomes []models.PartOutcome
	if err := json.Unmarshal(blob, &outcomes); err != nil {
		return nil, fmt.Errorf("failed to deserialize search results: %w", err)
	}

	// Collect every referenced local part id and check existence in one query
	idSet := make(map[string]bool)
	for _, outcome := range outcomes {
		for _, entry := range outcome.SearchResults {
			if entry.LocalPartID != "" {
				idSet[entry.LocalPartID] = true
			}
		}
	}
	if len(idSet) == 0 {
		return outcomes, nil
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	existing, err := parts.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to re-resolve local parts: %w", err)
	}
	alive := make(map[string]bool, len(existing))
	for _, p := range existing {
		alive[p.ID] = true
	}

	for oi := range outcomes {
		for ei := range outcomes[oi].SearchResults {
			entry := &outcomes[oi].SearchResults[ei]
			if entry.LocalPartID != "" && !alive[entry.LocalPartID] {
				entry.LocalPartID = ""
			}
		}
	}
	return outcomes, nil
}
