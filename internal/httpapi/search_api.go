package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/partscout/partscout/internal/logging"
	"github.com/partscout/partscout/internal/models"
	"github.com/partscout/partscout/internal/providers"
	"github.com/partscout/partscout/internal/retriever"
)

// SearchService is the retriever surface the search endpoints need
type SearchService interface {
	SearchByKeyword(ctx context.Context, keyword string, providerKeys []string) ([]models.SearchResult, []retriever.ProviderFailure, error)
	Details(ctx context.Context, providerKey, id string) (*models.PartDetail, error)
}

// SearchAPI handles keyword search and detail lookups
type SearchAPI struct {
	svc    SearchService
	logger *logging.Logger
}

// NewSearchAPI creates a new search API handler
func NewSearchAPI(svc SearchService, logger *logging.Logger) *SearchAPI {
	return &SearchAPI{svc: svc, logger: logger}
}

// RegisterRoutes registers search routes on the given mux
func (api *SearchAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/search", corsMiddleware(api.handleSearch))
	mux.HandleFunc("/api/details", corsMiddleware(api.handleDetails))
}

func (api *SearchAPI) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	keyword := strings.TrimSpace(query.Get("keyword"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	var providerKeys []string
	if p := query.Get("providers"); p != "" {
		for _, key := range strings.Split(p, ",") {
			if key = strings.TrimSpace(key); key != "" {
				providerKeys = append(providerKeys, key)
			}
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	results, failures, err := api.svc.SearchByKeyword(ctx, keyword, providerKeys)
	if err != nil {
		if errors.Is(err, providers.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		api.logger.Error("Search failed", logging.WithFields(map[string]interface{}{
			"keyword": keyword,
			"error":   err.Error(),
		}))
		writeError(w, errorStatus(err), "Search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":  results,
		"count":    len(results),
		"failures": failures,
	})
}

func (api *SearchAPI) handleDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	providerKey := query.Get("provider")
	id := query.Get("id")
	if providerKey == "" || id == "" {
		writeError(w, http.StatusBadRequest, "provider and id are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	detail, err := api.svc.Details(ctx, providerKey, id)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			api.logger.Error("Detail lookup failed", logging.WithFields(map[string]interface{}{
				"provider": providerKey,
				"id":       id,
				"error":    err.Error(),
			}))
			writeError(w, status, "Detail lookup failed")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, detail)
}
