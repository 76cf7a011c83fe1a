package httpapi

import (
	"net/http"

	"github.com/partscout/partscout/internal/logging"
	"github.com/partscout/partscout/internal/models"
	"github.com/partscout/partscout/internal/providers"
)

// ProviderAPI exposes the registered providers and their availability
type ProviderAPI struct {
	registry *providers.Registry
	logger   *logging.Logger
}

// NewProviderAPI creates a new provider API handler
func NewProviderAPI(registry *providers.Registry, logger *logging.Logger) *ProviderAPI {
	return &ProviderAPI{registry: registry, logger: logger}
}

// RegisterRoutes registers provider routes on the given mux
func (api *ProviderAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/providers", corsMiddleware(api.handleList))
}

type providerStatus struct {
	Key          string              `json:"key"`
	Active       bool                `json:"active"`
	Info         models.ProviderInfo `json:"info"`
	Capabilities []models.Capability `json:"capabilities"`
}

func (api *ProviderAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active := api.registry.ActiveProviders()
	activeKeys := make(map[string]bool, len(active))
	for _, p := range active {
		activeKeys[p.Key()] = true
	}

	out := make([]providerStatus, 0)
	for _, p := range api.registry.All() {
		out = append(out, providerStatus{
			Key:          p.Key(),
			Active:       activeKeys[p.Key()],
			Info:         p.Info(),
			Capabilities: p.Capabilities(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": out,
		"count":     len(out),
	})
}
