package providers

import (
	"context"

	"github.com/partscout/partscout/internal/models"
)

// Provider is the interface that all part-information sources must implement
type Provider interface {
	// Key returns the stable unique identifier for this provider. It is
	// used as a foreign key in DTOs and job records and must never change
	// once shipped.
	Key() string

	// Info returns static metadata about the provider, no side effects
	Info() models.ProviderInfo

	// Active reports whether the provider is usable with the current
	// configuration. Evaluated fresh per call; missing credentials yield
	// false, never an error.
	Active() bool

	// SearchByKeyword runs a best-effort search. No matches returns an
	// empty slice, never nil and never an error; errors are reserved for
	// transport and auth failures.
	SearchByKeyword(ctx context.Context, keyword string) ([]models.SearchResult, error)

	// Details fetches the full record for a previously seen provider id.
	// Fails with ErrNotFound for unknown ids and ErrInvalidArgument for
	// structurally invalid ones.
	Details(ctx context.Context, id string) (*models.PartDetail, error)

	// Capabilities declares which data categories this provider supplies
	Capabilities() []models.Capability
}

// BatchSearcher is an optional extension for providers that can search many
// keywords in one round trip. Every requested keyword must appear as a key
// in the result map, possibly with an empty slice; results must be
// equivalent to N individual SearchByKeyword calls.
type BatchSearcher interface {
	SearchByKeywordsBatch(ctx context.Context, keywords []string) (map[string][]models.SearchResult, error)
}

// TokenSource hands out valid bearer tokens for named OAuth apps
type TokenSource interface {
	HasToken(appName string) bool
	TokenString(ctx context.Context, appName string) (string, error)
}

// Registry manages the registered providers
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry
func (r *Registry) Register(p Provider) {
	if _, ok := r.providers[p.Key()]; !ok {
		r.order = append(r.order, p.Key())
	}
	r.providers[p.Key()] = p
}

// Get returns a provider by key, or nil
func (r *Registry) Get(key string) Provider {
	return r.providers[key]
}

// All returns all registered providers in registration order
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, key := range r.order {
		out = append(out, r.providers[key])
	}
	return out
}

// ActiveProviders returns the providers whose Active() is currently true.
// Evaluated per call since credentials can change at runtime; a provider
// that panics during the check is treated as inactive.
func (r *Registry) ActiveProviders() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.All() {
		if safeActive(p) {
			out = append(out, p)
		}
	}
	return out
}

// DisabledProviders returns the providers whose Active() is currently false
func (r *Registry) DisabledProviders() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.All() {
		if !safeActive(p) {
			out = append(out, p)
		}
	}
	return out
}

func safeActive(p Provider) (active bool) {
	defer func() {
		if recover() != nil {
			active = false
		}
	}()
	return p.Active()
}
