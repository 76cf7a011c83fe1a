// Package retriever fans keyword searches out to the active providers and
// serves part details through the response cache.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/partscout/partscout/internal/cache"
	"github.com/partscout/partscout/internal/logging"
	"github.com/partscout/partscout/internal/metrics"
	"github.com/partscout/partscout/internal/models"
	"github.com/partscout/partscout/internal/providers"
)

// Config holds retriever settings
type Config struct {
	DetailTTL   time.Duration
	CallTimeout time.Duration
}

// Service coordinates provider calls
type Service struct {
	registry    *providers.Registry
	cache       cache.Cache
	logger      *logging.Logger
	detailTTL   time.Duration
	callTimeout time.Duration
}

// New creates a retriever service
func New(registry *providers.Registry, c cache.Cache, logger *logging.Logger, cfg Config) *Service {
	detailTTL := cfg.DetailTTL
	if detailTTL <= 0 {
		detailTTL = 4 * time.Hour
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Service{
		registry:    registry,
		cache:       c,
		logger:      logger,
		detailTTL:   detailTTL,
		callTimeout: callTimeout,
	}
}

// ProviderFailure records one provider that could not serve a search
type ProviderFailure struct {
	ProviderKey string `json:"provider_key"`
	Message     string `json:"message"`
}

// SearchByKeyword queries the selected providers concurrently and merges
// their results. Provider failures are isolated: a failing provider
// contributes a ProviderFailure instead of aborting the whole search. An
// empty providerKeys selects every active provider.
func (s *Service) SearchByKeyword(ctx context.Context, keyword string, providerKeys []string) ([]models.SearchResult, []ProviderFailure, error) {
	selected, err := s.selectProviders(providerKeys)
	if err != nil {
		return nil, nil, err
	}

	type outcome struct {
		providerKey string
		results     []models.SearchResult
		err         error
	}

	ch := make(chan outcome, len(selected))
	var wg sync.WaitGroup

	for _, p := range selected {
		wg.Add(1)
		go func(p providers.Provider) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
			defer cancel()

			start := time.Now()
			results, err := p.SearchByKeyword(callCtx, keyword)
			metrics.ObserveCall(p.Key(), "search", start, err)

			ch <- outcome{providerKey: p.Key(), results: results, err: err}
		}(p)
	}

	wg.Wait()
	close(ch)

	byProvider := make(map[string][]models.SearchResult, len(selected))
	var failures []ProviderFailure
	for out := range ch {
		if out.err != nil {
			s.logger.Warn("provider search failed",
				logging.WithField("provider", out.providerKey),
				logging.WithField("error", out.err.Error()))
			failures = append(failures, ProviderFailure{
				ProviderKey: out.providerKey,
				Message:     out.err.Error(),
			})
			continue
		}
		byProvider[out.providerKey] = out.results
	}

	// Stable output: provider results in registration order
	var merged []models.SearchResult
	for _, p := range selected {
		merged = append(merged, byProvider[p.Key()]...)
	}
	if merged == nil {
		merged = []models.SearchResult{}
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].ProviderKey < failures[j].ProviderKey
	})

	return merged, failures, nil
}

// SearchKeywords searches many keywords on one provider, using its batch
// endpoint when it has one. Every keyword appears as a key in the result.
func (s *Service) SearchKeywords(ctx context.Context, p providers.Provider, keywords []string) (map[string][]models.SearchResult, error) {
	if batcher, ok := p.(providers.BatchSearcher); ok {
		start := time.Now()
		out, err := batcher.SearchByKeywordsBatch(ctx, keywords)
		metrics.ObserveCall(p.Key(), "search", start, err)
		if err == nil {
			return out, nil
		}
		s.logger.Warn("batch search failed, falling back to individual searches",
			logging.WithField("provider", p.Key()),
			logging.WithField("error", err.Error()))
	}

	out := make(map[string][]models.SearchResult, len(keywords))
	for _, kw := range keywords {
		start := time.Now()
		results, err := p.SearchByKeyword(ctx, kw)
		metrics.ObserveCall(p.Key(), "search", start, err)
		if err != nil {
			return nil, err
		}
		out[kw] = results
	}
	return out, nil
}

// Details returns the full part record, served from the response cache when
// possible
func (s *Service) Details(ctx context.Context, providerKey, id string) (*models.PartDetail, error) {
	p := s.registry.Get(providerKey)
	if p == nil {
		return nil, fmt.Errorf("%w: unknown provider %q", providers.ErrInvalidArgument, providerKey)
	}

	key := detailCacheKey(providerKey, id)
	if _, ok := s.cache.Get(key); ok {
		metrics.DetailCacheHits.WithLabelValues(providerKey).Inc()
	}

	return cache.GetOrCompute(s.cache, key, s.detailTTL, func() (*models.PartDetail, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		defer cancel()

		start := time.Now()
		detail, err := p.Details(callCtx, id)
		metrics.ObserveCall(p.Key(), "details", start, err)
		return detail, err
	})
}

// selectProviders resolves the requested keys against the active providers.
// Unknown keys fail fast; known but inactive providers are skipped.
func (s *Service) selectProviders(providerKeys []string) ([]providers.Provider, error) {
	active := s.registry.ActiveProviders()
	if len(providerKeys) == 0 {
		return active, nil
	}

	activeSet := make(map[string]providers.Provider, len(active))
	for _, p := range active {
		activeSet[p.Key()] = p
	}

	var selected []providers.Provider
	for _, key := range providerKeys {
		if s.registry.Get(key) == nil {
			return nil, fmt.Errorf("%w: unknown provider %q", providers.ErrInvalidArgument, key)
		}
		if p, ok := activeSet[key]; ok {
			selected = append(selected, p)
		}
	}
	return selected, nil
}

func detailCacheKey(providerKey, id string) string {
	return "detail:" + providerKey + ":" + id
}
