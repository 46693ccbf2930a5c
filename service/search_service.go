package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"bizlaw-advisor-backend/config"
	"bizlaw-advisor-backend/models"
	"bizlaw-advisor-backend/search"

	"golang.org/x/sync/errgroup"
)

// RelevanceScorer assigns a relevance score to a filtered search result.
// The default implementation scores everything 1.0; a ranking model can be
// plugged in without touching the orchestration contract.
type RelevanceScorer interface {
	Score(result search.Result, jurisdiction models.Jurisdiction) float64
}

// FixedScorer scores every result with the same value
type FixedScorer struct {
	Value float64
}

// Score implements RelevanceScorer
func (f FixedScorer) Score(search.Result, models.Jurisdiction) float64 {
	return f.Value
}

// JurisdictionResult carries one jurisdiction's discovered sources together
// with whether any scoped query behind it failed. A degraded result is
// still usable; an empty degraded list means "search failed", an empty
// non-degraded list means "nothing found".
type JurisdictionResult struct {
	Jurisdiction models.Jurisdiction  `json:"jurisdiction"`
	Sources      []models.LegalSource `json:"sources"`
	Degraded     bool                 `json:"degraded"`
	Err          error                `json:"-"`
}

// SearchService discovers candidate legal sources through an external
// search provider, scoped per jurisdiction and filtered to trusted domains
type SearchService struct {
	provider           search.Provider
	registry           *config.SourceRegistry
	scorer             RelevanceScorer
	federalConcurrency int
}

// SearchServiceOption is a functional option for SearchService
type SearchServiceOption func(*SearchService)

// SearchWithProvider sets the search provider
func SearchWithProvider(provider search.Provider) SearchServiceOption {
	return func(s *SearchService) {
		s.provider = provider
	}
}

// SearchWithRegistry sets the source registry
func SearchWithRegistry(registry *config.SourceRegistry) SearchServiceOption {
	return func(s *SearchService) {
		s.registry = registry
	}
}

// SearchWithScorer sets the relevance scorer
func SearchWithScorer(scorer RelevanceScorer) SearchServiceOption {
	return func(s *SearchService) {
		s.scorer = scorer
	}
}

// SearchWithFederalConcurrency caps the per-domain federal fan-out
func SearchWithFederalConcurrency(n int) SearchServiceOption {
	return func(s *SearchService) {
		if n > 0 {
			s.federalConcurrency = n
		}
	}
}

// NewSearchService creates a new search service
func NewSearchService(opts ...SearchServiceOption) *SearchService {
	s := &SearchService{
		registry:           config.DefaultRegistry(),
		scorer:             FixedScorer{Value: 1.0},
		federalConcurrency: config.DefaultFederalConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search issues one provider call scoped to a jurisdiction and filters the
// results to trusted domains. A missing state leaves the State and Local
// queries unscoped rather than failing.
func (s *SearchService) Search(ctx context.Context, query string, jurisdiction models.Jurisdiction, state string) ([]models.LegalSource, error) {
	if s.provider == nil {
		return nil, errors.New("search provider not set")
	}

	searchQuery := query
	switch {
	case jurisdiction == models.JurisdictionFederal:
		searchQuery = fmt.Sprintf("%s site:(.gov)", query)
	case jurisdiction == models.JurisdictionState && state != "":
		searchQuery = fmt.Sprintf("%s %s state law site:(.gov)", query, state)
	case jurisdiction == models.JurisdictionLocal && state != "":
		searchQuery = fmt.Sprintf("%s local law site:(.gov)", query)
	}

	results, err := s.provider.Search(ctx, searchQuery)
	if err != nil {
		return nil, fmt.Errorf("search failed for %q: %w", searchQuery, err)
	}

	sources := make([]models.LegalSource, 0, len(results))
	for _, result := range results {
		if !s.registry.IsTrustedDomain(result.URL) {
			continue
		}

		// Content keeps a snapshot of the raw provider result for the
		// synthesis prompt; pages are not re-fetched here.
		raw, _ := json.Marshal(result)
		sources = append(sources, models.LegalSource{
			URL:            result.URL,
			Jurisdiction:   jurisdiction,
			Title:          result.Title,
			Description:    result.Snippet,
			RelevanceScore: s.scorer.Score(result, jurisdiction),
			Content:        string(raw),
		})
	}

	return sources, nil
}

// GetFederalLaws searches every configured federal domain and concatenates
// the results in domain-list order. Domain queries run under a bounded
// fan-out; an individual failure degrades the result instead of aborting
// the aggregation.
func (s *SearchService) GetFederalLaws(ctx context.Context, query string) JurisdictionResult {
	result := JurisdictionResult{Jurisdiction: models.JurisdictionFederal}

	domains := s.registry.FederalDomains
	perDomain := make([][]models.LegalSource, len(domains))

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.federalConcurrency)

	for i, domain := range domains {
		eg.Go(func() error {
			sources, err := s.Search(egCtx, fmt.Sprintf("%s site:%s", query, domain), models.JurisdictionFederal, "")
			if err != nil {
				log.Printf("Warning: federal search for %s failed: %v", domain, err)
				mu.Lock()
				result.Degraded = true
				result.Err = err
				mu.Unlock()
				return nil
			}
			perDomain[i] = sources
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		log.Printf("Warning: federal aggregation: %v", err)
	}

	for _, sources := range perDomain {
		result.Sources = append(result.Sources, sources...)
	}
	return result
}

// GetStateLaws searches state-level law. A provider failure is recovered
// into an empty, degraded result.
func (s *SearchService) GetStateLaws(ctx context.Context, query, state string) JurisdictionResult {
	result := JurisdictionResult{Jurisdiction: models.JurisdictionState}

	sources, err := s.Search(ctx, query, models.JurisdictionState, state)
	if err != nil {
		log.Printf("Warning: state search failed: %v", err)
		result.Degraded = true
		result.Err = err
		return result
	}

	result.Sources = sources
	return result
}

// GetLocalLaws searches city-level law, embedding the city and state into
// the query. A provider failure is recovered into an empty, degraded
// result.
func (s *SearchService) GetLocalLaws(ctx context.Context, query, city, state string) JurisdictionResult {
	result := JurisdictionResult{Jurisdiction: models.JurisdictionLocal}

	localQuery := strings.TrimSpace(fmt.Sprintf("%s %s %s", query, city, state))
	sources, err := s.Search(ctx, localQuery, models.JurisdictionLocal, state)
	if err != nil {
		log.Printf("Warning: local search failed: %v", err)
		result.Degraded = true
		result.Err = err
		return result
	}

	result.Sources = sources
	return result
}
