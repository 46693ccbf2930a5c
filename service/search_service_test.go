package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bizlaw-advisor-backend/config"
	"bizlaw-advisor-backend/models"
	"bizlaw-advisor-backend/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingProvider captures every query it receives and answers through an
// optional handler.
type recordingProvider struct {
	mu      sync.Mutex
	queries []string
	handler func(query string) ([]search.Result, error)
}

func (p *recordingProvider) Search(ctx context.Context, query string) ([]search.Result, error) {
	p.mu.Lock()
	p.queries = append(p.queries, query)
	p.mu.Unlock()

	if p.handler != nil {
		return p.handler(query)
	}
	return nil, nil
}

func (p *recordingProvider) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.queries...)
}

func testRegistry(domains ...string) *config.SourceRegistry {
	return &config.SourceRegistry{
		FederalDomains:  domains,
		TrustedSuffixes: []string{".gov", ".org"},
	}
}

func TestSearchRequiresProvider(t *testing.T) {
	svc := NewSearchService()

	_, err := svc.Search(context.Background(), "q", models.JurisdictionFederal, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider not set")
}

func TestSearchScopesQueryByJurisdiction(t *testing.T) {
	tests := []struct {
		name         string
		jurisdiction models.Jurisdiction
		state        string
		query        string
		want         string
	}{
		{"federal is always gov scoped", models.JurisdictionFederal, "", "business tax", "business tax site:(.gov)"},
		{"state adds state law scope", models.JurisdictionState, "California", "business tax", "business tax California state law site:(.gov)"},
		{"state without location stays unscoped", models.JurisdictionState, "", "business tax", "business tax"},
		{"local adds local law scope", models.JurisdictionLocal, "California", "business tax Oakland California", "business tax Oakland California local law site:(.gov)"},
		{"local without location stays unscoped", models.JurisdictionLocal, "", "business tax Oakland", "business tax Oakland"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &recordingProvider{}
			svc := NewSearchService(SearchWithProvider(provider), SearchWithRegistry(testRegistry()))

			_, err := svc.Search(context.Background(), tt.query, tt.jurisdiction, tt.state)
			require.NoError(t, err)

			queries := provider.recorded()
			require.Len(t, queries, 1)
			assert.Equal(t, tt.want, queries[0])
		})
	}
}

func TestSearchKeepsOnlyTrustedDomains(t *testing.T) {
	provider := &recordingProvider{handler: func(string) ([]search.Result, error) {
		return []search.Result{
			{URL: "https://www.irs.gov/payroll", Title: "IRS", Snippet: "payroll rules"},
			{URL: "https://blog.example.com/seo", Title: "Blog"},
			{URL: "https://www.nolo.org/guide", Title: "Nolo"},
			{URL: "https://evil-gov.com/", Title: "Lookalike"},
		}, nil
	}}
	svc := NewSearchService(SearchWithProvider(provider), SearchWithRegistry(testRegistry()))

	sources, err := svc.Search(context.Background(), "payroll", models.JurisdictionFederal, "")
	require.NoError(t, err)

	require.Len(t, sources, 2)
	assert.Equal(t, "https://www.irs.gov/payroll", sources[0].URL)
	assert.Equal(t, "https://www.nolo.org/guide", sources[1].URL)
	assert.Equal(t, models.JurisdictionFederal, sources[0].Jurisdiction)
	assert.Equal(t, 1.0, sources[0].RelevanceScore)
	assert.Equal(t, "payroll rules", sources[0].Description)

	// Content snapshots the raw provider record.
	var snapshot search.Result
	require.NoError(t, json.Unmarshal([]byte(sources[0].Content), &snapshot))
	assert.Equal(t, "https://www.irs.gov/payroll", snapshot.URL)
}

func TestGetFederalLawsQueriesDomainsInOrder(t *testing.T) {
	domains := []string{"irs.gov", "osha.gov", "epa.gov"}
	provider := &recordingProvider{handler: func(query string) ([]search.Result, error) {
		for _, domain := range domains {
			if strings.Contains(query, "site:"+domain) {
				return []search.Result{{URL: "https://www." + domain + "/rules"}}, nil
			}
		}
		return nil, nil
	}}
	svc := NewSearchService(
		SearchWithProvider(provider),
		SearchWithRegistry(testRegistry(domains...)),
		SearchWithFederalConcurrency(2),
	)

	result := svc.GetFederalLaws(context.Background(), "business tax")

	assert.False(t, result.Degraded)
	require.Len(t, result.Sources, len(domains))
	// Domain-list order holds regardless of which query finished first.
	for i, domain := range domains {
		assert.Equal(t, "https://www."+domain+"/rules", result.Sources[i].URL)
	}

	queries := provider.recorded()
	require.Len(t, queries, len(domains))
	for _, query := range queries {
		assert.True(t, strings.HasPrefix(query, "business tax site:"), query)
		assert.True(t, strings.HasSuffix(query, " site:(.gov)"), query)
	}
}

func TestGetFederalLawsBoundsFanOut(t *testing.T) {
	var active, maxActive int32
	provider := &recordingProvider{handler: func(string) ([]search.Result, error) {
		cur := atomic.AddInt32(&active, 1)
		for {
			prev := atomic.LoadInt32(&maxActive)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxActive, prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil, nil
	}}
	domains := []string{"a.gov", "b.gov", "c.gov", "d.gov", "e.gov", "f.gov"}
	svc := NewSearchService(
		SearchWithProvider(provider),
		SearchWithRegistry(testRegistry(domains...)),
		SearchWithFederalConcurrency(2),
	)

	svc.GetFederalLaws(context.Background(), "q")

	assert.LessOrEqual(t, atomic.LoadInt32(&maxActive), int32(2))
	assert.Len(t, provider.recorded(), len(domains))
}

func TestGetFederalLawsDegradesOnDomainFailure(t *testing.T) {
	domains := []string{"irs.gov", "osha.gov", "epa.gov"}
	provider := &recordingProvider{handler: func(query string) ([]search.Result, error) {
		if strings.Contains(query, "site:osha.gov") {
			return nil, errors.New("provider unavailable")
		}
		for _, domain := range domains {
			if strings.Contains(query, "site:"+domain) {
				return []search.Result{{URL: "https://www." + domain + "/rules"}}, nil
			}
		}
		return nil, nil
	}}
	svc := NewSearchService(
		SearchWithProvider(provider),
		SearchWithRegistry(testRegistry(domains...)),
		SearchWithFederalConcurrency(1),
	)

	result := svc.GetFederalLaws(context.Background(), "q")

	assert.True(t, result.Degraded)
	require.Error(t, result.Err)
	// The surviving domains still contribute, in domain order.
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "https://www.irs.gov/rules", result.Sources[0].URL)
	assert.Equal(t, "https://www.epa.gov/rules", result.Sources[1].URL)
}

func TestGetStateLawsRecoversProviderFailure(t *testing.T) {
	provider := &recordingProvider{handler: func(string) ([]search.Result, error) {
		return nil, errors.New("quota exceeded")
	}}
	svc := NewSearchService(SearchWithProvider(provider), SearchWithRegistry(testRegistry()))

	result := svc.GetStateLaws(context.Background(), "q", "California")

	assert.Equal(t, models.JurisdictionState, result.Jurisdiction)
	assert.True(t, result.Degraded)
	assert.Error(t, result.Err)
	assert.Empty(t, result.Sources)
}

func TestGetLocalLawsEmbedsCityAndState(t *testing.T) {
	provider := &recordingProvider{}
	svc := NewSearchService(SearchWithProvider(provider), SearchWithRegistry(testRegistry()))

	result := svc.GetLocalLaws(context.Background(), "food permits", "Oakland", "California")

	queries := provider.recorded()
	require.Len(t, queries, 1)
	assert.Equal(t, "food permits Oakland California local law site:(.gov)", queries[0])
	assert.False(t, result.Degraded)
}

func TestGetLocalLawsWithoutStateStaysUnscoped(t *testing.T) {
	provider := &recordingProvider{}
	svc := NewSearchService(SearchWithProvider(provider), SearchWithRegistry(testRegistry()))

	svc.GetLocalLaws(context.Background(), "food permits", "Oakland", "")

	queries := provider.recorded()
	require.Len(t, queries, 1)
	assert.Equal(t, "food permits Oakland", queries[0])
}
