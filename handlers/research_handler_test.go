package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bizlaw-advisor-backend/config"
	"bizlaw-advisor-backend/models"
	"bizlaw-advisor-backend/search"
	"bizlaw-advisor-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider answers every query with the same results, optionally
// failing queries that contain errFor.
type stubProvider struct {
	results []search.Result
	errFor  string
}

func (p *stubProvider) Search(_ context.Context, query string) ([]search.Result, error) {
	if p.errFor != "" && strings.Contains(query, p.errFor) {
		return nil, errors.New("provider unavailable")
	}
	return p.results, nil
}

// stubGenerator returns a canned model response
type stubGenerator struct {
	output string
	err    error
}

func (g *stubGenerator) Generate(context.Context, string, float64) (string, error) {
	return g.output, g.err
}

const analysisJSON = `{
	"summary": "Payroll obligations apply.",
	"key_points": ["Withhold federal income tax"],
	"jurisdiction_analysis": {"Federal": "IRS rules"},
	"compliance_steps": ["File form 941"],
	"overlapping_regulations": []
}`

func newResearchRouter(t *testing.T, provider search.Provider, generator service.TextGenerator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := &config.SourceRegistry{
		FederalDomains:  []string{"irs.gov"},
		TrustedSuffixes: []string{".gov"},
	}
	searchSvc := service.NewSearchService(
		service.SearchWithProvider(provider),
		service.SearchWithRegistry(registry),
	)
	analysisSvc := service.NewAnalysisService(service.AnalysisWithGenerator(generator))
	researchSvc := service.NewResearchService(
		service.ResearchWithSearchService(searchSvc),
		service.ResearchWithAnalysisService(analysisSvc),
	)
	handler := NewResearchHandler(researchSvc, analysisSvc, service.NewScraperService())

	router := gin.New()
	router.POST("/api/query", handler.RunQuery)
	router.POST("/api/context", handler.DetermineContext)
	router.POST("/api/sources/scrape", handler.ScrapeSource)
	router.GET("/api/jobs/:id", handler.GetJobStatus)
	return router
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

const queryBody = `{
	"query": "payroll tax obligations",
	"context": {
		"city": "Oakland",
		"state": "California",
		"business_type": "Restaurant",
		"area_of_law": "Taxation"
	}
}`

func TestRunQueryReturnsAnalysis(t *testing.T) {
	provider := &stubProvider{results: []search.Result{{URL: "https://www.irs.gov/x", Title: "IRS"}}}
	router := newResearchRouter(t, provider, &stubGenerator{output: analysisJSON})

	w := doJSON(router, http.MethodPost, "/api/query", queryBody)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)

	var data struct {
		Analysis              models.LegalAnalysis  `json:"analysis"`
		DegradedJurisdictions []models.Jurisdiction `json:"degraded_jurisdictions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Payroll obligations apply.", data.Analysis.Summary)
	// One federal domain plus the state and local searches, one trusted
	// result each.
	assert.Len(t, data.Analysis.Sources, 3)
	assert.Empty(t, data.DegradedJurisdictions)
}

func TestRunQueryReportsDegradedJurisdictions(t *testing.T) {
	provider := &stubProvider{
		results: []search.Result{{URL: "https://www.irs.gov/x"}},
		errFor:  "state law",
	}
	router := newResearchRouter(t, provider, &stubGenerator{output: analysisJSON})

	w := doJSON(router, http.MethodPost, "/api/query", queryBody)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)

	var data struct {
		DegradedJurisdictions []models.Jurisdiction `json:"degraded_jurisdictions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, []models.Jurisdiction{models.JurisdictionState}, data.DegradedJurisdictions)
}

func TestRunQuerySynthesisFailure(t *testing.T) {
	router := newResearchRouter(t, &stubProvider{}, &stubGenerator{output: "I cannot answer that."})

	w := doJSON(router, http.MethodPost, "/api/query", queryBody)

	require.Equal(t, http.StatusBadGateway, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "SYNTHESIS_FAILED", env.Error.Code)
}

func TestRunQueryRejectsMissingQuery(t *testing.T) {
	router := newResearchRouter(t, &stubProvider{}, &stubGenerator{output: analysisJSON})

	w := doJSON(router, http.MethodPost, "/api/query", `{"context": {"state": "California"}}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
}

func TestDetermineContextEndpoint(t *testing.T) {
	generator := &stubGenerator{output: "```json\n" + `{
		"city": "None",
		"state": "California",
		"business_type": "Cafe",
		"area_of_law": "Taxation",
		"statute_of_law": "None"
	}` + "\n```"}
	router := newResearchRouter(t, &stubProvider{}, generator)

	w := doJSON(router, http.MethodPost, "/api/context", `{"input": "I own a cafe in California"}`)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)

	var bctx models.BusinessContext
	require.NoError(t, json.Unmarshal(env.Data, &bctx))
	assert.Empty(t, bctx.City)
	assert.Equal(t, "California", bctx.State)
	assert.Equal(t, "Cafe", bctx.BusinessType)
	assert.Nil(t, bctx.StatuteOfLaw)
}

func TestDetermineContextExtractionFailure(t *testing.T) {
	router := newResearchRouter(t, &stubProvider{}, &stubGenerator{output: "no json here"})

	w := doJSON(router, http.MethodPost, "/api/context", `{"input": "gibberish"}`)

	require.Equal(t, http.StatusBadGateway, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "EXTRACTION_FAILED", env.Error.Code)
}

func TestScrapeSourceRejectsUntrustedURL(t *testing.T) {
	router := newResearchRouter(t, &stubProvider{}, &stubGenerator{output: analysisJSON})

	w := doJSON(router, http.MethodPost, "/api/sources/scrape", `{"url": "https://blog.example.com/post"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "UNTRUSTED_SOURCE", env.Error.Code)
}

func TestScrapeSourceRejectsUnknownJurisdiction(t *testing.T) {
	router := newResearchRouter(t, &stubProvider{}, &stubGenerator{output: analysisJSON})

	w := doJSON(router, http.MethodPost, "/api/sources/scrape", `{"url": "https://www.irs.gov/x", "jurisdiction": "County"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "INVALID_JURISDICTION", env.Error.Code)
}

func TestGetJobStatusRejectsBadID(t *testing.T) {
	router := newResearchRouter(t, &stubProvider{}, &stubGenerator{output: analysisJSON})

	w := doJSON(router, http.MethodGet, "/api/jobs/not-a-uuid", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "INVALID_ID", env.Error.Code)
}
