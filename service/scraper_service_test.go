package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"bizlaw-advisor-backend/config"
	"bizlaw-advisor-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackRegistry trusts the httptest server's loopback host.
func loopbackRegistry() *config.SourceRegistry {
	return &config.SourceRegistry{TrustedSuffixes: []string{"127.0.0.1"}}
}

func serveHTML(t *testing.T, page string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestScrapeRejectsUntrustedURL(t *testing.T) {
	svc := NewScraperService()

	_, err := svc.Scrape(context.Background(), "https://blog.example.com/post")
	require.ErrorIs(t, err, ErrUntrustedSource)
}

func TestScrapeExtractsMainContent(t *testing.T) {
	const page = `<!DOCTYPE html>
<html>
<head>
	<title>Payroll Tax Guidance</title>
	<meta name="description" content="Official payroll guidance.">
</head>
<body>
	<nav><a href="/">SITE NAVIGATION</a></nav>
	<header>SITE BANNER</header>
	<main>
		<h1>Employer Obligations</h1>
		<p>Employers must withhold payroll taxes.</p>
		<script>trackPageView();</script>
	</main>
	<footer>FOOTER BOILERPLATE</footer>
</body>
</html>`
	ts := serveHTML(t, page)

	svc := NewScraperService(ScraperWithRegistry(loopbackRegistry()))

	result, err := svc.Scrape(context.Background(), ts.URL+"/guide")
	require.NoError(t, err)

	assert.Equal(t, ts.URL+"/guide", result.URL)
	assert.Equal(t, "Payroll Tax Guidance", result.Title)
	assert.Equal(t, "Official payroll guidance.", result.Description)
	assert.Contains(t, result.Markdown, "Employer Obligations")
	assert.Contains(t, result.Markdown, "Employers must withhold payroll taxes.")
	assert.NotContains(t, result.Markdown, "SITE NAVIGATION")
	assert.NotContains(t, result.Markdown, "SITE BANNER")
	assert.NotContains(t, result.Markdown, "FOOTER BOILERPLATE")
	assert.NotContains(t, result.Markdown, "trackPageView")
	assert.False(t, result.FetchedAt.IsZero())
}

func TestScrapePrefersContentRegion(t *testing.T) {
	const page = `<html>
<head><title>Statute</title></head>
<body>
	<div class="sidebar">SIDEBAR LINKS</div>
	<div class="content"><p>Statute text applies here.</p></div>
</body>
</html>`
	ts := serveHTML(t, page)

	svc := NewScraperService(ScraperWithRegistry(loopbackRegistry()))

	result, err := svc.Scrape(context.Background(), ts.URL)
	require.NoError(t, err)

	assert.Contains(t, result.Markdown, "Statute text applies here.")
	assert.NotContains(t, result.Markdown, "SIDEBAR LINKS")
}

func TestScrapeFallsBackToBody(t *testing.T) {
	const page = `<html>
<head><title>Plain</title></head>
<body>
	<nav>CHROME</nav>
	<p>Plain body content.</p>
</body>
</html>`
	ts := serveHTML(t, page)

	svc := NewScraperService(ScraperWithRegistry(loopbackRegistry()))

	result, err := svc.Scrape(context.Background(), ts.URL)
	require.NoError(t, err)

	assert.Contains(t, result.Markdown, "Plain body content.")
	assert.NotContains(t, result.Markdown, "CHROME")
}

func TestScrapeSourceShapesLegalSource(t *testing.T) {
	const page = `<html>
<head><title>Guide</title><meta name="description" content="Summary."></head>
<body><main><p>Rule text.</p></main></body>
</html>`
	ts := serveHTML(t, page)

	svc := NewScraperService(ScraperWithRegistry(loopbackRegistry()))

	source, err := svc.ScrapeSource(context.Background(), ts.URL, models.JurisdictionFederal)
	require.NoError(t, err)

	assert.Equal(t, ts.URL, source.URL)
	assert.Equal(t, models.JurisdictionFederal, source.Jurisdiction)
	assert.Equal(t, "Guide", source.Title)
	assert.Equal(t, "Summary.", source.Description)
	assert.Equal(t, 1.0, source.RelevanceScore)
	assert.Contains(t, source.Content, "Rule text.")
}

func TestScrapeReportsHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(ts.Close)

	svc := NewScraperService(ScraperWithRegistry(loopbackRegistry()))

	_, err := svc.Scrape(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}
