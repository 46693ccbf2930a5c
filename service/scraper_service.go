package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bizlaw-advisor-backend/config"
	"bizlaw-advisor-backend/models"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

const (
	scraperUserAgent   = "bizlaw-advisor/1.0"
	maxScrapeBytes     = 2 << 20
	maxScrapeRedirects = 5
)

var ErrUntrustedSource = errors.New("url is not from a trusted domain")

// ScrapeResult is the readable rendering of one source page
type ScrapeResult struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Markdown    string    `json:"markdown"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ScraperService fetches a trusted source page and reduces it to markdown.
// It only ever fetches URLs that pass the registry's trust check; callers
// cannot use it to pull arbitrary pages.
type ScraperService struct {
	registry  *config.SourceRegistry
	client    *http.Client
	converter *md.Converter
	maxBytes  int64
}

// ScraperServiceOption is a functional option for ScraperService
type ScraperServiceOption func(*ScraperService)

// ScraperWithRegistry sets the source registry used for the trust check
func ScraperWithRegistry(registry *config.SourceRegistry) ScraperServiceOption {
	return func(s *ScraperService) {
		s.registry = registry
	}
}

// ScraperWithHTTPClient sets the HTTP client
func ScraperWithHTTPClient(client *http.Client) ScraperServiceOption {
	return func(s *ScraperService) {
		s.client = client
	}
}

// NewScraperService creates a new scraper service
func NewScraperService(opts ...ScraperServiceOption) *ScraperService {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	s := &ScraperService{
		registry: config.DefaultRegistry(),
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxScrapeRedirects {
					return fmt.Errorf("too many redirects (max %d)", maxScrapeRedirects)
				}
				return nil
			},
		},
		converter: converter,
		maxBytes:  maxScrapeBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape fetches a trusted page, prunes navigation chrome, and converts
// the main content region to markdown.
func (s *ScraperService) Scrape(ctx context.Context, rawURL string) (*ScrapeResult, error) {
	if !s.registry.IsTrustedDomain(rawURL) {
		return nil, ErrUntrustedSource
	}

	body, err := s.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	title := pageTitle(doc)
	description := metaDescription(doc)

	markdown, err := s.converter.ConvertString(mainContent(doc))
	if err != nil {
		return nil, fmt.Errorf("converting page to markdown: %w", err)
	}

	return &ScrapeResult{
		URL:         rawURL,
		Title:       title,
		Description: description,
		Markdown:    strings.TrimSpace(markdown),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// ScrapeSource fetches a trusted page and shapes it as a LegalSource whose
// Content is the page's markdown rendering.
func (s *ScraperService) ScrapeSource(ctx context.Context, rawURL string, jurisdiction models.Jurisdiction) (*models.LegalSource, error) {
	result, err := s.Scrape(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	return &models.LegalSource{
		URL:            result.URL,
		Jurisdiction:   jurisdiction,
		Title:          result.Title,
		Description:    result.Description,
		RelevanceScore: 1.0,
		Content:        result.Markdown,
	}, nil
}

func (s *ScraperService) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > s.maxBytes {
		return nil, fmt.Errorf("page too large (exceeds %d bytes)", s.maxBytes)
	}

	return body, nil
}

// prunedTags are removed before content extraction; they carry site chrome,
// not legal text.
var prunedTags = []string{"nav", "footer", "header", "aside", "script", "style"}

// mainContent prunes chrome elements, then renders the page's main content
// region, falling back to the whole body.
func mainContent(doc *html.Node) string {
	removeTags(doc, prunedTags)

	picks := []func(*html.Node) bool{
		tagMatcher("main"),
		tagMatcher("article"),
		attrMatcher("class", "content"),
		attrMatcher("id", "content"),
		attrMatcher("class", "main"),
	}
	for _, match := range picks {
		if node := findNode(doc, match); node != nil {
			return renderNode(node)
		}
	}

	if body := findNode(doc, tagMatcher("body")); body != nil {
		return renderNode(body)
	}
	return renderNode(doc)
}

// pageTitle returns the trimmed <title> text, if any.
func pageTitle(doc *html.Node) string {
	node := findNode(doc, tagMatcher("title"))
	if node == nil || node.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(node.FirstChild.Data)
}

// metaDescription returns the content of the page's description meta tag.
func metaDescription(doc *html.Node) string {
	node := findNode(doc, func(n *html.Node) bool {
		if n.Data != "meta" {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == "name" && strings.EqualFold(a.Val, "description") {
				return true
			}
		}
		return false
	})
	if node == nil {
		return ""
	}
	for _, a := range node.Attr {
		if a.Key == "content" {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func tagMatcher(name string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Data == name
	}
}

func attrMatcher(key, value string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, a := range n.Attr {
			if a.Key != key {
				continue
			}
			if key == "class" {
				for _, c := range strings.Fields(a.Val) {
					if c == value {
						return true
					}
				}
				return false
			}
			return a.Val == value
		}
		return false
	}
}

// findNode returns the first element node matching the predicate, depth
// first.
func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

// removeTags strips every element with one of the given tag names.
func removeTags(n *html.Node, tags []string) {
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[tag] = true
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && tagSet[node.Data] {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// renderNode renders a node and its children back to an HTML string.
func renderNode(n *html.Node) string {
	var sb strings.Builder
	html.Render(&sb, n)
	return sb.String()
}
