// Package search wraps external web-search providers behind a small
// interface so the research pipeline can swap or fake them.
package search

import "context"

// Result is one organic search hit, in provider rank order. The pipeline
// treats results as opaque and unranked beyond their order.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Provider issues a single free-text query against an external search
// engine and returns its organic results.
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, error)
}
