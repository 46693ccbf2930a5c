package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	serperAPI      = "https://google.serper.dev/search"
	maxRetries     = 3
	initialBackoff = time.Second
)

var ErrSearchFailed = errors.New("search request failed")

// SerperClient calls the Serper.dev Google search API
type SerperClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// SerperOption is a functional option for SerperClient
type SerperOption func(*SerperClient)

// SerperWithHTTPClient sets the HTTP client
func SerperWithHTTPClient(client *http.Client) SerperOption {
	return func(c *SerperClient) {
		c.httpClient = client
	}
}

// SerperWithEndpoint overrides the API endpoint, mainly for tests.
func SerperWithEndpoint(endpoint string) SerperOption {
	return func(c *SerperClient) {
		c.endpoint = endpoint
	}
}

// NewSerperClient creates a new Serper search client
func NewSerperClient(apiKey string, opts ...SerperOption) *SerperClient {
	c := &SerperClient{
		apiKey:     apiKey,
		endpoint:   serperAPI,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search issues one query and returns the organic results in rank order.
// Transient failures are retried with exponential backoff; client errors
// (400, 401) are not.
func (c *SerperClient) Search(ctx context.Context, query string) ([]Result, error) {
	if c.apiKey == "" {
		return nil, errors.New("serper api key not set")
	}

	reqBody := map[string]interface{}{
		"q": query,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-KEY", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries-1 {
				return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, err)
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			var apiResp struct {
				Organic []struct {
					Link    string `json:"link"`
					Title   string `json:"title"`
					Snippet string `json:"snippet"`
				} `json:"organic"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
				resp.Body.Close()
				if attempt == maxRetries-1 {
					return nil, fmt.Errorf("failed to decode response: %w", err)
				}
				continue
			}
			resp.Body.Close()

			results := make([]Result, 0, len(apiResp.Organic))
			for _, item := range apiResp.Organic {
				results = append(results, Result{
					URL:     item.Link,
					Title:   item.Title,
					Snippet: item.Snippet,
				})
			}
			return results, nil
		}

		resp.Body.Close()

		// Don't retry on 400 or 401 errors
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("search API error: %d", resp.StatusCode)
		}

		if attempt == maxRetries-1 {
			return nil, fmt.Errorf("search API error after %d attempts: %d", maxRetries, resp.StatusCode)
		}
	}

	return nil, ErrSearchFailed
}
