package external

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// WebSearchClient queries a SearXNG instance for web results. Patents and
// supply intelligence lean entirely on this, so failures degrade those
// agents to UNKNOWN rather than failing a run.
type WebSearchClient struct {
	collaborator
	baseURL string
}

// NewWebSearchClient creates a new SearXNG search client
func NewWebSearchClient(config domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) *WebSearchClient {
	return &WebSearchClient{
		collaborator: newCollaborator("websearch", config, cache, logger),
		baseURL:      config.BaseURL,
	}
}

// SearchResult is one web search hit
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and returns up to maxResults hits
func (c *WebSearchClient) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	params := map[string]interface{}{"q": query, "max_results": maxResults}

	var results []SearchResult
	err := c.fetch(ctx, "websearch/search", params, &results, func(ctx context.Context) error {
		q := url.Values{
			"q":          {query},
			"format":     {"json"},
			"engines":    {"google,bing,wikipedia"},
			"language":   {"en-US"},
			"safesearch": {"0"},
		}

		var raw searxResponse
		if err := getJSON(ctx, c.httpClient, c.baseURL, q, nil, &raw); err != nil {
			return err
		}

		results = results[:0]
		for _, r := range raw.Results {
			if len(results) >= maxResults {
				break
			}
			results = append(results, SearchResult{
				Title:   r.Title,
				URL:     r.URL,
				Snippet: r.Content,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}
	return results, nil
}
