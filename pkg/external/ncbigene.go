package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// NCBIGeneClient queries the NCBI Gene database through E-utilities for
// gene characterization, the third leg of target validation.
type NCBIGeneClient struct {
	collaborator
	baseURL string
	apiKey  string
}

// NewNCBIGeneClient creates a new NCBI Gene E-utilities client
func NewNCBIGeneClient(config domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) *NCBIGeneClient {
	return &NCBIGeneClient{
		collaborator: newCollaborator("ncbi_gene", config, cache, logger),
		baseURL:      config.BaseURL,
		apiKey:       config.APIKey,
	}
}

// GeneRecord is the characterization summary for a human gene
type GeneRecord struct {
	GeneID      string
	Description string
	Summary     string
}

// HasSummary reports whether the gene carries a curated summary
func (g *GeneRecord) HasSummary() bool {
	return g != nil && g.Summary != ""
}

// CharacterizationScore folds identification and curation into [0,1]
func (g *GeneRecord) CharacterizationScore() float64 {
	score := 0.0
	if g != nil && g.GeneID != "" {
		score += 0.5
	}
	if g.HasSummary() {
		score += 0.5
	}
	return score
}

// Lookup fetches the characterization record for a human gene symbol.
// A nil record means the symbol is unknown.
func (c *NCBIGeneClient) Lookup(ctx context.Context, geneSymbol string) (*GeneRecord, error) {
	term := fmt.Sprintf("%s[Gene Name] AND Homo sapiens[Organism]", geneSymbol)
	params := map[string]interface{}{"db": "gene", "term": term}

	var search eSearchResponse
	err := c.fetch(ctx, "gene/esearch", params, &search, func(ctx context.Context) error {
		q := url.Values{
			"db":      {"gene"},
			"term":    {term},
			"retmode": {"json"},
			"retmax":  {"1"},
		}
		if c.apiKey != "" {
			q.Set("api_key", c.apiKey)
		}
		return getJSON(ctx, c.httpClient, c.baseURL+"/esearch.fcgi", q, nil, &search)
	})
	if err != nil {
		return nil, fmt.Errorf("NCBI Gene search failed: %w", err)
	}
	if len(search.Result.IDList) == 0 {
		return nil, nil
	}
	geneID := search.Result.IDList[0]

	params = map[string]interface{}{"db": "gene", "id": geneID}

	var summary eSummaryResponse
	err = c.fetch(ctx, "gene/esummary", params, &summary, func(ctx context.Context) error {
		q := url.Values{
			"db":      {"gene"},
			"id":      {geneID},
			"retmode": {"json"},
		}
		if c.apiKey != "" {
			q.Set("api_key", c.apiKey)
		}
		return getJSON(ctx, c.httpClient, c.baseURL+"/esummary.fcgi", q, nil, &summary)
	})
	if err != nil {
		return nil, fmt.Errorf("NCBI Gene summary failed: %w", err)
	}

	raw, ok := summary.Result[geneID]
	if !ok {
		return &GeneRecord{GeneID: geneID}, nil
	}
	var record struct {
		Description string `json:"description"`
		Summary     string `json:"summary"`
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return &GeneRecord{GeneID: geneID}, nil
	}
	return &GeneRecord{
		GeneID:      geneID,
		Description: record.Description,
		Summary:     record.Summary,
	}, nil
}
