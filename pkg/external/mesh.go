package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// MeSHClient resolves disease names to MeSH descriptors through the NCBI
// E-utilities. It serves two lookups: the descriptor D-number for a disease
// and the classification tree numbers used to place a disease in a
// therapeutic area.
type MeSHClient struct {
	collaborator
	baseURL string
	apiKey  string
}

// NewMeSHClient creates a new MeSH E-utilities client
func NewMeSHClient(config domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) *MeSHClient {
	return &MeSHClient{
		collaborator: newCollaborator("mesh", config, cache, logger),
		baseURL:      config.BaseURL,
		apiKey:       config.APIKey,
	}
}

type eSearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type eSummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type meshRecord struct {
	MeshTerms []string `json:"ds_meshterms"`
	IdxLinks  []struct {
		TreeNum string `json:"treenum"`
	} `json:"ds_idxlinks"`
}

// LookupDescriptor returns the MeSH descriptor ID for a disease name, in
// D-number form. Records whose summary lacks a D-prefixed term are formatted
// from the numeric UID. Empty string means no match.
func (c *MeSHClient) LookupDescriptor(ctx context.Context, term string) (string, error) {
	uids, err := c.search(ctx, term, 1)
	if err != nil {
		return "", err
	}
	if len(uids) == 0 {
		return "", nil
	}
	uid := uids[0]

	record, err := c.summary(ctx, uid)
	if err != nil {
		return "", err
	}

	meshID := ""
	if record != nil && len(record.MeshTerms) > 0 {
		meshID = record.MeshTerms[0]
	}
	if meshID != "" && !strings.HasPrefix(meshID, "D") {
		padded := uid
		for len(padded) < 6 {
			padded = "0" + padded
		}
		meshID = "D" + padded
	}
	return meshID, nil
}

// TreeNumbers returns the MeSH classification tree numbers for a disease
// name, taken from the first matching descriptor that carries any.
// Supplemental records, whose tree numbers start with "@", are skipped.
func (c *MeSHClient) TreeNumbers(ctx context.Context, term string) ([]string, error) {
	uids, err := c.search(ctx, term, 3)
	if err != nil {
		return nil, err
	}

	for _, uid := range uids {
		record, err := c.summary(ctx, uid)
		if err != nil || record == nil {
			continue
		}
		var trees []string
		for _, link := range record.IdxLinks {
			if link.TreeNum != "" && !strings.HasPrefix(link.TreeNum, "@") {
				trees = append(trees, link.TreeNum)
			}
		}
		if len(trees) > 0 {
			return trees, nil
		}
	}
	return nil, nil
}

func (c *MeSHClient) search(ctx context.Context, term string, retmax int) ([]string, error) {
	params := map[string]interface{}{
		"db":     "mesh",
		"term":   term,
		"retmax": retmax,
	}

	var result eSearchResponse
	err := c.fetch(ctx, "mesh/esearch", params, &result, func(ctx context.Context) error {
		q := url.Values{
			"db":      {"mesh"},
			"term":    {term},
			"retmode": {"json"},
			"retmax":  {fmt.Sprintf("%d", retmax)},
		}
		if c.apiKey != "" {
			q.Set("api_key", c.apiKey)
		}
		return getJSON(ctx, c.httpClient, c.baseURL+"/esearch.fcgi", q, nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("MeSH search failed: %w", err)
	}
	return result.Result.IDList, nil
}

func (c *MeSHClient) summary(ctx context.Context, uid string) (*meshRecord, error) {
	params := map[string]interface{}{
		"db": "mesh",
		"id": uid,
	}

	var result eSummaryResponse
	err := c.fetch(ctx, "mesh/esummary", params, &result, func(ctx context.Context) error {
		q := url.Values{
			"db":      {"mesh"},
			"id":      {uid},
			"retmode": {"json"},
		}
		if c.apiKey != "" {
			q.Set("api_key", c.apiKey)
		}
		return getJSON(ctx, c.httpClient, c.baseURL+"/esummary.fcgi", q, nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("MeSH summary failed: %w", err)
	}

	raw, ok := result.Result[uid]
	if !ok {
		return nil, nil
	}
	var record meshRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode MeSH record: %w", err)
	}
	return &record, nil
}
