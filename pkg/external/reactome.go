package external

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// ReactomeClient maps UniProt accessions to Reactome pathways via the
// ContentService mapping endpoint.
type ReactomeClient struct {
	collaborator
	baseURL string
}

// NewReactomeClient creates a new Reactome ContentService client
func NewReactomeClient(config domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) *ReactomeClient {
	return &ReactomeClient{
		collaborator: newCollaborator("reactome", config, cache, logger),
		baseURL:      config.BaseURL,
	}
}

// Pathway is one Reactome pathway entry
type Pathway struct {
	StID        string `json:"stId"`
	DBID        int64  `json:"dbId"`
	DisplayName string `json:"displayName"`
	SpeciesName string `json:"speciesName"`
}

// PathwaysForProtein maps a UniProt accession to the pathways it
// participates in. An unknown accession maps to an empty list.
func (c *ReactomeClient) PathwaysForProtein(ctx context.Context, accession string) ([]Pathway, error) {
	accession = strings.TrimSpace(accession)
	if accession == "" {
		return nil, nil
	}

	params := map[string]interface{}{"accession": accession}

	var result []Pathway
	err := c.fetch(ctx, "reactome/mapping", params, &result, func(ctx context.Context) error {
		endpoint := fmt.Sprintf("%s/data/mapping/UniProt/%s/pathways", c.baseURL, url.PathEscape(accession))
		return getJSON(ctx, c.httpClient, endpoint, nil, nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("Reactome mapping failed: %w", err)
	}
	return result, nil
}
