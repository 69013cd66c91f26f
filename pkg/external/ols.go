package external

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// OLSClient queries the EBI Ontology Lookup Service for disease terms in the
// EFO and MONDO ontologies.
type OLSClient struct {
	collaborator
	baseURL string
}

// NewOLSClient creates a new OLS API client
func NewOLSClient(config domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) *OLSClient {
	return &OLSClient{
		collaborator: newCollaborator("ols", config, cache, logger),
		baseURL:      config.BaseURL,
	}
}

// OntologyDoc is one search hit from the OLS search endpoint. List-valued
// fields keep their list form; callers take the first element where a scalar
// is needed.
type OntologyDoc struct {
	IRI          string   `json:"iri"`
	Label        string   `json:"label"`
	Description  []string `json:"description"`
	OboID        string   `json:"obo_id"`
	OntologyName string   `json:"ontology_name"`
	Synonyms     []string `json:"synonym"`
	Score        float64  `json:"score"`
}

// FirstDescription returns the first description string, or empty
func (d OntologyDoc) FirstDescription() string {
	if len(d.Description) > 0 {
		return d.Description[0]
	}
	return ""
}

type olsSearchResponse struct {
	Response struct {
		Docs []OntologyDoc `json:"docs"`
	} `json:"response"`
}

type olsTermsResponse struct {
	Embedded struct {
		Terms []struct {
			Label string `json:"label"`
			OboID string `json:"obo_id"`
		} `json:"terms"`
	} `json:"_embedded"`
}

// SearchDisease searches EFO and MONDO for a disease name and returns up to
// ten candidate documents in service order.
func (c *OLSClient) SearchDisease(ctx context.Context, query string) ([]OntologyDoc, error) {
	params := map[string]interface{}{
		"q":        query,
		"ontology": "efo,mondo",
		"rows":     10,
	}

	var result olsSearchResponse
	err := c.fetch(ctx, "ols/search", params, &result, func(ctx context.Context) error {
		q := url.Values{
			"q":         {query},
			"ontology":  {"efo,mondo"},
			"type":      {"class"},
			"exact":     {"false"},
			"rows":      {"10"},
			"fieldList": {"iri,label,description,obo_id,ontology_name,synonym,score"},
		}
		return getJSON(ctx, c.httpClient, c.baseURL+"/search", q, nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("OLS search failed: %w", err)
	}
	return result.Response.Docs, nil
}

// FetchParents returns the labels of the direct parents of a term. The IRI
// is double URL-encoded per the OLS path convention.
func (c *OLSClient) FetchParents(ctx context.Context, ontology, iri string) ([]string, error) {
	terms, err := c.fetchTerms(ctx, ontology, iri, "parents")
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(terms))
	for _, t := range terms {
		labels = append(labels, t.label)
	}
	return labels, nil
}

// FetchAncestorIDs returns the OBO IDs of all ancestors of a term
func (c *OLSClient) FetchAncestorIDs(ctx context.Context, ontology, iri string) ([]string, error) {
	terms, err := c.fetchTerms(ctx, ontology, iri, "ancestors")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(terms))
	for _, t := range terms {
		if t.oboID != "" {
			ids = append(ids, t.oboID)
		}
	}
	return ids, nil
}

type olsTerm struct {
	label string
	oboID string
}

func (c *OLSClient) fetchTerms(ctx context.Context, ontology, iri, relation string) ([]olsTerm, error) {
	params := map[string]interface{}{
		"ontology": ontology,
		"iri":      iri,
		"relation": relation,
	}

	var result olsTermsResponse
	err := c.fetch(ctx, "ols/terms/"+relation, params, &result, func(ctx context.Context) error {
		encoded := url.PathEscape(url.QueryEscape(iri))
		endpoint := fmt.Sprintf("%s/ontologies/%s/terms/%s/%s", c.baseURL, ontology, encoded, relation)
		return getJSON(ctx, c.httpClient, endpoint, nil, nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("OLS %s lookup failed: %w", relation, err)
	}

	terms := make([]olsTerm, 0, len(result.Embedded.Terms))
	for _, t := range result.Embedded.Terms {
		terms = append(terms, olsTerm{label: t.Label, oboID: t.OboID})
	}
	return terms, nil
}
