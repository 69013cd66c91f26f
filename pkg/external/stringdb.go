package external

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// StringDBClient queries the STRING protein-interaction network for
// high-confidence partners of a target, used to enrich mechanism context.
type StringDBClient struct {
	collaborator
	baseURL string
}

// NewStringDBClient creates a new STRING API client
func NewStringDBClient(config domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) *StringDBClient {
	return &StringDBClient{
		collaborator: newCollaborator("stringdb", config, cache, logger),
		baseURL:      config.BaseURL,
	}
}

// ProteinInteraction is one scored interaction partner
type ProteinInteraction struct {
	Partner  string
	Score    float64
	Evidence []string
}

type stringEdge struct {
	PreferredNameA string  `json:"preferredName_A"`
	PreferredNameB string  `json:"preferredName_B"`
	Score          float64 `json:"score"`
	NScore         float64 `json:"nscore"`
	FScore         float64 `json:"fscore"`
	PScore         float64 `json:"pscore"`
	AScore         float64 `json:"ascore"`
	EScore         float64 `json:"escore"`
	DScore         float64 `json:"dscore"`
	TScore         float64 `json:"tscore"`
}

// Interactions fetches interaction partners above the confidence
// threshold for a human gene symbol. Threshold is in [0,1]; STRING wants
// an integer score in [0,1000].
func (c *StringDBClient) Interactions(ctx context.Context, geneSymbol string, confidenceThreshold float64) ([]ProteinInteraction, error) {
	requiredScore := int(confidenceThreshold * 1000)
	params := map[string]interface{}{
		"identifiers":    geneSymbol,
		"species":        9606,
		"required_score": requiredScore,
	}

	var edges []stringEdge
	err := c.fetch(ctx, "stringdb/network", params, &edges, func(ctx context.Context) error {
		form := url.Values{
			"identifiers":    {geneSymbol},
			"species":        {"9606"},
			"required_score": {strconv.Itoa(requiredScore)},
		}
		return postForm(ctx, c.httpClient, c.baseURL+"/json/network", form, &edges)
	})
	if err != nil {
		return nil, fmt.Errorf("STRING network query failed: %w", err)
	}

	interactions := make([]ProteinInteraction, 0, len(edges))
	for _, edge := range edges {
		partner := edge.PreferredNameB
		if partner == geneSymbol {
			partner = edge.PreferredNameA
		}
		if partner == "" || partner == geneSymbol {
			continue
		}
		interactions = append(interactions, ProteinInteraction{
			Partner:  partner,
			Score:    edge.Score,
			Evidence: edge.evidenceChannels(),
		})
	}
	return interactions, nil
}

// evidenceChannels names the STRING evidence channels with nonzero scores
func (e stringEdge) evidenceChannels() []string {
	channels := []struct {
		name  string
		score float64
	}{
		{"neighborhood", e.NScore},
		{"fusion", e.FScore},
		{"phylogenetic", e.PScore},
		{"coexpression", e.AScore},
		{"experiments", e.EScore},
		{"database", e.DScore},
		{"textmining", e.TScore},
	}
	var out []string
	for _, ch := range channels {
		if ch.score > 0 {
			out = append(out, ch.name)
		}
	}
	return out
}
