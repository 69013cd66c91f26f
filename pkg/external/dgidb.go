package external

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// DGIdbClient queries the DGIdb GraphQL API for curated gene-drug
// interactions, used as a secondary candidate source alongside the
// target-level known-drug lookup.
type DGIdbClient struct {
	collaborator
	baseURL string
}

// NewDGIdbClient creates a new DGIdb GraphQL client
func NewDGIdbClient(config domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) *DGIdbClient {
	return &DGIdbClient{
		collaborator: newCollaborator("dgidb", config, cache, logger),
		baseURL:      config.BaseURL,
	}
}

// GeneInteractions is the interaction set reported for one gene
type GeneInteractions struct {
	Name         string        `json:"name"`
	ConceptID    string        `json:"conceptId"`
	Interactions []Interaction `json:"interactions"`
}

// Interaction is one gene-drug interaction record
type Interaction struct {
	InteractionScore float64 `json:"interactionScore"`
	InteractionTypes []struct {
		Type           string `json:"type"`
		Directionality string `json:"directionality"`
	} `json:"interactionTypes"`
	Drug struct {
		Name             string `json:"name"`
		ConceptID        string `json:"conceptId"`
		Approved         bool   `json:"approved"`
		DrugApplications []struct {
			AppNo string `json:"appNo"`
		} `json:"drugApplications"`
		DrugAttributes []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"drugAttributes"`
	} `json:"drug"`
	Publications []struct {
		PMID int `json:"pmid"`
	} `json:"publications"`
}

const geneInteractionsQuery = `
query GeneInteractions($geneNames: [String!]!) {
  genes(names: $geneNames) {
    nodes {
      name
      conceptId
      interactions {
        interactionScore
        interactionTypes {
          type
          directionality
        }
        drug {
          name
          conceptId
          approved
          drugApplications {
            appNo
          }
          drugAttributes {
            name
            value
          }
        }
        publications {
          pmid
        }
      }
    }
  }
}`

// QueryGenes fetches drug interactions for a batch of gene symbols
func (c *DGIdbClient) QueryGenes(ctx context.Context, geneSymbols []string) ([]GeneInteractions, error) {
	if len(geneSymbols) == 0 {
		return nil, nil
	}

	names := make([]interface{}, len(geneSymbols))
	for i, s := range geneSymbols {
		names[i] = s
	}
	params := map[string]interface{}{"query": "geneInteractions", "genes": names}

	var result struct {
		Genes struct {
			Nodes []GeneInteractions `json:"nodes"`
		} `json:"genes"`
	}
	err := c.fetch(ctx, "dgidb/graphql", params, &result, func(ctx context.Context) error {
		body := map[string]interface{}{
			"query":     geneInteractionsQuery,
			"variables": map[string]interface{}{"geneNames": geneSymbols},
		}

		var envelope struct {
			Data   json.RawMessage `json:"data"`
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		}
		if err := postJSON(ctx, c.httpClient, c.baseURL, body, nil, &envelope); err != nil {
			return err
		}
		if len(envelope.Errors) > 0 {
			return Permanent(fmt.Errorf("GraphQL error: %s", envelope.Errors[0].Message))
		}
		if len(envelope.Data) == 0 {
			return Permanent(fmt.Errorf("GraphQL response missing data"))
		}
		return json.Unmarshal(envelope.Data, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("DGIdb gene query failed: %w", err)
	}
	return result.Genes.Nodes, nil
}
