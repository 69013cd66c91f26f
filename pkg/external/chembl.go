package external

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// ChEMBLClient queries the ChEMBL REST API for target mechanisms and
// molecule records. ChEMBL throttles aggressively, so this client always
// runs behind an interval limiter.
type ChEMBLClient struct {
	collaborator
	baseURL string
}

// NewChEMBLClient creates a new ChEMBL API client
func NewChEMBLClient(config domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) *ChEMBLClient {
	return &ChEMBLClient{
		collaborator: newCollaborator("chembl", config, cache, logger),
		baseURL:      config.BaseURL,
	}
}

// Mechanism is one mechanism-of-action record for a target
type Mechanism struct {
	MoleculeChemblID  string `json:"molecule_chembl_id"`
	MechanismOfAction string `json:"mechanism_of_action"`
	ActionType        string `json:"action_type"`
}

// Molecule is a ChEMBL molecule record, reduced to the fields the pipeline
// reads.
type Molecule struct {
	MoleculeChemblID string  `json:"molecule_chembl_id"`
	PrefName         string  `json:"pref_name"`
	MaxPhase         float64 `json:"max_phase"`
	Oral             bool    `json:"oral"`
	FirstApproval    int     `json:"first_approval"`
	BlackBoxWarning  int     `json:"black_box_warning"`
	Indications      []struct {
		Indication string `json:"indication"`
	} `json:"drug_indications"`
}

// SearchTargetID resolves a gene symbol to its ChEMBL target ID. Empty
// string means no match.
func (c *ChEMBLClient) SearchTargetID(ctx context.Context, geneSymbol string) (string, error) {
	params := map[string]interface{}{"q": geneSymbol, "limit": 3}

	var result struct {
		Targets []struct {
			TargetChemblID string `json:"target_chembl_id"`
		} `json:"targets"`
	}
	err := c.fetch(ctx, "chembl/target/search", params, &result, func(ctx context.Context) error {
		q := url.Values{"q": {geneSymbol}, "limit": {"3"}}
		return getJSON(ctx, c.httpClient, c.baseURL+"/target/search.json", q, nil, &result)
	})
	if err != nil {
		return "", fmt.Errorf("ChEMBL target search failed: %w", err)
	}
	if len(result.Targets) == 0 {
		return "", nil
	}
	return result.Targets[0].TargetChemblID, nil
}

// SearchMoleculeID resolves a drug name to its canonical ChEMBL molecule
// ID. Empty string means no match.
func (c *ChEMBLClient) SearchMoleculeID(ctx context.Context, drugName string) (string, error) {
	params := map[string]interface{}{"q": drugName, "limit": 5}

	var result struct {
		Molecules []struct {
			MoleculeChemblID string `json:"molecule_chembl_id"`
		} `json:"molecules"`
	}
	err := c.fetch(ctx, "chembl/molecule/search", params, &result, func(ctx context.Context) error {
		q := url.Values{"q": {drugName}, "limit": {"5"}}
		return getJSON(ctx, c.httpClient, c.baseURL+"/molecule/search.json", q, nil, &result)
	})
	if err != nil {
		return "", fmt.Errorf("ChEMBL molecule search failed: %w", err)
	}
	if len(result.Molecules) == 0 {
		return "", nil
	}
	return result.Molecules[0].MoleculeChemblID, nil
}

// Mechanisms fetches the mechanism-of-action records for a ChEMBL target
func (c *ChEMBLClient) Mechanisms(ctx context.Context, targetChemblID string, limit int) ([]Mechanism, error) {
	if limit <= 0 {
		limit = 30
	}
	params := map[string]interface{}{"target_chembl_id": targetChemblID, "limit": limit}

	var result struct {
		Mechanisms []Mechanism `json:"mechanisms"`
	}
	err := c.fetch(ctx, "chembl/mechanism", params, &result, func(ctx context.Context) error {
		q := url.Values{
			"target_chembl_id": {targetChemblID},
			"limit":            {strconv.Itoa(limit)},
		}
		return getJSON(ctx, c.httpClient, c.baseURL+"/mechanism.json", q, nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("ChEMBL mechanism query failed: %w", err)
	}
	return result.Mechanisms, nil
}

// Molecule fetches a single molecule record by its ChEMBL ID
func (c *ChEMBLClient) Molecule(ctx context.Context, moleculeID string) (*Molecule, error) {
	params := map[string]interface{}{"molecule_chembl_id": moleculeID}

	var result Molecule
	err := c.fetch(ctx, "chembl/molecule", params, &result, func(ctx context.Context) error {
		endpoint := fmt.Sprintf("%s/molecule/%s.json", c.baseURL, url.PathEscape(moleculeID))
		return getJSON(ctx, c.httpClient, endpoint, nil, nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("ChEMBL molecule query failed: %w", err)
	}
	return &result, nil
}
