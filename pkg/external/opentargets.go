package external

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// OpenTargetsClient queries the Open Targets Platform GraphQL API for
// disease-target associations and known-drug records.
type OpenTargetsClient struct {
	collaborator
	baseURL string
}

// NewOpenTargetsClient creates a new Open Targets GraphQL client
func NewOpenTargetsClient(config domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) *OpenTargetsClient {
	return &OpenTargetsClient{
		collaborator: newCollaborator("opentargets", config, cache, logger),
		baseURL:      config.BaseURL,
	}
}

// TargetAssociation is one disease-target association row
type TargetAssociation struct {
	Target struct {
		ID             string `json:"id"`
		ApprovedSymbol string `json:"approvedSymbol"`
		ApprovedName   string `json:"approvedName"`
		Biotype        string `json:"biotype"`
		ProteinIDs     []struct {
			ID     string `json:"id"`
			Source string `json:"source"`
		} `json:"proteinIds"`
		Tractability []struct {
			Label    string `json:"label"`
			Modality string `json:"modality"`
			Value    bool   `json:"value"`
		} `json:"tractability"`
	} `json:"target"`
	Score          float64 `json:"score"`
	DatatypeScores []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"datatypeScores"`
}

// DiseaseDrugRow is one known-drug row at the disease level. Phase is kept
// as a float because the API reports fractional early phases.
type DiseaseDrugRow struct {
	ApprovedSymbol string   `json:"approvedSymbol"`
	ApprovedName   string   `json:"approvedName"`
	PrefName       string   `json:"prefName"`
	DrugType       string   `json:"drugType"`
	DrugID         string   `json:"drugId"`
	Phase          float64  `json:"phase"`
	CTIds          []string `json:"ctIds"`
}

// TargetDrugRow is one known-drug row at the target level, carrying the
// indication the drug was developed for and its mechanism of action.
type TargetDrugRow struct {
	Drug struct {
		ID                        string  `json:"id"`
		Name                      string  `json:"name"`
		DrugType                  string  `json:"drugType"`
		MaximumClinicalTrialPhase float64 `json:"maximumClinicalTrialPhase"`
		IsApproved                bool    `json:"isApproved"`
	} `json:"drug"`
	Disease struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"disease"`
	MechanismOfAction string  `json:"mechanismOfAction"`
	Phase             float64 `json:"phase"`
}

const associatedTargetsQuery = `
query DiseaseTargets($efoId: String!, $size: Int!, $index: Int!) {
    disease(efoId: $efoId) {
        associatedTargets(
            page: {index: $index, size: $size},
            orderByScore: "score DESC",
            enableIndirect: true
        ) {
            count
            rows {
                target {
                    id
                    approvedSymbol
                    approvedName
                    biotype
                    proteinIds {
                        id
                        source
                    }
                    tractability {
                        label
                        modality
                        value
                    }
                }
                score
                datatypeScores {
                    id
                    score
                }
            }
        }
    }
}`

const drugCountQuery = `
query GetDrugCount($efoId: String!) {
    disease(efoId: $efoId) {
        id
        name
        knownDrugs {
            count
        }
    }
}`

const diseaseDrugsQuery = `
query GetKnownDrugs($efoId: String!, $size: Int!) {
    disease(efoId: $efoId) {
        id
        name
        knownDrugs(size: $size) {
            count
            rows {
                approvedSymbol
                approvedName
                prefName
                drugType
                drugId
                phase
                ctIds
            }
        }
    }
}`

const targetDrugsQuery = `
query TargetDrugs($ensemblId: String!, $size: Int!) {
    target(ensemblId: $ensemblId) {
        approvedSymbol
        approvedName
        knownDrugs(size: $size) {
            rows {
                drug {
                    id
                    name
                    drugType
                    maximumClinicalTrialPhase
                    isApproved
                }
                disease {
                    id
                    name
                }
                mechanismOfAction
                phase
            }
        }
    }
}`

const targetDiseasesQuery = `
query TargetDiseases($ensemblId: String!) {
    target(ensemblId: $ensemblId) {
        associatedDiseases(page: {index: 0, size: 200}) {
            rows {
                disease {
                    id
                }
                score
            }
        }
    }
}`

// associatedTargetsPageCap bounds pagination to 50k rows
const associatedTargetsPageCap = 500

// AssociatedTargets fetches every disease-target association for a disease,
// ordered by descending score, paging until the reported count is reached.
func (c *OpenTargetsClient) AssociatedTargets(ctx context.Context, efoID string) ([]TargetAssociation, error) {
	const pageSize = 100

	var all []TargetAssociation
	total := -1

	for index := 0; index < associatedTargetsPageCap; index++ {
		var result struct {
			Disease *struct {
				AssociatedTargets struct {
					Count int                 `json:"count"`
					Rows  []TargetAssociation `json:"rows"`
				} `json:"associatedTargets"`
			} `json:"disease"`
		}

		params := map[string]interface{}{
			"query": "associatedTargets",
			"efoId": efoID,
			"index": index,
		}
		variables := map[string]interface{}{"efoId": efoID, "size": pageSize, "index": index}

		if err := c.graphql(ctx, params, associatedTargetsQuery, variables, &result); err != nil {
			return nil, fmt.Errorf("Open Targets association query failed: %w", err)
		}
		if result.Disease == nil {
			break
		}

		assoc := result.Disease.AssociatedTargets
		if total < 0 {
			total = assoc.Count
		}
		all = append(all, assoc.Rows...)

		if len(assoc.Rows) == 0 || len(all) >= total {
			break
		}
	}

	c.logger.WithFields(logrus.Fields{
		"disease": efoID,
		"targets": len(all),
	}).Info("Fetched disease-target associations")
	return all, nil
}

// DiseaseKnownDrugs fetches the drugs with clinical evidence for a disease.
// The count is queried first and the full list fetched in one page, capped
// at maxResults.
func (c *OpenTargetsClient) DiseaseKnownDrugs(ctx context.Context, efoID string, maxResults int) ([]DiseaseDrugRow, string, error) {
	var countResult struct {
		Disease *struct {
			Name       string `json:"name"`
			KnownDrugs struct {
				Count int `json:"count"`
			} `json:"knownDrugs"`
		} `json:"disease"`
	}

	params := map[string]interface{}{"query": "knownDrugsCount", "efoId": efoID}
	if err := c.graphql(ctx, params, drugCountQuery, map[string]interface{}{"efoId": efoID}, &countResult); err != nil {
		return nil, "", fmt.Errorf("Open Targets drug count query failed: %w", err)
	}
	if countResult.Disease == nil {
		c.logger.WithField("disease", efoID).Warn("Disease not found in Open Targets")
		return nil, "", nil
	}

	diseaseName := countResult.Disease.Name
	count := countResult.Disease.KnownDrugs.Count
	if count == 0 {
		return nil, diseaseName, nil
	}
	if maxResults > 0 && count > maxResults {
		c.logger.WithFields(logrus.Fields{
			"disease": efoID,
			"count":   count,
			"limit":   maxResults,
		}).Warn("Truncating known drug list")
		count = maxResults
	}

	var drugsResult struct {
		Disease *struct {
			KnownDrugs struct {
				Rows []DiseaseDrugRow `json:"rows"`
			} `json:"knownDrugs"`
		} `json:"disease"`
	}

	params = map[string]interface{}{"query": "knownDrugs", "efoId": efoID, "size": count}
	variables := map[string]interface{}{"efoId": efoID, "size": count}
	if err := c.graphql(ctx, params, diseaseDrugsQuery, variables, &drugsResult); err != nil {
		return nil, diseaseName, fmt.Errorf("Open Targets known drugs query failed: %w", err)
	}
	if drugsResult.Disease == nil {
		return nil, diseaseName, nil
	}
	return drugsResult.Disease.KnownDrugs.Rows, diseaseName, nil
}

// TargetKnownDrugs fetches the drugs known to act on a target, with the
// indication each was developed for.
func (c *OpenTargetsClient) TargetKnownDrugs(ctx context.Context, ensemblID string, size int) ([]TargetDrugRow, error) {
	if size <= 0 {
		size = 100
	}

	var result struct {
		Target *struct {
			KnownDrugs struct {
				Rows []TargetDrugRow `json:"rows"`
			} `json:"knownDrugs"`
		} `json:"target"`
	}

	params := map[string]interface{}{"query": "targetDrugs", "ensemblId": ensemblID, "size": size}
	variables := map[string]interface{}{"ensemblId": ensemblID, "size": size}
	if err := c.graphql(ctx, params, targetDrugsQuery, variables, &result); err != nil {
		return nil, fmt.Errorf("Open Targets target drugs query failed: %w", err)
	}
	if result.Target == nil {
		return nil, nil
	}
	return result.Target.KnownDrugs.Rows, nil
}

// GeneDiseaseScore returns the association score between a target and a
// disease, or zero when no association is reported.
func (c *OpenTargetsClient) GeneDiseaseScore(ctx context.Context, ensemblID, efoID string) (float64, error) {
	var result struct {
		Target *struct {
			AssociatedDiseases struct {
				Rows []struct {
					Disease struct {
						ID string `json:"id"`
					} `json:"disease"`
					Score float64 `json:"score"`
				} `json:"rows"`
			} `json:"associatedDiseases"`
		} `json:"target"`
	}

	params := map[string]interface{}{"query": "targetDiseases", "ensemblId": ensemblID}
	variables := map[string]interface{}{"ensemblId": ensemblID}
	if err := c.graphql(ctx, params, targetDiseasesQuery, variables, &result); err != nil {
		return 0, fmt.Errorf("Open Targets target diseases query failed: %w", err)
	}
	if result.Target == nil {
		return 0, nil
	}
	for _, row := range result.Target.AssociatedDiseases.Rows {
		if row.Disease.ID == efoID {
			return row.Score, nil
		}
	}
	return 0, nil
}

// graphql posts one query and decodes the data envelope into out
func (c *OpenTargetsClient) graphql(ctx context.Context, params map[string]interface{}, query string, variables map[string]interface{}, out interface{}) error {
	return c.fetch(ctx, "opentargets/graphql", params, out, func(ctx context.Context) error {
		body := map[string]interface{}{"query": query, "variables": variables}

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
		return json.Unmarshal(envelope.Data, out)
	})
}
