package external

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// ClinicalTrialsClient queries the ClinicalTrials.gov v2 API for studies
// registered against a condition.
type ClinicalTrialsClient struct {
	collaborator
	baseURL string
}

// NewClinicalTrialsClient creates a new ClinicalTrials.gov v2 client
func NewClinicalTrialsClient(config domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) *ClinicalTrialsClient {
	return &ClinicalTrialsClient{
		collaborator: newCollaborator("clinicaltrials", config, cache, logger),
		baseURL:      config.BaseURL,
	}
}

// Study is one registered study, reduced to the protocol fields the
// trials agent reads.
type Study struct {
	ProtocolSection struct {
		IdentificationModule struct {
			NCTID         string `json:"nctId"`
			OfficialTitle string `json:"officialTitle"`
			BriefTitle    string `json:"briefTitle"`
		} `json:"identificationModule"`
		StatusModule struct {
			OverallStatus string `json:"overallStatus"`
		} `json:"statusModule"`
		SponsorCollaboratorsModule struct {
			LeadSponsor struct {
				Name string `json:"name"`
			} `json:"leadSponsor"`
		} `json:"sponsorCollaboratorsModule"`
		DesignModule struct {
			Phases []string `json:"phases"`
		} `json:"designModule"`
		ArmsInterventionsModule struct {
			Interventions []struct {
				Name string `json:"name"`
			} `json:"interventions"`
		} `json:"armsInterventionsModule"`
	} `json:"protocolSection"`
}

// Title returns the official title, falling back to the brief title
func (s Study) Title() string {
	id := s.ProtocolSection.IdentificationModule
	if id.OfficialTitle != "" {
		return id.OfficialTitle
	}
	return id.BriefTitle
}

// Phase returns the leading phase label with the PHASE prefix stripped,
// e.g. "3" or "1/2". Empty when the study reports no phase.
func (s Study) Phase() string {
	phases := s.ProtocolSection.DesignModule.Phases
	if len(phases) == 0 {
		return ""
	}
	p := strings.ReplaceAll(phases[0], "PHASE", "")
	return strings.TrimSpace(strings.ReplaceAll(p, "_", ""))
}

// InterventionNames returns the lowercased intervention names
func (s Study) InterventionNames() []string {
	interventions := s.ProtocolSection.ArmsInterventionsModule.Interventions
	names := make([]string, 0, len(interventions))
	for _, i := range interventions {
		names = append(names, strings.ToLower(i.Name))
	}
	return names
}

// SearchStudies fetches studies for a condition, filtered by overall
// status. A single page is fetched; pageSize bounds the result.
func (c *ClinicalTrialsClient) SearchStudies(ctx context.Context, condition string, statuses []string, pageSize int) ([]Study, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	params := map[string]interface{}{
		"condition": condition,
		"status":    strings.Join(statuses, ","),
		"pageSize":  pageSize,
	}

	var result struct {
		Studies []Study `json:"studies"`
	}
	err := c.fetch(ctx, "clinicaltrials/studies", params, &result, func(ctx context.Context) error {
		q := url.Values{
			"format":     {"json"},
			"pageSize":   {strconv.Itoa(pageSize)},
			"query.cond": {condition},
		}
		if len(statuses) > 0 {
			q.Set("filter.overallStatus", strings.Join(statuses, ","))
		}
		return getJSON(ctx, c.httpClient, c.baseURL+"/studies", q, nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("ClinicalTrials.gov query failed: %w", err)
	}
	return result.Studies, nil
}
