package agent

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// sourcingCountries are the manufacturing hubs counted in supply snippets
var sourcingCountries = []string{"China", "India", "USA", "Europe", "Germany", "Italy"}

// SupplyAgent estimates API sourcing strength for a candidate from one
// web search over manufacturer and supplier listings.
type SupplyAgent struct {
	logger *logrus.Logger
	search WebSearcher
}

// NewSupplyAgent creates a new EXIM trends agent
func NewSupplyAgent(logger *logrus.Logger, search WebSearcher) *SupplyAgent {
	return &SupplyAgent{logger: logger, search: search}
}

// Assess counts country mentions across result snippets and titles.
// China or India among the top partners signals STRONG sourcing; any hit
// at all signals MODERATE; results without country mentions signal
// UNKNOWN, as does a failed search.
func (a *SupplyAgent) Assess(ctx context.Context, candidate string) domain.EximOutput {
	query := candidate + " API manufacturers suppliers India China export"
	results, err := a.search.Search(ctx, query, 7)
	if err != nil {
		a.logger.WithError(err).WithField("candidate", candidate).Warn("EXIM web search failed")
		return domain.EximOutput{
			Candidate: candidate,
			Signal:    domain.SourcingUnknown,
			Notes:     "Search failed: " + err.Error(),
		}
	}

	counts := make(map[string]int)
	for _, res := range results {
		text := strings.ToLower(res.Snippet + " " + res.Title)
		for _, country := range sourcingCountries {
			if strings.Contains(text, strings.ToLower(country)) {
				counts[country]++
			}
		}
	}
	partners := topKeys(counts, 5)

	signal := domain.SourcingWeak
	var notes []string
	if len(results) > 0 {
		signal = domain.SourcingModerate
		if containsAny(partners, "China", "India") {
			signal = domain.SourcingStrong
			notes = append(notes, "Strong presence in major API manufacturing hubs")
		}
	}
	if len(partners) == 0 {
		notes = append(notes, "No specific sourcing countries identified")
		signal = domain.SourcingUnknown
	}

	var dependencyFlags []string
	if containsAny(partners, "China") {
		dependencyFlags = []string{"Potential reliance on Asian markets"}
	}

	return domain.EximOutput{
		Candidate:           candidate,
		Signal:              signal,
		TopPartnerCountries: partners,
		DependencyFlags:     dependencyFlags,
		Notes:               strings.Join(notes, "; "),
	}
}

// AssessAll runs the assessment for every candidate, keyed by drug name
func (a *SupplyAgent) AssessAll(ctx context.Context, candidates []string) map[string]domain.EximOutput {
	results := make(map[string]domain.EximOutput, len(candidates))
	for _, candidate := range candidates {
		results[candidate] = a.Assess(ctx, candidate)
	}
	return results
}

func containsAny(list []string, values ...string) bool {
	for _, item := range list {
		for _, v := range values {
			if item == v {
				return true
			}
		}
	}
	return false
}
