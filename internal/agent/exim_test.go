package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

func TestSupplyAssess_StrongSignalFromAsianHubs(t *testing.T) {
	agent := NewSupplyAgent(discardLogger(), &stubSearcher{respond: func(string) ([]external.SearchResult, error) {
		return []external.SearchResult{
			{Title: "API suppliers in China", Snippet: "Leading manufacturers in China and India."},
			{Title: "Bulk drug exporters", Snippet: "Exporters based in Germany supply Europe."},
		}, nil
	}})

	out := agent.Assess(context.Background(), "metformin")

	assert.Equal(t, domain.SourcingStrong, out.Signal)
	assert.Contains(t, out.TopPartnerCountries, "China")
	assert.Contains(t, out.TopPartnerCountries, "India")
	// China mentioned twice across snippet and title, so it ranks first
	assert.Equal(t, "China", out.TopPartnerCountries[0])
	assert.Equal(t, []string{"Potential reliance on Asian markets"}, out.DependencyFlags)
	assert.Contains(t, out.Notes, "Strong presence in major API manufacturing hubs")
}

func TestSupplyAssess_ModerateWithoutAsianHubs(t *testing.T) {
	agent := NewSupplyAgent(discardLogger(), &stubSearcher{respond: func(string) ([]external.SearchResult, error) {
		return []external.SearchResult{
			{Title: "European API production", Snippet: "Plants in Germany and Italy."},
		}, nil
	}})

	out := agent.Assess(context.Background(), "aspirin")

	assert.Equal(t, domain.SourcingModerate, out.Signal)
	assert.ElementsMatch(t, []string{"Germany", "Italy", "Europe"}, out.TopPartnerCountries)
	assert.Empty(t, out.DependencyFlags)
}

func TestSupplyAssess_NoCountryMentionsUnknown(t *testing.T) {
	agent := NewSupplyAgent(discardLogger(), &stubSearcher{respond: func(string) ([]external.SearchResult, error) {
		return []external.SearchResult{{Title: "Pharmacology overview", Snippet: "Mechanism of action summary."}}, nil
	}})

	out := agent.Assess(context.Background(), "drugx")

	assert.Equal(t, domain.SourcingUnknown, out.Signal)
	assert.Empty(t, out.TopPartnerCountries)
	assert.Contains(t, out.Notes, "No specific sourcing countries identified")
}

func TestSupplyAssess_SearchFailureUnknown(t *testing.T) {
	agent := NewSupplyAgent(discardLogger(), &stubSearcher{respond: func(string) ([]external.SearchResult, error) {
		return nil, errors.New("timeout")
	}})

	out := agent.Assess(context.Background(), "drugx")

	assert.Equal(t, domain.SourcingUnknown, out.Signal)
	assert.Contains(t, out.Notes, "Search failed")
}

func TestSupplyAssessAll_KeysByCandidate(t *testing.T) {
	agent := NewSupplyAgent(discardLogger(), &stubSearcher{respond: func(string) ([]external.SearchResult, error) {
		return nil, nil
	}})

	results := agent.AssessAll(context.Background(), []string{"x", "y"})
	assert.Len(t, results, 2)
	assert.Equal(t, "x", results["x"].Candidate)
}
