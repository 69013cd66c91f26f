package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

// PatentAgent infers freedom-to-operate risk for a candidate from two
// patent-focused web searches. Web snippets carry no structured patent
// data, so the assessment is a keyword heuristic.
type PatentAgent struct {
	logger *logrus.Logger
	search WebSearcher
	now    func() time.Time
}

// NewPatentAgent creates a new patent landscape agent
func NewPatentAgent(logger *logrus.Logger, search WebSearcher) *PatentAgent {
	return &PatentAgent{logger: logger, search: search, now: time.Now}
}

// Assess derives a risk tier for one candidate. "expired" in any expiry
// snippet pins LOW; a future year raises MEDIUM; recent filing mentions
// bump the tier to at least MEDIUM, and to HIGH when already non-LOW.
func (a *PatentAgent) Assess(ctx context.Context, candidate string) domain.PatentOutput {
	expiryHits, err := a.search.Search(ctx, candidate+" patent expiry expiration date", 5)
	if err != nil {
		a.logger.WithError(err).WithField("candidate", candidate).Warn("Patent web search failed")
		return domain.PatentOutput{
			Candidate: candidate,
			RiskTier:  domain.PatentRiskUnknown,
			Notes:     "Search failed: " + err.Error(),
		}
	}

	year := a.now().Year()
	recentQuery := fmt.Sprintf("%s patent application %d %d", candidate, year, year+1)
	recentHits, err := a.search.Search(ctx, recentQuery, 5)
	if err != nil {
		a.logger.WithError(err).WithField("candidate", candidate).Warn("Recent patent search failed")
		recentHits = nil
	}

	risk := domain.PatentRiskLow
	var notes []string
	var keyPatents []domain.PatentHit

	if snippetsContain(expiryHits, "expired") {
		notes = append(notes, "Patents likely expired (low risk)")
	} else if mentionsFutureYear(expiryHits, year) {
		notes = append(notes, "Found future expiration dates (medium/high risk)")
		risk = domain.PatentRiskMedium
	}

	if len(recentHits) > 0 {
		if risk == domain.PatentRiskLow {
			risk = domain.PatentRiskMedium
		} else {
			risk = domain.PatentRiskHigh
		}
		notes = append(notes, fmt.Sprintf("Found %d recent patent mentions", len(recentHits)))

		for _, hit := range recentHits {
			if len(keyPatents) == 3 {
				break
			}
			keyPatents = append(keyPatents, domain.PatentHit{
				PatentID: "Web-Result",
				Title:    hit.Title,
				Assignee: "Unknown",
				URL:      hit.URL,
			})
		}
	}

	if len(notes) == 0 {
		notes = append(notes, "No specific patent data found (assuming low/unknown)")
		risk = domain.PatentRiskUnknown
	}

	return domain.PatentOutput{
		Candidate:  candidate,
		RiskTier:   risk,
		KeyPatents: keyPatents,
		Notes:      strings.Join(notes, "; "),
	}
}

// AssessAll runs the assessment for every candidate, keyed by drug name
func (a *PatentAgent) AssessAll(ctx context.Context, candidates []string) map[string]domain.PatentOutput {
	results := make(map[string]domain.PatentOutput, len(candidates))
	for _, candidate := range candidates {
		results[candidate] = a.Assess(ctx, candidate)
	}
	return results
}

func snippetsContain(hits []external.SearchResult, keyword string) bool {
	for _, hit := range hits {
		if strings.Contains(strings.ToLower(hit.Snippet), keyword) {
			return true
		}
	}
	return false
}

// mentionsFutureYear scans snippets for any year strictly after the
// current one, up to 2039.
func mentionsFutureYear(hits []external.SearchResult, currentYear int) bool {
	for _, hit := range hits {
		for y := currentYear + 1; y < 2040; y++ {
			if strings.Contains(hit.Snippet, strconv.Itoa(y)) {
				return true
			}
		}
	}
	return false
}
