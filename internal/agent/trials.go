package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

// activeStatuses restrict the registry query to trials still enrolling or
// actively running.
var activeStatuses = []string{"RECRUITING", "ACTIVE_NOT_RECRUITING", "ENROLLING_BY_INVITATION"}

const (
	trialPageSize = 200
	// crowdingThreshold flags a disease whose active trial landscape is
	// already crowded with competition.
	crowdingThreshold = 50
)

// StudySearcher is the slice of the trial registry client the agent consumes
type StudySearcher interface {
	SearchStudies(ctx context.Context, condition string, statuses []string, pageSize int) ([]external.Study, error)
}

// TrialsAgent surveys the active trial landscape for a disease and matches
// registered interventions against the candidate slate.
type TrialsAgent struct {
	logger   *logrus.Logger
	registry StudySearcher
}

// NewTrialsAgent creates a new clinical trials agent
func NewTrialsAgent(logger *logrus.Logger, registry StudySearcher) *TrialsAgent {
	return &TrialsAgent{logger: logger, registry: registry}
}

// Collect queries active trials for the disease and attributes hits to each
// candidate whose name appears in a trial title or intervention. A registry
// failure yields an empty output with the candidate map initialized.
func (a *TrialsAgent) Collect(ctx context.Context, disease string, candidates []string) *domain.TrialsOutput {
	out := emptyTrialsOutput(candidates)

	studies, err := a.registry.SearchStudies(ctx, disease, activeStatuses, trialPageSize)
	if err != nil {
		a.logger.WithError(err).WithField("disease", disease).
			Warn("Trial registry query failed, continuing without trial data")
		return out
	}

	out.TotalTrials = len(studies)
	sponsorCounts := make(map[string]int)

	for _, study := range studies {
		phase := study.Phase()
		if phase != "" {
			out.PhaseBreakdown[phase]++
		}

		sponsor := study.ProtocolSection.SponsorCollaboratorsModule.LeadSponsor.Name
		if sponsor == "" {
			sponsor = "Unknown"
		}
		sponsorCounts[sponsor]++

		status := study.ProtocolSection.StatusModule.OverallStatus
		if status == "" {
			status = "Unknown"
		}
		nctID := study.ProtocolSection.IdentificationModule.NCTID
		title := strings.ToLower(study.Title())
		interventions := study.InterventionNames()

		for _, candidate := range candidates {
			if !mentionsCandidate(title, interventions, strings.ToLower(candidate)) {
				continue
			}
			out.CandidateTrials[candidate] = append(out.CandidateTrials[candidate], domain.TrialInfo{
				NCTID:   nctID,
				Phase:   phase,
				Status:  status,
				Sponsor: sponsor,
				URL:     fmt.Sprintf("https://clinicaltrials.gov/study/%s", nctID),
			})
		}
	}

	out.TopSponsors = topKeys(sponsorCounts, 5)
	if out.TotalTrials > crowdingThreshold {
		out.CrowdingFlags = append(out.CrowdingFlags, domain.CrowdingFlag{
			Disease:    disease,
			Flag:       "high_competition",
			TrialCount: out.TotalTrials,
		})
	}

	a.logger.WithFields(logrus.Fields{
		"disease":      disease,
		"total_trials": out.TotalTrials,
	}).Info("Clinical trials landscape collected")
	return out
}

func mentionsCandidate(title string, interventions []string, candidate string) bool {
	if candidate == "" {
		return false
	}
	if strings.Contains(title, candidate) {
		return true
	}
	for _, name := range interventions {
		if strings.Contains(name, candidate) {
			return true
		}
	}
	return false
}

func emptyTrialsOutput(candidates []string) *domain.TrialsOutput {
	out := &domain.TrialsOutput{
		PhaseBreakdown:  make(map[string]int),
		CandidateTrials: make(map[string][]domain.TrialInfo, len(candidates)),
	}
	for _, name := range candidates {
		out.CandidateTrials[name] = []domain.TrialInfo{}
	}
	return out
}
