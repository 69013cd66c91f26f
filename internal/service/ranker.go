package service

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// RankingInput supplements a scored candidate with the signals the ranker
// needs that scoring does not carry.
type RankingInput struct {
	Candidate            domain.RepurposingCandidate
	TherapeuticAreaMatch bool
	MechanismUnexpected  bool
	IsOral               bool
	PatentExpired        bool
	HasKnownDosing       bool
	YearsOnMarket        *int
	InKnownDrugSet       bool
}

// CandidateRanker orders scored candidates under a configurable strategy
type CandidateRanker struct {
	logger   *logrus.Logger
	strategy domain.RankingStrategy
}

// NewCandidateRanker creates a ranker; an unrecognized strategy falls back
// to balanced.
func NewCandidateRanker(logger *logrus.Logger, strategy domain.RankingStrategy) *CandidateRanker {
	switch strategy {
	case domain.StrategyScoreOnly, domain.StrategyBalanced,
		domain.StrategyNoveltyFocused, domain.StrategyClinicalFocused:
	default:
		strategy = domain.StrategyBalanced
	}
	return &CandidateRanker{logger: logger, strategy: strategy}
}

// NoveltyScore measures how unexpected a repurposing is
func (r *CandidateRanker) NoveltyScore(in RankingInput) float64 {
	score := 0.0
	if !in.TherapeuticAreaMatch {
		score += 40
	}
	if !in.Candidate.HasClinicalEvidence {
		score += 30
	}
	if !in.InKnownDrugSet {
		score += 20
	}
	if in.MechanismUnexpected {
		score += 20
	}
	if in.YearsOnMarket != nil && *in.YearsOnMarket < 5 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// FeasibilityScore measures how practical a clinical follow-up would be
func (r *CandidateRanker) FeasibilityScore(in RankingInput) float64 {
	score := 0.0

	switch phase := in.Candidate.Phase; {
	case phase >= 4:
		score += 40
	case phase >= 3:
		score += 30
	case phase >= 2:
		score += 20
	}

	if in.IsOral {
		score += 20
	}

	safetyScore := 50.0
	if in.Candidate.Scores != nil {
		safetyScore = in.Candidate.Scores.SafetyScore
	}
	switch {
	case safetyScore >= 90:
		score += 20
	case safetyScore >= 70:
		score += 15
	case safetyScore >= 50:
		score += 10
	}

	if in.PatentExpired {
		score += 10
	}
	if in.HasKnownDosing {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

// FinalScore blends the three axes per the active strategy
func (r *CandidateRanker) FinalScore(composite, novelty, feasibility float64) float64 {
	switch r.strategy {
	case domain.StrategyScoreOnly:
		return composite
	case domain.StrategyNoveltyFocused:
		return composite*0.4 + novelty*0.4 + feasibility*0.2
	case domain.StrategyClinicalFocused:
		return composite*0.5 + novelty*0.1 + feasibility*0.4
	default:
		return composite*0.6 + novelty*0.2 + feasibility*0.2
	}
}

// AssignTier maps a final score and clinical status to a priority tier
func AssignTier(finalScore float64, phase int, hasClinicalEvidence bool) domain.Tier {
	if finalScore >= 70 {
		return domain.TierHigh
	}
	if phase == 4 && hasClinicalEvidence {
		return domain.TierHigh
	}
	if finalScore >= 50 || phase >= 3 {
		return domain.TierMedium
	}
	return domain.TierLow
}

// Recommendation renders the per-tier guidance string
func Recommendation(drugName string, phase int, tier domain.Tier, noveltyScore, feasibilityScore float64) string {
	switch tier {
	case domain.TierHigh:
		if phase == 4 {
			return fmt.Sprintf("%s: Strong repurposing candidate (approved drug). Recommend literature review and pilot study design.", drugName)
		}
		return fmt.Sprintf("%s: High-confidence candidate. Recommend detailed mechanism investigation and feasibility assessment.", drugName)
	case domain.TierMedium:
		if noveltyScore >= 70 {
			return fmt.Sprintf("%s: Novel candidate with interesting mechanism. Recommend pathway analysis and computational validation.", drugName)
		}
		return fmt.Sprintf("%s: Moderate evidence. Recommend additional validation before clinical consideration.", drugName)
	default:
		if feasibilityScore < 30 {
			return fmt.Sprintf("%s: Low feasibility for repurposing. Consider for basic research only.", drugName)
		}
		return fmt.Sprintf("%s: Insufficient evidence at this time. Monitor for emerging data.", drugName)
	}
}

// Rank orders the candidates by final score and assigns dense 1-based
// ranks. topN <= 0 returns the full list.
func (r *CandidateRanker) Rank(inputs []RankingInput, topN int) []domain.RankedCandidate {
	r.logger.WithFields(logrus.Fields{
		"candidates": len(inputs),
		"strategy":   r.strategy,
	}).Info("Ranking candidates")

	ranked := make([]domain.RankedCandidate, 0, len(inputs))
	for _, in := range inputs {
		composite := 0.0
		if in.Candidate.Scores != nil {
			composite = in.Candidate.Scores.CompositeScore
		}
		novelty := r.NoveltyScore(in)
		feasibility := r.FeasibilityScore(in)
		final := r.FinalScore(composite, novelty, feasibility)
		tier := AssignTier(final, in.Candidate.Phase, in.Candidate.HasClinicalEvidence)

		ranked = append(ranked, domain.RankedCandidate{
			DrugID:             in.Candidate.DrugID,
			DrugName:           in.Candidate.DrugName,
			CompositeScore:     composite,
			NoveltyScore:       novelty,
			FeasibilityScore:   feasibility,
			FinalScore:         final,
			Tier:               tier,
			Recommendation:     Recommendation(in.Candidate.DrugName, in.Candidate.Phase, tier, novelty, feasibility),
			OriginalIndication: in.Candidate.OriginalIndication,
			Phase:              in.Candidate.Phase,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}

	tierCounts := map[domain.Tier]int{}
	for _, c := range ranked {
		tierCounts[c.Tier]++
	}
	r.logger.WithFields(logrus.Fields{
		"ranked": len(ranked),
		"high":   tierCounts[domain.TierHigh],
		"medium": tierCounts[domain.TierMedium],
		"low":    tierCounts[domain.TierLow],
	}).Info("Ranking complete")
	return ranked
}

// FilterByTier keeps only the candidates in the given tiers
func FilterByTier(ranked []domain.RankedCandidate, tiers ...domain.Tier) []domain.RankedCandidate {
	keep := make(map[domain.Tier]struct{}, len(tiers))
	for _, t := range tiers {
		keep[t] = struct{}{}
	}
	var out []domain.RankedCandidate
	for _, c := range ranked {
		if _, ok := keep[c.Tier]; ok {
			out = append(out, c)
		}
	}
	return out
}
