package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// ScoringWeights are the component weights of the composite score. They
// must sum to 1.0.
type ScoringWeights struct {
	ClinicalPhase    float64
	EvidenceStrength float64
	MechanismOverlap float64
	SafetyProfile    float64
	Novelty          float64
}

// DefaultScoringWeights returns the production weight mix
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		ClinicalPhase:    0.35,
		EvidenceStrength: 0.25,
		MechanismOverlap: 0.20,
		SafetyProfile:    0.10,
		Novelty:          0.10,
	}
}

// Validate checks the weights sum to 1.0 within tolerance
func (w ScoringWeights) Validate() error {
	total := w.ClinicalPhase + w.EvidenceStrength + w.MechanismOverlap + w.SafetyProfile + w.Novelty
	if math.Abs(total-1.0) > 0.01 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.3f", total)
	}
	return nil
}

// ScoringInput carries the evidence for one candidate. Pointer fields
// distinguish "absent" from zero; missing data lowers confidence, never
// the sub-score floor.
type ScoringInput struct {
	Phase               int
	HasClinicalEvidence bool
	OpenTargetsScore    float64
	EvidenceCount       int
	LiteratureCount     *int
	PathwayOverlap      *float64
	HasKnownMechanism   bool
	TargetDruggability  *string
	HasBlackBoxWarning  bool
	HasSeriousAEs       bool
	WithdrawalHistory   bool
	YearsOnMarket       *int
	RepurposingNovelty  *float64
	OriginalIndication  string
}

// ScoringEngine computes the transparent multi-axis candidate score
type ScoringEngine struct {
	logger  *logrus.Logger
	weights ScoringWeights
}

// NewScoringEngine creates a scoring engine, rejecting invalid weights
func NewScoringEngine(logger *logrus.Logger, weights ScoringWeights) (*ScoringEngine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &ScoringEngine{logger: logger, weights: weights}, nil
}

// ScoreClinicalPhase maps a clinical phase to its maturity score
func (e *ScoringEngine) ScoreClinicalPhase(phase int) float64 {
	switch phase {
	case 1:
		return 30
	case 2:
		return 50
	case 3:
		return 70
	case 4:
		return 100
	default:
		return 10
	}
}

// ScoreEvidenceStrength combines clinical evidence, the association score,
// evidence diversity, and literature volume.
func (e *ScoringEngine) ScoreEvidenceStrength(in ScoringInput) float64 {
	score := 0.0
	if in.HasClinicalEvidence {
		score += 40
	}
	score += in.OpenTargetsScore * 30
	score += math.Min(float64(in.EvidenceCount)*5, 20)

	if in.LiteratureCount != nil {
		switch n := *in.LiteratureCount; {
		case n >= 100:
			score += 10
		case n >= 50:
			score += 8
		case n >= 20:
			score += 6
		case n >= 10:
			score += 4
		case n >= 5:
			score += 2
		}
	}
	return math.Min(score, 100)
}

// ScoreMechanism weighs the target association as the primary signal, with
// pathway overlap as secondary confirmation.
func (e *ScoringEngine) ScoreMechanism(in ScoringInput) float64 {
	score := in.OpenTargetsScore * 40

	if in.PathwayOverlap != nil {
		if *in.PathwayOverlap > 0.15 {
			score += *in.PathwayOverlap * 30
		} else {
			score += 5
		}
	} else {
		score += 10
	}

	if in.HasKnownMechanism {
		score += 15
	}

	if in.TargetDruggability != nil {
		switch *in.TargetDruggability {
		case "Tier 1":
			score += 15
		case "Tier 2":
			score += 10
		case "Tier 3":
			score += 5
		default:
			score += 2
		}
	}
	return math.Min(score, 100)
}

// ScoreSafety starts at 100 and subtracts for red flags. A long market
// history earns a bonus.
func (e *ScoringEngine) ScoreSafety(in ScoringInput) float64 {
	score := 100.0
	if in.HasBlackBoxWarning {
		score -= 30
	}
	if in.HasSeriousAEs {
		score -= 20
	}
	if in.WithdrawalHistory {
		score -= 40
	}
	if in.YearsOnMarket != nil && *in.YearsOnMarket >= 10 {
		score = math.Min(score+10, 100)
	}
	return math.Max(score, 0)
}

// ScoreNovelty passes through a pre-computed novelty, falling back on
// whether the original indication is even known.
func (e *ScoringEngine) ScoreNovelty(in ScoringInput) float64 {
	if in.RepurposingNovelty != nil {
		return math.Min(*in.RepurposingNovelty, 100)
	}
	if in.OriginalIndication != "" {
		return 70
	}
	return 50
}

// Score computes the full breakdown for one candidate
func (e *ScoringEngine) Score(in ScoringInput) *domain.ScoreBreakdown {
	noveltyScore := e.ScoreNovelty(in)
	clinicalScore := e.ScoreClinicalPhase(in.Phase)
	evidenceScore := e.ScoreEvidenceStrength(in)
	mechanismScore := e.ScoreMechanism(in)
	safetyScore := e.ScoreSafety(in)

	composite := noveltyScore*e.weights.Novelty +
		clinicalScore*e.weights.ClinicalPhase +
		mechanismScore*e.weights.MechanismOverlap +
		evidenceScore*e.weights.EvidenceStrength +
		safetyScore*e.weights.SafetyProfile

	present := 0
	if in.HasClinicalEvidence {
		present++
	}
	if in.PathwayOverlap != nil {
		present++
	}
	if in.LiteratureCount != nil {
		present++
	}
	if in.TargetDruggability != nil {
		present++
	}
	if in.RepurposingNovelty != nil {
		present++
	}
	completeness := float64(present) / 5.0
	confidence := 0.5 + completeness*0.5

	var reasons []string
	if noveltyScore >= 80 {
		reasons = append(reasons, "high repurposing novelty")
	}
	if clinicalScore >= 70 {
		reasons = append(reasons, "strong clinical data")
	}
	if mechanismScore >= 60 {
		reasons = append(reasons, "good mechanistic rationale")
	}
	if evidenceScore >= 70 {
		reasons = append(reasons, "robust evidence")
	}
	if safetyScore < 70 {
		reasons = append(reasons, "some safety concerns")
	}
	reasoning := fmt.Sprintf("Composite score %.1f/100", composite)
	if len(reasons) > 0 {
		reasoning = fmt.Sprintf("Composite score %.1f/100 based on: %s", composite, strings.Join(reasons, ", "))
	}

	var flags []string
	if noveltyScore < 50 {
		flags = append(flags, "low_novelty")
	}
	if clinicalScore < 30 {
		flags = append(flags, "early_stage")
	}
	if evidenceScore < 40 {
		flags = append(flags, "weak_evidence")
	}
	if safetyScore < 60 {
		flags = append(flags, "safety_concerns")
	}
	if confidence < 0.7 {
		flags = append(flags, "incomplete_data")
	}

	return &domain.ScoreBreakdown{
		CompositeScore:     composite,
		NoveltyScore:       noveltyScore,
		ClinicalPhaseScore: clinicalScore,
		EvidenceScore:      evidenceScore,
		MechanismScore:     mechanismScore,
		SafetyScore:        safetyScore,
		Confidence:         confidence,
		Reasoning:          reasoning,
		Flags:              flags,
	}
}

// ScoreCandidates annotates each candidate with its score breakdown
func (e *ScoringEngine) ScoreCandidates(candidates []domain.RepurposingCandidate) []domain.RepurposingCandidate {
	for i := range candidates {
		c := &candidates[i]
		overlap := c.PathwayOverlap
		novelty := c.NoveltyScore

		in := ScoringInput{
			Phase:               c.Phase,
			HasClinicalEvidence: c.HasClinicalEvidence,
			OpenTargetsScore:    c.OpenTargetsScore,
			EvidenceCount:       c.EvidenceCount,
			PathwayOverlap:      &overlap,
			HasKnownMechanism:   c.MechanismOfAction != "" && c.MechanismOfAction != "Unknown mechanism",
			RepurposingNovelty:  &novelty,
			OriginalIndication:  c.OriginalIndication,
		}
		c.Scores = e.Score(in)
	}

	e.logger.WithField("count", len(candidates)).Info("Scored candidates")
	return candidates
}
