package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// EvidenceValidator applies the unified validation rules to targets and
// drug candidates. The rules are lenient on purpose: reject only on clear
// disqualifiers, flag everything else for review.
type EvidenceValidator struct {
	logger *logrus.Logger

	minScore           float64
	minEvidenceSources int
}

// NewEvidenceValidator creates a validator with the default thresholds
func NewEvidenceValidator(logger *logrus.Logger) *EvidenceValidator {
	return &EvidenceValidator{
		logger:             logger,
		minScore:           0.2,
		minEvidenceSources: 1,
	}
}

// ValidateTarget judges a target on its association score, evidence
// diversity, and pathway overlap. A negative pathwayOverlap means the
// overlap was not computed.
func (v *EvidenceValidator) ValidateTarget(symbol string, opentargetsScore float64, evidenceCount int, pathwayOverlap float64) *domain.ValidationResult {
	scores := map[string]float64{
		"opentargets_score":  opentargetsScore,
		"evidence_diversity": float64(evidenceCount),
	}

	if opentargetsScore < v.minScore {
		return &domain.ValidationResult{
			Decision:   domain.DecisionReject,
			Confidence: 0.9,
			Reasoning: fmt.Sprintf("Open Targets score (%.3f) below threshold (%.1f)",
				opentargetsScore, v.minScore),
			EvidenceScores: scores,
			Flags:          []string{"low_score"},
		}
	}

	var flags []string
	if evidenceCount < v.minEvidenceSources {
		flags = append(flags, "single_source")
	}
	if pathwayOverlap >= 0 {
		scores["pathway_overlap"] = pathwayOverlap
		if pathwayOverlap < 0.05 {
			flags = append(flags, "low_pathway_overlap")
		}
	}

	confidence := opentargetsScore * 1.2
	if confidence > 1 {
		confidence = 1
	}
	if evidenceCount >= 3 {
		confidence = capAt(confidence+0.1, 1)
	}
	if pathwayOverlap > 0.1 {
		confidence = capAt(confidence+0.1, 1)
	}

	decision := domain.DecisionKeep
	reasoning := fmt.Sprintf("Target %s validated with confidence %.2f", symbol, confidence)
	if confidence < 0.5 {
		decision = domain.DecisionReview
		reasoning = fmt.Sprintf("Target %s passes filters but has low confidence (%.2f)", symbol, confidence)
	}

	return &domain.ValidationResult{
		Decision:       decision,
		Confidence:     confidence,
		Reasoning:      reasoning,
		EvidenceScores: scores,
		Flags:          flags,
	}
}

// ValidateDrug judges a drug candidate on its clinical maturity. Safety
// flags are recorded but never cause rejection at this stage.
func (v *EvidenceValidator) ValidateDrug(drugName string, phase int, hasClinicalEvidence, mechanismKnown bool, safetyFlags []string) *domain.ValidationResult {
	scores := map[string]float64{
		"phase":             float64(phase),
		"clinical_evidence": boolScore(hasClinicalEvidence, 1.0, 0.0),
		"mechanism_known":   boolScore(mechanismKnown, 1.0, 0.5),
	}

	if phase < 1 && !hasClinicalEvidence {
		return &domain.ValidationResult{
			Decision:       domain.DecisionReject,
			Confidence:     0.9,
			Reasoning:      fmt.Sprintf("Drug %s is preclinical with no clinical evidence", drugName),
			EvidenceScores: scores,
			Flags:          []string{"preclinical", "no_evidence"},
		}
	}

	flags := append([]string(nil), safetyFlags...)
	if !hasClinicalEvidence {
		flags = append(flags, "no_clinical_evidence")
	}
	if !mechanismKnown {
		flags = append(flags, "unknown_mechanism")
	}

	confidence := 0.5 + float64(phase)*0.1
	if hasClinicalEvidence {
		confidence += 0.2
	}
	if mechanismKnown {
		confidence += 0.1
	}
	confidence = capAt(confidence, 1)

	var decision domain.ValidationDecision
	var reasoning string
	switch {
	case confidence < 0.3:
		decision = domain.DecisionReject
		reasoning = fmt.Sprintf("Drug %s has insufficient evidence (confidence %.2f)", drugName, confidence)
	case confidence < 0.6:
		decision = domain.DecisionReview
		reasoning = fmt.Sprintf("Drug %s flagged for review (confidence %.2f)", drugName, confidence)
	default:
		decision = domain.DecisionKeep
		reasoning = fmt.Sprintf("Drug %s validated with confidence %.2f", drugName, confidence)
	}

	return &domain.ValidationResult{
		Decision:       decision,
		Confidence:     confidence,
		Reasoning:      reasoning,
		EvidenceScores: scores,
		Flags:          flags,
	}
}

// ValidateCandidates annotates each candidate with a drug validation verdict
// and partitions by decision. Rejected candidates are dropped from the kept
// list but counted for the funnel stats.
func (v *EvidenceValidator) ValidateCandidates(candidates []domain.RepurposingCandidate) (kept []domain.RepurposingCandidate, rejected, review int) {
	for i := range candidates {
		c := &candidates[i]
		result := v.ValidateDrug(
			c.DrugName,
			c.Phase,
			c.HasClinicalEvidence,
			c.MechanismOfAction != "" && c.MechanismOfAction != "Unknown mechanism",
			c.SafetyConcerns,
		)
		c.Validation = result

		switch result.Decision {
		case domain.DecisionReject:
			rejected++
		case domain.DecisionReview:
			review++
			kept = append(kept, *c)
		default:
			kept = append(kept, *c)
		}
	}

	v.logger.WithFields(logrus.Fields{
		"kept":     len(kept),
		"rejected": rejected,
		"review":   review,
	}).Info("Candidate validation complete")
	return kept, rejected, review
}

func capAt(value, limit float64) float64 {
	if value > limit {
		return limit
	}
	return value
}

func boolScore(condition bool, whenTrue, whenFalse float64) float64 {
	if condition {
		return whenTrue
	}
	return whenFalse
}
