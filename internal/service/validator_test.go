package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-repurposing-server/internal/domain"
)

func TestValidateTarget_RejectsLowScore(t *testing.T) {
	v := NewEvidenceValidator(discardLogger())

	result := v.ValidateTarget("GENE1", 0.15, 3, 0.2)
	assert.Equal(t, domain.DecisionReject, result.Decision)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Contains(t, result.Flags, "low_score")
}

func TestValidateTarget_KeepWithStrongEvidence(t *testing.T) {
	v := NewEvidenceValidator(discardLogger())

	result := v.ValidateTarget("TP53", 0.75, 5, 0.15)
	assert.Equal(t, domain.DecisionKeep, result.Decision)
	// min(0.75*1.2, 1) + 0.1 evidence + 0.1 pathway = 1.0 capped
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	assert.Empty(t, result.Flags)
}

func TestValidateTarget_ReviewOnLowConfidence(t *testing.T) {
	v := NewEvidenceValidator(discardLogger())

	// 0.25*1.2 = 0.30, no boosts
	result := v.ValidateTarget("GENE2", 0.25, 1, 0.08)
	assert.Equal(t, domain.DecisionReview, result.Decision)
	assert.InDelta(t, 0.30, result.Confidence, 1e-9)
}

func TestValidateTarget_Flags(t *testing.T) {
	v := NewEvidenceValidator(discardLogger())

	result := v.ValidateTarget("GENE3", 0.6, 0, 0.02)
	assert.Contains(t, result.Flags, "single_source")
	assert.Contains(t, result.Flags, "low_pathway_overlap")

	// Negative overlap means not computed: no pathway flag
	result = v.ValidateTarget("GENE4", 0.6, 2, -1)
	assert.NotContains(t, result.Flags, "low_pathway_overlap")
	_, recorded := result.EvidenceScores["pathway_overlap"]
	assert.False(t, recorded)
}

func TestValidateDrug_RejectsPreclinicalWithoutEvidence(t *testing.T) {
	v := NewEvidenceValidator(discardLogger())

	result := v.ValidateDrug("compound-x", 0, false, true, nil)
	assert.Equal(t, domain.DecisionReject, result.Decision)
	assert.Contains(t, result.Flags, "preclinical")
	assert.Contains(t, result.Flags, "no_evidence")
}

func TestValidateDrug_ConfidenceLadder(t *testing.T) {
	v := NewEvidenceValidator(discardLogger())

	// 0.5 + 4*0.1 + 0.2 + 0.1 = 1.2 capped at 1.0
	result := v.ValidateDrug("metformin", 4, true, true, nil)
	assert.Equal(t, domain.DecisionKeep, result.Decision)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)

	// 0.5 + 0.1 = 0.6 exactly: KEEP
	result = v.ValidateDrug("drug-b", 1, false, false, nil)
	assert.Equal(t, domain.DecisionKeep, result.Decision)
	assert.Contains(t, result.Flags, "no_clinical_evidence")
	assert.Contains(t, result.Flags, "unknown_mechanism")

	// Phase 0 with clinical evidence: 0.5 + 0.2 + 0.1 = 0.8 KEEP, no reject
	result = v.ValidateDrug("drug-c", 0, true, true, nil)
	assert.Equal(t, domain.DecisionKeep, result.Decision)
}

func TestValidateDrug_SafetyFlagsCarryThrough(t *testing.T) {
	v := NewEvidenceValidator(discardLogger())

	result := v.ValidateDrug("drug-d", 3, true, true, []string{"black_box"})
	assert.Contains(t, result.Flags, "black_box")
	// Safety flags never cause rejection here
	assert.NotEqual(t, domain.DecisionReject, result.Decision)
}

func TestValidateCandidates_Partition(t *testing.T) {
	v := NewEvidenceValidator(discardLogger())

	candidates := []domain.RepurposingCandidate{
		{DrugName: "approved", Phase: 4, HasClinicalEvidence: true, MechanismOfAction: "inhibitor"},
		{DrugName: "preclinical", Phase: 0, HasClinicalEvidence: false, MechanismOfAction: "inhibitor"},
		{DrugName: "early", Phase: 1, HasClinicalEvidence: false, MechanismOfAction: "Unknown mechanism"},
	}

	kept, rejected, review := v.ValidateCandidates(candidates)

	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, review)
	require.Len(t, kept, 2)
	for _, c := range kept {
		require.NotNil(t, c.Validation)
		assert.NotEqual(t, domain.DecisionReject, c.Validation.Decision)
	}
}
