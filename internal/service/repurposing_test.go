package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drug-repurposing-server/internal/domain"
)

func TestTreatsDisease(t *testing.T) {
	tests := []struct {
		name       string
		indication string
		disease    string
		want       bool
	}{
		{"substring match", "metastatic breast cancer", "breast cancer", true},
		{"case insensitive", "Breast Cancer", "breast cancer", true},
		{"two word overlap", "cancer of the breast tissue", "breast cancer progression", true},
		{"one word overlap only", "pancreatic cancer", "breast cancer", false},
		{"short words ignored", "the and for cancer", "our the cancer", false},
		{"unrelated", "type 2 diabetes", "breast cancer", false},
		{"empty indication kept", "", "breast cancer", false},
		{"unknown indication kept", "Unknown indication", "breast cancer", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TreatsDisease(tt.indication, tt.disease))
		})
	}
}

func TestWordOverlap(t *testing.T) {
	assert.Equal(t, 2, wordOverlap("chronic kidney disease", "kidney disease progression"))
	assert.Equal(t, 0, wordOverlap("a b c", "a b c"))
	assert.Equal(t, 1, wordOverlap("lung cancer", "cancer cancer cancer"))
}

func TestNormalizePhase(t *testing.T) {
	tests := []struct {
		drugPhase, rowPhase float64
		want                int
	}{
		{4, 2, 4},
		{1, 3, 3},
		{-1, 0, 0},
		{6, 0, 4},
		{0.5, 0, 0},
		{2.5, 0, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePhase(tt.drugPhase, tt.rowPhase))
	}
}

func TestMechanisticConfidence(t *testing.T) {
	// Full marks: overlap 1.0, target 1.0, phase 4, known mechanism
	assert.InDelta(t, 1.0, mechanisticConfidence(1.0, 1.0, 4, true), 1e-9)

	// 0.4*0.5 + 0.3*0.8 + 0.2*0.5 + 0.1
	assert.InDelta(t, 0.64, mechanisticConfidence(0.5, 0.8, 2, true), 1e-9)

	// Unknown mechanism contributes half
	known := mechanisticConfidence(0.2, 0.5, 1, true)
	unknown := mechanisticConfidence(0.2, 0.5, 1, false)
	assert.InDelta(t, 0.05, known-unknown, 1e-9)

	// Target scores above 1 are clamped
	assert.Equal(t,
		mechanisticConfidence(0.3, 1.0, 2, true),
		mechanisticConfidence(0.3, 1.7, 2, true))
}

func TestAssessFeasibility(t *testing.T) {
	// Approved, strong mechanism, clean safety: 40+40+20 = 100
	assert.Equal(t, domain.FeasibilityHigh, assessFeasibility(4, 0.5, 0))

	// Phase 2, moderate mechanism, some concerns: 20+25+10 = 55
	assert.Equal(t, domain.FeasibilityMedium, assessFeasibility(2, 0.25, 1))

	// Preclinical, weak mechanism, many concerns: 10+10+0 = 20
	assert.Equal(t, domain.FeasibilityLow, assessFeasibility(0, 0.05, 4))

	// Boundary: exactly 70 is HIGH (30+40+0)
	assert.Equal(t, domain.FeasibilityHigh, assessFeasibility(3, 0.4, 3))
	// Boundary: exactly 40 is MEDIUM (10+10+20)
	assert.Equal(t, domain.FeasibilityMedium, assessFeasibility(1, 0.1, 0))
}

func TestExplainMechanism(t *testing.T) {
	shared := []string{"R-HSA-109582", "R-HSA-1640170", "R-HSA-168256"}

	explanation, names := explainMechanism("Metformin", "PRKAA1", "AMPK activator", "breast cancer", shared, 0.42)
	assert.Contains(t, explanation, "Metformin modulates PRKAA1 via AMPK activator")
	assert.Contains(t, explanation, "3 shared biological pathways")
	assert.Contains(t, explanation, "42% pathway overlap")
	assert.Contains(t, explanation, "strong mechanistic relevance")
	assert.Len(t, names, 3)
	assert.Equal(t, "109582", names[0])

	explanation, _ = explainMechanism("DrugX", "GENE1", "inhibitor", "lupus", nil, 0.05)
	assert.Contains(t, explanation, "pathway overlap is limited (5%)")
	assert.Contains(t, explanation, "novel therapeutic angle")
}

func TestDesignExperiments_PhaseGating(t *testing.T) {
	inVitro, inVivo, biomarkers := designExperiments("Metformin", "PRKAA1", "breast cancer", 4)
	assert.Len(t, inVitro, 5)
	assert.Contains(t, inVitro[4], "Combination studies")
	assert.Len(t, inVivo, 4)
	assert.Contains(t, inVivo[0], "xenograft")
	assert.Len(t, biomarkers, 4)

	inVitro, inVivo, _ = designExperiments("NovelDrug", "GENE1", "lupus", 1)
	assert.Len(t, inVitro, 4)
	assert.Len(t, inVivo, 2)
	assert.Contains(t, inVivo[0], "Preclinical safety")
}

func TestAssessSafety(t *testing.T) {
	concerns, _, pkNotes := assessSafety("Small molecule", "type 2 diabetes", "breast cancer", 4)
	assert.Contains(t, strings.Join(concerns, " "), "metabolic disturbances")
	assert.Contains(t, strings.Join(pkNotes, " "), "Approved drug with known PK profile")
	assert.Contains(t, strings.Join(pkNotes, " "), "predictable PK")

	concerns, _, pkNotes = assessSafety("Antibody", "rheumatoid arthritis", "melanoma", 1)
	assert.Contains(t, strings.Join(concerns, " "), "Limited safety data")
	assert.Contains(t, strings.Join(concerns, " "), "immunogenicity")
	assert.Contains(t, strings.Join(pkNotes, " "), "not well characterized")

	_, contraindications, _ := assessSafety("Small molecule", "autoimmune hepatitis", "bacterial infection", 3)
	assert.Contains(t, strings.Join(contraindications, " "), "Immunosuppression contraindicated")
}

func TestCandidateRankKey_Ordering(t *testing.T) {
	strong := domain.RepurposingCandidate{
		MechanisticConf: 0.9, PathwayOverlap: 0.5, OpenTargetsScore: 0.8, Phase: 4,
	}
	weak := domain.RepurposingCandidate{
		MechanisticConf: 0.2, PathwayOverlap: 0.1, OpenTargetsScore: 0.3, Phase: 1,
	}
	assert.Greater(t, candidateRankKey(strong), candidateRankKey(weak))

	// 0.35*0.9 + 0.2*0.5 + 0.35*0.8 + 0.1*1.0
	assert.InDelta(t, 0.795, candidateRankKey(strong), 1e-9)
}
