package service

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestGraphQLDiseaseID(t *testing.T) {
	assert.Equal(t, "EFO_0000270", GraphQLDiseaseID("EFO:0000270"))
	assert.Equal(t, "MONDO_0007254", GraphQLDiseaseID("MONDO:0007254"))
	assert.Equal(t, "", GraphQLDiseaseID(""))
}

func TestMinMaxNormalize(t *testing.T) {
	out := minMaxNormalize([]float64{2, 4, 6})
	require.Len(t, out, 3)
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 0.5, out[1])
	assert.Equal(t, 1.0, out[2])

	// Constant input normalizes to all zeros, not NaN
	out = minMaxNormalize([]float64{3, 3, 3})
	assert.Equal(t, []float64{0, 0, 0}, out)

	assert.Nil(t, minMaxNormalize(nil))
}

func newAssociation(symbol string, score float64, biotype string, datatypes int, tractLabel string) external.TargetAssociation {
	var row external.TargetAssociation
	row.Target.ID = "ENSG_" + symbol
	row.Target.ApprovedSymbol = symbol
	row.Target.Biotype = biotype
	row.Score = score
	for i := 0; i < datatypes; i++ {
		row.DatatypeScores = append(row.DatatypeScores, struct {
			ID    string  `json:"id"`
			Score float64 `json:"score"`
		}{ID: "dt", Score: 0.5})
	}
	if tractLabel != "" {
		row.Target.Tractability = append(row.Target.Tractability, struct {
			Label    string `json:"label"`
			Modality string `json:"modality"`
			Value    bool   `json:"value"`
		}{Label: tractLabel, Modality: "SM", Value: true})
	}
	return row
}

func TestTractabilityScore(t *testing.T) {
	tests := []struct {
		label string
		want  float64
	}{
		{"Approved Drug", 1.0},
		{"Advanced Clinical", 0.7},
		{"Phase 1 Clinical", 0.7},
		{"Discovery Precedence", 0.4},
		{"Predicted Tractable", 0.2},
		{"", 0.0},
	}
	for _, tt := range tests {
		row := newAssociation("X", 0.5, "protein_coding", 1, tt.label)
		assert.Equal(t, tt.want, tractabilityScore(row), tt.label)
	}
}

func TestTractabilityScore_IgnoresOtherModalities(t *testing.T) {
	var row external.TargetAssociation
	row.Target.Tractability = append(row.Target.Tractability, struct {
		Label    string `json:"label"`
		Modality string `json:"modality"`
		Value    bool   `json:"value"`
	}{Label: "Approved Drug", Modality: "AB", Value: true})
	assert.Equal(t, 0.0, tractabilityScore(row))
}

func TestScoreAssociations_CompositeOrdering(t *testing.T) {
	rows := []external.TargetAssociation{
		newAssociation("STRONG", 0.9, "protein_coding", 4, "Approved Drug"),
		newAssociation("MEDIUM", 0.5, "protein_coding", 2, "Discovery Precedence"),
		newAssociation("WEAK", 0.1, "protein_coding", 1, ""),
	}

	targets := scoreAssociations(rows)
	require.Len(t, targets, 3)

	assert.Equal(t, "STRONG", targets[0].Symbol)
	assert.InDelta(t, 1.0, targets[0].CompositeScore, 1e-9)
	assert.Equal(t, "WEAK", targets[2].Symbol)
	assert.InDelta(t, 0.0, targets[2].CompositeScore, 1e-9)
	assert.Greater(t, targets[0].CompositeScore, targets[1].CompositeScore)
	assert.Greater(t, targets[1].CompositeScore, targets[2].CompositeScore)
}

func TestSelectTopCandidates_FiltersAndBounds(t *testing.T) {
	discovery := &TargetDiscovery{
		logger: discardLogger(),
		config: domain.PipelineConfig{MinTargets: 2, MaxTargets: 3, TopPercent: 50.0},
	}

	targets := []domain.Target{
		{Symbol: "A", Biotype: "protein_coding", OpenTargetsScore: 0.9, CompositeScore: 0.9},
		{Symbol: "B", Biotype: "lncRNA", OpenTargetsScore: 0.8, CompositeScore: 0.8},
		{Symbol: "C", Biotype: "protein_coding", OpenTargetsScore: 0.7, CompositeScore: 0.7},
		{Symbol: "D", Biotype: "protein_coding", OpenTargetsScore: 0.0, CompositeScore: 0.6},
		{Symbol: "E", Biotype: "protein_coding", OpenTargetsScore: 0.5, CompositeScore: 0.5},
		{Symbol: "F", Biotype: "protein_coding", OpenTargetsScore: 0.4, CompositeScore: 0.4},
	}

	selected := discovery.selectTopCandidates(targets)

	// Top 50% = 3 rows considered; lncRNA and zero-score rows dropped
	symbols := make([]string, 0, len(selected))
	for _, target := range selected {
		symbols = append(symbols, target.Symbol)
	}
	assert.Equal(t, []string{"A", "C"}, symbols)
}

func TestSelectTopCandidates_PercentileWindowOnDefaultScale(t *testing.T) {
	discovery := &TargetDiscovery{
		logger: discardLogger(),
		config: domain.PipelineConfig{MinTargets: 10, MaxTargets: 30, TopPercent: 10.0},
	}

	// 200 rows; the entire top decile is non-coding, so nothing below it
	// may leak into the selection.
	var targets []domain.Target
	for i := 0; i < 200; i++ {
		biotype := "protein_coding"
		if i < 20 {
			biotype = "lncRNA"
		}
		targets = append(targets, domain.Target{
			Symbol: fmt.Sprintf("G%03d", i), Biotype: biotype,
			OpenTargetsScore: 0.5, CompositeScore: float64(200 - i),
		})
	}

	selected := discovery.selectTopCandidates(targets)
	assert.Empty(t, selected)
}

func TestSelectTopCandidates_MaxTargetsCap(t *testing.T) {
	discovery := &TargetDiscovery{
		logger: discardLogger(),
		config: domain.PipelineConfig{MinTargets: 10, MaxTargets: 2, TopPercent: 100.0},
	}

	var targets []domain.Target
	for i := 0; i < 5; i++ {
		targets = append(targets, domain.Target{
			Symbol: string(rune('A' + i)), Biotype: "protein_coding",
			OpenTargetsScore: 0.5, CompositeScore: float64(5 - i),
		})
	}

	selected := discovery.selectTopCandidates(targets)
	assert.Len(t, selected, 2)
}

func TestSafetyNet(t *testing.T) {
	var targets []domain.Target
	for i := 0; i < 12; i++ {
		targets = append(targets, domain.Target{Symbol: string(rune('A' + i))})
	}

	kept := safetyNet(targets)
	assert.Len(t, kept, 6)
	for _, target := range kept {
		assert.True(t, target.SafetyNet)
	}

	// Small lists keep at least five
	kept = safetyNet(targets[:6])
	assert.Len(t, kept, 5)

	// Tiny lists are kept whole
	kept = safetyNet(targets[:3])
	assert.Len(t, kept, 3)

	assert.Nil(t, safetyNet(nil))
}
