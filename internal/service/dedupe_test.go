package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-repurposing-server/internal/domain"
)

func TestDeduplicate_MergesByDrugID(t *testing.T) {
	d := NewDrugDeduplicator(discardLogger(), nil)

	candidates := []domain.RepurposingCandidate{
		{
			DrugID: "CHEMBL1431", DrugName: "METFORMIN", MolecularTarget: "PRKAA1",
			MechanisticConf: 0.8, OpenTargetsScore: 0.6, Phase: 4,
			SharedPathways: []string{"R-HSA-1", "R-HSA-2"},
		},
		{
			DrugID: "CHEMBL1431", DrugName: "METFORMIN", MolecularTarget: "PRKAA2",
			MechanisticConf: 0.5, OpenTargetsScore: 0.9, Phase: 2,
			HasClinicalEvidence: true,
			SharedPathways:      []string{"R-HSA-2", "R-HSA-3"},
		},
		{
			DrugID: "CHEMBL25", DrugName: "ASPIRIN", MolecularTarget: "PTGS2",
			MechanisticConf: 0.4,
		},
	}

	deduped := d.Deduplicate(context.Background(), candidates)
	require.Len(t, deduped, 2)

	merged := deduped[0]
	assert.Equal(t, "CHEMBL1431", merged.DrugID)
	// Base entry is the highest-confidence duplicate
	assert.InDelta(t, 0.8, merged.MechanisticConf, 1e-9)
	// Scores and phase take the maximum across duplicates
	assert.InDelta(t, 0.9, merged.OpenTargetsScore, 1e-9)
	assert.Equal(t, 4, merged.Phase)
	assert.True(t, merged.HasClinicalEvidence)
	// Targets and pathways are unioned
	assert.Equal(t, "PRKAA1, PRKAA2", merged.MolecularTarget)
	assert.ElementsMatch(t, []string{"R-HSA-1", "R-HSA-2", "R-HSA-3"}, merged.SharedPathways)

	assert.Equal(t, "CHEMBL25", deduped[1].DrugID)
}

func TestDeduplicate_PreservesOrderAndSingles(t *testing.T) {
	d := NewDrugDeduplicator(discardLogger(), nil)

	candidates := []domain.RepurposingCandidate{
		{DrugID: "CHEMBL1", DrugName: "A"},
		{DrugID: "CHEMBL2", DrugName: "B"},
	}

	deduped := d.Deduplicate(context.Background(), candidates)
	require.Len(t, deduped, 2)
	assert.Equal(t, "CHEMBL1", deduped[0].DrugID)
	assert.Equal(t, "CHEMBL2", deduped[1].DrugID)
}

func TestDeduplicate_ShortListPassthrough(t *testing.T) {
	d := NewDrugDeduplicator(discardLogger(), nil)

	one := []domain.RepurposingCandidate{{DrugID: "CHEMBL1"}}
	assert.Equal(t, one, d.Deduplicate(context.Background(), one))
	assert.Empty(t, d.Deduplicate(context.Background(), nil))
}

func TestMergeCandidates_HighestConfidenceBase(t *testing.T) {
	group := []domain.RepurposingCandidate{
		{DrugName: "x", MechanisticConf: 0.3, MechanismOfAction: "weak"},
		{DrugName: "x", MechanisticConf: 0.7, MechanismOfAction: "strong"},
	}

	merged := mergeCandidates(group)
	assert.Equal(t, "strong", merged.MechanismOfAction)
	assert.InDelta(t, 0.7, merged.MechanisticConf, 1e-9)
}
