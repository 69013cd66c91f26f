package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drug-repurposing-server/internal/domain"
)

func TestDiseasePathways_SortedDedupedUnion(t *testing.T) {
	svc := NewPathwayService(discardLogger(), nil, nil)
	svc.pathwayCache.Add("JAK2", []string{"R-HSA-9", "R-HSA-1"})
	svc.pathwayCache.Add("JAK1", []string{"R-HSA-5", "R-HSA-1"})

	targets := []domain.Target{{Symbol: "JAK2"}, {Symbol: "JAK1"}}

	got := svc.DiseasePathways(context.Background(), targets)
	assert.Equal(t, []string{"R-HSA-1", "R-HSA-5", "R-HSA-9"}, got)

	// Same union regardless of target order
	reversed := svc.DiseasePathways(context.Background(), []domain.Target{targets[1], targets[0]})
	assert.Equal(t, got, reversed)
}

func TestFindPathwayOverlap(t *testing.T) {
	disease := []string{"R-HSA-1", "R-HSA-2", "R-HSA-3", "R-HSA-4"}
	target := []string{"R-HSA-3", "R-HSA-4", "R-HSA-5"}

	overlap := FindPathwayOverlap(disease, target)

	assert.Equal(t, 2, overlap.OverlapCount)
	assert.ElementsMatch(t, []string{"R-HSA-3", "R-HSA-4"}, overlap.OverlapPathways)
	// |A∩B|=2, |A∪B|=5
	assert.InDelta(t, 0.4, overlap.Jaccard, 1e-9)
	assert.True(t, overlap.Relevant)
}

func TestFindPathwayOverlap_Disjoint(t *testing.T) {
	overlap := FindPathwayOverlap([]string{"R-HSA-1"}, []string{"R-HSA-2"})
	assert.Equal(t, 0, overlap.OverlapCount)
	assert.Zero(t, overlap.Jaccard)
	assert.False(t, overlap.Relevant)
}

func TestFindPathwayOverlap_BothEmpty(t *testing.T) {
	overlap := FindPathwayOverlap(nil, nil)
	assert.Zero(t, overlap.Jaccard)
	assert.False(t, overlap.Relevant)
}

func TestFindPathwayOverlap_DuplicatesDoNotInflate(t *testing.T) {
	disease := []string{"R-HSA-1", "R-HSA-2"}
	target := []string{"R-HSA-1", "R-HSA-1", "R-HSA-1"}

	overlap := FindPathwayOverlap(disease, target)
	assert.Equal(t, 1, overlap.OverlapCount)
	assert.InDelta(t, 0.5, overlap.Jaccard, 1e-9)
}

func TestFindPathwayOverlap_Identical(t *testing.T) {
	ids := []string{"R-HSA-1", "R-HSA-2"}
	overlap := FindPathwayOverlap(ids, ids)
	assert.InDelta(t, 1.0, overlap.Jaccard, 1e-9)
}
