package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-repurposing-server/pkg/external"
)

func TestSelectBestDoc_ExactLabelWins(t *testing.T) {
	docs := []external.OntologyDoc{
		{Label: "breast carcinoma", OboID: "EFO:0000305", OntologyName: "efo", Score: 99},
		{Label: "Breast Cancer", OboID: "MONDO:0007254", OntologyName: "mondo", Score: 10},
	}

	best := SelectBestDoc(docs, "breast cancer")
	require.NotNil(t, best)
	assert.Equal(t, "MONDO:0007254", best.OboID)
}

func TestSelectBestDoc_SynonymMatch(t *testing.T) {
	docs := []external.OntologyDoc{
		{Label: "malignant neoplasm of lung", Synonyms: []string{"lung cancer"}, OboID: "EFO:0001071", OntologyName: "efo", Score: 5},
		{Label: "lung disease", OboID: "EFO:0003818", OntologyName: "efo", Score: 50},
	}

	best := SelectBestDoc(docs, "lung cancer")
	require.NotNil(t, best)
	assert.Equal(t, "EFO:0001071", best.OboID)
}

func TestSelectBestDoc_NormalizationHandlesApostrophes(t *testing.T) {
	docs := []external.OntologyDoc{
		{Label: "Alzheimer's disease", OboID: "MONDO:0004975", OntologyName: "mondo", Score: 1},
	}

	best := SelectBestDoc(docs, "alzheimers disease")
	require.NotNil(t, best)
	assert.Equal(t, "MONDO:0004975", best.OboID)
}

func TestSelectBestDoc_FuzzyAboveThreshold(t *testing.T) {
	docs := []external.OntologyDoc{
		{Label: "pancreatic carcinoma", OboID: "EFO:0002618", OntologyName: "efo", Score: 2},
		{Label: "gastric ulcer", OboID: "EFO:0009970", OntologyName: "efo", Score: 90},
	}

	// One transposed word pair still scores well above 0.85
	best := SelectBestDoc(docs, "pancreatic carcinomas")
	require.NotNil(t, best)
	assert.Equal(t, "EFO:0002618", best.OboID)
}

func TestSelectBestDoc_PrefersMondoWhenNoTextMatch(t *testing.T) {
	docs := []external.OntologyDoc{
		{Label: "completely unrelated term", OboID: "EFO:0000001", OntologyName: "efo", Score: 80},
		{Label: "another unrelated term", OboID: "MONDO:0000002", OntologyName: "mondo", Score: 20},
		{Label: "third unrelated term", OboID: "MONDO:0000003", OntologyName: "mondo", Score: 40},
	}

	best := SelectBestDoc(docs, "xyzzy syndrome")
	require.NotNil(t, best)
	assert.Equal(t, "MONDO:0000003", best.OboID)
}

func TestSelectBestDoc_HighestScoreFallback(t *testing.T) {
	docs := []external.OntologyDoc{
		{Label: "term one", OboID: "EFO:1", OntologyName: "efo", Score: 10},
		{Label: "term two", OboID: "EFO:2", OntologyName: "efo", Score: 30},
	}

	best := SelectBestDoc(docs, "no such disease")
	require.NotNil(t, best)
	assert.Equal(t, "EFO:2", best.OboID)
}

func TestSelectBestDoc_EmptyInput(t *testing.T) {
	assert.Nil(t, SelectBestDoc(nil, "anything"))
}

func TestNormalizeTerm(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alzheimer's Disease", "alzheimers disease"},
		{"non-small-cell  lung   cancer", "nonsmallcell lung cancer"},
		{"  Crohn's ", "crohns"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeTerm(tt.in))
	}
}

func TestSimilarityRatio(t *testing.T) {
	assert.Equal(t, 1.0, similarityRatio("abc", "abc"))
	assert.Equal(t, 0.0, similarityRatio("abc", ""))
	assert.Equal(t, 1.0, similarityRatio("", ""))

	// "apple" vs "applet": 10/11
	assert.InDelta(t, 0.909, similarityRatio("apple", "applet"), 0.001)

	assert.Greater(t, similarityRatio("pancreatic cancer", "pancreatic carcinoma"), 0.7)
	assert.Less(t, similarityRatio("diabetes", "glaucoma"), 0.5)
}

func TestExtractDiseaseFlags(t *testing.T) {
	flags := extractDiseaseFlags(
		"A malignant neoplasm arising from breast tissue.",
		[]string{"cancer", "disease of anatomical entity"},
		"http://purl.obolibrary.org/obo/MONDO_0007254",
	)
	assert.True(t, flags.cancer)
	assert.False(t, flags.infectious)
	assert.False(t, flags.rare)

	flags = extractDiseaseFlags(
		"A rare hereditary autoinflammatory condition.",
		nil,
		"http://www.orpha.net/ORDO/Orphanet_342",
	)
	assert.True(t, flags.rare)
	assert.True(t, flags.autoimmune)
	assert.True(t, flags.genetic)
	assert.False(t, flags.cancer)
}
