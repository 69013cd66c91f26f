package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

func enrichmentConfig(baseURL string) domain.APIClientConfig {
	return domain.APIClientConfig{BaseURL: baseURL, Timeout: 2 * time.Second, RetryCount: 1}
}

func dgidbServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"genes": map[string]interface{}{
					"nodes": []map[string]interface{}{
						{
							"name":      "JAK1",
							"conceptId": "hgnc:6190",
							"interactions": []map[string]interface{}{
								{
									"interactionScore": 1.2,
									"interactionTypes": []map[string]interface{}{
										{"type": "inhibitor", "directionality": "INHIBITORY"},
									},
									"drug": map[string]interface{}{
										"name":     "TOFACITINIB",
										"approved": true,
									},
									"publications": []map[string]interface{}{
										{"pmid": 1}, {"pmid": 2},
									},
								},
							},
						},
					},
				},
			},
		})
	}))
}

func stringServer(t *testing.T, edgesByGene map[string][]map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gene := r.Form.Get("identifiers")
		json.NewEncoder(w).Encode(edgesByGene[gene])
	}))
}

func TestConfirmWithDGIdb_BoostsMatchingCandidate(t *testing.T) {
	server := dgidbServer(t)
	defer server.Close()
	dgidb := external.NewDGIdbClient(enrichmentConfig(server.URL), nil, discardLogger())
	enricher := NewCandidateEnricher(discardLogger(), dgidb, nil)

	candidates := []domain.RepurposingCandidate{
		{DrugName: "Tofacitinib", MolecularTarget: "JAK1", MechanisticConf: 0.5, EvidenceCount: 1},
		{DrugName: "UNRELATED", MolecularTarget: "EGFR", MechanisticConf: 0.5},
	}

	out := enricher.confirmWithDGIdb(context.Background(), candidates, []string{"JAK1"})
	require.Len(t, out, 2)

	boosted := out[0]
	assert.InDelta(t, 0.8, boosted.MechanisticConf, 1e-9)
	assert.Equal(t, 3, boosted.EvidenceCount)
	assert.True(t, boosted.HasClinicalEvidence)
	assert.Equal(t, "inhibitor of JAK1 (DGIdb)", boosted.MechanismOfAction)

	// Non-matching candidate untouched
	assert.InDelta(t, 0.5, out[1].MechanisticConf, 1e-9)
	assert.False(t, out[1].HasClinicalEvidence)
}

func TestConfirmWithDGIdb_KeepsExistingMechanism(t *testing.T) {
	server := dgidbServer(t)
	defer server.Close()
	dgidb := external.NewDGIdbClient(enrichmentConfig(server.URL), nil, discardLogger())
	enricher := NewCandidateEnricher(discardLogger(), dgidb, nil)

	candidates := []domain.RepurposingCandidate{
		{DrugName: "TOFACITINIB", MechanismOfAction: "JAK inhibitor"},
	}

	out := enricher.confirmWithDGIdb(context.Background(), candidates, []string{"JAK1"})
	assert.Equal(t, "JAK inhibitor", out[0].MechanismOfAction)
}

func TestConfirmWithDGIdb_FailureLeavesCandidatesUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()
	dgidb := external.NewDGIdbClient(enrichmentConfig(server.URL), nil, discardLogger())
	enricher := NewCandidateEnricher(discardLogger(), dgidb, nil)

	candidates := []domain.RepurposingCandidate{{DrugName: "TOFACITINIB", MechanisticConf: 0.4}}
	out := enricher.confirmWithDGIdb(context.Background(), candidates, []string{"JAK1"})
	assert.InDelta(t, 0.4, out[0].MechanisticConf, 1e-9)
}

func TestCommonInteractors_SharedPartnersOnly(t *testing.T) {
	server := stringServer(t, map[string][]map[string]interface{}{
		"JAK1": {
			{"preferredName_A": "JAK1", "preferredName_B": "STAT1", "score": 0.95, "escore": 0.8},
			{"preferredName_A": "JAK1", "preferredName_B": "SOCS1", "score": 0.90},
		},
		"JAK2": {
			{"preferredName_A": "JAK2", "preferredName_B": "STAT1", "score": 0.85, "escore": 0.7},
		},
	})
	defer server.Close()
	stringdb := external.NewStringDBClient(enrichmentConfig(server.URL), nil, discardLogger())
	enricher := NewCandidateEnricher(discardLogger(), nil, stringdb)

	common := enricher.CommonInteractors(context.Background(), []string{"JAK1", "JAK2"})
	require.Len(t, common, 1)
	assert.Equal(t, "STAT1", common[0].Protein)
	assert.Equal(t, 2, common[0].Count)
	assert.ElementsMatch(t, []string{"JAK1", "JAK2"}, common[0].InteractsWith)
	assert.InDelta(t, 0.9, common[0].AvgScore, 1e-9)
}

func TestAttachNetworkBiomarkers(t *testing.T) {
	candidates := []domain.RepurposingCandidate{
		{DrugName: "A", MolecularTarget: "JAK1", Biomarkers: []string{"CRP"}},
		{DrugName: "B", MolecularTarget: "EGFR"},
	}
	interactors := []CommonInteractor{
		{Protein: "STAT1", InteractsWith: []string{"JAK1", "JAK2"}, Count: 2},
	}

	out := attachNetworkBiomarkers(candidates, interactors)
	assert.Equal(t, []string{"CRP", "STAT1 levels (interaction network hub)"}, out[0].Biomarkers)
	assert.Empty(t, out[1].Biomarkers)
}

func TestTargetSymbols_CapAndSkipEmpty(t *testing.T) {
	targets := []domain.Target{{Symbol: "A"}, {Symbol: ""}, {Symbol: "B"}, {Symbol: "C"}}
	assert.Equal(t, []string{"A", "B"}, targetSymbols(targets, 2))
}

func TestExcludeKnownDrugs(t *testing.T) {
	candidates := []domain.RepurposingCandidate{
		{DrugID: "CHEMBL1"}, {DrugID: "CHEMBL2"}, {DrugID: "CHEMBL3"},
	}
	known := map[string]struct{}{"CHEMBL2": {}}

	kept, excluded := excludeKnownDrugs(candidates, known)
	assert.Equal(t, 1, excluded)
	require.Len(t, kept, 2)
	assert.Equal(t, "CHEMBL1", kept[0].DrugID)
	assert.Equal(t, "CHEMBL3", kept[1].DrugID)
}
