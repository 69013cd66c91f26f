package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/internal/service"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// memStore keeps run state in memory and records every snapshot
type memStore struct {
	meta      *domain.RunMetadata
	state     *domain.RouteAState
	snapshots []domain.Stage
	reports   map[string]string
}

func newMemStore(state *domain.RouteAState) *memStore {
	return &memStore{
		meta: &domain.RunMetadata{
			RunID:      state.RunID,
			Indication: state.Request.Indication,
			Geography:  state.Request.Geography,
			Status:     domain.RunQueued,
		},
		state:   state,
		reports: map[string]string{},
	}
}

func (s *memStore) UpdateMetadata(runID string, mutate func(*domain.RunMetadata)) (*domain.RunMetadata, error) {
	mutate(s.meta)
	return s.meta, nil
}

func (s *memStore) SaveState(state *domain.RouteAState) error {
	s.state = state
	s.snapshots = append(s.snapshots, state.Stage)
	return nil
}

func (s *memStore) LoadState(runID string) (*domain.RouteAState, error) {
	if s.state == nil {
		return nil, domain.ErrRunNotFound
	}
	return s.state, nil
}

func (s *memStore) SaveReport(runID, markdown string) (string, error) {
	s.reports[runID] = markdown
	return "/data/runs/" + runID + "/report.md", nil
}

type stubResolver struct {
	disease *domain.DiseaseContext
	err     error
}

func (r *stubResolver) Resolve(ctx context.Context, name string) (*domain.DiseaseContext, error) {
	return r.disease, r.err
}

type stubDiscovery struct {
	calls    []service.DiscoveryOptions
	outcomes []*service.DiscoveryOutcome
	err      error
}

func (d *stubDiscovery) Discover(ctx context.Context, disease *domain.DiseaseContext, opts service.DiscoveryOptions) (*service.DiscoveryOutcome, error) {
	d.calls = append(d.calls, opts)
	if d.err != nil {
		return nil, d.err
	}
	outcome := d.outcomes[0]
	if len(d.outcomes) > 1 {
		d.outcomes = d.outcomes[1:]
	}
	return outcome, nil
}

type stubIntel struct{ out *domain.WebIntelOutput }

func (s *stubIntel) Gather(ctx context.Context, disease, geography string) *domain.WebIntelOutput {
	return s.out
}

type stubLiterature struct{ out *domain.LiteratureOutput }

func (s *stubLiterature) Review(ctx context.Context, disease string) *domain.LiteratureOutput {
	return s.out
}

type stubTrials struct {
	got []string
	out *domain.TrialsOutput
}

func (s *stubTrials) Collect(ctx context.Context, disease string, candidates []string) *domain.TrialsOutput {
	s.got = candidates
	return s.out
}

type stubPatents struct {
	got []string
	out map[string]domain.PatentOutput
}

func (s *stubPatents) AssessAll(ctx context.Context, candidates []string) map[string]domain.PatentOutput {
	s.got = candidates
	return s.out
}

type stubExim struct {
	got []string
	out map[string]domain.EximOutput
}

func (s *stubExim) AssessAll(ctx context.Context, candidates []string) map[string]domain.EximOutput {
	s.got = candidates
	return s.out
}

type recordingRanker struct{ got []service.RankingInput }

func (r *recordingRanker) Rank(inputs []service.RankingInput, topN int) []domain.RankedCandidate {
	r.got = inputs
	ranked := make([]domain.RankedCandidate, 0, len(inputs))
	for i, in := range inputs {
		ranked = append(ranked, domain.RankedCandidate{
			Rank: i + 1, DrugName: in.Candidate.DrugName, FinalScore: 80 - float64(i),
		})
	}
	return ranked
}

type stubRenderer struct{}

func (stubRenderer) Render(state *domain.RouteAState) string { return "# Report" }

type panickyIntel struct{}

func (panickyIntel) Gather(ctx context.Context, disease, geography string) *domain.WebIntelOutput {
	panic("search backend gone")
}

func resolvedDisease() *domain.DiseaseContext {
	return &domain.DiseaseContext{
		OriginalQuery: "vitiligo", CorrectedName: "Vitiligo",
		EFOID: "EFO_0004208", TherapeuticArea: domain.AreaDermatological,
	}
}

func healthyOutcome(n int) *service.DiscoveryOutcome {
	outcome := &service.DiscoveryOutcome{
		KnownDrugIDs: []string{"CHEMBL999"},
		Stats:        domain.DiscoveryStats{TotalDiscovered: n, FinalCount: n},
	}
	for i := 0; i < n; i++ {
		outcome.Candidates = append(outcome.Candidates, domain.RepurposingCandidate{
			DrugID:   "CHEMBL" + string(rune('1'+i)),
			DrugName: "DRUG" + string(rune('A'+i)),
			DrugType: "Small molecule",
			Phase:    3,
		})
	}
	return outcome
}

func newTestPipeline(store Store, resolver Resolver, discovery Discoverer, intel IntelGatherer,
	trials *stubTrials, patents *stubPatents, exim *stubExim, ranker Ranker) *Pipeline {
	return NewPipeline(discardLogger(), store, resolver, discovery, intel,
		&stubLiterature{out: &domain.LiteratureOutput{}}, trials, patents, exim,
		ranker, nil, stubRenderer{})
}

func TestExecute_HappyPath(t *testing.T) {
	state := domain.NewRouteAState("run-1", domain.RunRequest{Indication: "vitiligo", Geography: "US"})
	store := newMemStore(state)
	discovery := &stubDiscovery{outcomes: []*service.DiscoveryOutcome{healthyOutcome(4)}}
	trials := &stubTrials{out: &domain.TrialsOutput{TotalTrials: 7}}
	patents := &stubPatents{out: map[string]domain.PatentOutput{}}
	exim := &stubExim{out: map[string]domain.EximOutput{}}
	ranker := &recordingRanker{}

	p := newTestPipeline(store, &stubResolver{disease: resolvedDisease()}, discovery,
		&stubIntel{out: &domain.WebIntelOutput{}}, trials, patents, exim, ranker)

	require.NoError(t, p.Execute(context.Background(), "run-1"))

	final := store.state
	assert.Equal(t, domain.RunSucceeded, final.Status)
	assert.Equal(t, domain.StageEnd, final.Stage)
	assert.Len(t, final.Candidates, 4)
	assert.Len(t, final.Ranked, 4)
	assert.Equal(t, "/data/runs/run-1/report.md", final.ReportPath)

	// One discovery pass, default criteria
	require.Len(t, discovery.calls, 1)
	assert.Equal(t, 1, discovery.calls[0].MinPhase)
	assert.True(t, discovery.calls[0].Enrichment)

	// Metadata reflects the finished run
	assert.Equal(t, domain.RunSucceeded, store.meta.Status)
	assert.Equal(t, 4, store.meta.CandidatesFound)
	assert.Equal(t, 7, store.meta.TrialsCount)
	assert.NotNil(t, store.meta.StartedAt)
	assert.NotNil(t, store.meta.CompletedAt)

	// State persisted at every stage boundary through to the end
	assert.Equal(t, domain.StageEnd, store.snapshots[len(store.snapshots)-1])
	assert.GreaterOrEqual(t, len(store.snapshots), 9)
}

func TestExecute_ResolutionFailureFailsRun(t *testing.T) {
	state := domain.NewRouteAState("run-1", domain.RunRequest{Indication: "notadisease", Geography: "US"})
	store := newMemStore(state)
	discovery := &stubDiscovery{outcomes: []*service.DiscoveryOutcome{healthyOutcome(4)}}

	p := newTestPipeline(store, &stubResolver{err: errors.New("no match")}, discovery,
		&stubIntel{out: &domain.WebIntelOutput{}},
		&stubTrials{out: &domain.TrialsOutput{}}, &stubPatents{}, &stubExim{}, &recordingRanker{})

	require.NoError(t, p.Execute(context.Background(), "run-1"))

	assert.Equal(t, domain.RunFailed, store.state.Status)
	assert.Contains(t, store.state.Error, "could not resolve disease")
	assert.Empty(t, discovery.calls)
	assert.Equal(t, domain.RunFailed, store.meta.Status)
}

func TestExecute_ExpandsSearchOnceWhenTooFewCandidates(t *testing.T) {
	state := domain.NewRouteAState("run-1", domain.RunRequest{Indication: "vitiligo", Geography: "US"})
	store := newMemStore(state)
	discovery := &stubDiscovery{outcomes: []*service.DiscoveryOutcome{healthyOutcome(1), healthyOutcome(2)}}
	trials := &stubTrials{out: &domain.TrialsOutput{}}

	p := newTestPipeline(store, &stubResolver{disease: resolvedDisease()}, discovery,
		&stubIntel{out: &domain.WebIntelOutput{}}, trials,
		&stubPatents{}, &stubExim{}, &recordingRanker{})

	require.NoError(t, p.Execute(context.Background(), "run-1"))

	require.Len(t, discovery.calls, 2)
	retry := discovery.calls[1]
	assert.Equal(t, 0, retry.MinPhase)
	assert.Equal(t, expandedTopN, retry.TopN)
	assert.False(t, retry.Enrichment)

	// Second shortfall does not loop; the run completes with what it has
	assert.True(t, store.state.ExpandedSearch)
	assert.Equal(t, domain.RunSucceeded, store.state.Status)
	assert.Len(t, store.state.Candidates, 2)
}

func TestExecute_DiscoveryErrorDegradesToEmpty(t *testing.T) {
	state := domain.NewRouteAState("run-1", domain.RunRequest{Indication: "vitiligo", Geography: "US"})
	store := newMemStore(state)
	discovery := &stubDiscovery{err: errors.New("graph down")}
	trials := &stubTrials{out: &domain.TrialsOutput{}}

	p := newTestPipeline(store, &stubResolver{disease: resolvedDisease()}, discovery,
		&stubIntel{out: &domain.WebIntelOutput{}}, trials,
		&stubPatents{}, &stubExim{}, &recordingRanker{})

	require.NoError(t, p.Execute(context.Background(), "run-1"))

	// First pass and the expanded retry both failed; run still completes
	assert.Len(t, discovery.calls, 2)
	assert.Equal(t, domain.RunSucceeded, store.state.Status)
	assert.Empty(t, store.state.Candidates)
	assert.Contains(t, store.state.Error, "discovery failed")
	assert.Empty(t, trials.got)
}

func TestExecute_StagePanicDoesNotFailRun(t *testing.T) {
	state := domain.NewRouteAState("run-1", domain.RunRequest{Indication: "vitiligo", Geography: "US"})
	store := newMemStore(state)
	discovery := &stubDiscovery{outcomes: []*service.DiscoveryOutcome{healthyOutcome(4)}}

	p := newTestPipeline(store, &stubResolver{disease: resolvedDisease()}, discovery,
		panickyIntel{}, &stubTrials{out: &domain.TrialsOutput{}},
		&stubPatents{}, &stubExim{}, &recordingRanker{})

	require.NoError(t, p.Execute(context.Background(), "run-1"))

	assert.Equal(t, domain.RunSucceeded, store.state.Status)
	assert.Nil(t, store.state.WebIntel)
	assert.Len(t, store.state.Candidates, 4)
}

func TestExecute_AssessmentsLimitedToTopCandidates(t *testing.T) {
	state := domain.NewRouteAState("run-1", domain.RunRequest{Indication: "vitiligo", Geography: "US"})
	store := newMemStore(state)
	discovery := &stubDiscovery{outcomes: []*service.DiscoveryOutcome{healthyOutcome(12)}}
	trials := &stubTrials{out: &domain.TrialsOutput{}}
	patents := &stubPatents{}
	exim := &stubExim{}

	p := newTestPipeline(store, &stubResolver{disease: resolvedDisease()}, discovery,
		&stubIntel{out: &domain.WebIntelOutput{}}, trials, patents, exim, &recordingRanker{})

	require.NoError(t, p.Execute(context.Background(), "run-1"))

	assert.Len(t, trials.got, 12)
	assert.Len(t, patents.got, assessLimit)
	assert.Len(t, exim.got, assessLimit)
}

func TestExecute_StrictFTOExcludesHighRisk(t *testing.T) {
	state := domain.NewRouteAState("run-1", domain.RunRequest{
		Indication: "vitiligo", Geography: "US", StrictFTO: true,
	})
	store := newMemStore(state)
	outcome := healthyOutcome(3)
	discovery := &stubDiscovery{outcomes: []*service.DiscoveryOutcome{outcome}}
	patents := &stubPatents{out: map[string]domain.PatentOutput{
		"DRUGA": {Candidate: "DRUGA", RiskTier: domain.PatentRiskHigh},
		"DRUGB": {Candidate: "DRUGB", RiskTier: domain.PatentRiskLow},
	}}
	ranker := &recordingRanker{}

	p := newTestPipeline(store, &stubResolver{disease: resolvedDisease()}, discovery,
		&stubIntel{out: &domain.WebIntelOutput{}},
		&stubTrials{out: &domain.TrialsOutput{}}, patents, &stubExim{}, ranker)

	require.NoError(t, p.Execute(context.Background(), "run-1"))

	require.Len(t, ranker.got, 2)
	names := []string{ranker.got[0].Candidate.DrugName, ranker.got[1].Candidate.DrugName}
	assert.NotContains(t, names, "DRUGA")
	// LOW risk reads as expired patent for feasibility
	assert.True(t, ranker.got[0].PatentExpired)
}

func TestExecute_TerminalRunIsNoOp(t *testing.T) {
	state := domain.NewRouteAState("run-1", domain.RunRequest{Indication: "vitiligo", Geography: "US"})
	state.Status = domain.RunSucceeded
	store := newMemStore(state)
	discovery := &stubDiscovery{outcomes: []*service.DiscoveryOutcome{healthyOutcome(4)}}

	p := newTestPipeline(store, &stubResolver{disease: resolvedDisease()}, discovery,
		&stubIntel{out: &domain.WebIntelOutput{}},
		&stubTrials{out: &domain.TrialsOutput{}}, &stubPatents{}, &stubExim{}, &recordingRanker{})

	require.NoError(t, p.Execute(context.Background(), "run-1"))
	assert.Empty(t, discovery.calls)
	assert.Empty(t, store.snapshots)
}

func TestExecute_ResumesFromPersistedStage(t *testing.T) {
	state := domain.NewRouteAState("run-1", domain.RunRequest{Indication: "vitiligo", Geography: "US"})
	state.Stage = domain.StageRankSelect
	state.Disease = resolvedDisease()
	state.Candidates = healthyOutcome(2).Candidates
	store := newMemStore(state)
	discovery := &stubDiscovery{outcomes: []*service.DiscoveryOutcome{healthyOutcome(4)}}
	intel := &stubIntel{out: &domain.WebIntelOutput{KeyMarketPlayers: []string{"x"}}}

	p := newTestPipeline(store, &stubResolver{disease: resolvedDisease()}, discovery,
		intel, &stubTrials{out: &domain.TrialsOutput{}}, &stubPatents{}, &stubExim{}, &recordingRanker{})

	require.NoError(t, p.Execute(context.Background(), "run-1"))

	// Earlier stages were not re-run
	assert.Empty(t, discovery.calls)
	assert.Nil(t, store.state.WebIntel)
	assert.Len(t, store.state.Ranked, 2)
	assert.Equal(t, domain.RunSucceeded, store.state.Status)
}

func TestCandidateNames(t *testing.T) {
	candidates := []domain.RepurposingCandidate{
		{DrugName: "A"}, {DrugName: ""}, {DrugName: "C"},
	}
	assert.Equal(t, []string{"A", "C"}, candidateNames(candidates, 0))
	assert.Equal(t, []string{"A"}, candidateNames(candidates, 2))
}
