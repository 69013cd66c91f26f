// Package orchestrator drives a pipeline run through its stage graph:
// disease resolution, evidence gathering, candidate discovery, landscape
// assessment, ranking, and report generation. Each stage boundary persists
// the full state so an interrupted run can resume from its last snapshot.
// Stage failures after resolution degrade to structured empty output; only
// an unresolvable disease fails the run.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/internal/service"
)

const (
	// minViableCandidates triggers the expanded-search retry when the
	// first discovery pass comes up short.
	minViableCandidates = 3
	defaultTopN         = 50
	expandedTopN        = 100
	// assessLimit bounds the per-candidate patent and supply lookups
	assessLimit = 10
	rankLimit   = 10
)

// Resolver maps a free-text disease name onto ontology identifiers
type Resolver interface {
	Resolve(ctx context.Context, diseaseName string) (*domain.DiseaseContext, error)
}

// Discoverer runs one candidate-generation pass
type Discoverer interface {
	Discover(ctx context.Context, disease *domain.DiseaseContext, opts service.DiscoveryOptions) (*service.DiscoveryOutcome, error)
}

// IntelGatherer collects market and mechanism context from the open web
type IntelGatherer interface {
	Gather(ctx context.Context, disease, geography string) *domain.WebIntelOutput
}

// LiteratureReviewer surveys the biomedical literature for a disease
type LiteratureReviewer interface {
	Review(ctx context.Context, disease string) *domain.LiteratureOutput
}

// TrialsCollector pulls the registry landscape for a disease and candidates
type TrialsCollector interface {
	Collect(ctx context.Context, disease string, candidates []string) *domain.TrialsOutput
}

// PatentAssessor estimates freedom-to-operate risk per candidate
type PatentAssessor interface {
	AssessAll(ctx context.Context, candidates []string) map[string]domain.PatentOutput
}

// SupplyAssessor estimates sourcing strength per candidate
type SupplyAssessor interface {
	AssessAll(ctx context.Context, candidates []string) map[string]domain.EximOutput
}

// Ranker orders scored candidates into the final recommendation list
type Ranker interface {
	Rank(inputs []service.RankingInput, topN int) []domain.RankedCandidate
}

// AreaClassifier maps an indication name to a therapeutic area
type AreaClassifier interface {
	Classify(ctx context.Context, diseaseName string) domain.TherapeuticArea
}

// Renderer turns final state into the Markdown report
type Renderer interface {
	Render(state *domain.RouteAState) string
}

// Store is the run persistence surface the pipeline needs
type Store interface {
	UpdateMetadata(runID string, mutate func(*domain.RunMetadata)) (*domain.RunMetadata, error)
	SaveState(state *domain.RouteAState) error
	LoadState(runID string) (*domain.RouteAState, error)
	SaveReport(runID string, markdown string) (string, error)
}

// Pipeline executes runs against the wired collaborators
type Pipeline struct {
	logger     *logrus.Logger
	store      Store
	resolver   Resolver
	discovery  Discoverer
	webintel   IntelGatherer
	literature LiteratureReviewer
	trials     TrialsCollector
	patents    PatentAssessor
	exim       SupplyAssessor
	ranker     Ranker
	areas      AreaClassifier
	renderer   Renderer
}

// NewPipeline wires the pipeline. areas may be nil; the novelty bonus for
// a therapeutic-area jump is then skipped.
func NewPipeline(
	logger *logrus.Logger,
	store Store,
	resolver Resolver,
	discovery Discoverer,
	webintel IntelGatherer,
	literature LiteratureReviewer,
	trials TrialsCollector,
	patents PatentAssessor,
	exim SupplyAssessor,
	ranker Ranker,
	areas AreaClassifier,
	renderer Renderer,
) *Pipeline {
	return &Pipeline{
		logger:     logger,
		store:      store,
		resolver:   resolver,
		discovery:  discovery,
		webintel:   webintel,
		literature: literature,
		trials:     trials,
		patents:    patents,
		exim:       exim,
		ranker:     ranker,
		areas:      areas,
		renderer:   renderer,
	}
}

// Execute runs the pipeline for runID from its last persisted stage to the
// end, saving state at every boundary. Completed runs are a no-op.
func (p *Pipeline) Execute(ctx context.Context, runID string) error {
	state, err := p.store.LoadState(runID)
	if err != nil {
		return fmt.Errorf("failed to load run state: %w", err)
	}
	if state.Status.IsTerminal() {
		p.logger.WithField("run_id", runID).Info("Run already finished, nothing to do")
		return nil
	}

	started := time.Now().UTC()
	state.Status = domain.RunRunning
	if state.Stage == "" {
		state.Stage = domain.StageNormalizeInput
	}
	if _, err := p.store.UpdateMetadata(runID, func(m *domain.RunMetadata) {
		m.Status = domain.RunRunning
		if m.StartedAt == nil {
			m.StartedAt = &started
		}
	}); err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"run_id":     runID,
		"indication": state.Request.Indication,
		"stage":      state.Stage,
	}).Info("Pipeline run starting")

	for state.Stage != domain.StageEnd {
		if err := ctx.Err(); err != nil {
			p.store.SaveState(state)
			return err
		}
		state.Stage = p.step(ctx, state)
		if err := p.store.SaveState(state); err != nil {
			return fmt.Errorf("failed to persist run state: %w", err)
		}
	}

	return p.finalize(state)
}

func (p *Pipeline) finalize(state *domain.RouteAState) error {
	if state.Status != domain.RunFailed {
		state.Status = domain.RunSucceeded
	}
	if err := p.store.SaveState(state); err != nil {
		return fmt.Errorf("failed to persist final state: %w", err)
	}

	completed := time.Now().UTC()
	_, err := p.store.UpdateMetadata(state.RunID, func(m *domain.RunMetadata) {
		m.Status = state.Status
		m.CompletedAt = &completed
		m.ErrorMessage = state.Error
		m.CandidatesFound = len(state.Candidates)
		if state.Trials != nil {
			m.TrialsCount = state.Trials.TotalTrials
		}
		m.ReportPath = state.ReportPath
	})
	if err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"run_id":     state.RunID,
		"status":     state.Status,
		"candidates": len(state.Candidates),
	}).Info("Pipeline run finished")
	return nil
}

// step runs the current stage and returns the next one. A panic inside a
// stage is logged with its stack and the run continues with that stage's
// output left empty.
func (p *Pipeline) step(ctx context.Context, state *domain.RouteAState) (next domain.Stage) {
	stage := state.Stage
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{
				"run_id": state.RunID,
				"stage":  stage,
				"panic":  r,
				"stack":  string(debug.Stack()),
			}).Error("Stage panicked, continuing with empty output")
			next = p.recoverStage(stage, state)
		}
	}()

	switch stage {
	case domain.StageNormalizeInput:
		return p.normalizeInput(ctx, state)
	case domain.StageWebIntel:
		state.WebIntel = p.webintel.Gather(ctx, p.diseaseName(state), state.Request.Geography)
		return domain.StageLiterature
	case domain.StageLiterature:
		state.Literature = p.literature.Review(ctx, p.diseaseName(state))
		return domain.StageKG
	case domain.StageKG:
		return p.runDiscovery(ctx, state)
	case domain.StageExpandSearch:
		return p.expandSearch(ctx, state)
	case domain.StageClinicalTrials:
		state.Trials = p.trials.Collect(ctx, p.diseaseName(state), candidateNames(state.Candidates, 0))
		return domain.StagePatents
	case domain.StagePatents:
		state.Patents = p.patents.AssessAll(ctx, candidateNames(state.Candidates, assessLimit))
		return domain.StageExim
	case domain.StageExim:
		state.Exim = p.exim.AssessAll(ctx, candidateNames(state.Candidates, assessLimit))
		return domain.StageRankSelect
	case domain.StageRankSelect:
		state.Ranked = p.ranker.Rank(p.rankingInputs(ctx, state), rankLimit)
		return domain.StageGenerateReport
	case domain.StageGenerateReport:
		return p.generateReport(state)
	default:
		p.logger.WithField("stage", stage).Error("Unknown stage, ending run")
		state.Status = domain.RunFailed
		state.Error = fmt.Sprintf("unknown pipeline stage: %s", stage)
		return domain.StageEnd
	}
}

// recoverStage picks the successor after a stage panic. Resolution cannot
// be skipped; everything downstream can.
func (p *Pipeline) recoverStage(stage domain.Stage, state *domain.RouteAState) domain.Stage {
	switch stage {
	case domain.StageNormalizeInput:
		state.Status = domain.RunFailed
		state.Error = fmt.Sprintf("could not resolve disease: %s", state.Request.Indication)
		return domain.StageEnd
	case domain.StageWebIntel:
		return domain.StageLiterature
	case domain.StageLiterature:
		return domain.StageKG
	case domain.StageKG:
		return p.afterDiscovery(state)
	case domain.StageExpandSearch:
		state.ExpandedSearch = true
		return domain.StageClinicalTrials
	case domain.StageClinicalTrials:
		return domain.StagePatents
	case domain.StagePatents:
		return domain.StageExim
	case domain.StageExim:
		return domain.StageRankSelect
	case domain.StageRankSelect:
		return domain.StageGenerateReport
	default:
		return domain.StageEnd
	}
}

func (p *Pipeline) normalizeInput(ctx context.Context, state *domain.RouteAState) domain.Stage {
	disease, err := p.resolver.Resolve(ctx, state.Request.Indication)
	if err != nil || !disease.Resolved() {
		p.logger.WithError(err).WithField("indication", state.Request.Indication).
			Error("Disease resolution failed, aborting run")
		state.Status = domain.RunFailed
		state.Error = fmt.Sprintf("could not resolve disease: %s", state.Request.Indication)
		return domain.StageEnd
	}

	state.Disease = disease
	p.logger.WithFields(logrus.Fields{
		"disease": disease.CorrectedName,
		"id":      disease.PrimaryID(),
		"area":    disease.TherapeuticArea,
	}).Info("Disease resolved")
	return domain.StageWebIntel
}

func (p *Pipeline) runDiscovery(ctx context.Context, state *domain.RouteAState) domain.Stage {
	outcome, err := p.discovery.Discover(ctx, state.Disease, service.DiscoveryOptions{
		MinPhase:   state.Request.MinPhase,
		TopN:       defaultTopN,
		Enrichment: true,
	})
	if err != nil {
		p.logger.WithError(err).Error("Discovery failed, continuing with empty candidate set")
		state.Error = fmt.Sprintf("discovery failed: %v", err)
		state.Candidates = nil
		state.Stats = domain.DiscoveryStats{}
		return p.afterDiscovery(state)
	}

	p.applyDiscovery(state, outcome)
	return p.afterDiscovery(state)
}

// expandSearch reruns discovery with looser criteria. It executes at most
// once per run; a second shortfall proceeds with whatever was found.
func (p *Pipeline) expandSearch(ctx context.Context, state *domain.RouteAState) domain.Stage {
	state.ExpandedSearch = true
	p.logger.WithField("run_id", state.RunID).Warn("Too few candidates, expanding search")

	outcome, err := p.discovery.Discover(ctx, state.Disease, service.DiscoveryOptions{
		MinPhase:   0,
		TopN:       expandedTopN,
		Enrichment: false,
	})
	if err != nil {
		p.logger.WithError(err).Error("Expanded search failed, keeping prior candidates")
		return domain.StageClinicalTrials
	}

	p.applyDiscovery(state, outcome)
	return domain.StageClinicalTrials
}

func (p *Pipeline) applyDiscovery(state *domain.RouteAState, outcome *service.DiscoveryOutcome) {
	state.Targets = outcome.Targets
	state.DiseasePathways = outcome.DiseasePathways
	state.KnownDrugIDs = outcome.KnownDrugIDs
	state.Candidates = outcome.Candidates
	state.Stats = outcome.Stats
}

func (p *Pipeline) afterDiscovery(state *domain.RouteAState) domain.Stage {
	if len(state.Candidates) < minViableCandidates && !state.ExpandedSearch {
		return domain.StageExpandSearch
	}
	return domain.StageClinicalTrials
}

// rankingInputs derives the ranker signals from the assembled evidence.
// With strict freedom-to-operate requested, HIGH patent-risk candidates are
// dropped before ranking.
func (p *Pipeline) rankingInputs(ctx context.Context, state *domain.RouteAState) []service.RankingInput {
	known := make(map[string]struct{}, len(state.KnownDrugIDs))
	for _, id := range state.KnownDrugIDs {
		known[id] = struct{}{}
	}

	inputs := make([]service.RankingInput, 0, len(state.Candidates))
	for _, c := range state.Candidates {
		if state.Request.StrictFTO {
			if patent, ok := state.Patents[c.DrugName]; ok && patent.RiskTier == domain.PatentRiskHigh {
				p.logger.WithField("drug", c.DrugName).Info("Excluded by strict FTO filter")
				continue
			}
		}

		areaMatch := false
		if p.areas != nil && state.Disease != nil && c.OriginalIndication != "" {
			original := p.areas.Classify(ctx, c.OriginalIndication)
			areaMatch = original != domain.AreaUnknown && original == state.Disease.TherapeuticArea
		}

		patentExpired := false
		if patent, ok := state.Patents[c.DrugName]; ok {
			patentExpired = patent.RiskTier == domain.PatentRiskLow
		}

		_, inKnownSet := known[c.DrugID]
		inputs = append(inputs, service.RankingInput{
			Candidate:            c,
			TherapeuticAreaMatch: areaMatch,
			MechanismUnexpected:  c.PathwayOverlap > 0 && c.PathwayOverlap < 0.15,
			IsOral:               strings.EqualFold(c.DrugType, "Small molecule"),
			PatentExpired:        patentExpired,
			HasKnownDosing:       c.Phase >= 2,
			InKnownDrugSet:       inKnownSet,
		})
	}
	return inputs
}

func (p *Pipeline) generateReport(state *domain.RouteAState) domain.Stage {
	markdown := p.renderer.Render(state)
	path, err := p.store.SaveReport(state.RunID, markdown)
	if err != nil {
		p.logger.WithError(err).Error("Report write failed")
		if state.Error == "" {
			state.Error = fmt.Sprintf("report write failed: %v", err)
		}
		return domain.StageEnd
	}
	state.ReportPath = path
	return domain.StageEnd
}

func (p *Pipeline) diseaseName(state *domain.RouteAState) string {
	if state.Disease != nil && state.Disease.CorrectedName != "" {
		return state.Disease.CorrectedName
	}
	return state.Request.Indication
}

func candidateNames(candidates []domain.RepurposingCandidate, limit int) []string {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	names := make([]string, 0, limit)
	for _, c := range candidates[:limit] {
		if c.DrugName != "" {
			names = append(names, c.DrugName)
		}
	}
	return names
}
