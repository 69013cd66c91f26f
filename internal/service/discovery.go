package service

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

// knownDrugsPageSize bounds the direct disease-drug lookup that builds the
// exclusion set.
const knownDrugsPageSize = 200

// DiscoveryOptions tunes one discovery pass. The expanded-search retry
// lowers MinPhase to 0, raises TopN, and turns enrichment off.
type DiscoveryOptions struct {
	MinPhase   int
	TopN       int
	Enrichment bool
}

// DiscoveryOutcome is everything one discovery pass produces
type DiscoveryOutcome struct {
	Targets         []domain.Target
	DiseasePathways []string
	KnownDrugIDs    []string
	Candidates      []domain.RepurposingCandidate
	Stats           domain.DiscoveryStats
}

// DiscoveryPipeline chains target discovery, the mechanistic repurposing
// engine, enrichment, deduplication, validation, and scoring into one
// candidate-generation pass.
type DiscoveryPipeline struct {
	logger      *logrus.Logger
	opentargets *external.OpenTargetsClient
	targets     *TargetDiscovery
	engine      *RepurposingEngine
	enricher    *CandidateEnricher
	deduper     *DrugDeduplicator
	validator   *EvidenceValidator
	scorer      *ScoringEngine
}

// NewDiscoveryPipeline assembles the candidate-generation pass
func NewDiscoveryPipeline(
	logger *logrus.Logger,
	opentargets *external.OpenTargetsClient,
	targets *TargetDiscovery,
	engine *RepurposingEngine,
	enricher *CandidateEnricher,
	deduper *DrugDeduplicator,
	validator *EvidenceValidator,
	scorer *ScoringEngine,
) *DiscoveryPipeline {
	return &DiscoveryPipeline{
		logger:      logger,
		opentargets: opentargets,
		targets:     targets,
		engine:      engine,
		enricher:    enricher,
		deduper:     deduper,
		validator:   validator,
		scorer:      scorer,
	}
}

// Discover runs one full candidate-generation pass for a resolved disease.
// Drugs already treating the disease are excluded both by indication
// matching inside the engine and by ChEMBL ID against the known-drug set.
func (p *DiscoveryPipeline) Discover(ctx context.Context, disease *domain.DiseaseContext, opts DiscoveryOptions) (*DiscoveryOutcome, error) {
	outcome := &DiscoveryOutcome{}

	knownIDs := p.knownDrugSet(ctx, disease)
	outcome.KnownDrugIDs = sortedSet(knownIDs)
	outcome.Stats.DirectDrugs = len(knownIDs)

	targets, pathways, err := p.targets.Discover(ctx, disease)
	if err != nil {
		return nil, err
	}
	outcome.Targets = targets
	outcome.DiseasePathways = pathways
	if len(targets) == 0 {
		p.logger.WithField("disease", disease.CorrectedName).Warn("No validated targets, skipping drug search")
		return outcome, nil
	}

	result, err := p.engine.FindCandidates(ctx, disease, targets, pathways, opts.MinPhase)
	if err != nil {
		return nil, err
	}
	outcome.Stats.TotalDiscovered = result.TotalFound
	outcome.Stats.TargetBasedDrugs = len(result.Candidates)
	outcome.Stats.RepurposingFiltered = result.AlreadyTreats

	candidates := result.Candidates
	candidates, excluded := excludeKnownDrugs(candidates, knownIDs)
	outcome.Stats.RepurposingFiltered += excluded

	if opts.Enrichment && p.enricher != nil {
		candidates = p.enricher.Enrich(ctx, candidates, targets)
	}

	candidates = p.deduper.Deduplicate(ctx, candidates)

	kept, rejected, review := p.validator.ValidateCandidates(candidates)
	outcome.Stats.Validated = len(kept)
	outcome.Stats.Rejected = rejected

	candidates = p.scorer.ScoreCandidates(kept)
	sort.SliceStable(candidates, func(i, j int) bool {
		return compositeOf(candidates[i]) > compositeOf(candidates[j])
	})
	if opts.TopN > 0 && len(candidates) > opts.TopN {
		candidates = candidates[:opts.TopN]
	}

	outcome.Candidates = candidates
	outcome.Stats.FinalCount = len(candidates)
	outcome.Stats.RepurposingCandidates = len(candidates)

	p.logger.WithFields(logrus.Fields{
		"disease":    disease.CorrectedName,
		"discovered": outcome.Stats.TotalDiscovered,
		"validated":  outcome.Stats.Validated,
		"review":     review,
		"final":      outcome.Stats.FinalCount,
	}).Info("Discovery pass complete")
	return outcome, nil
}

// knownDrugSet fetches the ChEMBL IDs of drugs already indicated for the
// disease. Failures degrade to an empty set; the indication-based filter
// inside the engine still applies.
func (p *DiscoveryPipeline) knownDrugSet(ctx context.Context, disease *domain.DiseaseContext) map[string]struct{} {
	rows, _, err := p.opentargets.DiseaseKnownDrugs(ctx, GraphQLDiseaseID(disease.PrimaryID()), knownDrugsPageSize)
	if err != nil {
		p.logger.WithError(err).Warn("Known-drug lookup failed, relying on indication filter only")
		return nil
	}
	known := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row.DrugID != "" {
			known[row.DrugID] = struct{}{}
		}
	}
	return known
}

func excludeKnownDrugs(candidates []domain.RepurposingCandidate, known map[string]struct{}) ([]domain.RepurposingCandidate, int) {
	if len(known) == 0 {
		return candidates, 0
	}
	kept := candidates[:0]
	excluded := 0
	for _, c := range candidates {
		if _, treats := known[c.DrugID]; treats {
			excluded++
			continue
		}
		kept = append(kept, c)
	}
	return kept, excluded
}

func compositeOf(c domain.RepurposingCandidate) float64 {
	if c.Scores == nil {
		return 0
	}
	return c.Scores.CompositeScore
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
