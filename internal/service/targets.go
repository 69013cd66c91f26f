package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

// pathwayKeepThreshold is the minimum Jaccard overlap for a target to pass
// mechanism validation; highConfidenceThreshold marks the strong tier.
const (
	pathwayKeepThreshold    = 0.15
	highConfidenceThreshold = 0.30
)

// TargetDiscovery finds and validates the disease-associated targets that
// seed candidate generation.
type TargetDiscovery struct {
	logger      *logrus.Logger
	opentargets *external.OpenTargetsClient
	uniprot     *external.UniProtClient
	ncbiGene    *external.NCBIGeneClient
	pathways    *PathwayService
	graph       *external.GraphStore
	config      domain.PipelineConfig
}

// NewTargetDiscovery creates a new target discovery service
func NewTargetDiscovery(
	logger *logrus.Logger,
	opentargets *external.OpenTargetsClient,
	uniprot *external.UniProtClient,
	ncbiGene *external.NCBIGeneClient,
	pathways *PathwayService,
	graph *external.GraphStore,
	config domain.PipelineConfig,
) *TargetDiscovery {
	return &TargetDiscovery{
		logger:      logger,
		opentargets: opentargets,
		uniprot:     uniprot,
		ncbiGene:    ncbiGene,
		pathways:    pathways,
		graph:       graph,
		config:      config,
	}
}

// Discover returns the validated targets for a disease together with the
// inferred disease pathway set.
func (t *TargetDiscovery) Discover(ctx context.Context, disease *domain.DiseaseContext) ([]domain.Target, []string, error) {
	diseaseID := GraphQLDiseaseID(disease.PrimaryID())
	if diseaseID == "" {
		return nil, nil, fmt.Errorf("%w: disease has no ontology ID", domain.ErrResolutionFailed)
	}

	rows, err := t.opentargets.AssociatedTargets(ctx, diseaseID)
	if err != nil {
		return nil, nil, fmt.Errorf("target association fetch failed: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	candidates := scoreAssociations(rows)
	candidates = t.selectTopCandidates(candidates)
	t.logger.WithFields(logrus.Fields{
		"fetched":  len(rows),
		"selected": len(candidates),
	}).Info("Selected top-scoring targets")

	// Disease pathways are inferred from the selected targets, then each
	// target is validated against that set.
	diseasePathways := t.pathways.DiseasePathways(ctx, candidates)

	validated := t.validateMechanisms(ctx, candidates, diseasePathways)
	if len(validated) == 0 {
		validated = safetyNet(candidates)
		t.logger.WithField("kept", len(validated)).
			Warn("No targets passed pathway validation, applying safety net")
	}

	survivors := t.validateEvidence(ctx, validated, disease)
	if len(survivors) == 0 {
		survivors = safetyNet(validated)
		t.logger.WithField("kept", len(survivors)).
			Warn("No targets passed evidence validation, applying safety net")
	}

	t.persistTargets(ctx, survivors, disease)
	return survivors, diseasePathways, nil
}

// GraphQLDiseaseID converts an OBO-style ID ("EFO:0000270") to the
// underscore form the target-association DB expects.
func GraphQLDiseaseID(oboID string) string {
	return strings.ReplaceAll(oboID, ":", "_")
}

// scoreAssociations computes the three score dimensions per row, min-max
// normalizes each over the fetched set, and folds them into a composite.
func scoreAssociations(rows []external.TargetAssociation) []domain.Target {
	base := make([]float64, len(rows))
	diversity := make([]float64, len(rows))
	tractability := make([]float64, len(rows))

	for i, row := range rows {
		base[i] = row.Score
		count := 0
		for _, ds := range row.DatatypeScores {
			if ds.Score > 0 {
				count++
			}
		}
		diversity[i] = float64(count)
		tractability[i] = tractabilityScore(row)
	}

	baseNorm := minMaxNormalize(base)
	diversityNorm := minMaxNormalize(diversity)
	tractNorm := minMaxNormalize(tractability)

	targets := make([]domain.Target, len(rows))
	for i, row := range rows {
		uniprotAcc := ""
		for _, pid := range row.Target.ProteinIDs {
			if pid.Source == "uniprot_swissprot" {
				uniprotAcc = pid.ID
				break
			}
		}
		targets[i] = domain.Target{
			Symbol:            row.Target.ApprovedSymbol,
			EnsemblID:         row.Target.ID,
			UniProtAcc:        uniprotAcc,
			Biotype:           row.Target.Biotype,
			OpenTargetsScore:  row.Score,
			EvidenceDiversity: int(diversity[i]),
			Tractability:      tractability[i],
			CompositeScore:    0.7*baseNorm[i] + 0.2*diversityNorm[i] + 0.1*tractNorm[i],
		}
	}
	return targets
}

// tractabilityScore maps small-molecule tractability labels to a score,
// taking the maximum across labels.
func tractabilityScore(row external.TargetAssociation) float64 {
	best := 0.0
	for _, tract := range row.Target.Tractability {
		if !tract.Value || !strings.EqualFold(tract.Modality, "SM") {
			continue
		}
		var score float64
		label := strings.ToLower(tract.Label)
		switch {
		case strings.Contains(label, "approved"):
			score = 1.0
		case strings.Contains(label, "clinical") || strings.Contains(label, "phase"):
			score = 0.7
		case strings.Contains(label, "discovery"):
			score = 0.4
		case strings.Contains(label, "predicted"):
			score = 0.2
		}
		if score > best {
			best = score
		}
	}
	return best
}

func minMaxNormalize(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(values))
	if max == min {
		for i := range out {
			out[i] = 0
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out
}

// selectTopCandidates sorts by composite and applies the percentile cut,
// the protein-coding filter, and the target-count bounds.
func (t *TargetDiscovery) selectTopCandidates(targets []domain.Target) []domain.Target {
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].CompositeScore > targets[j].CompositeScore
	})

	minTargets := t.config.MinTargets
	if minTargets <= 0 {
		minTargets = 20
	}
	maxTargets := t.config.MaxTargets
	if maxTargets <= 0 {
		maxTargets = 50
	}
	// TopPercent is on the 0-100 scale the configuration validates
	topPercent := t.config.TopPercent
	if topPercent <= 0 {
		topPercent = 10.0
	}

	cut := int(float64(len(targets)) * (topPercent / 100.0))
	if cut < minTargets {
		cut = minTargets
	}
	if cut > len(targets) {
		cut = len(targets)
	}

	selected := make([]domain.Target, 0, cut)
	for _, target := range targets[:cut] {
		if target.Biotype != "protein_coding" || target.OpenTargetsScore <= 0 {
			continue
		}
		selected = append(selected, target)
		if len(selected) >= maxTargets {
			break
		}
	}
	return selected
}

// validateMechanisms keeps the targets whose pathway set overlaps the
// disease pathway set. Lookups run concurrently with bounded parallelism.
func (t *TargetDiscovery) validateMechanisms(ctx context.Context, targets []domain.Target, diseasePathways []string) []domain.Target {
	concurrency := t.config.TargetConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	var mu sync.Mutex
	validated := make([]domain.Target, 0, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range targets {
		target := targets[i]
		g.Go(func() error {
			ids, err := t.pathways.TargetPathways(gctx, target.Symbol)
			if err != nil {
				t.logger.WithError(err).WithField("gene", target.Symbol).Warn("Pathway lookup failed")
				return nil
			}
			overlap := FindPathwayOverlap(diseasePathways, ids)
			if overlap.Jaccard < pathwayKeepThreshold {
				return nil
			}

			target.PathwayIDs = ids
			target.PathwayJaccard = overlap.Jaccard
			target.MechanismScore = overlap.Jaccard
			mu.Lock()
			validated = append(validated, target)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.SliceStable(validated, func(i, j int) bool {
		return validated[i].CompositeScore > validated[j].CompositeScore
	})
	return validated
}

// validateEvidence runs the independent three-source evidence check
func (t *TargetDiscovery) validateEvidence(ctx context.Context, targets []domain.Target, disease *domain.DiseaseContext) []domain.Target {
	concurrency := t.config.TargetConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	diseaseID := GraphQLDiseaseID(disease.PrimaryID())

	var mu sync.Mutex
	survivors := make([]domain.Target, 0, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range targets {
		target := targets[i]
		g.Go(func() error {
			assocScore, err := t.opentargets.GeneDiseaseScore(gctx, target.EnsemblID, diseaseID)
			if err != nil {
				assocScore = 0
			}
			if assocScore > 1 {
				assocScore = 1
			}

			uniprotScore := 0.0
			acc := target.UniProtAcc
			if acc == "" {
				acc, _ = t.uniprot.ResolveAccession(gctx, target.Symbol)
			}
			if acc != "" {
				if annotations, err := t.uniprot.Annotations(gctx, acc); err == nil {
					uniprotScore = annotations.QualityScore()
				}
			}

			geneScore := 0.0
			if record, err := t.ncbiGene.Lookup(gctx, target.Symbol); err == nil {
				geneScore = record.CharacterizationScore()
			}

			composite := 0.40*assocScore + 0.30*uniprotScore + 0.30*geneScore
			accepted := assocScore > 0 ||
				composite >= 0.20 ||
				(uniprotScore >= 0.30 && geneScore >= 0.30)
			if !accepted {
				return nil
			}

			target.UniProtAcc = acc
			target.ValidationScore = composite
			mu.Lock()
			survivors = append(survivors, target)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].CompositeScore > survivors[j].CompositeScore
	})
	return survivors
}

// safetyNet keeps the top half by composite, but at least five targets, so
// a strict validation pass never starves the downstream engine.
func safetyNet(targets []domain.Target) []domain.Target {
	if len(targets) == 0 {
		return nil
	}
	keep := len(targets) / 2
	if keep < 5 {
		keep = 5
	}
	if keep > len(targets) {
		keep = len(targets)
	}
	kept := make([]domain.Target, keep)
	copy(kept, targets[:keep])
	for i := range kept {
		kept[i].SafetyNet = true
	}
	return kept
}

// persistTargets writes the survivors to the graph database
func (t *TargetDiscovery) persistTargets(ctx context.Context, targets []domain.Target, disease *domain.DiseaseContext) {
	if !t.graph.Enabled() {
		return
	}

	diseaseID := disease.PrimaryID()
	if err := t.graph.UpsertDisease(ctx, diseaseID, disease.CorrectedName); err != nil {
		t.logger.WithError(err).Warn("Failed to upsert disease node")
		return
	}

	for _, target := range targets {
		if err := t.graph.UpsertTarget(ctx, target.EnsemblID, target.Symbol, ""); err != nil {
			t.logger.WithError(err).WithField("gene", target.Symbol).Warn("Failed to upsert target node")
			continue
		}
		err := t.graph.LinkTargetDisease(ctx, target.EnsemblID, diseaseID,
			target.ValidationScore, target.MechanismScore, "opentargets+pathway+uniprot+ncbi")
		if err != nil {
			t.logger.WithError(err).WithField("gene", target.Symbol).Warn("Failed to link target to disease")
		}
	}
}
