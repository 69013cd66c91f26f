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

// maxCandidatesPerTarget bounds how many drugs a single target contributes,
// so one promiscuous kinase cannot crowd out the rest of the target set.
const maxCandidatesPerTarget = 15

// RepurposingEngine proposes drugs for a new indication by walking
// target-to-drug edges: every drug known to modulate a validated disease
// target is a candidate unless it already treats the query disease.
type RepurposingEngine struct {
	logger      *logrus.Logger
	opentargets *external.OpenTargetsClient
	pathways    *PathwayService
	graph       *external.GraphStore
	config      domain.PipelineConfig
}

// NewRepurposingEngine creates a new mechanistic repurposing engine
func NewRepurposingEngine(
	logger *logrus.Logger,
	opentargets *external.OpenTargetsClient,
	pathways *PathwayService,
	graph *external.GraphStore,
	config domain.PipelineConfig,
) *RepurposingEngine {
	return &RepurposingEngine{
		logger:      logger,
		opentargets: opentargets,
		pathways:    pathways,
		graph:       graph,
		config:      config,
	}
}

// RepurposingResult carries the candidate list with funnel counters
type RepurposingResult struct {
	Candidates    []domain.RepurposingCandidate
	TotalFound    int
	AlreadyTreats int
}

// FindCandidates runs the mechanism-first search across the validated
// targets. Targets are processed concurrently with bounded parallelism;
// the drug fan-out within a target is sequential.
func (e *RepurposingEngine) FindCandidates(
	ctx context.Context,
	disease *domain.DiseaseContext,
	targets []domain.Target,
	diseasePathways []string,
	minPhase int,
) (*RepurposingResult, error) {
	// minPhase 0 admits preclinical drugs; the expanded-search retry uses it
	if minPhase < 0 {
		minPhase = 0
	}
	e.logger.WithFields(logrus.Fields{
		"disease":   disease.CorrectedName,
		"targets":   len(targets),
		"pathways":  len(diseasePathways),
		"min_phase": minPhase,
	}).Info("Starting mechanistic repurposing")

	concurrency := e.config.TargetConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	result := &RepurposingResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range targets {
		target := targets[i]
		g.Go(func() error {
			candidates, filtered, err := e.processTarget(gctx, target, disease, diseasePathways, minPhase)
			if err != nil {
				e.logger.WithError(err).WithField("gene", target.Symbol).Warn("Target drug fetch failed")
				return nil
			}
			mu.Lock()
			result.Candidates = append(result.Candidates, candidates...)
			result.TotalFound += len(candidates) + filtered
			result.AlreadyTreats += filtered
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.SliceStable(result.Candidates, func(i, j int) bool {
		return candidateRankKey(result.Candidates[i]) > candidateRankKey(result.Candidates[j])
	})

	topN := e.config.MaxCandidates
	if topN <= 0 {
		topN = 50
	}
	if len(result.Candidates) > topN {
		result.Candidates = result.Candidates[:topN]
	}

	e.persistCandidates(ctx, result.Candidates)

	e.logger.WithFields(logrus.Fields{
		"total_found":    result.TotalFound,
		"already_treats": result.AlreadyTreats,
		"returned":       len(result.Candidates),
	}).Info("Mechanistic repurposing complete")
	return result, nil
}

// candidateRankKey orders candidates across targets. Mechanistic confidence
// and the target association dominate; phase breaks ties toward late-stage
// drugs.
func candidateRankKey(c domain.RepurposingCandidate) float64 {
	return 0.35*c.MechanisticConf +
		0.2*c.PathwayOverlap +
		0.35*c.OpenTargetsScore +
		0.1*(float64(c.Phase)/4.0)
}

func (e *RepurposingEngine) processTarget(
	ctx context.Context,
	target domain.Target,
	disease *domain.DiseaseContext,
	diseasePathways []string,
	minPhase int,
) ([]domain.RepurposingCandidate, int, error) {
	targetPathways := target.PathwayIDs
	if len(targetPathways) == 0 {
		ids, err := e.pathways.TargetPathways(ctx, target.Symbol)
		if err == nil {
			targetPathways = ids
		}
	}
	overlap := FindPathwayOverlap(diseasePathways, targetPathways)

	rows, err := e.opentargets.TargetKnownDrugs(ctx, target.EnsemblID, 0)
	if err != nil {
		return nil, 0, err
	}

	var candidates []domain.RepurposingCandidate
	filtered := 0
	for _, row := range rows {
		phase := normalizePhase(row.Drug.MaximumClinicalTrialPhase, row.Phase)
		if phase < minPhase {
			continue
		}

		indication := row.Disease.Name
		if TreatsDisease(indication, disease.CorrectedName) {
			filtered++
			continue
		}

		candidate := e.buildCandidate(row, target, disease, overlap, phase)
		candidates = append(candidates, candidate)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MechanisticConf > candidates[j].MechanisticConf
	})
	if len(candidates) > maxCandidatesPerTarget {
		candidates = candidates[:maxCandidatesPerTarget]
	}
	return candidates, filtered, nil
}

// normalizePhase reconciles the drug-level and row-level phase fields,
// taking the maximum clipped to [0,4]. Fractional early phases round down.
func normalizePhase(drugPhase, rowPhase float64) int {
	phase := drugPhase
	if rowPhase > phase {
		phase = rowPhase
	}
	if phase < 0 {
		phase = 0
	}
	if phase > 4 {
		phase = 4
	}
	return int(phase)
}

// TreatsDisease reports whether an indication string already covers the
// query disease. Strict matching: substring containment of the disease name
// or at least two overlapping significant words. An empty or unknown
// indication is a potential repurposing, not a match.
func TreatsDisease(indication, queryDisease string) bool {
	switch indication {
	case "", "Unknown", "Unknown indication":
		return false
	}

	indicationLower := strings.ToLower(indication)
	diseaseLower := strings.ToLower(queryDisease)

	if strings.Contains(indicationLower, diseaseLower) {
		return true
	}

	return wordOverlap(diseaseLower, indicationLower) >= 2
}

// wordOverlap counts the distinct shared words of length > 3
func wordOverlap(a, b string) int {
	aWords := make(map[string]struct{})
	for _, w := range strings.Fields(a) {
		if len(w) > 3 {
			aWords[w] = struct{}{}
		}
	}
	count := 0
	seen := make(map[string]struct{})
	for _, w := range strings.Fields(b) {
		if len(w) <= 3 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := aWords[w]; ok {
			count++
		}
	}
	return count
}

func (e *RepurposingEngine) buildCandidate(
	row external.TargetDrugRow,
	target domain.Target,
	disease *domain.DiseaseContext,
	overlap PathwayOverlap,
	phase int,
) domain.RepurposingCandidate {
	drugName := row.Drug.Name
	if drugName == "" {
		drugName = "Unknown"
	}
	drugType := row.Drug.DrugType
	if drugType == "" {
		drugType = "Unknown"
	}
	mechanism := row.MechanismOfAction
	if mechanism == "" {
		mechanism = "Unknown mechanism"
	}
	indication := row.Disease.Name
	if indication == "" {
		indication = "Unknown indication"
	}

	explanation, sharedNames := explainMechanism(
		drugName, target.Symbol, mechanism, disease.CorrectedName,
		overlap.OverlapPathways, overlap.Jaccard)

	inVitro, inVivo, biomarkers := designExperiments(drugName, target.Symbol, disease.CorrectedName, phase)

	concerns, contraindications, pkNotes := assessSafety(
		drugType, indication, disease.CorrectedName, phase)

	mechanismKnown := mechanism != "Unknown mechanism"
	confidence := mechanisticConfidence(overlap.Jaccard, target.OpenTargetsScore, phase, mechanismKnown)
	feasibility := assessFeasibility(phase, overlap.Jaccard, len(concerns))

	return domain.RepurposingCandidate{
		DrugID:             row.Drug.ID,
		DrugName:           drugName,
		Phase:              phase,
		DrugType:           drugType,
		MolecularTarget:    target.Symbol,
		TargetProtein:      target.Symbol + " protein",
		OriginalIndication: indication,
		ProposedIndication: disease.CorrectedName,
		MechanismOfAction:  mechanism,
		DiseasePathwayLink: explanation,
		SharedPathways:     sharedNames,
		PathwayOverlap:     overlap.Jaccard,
		OpenTargetsScore:   target.OpenTargetsScore,
		MechanisticConf:    confidence,
		NoveltyScore:       100,
		InVitroExperiments: inVitro,
		InVivoExperiments:  inVivo,
		Biomarkers:         biomarkers,
		SafetyConcerns:     concerns,
		Contraindication:   contraindications,
		PKConsiderations:   pkNotes,
		Feasibility:        feasibility,
	}
}

// explainMechanism renders the drug-target-disease rationale. The strong
// variant requires both a high-confidence overlap and at least one shared
// pathway.
func explainMechanism(drugName, targetSymbol, mechanism, disease string, sharedPathways []string, overlap float64) (string, []string) {
	names := make([]string, 0, 5)
	for _, id := range sharedPathways {
		if len(names) >= 5 {
			break
		}
		names = append(names, readablePathway(id))
	}

	var explanation string
	if overlap >= highConfidenceThreshold && len(sharedPathways) > 0 {
		top := names
		if len(top) > 2 {
			top = top[:2]
		}
		explanation = fmt.Sprintf(
			"%s modulates %s via %s. This target is implicated in %s through %d shared biological pathways, including: %s. "+
				"The %.0f%% pathway overlap suggests strong mechanistic relevance. Targeting %s may disrupt disease-driving processes in %s.",
			drugName, targetSymbol, mechanism, disease, len(sharedPathways),
			strings.Join(top, ", "), overlap*100, targetSymbol, disease)
	} else {
		explanation = fmt.Sprintf(
			"%s modulates %s via %s. While pathway overlap is limited (%.0f%%), %s is associated with %s and may represent a novel therapeutic angle.",
			drugName, targetSymbol, mechanism, overlap*100, targetSymbol, disease)
	}
	return explanation, names
}

func readablePathway(id string) string {
	id = strings.TrimPrefix(id, "R-HSA-")
	return strings.ReplaceAll(id, "_", " ")
}

// designExperiments produces the structured validation plan. Phase gates
// the plan: approved drugs get a combination arm, drugs with human safety
// data go straight to efficacy models.
func designExperiments(drugName, targetSymbol, disease string, phase int) (inVitro, inVivo, biomarkers []string) {
	inVitro = []string{
		fmt.Sprintf("Cell viability assay: Treat %s-relevant cell lines with %s at therapeutic concentrations", disease, drugName),
		fmt.Sprintf("Mechanism validation: Measure %s activity (Western blot, ELISA) after %s treatment", targetSymbol, drugName),
		"Functional assays: Assess cell proliferation, apoptosis, migration in disease models",
		"Dose-response: Determine IC50 and optimal concentration range",
	}
	if phase >= 4 {
		inVitro = append(inVitro,
			fmt.Sprintf("Combination studies: Test %s synergy with standard-of-care %s treatments", drugName, disease))
	}

	if phase >= 2 {
		inVivo = []string{
			fmt.Sprintf("Animal efficacy: Test %s in %s xenograft or syngeneic models", drugName, disease),
			fmt.Sprintf("Pharmacodynamics: Measure %s modulation in tumor/tissue biopsies", targetSymbol),
			fmt.Sprintf("Dosing optimization: Determine optimal dose and schedule for %s indication", disease),
			"Survival benefit: Assess impact on disease progression and survival",
		}
	} else {
		inVivo = []string{
			fmt.Sprintf("Preclinical safety: Assess %s toxicity in relevant animal models before %s studies", drugName, disease),
			fmt.Sprintf("Proof-of-concept: Single-arm efficacy study in %s animal model", disease),
		}
	}

	biomarkers = []string{
		fmt.Sprintf("Phospho-%s (target engagement)", targetSymbol),
		"Downstream pathway markers (e.g., p-S6K, p-4EBP1 if mTOR pathway)",
		fmt.Sprintf("%s progression biomarkers (tumor markers, imaging)", disease),
		"Pharmacokinetic markers (drug levels in plasma/tissue)",
	}
	return inVitro, inVivo, biomarkers
}

// assessSafety collects repurposing-specific safety notes from the phase,
// the indication transition, and the drug modality.
func assessSafety(drugType, originalIndication, proposedIndication string, phase int) (concerns, contraindications, pkNotes []string) {
	if phase < 2 {
		concerns = append(concerns, "Limited safety data in humans")
		pkNotes = append(pkNotes, "Human PK/PD not well characterized")
	} else if phase >= 4 {
		pkNotes = append(pkNotes,
			fmt.Sprintf("Approved drug with known PK profile - dose may need adjustment for %s", proposedIndication))
	}

	originalLower := strings.ToLower(originalIndication)
	proposedLower := strings.ToLower(proposedIndication)

	if strings.Contains(proposedLower, "cancer") || strings.Contains(proposedLower, "tumor") {
		if strings.Contains(originalLower, "diabetes") || strings.Contains(originalLower, "metabolic") {
			concerns = append(concerns, "Monitor for metabolic disturbances in cancer patients")
		}
		if strings.Contains(originalLower, "cardiovascular") || strings.Contains(originalLower, "heart") {
			concerns = append(concerns, "Monitor for cardiotoxicity (may be additive with chemotherapy)")
		}
	}

	if strings.Contains(proposedLower, "cardio") || strings.Contains(proposedLower, "heart") {
		if strings.Contains(originalLower, "cancer") {
			contraindications = append(contraindications, "Many cancer drugs are cardiotoxic - careful monitoring required")
		}
	}

	if strings.Contains(originalLower, "immune") || strings.Contains(originalLower, "autoimmune") {
		if strings.Contains(proposedLower, "infection") || strings.Contains(proposedLower, "sepsis") {
			contraindications = append(contraindications, "Immunosuppression contraindicated in infectious diseases")
		}
	}

	switch drugType {
	case "Antibody", "Protein":
		concerns = append(concerns, "Biologic drug - immunogenicity and dosing may differ for new indication")
		pkNotes = append(pkNotes, "Antibody PK may vary across indications due to target expression differences")
	case "Small molecule":
		pkNotes = append(pkNotes,
			fmt.Sprintf("Small molecule with predictable PK - existing formulation may be suitable for %s", proposedIndication))
	}
	return concerns, contraindications, pkNotes
}

// mechanisticConfidence weighs pathway overlap, target association, clinical
// validation, and mechanism understanding into a [0,1] score.
func mechanisticConfidence(pathwayOverlap, targetScore float64, phase int, mechanismKnown bool) float64 {
	if targetScore > 1 {
		targetScore = 1
	}
	mechanismComponent := 0.05
	if mechanismKnown {
		mechanismComponent = 0.1
	}
	confidence := 0.4*pathwayOverlap + 0.3*targetScore + 0.2*(float64(phase)/4.0) + mechanismComponent
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// assessFeasibility folds phase, mechanism strength, and safety burden into
// a coarse tier.
func assessFeasibility(phase int, pathwayOverlap float64, safetyConcerns int) domain.Feasibility {
	score := 0

	switch {
	case phase >= 4:
		score += 40
	case phase == 3:
		score += 30
	case phase == 2:
		score += 20
	default:
		score += 10
	}

	switch {
	case pathwayOverlap >= 0.4:
		score += 40
	case pathwayOverlap >= 0.2:
		score += 25
	default:
		score += 10
	}

	switch {
	case safetyConcerns == 0:
		score += 20
	case safetyConcerns <= 2:
		score += 10
	}

	switch {
	case score >= 70:
		return domain.FeasibilityHigh
	case score >= 40:
		return domain.FeasibilityMedium
	default:
		return domain.FeasibilityLow
	}
}

// persistCandidates batch-writes the final candidate set to the graph
func (e *RepurposingEngine) persistCandidates(ctx context.Context, candidates []domain.RepurposingCandidate) {
	if !e.graph.Enabled() || len(candidates) == 0 {
		return
	}

	batch := make([]external.CandidateBatch, 0, len(candidates))
	for _, c := range candidates {
		batch = append(batch, external.CandidateBatch{
			CandidateID:  c.DrugID,
			Name:         c.DrugName,
			Stage:        fmt.Sprintf("phase_%d", c.Phase),
			Source:       "mechanistic_repurposing",
			TargetSymbol: c.MolecularTarget,
			Mechanism:    c.MechanismOfAction,
		})
	}
	if err := e.graph.BatchCreateCandidates(ctx, batch); err != nil {
		e.logger.WithError(err).Warn("Failed to write candidate batch to graph")
	}
}
