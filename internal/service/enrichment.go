package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

const (
	// ppiConfidenceThreshold is the STRING combined-score floor for an
	// interaction to count toward the network analysis.
	ppiConfidenceThreshold = 0.7
	maxEnrichmentGenes     = 20
	maxCommonInteractors   = 10
	maxBiomarkersPerDrug   = 8

	// multiSourceConfidence is the mechanistic confidence floor for a
	// candidate confirmed by an independent interaction database.
	multiSourceConfidence = 0.8
)

// CandidateEnricher folds secondary evidence sources into the candidate
// set: DGIdb curated gene-drug interactions confirm candidates found by
// the mechanistic engine, and STRING protein-interaction hubs shared by
// several targets become suggested biomarkers.
type CandidateEnricher struct {
	logger   *logrus.Logger
	dgidb    *external.DGIdbClient
	stringdb *external.StringDBClient
}

// NewCandidateEnricher creates a candidate enricher
func NewCandidateEnricher(logger *logrus.Logger, dgidb *external.DGIdbClient, stringdb *external.StringDBClient) *CandidateEnricher {
	return &CandidateEnricher{logger: logger, dgidb: dgidb, stringdb: stringdb}
}

// CommonInteractor is a protein interacting with two or more of the
// validated targets, a potential combination target or readout.
type CommonInteractor struct {
	Protein       string   `json:"protein"`
	InteractsWith []string `json:"interacts_with"`
	Count         int      `json:"count"`
	AvgScore      float64  `json:"avg_score"`
}

// Enrich runs both enrichment passes and returns the updated candidates.
// Collaborator failures leave the candidates untouched.
func (e *CandidateEnricher) Enrich(ctx context.Context, candidates []domain.RepurposingCandidate, targets []domain.Target) []domain.RepurposingCandidate {
	genes := targetSymbols(targets, maxEnrichmentGenes)
	candidates = e.confirmWithDGIdb(ctx, candidates, genes)

	interactors := e.CommonInteractors(ctx, genes)
	if len(interactors) > 0 {
		candidates = attachNetworkBiomarkers(candidates, interactors)
	}
	return candidates
}

// confirmWithDGIdb cross-references candidates against curated gene-drug
// interactions. A match from the independent source raises mechanistic
// confidence, adds publication-backed evidence, and fills in a missing
// mechanism from the interaction type. DGIdb rows carry no indication, so
// they never admit new candidates; the repurposing filter stays upstream.
func (e *CandidateEnricher) confirmWithDGIdb(ctx context.Context, candidates []domain.RepurposingCandidate, genes []string) []domain.RepurposingCandidate {
	if len(genes) == 0 || len(candidates) == 0 {
		return candidates
	}

	nodes, err := e.dgidb.QueryGenes(ctx, genes)
	if err != nil {
		e.logger.WithError(err).Warn("DGIdb enrichment skipped")
		return candidates
	}

	type curated struct {
		gene         string
		approved     bool
		publications int
		kind         string
	}
	byDrug := make(map[string]curated)
	for _, node := range nodes {
		for _, interaction := range node.Interactions {
			name := strings.ToUpper(interaction.Drug.Name)
			if name == "" {
				continue
			}
			kind := ""
			if len(interaction.InteractionTypes) > 0 {
				kind = interaction.InteractionTypes[0].Type
			}
			entry, seen := byDrug[name]
			if !seen {
				entry = curated{gene: node.Name, kind: kind}
			}
			entry.approved = entry.approved || interaction.Drug.Approved
			entry.publications += len(interaction.Publications)
			if entry.kind == "" {
				entry.kind = kind
			}
			byDrug[name] = entry
		}
	}

	confirmed := 0
	for i := range candidates {
		c := &candidates[i]
		entry, ok := byDrug[strings.ToUpper(c.DrugName)]
		if !ok {
			continue
		}
		confirmed++
		c.EvidenceCount += entry.publications
		if entry.approved {
			c.HasClinicalEvidence = true
		}
		if c.MechanisticConf < multiSourceConfidence {
			c.MechanisticConf = multiSourceConfidence
		}
		if (c.MechanismOfAction == "" || c.MechanismOfAction == "Unknown mechanism") && entry.kind != "" {
			c.MechanismOfAction = fmt.Sprintf("%s of %s (DGIdb)", entry.kind, entry.gene)
		}
	}

	e.logger.WithFields(logrus.Fields{
		"genes":     len(genes),
		"curated":   len(byDrug),
		"confirmed": confirmed,
	}).Info("DGIdb cross-reference complete")
	return candidates
}

// CommonInteractors finds proteins interacting with two or more of the
// given targets, ordered by breadth then average confidence.
func (e *CandidateEnricher) CommonInteractors(ctx context.Context, genes []string) []CommonInteractor {
	type edge struct {
		source string
		score  float64
	}
	partners := make(map[string][]edge)

	for _, gene := range genes {
		interactions, err := e.stringdb.Interactions(ctx, gene, ppiConfidenceThreshold)
		if err != nil {
			e.logger.WithError(err).WithField("gene", gene).Warn("STRING lookup failed")
			continue
		}
		for _, interaction := range interactions {
			if interaction.Partner == "" || interaction.Partner == gene {
				continue
			}
			partners[interaction.Partner] = append(partners[interaction.Partner], edge{gene, interaction.Score})
		}
	}

	var common []CommonInteractor
	for protein, edges := range partners {
		if len(edges) < 2 {
			continue
		}
		sum := 0.0
		sources := make([]string, 0, len(edges))
		for _, link := range edges {
			sum += link.score
			sources = append(sources, link.source)
		}
		sort.Strings(sources)
		common = append(common, CommonInteractor{
			Protein:       protein,
			InteractsWith: sources,
			Count:         len(edges),
			AvgScore:      sum / float64(len(edges)),
		})
	}

	sort.SliceStable(common, func(i, j int) bool {
		if common[i].Count != common[j].Count {
			return common[i].Count > common[j].Count
		}
		if common[i].AvgScore != common[j].AvgScore {
			return common[i].AvgScore > common[j].AvgScore
		}
		return common[i].Protein < common[j].Protein
	})
	if len(common) > maxCommonInteractors {
		common = common[:maxCommonInteractors]
	}

	e.logger.WithFields(logrus.Fields{
		"targets":     len(genes),
		"interactors": len(common),
	}).Info("Common interactor analysis complete")
	return common
}

// attachNetworkBiomarkers adds hub proteins to the biomarker list of every
// candidate whose target sits in the hub's interaction set.
func attachNetworkBiomarkers(candidates []domain.RepurposingCandidate, interactors []CommonInteractor) []domain.RepurposingCandidate {
	for i := range candidates {
		c := &candidates[i]
		existing := make(map[string]struct{}, len(c.Biomarkers))
		for _, b := range c.Biomarkers {
			existing[b] = struct{}{}
		}
		for _, hub := range interactors {
			if len(c.Biomarkers) >= maxBiomarkersPerDrug {
				break
			}
			if !containsString(hub.InteractsWith, c.MolecularTarget) {
				continue
			}
			marker := fmt.Sprintf("%s levels (interaction network hub)", hub.Protein)
			if _, dup := existing[marker]; dup {
				continue
			}
			existing[marker] = struct{}{}
			c.Biomarkers = append(c.Biomarkers, marker)
		}
	}
	return candidates
}

func targetSymbols(targets []domain.Target, max int) []string {
	symbols := make([]string, 0, max)
	for _, t := range targets {
		if t.Symbol == "" {
			continue
		}
		symbols = append(symbols, t.Symbol)
		if len(symbols) == max {
			break
		}
	}
	return symbols
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
