package service

import (
	"context"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

// PathwayService resolves gene symbols to Reactome pathways and computes
// the pathway overlap that anchors mechanistic validation.
type PathwayService struct {
	logger   *logrus.Logger
	uniprot  *external.UniProtClient
	reactome *external.ReactomeClient

	// symbol -> pathway IDs; targets recur across candidates within a run
	pathwayCache *lru.Cache[string, []string]
}

// NewPathwayService creates a new pathway service
func NewPathwayService(logger *logrus.Logger, uniprot *external.UniProtClient, reactome *external.ReactomeClient) *PathwayService {
	cache, _ := lru.New[string, []string](512)
	return &PathwayService{
		logger:       logger,
		uniprot:      uniprot,
		reactome:     reactome,
		pathwayCache: cache,
	}
}

// TargetPathways returns the Reactome pathway IDs a gene participates in.
// The gene symbol is resolved to a UniProt accession first; when the chosen
// accession has no mapping, the remaining candidate accessions are tried.
func (s *PathwayService) TargetPathways(ctx context.Context, geneSymbol string) ([]string, error) {
	if geneSymbol == "" {
		return nil, nil
	}
	if cached, ok := s.pathwayCache.Get(geneSymbol); ok {
		return cached, nil
	}

	accession, err := s.uniprot.ResolveAccession(ctx, geneSymbol)
	if err != nil {
		s.logger.WithError(err).WithField("gene", geneSymbol).Warn("UniProt resolution failed")
	}
	if accession == "" {
		accession = geneSymbol
	}

	pathways, err := s.reactome.PathwaysForProtein(ctx, accession)
	if err != nil {
		return nil, err
	}

	if len(pathways) == 0 && !external.IsAccession(geneSymbol) {
		alternates, altErr := s.uniprot.CandidateAccessions(ctx, geneSymbol)
		if altErr == nil {
			for _, alt := range alternates {
				if alt == accession {
					continue
				}
				pathways, err = s.reactome.PathwaysForProtein(ctx, alt)
				if err == nil && len(pathways) > 0 {
					break
				}
			}
		}
	}

	ids := make([]string, 0, len(pathways))
	for _, p := range pathways {
		if p.StID != "" {
			ids = append(ids, p.StID)
		}
	}

	s.pathwayCache.Add(geneSymbol, ids)
	s.logger.WithFields(logrus.Fields{
		"gene":     geneSymbol,
		"pathways": len(ids),
	}).Debug("Resolved target pathways")
	return ids, nil
}

// DiseasePathways aggregates pathways across the top validated targets.
// Only the top twenty contribute; beyond that the union stops growing in
// practice and the lookups are not free.
func (s *PathwayService) DiseasePathways(ctx context.Context, targets []domain.Target) []string {
	limit := len(targets)
	if limit > 20 {
		limit = 20
	}

	union := make(map[string]struct{})
	for _, target := range targets[:limit] {
		ids, err := s.TargetPathways(ctx, target.Symbol)
		if err != nil {
			s.logger.WithError(err).WithField("gene", target.Symbol).Warn("Target pathway lookup failed")
			continue
		}
		for _, id := range ids {
			union[id] = struct{}{}
		}
	}

	// Sorted so the persisted state is stable across runs
	out := make([]string, 0, len(union))
	for id := range union {
		out = append(out, id)
	}
	sort.Strings(out)
	s.logger.WithField("pathways", len(out)).Info("Inferred disease pathways from targets")
	return out
}

// PathwayOverlap is the intersection summary of two pathway sets
type PathwayOverlap struct {
	OverlapPathways []string `json:"overlap_pathways"`
	OverlapCount    int      `json:"overlap_count"`
	Jaccard         float64  `json:"jaccard_similarity"`
	Relevant        bool     `json:"is_mechanistically_relevant"`
}

// FindPathwayOverlap computes the Jaccard similarity between disease and
// target pathway sets. Two empty sets have zero similarity.
func FindPathwayOverlap(diseasePathways, targetPathways []string) PathwayOverlap {
	diseaseSet := make(map[string]struct{}, len(diseasePathways))
	for _, id := range diseasePathways {
		diseaseSet[id] = struct{}{}
	}

	unionSize := len(diseaseSet)
	var overlap []string
	seen := make(map[string]struct{}, len(targetPathways))
	for _, id := range targetPathways {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := diseaseSet[id]; ok {
			overlap = append(overlap, id)
		} else {
			unionSize++
		}
	}

	jaccard := 0.0
	if unionSize > 0 {
		jaccard = float64(len(overlap)) / float64(unionSize)
	}
	return PathwayOverlap{
		OverlapPathways: overlap,
		OverlapCount:    len(overlap),
		Jaccard:         jaccard,
		Relevant:        len(overlap) > 0,
	}
}
