package service

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

// DrugDeduplicator merges candidates that are the same molecule under
// different names. Candidates from the target-association DB already carry
// a ChEMBL ID; name-only candidates are resolved through ChEMBL search.
type DrugDeduplicator struct {
	logger *logrus.Logger
	chembl *external.ChEMBLClient

	mu    sync.Mutex
	cache map[string]string // drug name -> ChEMBL ID
}

// NewDrugDeduplicator creates a new deduplicator
func NewDrugDeduplicator(logger *logrus.Logger, chembl *external.ChEMBLClient) *DrugDeduplicator {
	return &DrugDeduplicator{
		logger: logger,
		chembl: chembl,
		cache:  make(map[string]string),
	}
}

// NormalizeDrugName resolves a drug name to its canonical ChEMBL ID.
// Empty string means the name could not be resolved.
func (d *DrugDeduplicator) NormalizeDrugName(ctx context.Context, drugName string) string {
	if drugName == "" {
		return ""
	}

	d.mu.Lock()
	cached, ok := d.cache[drugName]
	d.mu.Unlock()
	if ok {
		return cached
	}

	chemblID, err := d.chembl.SearchMoleculeID(ctx, drugName)
	if err != nil {
		d.logger.WithError(err).WithField("drug", drugName).Debug("ChEMBL name resolution failed")
		return ""
	}

	d.mu.Lock()
	d.cache[drugName] = chemblID
	d.mu.Unlock()
	return chemblID
}

// Deduplicate collapses candidates sharing a canonical ID. The merged
// candidate keeps the highest mechanistic confidence entry as its base and
// accumulates the target symbols and shared pathways of the duplicates.
func (d *DrugDeduplicator) Deduplicate(ctx context.Context, candidates []domain.RepurposingCandidate) []domain.RepurposingCandidate {
	if len(candidates) < 2 {
		return candidates
	}

	groups := make(map[string][]domain.RepurposingCandidate)
	var order []string
	for _, c := range candidates {
		key := c.DrugID
		if key == "" {
			key = d.NormalizeDrugName(ctx, c.DrugName)
		}
		if key == "" {
			key = "UNKNOWN_" + strings.ReplaceAll(strings.ToUpper(c.DrugName), " ", "_")
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	deduped := make([]domain.RepurposingCandidate, 0, len(groups))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			deduped = append(deduped, group[0])
			continue
		}
		d.logger.WithFields(logrus.Fields{
			"drug_id": key,
			"entries": len(group),
		}).Debug("Merging duplicate candidate entries")
		deduped = append(deduped, mergeCandidates(group))
	}

	removed := len(candidates) - len(deduped)
	if removed > 0 {
		d.logger.WithFields(logrus.Fields{
			"unique":  len(deduped),
			"removed": removed,
		}).Info("Deduplicated candidates")
	}
	return deduped
}

// mergeCandidates folds duplicate entries into the strongest one. Scores
// take the maximum; the target and pathway evidence is unioned.
func mergeCandidates(group []domain.RepurposingCandidate) domain.RepurposingCandidate {
	best := group[0]
	for _, c := range group[1:] {
		if c.MechanisticConf > best.MechanisticConf {
			best = c
		}
	}

	targets := map[string]struct{}{best.MolecularTarget: {}}
	pathways := make(map[string]struct{})
	for _, id := range best.SharedPathways {
		pathways[id] = struct{}{}
	}

	for _, c := range group {
		if c.OpenTargetsScore > best.OpenTargetsScore {
			best.OpenTargetsScore = c.OpenTargetsScore
		}
		if c.PathwayOverlap > best.PathwayOverlap {
			best.PathwayOverlap = c.PathwayOverlap
		}
		if c.Phase > best.Phase {
			best.Phase = c.Phase
		}
		if c.EvidenceCount > best.EvidenceCount {
			best.EvidenceCount = c.EvidenceCount
		}
		best.HasClinicalEvidence = best.HasClinicalEvidence || c.HasClinicalEvidence

		if _, ok := targets[c.MolecularTarget]; !ok && c.MolecularTarget != "" {
			targets[c.MolecularTarget] = struct{}{}
			best.MolecularTarget += ", " + c.MolecularTarget
		}
		for _, id := range c.SharedPathways {
			if _, ok := pathways[id]; !ok {
				pathways[id] = struct{}{}
				best.SharedPathways = append(best.SharedPathways, id)
			}
		}
	}
	return best
}
