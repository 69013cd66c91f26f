package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

// DiseaseResolver turns a free-text disease name into a DiseaseContext with
// authoritative ontology IDs. Resolution is fully deterministic: ontology
// lookups only, no generated identifiers.
type DiseaseResolver struct {
	logger     *logrus.Logger
	ols        *external.OLSClient
	mesh       *external.MeSHClient
	areaMapper *TherapeuticAreaMapper
}

// NewDiseaseResolver creates a new disease resolver
func NewDiseaseResolver(logger *logrus.Logger, ols *external.OLSClient, mesh *external.MeSHClient, areaMapper *TherapeuticAreaMapper) *DiseaseResolver {
	return &DiseaseResolver{
		logger:     logger,
		ols:        ols,
		mesh:       mesh,
		areaMapper: areaMapper,
	}
}

// Resolve runs the resolution pipeline: OLS search for EFO/MONDO, MeSH
// descriptor lookup, parent terms, therapeutic area classification, and
// disease flag extraction.
func (r *DiseaseResolver) Resolve(ctx context.Context, diseaseName string) (*domain.DiseaseContext, error) {
	r.logger.WithField("disease", diseaseName).Info("Resolving disease")

	docs, err := r.ols.SearchDisease(ctx, diseaseName)
	if err != nil {
		return nil, fmt.Errorf("ontology search failed: %w", err)
	}
	best := SelectBestDoc(docs, diseaseName)
	if best == nil {
		return nil, fmt.Errorf("%w: no ontology match for %q", domain.ErrResolutionFailed, diseaseName)
	}

	// MeSH and parents are enrichment; their failures don't block resolution
	meshID, err := r.mesh.LookupDescriptor(ctx, diseaseName)
	if err != nil {
		r.logger.WithError(err).Warn("MeSH lookup failed")
	}

	parents, err := r.ols.FetchParents(ctx, best.OntologyName, best.IRI)
	if err != nil {
		r.logger.WithError(err).Warn("Parent term lookup failed")
	}

	area := r.areaMapper.Classify(ctx, best.Label)

	flags := extractDiseaseFlags(best.FirstDescription(), parents, best.IRI)

	context := &domain.DiseaseContext{
		OriginalQuery:   diseaseName,
		CorrectedName:   best.Label,
		Description:     best.FirstDescription(),
		MeSHID:          meshID,
		TherapeuticArea: area,
		Synonyms:        best.Synonyms,
		ParentTerms:     parents,
		Confidence:      1.0,
		OLSMatchScore:   best.Score,
		IsCancer:        flags.cancer,
		IsAutoimmune:    flags.autoimmune,
		IsInfectious:    flags.infectious,
		IsRare:          flags.rare,
		IsGenetic:       flags.genetic,
	}
	switch strings.ToLower(best.OntologyName) {
	case "efo":
		context.EFOID = best.OboID
	case "mondo":
		context.MONDOID = best.OboID
	}

	r.logger.WithFields(logrus.Fields{
		"disease":          context.CorrectedName,
		"efo_id":           context.EFOID,
		"mondo_id":         context.MONDOID,
		"mesh_id":          context.MeSHID,
		"therapeutic_area": context.TherapeuticArea,
	}).Info("Disease resolved")
	return context, nil
}

// SelectBestDoc applies the match preference ladder to OLS search hits:
// exact normalized label, exact synonym, fuzzy label above 0.85, highest
// scored MONDO entry, highest score overall.
func SelectBestDoc(docs []external.OntologyDoc, query string) *external.OntologyDoc {
	if len(docs) == 0 {
		return nil
	}

	qNorm := normalizeTerm(query)

	for i := range docs {
		if normalizeTerm(docs[i].Label) == qNorm {
			return &docs[i]
		}
	}

	for i := range docs {
		for _, syn := range docs[i].Synonyms {
			if normalizeTerm(syn) == qNorm {
				return &docs[i]
			}
		}
	}

	var bestFuzzy *external.OntologyDoc
	bestFuzzyScore := 0.0
	for i := range docs {
		similarity := similarityRatio(qNorm, normalizeTerm(docs[i].Label))
		if similarity > 0.85 && similarity > bestFuzzyScore {
			bestFuzzy = &docs[i]
			bestFuzzyScore = similarity
		}
	}
	if bestFuzzy != nil {
		return bestFuzzy
	}

	var bestMondo *external.OntologyDoc
	for i := range docs {
		isMondo := strings.EqualFold(docs[i].OntologyName, "mondo") ||
			strings.HasPrefix(strings.ToUpper(docs[i].OboID), "MONDO")
		if isMondo && (bestMondo == nil || docs[i].Score > bestMondo.Score) {
			bestMondo = &docs[i]
		}
	}
	if bestMondo != nil {
		return bestMondo
	}

	best := &docs[0]
	for i := range docs {
		if docs[i].Score > best.Score {
			best = &docs[i]
		}
	}
	return best
}

// normalizeTerm lowercases, strips apostrophes and hyphens, and collapses
// whitespace so "Alzheimer's disease" and "alzheimers disease" compare equal.
func normalizeTerm(text string) string {
	text = strings.ToLower(text)
	text = strings.NewReplacer("'", "", "-", "").Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

// similarityRatio is the Ratcliff/Obershelp similarity of two strings:
// twice the total matched characters over the combined length.
func similarityRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	matches := matchingChars(a, b)
	return 2.0 * float64(matches) / float64(len(a)+len(b))
}

func matchingChars(a, b string) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingChars(a[:ai], b[:bi])
	total += matchingChars(a[ai+size:], b[bi+size:])
	return total
}

func longestCommonSubstring(a, b string) (int, int, int) {
	bestA, bestB, bestLen := 0, 0, 0
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > bestLen {
					bestLen = curr[j]
					bestA = i - bestLen
					bestB = j - bestLen
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return bestA, bestB, bestLen
}

type diseaseFlags struct {
	cancer     bool
	autoimmune bool
	infectious bool
	rare       bool
	genetic    bool
}

// extractDiseaseFlags derives classification flags from the ontology
// description, parent terms, and IRI by substring matching.
func extractDiseaseFlags(description string, parents []string, iri string) diseaseFlags {
	desc := strings.ToLower(description)
	parentText := strings.ToLower(strings.Join(parents, " "))
	iriLower := strings.ToLower(iri)

	containsAny := func(haystacks []string, terms ...string) bool {
		for _, term := range terms {
			for _, h := range haystacks {
				if strings.Contains(h, term) {
					return true
				}
			}
		}
		return false
	}

	descAndParents := []string{desc, parentText}
	return diseaseFlags{
		cancer:     containsAny(descAndParents, "cancer", "carcinoma", "neoplasm", "tumor", "malignancy", "leukemia", "lymphoma"),
		autoimmune: containsAny(descAndParents, "autoimmune", "autoinflammatory", "immune-mediated"),
		infectious: containsAny(descAndParents, "infection", "infectious", "viral", "bacterial", "fungal", "parasite"),
		rare:       containsAny([]string{desc, parentText, iriLower}, "rare", "orphan", "orpha"),
		genetic:    containsAny(descAndParents, "genetic", "hereditary", "congenital", "inherited"),
	}
}
