package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

// drugSuffixes match INN naming stems; the fallback extractor uses them to
// spot drug names in snippets when no LLM is available.
var drugSuffixes = []string{
	"mab", "nib", "gib", "mib", "limus", "statin", "prazole", "vir",
	"tinib", "zumab", "ximab", "gliflozin", "gliptin", "cept", "ciclib",
}

// drugBlacklist filters common pharmacology words the suffix pattern
// catches by accident.
var drugBlacklist = map[string]struct{}{
	"placebo": {}, "inhibitor": {}, "receptor": {}, "agonist": {}, "antagonist": {},
	"treatment": {}, "therapy": {}, "medicine": {}, "available": {}, "online": {},
}

var (
	drugNamePattern = regexp.MustCompile(`\b[a-z]{4,}(?:` + strings.Join(drugSuffixes, "|") + `)\b`)
	companyPattern  = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+(?:Inc|Ltd|Corp|Pharma|Therapeutics|Biosciences)`)
)

const intelPromptPreamble = "You are a drug repurposing research analyst specializing in mechanistic biology. " +
	"Respond only with valid JSON.\n\n"

// WebIntelAgent gathers repurposing intelligence from phased web searches:
// pathophysiology and targets, related diseases, off-label evidence,
// repurposing trials, standard of care, unmet needs, and the competitive
// landscape. Snippets feed LLM extraction; without an LLM the agent keeps
// citations and falls back to regex drug extraction.
type WebIntelAgent struct {
	logger *logrus.Logger
	search WebSearcher
	llm    TextGenerator
}

// NewWebIntelAgent creates a new web intelligence agent. llm may be nil.
func NewWebIntelAgent(logger *logrus.Logger, search WebSearcher, llm TextGenerator) *WebIntelAgent {
	return &WebIntelAgent{logger: logger, search: search, llm: llm}
}

// Gather runs all intelligence phases for a disease. The result is never
// nil; failed searches and failed extractions just thin it out.
func (a *WebIntelAgent) Gather(ctx context.Context, disease, geography string) *domain.WebIntelOutput {
	var citations []domain.Citation
	var socDetails []domain.SOCDetail
	var unmetNeeds []domain.UnmetNeedDetail

	// Phase 1: pathophysiology and molecular targets
	pathwayHits := a.collect(ctx, []string{
		disease + " molecular pathogenesis pathways mechanisms 2024",
		disease + " therapeutic targets biomarkers",
		"site:nature.com OR site:science.org " + disease + " pathophysiology review",
	}, 3, "Pathway Analysis", &citations)
	pathway := a.extractPathways(ctx, disease, pathwayHits)

	// Phase 2: related diseases and their approved drugs
	relatedHits := a.collect(ctx, []string{
		disease + " similar diseases shared pathogenesis",
		disease + " comorbidities overlapping mechanisms",
		disease + " disease family therapeutic area",
	}, 3, "Cross-Indication", &citations)
	related := a.extractRelatedDiseases(ctx, disease, relatedHits)
	for i, rel := range related {
		if i == 5 {
			break
		}
		for j, drug := range rel.ApprovedDrugs {
			if j == 3 {
				break
			}
			socDetails = append(socDetails, domain.SOCDetail{
				DrugName:       drug,
				LineOfTherapy:  "Repurposing Candidate",
				SourceDocument: "Approved for " + rel.DiseaseName,
				ApprovalStatus: "Cross-indication from " + rel.DiseaseName,
			})
		}
	}

	// Phase 3: off-label use evidence
	offlabelHits := a.collect(ctx, []string{
		disease + " off-label drug use case reports",
		disease + " repurposed drugs clinical experience",
		fmt.Sprintf(`"%s" "off-label" OR "compassionate use"`, disease),
	}, 3, "Off-Label Evidence", &citations)
	offlabel := a.extractOffLabel(ctx, disease, offlabelHits)
	for i, evidence := range offlabel {
		if i == 5 {
			break
		}
		source := evidence.Citation
		if source == "" {
			source = "Case study"
		}
		origin := evidence.OriginalIndication
		if origin == "" {
			origin = "Unknown"
		}
		socDetails = append(socDetails, domain.SOCDetail{
			DrugName:       orUnknown(evidence.DrugName),
			LineOfTherapy:  "Off-Label/Repurposing",
			SourceDocument: source,
			ApprovalStatus: "Off-label from " + origin,
		})
	}

	// Phase 4: competing repurposing trials
	trialHits := a.collect(ctx, []string{
		fmt.Sprintf(`site:clinicaltrials.gov "%s" drug repurposing`, disease),
		disease + " clinical trials repositioning 2023 2024 2025",
		disease + " phase 2 phase 3 trials",
	}, 3, "Clinical Trials", &citations)
	trials := a.extractTrials(ctx, disease, trialHits)

	// Phase 5: standard of care baseline
	socHits := a.collect(ctx, []string{
		fmt.Sprintf("%s treatment guidelines %s 2024 2025", disease, geography),
		disease + " first-line therapy FDA approved",
	}, 2, "Guidelines", &citations)
	for _, drug := range a.extractStandardOfCare(ctx, disease, socHits) {
		if hasSOCDrug(socDetails, drug.DrugName) {
			continue
		}
		line := drug.LineOfTherapy
		if line == "" {
			line = "Unknown"
		}
		socDetails = append(socDetails, domain.SOCDetail{
			DrugName:       orUnknown(drug.DrugName),
			LineOfTherapy:  line,
			SourceDocument: "Current SOC",
			ApprovalStatus: "FDA Approved",
		})
	}

	// Phase 6: unmet needs framed as repurposing opportunities
	unmetHits := a.collect(ctx, []string{
		disease + " unmet medical needs treatment gaps 2024",
		disease + " treatment resistance refractory patients",
		disease + " subpopulations poor outcomes",
	}, 3, "Unmet Needs", &citations)
	for i, need := range a.extractUnmetNeeds(ctx, disease, unmetHits) {
		if i == 10 {
			break
		}
		category := need.Category
		if category == "" {
			category = "General"
		}
		severity := need.Severity
		if severity == "" {
			severity = "Medium"
		}
		unmetNeeds = append(unmetNeeds, domain.UnmetNeedDetail{
			Description: need.Description,
			Category:    category,
			SourceQuote: ellipsize(need.RepurposingOpportunity, 300),
			Severity:    severity,
		})
	}

	// Phase 7: competitive landscape
	marketPlayers := a.marketPlayers(ctx, disease)

	// Without any LLM extraction the drug list would be empty; mine the
	// snippets directly instead.
	if len(socDetails) == 0 {
		socDetails = fallbackDrugMentions(relatedHits, offlabelHits, socHits)
	}

	out := &domain.WebIntelOutput{
		StandardOfCare:   socDetails,
		UnmetNeeds:       unmetNeeds,
		KeyMarketPlayers: marketPlayers,
		Citations:        citations,
		Keywords: map[string][]string{
			"molecular_targets":   capStrings(pathway.targetNames(), 10),
			"pathways":            capStrings(pathway.pathwayNames(), 10),
			"related_diseases":    capStrings(diseaseNames(related), 5),
			"offlabel_candidates": capStrings(offlabelNames(offlabel), 10),
			"repurposing_trials":  capStrings(trials, 10),
			"biomarkers":          capStrings(pathway.Biomarkers, 5),
		},
	}
	if len(out.StandardOfCare) > 15 {
		out.StandardOfCare = out.StandardOfCare[:15]
	}
	if len(out.Citations) > 20 {
		out.Citations = out.Citations[:20]
	}

	a.logger.WithFields(logrus.Fields{
		"disease":     disease,
		"drugs":       len(out.StandardOfCare),
		"unmet_needs": len(out.UnmetNeeds),
		"citations":   len(out.Citations),
	}).Info("Web intelligence gathered")
	return out
}

// collect runs each query and keeps the first two hits per query as both
// citations and analysis input.
func (a *WebIntelAgent) collect(ctx context.Context, queries []string, maxResults int, source string, citations *[]domain.Citation) []external.SearchResult {
	var kept []external.SearchResult
	for _, query := range queries {
		results, err := a.search.Search(ctx, query, maxResults)
		if err != nil {
			a.logger.WithError(err).WithField("query", query).Warn("Web intelligence search failed")
			continue
		}
		for i, res := range results {
			if i == 2 {
				break
			}
			*citations = append(*citations, domain.Citation{
				URL:    res.URL,
				Title:  res.Title,
				Source: source,
			})
			kept = append(kept, res)
		}
	}
	return kept
}

type pathwayAnalysis struct {
	MolecularTargets []struct {
		Name string `json:"name"`
	} `json:"molecular_targets"`
	Pathways []struct {
		PathwayName string `json:"pathway_name"`
	} `json:"pathways"`
	Biomarkers []string `json:"biomarkers"`
}

func (p pathwayAnalysis) targetNames() []string {
	names := make([]string, 0, len(p.MolecularTargets))
	for _, t := range p.MolecularTargets {
		names = append(names, t.Name)
	}
	return names
}

func (p pathwayAnalysis) pathwayNames() []string {
	names := make([]string, 0, len(p.Pathways))
	for _, pw := range p.Pathways {
		names = append(names, pw.PathwayName)
	}
	return names
}

func (a *WebIntelAgent) extractPathways(ctx context.Context, disease string, hits []external.SearchResult) pathwayAnalysis {
	var parsed pathwayAnalysis
	prompt := fmt.Sprintf(`Analyze this %s pathophysiology text for drug repurposing insights.

Extract:
1. **Molecular Targets**: Proteins, receptors, enzymes involved in disease
2. **Signaling Pathways**: Key pathways (e.g., JAK/STAT, PI3K/AKT, MAPK)
3. **Biomarkers**: Measurable indicators for patient stratification
4. **Druggable Mechanisms**: Mechanisms that could be targeted by existing drugs

Return JSON:
{
  "molecular_targets": [{"name": "...", "role": "...", "druggability": "High|Medium|Low"}],
  "pathways": [{"pathway_name": "...", "relevance": "...", "drugs_known": ["..."]}],
  "biomarkers": ["..."],
  "mechanistic_insights": ["..."]
}`, disease)
	a.analyze(ctx, prompt, hits, &parsed)
	return parsed
}

type relatedDisease struct {
	DiseaseName   string   `json:"disease_name"`
	ApprovedDrugs []string `json:"approved_drugs"`
}

func (a *WebIntelAgent) extractRelatedDiseases(ctx context.Context, disease string, hits []external.SearchResult) []relatedDisease {
	var parsed struct {
		RelatedDiseases []relatedDisease `json:"related_diseases"`
	}
	prompt := fmt.Sprintf(`Analyze diseases related to %s for drug repurposing opportunities.

Extract:
1. **Related Diseases**: Diseases with shared mechanisms/pathways
2. **Approved Drugs**: Drugs approved for related diseases that might work for %s
3. **Shared Mechanisms**: Common biological pathways

Return JSON:
{
  "related_diseases": [
    {
      "disease_name": "...",
      "relationship": "shared pathway|comorbidity|same family",
      "approved_drugs": ["..."],
      "shared_mechanisms": ["..."]
    }
  ]
}`, disease, disease)
	a.analyze(ctx, prompt, hits, &parsed)
	return parsed.RelatedDiseases
}

type offLabelEvidence struct {
	DrugName           string `json:"drug_name"`
	OriginalIndication string `json:"original_indication"`
	Citation           string `json:"citation"`
}

func (a *WebIntelAgent) extractOffLabel(ctx context.Context, disease string, hits []external.SearchResult) []offLabelEvidence {
	var parsed struct {
		OffLabelDrugs []offLabelEvidence `json:"offlabel_drugs"`
	}
	prompt := fmt.Sprintf(`Analyze off-label drug use for %s.

Extract:
1. **Drugs**: Drugs used off-label with evidence of efficacy
2. **Clinical Context**: Patient populations, dosing, outcomes
3. **Evidence Strength**: Case report, case series, retrospective study, etc.

Return JSON:
{
  "offlabel_drugs": [
    {
      "drug_name": "...",
      "original_indication": "...",
      "evidence_type": "...",
      "outcome_summary": "...",
      "citation": "..."
    }
  ]
}`, disease)
	a.analyze(ctx, prompt, hits, &parsed)
	return parsed.OffLabelDrugs
}

func (a *WebIntelAgent) extractTrials(ctx context.Context, disease string, hits []external.SearchResult) []string {
	var parsed struct {
		RepurposingTrials []struct {
			DrugName string `json:"drug_name"`
		} `json:"repurposing_trials"`
	}
	prompt := fmt.Sprintf(`Analyze clinical trial information for %s.

Focus on:
1. Drug repurposing trials (drugs approved for other indications)
2. Novel mechanism trials
3. Trial phase, status, sponsor

Return JSON:
{
  "repurposing_trials": [
    {"drug_name": "...", "phase": "...", "status": "...", "sponsor": "...", "mechanism": "...", "nct_id": "..."}
  ]
}`, disease)
	a.analyze(ctx, prompt, hits, &parsed)

	names := make([]string, 0, len(parsed.RepurposingTrials))
	for _, trial := range parsed.RepurposingTrials {
		names = append(names, trial.DrugName)
	}
	return names
}

type socDrug struct {
	DrugName      string `json:"drug_name"`
	LineOfTherapy string `json:"line_of_therapy"`
}

func (a *WebIntelAgent) extractStandardOfCare(ctx context.Context, disease string, hits []external.SearchResult) []socDrug {
	var parsed struct {
		CurrentDrugs []socDrug `json:"current_drugs"`
	}
	prompt := fmt.Sprintf(`Extract ONLY the current standard of care drugs for %s.
Be concise - we need this as a baseline, not the main focus.

Return JSON:
{
  "current_drugs": [{"drug_name": "...", "line_of_therapy": "First-Line|Second-Line"}]
}`, disease)
	a.analyze(ctx, prompt, hits, &parsed)

	drugs := parsed.CurrentDrugs
	if len(drugs) > 5 {
		drugs = drugs[:5]
	}
	return drugs
}

type unmetNeed struct {
	Description            string `json:"description"`
	Category               string `json:"category"`
	RepurposingOpportunity string `json:"repurposing_opportunity"`
	Severity               string `json:"severity"`
}

func (a *WebIntelAgent) extractUnmetNeeds(ctx context.Context, disease string, hits []external.SearchResult) []unmetNeed {
	var parsed struct {
		UnmetNeeds []unmetNeed `json:"unmet_needs"`
	}
	prompt := fmt.Sprintf(`Analyze unmet medical needs for %s from a drug repurposing perspective.

Focus on:
1. Patient subgroups with inadequate treatment options
2. Mechanisms not addressed by current therapies
3. Treatment resistance mechanisms
4. Repurposing opportunities these gaps create

Return JSON:
{
  "unmet_needs": [
    {
      "description": "...",
      "category": "Efficacy|Safety|Access|Subgroup|Mechanism",
      "repurposing_opportunity": "...",
      "potential_mechanisms": ["..."],
      "severity": "High|Medium|Low"
    }
  ]
}`, disease)
	a.analyze(ctx, prompt, hits, &parsed)
	return parsed.UnmetNeeds
}

func (a *WebIntelAgent) marketPlayers(ctx context.Context, disease string) []string {
	results, err := a.search.Search(ctx, disease+" pharmaceutical companies pipeline drugs", 2)
	if err != nil {
		a.logger.WithError(err).Warn("Market landscape search failed")
		return nil
	}

	var players []string
	seen := make(map[string]struct{})
	for _, res := range results {
		for i, company := range companyPattern.FindAllString(res.Snippet, -1) {
			if i == 5 {
				break
			}
			if _, dup := seen[company]; dup {
				continue
			}
			seen[company] = struct{}{}
			players = append(players, company)
		}
	}
	return capStrings(players, 5)
}

// analyze feeds the collected snippets through one LLM extraction. Missing
// LLM, empty input, and decode failures all leave out untouched.
func (a *WebIntelAgent) analyze(ctx context.Context, prompt string, hits []external.SearchResult, out interface{}) {
	if a.llm == nil || !a.llm.Enabled() || len(hits) == 0 {
		return
	}
	text := snippetDigest(hits)
	if text == "" {
		return
	}
	full := intelPromptPreamble + prompt + "\n\nText:\n" + text
	if err := a.llm.GenerateJSON(ctx, full, out); err != nil {
		a.logger.WithError(err).Warn("Web intelligence extraction failed")
	}
}

func snippetDigest(hits []external.SearchResult) string {
	var parts []string
	for _, hit := range hits {
		part := strings.TrimSpace(hit.Title + "\n" + hit.Snippet)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return ellipsizeRunes(strings.Join(parts, "\n\n"), 8000)
}

// fallbackDrugMentions extracts drug-like names from snippets by INN
// suffix when no LLM-backed extraction produced anything.
func fallbackDrugMentions(hitGroups ...[]external.SearchResult) []domain.SOCDetail {
	seen := make(map[string]struct{})
	var details []domain.SOCDetail
	for _, hits := range hitGroups {
		for _, hit := range hits {
			text := strings.ToLower(hit.Title + " " + hit.Snippet)
			for _, word := range drugNamePattern.FindAllString(text, -1) {
				if _, blocked := drugBlacklist[word]; blocked || len(word) <= 5 {
					continue
				}
				if _, dup := seen[word]; dup {
					continue
				}
				seen[word] = struct{}{}
				details = append(details, domain.SOCDetail{
					DrugName:       strings.ToUpper(word[:1]) + word[1:],
					LineOfTherapy:  "Repurposing Candidate",
					SourceDocument: "Web search mention",
					ApprovalStatus: "Unverified",
				})
				if len(details) == 15 {
					return details
				}
			}
		}
	}
	return details
}

func hasSOCDrug(details []domain.SOCDetail, name string) bool {
	for _, d := range details {
		if d.DrugName == name {
			return true
		}
	}
	return false
}

func diseaseNames(related []relatedDisease) []string {
	names := make([]string, 0, len(related))
	for _, r := range related {
		names = append(names, r.DiseaseName)
	}
	return names
}

func offlabelNames(evidence []offLabelEvidence) []string {
	names := make([]string, 0, len(evidence))
	for _, e := range evidence {
		names = append(names, e.DrugName)
	}
	return names
}

func capStrings(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
