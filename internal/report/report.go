// Package report renders the final Markdown analysis report. Rendering is
// a pure function of the finished pipeline state: every section degrades
// to a short placeholder when its inputs are missing, so a thin run still
// produces a readable document.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/drug-repurposing-server/internal/domain"
)

// Renderer builds Markdown reports from pipeline state
type Renderer struct {
	now func() time.Time
}

// NewRenderer creates a report renderer
func NewRenderer() *Renderer {
	return &Renderer{now: time.Now}
}

// Render produces the full report for a finished run
func (r *Renderer) Render(state *domain.RouteAState) string {
	sections := []string{
		r.header(state),
		r.executiveSummary(state),
		r.diseaseContext(state),
		r.candidates(state),
		r.mechanism(state),
		r.clinicalEvidence(state),
		r.safetyAndIP(state),
		r.supplyChain(state),
		r.recommendations(state),
		r.footer(),
	}

	var kept []string
	for _, section := range sections {
		if section != "" {
			kept = append(kept, section)
		}
	}
	return strings.Join(kept, "\n\n---\n\n")
}

func (r *Renderer) header(state *domain.RouteAState) string {
	diseaseName := state.Request.Indication
	if state.Disease != nil && state.Disease.CorrectedName != "" {
		diseaseName = state.Disease.CorrectedName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Drug Repurposing Analysis Report\n\n")
	fmt.Fprintf(&b, "**Disease:** %s  \n", diseaseName)
	fmt.Fprintf(&b, "**Report ID:** %s  \n", state.RunID)
	fmt.Fprintf(&b, "**Generated:** %s  \n", r.now().UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "**Status:** Comprehensive Analysis Complete\n")

	if state.Disease != nil {
		if id := state.Disease.PrimaryID(); id != "" {
			fmt.Fprintf(&b, "\n**Disease ID:** %s\n", id)
		}
		if state.Disease.TherapeuticArea != "" {
			fmt.Fprintf(&b, "**Therapeutic Area:** %s\n", state.Disease.TherapeuticArea)
		}
	}
	return b.String()
}

func (r *Renderer) executiveSummary(state *domain.RouteAState) string {
	lines := []string{"## Executive Summary", "", "### Key Findings", ""}

	if len(state.Candidates) > 0 {
		total := state.Stats.TotalDiscovered
		if total == 0 {
			total = len(state.Candidates)
		}
		lines = append(lines,
			fmt.Sprintf("- **Total Candidates Discovered:** %d", total),
			fmt.Sprintf("- **Top Candidates for Further Study:** %d", minInt(3, len(state.Candidates))),
		)
	} else {
		lines = append(lines, "- **Note:** Limited candidate data available")
	}
	lines = append(lines, "")

	if len(state.Candidates) > 0 {
		top := state.Candidates[0]
		lines = append(lines, "### Top Candidate Highlight", "")
		lines = append(lines, fmt.Sprintf("**Drug:** %s", top.DrugName))
		if top.Scores != nil {
			lines = append(lines, fmt.Sprintf("**Composite Score:** %.1f/100", top.Scores.CompositeScore))
		}
		if top.OriginalIndication != "" {
			lines = append(lines, fmt.Sprintf("**Original Use:** %s", top.OriginalIndication))
		}
		if top.DiseasePathwayLink != "" {
			lines = append(lines, fmt.Sprintf("**Rationale:** %s...", truncate(top.DiseasePathwayLink, 200)))
		}
		lines = append(lines, "")
	}

	if len(state.Ranked) > 0 {
		lines = append(lines, "### Recommended Next Steps", "")
		for i, ranked := range state.Ranked {
			if i == 3 {
				break
			}
			lines = append(lines, fmt.Sprintf("%d. **%s** (Score: %.1f/100)", i+1, ranked.DrugName, ranked.FinalScore))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) diseaseContext(state *domain.RouteAState) string {
	lines := []string{"## Disease Context & Unmet Needs", ""}

	if state.Disease != nil {
		var types []string
		if state.Disease.IsCancer {
			types = append(types, "Cancer/Oncology")
		}
		if state.Disease.IsAutoimmune {
			types = append(types, "Autoimmune/Inflammatory")
		}
		if state.Disease.IsInfectious {
			types = append(types, "Infectious")
		}
		if state.Disease.IsRare {
			types = append(types, "Rare Disease")
		}
		if len(types) > 0 {
			lines = append(lines, fmt.Sprintf("**Disease Type:** %s", strings.Join(types, ", ")), "")
		}
	}

	if state.WebIntel != nil && len(state.WebIntel.UnmetNeeds) > 0 {
		lines = append(lines, "### Unmet Medical Needs", "")
		for i, need := range state.WebIntel.UnmetNeeds {
			if i == 5 {
				break
			}
			lines = append(lines,
				fmt.Sprintf("**%d. %s** (Severity: %s)", i+1, need.Category, need.Severity),
				fmt.Sprintf("   %s", need.Description),
				"")
		}
	} else {
		lines = append(lines, "*No specific unmet needs identified in analysis.*", "")
	}

	if state.WebIntel != nil && len(state.WebIntel.StandardOfCare) > 0 {
		lines = append(lines, "### Current Standard of Care", "")
		for i, soc := range state.WebIntel.StandardOfCare {
			if i == 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("- **%s** (%s)", soc.DrugName, soc.LineOfTherapy))
			if soc.ApprovalStatus != "" {
				lines = append(lines, fmt.Sprintf("  Status: %s", soc.ApprovalStatus))
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) candidates(state *domain.RouteAState) string {
	lines := []string{"## Top Drug Repurposing Candidates", ""}

	if len(state.Candidates) == 0 {
		lines = append(lines, "*No candidates identified in current analysis.*")
		return strings.Join(lines, "\n")
	}

	for i, cand := range state.Candidates {
		if i == 5 {
			break
		}
		lines = append(lines, fmt.Sprintf("### %d. %s", i+1, cand.DrugName), "")

		lines = append(lines, "**Drug Information:**")
		if cand.DrugID != "" {
			lines = append(lines, fmt.Sprintf("- Drug ID: %s", cand.DrugID))
		}
		lines = append(lines, fmt.Sprintf("- Development Stage: %s", phaseText(cand.Phase)))
		if cand.OriginalIndication != "" {
			lines = append(lines, fmt.Sprintf("- Original Indication: %s", cand.OriginalIndication))
		}
		if cand.MolecularTarget != "" {
			lines = append(lines, fmt.Sprintf("- Target: %s", cand.MolecularTarget))
		}
		lines = append(lines, "")

		if cand.Scores != nil {
			lines = append(lines,
				"**Repurposing Scores:**",
				fmt.Sprintf("- **Composite Score: %.1f/100**", cand.Scores.CompositeScore),
				fmt.Sprintf("- Clinical Phase: %.1f", cand.Scores.ClinicalPhaseScore),
				fmt.Sprintf("- Evidence: %.1f", cand.Scores.EvidenceScore),
				fmt.Sprintf("- Mechanism: %.1f", cand.Scores.MechanismScore),
				fmt.Sprintf("- Safety: %.1f", cand.Scores.SafetyScore),
				"")
		}

		if cand.DiseasePathwayLink != "" {
			lines = append(lines, "**Mechanistic Rationale:**", truncate(cand.DiseasePathwayLink, 300), "")
		}
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) mechanism(state *domain.RouteAState) string {
	lines := []string{"## Target & Pathway Analysis", ""}

	if len(state.Candidates) > 0 {
		top := state.Candidates[0]
		if top.MolecularTarget != "" {
			lines = append(lines, fmt.Sprintf("**Primary Target:** %s", top.MolecularTarget), "")
		}
		if len(top.SharedPathways) > 0 {
			lines = append(lines, "**Relevant Pathways:**")
			for i, pathway := range top.SharedPathways {
				if i == 5 {
					break
				}
				lines = append(lines, fmt.Sprintf("- %s", pathway))
			}
			lines = append(lines, "")
		}
	}

	if state.Literature != nil && state.Literature.PathophysiologySummary != "" {
		lines = append(lines, "**Disease Pathophysiology:**", state.Literature.PathophysiologySummary, "")
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) clinicalEvidence(state *domain.RouteAState) string {
	lines := []string{"## Clinical Evidence & Trials", ""}

	trials := state.Trials
	if trials == nil {
		lines = append(lines, "*No trial registry data collected.*")
		return strings.Join(lines, "\n")
	}

	lines = append(lines, fmt.Sprintf("**Total Clinical Trials:** %d", trials.TotalTrials), "")

	if len(trials.PhaseBreakdown) > 0 {
		lines = append(lines, "**Trials by Phase:**")
		for _, phase := range sortedKeys(trials.PhaseBreakdown) {
			lines = append(lines, fmt.Sprintf("- Phase %s: %d", phase, trials.PhaseBreakdown[phase]))
		}
		lines = append(lines, "")
	}

	drugs := make([]string, 0, len(trials.CandidateTrials))
	for drug, hits := range trials.CandidateTrials {
		if len(hits) > 0 {
			drugs = append(drugs, drug)
		}
	}
	sort.Strings(drugs)
	if len(drugs) > 0 {
		lines = append(lines, "**Trials for Top Candidates:**")
		for i, drug := range drugs {
			if i == 3 {
				break
			}
			lines = append(lines, "", fmt.Sprintf("**%s:**", drug))
			for j, trial := range trials.CandidateTrials[drug] {
				if j == 2 {
					break
				}
				lines = append(lines, fmt.Sprintf("- %s (Phase %s, %s)", trial.NCTID, trial.Phase, trial.Status))
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) safetyAndIP(state *domain.RouteAState) string {
	lines := []string{"## Safety & Intellectual Property", ""}

	if len(state.Candidates) > 0 {
		top := state.Candidates[0]
		if len(top.SafetyConcerns) > 0 {
			lines = append(lines, "**Safety Considerations:**")
			for i, concern := range top.SafetyConcerns {
				if i == 3 {
					break
				}
				lines = append(lines, fmt.Sprintf("- %s", concern))
			}
			lines = append(lines, "")
		}
		if len(top.Contraindication) > 0 {
			lines = append(lines, "**Contraindications:**")
			for i, contra := range top.Contraindication {
				if i == 3 {
					break
				}
				lines = append(lines, fmt.Sprintf("- %s", contra))
			}
			lines = append(lines, "")
		}
	}

	if len(state.Patents) > 0 {
		lines = append(lines, fmt.Sprintf("**Patent Analysis:** %d candidates analyzed", len(state.Patents)), "")
		for _, drug := range firstN(sortedPatentKeys(state.Patents), 3) {
			assessment := state.Patents[drug]
			lines = append(lines, fmt.Sprintf("- **%s**: %s risk", drug, assessment.RiskTier))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) supplyChain(state *domain.RouteAState) string {
	lines := []string{"## Manufacturing & Supply Chain Feasibility", ""}

	if len(state.Exim) == 0 {
		lines = append(lines, "*No supply chain data collected.*")
		return strings.Join(lines, "\n")
	}

	lines = append(lines, fmt.Sprintf("**Supply Chain Analysis:** %d candidates evaluated", len(state.Exim)), "")

	drugs := make([]string, 0, len(state.Exim))
	for drug := range state.Exim {
		drugs = append(drugs, drug)
	}
	sort.Strings(drugs)
	for i, drug := range drugs {
		if i == 3 {
			break
		}
		assessment := state.Exim[drug]
		lines = append(lines, fmt.Sprintf("**%s:**", drug))
		lines = append(lines, fmt.Sprintf("- Sourcing Signal: %s", assessment.Signal))
		if assessment.ProxyCOGSUSD != nil {
			lines = append(lines, fmt.Sprintf("- Estimated COGS: $%.2f/dose", *assessment.ProxyCOGSUSD))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) recommendations(state *domain.RouteAState) string {
	lines := []string{"## Recommendations & Next Steps", ""}

	if len(state.Ranked) > 0 {
		lines = append(lines, "### Top Ranked Candidates", "")
		for i, ranked := range state.Ranked {
			lines = append(lines, fmt.Sprintf("%d. **%s** (Final Score: %.1f/100, %s)",
				i+1, ranked.DrugName, ranked.FinalScore, ranked.Tier))
		}
		lines = append(lines, "")

		lines = append(lines, "### Recommended Actions", "")
		for i, ranked := range state.Ranked {
			if i == 3 {
				break
			}
			lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, ranked.DrugName, ranked.Recommendation))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) footer() string {
	return fmt.Sprintf(`## Report Metadata

- **Generated:** %s
- **Generator:** drug-repurposing-server

*This report is confidential and intended for authorized recipients only.*`,
		r.now().UTC().Format(time.RFC3339))
}

func phaseText(phase int) string {
	switch {
	case phase == 4:
		return "Approved"
	case phase > 0:
		return fmt.Sprintf("Phase %d", phase)
	default:
		return "Unknown"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedPatentKeys(m map[string]domain.PatentOutput) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstN(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}
