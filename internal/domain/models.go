package domain

import "time"

// ============================================================================
// Disease resolution
// ============================================================================

// DiseaseContext is the resolved identity of the query disease. It is built
// once by the disease resolver and immutable afterwards.
type DiseaseContext struct {
	OriginalQuery   string          `json:"original_query"`
	CorrectedName   string          `json:"corrected_name"`
	EFOID           string          `json:"efo_id,omitempty"`
	MONDOID         string          `json:"mondo_id,omitempty"`
	MeSHID          string          `json:"mesh_id,omitempty"`
	Description     string          `json:"description,omitempty"`
	TherapeuticArea TherapeuticArea `json:"therapeutic_area"`
	IsCancer        bool            `json:"is_cancer"`
	IsAutoimmune    bool            `json:"is_autoimmune"`
	IsInfectious    bool            `json:"is_infectious"`
	IsRare          bool            `json:"is_rare"`
	IsGenetic       bool            `json:"is_genetic"`
	Synonyms        []string        `json:"synonyms,omitempty"`
	ParentTerms     []string        `json:"parent_terms,omitempty"`
	Confidence      float64         `json:"confidence"`
	OLSMatchScore   float64         `json:"ols_match_score"`
}

// PrimaryID returns the best stable ontology identifier for graph keys
func (d *DiseaseContext) PrimaryID() string {
	if d.EFOID != "" {
		return d.EFOID
	}
	if d.MONDOID != "" {
		return d.MONDOID
	}
	return d.MeSHID
}

// Resolved reports whether the context carries at least one ontology ID
func (d *DiseaseContext) Resolved() bool {
	return d != nil && (d.EFOID != "" || d.MONDOID != "" || d.MeSHID != "")
}

// ============================================================================
// Targets
// ============================================================================

// Target is a disease-associated gene that survived discovery and validation
type Target struct {
	Symbol            string   `json:"symbol"`
	EnsemblID         string   `json:"ensembl_id"`
	UniProtAcc        string   `json:"uniprot_acc,omitempty"`
	Biotype           string   `json:"biotype"`
	CompositeScore    float64  `json:"composite_score"`
	OpenTargetsScore  float64  `json:"opentargets_score"`
	EvidenceDiversity int      `json:"evidence_diversity"`
	Tractability      float64  `json:"tractability"`
	ValidationScore   float64  `json:"validation_score"`
	MechanismScore    float64  `json:"mechanism_score"`
	PathwayJaccard    float64  `json:"pathway_jaccard"`
	PathwayIDs        []string `json:"pathway_ids,omitempty"`
	SafetyNet         bool     `json:"safety_net,omitempty"`
}

// ============================================================================
// Repurposing candidates
// ============================================================================

// RepurposingCandidate is a drug proposed for the query disease whose
// original indication is a different disease.
type RepurposingCandidate struct {
	DrugID             string   `json:"drug_id"`
	DrugName           string   `json:"drug_name"`
	Phase              int      `json:"phase"`
	DrugType           string   `json:"drug_type"`
	MolecularTarget    string   `json:"molecular_target"`
	TargetProtein      string   `json:"target_protein,omitempty"`
	OriginalIndication string   `json:"original_indication"`
	ProposedIndication string   `json:"proposed_indication"`
	MechanismOfAction  string   `json:"mechanism_of_action,omitempty"`
	DiseasePathwayLink string   `json:"disease_pathway_link"`
	SharedPathways     []string `json:"shared_pathways,omitempty"`
	PathwayOverlap     float64  `json:"pathway_overlap_score"`
	OpenTargetsScore   float64  `json:"opentargets_score"`
	MechanisticConf    float64  `json:"mechanistic_confidence"`
	NoveltyScore       float64  `json:"novelty_score"`

	InVitroExperiments []string `json:"in_vitro_experiments,omitempty"`
	InVivoExperiments  []string `json:"in_vivo_experiments,omitempty"`
	Biomarkers         []string `json:"biomarkers_to_measure,omitempty"`

	SafetyConcerns   []string `json:"safety_concerns,omitempty"`
	Contraindication []string `json:"contraindications,omitempty"`
	PKConsiderations []string `json:"pk_considerations,omitempty"`

	Feasibility Feasibility `json:"repurposing_feasibility"`

	HasClinicalEvidence bool `json:"has_clinical_evidence"`
	EvidenceCount       int  `json:"evidence_count"`

	Validation *ValidationResult `json:"validation_result,omitempty"`
	Scores     *ScoreBreakdown   `json:"score_breakdown,omitempty"`
}

// ValidationResult carries an evidence validation verdict
type ValidationResult struct {
	Decision       ValidationDecision `json:"decision"`
	Confidence     float64            `json:"confidence"`
	Reasoning      string             `json:"reasoning"`
	EvidenceScores map[string]float64 `json:"evidence_scores,omitempty"`
	Flags          []string           `json:"flags,omitempty"`
}

// ScoreBreakdown is the transparent multi-axis score of a candidate.
// Every sub-score is bounded to [0,100].
type ScoreBreakdown struct {
	CompositeScore     float64  `json:"composite_score"`
	ClinicalPhaseScore float64  `json:"clinical_phase_score"`
	EvidenceScore      float64  `json:"evidence_score"`
	MechanismScore     float64  `json:"mechanism_score"`
	SafetyScore        float64  `json:"safety_score"`
	NoveltyScore       float64  `json:"novelty_score"`
	Confidence         float64  `json:"confidence"`
	Reasoning          string   `json:"reasoning,omitempty"`
	Flags              []string `json:"flags,omitempty"`
}

// RankedCandidate is a candidate with its final rank within a run
type RankedCandidate struct {
	DrugID             string  `json:"drug_id"`
	DrugName           string  `json:"drug_name"`
	Rank               int     `json:"rank"`
	CompositeScore     float64 `json:"composite_score"`
	NoveltyScore       float64 `json:"novelty_score"`
	FeasibilityScore   float64 `json:"feasibility_score"`
	FinalScore         float64 `json:"final_score"`
	Tier               Tier    `json:"tier"`
	Recommendation     string  `json:"recommendation"`
	OriginalIndication string  `json:"original_indication,omitempty"`
	Phase              int     `json:"phase"`
}

// ============================================================================
// Evidence containers
// ============================================================================

// Citation is a provenance pointer for collected evidence
type Citation struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

// TrialInfo is a single clinical trial hit for a candidate
type TrialInfo struct {
	NCTID   string `json:"nct_id"`
	Phase   string `json:"phase,omitempty"`
	Status  string `json:"status"`
	Sponsor string `json:"sponsor"`
	URL     string `json:"url"`
}

// CrowdingFlag marks a disease with an unusually busy trial landscape
type CrowdingFlag struct {
	Disease    string `json:"disease"`
	Flag       string `json:"flag"`
	TrialCount int    `json:"trial_count"`
}

// TrialsOutput is the clinical trials agent result
type TrialsOutput struct {
	TotalTrials     int                    `json:"total_trials"`
	PhaseBreakdown  map[string]int         `json:"phase_breakdown,omitempty"`
	TopSponsors     []string               `json:"top_sponsors,omitempty"`
	CandidateTrials map[string][]TrialInfo `json:"candidate_trials"`
	CrowdingFlags   []CrowdingFlag         `json:"crowding_flags,omitempty"`
}

// PatentHit is one patent-related search result
type PatentHit struct {
	PatentID string `json:"patent_id"`
	Title    string `json:"title"`
	Date     string `json:"date,omitempty"`
	Assignee string `json:"assignee"`
	URL      string `json:"url"`
}

// PatentOutput is the patent landscape agent result for one candidate
type PatentOutput struct {
	Candidate    string         `json:"candidate"`
	RiskTier     PatentRiskTier `json:"risk_tier"`
	TopAssignees []string       `json:"top_assignees,omitempty"`
	KeyPatents   []PatentHit    `json:"key_patents,omitempty"`
	Notes        string         `json:"notes,omitempty"`
}

// EximOutput is the supply-chain agent result for one candidate
type EximOutput struct {
	Candidate           string         `json:"candidate"`
	Signal              SourcingSignal `json:"sourcing_signal"`
	TopPartnerCountries []string       `json:"top_partner_countries,omitempty"`
	DependencyFlags     []string       `json:"dependency_flags,omitempty"`
	ProxyCOGSUSD        *float64       `json:"proxy_cogs_usd,omitempty"`
	Notes               string         `json:"notes,omitempty"`
}

// Article is a fetched literature record
type Article struct {
	PMID          string `json:"pmid"`
	Title         string `json:"title"`
	Abstract      string `json:"abstract,omitempty"`
	Year          string `json:"year,omitempty"`
	CitationCount int    `json:"citation_count,omitempty"`
}

// TargetEvidence is a literature-supported therapeutic target
type TargetEvidence struct {
	TargetName         string   `json:"target_name"`
	ConfidenceScore    string   `json:"confidence_score"`
	SupportingEvidence string   `json:"supporting_evidence,omitempty"`
	SourcePMIDs        []string `json:"source_pmids,omitempty"`
	CitationCount      int      `json:"citation_count,omitempty"`
}

// LiteratureOutput is the literature agent result
type LiteratureOutput struct {
	PathophysiologySummary string           `json:"pathophysiology_summary,omitempty"`
	ValidatedTargets       []TargetEvidence `json:"validated_targets,omitempty"`
	SuggestedTargets       []string         `json:"suggested_targets,omitempty"`
	KeyReviewArticles      []Citation       `json:"key_review_articles,omitempty"`
	Citations              []Citation       `json:"citations,omitempty"`
	Articles               []Article        `json:"pubmed_articles,omitempty"`
}

// SOCDetail is one standard-of-care or cross-indication drug record
type SOCDetail struct {
	DrugName       string `json:"drug_name"`
	LineOfTherapy  string `json:"line_of_therapy"`
	SourceDocument string `json:"source_document,omitempty"`
	ApprovalStatus string `json:"approval_status,omitempty"`
}

// UnmetNeedDetail is one identified treatment gap
type UnmetNeedDetail struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	SourceQuote string `json:"source_quote,omitempty"`
	Severity    string `json:"severity"`
}

// WebIntelOutput is the web intelligence agent result
type WebIntelOutput struct {
	StandardOfCare   []SOCDetail         `json:"standard_of_care,omitempty"`
	UnmetNeeds       []UnmetNeedDetail   `json:"unmet_needs,omitempty"`
	KeyMarketPlayers []string            `json:"key_market_players,omitempty"`
	Citations        []Citation          `json:"citations,omitempty"`
	Keywords         map[string][]string `json:"keywords,omitempty"`
}

// ============================================================================
// Run lifecycle
// ============================================================================

// RunRequest is the validated submission payload for a pipeline run
type RunRequest struct {
	Indication       string `json:"indication"`
	Geography        string `json:"geography"`
	MinPhase         int    `json:"min_phase,omitempty"`
	OralOnly         bool   `json:"oral_only,omitempty"`
	ExcludeBiologics bool   `json:"exclude_biologics,omitempty"`
	StrictFTO        bool   `json:"strict_fto,omitempty"`
}

// RunMetadata is the durable per-run record. Mutated only by the run store.
type RunMetadata struct {
	RunID           string     `json:"run_id"`
	Indication      string     `json:"indication"`
	Geography       string     `json:"geography"`
	Status          RunStatus  `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ReportPath      string     `json:"report_path,omitempty"`
	CandidatesFound int        `json:"candidates_found"`
	TrialsCount     int        `json:"trials_count"`
}

// DiscoveryStats summarizes the candidate funnel of one run
type DiscoveryStats struct {
	TotalDiscovered       int `json:"total_discovered"`
	Validated             int `json:"validated"`
	Rejected              int `json:"rejected"`
	FinalCount            int `json:"final_count"`
	DirectDrugs           int `json:"direct_drugs"`
	TargetBasedDrugs      int `json:"target_based_drugs"`
	RepurposingFiltered   int `json:"repurposing_filtered"`
	RepurposingCandidates int `json:"repurposing_candidates"`
}
