package domain

// RunStatus represents the lifecycle state of a pipeline run
type RunStatus string

const (
	RunQueued    RunStatus = "QUEUED"
	RunRunning   RunStatus = "RUNNING"
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
)

// TherapeuticArea is the closed tag set used to classify diseases
type TherapeuticArea string

const (
	AreaOncology         TherapeuticArea = "oncology"
	AreaImmunological    TherapeuticArea = "immunological"
	AreaNeurological     TherapeuticArea = "neurological"
	AreaCardiovascular   TherapeuticArea = "cardiovascular"
	AreaMetabolic        TherapeuticArea = "metabolic"
	AreaInfectious       TherapeuticArea = "infectious"
	AreaRespiratory      TherapeuticArea = "respiratory"
	AreaGastrointestinal TherapeuticArea = "gastrointestinal"
	AreaDermatological   TherapeuticArea = "dermatological"
	AreaRareDiseases     TherapeuticArea = "rare_diseases"
	AreaHematological    TherapeuticArea = "hematological"
	AreaUrological       TherapeuticArea = "urological"
	AreaMusculoskeletal  TherapeuticArea = "musculoskeletal"
	AreaOphthalmology    TherapeuticArea = "ophthalmology"
	AreaPsychiatric      TherapeuticArea = "psychiatric"
	AreaEndocrinology    TherapeuticArea = "endocrinology"
	AreaRenalNephrology  TherapeuticArea = "renal_nephrology"
	AreaHepatology       TherapeuticArea = "hepatology"
	AreaWomenHealthObgyn TherapeuticArea = "women_health_obgyn"
	AreaPediatrics       TherapeuticArea = "pediatrics"
	AreaGeriatrics       TherapeuticArea = "geriatrics"
	AreaPainPalliative   TherapeuticArea = "pain_palliative"
	AreaAllergy          TherapeuticArea = "allergy"
	AreaAddiction        TherapeuticArea = "addiction_substance_use"
	AreaTransplantation  TherapeuticArea = "transplantation_immunosuppression"
	AreaDentalOralHealth TherapeuticArea = "dental_oral_health"
	AreaOncologySupport  TherapeuticArea = "oncology_supportive_care"
	AreaToxicology       TherapeuticArea = "toxicology_overdose"
	AreaUnknown          TherapeuticArea = "unknown"
)

// Tier is the coarse priority label assigned to a ranked candidate
type Tier string

const (
	TierHigh   Tier = "High Priority"
	TierMedium Tier = "Medium Priority"
	TierLow    Tier = "Low Priority"
)

// Feasibility grades how practical a repurposing attempt is
type Feasibility string

const (
	FeasibilityHigh   Feasibility = "HIGH"
	FeasibilityMedium Feasibility = "MEDIUM"
	FeasibilityLow    Feasibility = "LOW"
)

// PatentRiskTier summarizes freedom-to-operate risk for a candidate
type PatentRiskTier string

const (
	PatentRiskLow     PatentRiskTier = "LOW"
	PatentRiskMedium  PatentRiskTier = "MEDIUM"
	PatentRiskHigh    PatentRiskTier = "HIGH"
	PatentRiskUnknown PatentRiskTier = "UNKNOWN"
)

// SourcingSignal summarizes API manufacturing supply strength
type SourcingSignal string

const (
	SourcingStrong   SourcingSignal = "STRONG"
	SourcingModerate SourcingSignal = "MODERATE"
	SourcingWeak     SourcingSignal = "WEAK"
	SourcingUnknown  SourcingSignal = "UNKNOWN"
)

// ValidationDecision is the outcome of evidence validation
type ValidationDecision string

const (
	DecisionKeep   ValidationDecision = "KEEP"
	DecisionReject ValidationDecision = "REJECT"
	DecisionReview ValidationDecision = "REVIEW"
)

// RankingStrategy selects the weighting mix used by the ranker
type RankingStrategy string

const (
	StrategyScoreOnly       RankingStrategy = "score_only"
	StrategyBalanced        RankingStrategy = "balanced"
	StrategyNoveltyFocused  RankingStrategy = "novelty_focused"
	StrategyClinicalFocused RankingStrategy = "clinical_focused"
)

// Stage identifies a node of the pipeline graph
type Stage string

const (
	StageNormalizeInput Stage = "normalize_input"
	StageWebIntel       Stage = "web_intel"
	StageLiterature     Stage = "literature"
	StageKG             Stage = "kg"
	StageExpandSearch   Stage = "expand_search"
	StageClinicalTrials Stage = "clinical_trials"
	StagePatents        Stage = "patents"
	StageExim           Stage = "exim"
	StageRankSelect     Stage = "rank_and_select"
	StageGenerateReport Stage = "generate_report"
	StageEnd            Stage = "end"
)

// IsValid reports whether the tag is a member of the closed set
func (a TherapeuticArea) IsValid() bool {
	switch a {
	case AreaOncology, AreaImmunological, AreaNeurological, AreaCardiovascular,
		AreaMetabolic, AreaInfectious, AreaRespiratory, AreaGastrointestinal,
		AreaDermatological, AreaRareDiseases, AreaHematological, AreaUrological,
		AreaMusculoskeletal, AreaOphthalmology, AreaPsychiatric, AreaEndocrinology,
		AreaRenalNephrology, AreaHepatology, AreaWomenHealthObgyn, AreaPediatrics,
		AreaGeriatrics, AreaPainPalliative, AreaAllergy, AreaAddiction,
		AreaTransplantation, AreaDentalOralHealth, AreaOncologySupport,
		AreaToxicology, AreaUnknown:
		return true
	}
	return false
}

// IsTerminal reports whether a run status will not change again
func (s RunStatus) IsTerminal() bool {
	return s == RunSucceeded || s == RunFailed
}
