package domain

// RouteAState is the full typed snapshot of one pipeline run. The
// orchestrator owns it exclusively; agents receive read-only views plus a
// single write slot for their output. It is persisted at every stage
// boundary so a restarted runner can resume from the latest snapshot.
type RouteAState struct {
	RunID   string     `json:"run_id"`
	Request RunRequest `json:"request"`

	Stage  Stage     `json:"stage"`
	Status RunStatus `json:"status"`
	Error  string    `json:"error_message,omitempty"`

	Disease *DiseaseContext `json:"disease_context,omitempty"`

	WebIntel   *WebIntelOutput   `json:"web_intel,omitempty"`
	Literature *LiteratureOutput `json:"literature,omitempty"`

	Targets         []Target `json:"targets,omitempty"`
	DiseasePathways []string `json:"disease_pathways,omitempty"`
	// KnownDrugIDs are drugs already treating the query disease; they form
	// the exclusion set for the repurposing filter and the novelty bonus.
	KnownDrugIDs []string `json:"known_drug_ids,omitempty"`

	Candidates []RepurposingCandidate `json:"candidates,omitempty"`
	Stats      DiscoveryStats         `json:"stats"`

	// ExpandedSearch flags that the looser retry of target discovery has
	// already run; the retry executes at most once per run.
	ExpandedSearch bool `json:"expanded_search,omitempty"`

	Trials  *TrialsOutput           `json:"trials,omitempty"`
	Patents map[string]PatentOutput `json:"patents,omitempty"`
	Exim    map[string]EximOutput   `json:"exim,omitempty"`

	Ranked []RankedCandidate `json:"ranked_candidates,omitempty"`

	ReportPath string `json:"report_path,omitempty"`
}

// NewRouteAState seeds the state for a freshly accepted run
func NewRouteAState(runID string, req RunRequest) *RouteAState {
	if req.MinPhase == 0 {
		req.MinPhase = 1
	}
	return &RouteAState{
		RunID:   runID,
		Request: req,
		Stage:   StageNormalizeInput,
		Status:  RunRunning,
		Patents: make(map[string]PatentOutput),
		Exim:    make(map[string]EximOutput),
	}
}
