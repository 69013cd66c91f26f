package domain

import "errors"

// Sentinel errors surfaced across package boundaries. Collaborator outages
// are not represented here: clients degrade to structured empty values
// instead of returning errors to the pipeline.
var (
	// ErrRunNotFound means the run ID does not exist in the run store
	ErrRunNotFound = errors.New("run not found")

	// ErrReportNotReady means the run exists but no report has been rendered
	ErrReportNotReady = errors.New("report not ready")

	// ErrResolutionFailed means the disease could not be resolved to any
	// ontology identifier; the run aborts with status FAILED
	ErrResolutionFailed = errors.New("disease resolution failed")

	// ErrValidation marks a bad submission (empty indication or geography,
	// min_phase out of range); surfaced as HTTP 422
	ErrValidation = errors.New("validation error")

	// ErrCacheMiss is the advisory miss signal from the response cache
	ErrCacheMiss = errors.New("cache miss")
)
