// Package runstore persists pipeline runs on disk. Each run owns one
// directory under the data root holding metadata.json, state.json, and
// report.md. The orchestrator is the only writer for a live run, so
// writes are last-write-wins with no cross-process locking. An optional
// sqlite catalog mirrors metadata for fast listing; catalog failures
// degrade to a directory scan.
package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

const (
	metadataFile = "metadata.json"
	stateFile    = "state.json"
	reportFile   = "report.md"
)

// Store is the filesystem-backed run store
type Store struct {
	logger *logrus.Logger
	root   string
	index  *Index

	// mu guards metadata read-modify-write cycles
	mu sync.Mutex
}

// NewStore creates a run store rooted at dir. index may be nil.
func NewStore(logger *logrus.Logger, dir string, index *Index) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run data directory: %w", err)
	}
	return &Store{logger: logger, root: dir, index: index}, nil
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.root, runID)
}

// CreateRun allocates a run ID, creates the run directory, and persists
// the initial metadata with status QUEUED.
func (s *Store) CreateRun(req domain.RunRequest) (*domain.RunMetadata, error) {
	meta := &domain.RunMetadata{
		RunID:      uuid.NewString(),
		Indication: req.Indication,
		Geography:  req.Geography,
		Status:     domain.RunQueued,
		CreatedAt:  time.Now().UTC(),
	}

	if err := os.MkdirAll(s.runDir(meta.RunID), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	if err := writeJSON(filepath.Join(s.runDir(meta.RunID), metadataFile), meta); err != nil {
		return nil, err
	}
	s.mirror(meta)
	return meta, nil
}

// UpdateMetadata applies a mutation to the stored metadata and persists
// the result. The run directory is the source of truth; the catalog is
// refreshed best-effort.
func (s *Store) UpdateMetadata(runID string, mutate func(*domain.RunMetadata)) (*domain.RunMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.GetMetadata(runID)
	if err != nil {
		return nil, err
	}
	mutate(meta)
	if err := writeJSON(filepath.Join(s.runDir(runID), metadataFile), meta); err != nil {
		return nil, err
	}
	s.mirror(meta)
	return meta, nil
}

// GetMetadata loads the metadata record for a run
func (s *Store) GetMetadata(runID string) (*domain.RunMetadata, error) {
	var meta domain.RunMetadata
	if err := readJSON(filepath.Join(s.runDir(runID), metadataFile), &meta); err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrRunNotFound
		}
		return nil, err
	}
	return &meta, nil
}

// SaveState snapshots the full pipeline state for a run
func (s *Store) SaveState(state *domain.RouteAState) error {
	return writeJSON(filepath.Join(s.runDir(state.RunID), stateFile), state)
}

// LoadState restores the latest pipeline state snapshot
func (s *Store) LoadState(runID string) (*domain.RouteAState, error) {
	var state domain.RouteAState
	if err := readJSON(filepath.Join(s.runDir(runID), stateFile), &state); err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrRunNotFound
		}
		return nil, err
	}
	return &state, nil
}

// SaveReport writes the rendered Markdown report and returns its path
func (s *Store) SaveReport(runID string, markdown string) (string, error) {
	path := filepath.Join(s.runDir(runID), reportFile)
	if err := atomicWrite(path, []byte(markdown)); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// ReportPath returns where the report for a run lives, whether or not it
// has been rendered yet.
func (s *Store) ReportPath(runID string) string {
	return filepath.Join(s.runDir(runID), reportFile)
}

// ReadReport returns the rendered report, or ErrReportNotReady when the
// run exists without one.
func (s *Store) ReadReport(runID string) (string, error) {
	if _, err := s.GetMetadata(runID); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(s.ReportPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.ErrReportNotReady
		}
		return "", err
	}
	return string(raw), nil
}

// ListRuns returns metadata for the most recent runs, newest first. The
// sqlite catalog answers when available; otherwise the run directories
// are scanned.
func (s *Store) ListRuns(limit int) ([]domain.RunMetadata, error) {
	if limit <= 0 {
		limit = 100
	}
	if s.index != nil {
		runs, err := s.index.List(limit)
		if err == nil {
			return runs, nil
		}
		s.logger.WithError(err).Warn("Run catalog query failed, falling back to directory scan")
	}
	return s.scanRuns(limit)
}

func (s *Store) scanRuns(limit int) ([]domain.RunMetadata, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run directory: %w", err)
	}

	var runs []domain.RunMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.GetMetadata(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// mirror refreshes the catalog row for a run. Catalog trouble is logged
// and otherwise ignored.
func (s *Store) mirror(meta *domain.RunMetadata) {
	if s.index == nil {
		return
	}
	if err := s.index.Upsert(meta); err != nil {
		s.logger.WithError(err).WithField("run_id", meta.RunID).Warn("Run catalog update failed")
	}
}

func writeJSON(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := atomicWrite(path, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// atomicWrite lands the content through a rename so a crashed writer
// never leaves a half-written snapshot behind.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
