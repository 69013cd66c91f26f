package runstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/drug-repurposing-server/internal/domain"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id           TEXT PRIMARY KEY,
	indication       TEXT NOT NULL,
	geography        TEXT NOT NULL,
	status           TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	started_at       TEXT,
	completed_at     TEXT,
	error_message    TEXT NOT NULL DEFAULT '',
	report_path      TEXT NOT NULL DEFAULT '',
	candidates_found INTEGER NOT NULL DEFAULT 0,
	trials_count     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Index is the sqlite catalog mirroring run metadata for listing. The
// run directories stay authoritative; the catalog can be rebuilt from
// them at any time.
type Index struct {
	logger *logrus.Logger
	db     *sql.DB
}

// OpenIndex opens (and if needed creates) the catalog database
func OpenIndex(logger *logrus.Logger, path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run catalog: %w", err)
	}
	// The sqlite driver serializes writers; one connection avoids
	// SQLITE_BUSY churn under concurrent run updates.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create run catalog schema: %w", err)
	}
	return &Index{logger: logger, db: db}, nil
}

// newIndexWithDB wires an existing handle, used by tests
func newIndexWithDB(logger *logrus.Logger, db *sql.DB) *Index {
	return &Index{logger: logger, db: db}
}

// Close releases the catalog database handle
func (i *Index) Close() error {
	return i.db.Close()
}

// Upsert inserts or replaces the catalog row for a run
func (i *Index) Upsert(meta *domain.RunMetadata) error {
	_, err := i.db.Exec(`
		INSERT INTO runs (run_id, indication, geography, status, created_at, started_at,
			completed_at, error_message, report_path, candidates_found, trials_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			error_message = excluded.error_message,
			report_path = excluded.report_path,
			candidates_found = excluded.candidates_found,
			trials_count = excluded.trials_count`,
		meta.RunID, meta.Indication, meta.Geography, string(meta.Status),
		meta.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(meta.StartedAt), nullableTime(meta.CompletedAt),
		meta.ErrorMessage, meta.ReportPath, meta.CandidatesFound, meta.TrialsCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert run catalog row: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first
func (i *Index) List(limit int) ([]domain.RunMetadata, error) {
	rows, err := i.db.Query(`
		SELECT run_id, indication, geography, status, created_at, started_at,
			completed_at, error_message, report_path, candidates_found, trials_count
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run catalog: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunMetadata
	for rows.Next() {
		var meta domain.RunMetadata
		var status, createdAt string
		var startedAt, completedAt sql.NullString
		if err := rows.Scan(&meta.RunID, &meta.Indication, &meta.Geography, &status,
			&createdAt, &startedAt, &completedAt, &meta.ErrorMessage, &meta.ReportPath,
			&meta.CandidatesFound, &meta.TrialsCount); err != nil {
			return nil, fmt.Errorf("failed to scan run catalog row: %w", err)
		}
		meta.Status = domain.RunStatus(status)
		meta.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		meta.StartedAt = parseNullableTime(startedAt)
		meta.CompletedAt = parseNullableTime(completedAt)
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
