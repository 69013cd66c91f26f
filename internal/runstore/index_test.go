package runstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-repurposing-server/internal/domain"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	index, err := OpenIndex(discardLogger(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })
	return index
}

func TestIndex_UpsertAndList(t *testing.T) {
	index := newTestIndex(t)
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	older := &domain.RunMetadata{
		RunID: "run-1", Indication: "vitiligo", Geography: "US",
		Status: domain.RunSucceeded, CreatedAt: base,
	}
	newer := &domain.RunMetadata{
		RunID: "run-2", Indication: "lupus", Geography: "EU",
		Status: domain.RunRunning, CreatedAt: base.Add(time.Minute),
	}
	require.NoError(t, index.Upsert(older))
	require.NoError(t, index.Upsert(newer))

	runs, err := index.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, "run-1", runs[1].RunID)
	assert.Equal(t, domain.RunSucceeded, runs[1].Status)
	assert.True(t, runs[1].CreatedAt.Equal(base))
	assert.Nil(t, runs[0].StartedAt)
}

func TestIndex_UpsertReplacesRow(t *testing.T) {
	index := newTestIndex(t)
	created := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	started := created.Add(time.Second)
	completed := created.Add(time.Minute)

	meta := &domain.RunMetadata{
		RunID: "run-1", Indication: "vitiligo", Geography: "US",
		Status: domain.RunQueued, CreatedAt: created,
	}
	require.NoError(t, index.Upsert(meta))

	meta.Status = domain.RunSucceeded
	meta.StartedAt = &started
	meta.CompletedAt = &completed
	meta.CandidatesFound = 12
	meta.TrialsCount = 34
	meta.ReportPath = "/data/runs/run-1/report.md"
	require.NoError(t, index.Upsert(meta))

	runs, err := index.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	row := runs[0]
	assert.Equal(t, domain.RunSucceeded, row.Status)
	assert.Equal(t, 12, row.CandidatesFound)
	assert.Equal(t, 34, row.TrialsCount)
	assert.Equal(t, "/data/runs/run-1/report.md", row.ReportPath)
	require.NotNil(t, row.StartedAt)
	assert.True(t, row.StartedAt.Equal(started))
	require.NotNil(t, row.CompletedAt)
	assert.True(t, row.CompletedAt.Equal(completed))
}

func TestIndex_ListRespectsLimit(t *testing.T) {
	index := newTestIndex(t)
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, index.Upsert(&domain.RunMetadata{
			RunID:      string(rune('a' + i)),
			Indication: "x", Geography: "US",
			Status: domain.RunQueued, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := index.List(3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "e", runs[0].RunID)
}

func TestStore_MirrorsMetadataToCatalog(t *testing.T) {
	index := newTestIndex(t)
	store, err := NewStore(discardLogger(), t.TempDir(), index)
	require.NoError(t, err)

	meta, err := store.CreateRun(domain.RunRequest{Indication: "psoriasis", Geography: "US"})
	require.NoError(t, err)
	_, err = store.UpdateMetadata(meta.RunID, func(m *domain.RunMetadata) {
		m.Status = domain.RunRunning
	})
	require.NoError(t, err)

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, meta.RunID, runs[0].RunID)
	assert.Equal(t, domain.RunRunning, runs[0].Status)
}
