package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-repurposing-server/internal/domain"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type fakeStore struct {
	mu     sync.Mutex
	metas  map[string]*domain.RunMetadata
	states map[string]*domain.RouteAState
	report map[string]string
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		metas:  map[string]*domain.RunMetadata{},
		states: map[string]*domain.RouteAState{},
		report: map[string]string{},
	}
}

func (f *fakeStore) CreateRun(req domain.RunRequest) (*domain.RunMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	meta := &domain.RunMetadata{
		RunID:      "run-" + string(rune('0'+f.nextID)),
		Indication: req.Indication,
		Geography:  req.Geography,
		Status:     domain.RunQueued,
		CreatedAt:  time.Now().UTC(),
	}
	f.metas[meta.RunID] = meta
	return meta, nil
}

func (f *fakeStore) GetMetadata(runID string) (*domain.RunMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.metas[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return meta, nil
}

func (f *fakeStore) SaveState(state *domain.RouteAState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.RunID] = state
	return nil
}

func (f *fakeStore) LoadState(runID string) (*domain.RouteAState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return state, nil
}

func (f *fakeStore) ReadReport(runID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.metas[runID]; !ok {
		return "", domain.ErrRunNotFound
	}
	report, ok := f.report[runID]
	if !ok {
		return "", domain.ErrReportNotReady
	}
	return report, nil
}

func (f *fakeStore) ListRuns(limit int) ([]domain.RunMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var runs []domain.RunMetadata
	for _, meta := range f.metas {
		runs = append(runs, *meta)
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

type fakeExecutor struct {
	mu   sync.Mutex
	runs []string
	done chan struct{}
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{done: make(chan struct{}, 8)}
}

func (f *fakeExecutor) Execute(ctx context.Context, runID string) error {
	f.mu.Lock()
	f.runs = append(f.runs, runID)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeExecutor) launched(t *testing.T) []string {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline was not launched")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.runs...)
}

func newTestServer(store RunStore, exec Executor) *Server {
	cfg := domain.Config{Logging: domain.LoggingConfig{Level: "info"}}
	return NewServer(discardLogger(), cfg, store, exec)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSubmitRun_AcceptsAndLaunches(t *testing.T) {
	store := newFakeStore()
	exec := newFakeExecutor()
	server := newTestServer(store, exec)

	rec := doRequest(server, http.MethodPost, "/run",
		`{"indication":"vitiligo","geography":"US","min_phase":2}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	runID := resp["run_id"].(string)
	assert.NotEmpty(t, runID)
	assert.Equal(t, string(domain.RunQueued), resp["status"])
	assert.Contains(t, resp["message"], "vitiligo")

	// Initial state was seeded before launch
	state, err := store.LoadState(runID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageNormalizeInput, state.Stage)
	assert.Equal(t, 2, state.Request.MinPhase)

	assert.Equal(t, []string{runID}, exec.launched(t))
}

func TestSubmitRun_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing indication", `{"geography":"US"}`},
		{"missing geography", `{"indication":"vitiligo"}`},
		{"min_phase too high", `{"indication":"vitiligo","geography":"US","min_phase":5}`},
		{"min_phase negative", `{"indication":"vitiligo","geography":"US","min_phase":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(newFakeStore(), newFakeExecutor())
			rec := doRequest(server, http.MethodPost, "/run", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
}

func TestSubmitRun_MalformedJSON(t *testing.T) {
	server := newTestServer(newFakeStore(), newFakeExecutor())
	rec := doRequest(server, http.MethodPost, "/run", `{"indication":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRun_ReturnsMetadataView(t *testing.T) {
	store := newFakeStore()
	meta, err := store.CreateRun(domain.RunRequest{Indication: "vitiligo", Geography: "US"})
	require.NoError(t, err)
	meta.Status = domain.RunSucceeded
	meta.ReportPath = "/data/runs/" + meta.RunID + "/report.md"
	server := newTestServer(store, newFakeExecutor())

	rec := doRequest(server, http.MethodGet, "/run/"+meta.RunID, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, meta.RunID, resp["run_id"])
	assert.Equal(t, string(domain.RunSucceeded), resp["status"])
	assert.Equal(t, "/run/"+meta.RunID+"/report", resp["report_url"])
	_, hasError := resp["error_message"]
	assert.False(t, hasError)
}

func TestGetRun_NotFound(t *testing.T) {
	server := newTestServer(newFakeStore(), newFakeExecutor())
	rec := doRequest(server, http.MethodGet, "/run/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReport(t *testing.T) {
	store := newFakeStore()
	meta, err := store.CreateRun(domain.RunRequest{Indication: "vitiligo", Geography: "US"})
	require.NoError(t, err)
	server := newTestServer(store, newFakeExecutor())

	// Pending run: report not rendered yet
	rec := doRequest(server, http.MethodGet, "/run/"+meta.RunID+"/report", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store.report[meta.RunID] = "# Drug Repurposing Analysis Report"
	rec = doRequest(server, http.MethodGet, "/run/"+meta.RunID+"/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "# Drug Repurposing Analysis Report")
}

func TestGetState(t *testing.T) {
	store := newFakeStore()
	state := domain.NewRouteAState("run-1", domain.RunRequest{Indication: "vitiligo", Geography: "US"})
	state.Stage = domain.StageKG
	require.NoError(t, store.SaveState(state))
	server := newTestServer(store, newFakeExecutor())

	rec := doRequest(server, http.MethodGet, "/run/run-1/state", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.RouteAState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.StageKG, got.Stage)
}

func TestListRuns(t *testing.T) {
	store := newFakeStore()
	_, err := store.CreateRun(domain.RunRequest{Indication: "vitiligo", Geography: "US"})
	require.NoError(t, err)
	server := newTestServer(store, newFakeExecutor())

	rec := doRequest(server, http.MethodGet, "/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Runs  []domain.RunMetadata `json:"runs"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Runs, 1)

	rec = doRequest(server, http.MethodGet, "/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	server := newTestServer(newFakeStore(), newFakeExecutor())
	rec := doRequest(server, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestValidateRunRequest(t *testing.T) {
	assert.NoError(t, validateRunRequest(domain.RunRequest{Indication: "x", Geography: "US"}))
	assert.NoError(t, validateRunRequest(domain.RunRequest{Indication: "x", Geography: "US", MinPhase: 4}))
	assert.ErrorIs(t, validateRunRequest(domain.RunRequest{Geography: "US"}), domain.ErrValidation)
	assert.ErrorIs(t, validateRunRequest(domain.RunRequest{Indication: "x"}), domain.ErrValidation)
	assert.ErrorIs(t, validateRunRequest(domain.RunRequest{Indication: "x", Geography: "US", MinPhase: 9}), domain.ErrValidation)
}
