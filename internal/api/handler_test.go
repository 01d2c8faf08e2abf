package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/logging"
	"ContentOrchestrator/internal/usecase"
)

type fakeRunner struct {
	mu      sync.Mutex
	release chan struct{}
	opts    []usecase.BatchOptions
	last    *usecase.Report
	busy    bool
}

func (f *fakeRunner) BatchRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func (f *fakeRunner) ProcessBatch(_ context.Context, opts usecase.BatchOptions) usecase.Report {
	if f.release != nil {
		<-f.release
	}
	report := usecase.Report{RunID: opts.RunID, TotalTasks: 2, Successful: 2, SuccessRate: 1}
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.last = &report
	f.mu.Unlock()
	return report
}

func (f *fakeRunner) LastReport() (usecase.Report, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return usecase.Report{}, false
	}
	return *f.last, true
}

func setup(runner *fakeRunner, notify func(context.Context, usecase.Report)) (*Handler, http.Handler) {
	h := NewHandler(Deps{Base: context.Background(), Runner: runner, Notify: notify, Logger: logging.Discard()})
	return h, NewRouter(h)
}

func TestHealthCheck(t *testing.T) {
	_, router := setup(&fakeRunner{}, nil)

	req, _ := http.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestStartBatchRunsAsync(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	var notified []usecase.Report
	var nmu sync.Mutex
	h, router := setup(runner, func(_ context.Context, r usecase.Report) {
		nmu.Lock()
		notified = append(notified, r)
		nmu.Unlock()
	})

	body, _ := json.Marshal(StartBatchRequest{Priority: "high", MaxTasks: 3})
	req, _ := http.NewRequest("POST", "/batches", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	var started Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &started))
	assert.NotEmpty(t, started.ID)
	assert.Equal(t, RunRunning, started.Status)

	req, _ = http.NewRequest("GET", "/batches/"+started.ID, nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"running"`)

	close(runner.release)
	h.Wait()

	req, _ = http.NewRequest("GET", "/batches/"+started.ID, nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	var finished Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &finished))
	assert.Equal(t, RunFinished, finished.Status)
	require.NotNil(t, finished.Report)
	assert.Equal(t, started.ID, finished.Report.RunID)

	require.Len(t, runner.opts, 1)
	assert.Equal(t, started.ID, runner.opts[0].RunID)
	assert.Equal(t, 3, runner.opts[0].MaxTasks)
	require.NotNil(t, runner.opts[0].Priority)
	assert.Equal(t, domain.PriorityHigh, *runner.opts[0].Priority)

	nmu.Lock()
	defer nmu.Unlock()
	assert.Len(t, notified, 1)
}

func TestStartBatchConflictsWhileRunning(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	h, router := setup(runner, nil)

	req, _ := http.NewRequest("POST", "/batches", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)

	close(runner.release)
	h.Wait()

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	h.Wait()
	assert.Len(t, runner.opts, 2)
}

func TestStartBatchConflictsWithScheduledRun(t *testing.T) {
	runner := &fakeRunner{busy: true}
	_, router := setup(runner, nil)

	req, _ := http.NewRequest("POST", "/batches", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, runner.opts)
}

func TestHealthCheckReportsComponents(t *testing.T) {
	healthy := true
	h := NewHandler(Deps{
		Runner: &fakeRunner{},
		Health: func(context.Context) usecase.HealthReport {
			report := usecase.HealthReport{Status: usecase.HealthOK, Providers: 1, Components: map[string]usecase.ComponentHealth{
				"task_source": {Status: usecase.HealthOK},
			}}
			if !healthy {
				report.Status = usecase.HealthDown
				report.Components["publisher"] = usecase.ComponentHealth{Status: usecase.HealthDown, Error: "refused"}
			}
			return report
		},
		Logger: logging.Discard(),
	})
	router := NewRouter(h)

	req, _ := http.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"task_source":{"status":"ok"}`)

	healthy = false
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var report usecase.HealthReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, "refused", report.Components["publisher"].Error)
}

func TestStartBatchEmptyBody(t *testing.T) {
	runner := &fakeRunner{}
	h, router := setup(runner, nil)

	req, _ := http.NewRequest("POST", "/batches", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	h.Wait()

	assert.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, runner.opts, 1)
	assert.Nil(t, runner.opts[0].Priority)
}

func TestStartBatchRejectsBadInput(t *testing.T) {
	_, router := setup(&fakeRunner{}, nil)

	for _, body := range []string{"{not json", `{"max_tasks":-1}`} {
		req, _ := http.NewRequest("POST", "/batches", strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestGetBatchNotFound(t *testing.T) {
	_, router := setup(&fakeRunner{}, nil)

	req, _ := http.NewRequest("GET", "/batches/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLatestReport(t *testing.T) {
	runner := &fakeRunner{}
	_, router := setup(runner, nil)

	req, _ := http.NewRequest("GET", "/report", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	runner.ProcessBatch(context.Background(), usecase.BatchOptions{RunID: "r-9"})

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var report usecase.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, "r-9", report.RunID)
	assert.Equal(t, 2, report.Successful)
}

func TestMetricsEndpoint(t *testing.T) {
	_, router := setup(&fakeRunner{}, nil)

	req, _ := http.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
