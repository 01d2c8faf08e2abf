package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/usecase"
)

// BatchRunner is the orchestrator surface the API drives.
type BatchRunner interface {
	ProcessBatch(ctx context.Context, opts usecase.BatchOptions) usecase.Report
	LastReport() (usecase.Report, bool)
	BatchRunning() bool
}

const (
	RunRunning  = "running"
	RunFinished = "finished"
)

// Run is the externally visible state of a triggered batch.
type Run struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	StartedAt time.Time       `json:"started_at"`
	Report    *usecase.Report `json:"report,omitempty"`
}

// Deps wires the handler. Base bounds triggered batches so they outlive the request
// that started them; Notify and Health are optional.
type Deps struct {
	Base   context.Context
	Runner BatchRunner
	Notify func(context.Context, usecase.Report)
	Health func(context.Context) usecase.HealthReport
	Logger *slog.Logger
}

type Handler struct {
	runner BatchRunner
	base   context.Context
	notify func(context.Context, usecase.Report)
	health func(context.Context) usecase.HealthReport
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]*Run
	wg   sync.WaitGroup
}

func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := deps.Base
	if base == nil {
		base = context.Background()
	}
	return &Handler{
		runner: deps.Runner,
		base:   base,
		notify: deps.Notify,
		health: deps.Health,
		logger: logger.With("component", "api"),
		runs:   map[string]*Run{},
	}
}

type StartBatchRequest struct {
	Priority string `json:"priority"`
	MaxTasks int    `json:"max_tasks"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) StartBatch(w http.ResponseWriter, r *http.Request) {
	var req StartBatchRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.MaxTasks < 0 {
		respondError(w, http.StatusBadRequest, "max_tasks must not be negative")
		return
	}

	opts := usecase.BatchOptions{RunID: uuid.New().String(), MaxTasks: req.MaxTasks}
	if req.Priority != "" {
		p := domain.ParsePriority(req.Priority)
		opts.Priority = &p
	}

	run := &Run{ID: opts.RunID, Status: RunRunning, StartedAt: time.Now()}
	h.mu.Lock()
	if h.busy() {
		h.mu.Unlock()
		respondError(w, http.StatusConflict, "a batch is already running")
		return
	}
	h.runs[run.ID] = run
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		report := h.runner.ProcessBatch(h.base, opts)

		h.mu.Lock()
		run.Status = RunFinished
		run.Report = &report
		h.mu.Unlock()

		h.logger.Info("triggered batch finished", "run_id", run.ID, "total", report.TotalTasks)
		if h.notify != nil {
			h.notify(h.base, report)
		}
	}()

	respondJSON(w, http.StatusAccepted, h.snapshot(run))
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	run, ok := h.runs[id]
	h.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "batch not found")
		return
	}

	respondJSON(w, http.StatusOK, h.snapshot(run))
}

func (h *Handler) LatestReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.runner.LastReport()
	if !ok {
		respondError(w, http.StatusNotFound, "no batch has finished yet")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": usecase.HealthOK})
		return
	}
	report := h.health(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, report)
}

// Wait blocks until every triggered batch has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// busy must be called with h.mu held.
func (h *Handler) busy() bool {
	for _, run := range h.runs {
		if run.Status == RunRunning {
			return true
		}
	}
	return h.runner.BatchRunning()
}

func (h *Handler) snapshot(run *Run) Run {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *run
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
