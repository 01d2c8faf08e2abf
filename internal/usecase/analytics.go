package usecase

import (
	"sync"
	"time"

	"ContentOrchestrator/internal/domain"
)

const timelineLimit = 100

// TimelineEntry is one attempt in completion order.
type TimelineEntry struct {
	TaskID   string               `json:"task_id"`
	Attempt  int                  `json:"attempt"`
	Success  bool                 `json:"success"`
	Category domain.ErrorCategory `json:"category,omitempty"`
	Elapsed  time.Duration        `json:"elapsed"`
	At       time.Time            `json:"at"`
}

// ProviderSummary aggregates successful final outcomes per provider.
type ProviderSummary struct {
	Tasks      int           `json:"tasks"`
	AvgQuality float64       `json:"avg_quality"`
	AvgTime    time.Duration `json:"avg_time"`
}

// Analytics accumulates attempt results for one batch. Record is called by the
// single result collector; the mutex covers concurrent readers.
type Analytics struct {
	mu            sync.Mutex
	attempts      int
	writeFailures int
	order         []string
	final         map[string]domain.ProcessingResult
	retried       map[string]struct{}
	timeline      []TimelineEntry
}

func NewAnalytics() *Analytics {
	return &Analytics{
		final:   map[string]domain.ProcessingResult{},
		retried: map[string]struct{}{},
	}
}

// Record merges one attempt. final marks the task's last attempt in this batch.
func (a *Analytics) Record(res domain.ProcessingResult, final bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.attempts++
	if res.RetryCount > 0 {
		a.retried[res.TaskID] = struct{}{}
	}
	if res.Success && res.Category == domain.CategoryTaskSourceWrite {
		a.writeFailures++
	}

	a.timeline = append(a.timeline, TimelineEntry{
		TaskID:   res.TaskID,
		Attempt:  res.RetryCount,
		Success:  res.Success,
		Category: res.Category,
		Elapsed:  res.Elapsed,
		At:       res.FinishedAt,
	})
	if len(a.timeline) > timelineLimit {
		a.timeline = append(a.timeline[:0:0], a.timeline[len(a.timeline)-timelineLimit:]...)
	}

	if final {
		a.settle(res)
	}
}

// Finalize marks res as the task's outcome without counting another attempt.
func (a *Analytics) Finalize(res domain.ProcessingResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settle(res)
}

func (a *Analytics) settle(res domain.ProcessingResult) {
	if _, seen := a.final[res.TaskID]; !seen {
		a.order = append(a.order, res.TaskID)
	}
	a.final[res.TaskID] = res
}

// Fill copies the aggregates into r.
func (a *Analytics) Fill(r *Report) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r.Attempts = a.attempts
	r.Retried = len(a.retried)
	r.WriteFailures = a.writeFailures
	r.Timeline = append([]TimelineEntry(nil), a.timeline...)
	r.Providers = map[string]ProviderSummary{}
	r.ErrorBreakdown = map[domain.ErrorCategory]int{}
	r.Results = make([]domain.ProcessingResult, 0, len(a.order))

	var totalElapsed time.Duration
	var qualitySum float64
	providerQuality := map[string]float64{}
	providerTime := map[string]time.Duration{}

	for _, id := range a.order {
		res := a.final[id]
		r.Results = append(r.Results, res)
		totalElapsed += res.Elapsed

		if !res.Success {
			r.Failed++
			r.ErrorBreakdown[res.Category]++
			continue
		}
		r.Successful++
		qualitySum += res.Quality

		s := r.Providers[res.Provider]
		s.Tasks++
		r.Providers[res.Provider] = s
		providerQuality[res.Provider] += res.Quality
		providerTime[res.Provider] += res.Elapsed
	}

	r.TotalTasks = len(a.order)
	if r.TotalTasks > 0 {
		r.SuccessRate = float64(r.Successful) / float64(r.TotalTasks)
		r.AvgProcessingTime = totalElapsed / time.Duration(r.TotalTasks)
	}
	if r.Successful > 0 {
		r.AvgQuality = qualitySum / float64(r.Successful)
	}
	for name, s := range r.Providers {
		s.AvgQuality = providerQuality[name] / float64(s.Tasks)
		s.AvgTime = providerTime[name] / time.Duration(s.Tasks)
		r.Providers[name] = s
	}
}
