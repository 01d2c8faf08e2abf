package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/ports"
)

// Scheduler wires the interval driver with batch processing and digest delivery.
type Scheduler struct {
	driver       ports.Scheduler
	orchestrator *Orchestrator
	notifier     ports.Notifier
	options      BatchOptions
	logger       *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring batches. notifier may be nil.
func NewScheduler(driver ports.Scheduler, orchestrator *Orchestrator, notifier ports.Notifier, opts BatchOptions, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, orchestrator: orchestrator, notifier: notifier, options: opts, logger: logger}
}

// Start registers batch processing with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.orchestrator == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Info("scheduled batch triggered", "at", trigger)
		report := s.orchestrator.ProcessBatch(ctx, s.options)
		s.Notify(ctx, report)
	}

	return s.driver.Start(ctx, job)
}

// Notify forwards a digest of report to the notifier, skipping empty runs.
func (s *Scheduler) Notify(ctx context.Context, report Report) {
	if s.notifier == nil || (report.TotalTasks == 0 && report.SourceError == "") {
		return
	}
	if err := s.notifier.PublishDigest(ctx, buildDigestMessage(report)); err != nil {
		s.logger.Warn("digest delivery failed", "run_id", report.RunID, "error", err)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func buildDigestMessage(report Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Batch %s*\n", report.RunID)
	if report.SourceError != "" {
		fmt.Fprintf(&b, "Task source error: %s\n", report.SourceError)
		return b.String()
	}
	fmt.Fprintf(&b, "Tasks: %d, ok: %d, failed: %d, retried: %d\n",
		report.TotalTasks, report.Successful, report.Failed, report.Retried)
	fmt.Fprintf(&b, "Success rate: %.0f%%, avg quality: %.2f, avg time: %s\n",
		report.SuccessRate*100, report.AvgQuality, report.AvgProcessingTime.Round(time.Millisecond))

	categories := make([]string, 0, len(report.ErrorBreakdown))
	for c := range report.ErrorBreakdown {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s: %d\n", c, report.ErrorBreakdown[domain.ErrorCategory(c)])
	}

	for _, res := range report.Results {
		if res.Success && res.URL != "" {
			fmt.Fprintf(&b, "%s\n", res.URL)
		}
	}
	return b.String()
}
