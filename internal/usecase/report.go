package usecase

import (
	"time"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/generator"
)

// Report summarises one batch run.
type Report struct {
	RunID             string                       `json:"run_id"`
	StartedAt         time.Time                    `json:"started_at"`
	FinishedAt        time.Time                    `json:"finished_at"`
	TotalTasks        int                          `json:"total_tasks"`
	Successful        int                          `json:"successful"`
	Failed            int                          `json:"failed"`
	Retried           int                          `json:"retried"`
	Attempts          int                          `json:"attempts"`
	WriteFailures     int                          `json:"write_failures"`
	SuccessRate       float64                      `json:"success_rate"`
	AvgProcessingTime time.Duration                `json:"avg_processing_time"`
	AvgQuality        float64                      `json:"avg_quality"`
	Providers         map[string]ProviderSummary   `json:"providers"`
	ErrorBreakdown    map[domain.ErrorCategory]int `json:"error_breakdown"`
	Timeline          []TimelineEntry              `json:"timeline"`
	Results           []domain.ProcessingResult    `json:"results"`
	Generator         *generator.Stats             `json:"generator,omitempty"`
	SourceError       string                       `json:"source_error,omitempty"`
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
