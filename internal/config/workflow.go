package config

import (
	"errors"
	"fmt"
	"time"
)

// WorkflowConfig holds process-wide orchestrator tunables. It is built once per
// batch run and treated as read-only while the batch executes.
type WorkflowConfig struct {
	MaxWorkers            int             `yaml:"maxWorkers"`
	MaxRetries            int             `yaml:"maxRetries"`
	RetryDelays           []time.Duration `yaml:"retryDelays"`
	TimeoutPerTask        time.Duration   `yaml:"timeoutPerTask"`
	BatchSize             int             `yaml:"batchSize"`
	QualityThreshold      float64         `yaml:"qualityThreshold"`
	EnableImageGeneration bool            `yaml:"enableImageGeneration"`
	EnableSEOOptimization bool            `yaml:"enableSeoOptimization"`
}

// DefaultWorkflow mirrors the production defaults: a small pool because providers
// are rate limited, and a flat retry table capped after the third attempt.
func DefaultWorkflow() WorkflowConfig {
	return WorkflowConfig{
		MaxWorkers:            2,
		MaxRetries:            2,
		RetryDelays:           []time.Duration{5 * time.Second, 15 * time.Second, 60 * time.Second},
		TimeoutPerTask:        300 * time.Second,
		BatchSize:             5,
		QualityThreshold:      0.6,
		EnableImageGeneration: true,
		EnableSEOOptimization: true,
	}
}

// Validate rejects values the orchestrator cannot run with.
func (w WorkflowConfig) Validate() error {
	var errs []error
	if w.MaxWorkers < 1 {
		errs = append(errs, fmt.Errorf("maxWorkers must be >= 1, got %d", w.MaxWorkers))
	}
	if w.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("maxRetries must be >= 0, got %d", w.MaxRetries))
	}
	if w.TimeoutPerTask <= 0 {
		errs = append(errs, fmt.Errorf("timeoutPerTask must be positive, got %s", w.TimeoutPerTask))
	}
	if w.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batchSize must be >= 1, got %d", w.BatchSize))
	}
	if w.QualityThreshold < 0 || w.QualityThreshold > 1 {
		errs = append(errs, fmt.Errorf("qualityThreshold must be within [0,1], got %.2f", w.QualityThreshold))
	}
	if len(w.RetryDelays) == 0 {
		errs = append(errs, errors.New("retryDelays must not be empty"))
	}
	for i, d := range w.RetryDelays {
		if d < 0 {
			errs = append(errs, fmt.Errorf("retryDelays[%d] must not be negative, got %s", i, d))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid workflow config: %w", errors.Join(errs...))
	}
	return nil
}

// RetryDelay looks up the wait before retry attempt n (1-based). Attempts past the
// end of the table reuse its last entry.
func (w WorkflowConfig) RetryDelay(attempt int) time.Duration {
	if len(w.RetryDelays) == 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(w.RetryDelays) {
		attempt = len(w.RetryDelays)
	}
	return w.RetryDelays[attempt-1]
}
