package usecase

import (
	"context"
	"time"

	"ContentOrchestrator/internal/ports"
)

const (
	HealthOK       = "ok"
	HealthDown     = "down"
	healthDeadline = 5 * time.Second
)

// HealthCheck names one dependency to ping.
type HealthCheck struct {
	Name    string
	Checker ports.HealthChecker
}

// ComponentHealth is the outcome for a single dependency.
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthReport aggregates dependency checks. Status is down when any component is down
// or no content provider is configured.
type HealthReport struct {
	Status     string                     `json:"status"`
	Providers  int                        `json:"providers"`
	Components map[string]ComponentHealth `json:"components"`
}

// Healthy reports whether every check passed.
func (r HealthReport) Healthy() bool {
	return r.Status == HealthOK
}

// CheckHealth pings each dependency with a bounded deadline.
func CheckHealth(ctx context.Context, checks []HealthCheck, providers int) HealthReport {
	report := HealthReport{Status: HealthOK, Providers: providers, Components: make(map[string]ComponentHealth, len(checks))}
	if providers == 0 {
		report.Status = HealthDown
	}

	for _, c := range checks {
		if c.Checker == nil {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, healthDeadline)
		err := c.Checker.Ping(pctx)
		cancel()

		if err != nil {
			report.Status = HealthDown
			report.Components[c.Name] = ComponentHealth{Status: HealthDown, Error: err.Error()}
			continue
		}
		report.Components[c.Name] = ComponentHealth{Status: HealthOK}
	}
	return report
}
