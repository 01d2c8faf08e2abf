package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckHealthAllUp(t *testing.T) {
	t.Parallel()

	report := CheckHealth(context.Background(), []HealthCheck{
		{Name: "task_source", Checker: pingFunc(func(context.Context) error { return nil })},
		{Name: "publisher", Checker: nil},
	}, 2)

	assert.True(t, report.Healthy())
	assert.Equal(t, 2, report.Providers)
	assert.Equal(t, map[string]ComponentHealth{"task_source": {Status: HealthOK}}, report.Components)
}

func TestCheckHealthReportsFailures(t *testing.T) {
	t.Parallel()

	report := CheckHealth(context.Background(), []HealthCheck{
		{Name: "task_source", Checker: pingFunc(func(context.Context) error { return nil })},
		{Name: "publisher", Checker: pingFunc(func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return errors.New("connection refused")
		})},
	}, 1)

	assert.False(t, report.Healthy())
	assert.Equal(t, HealthOK, report.Components["task_source"].Status)
	assert.Equal(t, ComponentHealth{Status: HealthDown, Error: "connection refused"}, report.Components["publisher"])
}

func TestCheckHealthWithoutProviders(t *testing.T) {
	t.Parallel()

	report := CheckHealth(context.Background(), nil, 0)
	assert.Equal(t, HealthDown, report.Status)
}
