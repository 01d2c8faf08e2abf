package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/infrastructure/memory"
	"ContentOrchestrator/internal/strategy"
)

func TestSortTasksByPriorityThenRow(t *testing.T) {
	t.Parallel()

	tasks := []domain.Task{
		{ID: "a", Priority: domain.PriorityLow, Row: 1},
		{ID: "b", Priority: domain.PriorityUrgent, Row: 2},
		{ID: "c", Priority: domain.PriorityNormal, Row: 3},
		{ID: "d", Priority: domain.PriorityUrgent, Row: 4},
		{ID: "e", Priority: domain.PriorityHigh, Row: 5},
	}
	SortTasks(tasks)

	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	assert.Equal(t, []string{"b", "d", "e", "c", "a"}, ids)
}

func TestProcessBatchEndToEnd(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	seeded := []struct {
		prompt   string
		priority domain.Priority
	}{
		{"alpha topic", domain.PriorityUrgent},
		{"beta topic", domain.PriorityNormal},
		{"gamma topic", domain.PriorityNormal},
		{"delta topic", domain.PriorityLow},
		{"epsilon topic", domain.PriorityHigh},
	}
	for _, s := range seeded {
		source.Add(s.prompt, s.priority, "")
	}
	gen := &fakeGenerator{fn: succeed(30 * time.Millisecond)}
	pub := &fakePublisher{}
	images := &fakeImages{url: "https://img.example/1.png"}

	o := newTestOrchestrator(source, gen, pub, images, testWorkflow())
	report := o.ProcessBatch(context.Background(), BatchOptions{})

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 5, report.TotalTasks)
	assert.Equal(t, 5, report.Successful)
	assert.Zero(t, report.Failed)
	assert.InDelta(t, 1.0, report.SuccessRate, 1e-9)
	assert.InDelta(t, 0.8, report.AvgQuality, 1e-9)
	assert.Empty(t, report.ErrorBreakdown)
	assert.Len(t, report.Timeline, 5)
	require.NotNil(t, report.Generator)
	assert.EqualValues(t, 5, report.Generator.TotalRequests)
	assert.LessOrEqual(t, gen.maxConcurrent(), 2)
	assert.Equal(t, 5, pub.count())

	perProvider := 0
	for _, summary := range report.Providers {
		perProvider += summary.Tasks
	}
	assert.Equal(t, report.Successful, perProvider)
	assert.Equal(t, 5, report.Providers["fake"].Tasks)

	// Two workers: the first two dispatched are urgent and high, low goes last.
	calls := gen.calls()
	require.Len(t, calls, 5)
	assert.ElementsMatch(t, []string{"alpha topic", "epsilon topic"}, calls[:2])
	assert.Equal(t, "delta topic", calls[4])

	for _, task := range source.All() {
		rec, ok := source.Get(task.Ref)
		require.True(t, ok)
		assert.Equal(t, domain.StatusCompleted, rec.Task.Status)
		assert.Equal(t, 1, terminalCount(rec.History), "task %s", task.ID)
		assert.Equal(t, "https://img.example/1.png", rec.Fields["image_url"])
		assert.NotEmpty(t, rec.Fields["published_url"])
	}

	last, ok := o.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.RunID, last.RunID)
}

func TestOverlappingBatchesPublishEachTaskOnce(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	for _, p := range []string{"alpha topic", "beta topic", "gamma topic"} {
		source.Add(p, domain.PriorityNormal, "")
	}
	gen := &fakeGenerator{fn: succeed(40 * time.Millisecond)}
	pub := &fakePublisher{}
	o := newTestOrchestrator(source, gen, pub, nil, testWorkflow())

	reports := make([]Report, 2)
	var wg sync.WaitGroup
	for i := range reports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i] = o.ProcessBatch(context.Background(), BatchOptions{})
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, pub.count())
	assert.Equal(t, 3, reports[0].TotalTasks+reports[1].TotalTasks)
	assert.False(t, o.BatchRunning())
	for _, task := range source.All() {
		rec, _ := source.Get(task.Ref)
		assert.Equal(t, []domain.TaskStatus{domain.StatusProcessing, domain.StatusCompleted}, rec.History, "task %s", task.Prompt)
	}
}

func TestProcessBatchSkipsBlankPrompts(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	blank := source.Add("   ", domain.PriorityUrgent, "")
	source.Add("real topic", domain.PriorityLow, "")
	gen := &fakeGenerator{fn: succeed(0)}
	pub := &fakePublisher{}

	o := newTestOrchestrator(source, gen, pub, nil, testWorkflow())
	report := o.ProcessBatch(context.Background(), BatchOptions{})

	assert.Equal(t, 1, report.TotalTasks)
	assert.Equal(t, []string{"real topic"}, gen.calls())
	assert.Equal(t, 1, pub.count())

	rec, ok := source.Get(blank.Ref)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, rec.Task.Status)
	assert.Empty(t, rec.History)
}

// slowProcessingSource delays the processing mark past the attempt deadline.
type slowProcessingSource struct {
	*memory.TaskSource
	delay time.Duration
}

func (s slowProcessingSource) UpdateStatus(ctx context.Context, ref string, status domain.TaskStatus, extra map[string]string) error {
	if status == domain.StatusProcessing {
		time.Sleep(s.delay)
	}
	return s.TaskSource.UpdateStatus(ctx, ref, status, extra)
}

func TestSlowProcessingMarkNeverFollowsTerminalStatus(t *testing.T) {
	t.Parallel()

	mem := memory.NewTaskSource()
	task := mem.Add("slow sheet", domain.PriorityNormal, "")
	source := slowProcessingSource{TaskSource: mem, delay: 60 * time.Millisecond}

	wf := testWorkflow()
	wf.TimeoutPerTask = 20 * time.Millisecond
	o := newTestOrchestrator(source, &fakeGenerator{fn: succeed(0)}, &fakePublisher{}, nil, wf)

	res := o.ProcessTask(context.Background(), task)
	assert.True(t, res.Success)

	rec, ok := mem.Get(task.Ref)
	require.True(t, ok)
	assert.Equal(t, []domain.TaskStatus{domain.StatusProcessing, domain.StatusCompleted}, rec.History)
	assert.Equal(t, domain.StatusCompleted, rec.Task.Status)
}

func TestProcessBatchDispatchesByPriority(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	source.Add("low", domain.PriorityLow, "")
	source.Add("urgent", domain.PriorityUrgent, "")
	source.Add("normal", domain.PriorityNormal, "")
	source.Add("high", domain.PriorityHigh, "")

	wf := testWorkflow()
	wf.MaxWorkers = 1
	gen := &fakeGenerator{fn: succeed(0)}

	o := newTestOrchestrator(source, gen, &fakePublisher{}, nil, wf)
	o.ProcessBatch(context.Background(), BatchOptions{})

	assert.Equal(t, []string{"urgent", "high", "normal", "low"}, gen.calls())
}

func TestProcessBatchHonoursFilterAndLimit(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	source.Add("h1", domain.PriorityHigh, "")
	source.Add("l1", domain.PriorityLow, "")
	source.Add("h2", domain.PriorityHigh, "")
	source.Add("h3", domain.PriorityHigh, "")

	wf := testWorkflow()
	wf.MaxWorkers = 1
	gen := &fakeGenerator{fn: succeed(0)}
	high := domain.PriorityHigh

	o := newTestOrchestrator(source, gen, &fakePublisher{}, nil, wf)
	report := o.ProcessBatch(context.Background(), BatchOptions{Priority: &high, MaxTasks: 2})

	assert.Equal(t, 2, report.TotalTasks)
	assert.Equal(t, []string{"h1", "h2"}, gen.calls())
}

func TestProcessTaskWithoutGenerator(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	task := source.Add("anything", domain.PriorityNormal, "")

	o := newTestOrchestrator(source, nil, &fakePublisher{}, nil, testWorkflow())
	res := o.ProcessTask(context.Background(), task)

	assert.False(t, res.Success)
	assert.Equal(t, domain.CategoryNoProviderAvailable, res.Category)
	assert.Equal(t, task.ID, res.TaskID)

	rec, _ := source.Get(task.Ref)
	assert.Equal(t, domain.StatusFailed, rec.Task.Status)
	assert.Equal(t, []domain.TaskStatus{domain.StatusProcessing, domain.StatusFailed}, rec.History)
	require.Len(t, rec.ErrorLog, 1)
	assert.Contains(t, rec.ErrorLog[0], "NO_PROVIDER_AVAILABLE")
}

func TestNonRetryableFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	source.Add("anything", domain.PriorityNormal, "")

	wf := testWorkflow()
	wf.MaxRetries = 3
	o := newTestOrchestrator(source, nil, nil, nil, wf)
	report := o.ProcessBatch(context.Background(), BatchOptions{})

	assert.Equal(t, 1, report.Attempts)
	assert.Zero(t, report.Retried)
	assert.Equal(t, 1, report.ErrorBreakdown[domain.CategoryNoProviderAvailable])
}

func TestProcessTaskTimeoutDiscardsLateResult(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	task := source.Add("slow topic", domain.PriorityNormal, "")

	release := make(chan struct{})
	returned := make(chan struct{})
	gen := &fakeGenerator{fn: func(_ context.Context, req domain.ContentRequest) (domain.ContentResult, error) {
		defer close(returned)
		<-release
		return goodContent(req), nil
	}}
	pub := &fakePublisher{}

	wf := testWorkflow()
	wf.TimeoutPerTask = 100 * time.Millisecond
	o := newTestOrchestrator(source, gen, pub, nil, wf)

	start := time.Now()
	res := o.ProcessTask(context.Background(), task)

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, domain.CategoryTimeout, res.Category)

	close(release)
	<-returned
	time.Sleep(50 * time.Millisecond)

	rec, _ := source.Get(task.Ref)
	assert.Equal(t, domain.StatusFailed, rec.Task.Status)
	assert.Equal(t, 1, terminalCount(rec.History))
	assert.Zero(t, pub.count())
}

func TestProcessBatchTimeoutScenario(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	source.Add("fast topic", domain.PriorityHigh, "")
	slow := source.Add("slow topic", domain.PriorityLow, "")

	gen := &fakeGenerator{fn: func(ctx context.Context, req domain.ContentRequest) (domain.ContentResult, error) {
		if req.Prompt == "slow topic" {
			<-ctx.Done()
			return domain.ContentResult{}, ctx.Err()
		}
		return goodContent(req), nil
	}}

	wf := testWorkflow()
	wf.TimeoutPerTask = 150 * time.Millisecond
	o := newTestOrchestrator(source, gen, &fakePublisher{}, nil, wf)
	report := o.ProcessBatch(context.Background(), BatchOptions{})

	assert.Equal(t, 2, report.TotalTasks)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.ErrorBreakdown[domain.CategoryTimeout])

	rec, _ := source.Get(slow.Ref)
	assert.Equal(t, domain.StatusFailed, rec.Task.Status)
	assert.Equal(t, 1, terminalCount(rec.History))
}

func TestRetryIsBounded(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	task := source.Add("weak topic", domain.PriorityNormal, "")

	gen := &fakeGenerator{fn: func(_ context.Context, req domain.ContentRequest) (domain.ContentResult, error) {
		c := goodContent(req)
		c.Quality = 0.3
		return c, nil
	}}

	wf := testWorkflow()
	wf.MaxRetries = 2
	o := newTestOrchestrator(source, gen, &fakePublisher{}, nil, wf)
	report := o.ProcessBatch(context.Background(), BatchOptions{})

	assert.Len(t, gen.calls(), 3)
	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, 1, report.Retried)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.ErrorBreakdown[domain.CategoryQualityTooLow])
	require.Len(t, report.Results, 1)
	assert.Equal(t, 2, report.Results[0].RetryCount)
	assert.InDelta(t, 0.3, report.Results[0].Quality, 1e-9)

	rec, _ := source.Get(task.Ref)
	assert.Equal(t, []domain.TaskStatus{
		domain.StatusProcessing, domain.StatusRetry,
		domain.StatusProcessing, domain.StatusRetry,
		domain.StatusProcessing, domain.StatusFailed,
	}, rec.History)
	assert.Len(t, rec.ErrorLog, 3)
}

func TestRetryRecovers(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	source.Add("flaky topic", domain.PriorityNormal, "")

	attempts := 0
	gen := &fakeGenerator{fn: func(_ context.Context, req domain.ContentRequest) (domain.ContentResult, error) {
		attempts++
		if attempts == 1 {
			return domain.ContentResult{}, domain.ErrProvider
		}
		return goodContent(req), nil
	}}

	wf := testWorkflow()
	wf.MaxRetries = 2
	o := newTestOrchestrator(source, gen, &fakePublisher{}, nil, wf)
	report := o.ProcessBatch(context.Background(), BatchOptions{})

	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.Retried)
	assert.Equal(t, 2, report.Attempts)
	assert.Empty(t, report.ErrorBreakdown)
}

func TestRetryAbandonedOnCancel(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	task := source.Add("weak topic", domain.PriorityNormal, "")

	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{fn: func(_ context.Context, req domain.ContentRequest) (domain.ContentResult, error) {
		cancel()
		return domain.ContentResult{}, domain.ErrProvider
	}}

	wf := testWorkflow()
	wf.MaxRetries = 2
	wf.RetryDelays = []time.Duration{time.Hour}
	o := newTestOrchestrator(source, gen, &fakePublisher{}, nil, wf)
	report := o.ProcessBatch(ctx, BatchOptions{})

	assert.Equal(t, 1, report.Failed)
	rec, _ := source.Get(task.Ref)
	assert.Equal(t, domain.StatusFailed, rec.Task.Status)
	assert.Equal(t, 1, terminalCount(rec.History))
}

func TestImageIsBestEffort(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	task := source.Add("image topic", domain.PriorityNormal, "Travel")
	pub := &fakePublisher{}
	images := &fakeImages{}

	o := newTestOrchestrator(source, &fakeGenerator{fn: succeed(0)}, pub, images, testWorkflow())
	res := o.ProcessTask(context.Background(), task)

	assert.True(t, res.Success)
	assert.False(t, res.ImageGenerated)
	assert.Equal(t, 1, images.calls)
	require.Equal(t, 1, pub.count())
	assert.Empty(t, pub.posts[0].FeaturedImage)
	assert.Equal(t, []string{"Travel"}, pub.posts[0].Categories)
}

func TestImagesSkippedForLeanStrategy(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	task := source.Add("lean topic", domain.PriorityNormal, "")
	pub := &fakePublisher{}
	images := &fakeImages{url: "https://img.example/x.png"}
	gen := &fakeGenerator{fn: succeed(0), strategy: strategy.NewLocalization()}

	o := newTestOrchestrator(source, gen, pub, images, testWorkflow())
	res := o.ProcessTask(context.Background(), task)

	assert.True(t, res.Success)
	assert.Zero(t, images.calls)
	assert.Equal(t, []string{defaultCategory}, pub.posts[0].Categories)
}

func TestPublishFailure(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	task := source.Add("topic", domain.PriorityNormal, "")
	pub := &fakePublisher{err: errors.New("401 unauthorized")}

	o := newTestOrchestrator(source, &fakeGenerator{fn: succeed(0)}, pub, nil, testWorkflow())
	res := o.ProcessTask(context.Background(), task)

	assert.False(t, res.Success)
	assert.Equal(t, domain.CategoryPublishFailed, res.Category)
	assert.Equal(t, "fake", res.Provider)
	assert.Contains(t, res.Error, "401 unauthorized")
}

func TestPipelinePanicIsRecovered(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	task := source.Add("topic", domain.PriorityNormal, "")
	gen := &fakeGenerator{fn: func(context.Context, domain.ContentRequest) (domain.ContentResult, error) {
		panic("provider exploded")
	}}

	o := newTestOrchestrator(source, gen, &fakePublisher{}, nil, testWorkflow())

	var res domain.ProcessingResult
	require.NotPanics(t, func() { res = o.ProcessTask(context.Background(), task) })
	assert.Equal(t, domain.CategoryUnknown, res.Category)

	rec, _ := source.Get(task.Ref)
	assert.Equal(t, domain.StatusFailed, rec.Task.Status)
}

func TestProcessBatchSourceError(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(failingSource{memory.NewTaskSource()}, &fakeGenerator{fn: succeed(0)}, nil, nil, testWorkflow())
	report := o.ProcessBatch(context.Background(), BatchOptions{RunID: "run-1"})

	assert.Equal(t, "run-1", report.RunID)
	assert.Contains(t, report.SourceError, "sheet unavailable")
	assert.Zero(t, report.TotalTasks)
	assert.NotNil(t, report.ErrorBreakdown)
}

func TestWriteBackFailureKeepsSuccess(t *testing.T) {
	t.Parallel()

	source := memory.NewTaskSource()
	o := newTestOrchestrator(source, &fakeGenerator{fn: succeed(0)}, &fakePublisher{}, nil, testWorkflow())

	res := o.ProcessTask(context.Background(), domain.Task{ID: "ghost", Prompt: "not stored"})

	assert.True(t, res.Success)
	assert.Equal(t, domain.CategoryTaskSourceWrite, res.Category)
	assert.Contains(t, res.Error, "task source write failed")
}
