package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"ContentOrchestrator/internal/config"
	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/generator"
	"ContentOrchestrator/internal/metrics"
	"ContentOrchestrator/internal/ports"
	"ContentOrchestrator/internal/quality"
	"ContentOrchestrator/internal/strategy"
)

const (
	defaultCategory = "AI Generated"
	previewLimit    = 200
	writeTimeout    = 15 * time.Second
)

// ContentGenerator is the slice of *generator.Generator the orchestrator needs.
type ContentGenerator interface {
	Generate(ctx context.Context, req domain.ContentRequest) (domain.ContentResult, error)
	Strategy() strategy.Strategy
	Stats() generator.Stats
}

// ImageGenerator returns an illustration location or "".
type ImageGenerator interface {
	GenerateImage(ctx context.Context, title string, contentType domain.ContentType, style string) string
}

// Deps wires all driven adapters into the orchestrator.
type Deps struct {
	Source    ports.TaskSource
	Generator ContentGenerator
	Images    ImageGenerator
	Publisher ports.Publisher
	Workflow  config.WorkflowConfig
	Defaults  RequestDefaults
	Logger    *slog.Logger
}

// BatchOptions narrows a batch run. Zero MaxTasks means the configured batch size.
type BatchOptions struct {
	RunID    string
	Priority *domain.Priority
	MaxTasks int
}

// Orchestrator drives tasks from the source through generation and publishing.
type Orchestrator struct {
	source    ports.TaskSource
	generator ContentGenerator
	images    ImageGenerator
	publisher ports.Publisher
	wf        config.WorkflowConfig
	defaults  RequestDefaults
	logger    *slog.Logger

	mu   sync.RWMutex
	last *Report

	batchMu sync.Mutex
	running atomic.Bool
}

// NewOrchestrator constructs the orchestration component. A nil Generator makes every
// task fail with no_provider_available.
func NewOrchestrator(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		source:    deps.Source,
		generator: deps.Generator,
		images:    deps.Images,
		publisher: deps.Publisher,
		wf:        deps.Workflow,
		defaults:  deps.Defaults,
		logger:    logger,
	}
}

// ProcessTask runs a single attempt for task and writes its terminal status back.
// It never panics and always returns a result.
func (o *Orchestrator) ProcessTask(ctx context.Context, task domain.Task) domain.ProcessingResult {
	return o.run(ctx, task.Clone(), 0, false)
}

// ProcessBatch processes pending tasks with bounded concurrency, then retries eligible failures.
// Runs are serialised: a call made while another batch is in progress waits for it to
// finish and then lists whatever is still pending.
func (o *Orchestrator) ProcessBatch(ctx context.Context, opts BatchOptions) Report {
	o.batchMu.Lock()
	defer o.batchMu.Unlock()
	o.running.Store(true)
	defer o.running.Store(false)

	metrics.BatchesTotal.Inc()

	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	report := Report{RunID: runID, StartedAt: time.Now()}
	logger := o.logger.With("run_id", runID)
	analytics := NewAnalytics()

	tasks, err := o.pending(ctx, opts)
	if err != nil {
		logger.Error("cannot load pending tasks", "error", err)
		report.SourceError = err.Error()
	} else {
		logger.Info("batch started", "tasks", len(tasks), "workers", o.wf.MaxWorkers)
		retry := o.initialPass(ctx, tasks, analytics)
		o.retryPass(ctx, retry, analytics)
	}

	analytics.Fill(&report)
	report.FinishedAt = time.Now()
	if o.generator != nil {
		stats := o.generator.Stats()
		report.Generator = &stats
	}

	logger.Info("batch finished",
		"total", report.TotalTasks,
		"successful", report.Successful,
		"failed", report.Failed,
		"retried", report.Retried,
		"duration", report.Duration())

	o.mu.Lock()
	o.last = &report
	o.mu.Unlock()

	return report
}

// BatchRunning reports whether a batch is being processed right now.
func (o *Orchestrator) BatchRunning() bool {
	return o.running.Load()
}

// LastReport returns the most recent batch report.
func (o *Orchestrator) LastReport() (Report, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return Report{}, false
	}
	return *o.last, true
}

// SortTasks orders tasks by descending priority, keeping source order within a priority.
func SortTasks(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority > tasks[j].Priority
		}
		return tasks[i].Row < tasks[j].Row
	})
}

func (o *Orchestrator) pending(ctx context.Context, opts BatchOptions) ([]domain.Task, error) {
	if o.source == nil {
		return nil, errors.New("task source is not configured")
	}

	tasks, err := o.source.ListPending(ctx, ports.TaskFilter{
		Priority: opts.Priority,
		Statuses: []domain.TaskStatus{domain.StatusPending, ""},
	})
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	runnable := tasks[:0]
	for _, task := range tasks {
		if strings.TrimSpace(task.Prompt) == "" {
			o.logger.Debug("skipping task without prompt", "task_id", task.ID)
			continue
		}
		runnable = append(runnable, task)
	}
	tasks = runnable

	SortTasks(tasks)

	limit := opts.MaxTasks
	if limit <= 0 {
		limit = o.wf.BatchSize
	}
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

type outcome struct {
	task   domain.Task
	result domain.ProcessingResult
}

func (o *Orchestrator) initialPass(ctx context.Context, tasks []domain.Task, analytics *Analytics) []outcome {
	results := make(chan outcome, len(tasks))

	pool, err := ants.NewPool(max(o.wf.MaxWorkers, 1), ants.WithPanicHandler(func(p any) {
		o.logger.Error("worker panicked", "panic", p)
	}))
	if err != nil {
		o.logger.Error("worker pool unavailable, processing sequentially", "error", err)
		for _, t := range tasks {
			task := t.Clone()
			results <- outcome{task: task, result: o.run(ctx, task, 0, true)}
		}
		close(results)
	} else {
		defer pool.Release()

		var wg sync.WaitGroup
		for _, t := range tasks {
			task := t.Clone()
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				results <- outcome{task: task, result: o.run(ctx, task, 0, true)}
			})
			if submitErr != nil {
				wg.Done()
				o.logger.Warn("submit failed, running inline", "task_id", task.ID, "error", submitErr)
				results <- outcome{task: task, result: o.run(ctx, task, 0, true)}
			}
		}
		go func() {
			wg.Wait()
			close(results)
		}()
	}

	var retry []outcome
	for out := range results {
		final := !o.willRetry(out.result, 0, true)
		analytics.Record(out.result, final)
		if !final {
			retry = append(retry, out)
		}
	}
	return retry
}

// retryPass reprocesses failures one at a time, waiting the table delay before each attempt.
func (o *Orchestrator) retryPass(ctx context.Context, pending []outcome, analytics *Analytics) {
	for _, out := range pending {
		last := out.result
		for attempt := 1; ; attempt++ {
			if err := sleep(ctx, o.wf.RetryDelay(attempt)); err != nil {
				analytics.Finalize(o.abandon(ctx, out.task, last))
				break
			}

			metrics.TaskRetriesTotal.Inc()
			o.logger.Info("retrying task", "task_id", out.task.ID, "attempt", attempt, "category", last.Category)

			last = o.run(ctx, out.task, attempt, true)
			final := !o.willRetry(last, attempt, true)
			analytics.Record(last, final)
			if final {
				break
			}
		}
	}
}

func (o *Orchestrator) willRetry(res domain.ProcessingResult, attempt int, allowRetry bool) bool {
	return allowRetry && !res.Success && res.Category.Retryable() && attempt < o.wf.MaxRetries
}

// abandon turns the last interim failure into a terminal one when the batch is cancelled mid-retry.
func (o *Orchestrator) abandon(ctx context.Context, task domain.Task, last domain.ProcessingResult) domain.ProcessingResult {
	o.logger.Warn("batch cancelled before retry", "task_id", task.ID)
	last.FinishedAt = time.Now()
	o.writeFailure(ctx, task, last, false)
	return last
}

// attemptState is shared by the pipeline goroutine and the timeout watcher.
// Whoever flips settled first owns the terminal write-back.
type attemptState struct {
	task       domain.Task
	number     int
	allowRetry bool
	start      time.Time
	settled    atomic.Bool
}

func (a *attemptState) settle() bool {
	return a.settled.CompareAndSwap(false, true)
}

func (a *attemptState) result(success bool) domain.ProcessingResult {
	return domain.ProcessingResult{
		TaskID:     a.task.ID,
		Success:    success,
		Elapsed:    time.Since(a.start),
		RetryCount: a.number,
		FinishedAt: time.Now(),
	}
}

func (o *Orchestrator) run(ctx context.Context, task domain.Task, attempt int, allowRetry bool) domain.ProcessingResult {
	metrics.TasksInFlight.Inc()
	defer metrics.TasksInFlight.Dec()

	a := &attemptState{task: task, number: attempt, allowRetry: allowRetry, start: time.Now()}

	// The processing mark lands before the deadline starts so a terminal write
	// can never be followed by it.
	wctx, wcancel := writeContext(ctx)
	o.writeStatus(wctx, task, domain.StatusProcessing, map[string]string{"priority": task.Priority.String()})
	wcancel()

	attemptCtx, cancel := context.WithTimeout(ctx, o.wf.TimeoutPerTask)
	defer cancel()

	done := make(chan domain.ProcessingResult, 1)
	go func() {
		done <- o.pipeline(attemptCtx, a)
	}()

	timer := time.NewTimer(o.wf.TimeoutPerTask)
	defer timer.Stop()

	var res domain.ProcessingResult
	select {
	case res = <-done:
	case <-timer.C:
		res = o.expire(ctx, a, cancel, done, fmt.Errorf("%w after %s", domain.ErrTimeout, o.wf.TimeoutPerTask))
	case <-ctx.Done():
		res = o.expire(ctx, a, cancel, done, fmt.Errorf("%w: %w", domain.ErrTimeout, ctx.Err()))
	}

	o.observe(res)
	return res
}

// expire records a timeout unless the pipeline already settled, in which case its result is awaited.
func (o *Orchestrator) expire(ctx context.Context, a *attemptState, cancel context.CancelFunc, done <-chan domain.ProcessingResult, err error) domain.ProcessingResult {
	if !a.settle() {
		return <-done
	}
	cancel()

	o.logger.Warn("task timed out", "task_id", a.task.ID, "attempt", a.number, "timeout", o.wf.TimeoutPerTask)

	res := a.result(false)
	res.Error = err.Error()
	res.Category = domain.CategoryTimeout
	o.writeFailure(ctx, a.task, res, o.willRetry(res, a.number, a.allowRetry))
	return res
}

func (o *Orchestrator) pipeline(ctx context.Context, a *attemptState) (res domain.ProcessingResult) {
	var partial domain.ProcessingResult
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panicked", "task_id", a.task.ID, "panic", r)
			res = o.settleFailure(ctx, a, fmt.Errorf("pipeline panic: %v", r), partial)
		}
	}()

	logger := o.logger.With("task_id", a.task.ID, "attempt", a.number)

	if o.generator == nil {
		return o.settleFailure(ctx, a, fmt.Errorf("generate content: %w", domain.ErrNoProviderAvailable), partial)
	}

	req := BuildRequest(a.task, o.defaults, o.wf)
	content, err := o.generator.Generate(ctx, req)
	if err != nil {
		return o.settleFailure(ctx, a, fmt.Errorf("generate content: %w", err), partial)
	}
	partial.Provider = content.Provider
	partial.Quality = content.Quality
	logger.Info("content generated", "provider", content.Provider, "quality", content.Quality, "words", content.WordCount)

	if content.Quality < o.wf.QualityThreshold {
		return o.settleFailure(ctx, a, fmt.Errorf("%w: %.2f below threshold %.2f",
			domain.ErrQualityTooLow, content.Quality, o.wf.QualityThreshold), partial)
	}

	if req.IncludeImage && o.images != nil {
		if s := o.generator.Strategy(); s != nil && s.SupportsImages() {
			content.ImageURL = o.images.GenerateImage(ctx, content.Title, req.ContentType, o.defaults.ImageStyle)
		}
	}

	if err := ctx.Err(); err != nil {
		return o.settleFailure(ctx, a, fmt.Errorf("publish post: %w", err), partial)
	}

	url, err := o.publish(ctx, a.task, content)
	if err != nil {
		return o.settleFailure(ctx, a, fmt.Errorf("publish post: %w: %w", domain.ErrPublishFailed, err), partial)
	}

	return o.settleSuccess(ctx, a, content, url)
}

func (o *Orchestrator) publish(ctx context.Context, task domain.Task, content domain.ContentResult) (string, error) {
	if o.publisher == nil {
		o.logger.Info("no publisher configured, skipping publish", "task_id", task.ID)
		return "", nil
	}

	category := strings.TrimSpace(task.Category)
	if category == "" {
		category = defaultCategory
	}

	return o.publisher.CreatePost(ctx, ports.Post{
		Title:           content.Title,
		Body:            content.Body,
		Excerpt:         content.Excerpt,
		Categories:      []string{category},
		Tags:            content.Tags,
		MetaTitle:       content.MetaTitle,
		MetaDescription: content.MetaDescription,
		FeaturedImage:   content.ImageURL,
		CustomMeta: map[string]string{
			"task_id":     task.ID,
			"ai_provider": content.Provider,
			"ai_strategy": content.Strategy,
			"ai_quality":  strconv.FormatFloat(content.Quality, 'f', 2, 64),
		},
	})
}

func (o *Orchestrator) settleSuccess(ctx context.Context, a *attemptState, content domain.ContentResult, url string) domain.ProcessingResult {
	res := a.result(true)
	res.URL = url
	res.Provider = content.Provider
	res.Quality = content.Quality
	res.ImageGenerated = content.ImageURL != ""

	if !a.settle() {
		return res
	}

	wctx, cancel := writeContext(ctx)
	defer cancel()

	var writeErr error
	if o.source != nil {
		preview := content.Excerpt
		if preview == "" {
			preview = quality.Excerpt(content.Body, previewLimit)
		}
		fields := map[string]string{
			"title":            content.Title,
			"content_preview":  quality.Truncate(preview, previewLimit),
			"published_url":    url,
			"image_url":        content.ImageURL,
			"meta_title":       content.MetaTitle,
			"meta_description": content.MetaDescription,
			"tags":             strings.Join(content.Tags, ", "),
			"quality":          strconv.FormatFloat(content.Quality, 'f', 2, 64),
			"provider":         content.Provider,
		}
		if err := o.source.SaveResults(wctx, ref(a.task), fields); err != nil {
			writeErr = err
		}
		if err := o.source.UpdateStatus(wctx, ref(a.task), domain.StatusCompleted, map[string]string{"published_url": url}); err != nil {
			writeErr = errors.Join(writeErr, err)
		}
	}
	if writeErr != nil {
		o.logger.Error("write-back failed", "task_id", a.task.ID, "error", writeErr)
		res.Category = domain.CategoryTaskSourceWrite
		res.Error = fmt.Errorf("%w: %w", domain.ErrTaskSourceWrite, writeErr).Error()
	}

	o.logger.Info("task completed", "task_id", a.task.ID, "url", url, "quality", res.Quality, "elapsed", res.Elapsed)
	return res
}

func (o *Orchestrator) settleFailure(ctx context.Context, a *attemptState, err error, partial domain.ProcessingResult) domain.ProcessingResult {
	res := a.result(false)
	res.Error = err.Error()
	res.Category = domain.CategoryOf(err)
	res.Provider = partial.Provider
	res.Quality = partial.Quality

	if !a.settle() {
		return res
	}
	o.writeFailure(ctx, a.task, res, o.willRetry(res, a.number, a.allowRetry))
	return res
}

func (o *Orchestrator) writeFailure(ctx context.Context, task domain.Task, res domain.ProcessingResult, retry bool) {
	status := domain.StatusFailed
	if retry {
		status = domain.StatusRetry
	}
	o.logger.Warn("task failed", "task_id", task.ID, "attempt", res.RetryCount, "category", res.Category, "status", status, "error", res.Error)

	if o.source == nil {
		return
	}
	wctx, cancel := writeContext(ctx)
	defer cancel()

	if err := o.source.LogError(wctx, ref(task), res.Error, res.Category); err != nil {
		o.logger.Error("log error failed", "task_id", task.ID, "error", err)
	}
	if err := o.source.UpdateStatus(wctx, ref(task), status, map[string]string{"error_log": res.Error}); err != nil {
		o.logger.Error("status write-back failed", "task_id", task.ID, "status", status, "error", err)
	}
}

func (o *Orchestrator) writeStatus(ctx context.Context, task domain.Task, status domain.TaskStatus, extra map[string]string) {
	if o.source == nil {
		return
	}
	if err := o.source.UpdateStatus(ctx, ref(task), status, extra); err != nil {
		o.logger.Warn("status update failed", "task_id", task.ID, "status", status, "error", err)
	}
}

func (o *Orchestrator) observe(res domain.ProcessingResult) {
	success := strconv.FormatBool(res.Success)
	metrics.TasksProcessedTotal.WithLabelValues(success, string(res.Category)).Inc()
	metrics.TaskDurationSeconds.WithLabelValues(success).Observe(res.Elapsed.Seconds())
}

// writeContext detaches write-backs from attempt cancellation so terminal statuses still land.
func writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
}

func ref(task domain.Task) string {
	if task.Ref != "" {
		return task.Ref
	}
	return task.ID
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
