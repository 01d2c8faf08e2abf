package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"ContentOrchestrator/internal/config"
	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/generator"
	"ContentOrchestrator/internal/infrastructure/memory"
	"ContentOrchestrator/internal/ports"
	"ContentOrchestrator/internal/strategy"
)

type fakeGenerator struct {
	mu       sync.Mutex
	prompts  []string
	inFlight int
	peak     int
	strategy strategy.Strategy
	fn       func(ctx context.Context, req domain.ContentRequest) (domain.ContentResult, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req domain.ContentRequest) (domain.ContentResult, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	return f.fn(ctx, req)
}

func (f *fakeGenerator) Strategy() strategy.Strategy {
	if f.strategy == nil {
		return strategy.NewSEO()
	}
	return f.strategy
}

func (f *fakeGenerator) Stats() generator.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return generator.Stats{TotalRequests: int64(len(f.prompts))}
}

func (f *fakeGenerator) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func (f *fakeGenerator) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func goodContent(req domain.ContentRequest) domain.ContentResult {
	return domain.ContentResult{
		Title:           "Article: " + req.Prompt,
		Body:            "<h2>Intro</h2><p>" + req.Prompt + "</p>",
		MetaTitle:       "Meta " + req.Prompt,
		MetaDescription: "Description",
		Tags:            []string{"a", "b", "c"},
		Excerpt:         req.Prompt,
		Quality:         0.8,
		Provider:        "fake",
		Strategy:        strategy.SEOName,
	}
}

func succeed(delay time.Duration) func(context.Context, domain.ContentRequest) (domain.ContentResult, error) {
	return func(ctx context.Context, req domain.ContentRequest) (domain.ContentResult, error) {
		if delay > 0 {
			time.Sleep(delay)
		}
		return goodContent(req), nil
	}
}

type fakePublisher struct {
	mu    sync.Mutex
	posts []ports.Post
	err   error
}

func (p *fakePublisher) CreatePost(_ context.Context, post ports.Post) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.posts = append(p.posts, post)
	return "https://blog.example/p/" + post.CustomMeta["task_id"], nil
}

func (p *fakePublisher) ResolveOrCreateTaxonomy(context.Context, ports.TaxonomyKind, string) (int64, error) {
	return 1, nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.posts)
}

type fakeImages struct {
	url   string
	calls int
	mu    sync.Mutex
}

func (f *fakeImages) GenerateImage(context.Context, string, domain.ContentType, string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.url
}

type failingSource struct {
	*memory.TaskSource
}

func (failingSource) ListPending(context.Context, ports.TaskFilter) ([]domain.Task, error) {
	return nil, errors.New("sheet unavailable")
}

func testWorkflow() config.WorkflowConfig {
	return config.WorkflowConfig{
		MaxWorkers:            2,
		MaxRetries:            0,
		RetryDelays:           []time.Duration{0},
		TimeoutPerTask:        2 * time.Second,
		BatchSize:             10,
		QualityThreshold:      0.6,
		EnableImageGeneration: true,
		EnableSEOOptimization: true,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(source ports.TaskSource, gen ContentGenerator, pub ports.Publisher, images ImageGenerator, wf config.WorkflowConfig) *Orchestrator {
	return NewOrchestrator(Deps{
		Source:    source,
		Generator: gen,
		Images:    images,
		Publisher: pub,
		Workflow:  wf,
		Defaults:  RequestDefaults{Language: "vi", Tone: "professional", TargetWords: 800, ImageStyle: "professional"},
		Logger:    discardLogger(),
	})
}

func terminalCount(history []domain.TaskStatus) int {
	n := 0
	for _, st := range history {
		if st.Terminal() {
			n++
		}
	}
	return n
}
