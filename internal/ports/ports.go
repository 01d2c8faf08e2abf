package ports

import (
	"context"
	"time"

	"ContentOrchestrator/internal/domain"
)

// TaskFilter narrows ListPending. A nil Priority matches every priority; an empty
// Statuses slice means pending tasks (including rows with a blank status).
type TaskFilter struct {
	Priority *domain.Priority
	Statuses []domain.TaskStatus
}

// TaskSource is the external store of pending work and the sink for write-backs.
// Every call is a single atomic update for one task.
type TaskSource interface {
	ListPending(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	UpdateStatus(ctx context.Context, ref string, status domain.TaskStatus, extra map[string]string) error
	SaveResults(ctx context.Context, ref string, fields map[string]string) error
	LogError(ctx context.Context, ref, message string, category domain.ErrorCategory) error
}

// CompletionRequest is the provider-neutral shape of a text generation call.
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// ContentProvider produces raw text for a prompt (OpenAI, self-hosted inference, ...).
type ContentProvider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ImageProvider returns the location of a generated illustration.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt, size, quality string) (string, error)
}

// TaxonomyKind distinguishes categories from tags on the publishing target.
type TaxonomyKind string

const (
	TaxonomyCategory TaxonomyKind = "categories"
	TaxonomyTag      TaxonomyKind = "tags"
)

// Post is the finished bundle handed to a publisher.
type Post struct {
	Title           string
	Body            string
	Excerpt         string
	Categories      []string
	Tags            []string
	MetaTitle       string
	MetaDescription string
	FeaturedImage   string
	CustomMeta      map[string]string
}

// Publisher persists a finished post and returns where it lives.
type Publisher interface {
	CreatePost(ctx context.Context, post Post) (string, error)
	ResolveOrCreateTaxonomy(ctx context.Context, kind TaxonomyKind, name string) (int64, error)
}

// ContentCache stores generated results keyed by request fingerprints.
// Implementations must be safe for concurrent use; backend errors behave as misses.
type ContentCache interface {
	Get(ctx context.Context, key string) (domain.ContentResult, bool)
	Set(ctx context.Context, key string, result domain.ContentResult)
}

// Notifier streams batch digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// HealthChecker is implemented by adapters that can verify their backend is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Scheduler controls when batches execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
