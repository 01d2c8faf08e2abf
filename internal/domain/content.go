package domain

import "time"

// ContentType classifies what kind of article a prompt asks for.
type ContentType string

const (
	ContentBlogPost      ContentType = "blog_post"
	ContentProductReview ContentType = "product_review"
	ContentNewsArticle   ContentType = "news_article"
	ContentTutorial      ContentType = "tutorial"
	ContentMarketing     ContentType = "marketing"
)

// ContentRequest is derived from a task for a single processing attempt.
type ContentRequest struct {
	Prompt       string
	ContentType  ContentType
	TargetWords  int
	Language     string
	Tone         string
	Keywords     []string
	IncludeImage bool
	SEOFocus     bool
}

// ContentResult is the structured output of a content strategy.
type ContentResult struct {
	Title           string        `json:"title"`
	Body            string        `json:"body"`
	MetaTitle       string        `json:"meta_title"`
	MetaDescription string        `json:"meta_description"`
	Tags            []string      `json:"tags"`
	Excerpt         string        `json:"excerpt"`
	WordCount       int           `json:"word_count"`
	Quality         float64       `json:"quality"`
	ImageURL        string        `json:"image_url,omitempty"`
	ImagePrompt     string        `json:"image_prompt,omitempty"`
	Classification  string        `json:"classification,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	Provider        string        `json:"provider"`
	Strategy        string        `json:"strategy"`
	Duration        time.Duration `json:"duration"`
	Degraded        bool          `json:"degraded"`
}

// ProcessingResult is the orchestrator's per-attempt outcome for a task.
type ProcessingResult struct {
	TaskID         string        `json:"task_id"`
	Success        bool          `json:"success"`
	URL            string        `json:"url,omitempty"`
	Error          string        `json:"error,omitempty"`
	Category       ErrorCategory `json:"category,omitempty"`
	Elapsed        time.Duration `json:"elapsed"`
	Quality        float64       `json:"quality"`
	RetryCount     int           `json:"retry_count"`
	Provider       string        `json:"provider,omitempty"`
	ImageGenerated bool          `json:"image_generated"`
	FinishedAt     time.Time     `json:"finished_at"`
}
