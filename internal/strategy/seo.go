package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/ports"
	"ContentOrchestrator/internal/quality"
)

// SEOName identifies the rich strategy.
const SEOName = "seo"

// SEO is the rich strategy: full article with SEO metadata and an image prompt.
type SEO struct{}

var _ Strategy = (*SEO)(nil)

// NewSEO returns the rich strategy.
func NewSEO() *SEO { return &SEO{} }

func (s *SEO) Name() string { return SEOName }

func (s *SEO) Fields() []string {
	return []string{"title", "content", "meta_title", "meta_description", "tags", "image_prompt"}
}

func (s *SEO) SystemPrompt() string {
	return "You are a professional content marketer and SEO copywriter. " +
		"You write well structured HTML articles and always answer with a single JSON object."
}

func (s *SEO) MaxTokens() int       { return 2000 }
func (s *SEO) Temperature() float64 { return 0.7 }
func (s *SEO) SupportsImages() bool { return true }

// Prompt renders the user prompt for req.
func (s *SEO) Prompt(req domain.ContentRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n\nRequirements:\n", brief(req.ContentType), req.Prompt)
	for _, line := range requirements(req.ContentType) {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	fmt.Fprintf(&b, "- At least %d words\n", req.TargetWords)
	fmt.Fprintf(&b, "- Tone: %s, language: %s\n", req.Tone, req.Language)
	if len(req.Keywords) > 0 {
		fmt.Fprintf(&b, "- Keywords: %s\n", strings.Join(req.Keywords, ", "))
	}
	b.WriteString("- Use HTML tags: <h2>, <h3>, <p>, <strong>, <ul>, <li>\n\n")
	b.WriteString("Answer with JSON only:\n")
	b.WriteString(`{
  "title": "Main title (60-80 characters)",
  "content": "Full HTML body",
  "meta_title": "SEO title (50-60 characters)",
  "meta_description": "SEO description (150-160 characters)",
  "tags": ["tag1", "tag2", "tag3", "tag4", "tag5"],
  "image_prompt": "Detailed English prompt for a featured image"
}`)
	return b.String()
}

type seoPayload struct {
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	MetaTitle       string     `json:"meta_title"`
	MetaDescription string     `json:"meta_description"`
	MetaDesc        string     `json:"meta_desc"`
	Tags            stringList `json:"tags"`
	ImagePrompt     string     `json:"image_prompt"`
	Excerpt         string     `json:"excerpt"`
}

// Execute asks the provider for the article. Unparseable output yields a degraded result.
func (s *SEO) Execute(ctx context.Context, provider ports.ContentProvider, req domain.ContentRequest) (domain.ContentResult, error) {
	raw, err := complete(ctx, s, provider, s.Prompt(req))
	if err != nil {
		return domain.ContentResult{}, err
	}
	return s.Parse(raw, req), nil
}

// Parse maps raw provider output onto a result.
func (s *SEO) Parse(raw string, req domain.ContentRequest) domain.ContentResult {
	candidate, ok := extractJSON(raw)
	if !ok {
		return degraded(s.Name(), raw, req)
	}
	var p seoPayload
	if err := json.Unmarshal([]byte(candidate), &p); err != nil || strings.TrimSpace(p.Content) == "" {
		return degraded(s.Name(), raw, req)
	}

	if p.MetaDescription == "" {
		p.MetaDescription = p.MetaDesc
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = quality.Truncate(req.Prompt, titleLimit)
	}
	excerpt := strings.TrimSpace(p.Excerpt)
	if excerpt == "" {
		excerpt = quality.Excerpt(p.Content, 160)
	}

	return domain.ContentResult{
		Title:           title,
		Body:            p.Content,
		MetaTitle:       strings.TrimSpace(p.MetaTitle),
		MetaDescription: strings.TrimSpace(p.MetaDescription),
		Tags:            []string(p.Tags),
		Excerpt:         excerpt,
		WordCount:       quality.CountWords(p.Content),
		ImagePrompt:     strings.TrimSpace(p.ImagePrompt),
		Strategy:        s.Name(),
	}
}

func brief(t domain.ContentType) string {
	switch t {
	case domain.ContentProductReview:
		return "Write a detailed product review about"
	case domain.ContentTutorial:
		return "Write a step-by-step tutorial about"
	case domain.ContentNewsArticle:
		return "Write a news article about"
	case domain.ContentMarketing:
		return "Write marketing content about"
	default:
		return "Write a professional blog post about"
	}
}

func requirements(t domain.ContentType) []string {
	switch t {
	case domain.ContentProductReview:
		return []string{
			"Honest, objective assessment",
			"Clear pros and cons",
			"Comparison with similar products",
			"A buy or skip recommendation",
		}
	case domain.ContentTutorial:
		return []string{
			"Clear, easy to follow steps",
			"Tips and troubleshooting",
		}
	case domain.ContentNewsArticle:
		return []string{
			"Lead paragraph answering who, what, when, where, why and how",
			"Neutral, factual tone",
		}
	case domain.ContentMarketing:
		return []string{
			"A strong call to action",
			"Concrete customer benefits",
			"Persuasive without being spammy",
		}
	default:
		return []string{
			"Catchy SEO friendly title",
			"Introduction, main sections and conclusion",
		}
	}
}
