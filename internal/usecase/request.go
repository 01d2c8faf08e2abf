package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"ContentOrchestrator/internal/config"
	"ContentOrchestrator/internal/domain"
)

const (
	defaultTargetWords = 800
	maxKeywords        = 5
)

// RequestDefaults fills the request fields a task does not carry.
type RequestDefaults struct {
	Language    string
	Tone        string
	TargetWords int
	ImageStyle  string
}

var stopWords = map[string]struct{}{
	"của": {}, "và": {}, "cho": {}, "về": {}, "trong": {}, "với": {},
	"từ": {}, "để": {}, "có": {}, "là": {}, "một": {},
}

// Checked in order; the first group with a hit wins.
var contentTypeHints = []struct {
	kind  domain.ContentType
	words []string
}{
	{domain.ContentProductReview, []string{"review", "đánh giá", "test"}},
	{domain.ContentTutorial, []string{"hướng dẫn", "tutorial", "cách"}},
	{domain.ContentNewsArticle, []string{"tin tức", "news", "báo"}},
	{domain.ContentMarketing, []string{"marketing", "bán", "sản phẩm"}},
}

// BuildRequest derives a fresh content request for one attempt at task.
func BuildRequest(task domain.Task, defaults RequestDefaults, wf config.WorkflowConfig) domain.ContentRequest {
	target := defaults.TargetWords
	if target <= 0 {
		target = defaultTargetWords
	}

	return domain.ContentRequest{
		Prompt:       strings.TrimSpace(task.Prompt),
		ContentType:  InferContentType(task.Prompt),
		TargetWords:  target,
		Language:     defaults.Language,
		Tone:         defaults.Tone,
		Keywords:     ExtractKeywords(task.Prompt),
		IncludeImage: wf.EnableImageGeneration,
		SEOFocus:     wf.EnableSEOOptimization,
	}
}

// InferContentType guesses the article kind from prompt keywords, defaulting to a blog post.
func InferContentType(prompt string) domain.ContentType {
	lower := strings.ToLower(prompt)
	for _, hint := range contentTypeHints {
		for _, w := range hint.words {
			if strings.Contains(lower, w) {
				return hint.kind
			}
		}
	}
	return domain.ContentBlogPost
}

// ExtractKeywords keeps up to five distinct lower-cased tokens longer than three runes that are not stop-words.
func ExtractKeywords(prompt string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, field := range strings.Fields(strings.ToLower(prompt)) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if utf8.RuneCountInString(word) <= 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
