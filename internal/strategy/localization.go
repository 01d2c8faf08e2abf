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

// LocalizationName identifies the lean strategy.
const LocalizationName = "localization"

// Localization paraphrases and classifies content for a target market. No SEO fields, no images.
type Localization struct{}

var _ Strategy = (*Localization)(nil)

func NewLocalization() *Localization { return &Localization{} }

func (l *Localization) Name() string { return LocalizationName }

func (l *Localization) Fields() []string {
	return []string{"paraphrased_content", "classification", "localization_notes"}
}

func (l *Localization) SystemPrompt() string {
	return "You are a content localization expert focused on fast processing and cultural adaptation. " +
		"Answer with a single JSON object."
}

func (l *Localization) MaxTokens() int       { return 1000 }
func (l *Localization) Temperature() float64 { return 0.5 }
func (l *Localization) SupportsImages() bool { return false }

func (l *Localization) Prompt(req domain.ContentRequest) string {
	return fmt.Sprintf(`Adapt the following content for readers in language %q with a %s tone.
Keep it natural and concise. Paraphrase, then classify it (Business/Tech/Lifestyle/...).

Content:
%s

Answer with JSON only:
{
  "paraphrased_content": "Adapted content",
  "classification": "Category",
  "localization_notes": "Brief notes about the adaptation"
}`, req.Language, req.Tone, req.Prompt)
}

type localizationPayload struct {
	Content        string `json:"paraphrased_content"`
	Classification string `json:"classification"`
	Notes          string `json:"localization_notes"`
}

func (l *Localization) Execute(ctx context.Context, provider ports.ContentProvider, req domain.ContentRequest) (domain.ContentResult, error) {
	raw, err := complete(ctx, l, provider, l.Prompt(req))
	if err != nil {
		return domain.ContentResult{}, err
	}
	return l.Parse(raw, req), nil
}

func (l *Localization) Parse(raw string, req domain.ContentRequest) domain.ContentResult {
	candidate, ok := extractJSON(raw)
	if !ok {
		return degraded(l.Name(), raw, req)
	}
	var p localizationPayload
	if err := json.Unmarshal([]byte(candidate), &p); err != nil || strings.TrimSpace(p.Content) == "" {
		return degraded(l.Name(), raw, req)
	}

	body := p.Content
	if !strings.Contains(body, "<") {
		body = "<p>" + body + "</p>"
	}
	classification := strings.TrimSpace(p.Classification)
	if classification == "" {
		classification = "General"
	}

	return domain.ContentResult{
		Title:          quality.Truncate(req.Prompt, titleLimit),
		Body:           body,
		Excerpt:        quality.Excerpt(body, 160),
		WordCount:      quality.CountWords(body),
		Classification: classification,
		Notes:          strings.TrimSpace(p.Notes),
		Strategy:       l.Name(),
	}
}
