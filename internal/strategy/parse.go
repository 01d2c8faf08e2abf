package strategy

import (
	"encoding/json"
	"strings"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/quality"
)

const titleLimit = 80

// extractJSON pulls a JSON object out of model output: a ```json fence first,
// then the outermost braces of the text.
func extractJSON(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if start := strings.Index(text, "```"); start >= 0 {
		rest := text[start+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	open := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if open < 0 || end <= open {
		return "", false
	}
	candidate := text[open : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

// stringList accepts a JSON array of strings or a comma separated string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*l = cleanList(items)
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		*l = nil
		return nil
	}
	*l = cleanList(strings.Split(joined, ","))
	return nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// degraded builds the deterministic result used when output cannot be parsed.
func degraded(name, raw string, req domain.ContentRequest) domain.ContentResult {
	raw = strings.TrimSpace(raw)

	title := ""
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(strings.Trim(line, "#*")); line != "" {
			title = line
			break
		}
	}
	if title == "" {
		title = req.Prompt
	}
	title = quality.Truncate(title, titleLimit)

	body := ""
	if raw != "" {
		body = "<p>" + raw + "</p>"
	}

	return domain.ContentResult{
		Title:     title,
		Body:      body,
		Excerpt:   quality.Excerpt(body, 160),
		WordCount: quality.CountWords(body),
		Strategy:  name,
		Degraded:  true,
	}
}
