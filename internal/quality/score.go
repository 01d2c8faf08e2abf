package quality

import (
	"strings"
	"unicode/utf8"

	"ContentOrchestrator/internal/domain"
)

// Policy weights. They are defaults, not tuned values; only the [0,1] clamp and
// monotonicity in each component are relied upon.
const (
	WeightWords     = 0.4
	WeightStructure = 0.3
	WeightKeywords  = 0.2
	WeightFormat    = 0.1

	// DegradedCap bounds results built from unparseable provider output.
	DegradedCap = 0.3
)

// Breakdown exposes each weighted component of a score.
type Breakdown struct {
	Words     float64
	Structure float64
	Keywords  float64
	Format    float64
}

// Total sums the components and clamps to [0,1].
func (b Breakdown) Total() float64 {
	return clamp(b.Words + b.Structure + b.Keywords + b.Format)
}

// Score rates result against the request that produced it.
func Score(result domain.ContentResult, req domain.ContentRequest) float64 {
	total := Evaluate(result, req).Total()
	if result.Degraded && total > DegradedCap {
		total = DegradedCap
	}
	return total
}

// Evaluate computes the weighted components for result.
func Evaluate(result domain.ContentResult, req domain.ContentRequest) Breakdown {
	doc := Analyze(result.Body)

	var b Breakdown

	ratio := 1.0
	if req.TargetWords > 0 {
		ratio = float64(doc.Words) / float64(req.TargetWords)
	}
	b.Words = WeightWords * clamp(ratio)

	if utf8.RuneCountInString(strings.TrimSpace(result.Title)) > 10 {
		b.Structure += 0.1
	}
	if doc.Headings > 0 {
		b.Structure += 0.1
	}
	if utf8.RuneCountInString(result.MetaTitle) > 20 {
		b.Structure += 0.05
	}
	if utf8.RuneCountInString(result.MetaDescription) > 50 {
		b.Structure += 0.05
	}

	b.Keywords = WeightKeywords * keywordCoverage(doc.Text, req.Keywords)

	if doc.Paragraphs > 0 || doc.Headings > 0 {
		b.Format += 0.05
	}
	if len(result.Tags) >= 3 {
		b.Format += 0.05
	}

	return b
}

// keywordCoverage is the fraction of keywords present in text; no keywords counts as full coverage.
func keywordCoverage(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 1
	}
	lower := strings.ToLower(text)
	found := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			found++
		}
	}
	return float64(found) / float64(len(keywords))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
