package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/metrics"
	"ContentOrchestrator/internal/ports"
)

const (
	ImageSize    = "1792x1024"
	ImageQuality = "standard"

	minImageTitle = 5
)

var stylePresets = map[string]string{
	"professional": "clean, modern, business-style, high-quality stock photo aesthetic",
	"creative":     "artistic, vibrant colors, creative composition, inspiring",
	"minimalist":   "clean, simple, minimal design, plenty of white space",
	"tech":         "futuristic, digital, technology-focused, modern interface elements",
	"lifestyle":    "bright, natural lighting, lifestyle photography, relatable",
}

// ImageGenerator requests featured illustrations. It never fails: an empty location means no image.
type ImageGenerator struct {
	provider ports.ImageProvider
	logger   *slog.Logger
}

// NewImageGenerator accepts a nil provider, in which case every call returns "".
func NewImageGenerator(provider ports.ImageProvider, logger *slog.Logger) *ImageGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageGenerator{provider: provider, logger: logger}
}

// GenerateImage returns the image location or "".
func (g *ImageGenerator) GenerateImage(ctx context.Context, title string, contentType domain.ContentType, style string) (location string) {
	if g == nil || g.provider == nil || utf8.RuneCountInString(strings.TrimSpace(title)) < minImageTitle {
		return ""
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("image provider panicked", "panic", r)
			location = ""
		}
		result := "ok"
		if location == "" {
			result = "empty"
		}
		metrics.ImagesTotal.WithLabelValues(result).Inc()
	}()

	url, err := g.provider.GenerateImage(ctx, ImagePrompt(title, contentType, style), ImageSize, ImageQuality)
	if err != nil {
		g.logger.Warn("image generation failed", "title", title, "error", err)
		return ""
	}
	return strings.TrimSpace(url)
}

// ImagePrompt renders the illustration prompt; unknown styles are passed through verbatim.
func ImagePrompt(title string, contentType domain.ContentType, style string) string {
	if contentType == "" {
		contentType = domain.ContentBlogPost
	}
	if style == "" {
		style = "professional"
	}
	look, ok := stylePresets[style]
	if !ok {
		look = style
	}
	return fmt.Sprintf(`Create a high-quality featured image for a %s titled: %q
Style: %s
Requirements:
- No text overlay or watermarks
- Professional composition suitable for blog header
- Colors that work well with web design
- High contrast and visual appeal
- %s aspect ratio optimized`, contentType, title, look, ImageSize)
}
