package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/metrics"
	"ContentOrchestrator/internal/ports"
	"ContentOrchestrator/internal/quality"
	"ContentOrchestrator/internal/strategy"
)

// FallbackProvider marks results built without any provider.
const FallbackProvider = "fallback"

const (
	fallbackQuality = 0.2
	maxTags         = 8
	titleLimit      = 80
	descLimit       = 160
)

// Deps wires the generator's collaborators. Providers are tried in slice order.
type Deps struct {
	Providers  []ports.ContentProvider
	Strategy   strategy.Strategy
	Cache      ports.ContentCache
	MinQuality float64
	Preferred  string
	Logger     *slog.Logger
}

// Generator produces content through a strategy, with caching and one alternate-provider retry.
type Generator struct {
	providers  []ports.ContentProvider
	strategy   strategy.Strategy
	cache      ports.ContentCache
	minQuality float64
	preferred  string
	logger     *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// Stats summarises generator activity since construction.
type Stats struct {
	TotalRequests int64            `json:"total_requests"`
	CacheHits     int64            `json:"cache_hits"`
	Successful    int64            `json:"successful_generations"`
	Fallbacks     int64            `json:"fallbacks"`
	ProviderUsage map[string]int64 `json:"provider_usage"`
	AvgQuality    float64          `json:"avg_quality"`
	AvgDuration   time.Duration    `json:"avg_duration"`
	Providers     []string         `json:"providers"`
}

// New validates deps. It fails with domain.ErrNoProviderAvailable when no provider is configured.
func New(deps Deps) (*Generator, error) {
	providers := make([]ports.ContentProvider, 0, len(deps.Providers))
	for _, p := range deps.Providers {
		if p != nil {
			providers = append(providers, p)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("new generator: %w", domain.ErrNoProviderAvailable)
	}

	s := deps.Strategy
	if s == nil {
		s = strategy.NewSEO()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}

	return &Generator{
		providers:  providers,
		strategy:   s,
		cache:      deps.Cache,
		minQuality: deps.MinQuality,
		preferred:  deps.Preferred,
		logger:     logger,
		stats:      Stats{ProviderUsage: map[string]int64{}, Providers: names},
	}, nil
}

// Strategy returns the strategy every request runs through.
func (g *Generator) Strategy() strategy.Strategy {
	return g.strategy
}

// Generate runs req through the configured preferred provider, or the first one.
func (g *Generator) Generate(ctx context.Context, req domain.ContentRequest) (domain.ContentResult, error) {
	return g.GenerateWith(ctx, req, g.preferred)
}

// GenerateWith is Generate with an explicit preferred provider name.
func (g *Generator) GenerateWith(ctx context.Context, req domain.ContentRequest, preferred string) (domain.ContentResult, error) {
	start := time.Now()
	g.count(func(s *Stats) { s.TotalRequests++ })

	key := CacheKey(req)
	if g.cache != nil {
		if cached, ok := g.cache.Get(ctx, key); ok {
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			g.count(func(s *Stats) { s.CacheHits++ })
			g.logger.Debug("content cache hit", "key", key[:12])
			return cached, nil
		}
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	primary := g.pick(preferred)
	best, ok := g.attempt(ctx, primary, req)

	if (!ok || best.Quality < g.minQuality) && len(g.providers) > 1 {
		alt := (primary + 1) % len(g.providers)
		g.logger.Info("low quality, trying alternate provider",
			"provider", g.providers[primary].Name(),
			"quality", best.Quality,
			"alternate", g.providers[alt].Name())
		if candidate, altOK := g.attempt(ctx, alt, req); altOK && (!ok || candidate.Quality > best.Quality) {
			best, ok = candidate, true
		}
	}

	if !ok {
		if err := ctx.Err(); err != nil {
			return domain.ContentResult{}, fmt.Errorf("generate content: %w", err)
		}
		best = g.fallback(req)
	}

	if req.SEOFocus {
		best = optimizeSEO(best, req.Keywords)
	}
	best.Duration = time.Since(start)

	if best.Provider == FallbackProvider {
		g.count(func(s *Stats) { s.Fallbacks++ })
		return best, nil
	}

	if g.cache != nil && best.Quality >= g.minQuality {
		g.cache.Set(ctx, key, best)
	}
	g.record(best)
	metrics.ContentQuality.WithLabelValues(best.Provider).Observe(best.Quality)

	return best, nil
}

// Stats returns a snapshot.
func (g *Generator) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := g.stats
	out.ProviderUsage = make(map[string]int64, len(g.stats.ProviderUsage))
	for k, v := range g.stats.ProviderUsage {
		out.ProviderUsage[k] = v
	}
	out.Providers = append([]string(nil), g.stats.Providers...)
	return out
}

func (g *Generator) pick(preferred string) int {
	if preferred != "" {
		for i, p := range g.providers {
			if p.Name() == preferred {
				return i
			}
		}
	}
	return 0
}

// attempt runs the strategy on one provider. A provider error yields a zero-quality candidate and false.
func (g *Generator) attempt(ctx context.Context, idx int, req domain.ContentRequest) (domain.ContentResult, bool) {
	provider := g.providers[idx]
	result, err := g.strategy.Execute(ctx, provider, req)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(provider.Name(), "error").Inc()
		g.logger.Warn("provider failed", "provider", provider.Name(), "error", err)
		return domain.ContentResult{}, false
	}
	metrics.ProviderRequestsTotal.WithLabelValues(provider.Name(), "ok").Inc()

	result.Provider = provider.Name()
	result.Quality = quality.Score(result, req)
	return result, true
}

func (g *Generator) fallback(req domain.ContentRequest) domain.ContentResult {
	topic := quality.Truncate(req.Prompt, titleLimit)
	result := domain.ContentResult{
		Title:           "About " + topic,
		Body:            "<h2>Introduction</h2><p>Content about <strong>" + topic + "</strong> is being updated.</p>",
		MetaTitle:       quality.Truncate("Learn about "+topic, titleLimit),
		MetaDescription: quality.Truncate("A detailed article about "+topic+" with useful information.", descLimit),
		Tags:            []string{"fallback", "content"},
		Excerpt:         quality.Truncate("Discover more about "+topic, descLimit),
		Provider:        FallbackProvider,
		Strategy:        g.strategy.Name(),
		Degraded:        true,
	}
	result.WordCount = quality.CountWords(result.Body)
	result.Quality = min(quality.Score(result, req), fallbackQuality)
	g.logger.Warn("all providers failed, using fallback content", "prompt", topic)
	return result
}

func (g *Generator) count(fn func(*Stats)) {
	g.mu.Lock()
	fn(&g.stats)
	g.mu.Unlock()
}

func (g *Generator) record(result domain.ContentResult) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stats.Successful++
	g.stats.ProviderUsage[result.Provider]++
	n := float64(g.stats.Successful)
	g.stats.AvgQuality = (g.stats.AvgQuality*(n-1) + result.Quality) / n
	g.stats.AvgDuration = time.Duration((float64(g.stats.AvgDuration)*(n-1) + float64(result.Duration)) / n)
}

// optimizeSEO folds the primary keyword into title and meta description and tags the first three keywords.
func optimizeSEO(result domain.ContentResult, keywords []string) domain.ContentResult {
	if len(keywords) == 0 {
		return result
	}
	primary := keywords[0]
	lower := strings.ToLower(primary)

	if !strings.Contains(strings.ToLower(result.Title), lower) {
		result.Title = quality.Truncate(primary+" - "+result.Title, titleLimit)
	}
	if !strings.Contains(strings.ToLower(result.MetaDescription), lower) {
		result.MetaDescription = quality.Truncate(strings.TrimSpace(result.MetaDescription+" Learn about "+primary+"."), descLimit)
	}

	tags := append([]string(nil), result.Tags...)
	for _, kw := range keywords[:min(3, len(keywords))] {
		if !contains(tags, kw) {
			tags = append(tags, kw)
		}
	}
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	result.Tags = tags
	return result
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

type cacheKeyInput struct {
	Prompt      string   `json:"prompt"`
	Type        string   `json:"type"`
	TargetWords int      `json:"target_words"`
	Language    string   `json:"language"`
	Tone        string   `json:"tone"`
	Keywords    []string `json:"keywords"`
}

// CacheKey fingerprints the normalized request; equal requests map to the same key.
func CacheKey(req domain.ContentRequest) string {
	keywords := make([]string, 0, len(req.Keywords))
	for _, kw := range req.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	sort.Strings(keywords)

	raw, _ := json.Marshal(cacheKeyInput{
		Prompt:      strings.TrimSpace(req.Prompt),
		Type:        string(req.ContentType),
		TargetWords: req.TargetWords,
		Language:    strings.ToLower(req.Language),
		Tone:        strings.ToLower(req.Tone),
		Keywords:    keywords,
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
