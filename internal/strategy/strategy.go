package strategy

import (
	"context"
	"fmt"
	"sort"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/ports"
)

// Strategy turns a content request into a structured result using one provider call.
type Strategy interface {
	Name() string
	Fields() []string
	SystemPrompt() string
	MaxTokens() int
	Temperature() float64
	SupportsImages() bool
	Execute(ctx context.Context, provider ports.ContentProvider, req domain.ContentRequest) (domain.ContentResult, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds a registry with the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{strategies: map[string]Strategy{}}
	r.Register(NewSEO())
	r.Register(NewLocalization())
	return r
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(s Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[s.Name()] = s
}

// Resolve returns a strategy by name or an error wrapping domain.ErrUnknownStrategy.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if s, ok := r.strategies[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("strategy %q is not registered: %w", name, domain.ErrUnknownStrategy)
}

// Names lists registered strategies in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select creates a fresh built-in strategy by name.
func Select(name string) (Strategy, error) {
	switch name {
	case SEOName:
		return NewSEO(), nil
	case LocalizationName:
		return NewLocalization(), nil
	default:
		return nil, fmt.Errorf("select strategy %q: %w", name, domain.ErrUnknownStrategy)
	}
}

func complete(ctx context.Context, s Strategy, provider ports.ContentProvider, user string) (string, error) {
	if provider == nil {
		return "", domain.ErrNoProviderAvailable
	}
	raw, err := provider.Complete(ctx, ports.CompletionRequest{
		System:      s.SystemPrompt(),
		User:        user,
		MaxTokens:   s.MaxTokens(),
		Temperature: s.Temperature(),
	})
	if err != nil {
		return "", fmt.Errorf("%s complete via %s: %w: %w", s.Name(), provider.Name(), domain.ErrProvider, err)
	}
	return raw, nil
}
