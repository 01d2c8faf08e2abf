package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/ports"
)

const defaultSize = 512

// Memory is a bounded in-process cache with per-entry expiry.
type Memory struct {
	entries *expirable.LRU[string, domain.ContentResult]
}

var _ ports.ContentCache = (*Memory)(nil)

// NewMemory builds an LRU holding up to size results for ttl (zero ttl never expires).
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = defaultSize
	}
	return &Memory{entries: expirable.NewLRU[string, domain.ContentResult](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) (domain.ContentResult, bool) {
	return m.entries.Get(key)
}

func (m *Memory) Set(_ context.Context, key string, result domain.ContentResult) {
	m.entries.Add(key, result)
}

// Len reports the current number of entries.
func (m *Memory) Len() int {
	return m.entries.Len()
}
