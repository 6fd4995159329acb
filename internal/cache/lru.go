package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"pepu-name-service/internal/observability"
)

// DefaultLRUSize is the default number of names kept in memory.
const DefaultLRUSize = 4096

// LRU is an in-process NameCache bounded by entry count.
type LRU struct {
	names *lru.Cache[string, struct{}]
}

// NewLRU creates an LRU cache holding up to size names.
func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		size = DefaultLRUSize
	}
	c, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRU{names: c}, nil
}

// IsTaken implements NameCache.
func (c *LRU) IsTaken(_ context.Context, name string) (bool, error) {
	hit := c.names.Contains(name)
	observability.RecordCacheLookup("lru", hit)
	return hit, nil
}

// MarkTaken implements NameCache.
func (c *LRU) MarkTaken(_ context.Context, name string) error {
	c.names.Add(name, struct{}{})
	return nil
}

// Len returns the number of cached names.
func (c *LRU) Len() int {
	return c.names.Len()
}

var _ NameCache = (*LRU)(nil)
