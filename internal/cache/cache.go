// Package cache remembers names known to be registered.
//
// Only positive answers are cached: a paid record is never deleted, so a
// name once seen as taken stays taken. Misses always fall through to the store.
package cache

import "context"

// NameCache is a set of registered names.
type NameCache interface {
	// IsTaken reports whether name is known to be registered.
	IsTaken(ctx context.Context, name string) (bool, error)

	// MarkTaken records name as registered.
	MarkTaken(ctx context.Context, name string) error
}

// Nop is a NameCache that remembers nothing.
type Nop struct{}

// IsTaken implements NameCache.
func (Nop) IsTaken(context.Context, string) (bool, error) { return false, nil }

// MarkTaken implements NameCache.
func (Nop) MarkTaken(context.Context, string) error { return nil }
