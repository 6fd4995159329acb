package storage

import (
	"context"

	"pepu-name-service/internal/domain"
)

// Unique fields among paid records, reported in duplicate key errors.
const (
	FieldName   = "name"
	FieldOwner  = "owner"
	FieldTxHash = "transaction_hash"
)

// DomainStore provides access to domains storage.
// Lookups only consider paid records; unpaid rows are never authoritative.
type DomainStore interface {
	// Insert adds a new record and assigns its ID. For paid records, returns an
	// error wrapping ErrDuplicateKey if name, owner or transaction hash is taken.
	Insert(ctx context.Context, r *domain.DomainRecord) error

	// GetByName retrieves the paid record for a canonical name. Returns ErrNotFound if not exists.
	GetByName(ctx context.Context, name string) (*domain.DomainRecord, error)

	// GetByOwner retrieves the paid record owned by a lowercased wallet. Returns ErrNotFound if not exists.
	GetByOwner(ctx context.Context, owner string) (*domain.DomainRecord, error)

	// GetByTxHash retrieves the paid record justified by a transaction. Returns ErrNotFound if not exists.
	GetByTxHash(ctx context.Context, txHash string) (*domain.DomainRecord, error)

	// CountPaid returns the number of paid records.
	CountPaid(ctx context.Context) (int64, error)
}
