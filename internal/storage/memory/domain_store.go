package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pepu-name-service/internal/domain"
	"pepu-name-service/internal/storage"
)

// DomainStore is an in-memory implementation of storage.DomainStore.
// Uniqueness checks and the insert happen under one lock.
type DomainStore struct {
	mu       sync.RWMutex
	nextID   int64
	records  []*domain.DomainRecord
	byName   map[string]*domain.DomainRecord // paid only
	byOwner  map[string]*domain.DomainRecord // paid only
	byTxHash map[string]*domain.DomainRecord // paid only
}

// NewDomainStore creates a new in-memory domain store.
func NewDomainStore() *DomainStore {
	return &DomainStore{
		byName:   make(map[string]*domain.DomainRecord),
		byOwner:  make(map[string]*domain.DomainRecord),
		byTxHash: make(map[string]*domain.DomainRecord),
	}
}

// Insert adds a record. Paid records must not collide on name, owner or tx hash.
func (s *DomainStore) Insert(_ context.Context, r *domain.DomainRecord) error {
	if r == nil || r.Name == "" || r.Owner == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Paid {
		if _, exists := s.byName[r.Name]; exists {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, storage.FieldName)
		}
		if _, exists := s.byOwner[r.Owner]; exists {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, storage.FieldOwner)
		}
		if _, exists := s.byTxHash[r.TransactionHash]; exists {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, storage.FieldTxHash)
		}
	}

	s.nextID++
	rec := copyRecord(r)
	rec.ID = s.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	s.records = append(s.records, &rec)
	if rec.Paid {
		s.byName[rec.Name] = &rec
		s.byOwner[rec.Owner] = &rec
		s.byTxHash[rec.TransactionHash] = &rec
	}

	r.ID = rec.ID
	r.CreatedAt = rec.CreatedAt
	r.UpdatedAt = rec.UpdatedAt
	return nil
}

// GetByName retrieves the paid record for name. Returns ErrNotFound if not exists.
func (s *DomainStore) GetByName(_ context.Context, name string) (*domain.DomainRecord, error) {
	return s.get(s.byName, name)
}

// GetByOwner retrieves the paid record for owner. Returns ErrNotFound if not exists.
func (s *DomainStore) GetByOwner(_ context.Context, owner string) (*domain.DomainRecord, error) {
	return s.get(s.byOwner, owner)
}

// GetByTxHash retrieves the paid record for txHash. Returns ErrNotFound if not exists.
func (s *DomainStore) GetByTxHash(_ context.Context, txHash string) (*domain.DomainRecord, error) {
	return s.get(s.byTxHash, txHash)
}

// CountPaid returns the number of paid records.
func (s *DomainStore) CountPaid(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.byName)), nil
}

func (s *DomainStore) get(index map[string]*domain.DomainRecord, key string) (*domain.DomainRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := index[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := copyRecord(r)
	return &recCopy, nil
}

func copyRecord(r *domain.DomainRecord) domain.DomainRecord {
	c := *r
	if r.Expiry != nil {
		e := *r.Expiry
		c.Expiry = &e
	}
	return c
}

var _ storage.DomainStore = (*DomainStore)(nil)
