package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pepu-name-service/internal/domain"
	"pepu-name-service/internal/storage"
)

func paidRecord(name, owner, txHash string) *domain.DomainRecord {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expiry := now.Add(domain.RegistrationPeriod)
	return &domain.DomainRecord{
		Name:            name,
		Owner:           owner,
		Paid:            true,
		TransactionHash: txHash,
		Amount:          "5000000",
		CreatedAt:       now,
		UpdatedAt:       now,
		Expiry:          &expiry,
	}
}

func TestDomainStore_InsertAndGet(t *testing.T) {
	store := NewDomainStore()
	ctx := context.Background()

	rec := paidRecord("teck.pepu", "0xaaa", "0x01")
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if rec.ID == 0 {
		t.Error("expected ID to be assigned")
	}

	byName, err := store.GetByName(ctx, "teck.pepu")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if byName.Owner != "0xaaa" {
		t.Errorf("Owner mismatch: got %s, want 0xaaa", byName.Owner)
	}

	byOwner, err := store.GetByOwner(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("GetByOwner failed: %v", err)
	}
	if byOwner.Name != "teck.pepu" {
		t.Errorf("Name mismatch: got %s, want teck.pepu", byOwner.Name)
	}

	byTx, err := store.GetByTxHash(ctx, "0x01")
	if err != nil {
		t.Fatalf("GetByTxHash failed: %v", err)
	}
	if byTx.ID != rec.ID {
		t.Errorf("ID mismatch: got %d, want %d", byTx.ID, rec.ID)
	}
}

func TestDomainStore_NotFound(t *testing.T) {
	store := NewDomainStore()
	ctx := context.Background()

	if _, err := store.GetByName(ctx, "missing.pepu"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetByOwner(ctx, "0xnobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDomainStore_DuplicatePaidFields(t *testing.T) {
	store := NewDomainStore()
	ctx := context.Background()

	if err := store.Insert(ctx, paidRecord("teck.pepu", "0xaaa", "0x01")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	tests := []struct {
		name string
		rec  *domain.DomainRecord
	}{
		{"same name", paidRecord("teck.pepu", "0xbbb", "0x02")},
		{"same owner", paidRecord("other.pepu", "0xaaa", "0x03")},
		{"same tx hash", paidRecord("third.pepu", "0xccc", "0x01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Insert(ctx, tt.rec)
			if !errors.Is(err, storage.ErrDuplicateKey) {
				t.Errorf("expected ErrDuplicateKey, got %v", err)
			}
		})
	}

	count, _ := store.CountPaid(ctx)
	if count != 1 {
		t.Errorf("CountPaid = %d, want 1", count)
	}
}

func TestDomainStore_UnpaidNotAuthoritative(t *testing.T) {
	store := NewDomainStore()
	ctx := context.Background()

	unpaid := paidRecord("teck.pepu", "0xaaa", "0x01")
	unpaid.Paid = false
	if err := store.Insert(ctx, unpaid); err != nil {
		t.Fatalf("Insert unpaid failed: %v", err)
	}

	if _, err := store.GetByName(ctx, "teck.pepu"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unpaid record must not be visible, got %v", err)
	}

	if err := store.Insert(ctx, paidRecord("teck.pepu", "0xaaa", "0x01")); err != nil {
		t.Fatalf("paid insert over unpaid failed: %v", err)
	}
}

func TestDomainStore_ReturnsCopies(t *testing.T) {
	store := NewDomainStore()
	ctx := context.Background()

	if err := store.Insert(ctx, paidRecord("teck.pepu", "0xaaa", "0x01")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, _ := store.GetByName(ctx, "teck.pepu")
	got.Owner = "0xmutated"
	*got.Expiry = time.Time{}

	again, _ := store.GetByName(ctx, "teck.pepu")
	if again.Owner != "0xaaa" {
		t.Errorf("store was mutated through returned record")
	}
	if again.Expiry.IsZero() {
		t.Errorf("expiry was mutated through returned record")
	}
}

func TestDomainStore_ConcurrentSameName(t *testing.T) {
	store := NewDomainStore()
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := paidRecord("race.pepu", fmt.Sprintf("0x%03d", i), fmt.Sprintf("0xtx%03d", i))
			if err := store.Insert(ctx, rec); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 successful insert, got %d", successes)
	}
}

func TestDomainStore_InvalidInput(t *testing.T) {
	store := NewDomainStore()
	if err := store.Insert(context.Background(), nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if err := store.Insert(context.Background(), &domain.DomainRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
