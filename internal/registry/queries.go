package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pepu-name-service/internal/domain"
	"pepu-name-service/internal/naming"
	"pepu-name-service/internal/observability"
	"pepu-name-service/internal/storage"
)

// Availability is the result of an availability check.
type Availability struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Stats summarizes registrations.
type Stats struct {
	Registered int64 `json:"registered"`
	Limit      int64 `json:"limit,omitempty"`
	Remaining  int64 `json:"remaining,omitempty"`
}

// Exists reports whether a paid record exists for name. The name is
// formatted first, so "teck" and "TECK.pepu" refer to the same record.
// It does not validate the name.
func (r *Registrar) Exists(ctx context.Context, name string) (bool, error) {
	name = naming.Format(strings.TrimSpace(name))
	if name == domain.Suffix {
		return false, ErrMissingInput
	}

	if hit, err := r.cache.IsTaken(ctx, name); err != nil {
		r.logger.Warn("name cache lookup failed", zap.String("name", name), zap.Error(err))
	} else if hit {
		observability.RecordAvailabilityCheck(true)
		return true, nil
	}

	_, err := r.store.GetByName(ctx, name)
	switch {
	case err == nil:
		if err := r.cache.MarkTaken(ctx, name); err != nil {
			r.logger.Warn("failed to cache registered name", zap.String("name", name), zap.Error(err))
		}
		observability.RecordAvailabilityCheck(true)
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		observability.RecordAvailabilityCheck(false)
		return false, nil
	default:
		return false, fmt.Errorf("lookup name: %w", err)
	}
}

// Availability combines name validation with the existence check.
func (r *Registrar) Availability(ctx context.Context, input string) (Availability, error) {
	res := naming.IsRegistrable(strings.TrimSpace(input))
	out := Availability{Name: res.Name}
	if !res.OK {
		out.Reason = res.Reason
		return out, nil
	}

	taken, err := r.Exists(ctx, res.Name)
	if err != nil {
		return out, err
	}
	if taken {
		out.Reason = "taken"
		return out, nil
	}
	out.Available = true
	return out, nil
}

// Lookup returns the paid record for name.
func (r *Registrar) Lookup(ctx context.Context, name string) (*domain.DomainRecord, error) {
	name = naming.Format(strings.TrimSpace(name))
	if name == domain.Suffix {
		return nil, ErrMissingInput
	}
	return r.store.GetByName(ctx, name)
}

// OwnedBy returns the paid record owned by wallet.
func (r *Registrar) OwnedBy(ctx context.Context, wallet string) (*domain.DomainRecord, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, ErrMissingInput
	}
	if !common.IsHexAddress(wallet) {
		return nil, fmt.Errorf("%w: malformed wallet address", ErrInvalidInput)
	}
	return r.store.GetByOwner(ctx, strings.ToLower(wallet))
}

// Stats returns the number of registrations and the remaining capacity.
func (r *Registrar) Stats(ctx context.Context) (Stats, error) {
	n, err := r.store.CountPaid(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count domains: %w", err)
	}
	observability.SetRegisteredDomains(n)

	s := Stats{Registered: n}
	if r.maxDomains > 0 {
		s.Limit = r.maxDomains
		s.Remaining = max(r.maxDomains-n, 0)
	}
	return s, nil
}
