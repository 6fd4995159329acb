// Package registry decides whether a paid name can be registered and
// records it.
//
// The existence checks here are a fast path only. The store's unique
// constraints are what actually prevent two paid records from sharing a
// name, owner or transaction.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pepu-name-service/internal/cache"
	"pepu-name-service/internal/domain"
	"pepu-name-service/internal/naming"
	"pepu-name-service/internal/notify"
	"pepu-name-service/internal/observability"
	"pepu-name-service/internal/payment"
	"pepu-name-service/internal/storage"
)

const (
	// DefaultNotifyTimeout bounds a single background notification.
	DefaultNotifyTimeout = 10 * time.Second

	// pollCommitTimeout bounds verification and insert once polling has
	// found a payment.
	pollCommitTimeout = 30 * time.Second
)

// Verifier checks a payment transaction.
type Verifier interface {
	Check(ctx context.Context, txHash, expectedSender string) payment.Result
}

// PaymentFinder discovers a payment for a wallet without a tx hash.
type PaymentFinder interface {
	FindPayment(ctx context.Context, sender string) (string, error)
}

// Publisher receives committed registrations.
type Publisher interface {
	Publish(ev domain.RegistrationEvent)
}

// Registrar gates and records registrations.
type Registrar struct {
	store         storage.DomainStore
	verifier      Verifier
	finder        PaymentFinder
	cache         cache.NameCache
	notifier      notify.Notifier
	publisher     Publisher
	maxDomains    int64
	notifyTimeout time.Duration
	now           func() time.Time
	logger        *zap.Logger

	pending sync.WaitGroup
}

// Option configures Registrar.
type Option func(*Registrar)

// WithCache sets the taken-name cache.
func WithCache(c cache.NameCache) Option {
	return func(r *Registrar) { r.cache = c }
}

// WithNotifier sets the post-commit notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Registrar) { r.notifier = n }
}

// WithPublisher sets the registration event sink.
func WithPublisher(p Publisher) Option {
	return func(r *Registrar) { r.publisher = p }
}

// WithPaymentFinder enables registration without a tx hash.
func WithPaymentFinder(f PaymentFinder) Option {
	return func(r *Registrar) { r.finder = f }
}

// WithMaxDomains caps the number of paid records. Zero disables the cap.
func WithMaxDomains(n int64) Option {
	return func(r *Registrar) { r.maxDomains = n }
}

// WithNotifyTimeout bounds each background notification.
func WithNotifyTimeout(d time.Duration) Option {
	return func(r *Registrar) { r.notifyTimeout = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registrar) { r.now = now }
}

// NewRegistrar creates a Registrar.
func NewRegistrar(store storage.DomainStore, verifier Verifier, logger *zap.Logger, opts ...Option) *Registrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registrar{
		store:         store,
		verifier:      verifier,
		cache:         cache.Nop{},
		notifier:      notify.NewLog(logger),
		notifyTimeout: DefaultNotifyTimeout,
		now:           time.Now,
		logger:        logger.Named("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PollingEnabled reports whether RegisterWithPolling can be used.
func (r *Registrar) PollingEnabled() bool {
	return r.finder != nil
}

// Wait blocks until background notifications have finished.
func (r *Registrar) Wait() {
	r.pending.Wait()
}

// RegisterIfEligible verifies the payment behind txHash and records name
// for owner. Checks run in order: input, registration cap, name, owner,
// transaction reuse, payment. The returned record is the committed one.
func (r *Registrar) RegisterIfEligible(ctx context.Context, name, owner, txHash string) (rec *domain.DomainRecord, err error) {
	defer func() { observability.RecordRegistration(outcome(err)) }()

	name, owner, err = normalizeInput(name, owner)
	if err != nil {
		return nil, err
	}
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, ErrMissingInput
	}
	hash, ok := payment.ParseTxHash(txHash)
	if !ok {
		return nil, fmt.Errorf("%w: malformed transaction hash", ErrInvalidInput)
	}
	txHash = hash.Hex()

	if err := r.precheck(ctx, name, owner); err != nil {
		return nil, err
	}
	if _, err := r.store.GetByTxHash(ctx, txHash); err == nil {
		return nil, ErrTransactionUsed
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup transaction: %w", err)
	}

	res := r.verifier.Check(ctx, txHash, owner)
	if !res.Valid {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotVerified, res.Reason)
	}

	return r.commit(ctx, name, owner, txHash, res)
}

// RegisterWithPolling waits for a payment from owner and then registers
// name with it. Without a PaymentFinder it returns ErrPollingDisabled.
// The wait is bounded by the finder's own policy and is not cut short
// when ctx is canceled.
func (r *Registrar) RegisterWithPolling(ctx context.Context, name, owner string) (*domain.DomainRecord, error) {
	name, owner, err := normalizeInput(name, owner)
	if err != nil {
		observability.RecordRegistration(outcome(err))
		return nil, err
	}
	if r.finder == nil {
		observability.RecordRegistration(outcome(ErrPollingDisabled))
		return nil, ErrPollingDisabled
	}
	if err := r.precheck(ctx, name, owner); err != nil {
		observability.RecordRegistration(outcome(err))
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	txHash, err := r.finder.FindPayment(detached, owner)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrPaymentNotFound):
			err = ErrPaymentNotFound
		case errors.Is(err, payment.ErrPollingUnsupported):
			err = ErrPollingDisabled
		default:
			err = fmt.Errorf("poll payment: %w", err)
		}
		observability.RecordRegistration(outcome(err))
		return nil, err
	}

	cctx, cancel := context.WithTimeout(detached, pollCommitTimeout)
	defer cancel()
	return r.RegisterIfEligible(cctx, name, owner, txHash)
}

func normalizeInput(name, owner string) (string, string, error) {
	name = strings.TrimSpace(name)
	owner = strings.TrimSpace(owner)
	if name == "" || owner == "" {
		return "", "", ErrMissingInput
	}

	name = naming.Format(name)
	if err := naming.CheckLabel(naming.Label(name)); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidName, err)
	}
	if !common.IsHexAddress(owner) {
		return "", "", fmt.Errorf("%w: malformed wallet address", ErrInvalidInput)
	}
	return name, strings.ToLower(owner), nil
}

// precheck runs the cheap store checks shared by both registration paths.
func (r *Registrar) precheck(ctx context.Context, name, owner string) error {
	if r.maxDomains > 0 {
		n, err := r.store.CountPaid(ctx)
		if err != nil {
			return fmt.Errorf("count domains: %w", err)
		}
		if n >= r.maxDomains {
			return ErrRegistrationClosed
		}
	}

	if _, err := r.store.GetByName(ctx, name); err == nil {
		return ErrNameTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup name: %w", err)
	}

	if _, err := r.store.GetByOwner(ctx, owner); err == nil {
		return ErrWalletHasDomain
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup owner: %w", err)
	}
	return nil
}

func (r *Registrar) commit(ctx context.Context, name, owner, txHash string, res payment.Result) (*domain.DomainRecord, error) {
	now := r.now().UTC()
	expiry := now.Add(domain.RegistrationPeriod)
	rec := &domain.DomainRecord{
		Name:            name,
		NameHash:        naming.NameHash(name).Hex(),
		Owner:           owner,
		Paid:            true,
		TransactionHash: txHash,
		CreatedAt:       now,
		UpdatedAt:       now,
		Expiry:          &expiry,
	}
	if res.Amount != nil {
		rec.Amount = res.Amount.String()
	}

	if err := r.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			r.logger.Info("registration lost insert race",
				zap.String("name", name),
				zap.String("owner", owner),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	r.logger.Info("domain registered",
		zap.String("name", rec.Name),
		zap.String("owner", rec.Owner),
		zap.String("tx_hash", rec.TransactionHash))

	r.afterCommit(ctx, rec)
	return rec, nil
}

// afterCommit runs side effects that must never fail the registration.
func (r *Registrar) afterCommit(ctx context.Context, rec *domain.DomainRecord) {
	if err := r.cache.MarkTaken(ctx, rec.Name); err != nil {
		r.logger.Warn("failed to cache registered name", zap.String("name", rec.Name), zap.Error(err))
	}

	count, err := r.store.CountPaid(ctx)
	if err != nil {
		r.logger.Warn("failed to count domains", zap.Error(err))
	} else {
		observability.SetRegisteredDomains(count)
	}

	ev := domain.RegistrationEvent{
		Name:            rec.Name,
		Owner:           rec.Owner,
		TransactionHash: rec.TransactionHash,
		RegisteredAt:    rec.CreatedAt,
		Registered:      count,
	}
	if r.publisher != nil {
		r.publisher.Publish(ev)
	}

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		nctx, cancel := context.WithTimeout(context.Background(), r.notifyTimeout)
		defer cancel()
		if !r.notifier.Notify(nctx, ev) {
			r.logger.Warn("registration notification not delivered", zap.String("name", ev.Name))
		}
	}()
}
