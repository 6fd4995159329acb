package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pepu-name-service/internal/domain"
	"pepu-name-service/internal/observability"
	"pepu-name-service/internal/storage"
)

// DomainStore implements storage.DomainStore using PostgreSQL.
// Paid-row uniqueness is enforced by partial unique indexes.
type DomainStore struct {
	pool *Pool
}

// NewDomainStore creates a new DomainStore.
func NewDomainStore(pool *Pool) *DomainStore {
	return &DomainStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DomainStore = (*DomainStore)(nil)

// uniqueIndexFields maps partial unique indexes to the field they protect.
var uniqueIndexFields = map[string]string{
	"domains_paid_name_key":             storage.FieldName,
	"domains_paid_owner_key":            storage.FieldOwner,
	"domains_paid_transaction_hash_key": storage.FieldTxHash,
}

const domainColumns = `id, name, name_hash, owner, paid, transaction_hash, amount, created_at, updated_at, expiry`

// Insert adds a record and assigns its ID.
func (s *DomainStore) Insert(ctx context.Context, r *domain.DomainRecord) (err error) {
	if r == nil || r.Name == "" || r.Owner == "" {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert", time.Now(), &err)

	query := `
		INSERT INTO domains (
			name, name_hash, owner, paid, transaction_hash, amount, created_at, updated_at, expiry
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := r.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	amount := r.Amount
	if amount == "" {
		amount = "0"
	}

	err = s.pool.QueryRow(ctx, query,
		r.Name,
		r.NameHash,
		r.Owner,
		r.Paid,
		r.TransactionHash,
		amount,
		createdAt,
		updatedAt,
		r.Expiry,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		switch {
		case isDuplicateKeyError(err):
			return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, duplicateField(err))
		case isCheckViolation(err):
			return fmt.Errorf("%w: %w", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert domain: %w", err)
	}
	return nil
}

// GetByName retrieves the paid record for name. Returns ErrNotFound if not exists.
func (s *DomainStore) GetByName(ctx context.Context, name string) (*domain.DomainRecord, error) {
	return s.getOne(ctx, "get_by_name", `SELECT `+domainColumns+` FROM domains WHERE name = $1 AND paid`, name)
}

// GetByOwner retrieves the paid record for owner. Returns ErrNotFound if not exists.
func (s *DomainStore) GetByOwner(ctx context.Context, owner string) (*domain.DomainRecord, error) {
	return s.getOne(ctx, "get_by_owner", `SELECT `+domainColumns+` FROM domains WHERE owner = $1 AND paid`, owner)
}

// GetByTxHash retrieves the paid record for txHash. Returns ErrNotFound if not exists.
func (s *DomainStore) GetByTxHash(ctx context.Context, txHash string) (*domain.DomainRecord, error) {
	return s.getOne(ctx, "get_by_tx_hash", `SELECT `+domainColumns+` FROM domains WHERE transaction_hash = $1 AND paid`, txHash)
}

// CountPaid returns the number of paid records.
func (s *DomainStore) CountPaid(ctx context.Context) (n int64, err error) {
	defer observeQuery("count_paid", time.Now(), &err)

	query := `SELECT count(*) FROM domains WHERE paid`
	if err = s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count paid domains: %w", err)
	}
	return n, nil
}

func (s *DomainStore) getOne(ctx context.Context, op, query string, arg string) (_ *domain.DomainRecord, err error) {
	defer observeQuery(op, time.Now(), &err)

	row := s.pool.QueryRow(ctx, query, arg)
	r, err := scanDomain(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("domain %s: %w", op, err)
	}
	return r, nil
}

// scanDomain scans a single row into DomainRecord.
func scanDomain(row pgx.Row) (*domain.DomainRecord, error) {
	var r domain.DomainRecord

	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.NameHash,
		&r.Owner,
		&r.Paid,
		&r.TransactionHash,
		&r.Amount,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.Expiry,
	)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// duplicateField names the field behind a unique violation.
func duplicateField(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if field, ok := uniqueIndexFields[pgErr.ConstraintName]; ok {
			return field
		}
		return pgErr.ConstraintName
	}
	return "unknown"
}

// observeQuery records query metrics; not-found lookups are not errors.
func observeQuery(op string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	observability.RecordDBQuery("postgres", op, time.Since(start).Seconds(), err)
}
