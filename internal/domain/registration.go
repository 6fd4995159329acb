package domain

import "time"

// Suffix is the fixed top-level label of every registrable name.
const Suffix = ".pepu"

// RegistrationPeriod is how long a registration nominally lasts.
// Expiry is recorded but never enforced.
const RegistrationPeriod = 365 * 24 * time.Hour

// DomainRecord represents a registered name.
// Corresponds to domains table in PostgreSQL.
type DomainRecord struct {
	ID              int64      // surrogate key, assigned by the store
	Name            string     // canonical form: lowercase, with .pepu suffix
	NameHash        string     // ENS-style namehash of Name (0x-prefixed hex)
	Owner           string     // lowercased wallet address
	Paid            bool       // only paid records are authoritative
	TransactionHash string     // lowercased hash of the justifying payment
	Amount          string     // amount paid in the asset's smallest unit (decimal string)
	CreatedAt       time.Time  // record creation time
	UpdatedAt       time.Time  // equal to CreatedAt; records are never updated
	Expiry          *time.Time // CreatedAt + RegistrationPeriod (nullable)
}

// RegistrationEvent is published after a record has been committed.
type RegistrationEvent struct {
	Name            string    `json:"name"`
	Owner           string    `json:"owner"`
	TransactionHash string    `json:"txHash"`
	RegisteredAt    time.Time `json:"registeredAt"`
	Registered      int64     `json:"registered"` // paid records after this one
}
