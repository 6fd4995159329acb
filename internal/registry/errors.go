package registry

import "errors"

// Input errors.
var (
	ErrMissingInput = errors.New("wallet and name are required")
	ErrInvalidName  = errors.New("invalid domain name")
	ErrInvalidInput = errors.New("invalid wallet address or transaction hash")
)

// Conflict errors.
var (
	ErrRegistrationClosed = errors.New("registration limit reached")
	ErrNameTaken          = errors.New("domain is no longer available")
	ErrWalletHasDomain    = errors.New("wallet has already registered a domain")
	ErrTransactionUsed    = errors.New("transaction has already been used for a registration")
	ErrConflict           = errors.New("registration conflict, try again")
)

// ErrStoreFailed wraps a failed insert that was not a uniqueness conflict.
var ErrStoreFailed = errors.New("failed to store domain registration")

// Verification errors.
var (
	ErrPaymentNotVerified = errors.New("payment verification failed")
	ErrPaymentNotFound    = errors.New("payment not found within time limit")
	ErrPollingDisabled    = errors.New("transaction hash is required")
)

// Class groups errors by how callers should react.
type Class int

const (
	ClassNone Class = iota
	ClassInput
	ClassConflict
	ClassVerification
	ClassInternal
)

// Classify maps err to its class. Unknown errors are internal.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrMissingInput),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrPollingDisabled):
		return ClassInput
	case errors.Is(err, ErrRegistrationClosed),
		errors.Is(err, ErrNameTaken),
		errors.Is(err, ErrWalletHasDomain),
		errors.Is(err, ErrTransactionUsed),
		errors.Is(err, ErrConflict):
		return ClassConflict
	case errors.Is(err, ErrPaymentNotVerified),
		errors.Is(err, ErrPaymentNotFound):
		return ClassVerification
	default:
		return ClassInternal
	}
}

// outcome is the metrics label for a registration result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "registered"
	case errors.Is(err, ErrNameTaken):
		return "name_taken"
	case errors.Is(err, ErrWalletHasDomain):
		return "wallet_has_domain"
	case errors.Is(err, ErrTransactionUsed):
		return "tx_used"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrRegistrationClosed):
		return "closed"
	case errors.Is(err, ErrPaymentNotVerified):
		return "payment_rejected"
	case errors.Is(err, ErrPaymentNotFound):
		return "payment_not_found"
	}
	if Classify(err) == ClassInput {
		return "invalid_input"
	}
	return "error"
}
