package turnstile

import "errors"

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("turnstile: not found")
	ErrInvalidInput = errors.New("turnstile: invalid input")

	// Account errors
	ErrAccountNotFound = errors.New("turnstile: account not found")
	ErrAccountExists   = errors.New("turnstile: account already exists")

	// Guard errors
	ErrInvalidCost         = errors.New("turnstile: action cost must be positive")
	ErrInsufficientCredits = errors.New("turnstile: insufficient credits")
	ErrDebitConflict       = errors.New("turnstile: concurrent balance update")
	ErrRetryExhausted      = errors.New("turnstile: debit retries exhausted")

	// Registry errors
	ErrDuplicateFeature = errors.New("turnstile: duplicate feature key")
	ErrUnknownTier      = errors.New("turnstile: unknown tier")

	// Journal errors
	ErrJournalBufferFull = errors.New("turnstile: journal buffer full")

	// Store errors
	ErrStoreNotReady   = errors.New("turnstile: store not ready")
	ErrStoreClosed     = errors.New("turnstile: store is closed")
	ErrMigrationFailed = errors.New("turnstile: migration failed")
)

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsDenial returns true if the error describes an expected deny outcome
// rather than an infrastructure failure.
func IsDenial(err error) bool {
	return errors.Is(err, ErrInsufficientCredits) ||
		errors.Is(err, ErrRetryExhausted)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDebitConflict) ||
		errors.Is(err, ErrJournalBufferFull) ||
		errors.Is(err, ErrStoreNotReady)
}
