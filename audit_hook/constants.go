package audithook

// Action constants for audit events.
const (
	// Access actions
	ActionAccessChecked = "access.checked"
	ActionAccessDenied  = "access.denied"

	// Account actions
	ActionAccountOpened = "account.opened"

	// Credit actions
	ActionCreditDebited       = "credit.debited"
	ActionCreditGranted       = "credit.granted"
	ActionInsufficientCredits = "credit.insufficient"
	ActionRetryExhausted      = "credit.retry_exhausted"

	// Journal actions
	ActionJournalFlushed = "journal.flushed"
)

// Resource constants for audit events.
const (
	ResourceFeature = "feature"
	ResourceAccount = "account"
	ResourceEntry   = "entry"
	ResourceJournal = "journal"
)

// Category constants for audit events.
const (
	CategoryAccess = "access"
	CategoryCredit = "credit"
	CategoryUsage  = "usage"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)
