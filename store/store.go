package store

import (
	"context"
	"time"

	"github.com/xraph/turnstile/access"
	"github.com/xraph/turnstile/credit"
	"github.com/xraph/turnstile/id"
	"github.com/xraph/turnstile/types"
)

// Store is the unified storage interface for all Turnstile entities.
type Store interface {
	// Account methods
	CreateAccount(ctx context.Context, a *credit.Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*credit.Account, error)

	// Debit decrements the account balance by cost and appends a ledger
	// entry, allowing the debit only when balance >= cost. The check and
	// the write are one unit: either a single conditional update against
	// the backing store, or a versioned write that returns ErrDebitConflict
	// when a concurrent writer got there first (the engine retries those).
	// Returns ErrInsufficientCredits when the balance cannot cover the cost.
	// The balance never goes negative.
	Debit(ctx context.Context, accountID id.AccountID, cost types.Credits, reason string) (*credit.Entry, error)

	// Credit increments the account balance (top-ups from the payment
	// collaborator) and appends a ledger entry.
	Credit(ctx context.Context, accountID id.AccountID, amount types.Credits, reason string) (*credit.Entry, error)

	// ListEntries returns ledger entries for an account, newest first.
	ListEntries(ctx context.Context, accountID id.AccountID, opts credit.ListOpts) ([]*credit.Entry, error)

	// Journal methods
	RecordEvents(ctx context.Context, events []*access.Event) error
	QueryEvents(ctx context.Context, tenantID, appID string, opts access.QueryOpts) ([]*access.Event, error)
	PurgeEvents(ctx context.Context, before time.Time) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
