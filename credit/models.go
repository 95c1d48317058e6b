// Package credit defines the credit account, its append-only ledger, and the
// action/receipt types used by the credit guard.
package credit

import (
	"time"

	"github.com/xraph/turnstile/access"
	"github.com/xraph/turnstile/feature"
	"github.com/xraph/turnstile/id"
	"github.com/xraph/turnstile/types"
)

// Account holds a user's consumable credit balance.
//
// The balance is shared mutable state hit by concurrent requests from the
// same user; it is only ever changed through the store's conditional
// write primitives and never goes negative. Version backs the optimistic
// write path on stores that cannot express a conditional decrement natively.
type Account struct {
	types.Entity
	ID       id.AccountID  `json:"id"`
	TenantID string        `json:"tenant_id"`
	AppID    string        `json:"app_id"`
	Balance  types.Credits `json:"balance"`
	Version  int64         `json:"version"`
}

// Entry is one immutable ledger record. BalanceAfter always reconciles to
// the running sum of all prior deltas for the account.
type Entry struct {
	types.Entity
	ID           id.EntryID    `json:"id"`
	AccountID    id.AccountID  `json:"account_id"`
	Delta        types.Credits `json:"delta"`
	BalanceAfter types.Credits `json:"balance_after"`
	Reason       string        `json:"reason"`
	AppID        string        `json:"app_id"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Action describes one metered operation presented to the guard.
type Action struct {
	// Key names the consuming action, recorded as the ledger entry reason.
	Key string `json:"key"`

	// Class decides whether an active subscription bypasses the credit
	// cost. AI-class actions are unlimited for subscribers; export-class
	// actions always debit.
	Class feature.Class `json:"class"`

	// Cost is the credit price of one invocation. Must be positive.
	Cost types.Credits `json:"cost"`
}

// Receipt is the guard's answer to a reserve attempt.
type Receipt struct {
	Allowed bool          `json:"allowed"`
	Reason  access.Reason `json:"reason"`

	// NewBalance reflects the post-debit state on billable allows.
	NewBalance types.Credits `json:"new_balance,omitempty"`

	// Unlimited marks allows that bypassed the debit via subscription.
	Unlimited bool `json:"unlimited,omitempty"`

	// Entry is the ledger record written for billable allows, nil otherwise.
	Entry *Entry `json:"entry,omitempty"`
}

// ListOpts filters ledger entry queries.
type ListOpts struct {
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int
}
