// Package turnstile provides tiered feature gating and credit metering for Go applications.
//
// Turnstile is designed as a library, not a service. Import it directly into
// your Go application and put it in front of every premium operation. It
// provides:
//
//   - Pure, table-driven access decisions over subscription tiers
//   - An append-only credit ledger with overdraft-proof conditional debits
//   - Subscription-aware metering (AI actions free for subscribers,
//     exports always billed)
//   - Batched journaling of every gate decision for usage analytics
//   - Pluggable lifecycle hooks for audit and metrics
//
// # Quick Start
//
// Create a turnstile instance with your preferred store:
//
//	import (
//	    "github.com/xraph/turnstile"
//	    "github.com/xraph/turnstile/feature"
//	    "github.com/xraph/turnstile/store/memory"
//	)
//
//	t := turnstile.New(memory.New(), feature.Default())
//
//	// Start the engine (runs migrations and background workers)
//	if err := t.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Stop()
//
// # Core Concepts
//
// The feature registry maps feature keys to the minimum tier that may use
// them. Authorize answers "may this user see this feature" without touching
// any balance:
//
//	snap := subscription.NewSnapshot("pro", "active")
//	d := t.Authorize(ctx, snap, "ai.job_match")
//	if !d.Allowed {
//	    // d.Reason says why: tier_insufficient, subscription_inactive, ...
//	}
//
// CheckAndReserve answers "may this user do this billable thing right now"
// and, when the answer is yes, debits the cost in the same step:
//
//	receipt, err := t.CheckAndReserve(ctx, snap, accountID, credit.Action{
//	    Key:   "export.pdf",
//	    Class: feature.ClassExport,
//	    Cost:  2,
//	})
//
// A denied receipt is a value, not an error; errors are reserved for invalid
// input and store failures.
//
// # Concurrency
//
// Balances are debited through conditional writes only. The mongo and memory
// backends check-and-decrement atomically; the SQL backends use versioned
// optimistic writes that the engine retries a bounded number of times before
// failing closed with a retry_exhausted receipt. Under any interleaving the
// balance never goes negative.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	txn_01h2xcejqtf2nbrexx3vqjhp41   // Ledger entry ID
//	gevt_01h455vb4pex5vsknk084sn02q  // Gate event ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package turnstile
