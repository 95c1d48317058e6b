// Package types provides common types used across Turnstile.
package types

import "fmt"

// Credits represents a consumable credit amount. All arithmetic is
// integer-only — no floating point.
//
// Credits are the unit debited for metered actions (e.g. a document
// export costs 1 credit). A balance is never negative; deltas on ledger
// entries may be.
type Credits int64

// Add adds two credit amounts.
func (c Credits) Add(other Credits) Credits { return c + other }

// Subtract subtracts another credit amount.
func (c Credits) Subtract(other Credits) Credits { return c - other }

// Negate returns the negated amount. Used for debit deltas.
func (c Credits) Negate() Credits { return -c }

// IsPositive reports whether the amount is greater than zero.
func (c Credits) IsPositive() bool { return c > 0 }

// IsZero reports whether the amount is zero.
func (c Credits) IsZero() bool { return c == 0 }

// IsNegative reports whether the amount is less than zero.
func (c Credits) IsNegative() bool { return c < 0 }

// CanCover reports whether a balance of c covers the given cost.
func (c Credits) CanCover(cost Credits) bool { return c >= cost }

// Int64 returns the raw amount for storage.
func (c Credits) Int64() int64 { return int64(c) }

// String implements fmt.Stringer.
func (c Credits) String() string {
	if c == 1 || c == -1 {
		return fmt.Sprintf("%d credit", int64(c))
	}
	return fmt.Sprintf("%d credits", int64(c))
}
