// Package access implements the per-request authorization decision for
// gated features.
package access

import (
	"time"

	"github.com/xraph/turnstile/id"
	"github.com/xraph/turnstile/tier"
)

// Reason explains a gate decision. Denials are expected, common outcomes and
// travel as values, not errors.
type Reason string

// Decision reasons.
const (
	ReasonOK                   Reason = "ok"
	ReasonUnauthenticated      Reason = "unauthenticated"
	ReasonSubscriptionInactive Reason = "subscription_inactive"
	ReasonTierInsufficient     Reason = "tier_insufficient"
	ReasonInsufficientCredits  Reason = "insufficient_credits"
	ReasonRetryExhausted       Reason = "retry_exhausted"
)

// Decision is the outcome of one gate check.
//
// RequiredTier and CurrentTier are populated on tier_insufficient denials for
// client-side messaging. They describe the caller's own account and the
// denied feature's public requirement, which are safe to disclose.
type Decision struct {
	Allowed      bool      `json:"allowed"`
	Reason       Reason    `json:"reason"`
	Feature      string    `json:"feature"`
	RequiredTier tier.Tier `json:"required_tier,omitempty"`
	CurrentTier  tier.Tier `json:"current_tier,omitempty"`
}

// Event is one journaled gate decision, recorded asynchronously for offline
// analysis. The gate itself stays side-effect free; the engine journals
// around it.
type Event struct {
	ID        id.GateEventID `json:"id"`
	TenantID  string         `json:"tenant_id"`
	AppID     string         `json:"app_id"`
	Feature   string         `json:"feature"`
	Allowed   bool           `json:"allowed"`
	Reason    Reason         `json:"reason"`
	Tier      tier.Tier      `json:"tier,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// QueryOpts filters journal event queries.
type QueryOpts struct {
	Feature string
	Reason  Reason
	Start   time.Time
	End     time.Time
	Limit   int
	Offset  int
}
