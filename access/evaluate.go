package access

import (
	"github.com/xraph/turnstile/feature"
	"github.com/xraph/turnstile/subscription"
)

// Evaluate computes the gate decision for one feature request.
//
// It is a total, pure function: every input combination produces a decision,
// never an error, so it is safe to call on every gated request without a
// surrounding error handler. A nil snapshot means no authenticated user
// context reached the gate.
//
// The decision ladder:
//
//  1. No snapshot → unauthenticated.
//  2. Inactive status → subscription_inactive. This check is
//     tier-independent: a lapsed enterprise subscription has no more access
//     than a lapsed free one.
//  3. Feature not configured in the registry → allow. Fail-open keeps
//     endpoints that predate tier classification working; the registry's
//     key-set test makes unclassified features visible in review.
//  4. Otherwise allow iff the snapshot's tier level meets the requirement,
//     carrying both tiers on denial.
func Evaluate(reg *feature.Registry, snap *subscription.Snapshot, featureKey string) Decision {
	if snap == nil {
		return Decision{
			Allowed: false,
			Reason:  ReasonUnauthenticated,
			Feature: featureKey,
		}
	}

	if !snap.Active() {
		return Decision{
			Allowed: false,
			Reason:  ReasonSubscriptionInactive,
			Feature: featureKey,
		}
	}

	required, configured := reg.RequiredTier(featureKey)
	if !configured {
		return Decision{
			Allowed: true,
			Reason:  ReasonOK,
			Feature: featureKey,
		}
	}

	if !snap.Tier.AtLeast(required) {
		return Decision{
			Allowed:      false,
			Reason:       ReasonTierInsufficient,
			Feature:      featureKey,
			RequiredTier: required,
			CurrentTier:  snap.Tier,
		}
	}

	return Decision{
		Allowed: true,
		Reason:  ReasonOK,
		Feature: featureKey,
	}
}
