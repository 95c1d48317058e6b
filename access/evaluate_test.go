package access_test

import (
	"reflect"
	"testing"

	"github.com/xraph/turnstile/access"
	"github.com/xraph/turnstile/feature"
	"github.com/xraph/turnstile/subscription"
	"github.com/xraph/turnstile/tier"
)

func testRegistry(t *testing.T) *feature.Registry {
	t.Helper()
	r, err := feature.NewRegistry(
		feature.Descriptor{Key: "ai.review", RequiredTier: tier.Pro, Class: feature.ClassAI},
		feature.Descriptor{Key: "ai.score", RequiredTier: tier.Basic, Class: feature.ClassAI},
		feature.Descriptor{Key: "export.pdf", RequiredTier: tier.Free, Class: feature.ClassExport},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func active(tr tier.Tier) *subscription.Snapshot {
	return &subscription.Snapshot{Tier: tr, Status: subscription.StatusActive}
}

func TestEvaluate(t *testing.T) {
	reg := testRegistry(t)

	tests := []struct {
		name string
		snap *subscription.Snapshot
		key  string
		want access.Decision
	}{
		{
			name: "NilSnapshot",
			snap: nil,
			key:  "ai.review",
			want: access.Decision{Allowed: false, Reason: access.ReasonUnauthenticated, Feature: "ai.review"},
		},
		{
			name: "InactiveEnterpriseDenied",
			snap: &subscription.Snapshot{Tier: tier.Enterprise, Status: subscription.StatusCancelled},
			key:  "ai.score",
			want: access.Decision{Allowed: false, Reason: access.ReasonSubscriptionInactive, Feature: "ai.score"},
		},
		{
			name: "TierInsufficientCarriesBothTiers",
			snap: active(tier.Basic),
			key:  "ai.review",
			want: access.Decision{
				Allowed:      false,
				Reason:       access.ReasonTierInsufficient,
				Feature:      "ai.review",
				RequiredTier: tier.Pro,
				CurrentTier:  tier.Basic,
			},
		},
		{
			name: "ExactTierAllowed",
			snap: active(tier.Pro),
			key:  "ai.review",
			want: access.Decision{Allowed: true, Reason: access.ReasonOK, Feature: "ai.review"},
		},
		{
			name: "HigherTierAllowed",
			snap: active(tier.Enterprise),
			key:  "ai.score",
			want: access.Decision{Allowed: true, Reason: access.ReasonOK, Feature: "ai.score"},
		},
		{
			name: "UnconfiguredFeatureFailsOpen",
			snap: active(tier.Free),
			key:  "ai.unclassified",
			want: access.Decision{Allowed: true, Reason: access.ReasonOK, Feature: "ai.unclassified"},
		},
		{
			name: "ExpiredDeniedBeforeTierCheck",
			snap: &subscription.Snapshot{Tier: tier.Pro, Status: subscription.StatusExpired},
			key:  "export.pdf",
			want: access.Decision{Allowed: false, Reason: access.ReasonSubscriptionInactive, Feature: "export.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := access.Evaluate(reg, tt.snap, tt.key)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestEvaluateMonotonic checks that for every tier pair T1 <= T2, a feature
// requiring T1 admits an active user at T2.
func TestEvaluateMonotonic(t *testing.T) {
	for i, required := range tier.All() {
		reg, err := feature.NewRegistry(
			feature.Descriptor{Key: "f", RequiredTier: required, Class: feature.ClassAI},
		)
		if err != nil {
			t.Fatalf("registry: %v", err)
		}

		for j, user := range tier.All() {
			d := access.Evaluate(reg, active(user), "f")
			want := j >= i
			if d.Allowed != want {
				t.Errorf("required=%s user=%s: allowed=%v, want %v", required, user, d.Allowed, want)
			}
		}
	}
}

// TestEvaluateIdempotent checks that the gate is a pure function of its
// inputs: two calls with the same snapshot yield the same decision.
func TestEvaluateIdempotent(t *testing.T) {
	reg := testRegistry(t)
	snap := active(tier.Basic)

	first := access.Evaluate(reg, snap, "ai.review")
	second := access.Evaluate(reg, snap, "ai.review")

	if !reflect.DeepEqual(first, second) {
		t.Errorf("decisions differ: %+v vs %+v", first, second)
	}
}

// TestEvaluateInactiveDeniesEverything checks that no tier passes the gate
// with an inactive subscription.
func TestEvaluateInactiveDeniesEverything(t *testing.T) {
	reg := testRegistry(t)
	statuses := []subscription.Status{
		subscription.StatusCancelled,
		subscription.StatusExpired,
		subscription.StatusNone,
	}

	for _, tr := range tier.All() {
		for _, st := range statuses {
			snap := &subscription.Snapshot{Tier: tr, Status: st}
			for _, key := range []string{"ai.review", "ai.score", "export.pdf"} {
				d := access.Evaluate(reg, snap, key)
				if d.Allowed {
					t.Errorf("tier=%s status=%s feature=%s: expected denial", tr, st, key)
				}
				if d.Reason != access.ReasonSubscriptionInactive {
					t.Errorf("tier=%s status=%s: reason=%s, want subscription_inactive", tr, st, d.Reason)
				}
			}
		}
	}
}
