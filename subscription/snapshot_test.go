package subscription_test

import (
	"testing"

	"github.com/xraph/turnstile/subscription"
	"github.com/xraph/turnstile/tier"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want subscription.Status
	}{
		{"active", subscription.StatusActive},
		{"cancelled", subscription.StatusCancelled},
		{"expired", subscription.StatusExpired},
		{"none", subscription.StatusNone},
		{"", subscription.StatusNone},
		{"trialing", subscription.StatusNone},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := subscription.ParseStatus(tt.in); got != tt.want {
				t.Errorf("ParseStatus(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewSnapshot(t *testing.T) {
	snap := subscription.NewSnapshot("pro", "active")
	if snap.Tier != tier.Pro || snap.Status != subscription.StatusActive {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	// Malformed persisted data normalizes downward, never upward.
	snap = subscription.NewSnapshot("platinum", "paused")
	if snap.Tier != tier.Free {
		t.Errorf("unknown tier should normalize to free, got %s", snap.Tier)
	}
	if snap.Status != subscription.StatusNone {
		t.Errorf("unknown status should normalize to none, got %s", snap.Status)
	}
}

func TestActive(t *testing.T) {
	tests := []struct {
		status subscription.Status
		want   bool
	}{
		{subscription.StatusActive, true},
		{subscription.StatusCancelled, false},
		{subscription.StatusExpired, false},
		{subscription.StatusNone, false},
	}

	for _, tt := range tests {
		snap := subscription.Snapshot{Tier: tier.Enterprise, Status: tt.status}
		if got := snap.Active(); got != tt.want {
			t.Errorf("Active(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
