package tier_test

import (
	"testing"

	"github.com/xraph/turnstile/tier"
)

func TestOrdering(t *testing.T) {
	all := tier.All()
	if len(all) != 4 {
		t.Fatalf("expected 4 tiers, got %d", len(all))
	}

	for i := 1; i < len(all); i++ {
		if all[i].Level() <= all[i-1].Level() {
			t.Errorf("ordering not strictly increasing: %s (%d) <= %s (%d)",
				all[i], all[i].Level(), all[i-1], all[i-1].Level())
		}
	}
}

func TestAtLeastMonotonic(t *testing.T) {
	// For every pair T1 <= T2, a user at T2 satisfies a T1 requirement.
	all := tier.All()
	for i, required := range all {
		for j, user := range all {
			want := j >= i
			if got := user.AtLeast(required); got != want {
				t.Errorf("AtLeast(%s >= %s): got %v, want %v", user, required, got, want)
			}
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want tier.Tier
	}{
		{"free", tier.Free},
		{"basic", tier.Basic},
		{"pro", tier.Pro},
		{"enterprise", tier.Enterprise},
		{"", tier.Free},
		{"platinum", tier.Free},
		{"PRO", tier.Free},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := tier.Parse(tt.in); got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for unknown tier")
		}
	}()

	_ = tier.MustParse("platinum")
}

func TestKnown(t *testing.T) {
	if !tier.Pro.Known() {
		t.Error("pro should be known")
	}
	if tier.Tier("platinum").Known() {
		t.Error("platinum should not be known")
	}
	if tier.Tier("platinum").Level() != 0 {
		t.Error("unknown tier should map to the lowest level")
	}
}
