package types

import "testing"

func TestCreditsArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Credits
		expected Credits
	}{
		{"Add", func() Credits { return Credits(10).Add(5) }, 15},
		{"Subtract", func() Credits { return Credits(10).Subtract(3) }, 7},
		{"Negate", func() Credits { return Credits(4).Negate() }, -4},
		{"Chained", func() Credits { return Credits(10).Add(5).Subtract(12) }, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); got != tt.expected {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCreditsCanCover(t *testing.T) {
	tests := []struct {
		name    string
		balance Credits
		cost    Credits
		want    bool
	}{
		{"Exact", 5, 5, true},
		{"Surplus", 10, 5, true},
		{"Short", 4, 5, false},
		{"ZeroBalance", 0, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.balance.CanCover(tt.cost); got != tt.want {
				t.Errorf("CanCover(%v, %v) = %v, want %v", tt.balance, tt.cost, got, tt.want)
			}
		})
	}
}

func TestCreditsString(t *testing.T) {
	tests := []struct {
		c    Credits
		want string
	}{
		{0, "0 credits"},
		{1, "1 credit"},
		{-1, "-1 credit"},
		{12, "12 credits"},
	}

	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", int64(tt.c), got, tt.want)
		}
	}
}
