// Package tier defines the subscription tier enumeration and its total order.
package tier

import "fmt"

// Tier is a named subscription level.
type Tier string

// Tier constants, lowest to highest.
const (
	Free       Tier = "free"
	Basic      Tier = "basic"
	Pro        Tier = "pro"
	Enterprise Tier = "enterprise"
)

// ordering maps each tier to its ordinal position. Free is 0 so that
// unknown values normalize to the lowest level.
var ordering = map[Tier]int{
	Free:       0,
	Basic:      1,
	Pro:        2,
	Enterprise: 3,
}

// All returns every tier in ascending order.
func All() []Tier {
	return []Tier{Free, Basic, Pro, Enterprise}
}

// Parse normalizes a persisted tier string. Unknown values map to Free
// rather than an error, so malformed user records fail closed instead of
// granting elevated access.
func Parse(s string) Tier {
	t := Tier(s)
	if _, ok := ordering[t]; ok {
		return t
	}
	return Free
}

// MustParse parses a tier string and panics if it is not a known member
// of the enumeration. Use for hardcoded tier values; persisted data goes
// through Parse.
func MustParse(s string) Tier {
	t := Tier(s)
	if _, ok := ordering[t]; !ok {
		panic(fmt.Sprintf("tier: unknown tier %q", s))
	}
	return t
}

// Known reports whether t is a member of the enumeration.
func (t Tier) Known() bool {
	_, ok := ordering[t]
	return ok
}

// Level returns the ordinal position of t in the ordering.
// Unknown tiers map to the lowest level.
func (t Tier) Level() int {
	return ordering[t]
}

// AtLeast reports whether t grants at least the access of other.
func (t Tier) AtLeast(other Tier) bool {
	return t.Level() >= other.Level()
}

// String implements fmt.Stringer.
func (t Tier) String() string { return string(t) }
