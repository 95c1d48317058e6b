// Package subscription defines the read-only subscription view passed into
// the access gate.
package subscription

import "github.com/xraph/turnstile/tier"

// Status is the lifecycle state of a subscription.
type Status string

// Subscription statuses. Only StatusActive passes feature gates, regardless
// of tier.
const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusNone      Status = "none"
)

// ParseStatus normalizes a persisted status string. Unknown values map to
// StatusNone, which never passes the gate.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusActive, StatusCancelled, StatusExpired, StatusNone:
		return Status(s)
	default:
		return StatusNone
	}
}

// Snapshot is a read-only view of one user's subscription, constructed fresh
// per request from the persisted user record. The gate never mutates it.
type Snapshot struct {
	Tier   tier.Tier `json:"tier"`
	Status Status    `json:"status"`
}

// NewSnapshot builds a snapshot from persisted tier and status strings,
// normalizing unknown values (unknown tier → free, unknown status → none).
func NewSnapshot(tierStr, statusStr string) Snapshot {
	return Snapshot{
		Tier:   tier.Parse(tierStr),
		Status: ParseStatus(statusStr),
	}
}

// Active reports whether the subscription may pass feature gates.
func (s Snapshot) Active() bool {
	return s.Status == StatusActive
}
