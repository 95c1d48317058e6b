// Package feature holds the static feature-to-tier table consulted by the
// access gate.
//
// The registry is an explicitly constructed value injected into the engine,
// not module-level state, so tests and deployments can supply alternate
// tables. It is immutable after construction and never re-read per request.
package feature

import (
	"fmt"
	"sort"

	"github.com/xraph/turnstile/tier"
)

// Class identifies the billing class of an action behind a feature.
type Class string

// Action classes. An active subscription grants unlimited use of AI-class
// actions; export-class actions always consume credits regardless of
// subscription.
const (
	ClassAI     Class = "ai"
	ClassExport Class = "export"
)

// Descriptor is a static configuration entry for one gated feature.
type Descriptor struct {
	// Key is the stable string identifier of the feature.
	Key string `json:"key"`

	// RequiredTier is the minimum subscription tier that may invoke the
	// feature.
	RequiredTier tier.Tier `json:"required_tier"`

	// Class is the billing class of the feature's action.
	Class Class `json:"class"`
}

// Registry is the immutable feature→tier table.
type Registry struct {
	features map[string]Descriptor
	keys     []string
}

// NewRegistry builds a registry from descriptors. Duplicate keys and unknown
// tiers are configuration bugs and rejected up front rather than surfacing as
// per-request gate behavior.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	features := make(map[string]Descriptor, len(descs))
	keys := make([]string, 0, len(descs))

	for _, d := range descs {
		if d.Key == "" {
			return nil, fmt.Errorf("feature: %w: empty key", errInvalidDescriptor)
		}
		if !d.RequiredTier.Known() {
			return nil, fmt.Errorf("feature: %w: feature %q requires unknown tier %q",
				errInvalidDescriptor, d.Key, d.RequiredTier)
		}
		if _, exists := features[d.Key]; exists {
			return nil, fmt.Errorf("feature: duplicate key %q", d.Key)
		}
		features[d.Key] = d
		keys = append(keys, d.Key)
	}

	sort.Strings(keys)

	return &Registry{features: features, keys: keys}, nil
}

// MustRegistry is like NewRegistry but panics on error. Use for hardcoded
// tables; configuration-loaded tables go through NewRegistry.
func MustRegistry(descs ...Descriptor) *Registry {
	r, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

var errInvalidDescriptor = fmt.Errorf("invalid descriptor")

// RequiredTier returns the configured minimum tier for a feature key.
// The second return value is false when the feature is not configured —
// an explicit signal, not a default tier.
func (r *Registry) RequiredTier(key string) (tier.Tier, bool) {
	d, ok := r.features[key]
	if !ok {
		return "", false
	}
	return d.RequiredTier, true
}

// Lookup returns the full descriptor for a feature key.
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	d, ok := r.features[key]
	return d, ok
}

// Keys returns every configured feature key in sorted order.
func (r *Registry) Keys() []string {
	result := make([]string, len(r.keys))
	copy(result, r.keys)
	return result
}

// Len returns the number of configured features.
func (r *Registry) Len() int { return len(r.features) }

// Default returns the shipped feature table.
//
// Features absent from this table pass the gate open (backward compatibility
// with endpoints that predate tier classification); the registry test pins
// this key set so a new gated endpoint missing its classification is caught
// in review.
func Default() *Registry {
	return MustRegistry(
		Descriptor{Key: "ai.resume_review", RequiredTier: tier.Basic, Class: ClassAI},
		Descriptor{Key: "ai.cover_letter", RequiredTier: tier.Basic, Class: ClassAI},
		Descriptor{Key: "ai.readability_score", RequiredTier: tier.Free, Class: ClassAI},
		Descriptor{Key: "ai.resume_score", RequiredTier: tier.Free, Class: ClassAI},
		Descriptor{Key: "ai.job_match", RequiredTier: tier.Pro, Class: ClassAI},
		Descriptor{Key: "ai.interview_prep", RequiredTier: tier.Pro, Class: ClassAI},
		Descriptor{Key: "ai.bulk_screening", RequiredTier: tier.Enterprise, Class: ClassAI},
		Descriptor{Key: "export.pdf", RequiredTier: tier.Free, Class: ClassExport},
		Descriptor{Key: "export.docx", RequiredTier: tier.Basic, Class: ClassExport},
	)
}
