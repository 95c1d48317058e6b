// Package plugin provides an extensible plugin system for Turnstile.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, t interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Access gate hooks
// ──────────────────────────────────────────────────

// OnAccessChecked is called after every gate decision, allowed or not.
type OnAccessChecked interface {
	Plugin
	OnAccessChecked(ctx context.Context, decision interface{}) error
}

// OnAccessDenied is called when a gate check denies a feature.
type OnAccessDenied interface {
	Plugin
	OnAccessDenied(ctx context.Context, tenantID, featureKey, reason string) error
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnAccountOpened is called when a credit account is created.
type OnAccountOpened interface {
	Plugin
	OnAccountOpened(ctx context.Context, account interface{}) error
}

// OnCreditDebited is called after a successful debit.
type OnCreditDebited interface {
	Plugin
	OnCreditDebited(ctx context.Context, entry interface{}) error
}

// OnCreditGranted is called after a successful top-up.
type OnCreditGranted interface {
	Plugin
	OnCreditGranted(ctx context.Context, entry interface{}) error
}

// OnInsufficientCredits is called when a debit is denied for lack of balance.
type OnInsufficientCredits interface {
	Plugin
	OnInsufficientCredits(ctx context.Context, accountID string, cost int64) error
}

// OnRetryExhausted is called when the guard gives up after repeated
// conflicted debits and fails closed.
type OnRetryExhausted interface {
	Plugin
	OnRetryExhausted(ctx context.Context, accountID string, attempts int) error
}

// ──────────────────────────────────────────────────
// Journal hooks
// ──────────────────────────────────────────────────

// OnJournalFlushed is called when decision events are flushed to the store.
type OnJournalFlushed interface {
	Plugin
	OnJournalFlushed(ctx context.Context, count int, elapsed time.Duration) error
}
