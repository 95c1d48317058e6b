// Package audithook bridges Turnstile lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/turnstile/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnAccessChecked       = (*Extension)(nil)
	_ plugin.OnAccessDenied        = (*Extension)(nil)
	_ plugin.OnAccountOpened       = (*Extension)(nil)
	_ plugin.OnCreditDebited       = (*Extension)(nil)
	_ plugin.OnCreditGranted       = (*Extension)(nil)
	_ plugin.OnInsufficientCredits = (*Extension)(nil)
	_ plugin.OnRetryExhausted      = (*Extension)(nil)
	_ plugin.OnJournalFlushed      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Turnstile lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Access gate hooks
// ──────────────────────────────────────────────────

// OnAccessChecked implements plugin.OnAccessChecked.
func (e *Extension) OnAccessChecked(_ context.Context, _ interface{}) error {
	// Allowed checks are journaled by the engine itself; auditing every one
	// here would double the write volume. Denials arrive via OnAccessDenied.
	return nil
}

// OnAccessDenied implements plugin.OnAccessDenied.
func (e *Extension) OnAccessDenied(ctx context.Context, tenantID, featureKey, reason string) error {
	return e.record(ctx, ActionAccessDenied, SeverityWarning, OutcomeDenied,
		ResourceFeature, featureKey, CategoryAccess, nil,
		"tenant_id", tenantID,
		"feature", featureKey,
		"deny_reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnAccountOpened implements plugin.OnAccountOpened.
func (e *Extension) OnAccountOpened(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionAccountOpened, SeverityInfo, OutcomeSuccess,
		ResourceAccount, "", CategoryCredit, nil,
		"event", "account_opened",
	)
}

// OnCreditDebited implements plugin.OnCreditDebited.
func (e *Extension) OnCreditDebited(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionCreditDebited, SeverityInfo, OutcomeSuccess,
		ResourceEntry, "", CategoryCredit, nil,
		"event", "credit_debited",
	)
}

// OnCreditGranted implements plugin.OnCreditGranted.
func (e *Extension) OnCreditGranted(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionCreditGranted, SeverityInfo, OutcomeSuccess,
		ResourceEntry, "", CategoryCredit, nil,
		"event", "credit_granted",
	)
}

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (e *Extension) OnInsufficientCredits(ctx context.Context, accountID string, cost int64) error {
	return e.record(ctx, ActionInsufficientCredits, SeverityWarning, OutcomeDenied,
		ResourceAccount, accountID, CategoryCredit, nil,
		"account_id", accountID,
		"cost", cost,
	)
}

// OnRetryExhausted implements plugin.OnRetryExhausted.
func (e *Extension) OnRetryExhausted(ctx context.Context, accountID string, attempts int) error {
	return e.record(ctx, ActionRetryExhausted, SeverityError, OutcomeFailure,
		ResourceAccount, accountID, CategoryCredit, nil,
		"account_id", accountID,
		"attempts", attempts,
	)
}

// ──────────────────────────────────────────────────
// Journal hooks
// ──────────────────────────────────────────────────

// OnJournalFlushed implements plugin.OnJournalFlushed.
func (e *Extension) OnJournalFlushed(ctx context.Context, count int, elapsed time.Duration) error {
	return e.record(ctx, ActionJournalFlushed, SeverityInfo, OutcomeSuccess,
		ResourceJournal, "", CategoryUsage, nil,
		"count", count,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
