// Package observability provides a metrics extension for Turnstile that records
// lifecycle event counts via go-utils MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/turnstile/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnAccessChecked       = (*MetricsExtension)(nil)
	_ plugin.OnAccessDenied        = (*MetricsExtension)(nil)
	_ plugin.OnAccountOpened       = (*MetricsExtension)(nil)
	_ plugin.OnCreditDebited       = (*MetricsExtension)(nil)
	_ plugin.OnCreditGranted       = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientCredits = (*MetricsExtension)(nil)
	_ plugin.OnRetryExhausted      = (*MetricsExtension)(nil)
	_ plugin.OnJournalFlushed      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Turnstile plugin to automatically track gate and
// credit metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Access gate metrics
	AccessChecks Counter
	AccessDenied Counter

	// Account metrics
	AccountsOpened Counter

	// Credit metrics
	CreditDebits        Counter
	CreditGrants        Counter
	InsufficientCredits Counter
	RetryExhausted      Counter

	// Journal metrics
	JournalBatchSize    Histogram
	JournalFlushLatency Histogram

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Access gate metrics
		AccessChecks: factory.Counter("turnstile.access.checks"),
		AccessDenied: factory.Counter("turnstile.access.denied"),

		// Account metrics
		AccountsOpened: factory.Counter("turnstile.account.opened"),

		// Credit metrics
		CreditDebits:        factory.Counter("turnstile.credit.debits"),
		CreditGrants:        factory.Counter("turnstile.credit.grants"),
		InsufficientCredits: factory.Counter("turnstile.credit.insufficient"),
		RetryExhausted:      factory.Counter("turnstile.credit.retry_exhausted"),

		// Journal metrics
		JournalBatchSize:    factory.Histogram("turnstile.journal.batch.size"),
		JournalFlushLatency: factory.Histogram("turnstile.journal.flush.latency_ms"),

		// Error metrics
		StoreErrors:  factory.Counter("turnstile.store.errors"),
		PluginErrors: factory.Counter("turnstile.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Access gate hooks
// ──────────────────────────────────────────────────

// OnAccessChecked implements plugin.OnAccessChecked.
func (m *MetricsExtension) OnAccessChecked(_ context.Context, _ interface{}) error {
	m.AccessChecks.Inc()
	return nil
}

// OnAccessDenied implements plugin.OnAccessDenied.
func (m *MetricsExtension) OnAccessDenied(_ context.Context, _, _, _ string) error {
	m.AccessDenied.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnAccountOpened implements plugin.OnAccountOpened.
func (m *MetricsExtension) OnAccountOpened(_ context.Context, _ interface{}) error {
	m.AccountsOpened.Inc()
	return nil
}

// OnCreditDebited implements plugin.OnCreditDebited.
func (m *MetricsExtension) OnCreditDebited(_ context.Context, _ interface{}) error {
	m.CreditDebits.Inc()
	return nil
}

// OnCreditGranted implements plugin.OnCreditGranted.
func (m *MetricsExtension) OnCreditGranted(_ context.Context, _ interface{}) error {
	m.CreditGrants.Inc()
	return nil
}

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (m *MetricsExtension) OnInsufficientCredits(_ context.Context, _ string, _ int64) error {
	m.InsufficientCredits.Inc()
	return nil
}

// OnRetryExhausted implements plugin.OnRetryExhausted.
func (m *MetricsExtension) OnRetryExhausted(_ context.Context, _ string, _ int) error {
	m.RetryExhausted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Journal hooks
// ──────────────────────────────────────────────────

// OnJournalFlushed implements plugin.OnJournalFlushed.
func (m *MetricsExtension) OnJournalFlushed(_ context.Context, count int, elapsed time.Duration) error {
	m.JournalBatchSize.Observe(float64(count))
	m.JournalFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
