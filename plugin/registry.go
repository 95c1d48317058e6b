package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onAccessChecked       []OnAccessChecked
	onAccessDenied        []OnAccessDenied
	onAccountOpened       []OnAccountOpened
	onCreditDebited       []OnCreditDebited
	onCreditGranted       []OnCreditGranted
	onInsufficientCredits []OnInsufficientCredits
	onRetryExhausted      []OnRetryExhausted
	onJournalFlushed      []OnJournalFlushed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAccessChecked); ok {
		r.onAccessChecked = append(r.onAccessChecked, v)
	}
	if v, ok := p.(OnAccessDenied); ok {
		r.onAccessDenied = append(r.onAccessDenied, v)
	}
	if v, ok := p.(OnAccountOpened); ok {
		r.onAccountOpened = append(r.onAccountOpened, v)
	}
	if v, ok := p.(OnCreditDebited); ok {
		r.onCreditDebited = append(r.onCreditDebited, v)
	}
	if v, ok := p.(OnCreditGranted); ok {
		r.onCreditGranted = append(r.onCreditGranted, v)
	}
	if v, ok := p.(OnInsufficientCredits); ok {
		r.onInsufficientCredits = append(r.onInsufficientCredits, v)
	}
	if v, ok := p.(OnRetryExhausted); ok {
		r.onRetryExhausted = append(r.onRetryExhausted, v)
	}
	if v, ok := p.(OnJournalFlushed); ok {
		r.onJournalFlushed = append(r.onJournalFlushed, v)
	}

	return nil
}

// Get returns a plugin by name, or nil.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccessChecked emits a gate decision event.
func (r *Registry) EmitAccessChecked(ctx context.Context, decision interface{}) {
	r.mu.RLock()
	plugins := r.onAccessChecked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccessChecked(ctx, decision)
		}); err != nil {
			r.logger.Warn("plugin OnAccessChecked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccessDenied emits a gate denial event.
func (r *Registry) EmitAccessDenied(ctx context.Context, tenantID, featureKey, reason string) {
	r.mu.RLock()
	plugins := r.onAccessDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccessDenied(ctx, tenantID, featureKey, reason)
		}); err != nil {
			r.logger.Warn("plugin OnAccessDenied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccountOpened emits an account creation event.
func (r *Registry) EmitAccountOpened(ctx context.Context, account interface{}) {
	r.mu.RLock()
	plugins := r.onAccountOpened
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccountOpened(ctx, account)
		}); err != nil {
			r.logger.Warn("plugin OnAccountOpened failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCreditDebited emits a successful debit event.
func (r *Registry) EmitCreditDebited(ctx context.Context, entry interface{}) {
	r.mu.RLock()
	plugins := r.onCreditDebited
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCreditDebited(ctx, entry)
		}); err != nil {
			r.logger.Warn("plugin OnCreditDebited failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCreditGranted emits a successful top-up event.
func (r *Registry) EmitCreditGranted(ctx context.Context, entry interface{}) {
	r.mu.RLock()
	plugins := r.onCreditGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCreditGranted(ctx, entry)
		}); err != nil {
			r.logger.Warn("plugin OnCreditGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInsufficientCredits emits a denied-debit event.
func (r *Registry) EmitInsufficientCredits(ctx context.Context, accountID string, cost int64) {
	r.mu.RLock()
	plugins := r.onInsufficientCredits
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInsufficientCredits(ctx, accountID, cost)
		}); err != nil {
			r.logger.Warn("plugin OnInsufficientCredits failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRetryExhausted emits a fail-closed event after conflicted debits.
func (r *Registry) EmitRetryExhausted(ctx context.Context, accountID string, attempts int) {
	r.mu.RLock()
	plugins := r.onRetryExhausted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRetryExhausted(ctx, accountID, attempts)
		}); err != nil {
			r.logger.Warn("plugin OnRetryExhausted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitJournalFlushed emits a journal flush event.
func (r *Registry) EmitJournalFlushed(ctx context.Context, count int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onJournalFlushed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnJournalFlushed(ctx, count, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnJournalFlushed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the request pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
