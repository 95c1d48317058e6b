package extension

import (
	"time"

	turnstile "github.com/xraph/turnstile"
	"github.com/xraph/turnstile/feature"
	"github.com/xraph/turnstile/plugin"
	"github.com/xraph/turnstile/store"
)

// Option configures the Turnstile Forge extension.
type Option func(*Extension)

// WithStore sets the store for the turnstile engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithRegistry sets the feature registry, bypassing any feature
// declarations in config files.
func WithRegistry(reg *feature.Registry) Option {
	return func(e *Extension) {
		e.registry = reg
	}
}

// WithTurnstileOption passes a turnstile.Option through to the underlying engine.
func WithTurnstileOption(opt turnstile.Option) Option {
	return func(e *Extension) {
		e.turnstileOpts = append(e.turnstileOpts, opt)
	}
}

// WithPlugin registers a turnstile plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.turnstileOpts = append(e.turnstileOpts, turnstile.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for turnstile routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithJournalBatchSize sets the number of gate decisions to buffer before flushing.
func WithJournalBatchSize(size int) Option {
	return func(e *Extension) { e.config.JournalBatchSize = size }
}

// WithJournalFlushInterval sets how frequently the decision journal is flushed.
func WithJournalFlushInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.JournalFlushInterval = d }
}

// WithDebitRetries sets how many conflicted debits are retried before
// the guard fails closed.
func WithDebitRetries(n int) Option {
	return func(e *Extension) { e.config.DebitRetries = n }
}
