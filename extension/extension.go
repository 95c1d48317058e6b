// Package extension provides the Forge extension adapter for Turnstile.
//
// It implements the forge.Extension interface to integrate Turnstile
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.turnstile" or
// "turnstile" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	turnstile "github.com/xraph/turnstile"
	"github.com/xraph/turnstile/feature"
	"github.com/xraph/turnstile/store"
	"github.com/xraph/turnstile/store/memory"
	"github.com/xraph/turnstile/tier"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "turnstile"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Tiered feature gating and credit metering engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Turnstile as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config        Config
	engine        *turnstile.Turnstile
	store         store.Store
	registry      *feature.Registry
	turnstileOpts []turnstile.Option
}

// New creates a new Turnstile Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Turnstile instance.
// This is nil until Register is called.
func (e *Extension) Engine() *turnstile.Turnstile { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the turnstile engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build the feature registry from config, falling back to the
	// built-in catalog.
	if e.registry == nil {
		reg, err := e.buildRegistry()
		if err != nil {
			return err
		}
		e.registry = reg
	}

	opts := e.buildTurnstileOpts()

	eng := turnstile.New(e.store, e.registry, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*turnstile.Turnstile, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("turnstile: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("turnstile: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildRegistry constructs the feature registry from configured features.
func (e *Extension) buildRegistry() (*feature.Registry, error) {
	if len(e.config.Features) == 0 {
		return feature.Default(), nil
	}

	descriptors := make([]feature.Descriptor, 0, len(e.config.Features))
	for _, fc := range e.config.Features {
		tt := tier.Tier(fc.Tier)
		if !tt.Known() {
			return nil, fmt.Errorf("turnstile: feature %q has unknown tier %q: %w",
				fc.Key, fc.Tier, turnstile.ErrUnknownTier)
		}
		descriptors = append(descriptors, feature.Descriptor{
			Key:          fc.Key,
			RequiredTier: tt,
			Class:        feature.Class(fc.Class),
		})
	}
	return feature.NewRegistry(descriptors...)
}

// buildTurnstileOpts constructs turnstile.Option values from the resolved config.
func (e *Extension) buildTurnstileOpts() []turnstile.Option {
	opts := make([]turnstile.Option, 0, len(e.turnstileOpts)+2)

	if e.config.JournalBatchSize > 0 || e.config.JournalFlushInterval > 0 {
		batchSize := e.config.JournalBatchSize
		flushInterval := e.config.JournalFlushInterval
		defaults := DefaultConfig()
		if batchSize == 0 {
			batchSize = defaults.JournalBatchSize
		}
		if flushInterval == 0 {
			flushInterval = defaults.JournalFlushInterval
		}
		opts = append(opts, turnstile.WithJournalConfig(batchSize, flushInterval))
	}

	if e.config.DebitRetries > 0 {
		opts = append(opts, turnstile.WithDebitRetries(e.config.DebitRetries))
	}

	// Append any pass-through turnstile options.
	opts = append(opts, e.turnstileOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("turnstile: configuration is required but not found in config files; " +
				"ensure 'extensions.turnstile' or 'turnstile' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("turnstile: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("journal_batch_size", e.config.JournalBatchSize),
		forge.F("journal_flush_interval", e.config.JournalFlushInterval),
		forge.F("debit_retries", e.config.DebitRetries),
		forge.F("features", len(e.config.Features)),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.turnstile" first (namespaced pattern).
	if cm.IsSet("extensions.turnstile") {
		if err := cm.Bind("extensions.turnstile", &cfg); err == nil {
			e.Logger().Debug("turnstile: loaded config from file",
				forge.F("key", "extensions.turnstile"),
			)
			return cfg, true
		}
		e.Logger().Warn("turnstile: failed to bind extensions.turnstile config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "turnstile" key.
	if cm.IsSet("turnstile") {
		if err := cm.Bind("turnstile", &cfg); err == nil {
			e.Logger().Debug("turnstile: loaded config from file",
				forge.F("key", "turnstile"),
			)
			return cfg, true
		}
		e.Logger().Warn("turnstile: failed to bind turnstile config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.JournalBatchSize == 0 {
		cfg.JournalBatchSize = defaults.JournalBatchSize
	}
	if cfg.JournalFlushInterval == 0 {
		cfg.JournalFlushInterval = defaults.JournalFlushInterval
	}
	if cfg.DebitRetries == 0 {
		cfg.DebitRetries = defaults.DebitRetries
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" && programmaticConfig.BasePath != "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.JournalBatchSize == 0 && programmaticConfig.JournalBatchSize != 0 {
		yamlConfig.JournalBatchSize = programmaticConfig.JournalBatchSize
	}
	if yamlConfig.JournalFlushInterval == 0 && programmaticConfig.JournalFlushInterval != 0 {
		yamlConfig.JournalFlushInterval = programmaticConfig.JournalFlushInterval
	}
	if yamlConfig.DebitRetries == 0 && programmaticConfig.DebitRetries != 0 {
		yamlConfig.DebitRetries = programmaticConfig.DebitRetries
	}

	// Feature list: YAML takes precedence when present.
	if len(yamlConfig.Features) == 0 && len(programmaticConfig.Features) != 0 {
		yamlConfig.Features = programmaticConfig.Features
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
