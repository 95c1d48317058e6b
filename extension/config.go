package extension

import "time"

// FeatureConfig declares one gated feature in YAML configuration.
type FeatureConfig struct {
	// Key is the canonical feature key (e.g. "ai.resume_review").
	Key string `json:"key" mapstructure:"key" yaml:"key"`

	// Tier is the minimum subscription tier required ("free", "basic",
	// "pro", "enterprise").
	Tier string `json:"tier" mapstructure:"tier" yaml:"tier"`

	// Class is the feature class ("ai" or "export").
	Class string `json:"class" mapstructure:"class" yaml:"class"`
}

// Config holds the Turnstile extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.turnstile" or "turnstile" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for turnstile routes (default: "/turnstile").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// JournalBatchSize is the number of gate decisions to buffer before
	// flushing to the store (default: 100).
	JournalBatchSize int `json:"journal_batch_size" mapstructure:"journal_batch_size" yaml:"journal_batch_size"`

	// JournalFlushInterval is how frequently the decision journal is flushed
	// even if the batch size has not been reached (default: 5s).
	JournalFlushInterval time.Duration `json:"journal_flush_interval" mapstructure:"journal_flush_interval" yaml:"journal_flush_interval"`

	// DebitRetries is how many times a conflicted conditional debit is
	// retried before the guard fails closed (default: 3).
	DebitRetries int `json:"debit_retries" mapstructure:"debit_retries" yaml:"debit_retries"`

	// Features declares the gated feature catalog. When empty, the built-in
	// default catalog is used.
	Features []FeatureConfig `json:"features" mapstructure:"features" yaml:"features"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		JournalBatchSize:     100,
		JournalFlushInterval: 5 * time.Second,
		DebitRetries:         3,
	}
}
