// Package config holds the application configuration: which paths to scan,
// where the models live, and the per-analyzer option bags.
package config

// Config represents the global application configuration.
type Config struct {
	// BasePath is the project root every scan path is relative to.
	BasePath string `yaml:"base_path"`

	// Paths are the sub-paths scanned for PHP sources, relative to BasePath.
	Paths []string `yaml:"paths"`

	// Exclude are glob patterns skipped during discovery, applied on top of
	// the built-in vendor/node_modules/storage skip set.
	Exclude []string `yaml:"exclude"`

	// ModelPaths are the directories scanned to build the model registry.
	ModelPaths []string `yaml:"model_paths"`

	// TableMappings force class-to-table resolutions for classes the
	// registry cannot resolve on its own.
	TableMappings map[string]string `yaml:"table_mappings"`

	// RegistryCache is an optional snapshot file for the model registry.
	// Empty disables caching.
	RegistryCache string `yaml:"registry_cache"`

	// Workers caps the per-file analysis fan-out; 0 means one per CPU.
	Workers int `yaml:"workers"`

	// Output configuration.
	Output OutputConfig `yaml:"output"`

	// Watch configuration (re-run analysis on file changes).
	Watch WatchConfig `yaml:"watch"`

	// Analyzers maps a rule identifier to its option bag. Unknown option
	// keys are ignored; unknown rule identifiers are rejected at startup.
	Analyzers map[string]AnalyzerConfig `yaml:"analyzers"`
}

// OutputConfig contains report rendering settings.
type OutputConfig struct {
	Format string `yaml:"format"` // text, json
}

// WatchConfig contains file-watch settings.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// AnalyzerConfig is the option bag one rule receives, scoped under its own
// identifier. Every field is optional; pointer fields distinguish "absent"
// from explicit zero values so a configured 0 still fails validation where
// it must.
type AnalyzerConfig struct {
	Enabled *bool `yaml:"enabled"`

	// Threshold is rule-specific: minimum unprotected writes for
	// missing_transaction, distinct raw tables for mixed_query_builder.
	Threshold *int `yaml:"threshold"`

	// Whitelist exempts class names (short or fully qualified) entirely.
	Whitelist []string `yaml:"whitelist"`

	// AttributeAllowlist extends the plain-attribute names n_plus_one
	// never treats as relationships.
	AttributeAllowlist []string `yaml:"attribute_allowlist"`

	// AdditionalSinks adds raw-SQL sink method names for sql_injection.
	AdditionalSinks []string `yaml:"additional_sinks"`

	// CountToBase controls whether toBase()/getQuery() conversions count
	// as query-builder usage for mixed_query_builder.
	CountToBase *bool `yaml:"count_to_base"`

	// SimpleReadMaxChain is the call-chain length at or below which a
	// route-closure query still counts as a simple read for
	// query_in_controller.
	SimpleReadMaxChain *int `yaml:"simple_read_max_chain"`

	// MaxRelations caps the relation count of a single with() call for
	// eager_load_count.
	MaxRelations *int `yaml:"max_relations"`

	// ExcludePaths are glob patterns whose files the rule skips entirely
	// (seeders, factories and migrations for missing_transaction).
	ExcludePaths []string `yaml:"exclude_paths"`
}

// Rule returns the option bag for a rule identifier; the zero value when the
// rule is not mentioned in the file.
func (c *Config) Rule(name string) AnalyzerConfig {
	if c == nil || c.Analyzers == nil {
		return AnalyzerConfig{}
	}
	return c.Analyzers[name]
}

// RuleEnabled reports whether a rule should run; rules default to enabled.
func (c *Config) RuleEnabled(name string) bool {
	bag := c.Rule(name)
	return bag.Enabled == nil || *bag.Enabled
}
