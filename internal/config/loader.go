package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleNames lists every rule identifier the engine knows. Validation rejects
// configuration for anything else so typos surface at startup, not as a rule
// that silently never runs.
var RuleNames = []string{
	"n_plus_one",
	"mixed_query_builder",
	"missing_transaction",
	"collection_filtering",
	"query_in_controller",
	"env_outside_config",
	"eager_load_count",
	"sql_injection",
	"generic_exception_catch",
	"mass_assignment",
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			return cfg, validate(cfg)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a default configuration matching a conventional
// Laravel project layout.
func DefaultConfig() *Config {
	return &Config{
		BasePath:   ".",
		Paths:      []string{"app", "routes", "database"},
		Exclude:    []string{"**/vendor/**", "**/node_modules/**", "**/storage/**"},
		ModelPaths: []string{"app/Models"},
		Output: OutputConfig{
			Format: "text",
		},
		Watch: WatchConfig{
			Enabled:    false,
			DebounceMS: 500,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	if base := os.Getenv("LARALINT_BASE_PATH"); base != "" {
		cfg.BasePath = base
	}
	if paths := os.Getenv("LARALINT_PATHS"); paths != "" {
		cfg.Paths = splitList(paths)
	}
	if models := os.Getenv("LARALINT_MODEL_PATHS"); models != "" {
		cfg.ModelPaths = splitList(models)
	}
	if cache := os.Getenv("LARALINT_REGISTRY_CACHE"); cache != "" {
		cfg.RegistryCache = cache
	}
	if format := os.Getenv("LARALINT_FORMAT"); format != "" {
		cfg.Output.Format = format
	}
	if workers := os.Getenv("LARALINT_WORKERS"); workers != "" {
		if v, err := strconv.Atoi(workers); err == nil {
			cfg.Workers = v
		}
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// validate checks if the configuration is valid. Malformed analyzer options
// reject the whole run; analysis never starts with a half-applied config.
func validate(cfg *Config) error {
	if cfg.BasePath == "" {
		cfg.BasePath = "."
	}
	if len(cfg.Paths) == 0 {
		return fmt.Errorf("paths must not be empty")
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if cfg.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative")
	}

	known := map[string]bool{}
	for _, name := range RuleNames {
		known[name] = true
	}
	for name, bag := range cfg.Analyzers {
		if !known[name] {
			return fmt.Errorf("unknown analyzer %q", name)
		}
		if bag.Threshold != nil && *bag.Threshold < 1 {
			return fmt.Errorf("analyzers.%s.threshold must be at least 1", name)
		}
		if bag.SimpleReadMaxChain != nil && *bag.SimpleReadMaxChain < 0 {
			return fmt.Errorf("analyzers.%s.simple_read_max_chain must not be negative", name)
		}
		if bag.MaxRelations != nil && *bag.MaxRelations < 1 {
			return fmt.Errorf("analyzers.%s.max_relations must be at least 1", name)
		}
	}
	return nil
}
