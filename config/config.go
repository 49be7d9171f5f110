// Package config provides configuration loading and management for chronos.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Recovery-plan and solution-generation modes.
const (
	ModeDeterministic = "deterministic"
	ModeDelegated     = "delegated"
	ModeConsensus     = "consensus"
)

// Config represents the complete chronos configuration.
type Config struct {
	NATS        NATSConfig        `yaml:"nats"`
	Recovery    RecoveryConfig    `yaml:"recovery"`
	Solutions   SolutionConfig    `yaml:"solutions"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Insight     InsightConfig     `yaml:"insight"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	LLM         LLMConfig         `yaml:"llm"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// NATSConfig configures the transport connection.
type NATSConfig struct {
	// URL is the NATS server URL.
	URL string `yaml:"url"`
}

// RecoveryConfig selects the recovery-plan decision strategy.
type RecoveryConfig struct {
	// Mode selects the plan strategy: deterministic, delegated, or consensus.
	Mode string `yaml:"mode"`
	// EnabledStrategies limits which strategies are constructed at startup.
	EnabledStrategies []string `yaml:"enabled_strategies"`
}

// SolutionConfig selects the airspace solution generator.
type SolutionConfig struct {
	// Mode selects the generator: deterministic or delegated.
	Mode string `yaml:"mode"`
	// Distributed fans conflicts and hotspots out to task agents instead of
	// generating solutions in-process.
	Distributed bool `yaml:"distributed"`
}

// CoordinatorConfig configures the coordinator processor.
type CoordinatorConfig struct {
	// DemoAutoApply automatically applies proposed solutions.
	DemoAutoApply bool `yaml:"demo_auto_apply"`
	// MergeDebounce is how long the aggregator waits after the last partial
	// result before merging.
	MergeDebounce time.Duration `yaml:"merge_debounce"`
	// WorkerPoolSize bounds concurrent plan evaluations.
	WorkerPoolSize int `yaml:"worker_pool_size"`
}

// InsightConfig configures the trajectory insight processor.
type InsightConfig struct {
	// CollectionWindow is the quiet period after the last flight arrival
	// before a correlation's batch is analyzed.
	CollectionWindow time.Duration `yaml:"collection_window"`
	// SampleStep is the trajectory sampling interval.
	SampleStep time.Duration `yaml:"sample_step"`
}

// LedgerConfig configures the idempotency ledger.
type LedgerConfig struct {
	// DSN is the SQLite data source name.
	DSN string `yaml:"dsn"`
	// Retention is how long processed-plan records are kept.
	Retention time.Duration `yaml:"retention"`
	// SweepInterval is how often expired records are deleted.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// LLMConfig configures the generative-model collaborator.
type LLMConfig struct {
	// Provider is the provider identifier (e.g., "openai", "ollama").
	Provider string `yaml:"provider"`
	// Endpoint is the API base URL.
	Endpoint string `yaml:"endpoint"`
	// Model is the model name.
	Model string `yaml:"model"`
	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `yaml:"temperature"`
	// Timeout is the maximum time to wait for model responses.
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig configures the metrics/health HTTP listener.
type MetricsConfig struct {
	// Listen is the address for /metrics and /healthz. Empty disables it.
	Listen string `yaml:"listen"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Recovery: RecoveryConfig{
			Mode:              ModeDeterministic,
			EnabledStrategies: []string{ModeDeterministic, ModeDelegated, ModeConsensus},
		},
		Solutions: SolutionConfig{
			Mode: ModeDeterministic,
		},
		Coordinator: CoordinatorConfig{
			DemoAutoApply:  true,
			MergeDebounce:  2 * time.Second,
			WorkerPoolSize: 4,
		},
		Insight: InsightConfig{
			CollectionWindow: 60 * time.Second,
			SampleStep:       60 * time.Second,
		},
		Ledger: LedgerConfig{
			DSN:           "chronos.db",
			Retention:     24 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Endpoint:    "",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Metrics: MetricsConfig{
			Listen: ":9190",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	switch c.Recovery.Mode {
	case ModeDeterministic, ModeDelegated, ModeConsensus:
	default:
		return fmt.Errorf("recovery.mode must be one of deterministic, delegated, consensus")
	}
	switch c.Solutions.Mode {
	case ModeDeterministic, ModeDelegated:
	default:
		return fmt.Errorf("solutions.mode must be one of deterministic, delegated")
	}
	if c.Coordinator.MergeDebounce <= 0 {
		return fmt.Errorf("coordinator.merge_debounce must be positive")
	}
	if c.Coordinator.WorkerPoolSize <= 0 {
		return fmt.Errorf("coordinator.worker_pool_size must be positive")
	}
	if c.Insight.CollectionWindow <= 0 {
		return fmt.Errorf("insight.collection_window must be positive")
	}
	if c.Ledger.Retention <= 0 {
		return fmt.Errorf("ledger.retention must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("llm.temperature must be between 0 and 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.Recovery.Mode != "" {
		c.Recovery.Mode = other.Recovery.Mode
	}
	if len(other.Recovery.EnabledStrategies) > 0 {
		c.Recovery.EnabledStrategies = other.Recovery.EnabledStrategies
	}
	if other.Solutions.Mode != "" {
		c.Solutions.Mode = other.Solutions.Mode
	}
	if other.Solutions.Distributed {
		c.Solutions.Distributed = true
	}
	if other.Coordinator.MergeDebounce != 0 {
		c.Coordinator.MergeDebounce = other.Coordinator.MergeDebounce
	}
	if other.Coordinator.WorkerPoolSize != 0 {
		c.Coordinator.WorkerPoolSize = other.Coordinator.WorkerPoolSize
	}
	if other.Insight.CollectionWindow != 0 {
		c.Insight.CollectionWindow = other.Insight.CollectionWindow
	}
	if other.Insight.SampleStep != 0 {
		c.Insight.SampleStep = other.Insight.SampleStep
	}
	if other.Ledger.DSN != "" {
		c.Ledger.DSN = other.Ledger.DSN
	}
	if other.Ledger.Retention != 0 {
		c.Ledger.Retention = other.Ledger.Retention
	}
	if other.Ledger.SweepInterval != 0 {
		c.Ledger.SweepInterval = other.Ledger.SweepInterval
	}
	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.Endpoint != "" {
		c.LLM.Endpoint = other.LLM.Endpoint
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.Temperature != 0 {
		c.LLM.Temperature = other.LLM.Temperature
	}
	if other.LLM.Timeout != 0 {
		c.LLM.Timeout = other.LLM.Timeout
	}
	if other.Metrics.Listen != "" {
		c.Metrics.Listen = other.Metrics.Listen
	}
}
