package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Load builds the effective configuration: defaults, then the optional file
// at path, then CHRONOS_* environment overrides.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config.Merge(fileConfig)
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies CHRONOS_* environment variables on top of the
// loaded configuration.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("CHRONOS_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("CHRONOS_RECOVERY_MODE"); v != "" {
		c.Recovery.Mode = v
	}
	if v := os.Getenv("CHRONOS_ENABLED_STRATEGIES"); v != "" {
		c.Recovery.EnabledStrategies = splitList(v)
	}
	if v := os.Getenv("CHRONOS_SOLUTION_MODE"); v != "" {
		c.Solutions.Mode = v
	}
	if v := os.Getenv("CHRONOS_SOLUTION_DISTRIBUTED"); v != "" {
		c.Solutions.Distributed = parseBool(v, c.Solutions.Distributed)
	}
	if v := os.Getenv("CHRONOS_DEMO_AUTO_APPLY"); v != "" {
		c.Coordinator.DemoAutoApply = parseBool(v, c.Coordinator.DemoAutoApply)
	}
	if v := os.Getenv("CHRONOS_MERGE_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Coordinator.MergeDebounce = d
		}
	}
	if v := os.Getenv("CHRONOS_COLLECTION_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Insight.CollectionWindow = d
		}
	}
	if v := os.Getenv("CHRONOS_SAMPLE_STEP"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Insight.SampleStep = d
		}
	}
	if v := os.Getenv("CHRONOS_LEDGER_DSN"); v != "" {
		c.Ledger.DSN = v
	}
	if v := os.Getenv("CHRONOS_LEDGER_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Ledger.Retention = d
		}
	}
	if v := os.Getenv("CHRONOS_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("CHRONOS_LLM_ENDPOINT"); v != "" {
		c.LLM.Endpoint = v
	}
	if v := os.Getenv("CHRONOS_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("CHRONOS_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return b
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
