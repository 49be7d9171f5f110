// Package main provides the chronosd binary entry point.
// Chronosd correlates power-grid and airspace events into recovery plans
// and airspace mitigations over NATS.
package main

import (
	"fmt"
	"os"
	"runtime"

	// Register LLM providers via init()
	_ "github.com/c360studio/chronos/llm/providers"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "chronosd"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		natsURL    string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "chronosd",
		Short: "Crisis correlation and recovery orchestration daemon",
		Long: `Chronosd fuses power-grid failure and airspace conflict events into a
shared crisis picture, generates recovery plans through pluggable decision
strategies, and proposes airspace mitigations.

It runs two processors:
- coordinator: crisis context, recovery planning, task fan-out and merge
- trajectory-insight: flight batch analysis for conflicts and hotspots

All components communicate via NATS.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, natsURL, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}
