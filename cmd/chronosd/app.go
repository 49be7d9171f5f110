package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/chronos/component"
	"github.com/c360studio/chronos/config"
	"github.com/c360studio/chronos/ledger"
	"github.com/c360studio/chronos/llm"
	"github.com/c360studio/chronos/natsbus"
	"github.com/c360studio/chronos/planner"
	"github.com/c360studio/chronos/processor/coordinator"
	"github.com/c360studio/chronos/processor/insight"
	"github.com/c360studio/chronos/trajectory"
)

func run(configPath, natsURL, logLevel string) error {
	// Configure logging
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if natsURL != "" {
		cfg.NATS.URL = natsURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to NATS
	bus, err := natsbus.Connect(cfg.NATS.URL,
		natsbus.WithLogger(logger),
		natsbus.WithName(appName),
		natsbus.WithClosedHandler(func(err error) {
			logger.Error("NATS connection closed, shutting down", "error", err)
			stop()
		}))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer bus.Close()

	// Open the idempotency ledger
	store, err := ledger.Open(cfg.Ledger.DSN, cfg.Ledger.Retention, logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	go store.RunSweeper(ctx, cfg.Ledger.SweepInterval)

	var planModel planner.PlanModel
	var solutionModel trajectory.SolutionModel
	if model := buildModel(cfg, logger); model != nil {
		planModel = model
		solutionModel = model
	}

	selector, err := buildSelector(cfg, planModel, logger)
	if err != nil {
		return fmt.Errorf("build plan selector: %w", err)
	}
	generator := trajectory.NewGenerator(solutionModel, logger)

	deps := component.Dependencies{Bus: bus, Logger: logger}

	coord, err := coordinator.NewComponent(coordinator.Config{
		RecoveryMode:   cfg.Recovery.Mode,
		SolutionMode:   cfg.Solutions.Mode,
		Distributed:    cfg.Solutions.Distributed,
		DemoAutoApply:  cfg.Coordinator.DemoAutoApply,
		MergeDebounce:  cfg.Coordinator.MergeDebounce,
		WorkerPoolSize: cfg.Coordinator.WorkerPoolSize,
	}, selector, generator, deps)
	if err != nil {
		return fmt.Errorf("create coordinator: %w", err)
	}

	insightComp, err := insight.NewComponent(insight.Config{
		CollectionWindow: cfg.Insight.CollectionWindow,
		SampleStep:       cfg.Insight.SampleStep,
		SolutionMode:     cfg.Solutions.Mode,
		Distributed:      cfg.Solutions.Distributed,
	}, generator, store, deps)
	if err != nil {
		return fmt.Errorf("create trajectory insight: %w", err)
	}

	runner := component.NewRunner(logger)
	runner.Add(coord)
	runner.Add(insightComp)

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}
	defer runner.Stop(10 * time.Second)

	// Metrics and health listener
	if cfg.Metrics.Listen != "" {
		srv := metricsServer(cfg.Metrics.Listen, runner)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics listener failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("chronosd ready",
		"version", Version,
		"nats_url", cfg.NATS.URL,
		"recovery_mode", cfg.Recovery.Mode,
		"solution_mode", cfg.Solutions.Mode,
		"distributed", cfg.Solutions.Distributed)

	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

// buildModel creates the shared LLM client, or nil when no endpoint is
// configured. Strategies and generators degrade to their deterministic
// fallbacks without one.
func buildModel(cfg *config.Config, logger *slog.Logger) *tempModel {
	if cfg.LLM.Endpoint == "" {
		return nil
	}

	client := llm.NewClient(llm.EndpointConfig{
		Provider: cfg.LLM.Provider,
		URL:      cfg.LLM.Endpoint,
		Model:    cfg.LLM.Model,
	}, llm.WithLogger(logger), llm.WithTimeout(cfg.LLM.Timeout))

	return &tempModel{client: client, temperature: cfg.LLM.Temperature}
}

// tempModel applies the configured default temperature to requests that do
// not set their own.
type tempModel struct {
	client      *llm.Client
	temperature float64
}

func (m tempModel) CompleteJSON(ctx context.Context, req llm.Request, out any) error {
	if req.Temperature == nil {
		temp := m.temperature
		req.Temperature = &temp
	}
	return m.client.CompleteJSON(ctx, req, out)
}

// buildSelector constructs the enabled strategies and the fallback chain.
func buildSelector(cfg *config.Config, model planner.PlanModel, logger *slog.Logger) (*planner.Selector, error) {
	enabled := cfg.Recovery.EnabledStrategies
	if len(enabled) == 0 {
		enabled = []string{config.ModeDeterministic, config.ModeDelegated, config.ModeConsensus}
	}

	var strategies []planner.Strategy
	for _, mode := range enabled {
		switch mode {
		case config.ModeDeterministic:
			strategies = append(strategies, planner.NewRulesStrategy())
		case config.ModeDelegated:
			strategies = append(strategies, planner.NewDelegatedStrategy(model, logger))
		case config.ModeConsensus:
			strategies = append(strategies, planner.NewConsensusStrategy(model, logger))
		default:
			return nil, fmt.Errorf("unknown strategy mode %q", mode)
		}
	}

	return planner.NewSelector(strategyName(cfg.Recovery.Mode), strategies, logger)
}

// strategyName maps a config mode to its strategy identifier.
func strategyName(mode string) string {
	switch mode {
	case config.ModeDelegated:
		return planner.StrategyDelegated
	case config.ModeConsensus:
		return planner.StrategyConsensus
	default:
		return planner.StrategyRules
	}
}

func metricsServer(listen string, runner *component.Runner) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if runner.Healthy() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unhealthy"))
	})

	return &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
