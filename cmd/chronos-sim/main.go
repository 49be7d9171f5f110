// Package main provides the chronos-sim CLI: it publishes synthetic power
// failure events and flight plan batches so a running chronosd can be
// exercised without live feeds.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/c360studio/chronos/event"
	"github.com/c360studio/chronos/natsbus"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var natsURL string

	cmd := &cobra.Command{
		Use:   "chronos-sim",
		Short: "Publish synthetic crisis events for a running chronosd",
		Long: `Chronos-sim drives a chronosd instance with synthetic scenarios.

Scenarios:
  power-failure  - Publish one power.failure event
  flight-batch   - Publish a batch of conflicting flight plans
  crisis         - Both: a grid failure plus a conflicting flight batch`,
	}

	cmd.PersistentFlags().StringVar(&natsURL, "nats-url", "nats://localhost:4222", "NATS server URL")

	cmd.AddCommand(powerFailureCmd(&natsURL))
	cmd.AddCommand(flightBatchCmd(&natsURL))
	cmd.AddCommand(crisisCmd(&natsURL))

	return cmd
}

func connect(natsURL string) (*natsbus.Client, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return natsbus.Connect(natsURL,
		natsbus.WithLogger(logger),
		natsbus.WithName("chronos-sim"))
}

func powerFailureCmd(natsURL *string) *cobra.Command {
	var (
		sector  string
		voltage float64
		load    float64
	)

	cmd := &cobra.Command{
		Use:   "power-failure",
		Short: "Publish one power.failure event",
		RunE: func(cmd *cobra.Command, args []string) error {
			bus, err := connect(*natsURL)
			if err != nil {
				return err
			}
			defer bus.Close()
			return publishPowerFailure(bus, sector, voltage, load, uuid.New().String())
		},
	}

	cmd.Flags().StringVar(&sector, "sector", "KORD-substation-4", "Sector id")
	cmd.Flags().Float64Var(&voltage, "voltage", 0.0, "Measured voltage")
	cmd.Flags().Float64Var(&load, "load", 100.0, "Measured load percent")

	return cmd
}

func flightBatchCmd(natsURL *string) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "flight-batch",
		Short: "Publish a batch of conflicting flight plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			bus, err := connect(*natsURL)
			if err != nil {
				return err
			}
			defer bus.Close()
			return publishFlightBatch(bus, count, uuid.New().String())
		},
	}

	cmd.Flags().IntVar(&count, "flights", 4, "Number of flights in the batch")

	return cmd
}

func crisisCmd(natsURL *string) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "crisis",
		Short: "Publish a grid failure plus a conflicting flight batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			bus, err := connect(*natsURL)
			if err != nil {
				return err
			}
			defer bus.Close()

			correlationID := uuid.New().String()
			if err := publishPowerFailure(bus, "KORD-substation-4", 0.0, 100.0, correlationID); err != nil {
				return err
			}
			return publishFlightBatch(bus, count, correlationID)
		},
	}

	cmd.Flags().IntVar(&count, "flights", 4, "Number of flights in the batch")

	return cmd
}

func publishPowerFailure(bus *natsbus.Client, sector string, voltage, load float64, correlationID string) error {
	severity := event.SeverityWarning
	if voltage < 10 {
		severity = event.SeverityCritical
	}

	env := event.New("chronos-sim", severity, sector,
		fmt.Sprintf("Power failure: voltage=%.1fV, load=%.1f%%", voltage, load)).
		WithDetails(event.PowerReading{Voltage: voltage, Load: load}).
		Correlate(correlationID)

	if err := bus.Publish(event.TopicPowerFailure, env); err != nil {
		return fmt.Errorf("publish power failure: %w", err)
	}
	fmt.Printf("Published power.failure (sector=%s voltage=%.1f correlation=%s)\n",
		sector, voltage, correlationID)
	return nil
}

// publishFlightBatch emits flights that share an origin and fly at adjacent
// altitudes within minutes of each other, so the analyzer finds conflicts
// and a hotspot.
func publishFlightBatch(bus *natsbus.Client, count int, correlationID string) error {
	if count < 2 {
		count = 2
	}

	planID := "PLAN-" + correlationID[:8]
	departure := time.Now().UTC().Add(30 * time.Minute)
	destinations := []string{"CYYZ", "CYUL", "KJFK", "KBOS", "KDCA", "KPHL"}

	for i := 0; i < count; i++ {
		flight := event.Flight{
			FlightID:      fmt.Sprintf("SIM%03d", i+1),
			Callsign:      fmt.Sprintf("SIM%03d", i+1),
			AircraftType:  "B738",
			Origin:        "CYOW",
			Destination:   destinations[i%len(destinations)],
			DepartureTime: departure.Add(time.Duration(i) * 5 * time.Minute),
			Route:         []string{"CYOW", destinations[i%len(destinations)]},
			AltitudeFt:    35000 + float64(i%2)*1000,
			SpeedKt:       450,
			PlanID:        planID,
		}

		env := event.New("chronos-sim", event.SeverityInfo, "airspace-sector-1",
			fmt.Sprintf("Flight %s parsed", flight.FlightID)).
			WithDetails(flight).
			Correlate(correlationID)

		if err := bus.Publish(event.TopicFlightParsed, env); err != nil {
			return fmt.Errorf("publish flight %s: %w", flight.FlightID, err)
		}
	}

	fmt.Printf("Published %d flights (plan=%s correlation=%s)\n", count, planID, correlationID)
	return nil
}
