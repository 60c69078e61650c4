// Gray Logic Motion - occupancy-driven lighting controller
//
// This is the main entry point for the Gray Logic Motion service. Each
// configured controller watches motion sensors over MQTT (or local GPIO)
// and drives lights through the Gray Logic command topics:
//   - Sensor on turns lights on and arms an off timer
//   - Repeated motion restarts the timer, optionally with backoff
//   - Override entities disable a controller until released
//   - Night mode swaps the delay and service data inside a time window
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

var rootCmd = &cobra.Command{
	Use:   "graylogic-motion",
	Short: "Occupancy-driven lighting controller for Gray Logic",
	Long: `graylogic-motion turns lights on when motion is detected and off again
after a configurable delay, publishing each controller's state over MQTT.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configPath(cmd))
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config.yaml (default $GRAYLOGIC_CONFIG or "+defaultConfigPath+")")
}

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configPath returns the --config flag, then GRAYLOGIC_CONFIG, then the default.
func configPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
