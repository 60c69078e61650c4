package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-motion/internal/lighting"
	"github.com/nerrad567/gray-logic-motion/internal/platform"
)

var resetCmd = &cobra.Command{
	Use:   "reset <controller>",
	Short: "Force a running controller back to idle",
	Long: `Publishes the lightingsm-reset event for the named controller. The running
service cancels its timer and returns the controller to idle without
sending any light commands.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath(cmd))
		if err != nil {
			return err
		}
		if err := runReset(cmd.Context(), cfg, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset sent to %s\n", lighting.StatusEntityID(args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

// runReset publishes the reset event for name over a short-lived MQTT
// connection. The client ID is suffixed so the broker does not drop the
// running service's session.
func runReset(ctx context.Context, cfg *config.Config, name string) error {
	if !hasController(cfg, name) {
		return fmt.Errorf("%w: %q", lighting.ErrControllerNotFound, name)
	}

	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID = fmt.Sprintf("%s-reset-%s", cfg.MQTT.Broker.ClientID, uuid.NewString()[:8])

	client, err := mqtt.Connect(mqttCfg)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer client.Close()

	p := platform.NewMQTT(client, nil)
	if err := p.PublishEvent(ctx, lighting.ResetEvent, map[string]any{
		"entity_id": lighting.StatusEntityID(name),
	}); err != nil {
		return fmt.Errorf("publishing %s: %w", lighting.ResetEvent, err)
	}
	return nil
}

func hasController(cfg *config.Config, name string) bool {
	for _, c := range cfg.Lighting.Controllers {
		if c.Name == name {
			return true
		}
	}
	return false
}
