package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-motion/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-motion/internal/lighting"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and every controller definition",
	Long: `Loads the configuration, builds each lighting controller's settings and
prints any warnings (missing sensors, unusable night mode windows, ...).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runValidate(cmd.OutOrStdout(), configPath(cmd))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// runValidate returns an error for a config that would stop the service
// from starting. Warnings are printed but do not fail validation.
func runValidate(w io.Writer, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	warnings := 0
	for _, def := range cfg.Lighting.Controllers {
		settings, err := lighting.NewSettings(def, cfg.Location())
		if err != nil {
			return fmt.Errorf("controller %q: %w", def.Name, err)
		}
		fmt.Fprintf(w, "%s: %d control, %d sensor, %d override entities (%s sensor)\n",
			settings.Name,
			len(settings.ControlEntities),
			len(settings.SensorEntities),
			len(settings.OverrideEntities),
			settings.SensorType,
		)
		for _, msg := range settings.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", msg)
			warnings++
		}
	}

	fmt.Fprintf(w, "%s is valid: %d controllers, %d warnings\n", path, len(cfg.Lighting.Controllers), warnings)
	return nil
}
