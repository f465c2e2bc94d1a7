package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deptrack/deptrack/internal/config"
)

func newTargetsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Validate a config and list the endpoints it would register",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sources (%d):\n", len(cfg.Targets.Sources))
			for i, spec := range cfg.Targets.Sources {
				fmt.Fprintf(out, "  %d: %s (%s)\n", i, spec.Target().String(), spec.Target().Kind)
			}
			fmt.Fprintf(out, "sinks (%d):\n", len(cfg.Targets.Sinks))
			for i, spec := range cfg.Targets.Sinks {
				fmt.Fprintf(out, "  %d: %s (%s)\n", i, spec.Target().String(), spec.Target().Kind)
			}
			if len(cfg.Targets.Processes) > 0 {
				fmt.Fprintf(out, "process filter: %v\n", cfg.Targets.Processes)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "deptrack.yaml", "Path to the session config")
	return cmd
}
