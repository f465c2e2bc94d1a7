package cli

import (
	"github.com/spf13/cobra"
)

// NewRoot builds the deptrack command tree.
func NewRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "deptrack",
		Short:         "deptrack: byte-level data flow attribution between I/O endpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("deptrack {{.Version}}\n")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newTargetsCmd())

	return cmd
}
