package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deptrack/deptrack/internal/report"
	"github.com/deptrack/deptrack/internal/store/sqlite"
)

func newReportCmd() *cobra.Command {
	var (
		dbPath    string
		sessionID string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a dependency report from a stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if sessionID == "" {
				sessions, err := db.Sessions(ctx)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					return NewExitError(1, "no stored sessions in "+dbPath)
				}
				sessionID = sessions[len(sessions)-1]
			}

			sources, sinks, err := db.LoadMatrix(ctx, sessionID)
			if err != nil {
				return err
			}
			if len(sources) == 0 && len(sinks) == 0 {
				return NewExitError(1, "no matrix stored for session "+sessionID)
			}

			rep := report.Build(sessionID, sources, sinks)
			switch format {
			case "markdown":
				fmt.Fprint(cmd.OutOrStdout(), report.FormatMarkdown(rep))
			case "json":
				fmt.Fprint(cmd.OutOrStdout(), report.FormatJSON(rep))
			default:
				fmt.Fprint(cmd.OutOrStdout(), report.FormatText(rep))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "deptrack.db", "Path to the sqlite database")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID (default: most recent)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|markdown|json")
	return cmd
}
