package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deptrack/deptrack/internal/api"
	"github.com/deptrack/deptrack/internal/config"
	"github.com/deptrack/deptrack/internal/report"
	"github.com/deptrack/deptrack/internal/session"
	"github.com/deptrack/deptrack/internal/trace"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		tracePath  string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a recorded trace and attribute data flow between the configured endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if tracePath != "" {
				cfg.Trace.Input = tracePath
			}
			if cfg.Trace.Input == "" {
				return NewExitError(2, "no trace input: set trace.input in config or pass --trace")
			}

			log := cfg.Logging.NewLogger(os.Stderr)
			sess, err := session.New(cfg, log)
			if err != nil {
				return err
			}

			var srv *http.Server
			if cfg.Server.Enabled {
				app := api.NewApp(cfg, sess)
				ln, err := net.Listen("tcp", cfg.Server.Addr)
				if err != nil {
					return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
				}
				srv = &http.Server{Handler: app.Router()}
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("http server failed", "error", err)
					}
				}()
				log.Info("reporting server listening", "addr", ln.Addr().String())
			}

			r, err := trace.Open(cfg.Trace.Input)
			if err != nil {
				return err
			}
			defer r.Close()

			runErr := sess.Run(cmd.Context(), r)

			rep := sess.Report()
			switch format {
			case "markdown":
				fmt.Fprint(cmd.OutOrStdout(), report.FormatMarkdown(rep))
			case "json":
				fmt.Fprint(cmd.OutOrStdout(), report.FormatJSON(rep))
			default:
				fmt.Fprint(cmd.OutOrStdout(), report.FormatText(rep))
			}

			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}
			if err := sess.Close(context.Background()); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "deptrack.yaml", "Path to the session config")
	cmd.Flags().StringVar(&tracePath, "trace", "", "Trace input path (overrides config, - for stdin)")
	cmd.Flags().StringVar(&format, "format", "text", "Report output format: text|markdown|json")
	return cmd
}
