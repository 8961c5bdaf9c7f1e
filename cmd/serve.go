package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"bkdict/internal/server"
)

var (
	servePort      int
	serveTimeout   time.Duration
	serveThreshold int
)

var serveCmd = &cobra.Command{
	Use:   "serve <archive>",
	Short: "Serve fuzzy lookups over HTTP",
	Long: `Load an archive once and answer searches over a JSON API.

Endpoints:
  GET /api/search?q=<word>&threshold=<n>   Matches with their distances
  GET /api/info                            Archive statistics

The server shuts down on Ctrl+C or after the idle timeout.

Example:
  bkdict serve words.db                 # Start on default port 8080
  bkdict serve words.db -p 3000         # Use custom port
  bkdict serve words.db --timeout 10m   # 10 minute idle timeout`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 0, "Idle timeout (0 to disable)")
	serveCmd.Flags().IntVarP(&serveThreshold, "threshold", "t", 2, "Threshold used when a request omits one")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := server.New(cmd.Context(), args[0],
		server.WithPort(servePort),
		server.WithIdleTimeout(serveTimeout),
		server.WithDefaultThreshold(serveThreshold),
		server.WithLogger(slog.Default()),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://localhost:%d\n", args[0], servePort)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	return srv.Start()
}
