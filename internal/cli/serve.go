package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phakpoomachalanan/WebIR/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var indexDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over HTTP",
		Long: `Starts the HTTP search service with health probes and Prometheus
metrics. Redis query caching and the Kafka/Postgres analytics pipeline
attach when enabled in configuration. The served snapshot follows the
index as new commits land.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if indexDir != "" {
				a.cfg.Index.Dir = indexDir
			}
			analyzers, err := a.analyzers()
			if err != nil {
				return err
			}
			srv, err := server.New(a.cfg, analyzers)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&indexDir, "index", "", "index directory (default from config)")
	return cmd
}
