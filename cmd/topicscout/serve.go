package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/topicscout/internal/app"
	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/storage"
)

var serveAddr string

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		Long: `Serve the search, crawl and rule management API. With --save every result
returned by the API is also written to the configured storage. Metrics are
exposed at /metrics in Prometheus text format.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	configure := func(cfg *config.Config) {
		if serveAddr != "" {
			cfg.API.Addr = serveAddr
		}
	}
	return withApp(cmd, configure, func(ctx context.Context, a *app.App) error {
		var store storage.Storage
		if save {
			s, err := a.OpenStorage(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			store = s
		}
		return a.Server(store).ListenAndServe(ctx)
	})
}
