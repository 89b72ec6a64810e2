package main

import (
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the esa webhook endpoint",
		Long: `Serve POST /esa/webhook on ADDR, plus /healthz, the admin console when
ADMIN_PASSWORD is set, and the read API and feeds of the sqlite target.

Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.newApp(cmd, log.INFO)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			app.Logger.Infof("esasync %s serving team %s into %s on %s", version, app.Config.EsaTeam, app.Config.Target, app.Config.Addr)
			return app.Start(ctx)
		},
	}
}
