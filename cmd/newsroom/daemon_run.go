package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"newsroom/internal/articles"
	"newsroom/internal/config"
	"newsroom/internal/daemon"
	"newsroom/internal/logging"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the newsroom daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *articles.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				d, err := daemon.New(cfg, store, logger)
				if err != nil {
					return fmt.Errorf("create daemon: %w", err)
				}

				runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if err := d.Start(runCtx); err != nil {
					return fmt.Errorf("start daemon: %w", err)
				}
				defer d.Stop()

				if addr := d.Addr(); addr != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "newsroomd listening on %s\n", addr)
				}
				<-runCtx.Done()
				return nil
			})
		},
	}
}
