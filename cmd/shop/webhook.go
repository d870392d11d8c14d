package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"shop-checkout/internal/server"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func webhookCmd(deps func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Payment provider webhook relay",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Verify provider callbacks and forward them to the order backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := deps()
			if a.cfg.Webhook.Secret == "" {
				a.log.Warn("WEBHOOK_SECRET is not set, every callback will be rejected")
			}

			srv := server.NewServer(a.webhook, a.cfg.Webhook, a.log)
			serverAddr := a.cfg.HTTP.Host + ":" + a.cfg.HTTP.Port

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			a.log.Info("signal received, starting graceful shutdown")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			return srv.Shutdown(shutdownCtx)
		},
	})

	return cmd
}
