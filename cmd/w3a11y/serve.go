package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/w3a11y-artisan/internal/app"
	"github.com/suPer8Hu/w3a11y-artisan/internal/db"
	"github.com/suPer8Hu/w3a11y-artisan/internal/httpapi"
	"github.com/suPer8Hu/w3a11y-artisan/internal/httpapi/handlers"
	"github.com/suPer8Hu/w3a11y-artisan/internal/store/rabbitmq"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		migrate bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the AJAX API server",
		Example: `  # Listen on the configured HTTP_ADDR
  w3a11y serve

  # Listen on a custom address and migrate first
  w3a11y serve --addr :9000 --migrate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := bootstrap(ctx, true)
			if err != nil {
				return err
			}
			defer d.Close()
			l := d.logger

			if migrate {
				if err := db.Migrate(d.db); err != nil {
					return err
				}
			}
			if addr == "" {
				addr = d.cfg.HTTPAddr
			}

			svc := app.NewServices(d.db, d.rdb, d.cfg, l)

			// server-driven bulk sessions are optional; browser polling works without a broker
			var queue handlers.SessionPublisher
			pub, err := rabbitmq.NewPublisher(d.cfg.RabbitURL, d.cfg.RabbitQueue)
			if err != nil {
				l.Warn("rabbitmq unavailable, background bulk processing disabled", "err", err)
			} else {
				defer pub.Close()
				queue = pub
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpapi.NewRouter(svc, d.cfg, queue, l),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				l.Info("api listening", "addr", addr, "env", d.cfg.Env)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-ctx.Done():
				l.Info("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					l.Error("server shutdown failed", "err", err)
					return err
				}
				l.Info("server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (defaults to HTTP_ADDR)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Run database migrations before serving")
	return cmd
}
