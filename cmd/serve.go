package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/api"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/config"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

func serveCmd() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the refund HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			defer initTelemetry(cfg)()

			telemetry.Logger.Info("Starting Refund Orchestrator")

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			waitWorker := func() {}
			if withWorker {
				waitWorker = goUntilDone(ctx, "Refund worker", func(ctx context.Context) error {
					return runWorker(ctx, a)
				})
			}

			srv := &http.Server{
				Addr:    ":" + cfg.Port,
				Handler: api.NewRouter(a.commerce, a.orchestrator),
			}

			go func() {
				telemetry.Logger.Info("Refund Orchestrator starting", zap.String("port", cfg.Port))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
				}
			}()

			<-ctx.Done()

			telemetry.Logger.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
			}

			// The worker may be mid-refund; its stores close after it returns.
			waitWorker()

			telemetry.Logger.Info("Server exited")
			return nil
		},
	}

	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "Also consume refund jobs in this process")

	return cmd
}

// goUntilDone runs fn in the background and returns a func that blocks until
// fn has returned.
func goUntilDone(ctx context.Context, name string, fn func(context.Context) error) func() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := fn(ctx); err != nil {
			telemetry.Logger.Error(name+" stopped", zap.Error(err))
		}
	}()
	return func() { <-done }
}
