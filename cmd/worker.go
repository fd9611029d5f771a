package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/config"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/queue"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

const consumerGroup = "refund-orchestrator"

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume refund jobs and execute them against the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			defer initTelemetry(cfg)()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = runWorker(ctx, a)
			telemetry.Logger.Info("Worker exited")
			return err
		},
	}
}

func runWorker(ctx context.Context, a *app) error {
	reader := queue.NewReader(a.cfg.KafkaBrokers, a.cfg.RefundQueueTopic, consumerGroup)
	return queue.NewConsumer(reader, a.orchestrator.ProcessRefund).Run(ctx)
}
