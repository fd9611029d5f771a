package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/config"
)

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process [log-id]",
		Short: "Execute one pending refund log now",
		Long: `Runs the refund execution step for a single refund log. Logs that
already completed or failed are left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || logID <= 0 {
				return fmt.Errorf("invalid refund log id %q", args[0])
			}

			cfg := config.Load()
			defer initTelemetry(cfg)()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			if err := a.orchestrator.ProcessRefund(ctx, logID); err != nil {
				return err
			}

			log, err := a.logs.Load(ctx, logID)
			if err != nil {
				return err
			}
			if log == nil {
				return fmt.Errorf("refund log %d not found", logID)
			}
			fmt.Printf("refund log %d: %s\n", log.ID, log.Status)
			return nil
		},
	}
}
