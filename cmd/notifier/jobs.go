package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func sweepCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one retry sweep over unsent records and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(func(ctx context.Context, rt *runtime) error {
				if limit <= 0 {
					limit = rt.cfg.SweepLimit
				}
				sweeper, err := rt.newSweeper(limit)
				if err != nil {
					return err
				}

				report, err := sweeper.RunSweep(ctx)
				if err != nil {
					return err
				}
				rt.logger.Info("sweep command finished",
					zap.String("runId", report.RunID),
					zap.Int("selected", report.Selected),
					zap.Int("sent", report.Sent),
					zap.Int("failed", report.Failed),
					zap.Int("exhausted", report.Exhausted),
				)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum records per sweep (defaults to SWEEP_LIMIT)")
	return cmd
}

func countdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "countdown",
		Short: "Send today's countdown reminders and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(func(ctx context.Context, rt *runtime) error {
				svc, err := rt.newCountdownService()
				if err != nil {
					return err
				}

				report, err := svc.RunDaily(ctx)
				if err != nil {
					return err
				}
				rt.logger.Info("countdown command finished",
					zap.String("runId", report.RunID),
					zap.String("date", report.Date),
					zap.Int("active", report.Active),
					zap.Int("guarded", report.Guarded),
					zap.Int("sent", report.Sent),
					zap.Int("failed", report.Failed),
				)
				return nil
			})
		},
	}
}
