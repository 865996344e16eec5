package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/motorlot/internal/reconcile"
)

func newReconcileCmd() *cobra.Command {
	var (
		configPath string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Cross-check derived counts against the ledger",
		Long: `Runs one reconciliation pass: stock conservation, refunds exceeding
use, and closed-case total drift. With --watch, keeps running on the
configured cron schedule and announces anomalies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, configPath, watch)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Motorlot config file")
	cmd.Flags().BoolVar(&watch, "watch", false, "run on the configured cron schedule")
	return cmd
}

func runReconcile(cmd *cobra.Command, configPath string, watch bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if watch {
		scheduler := reconcile.NewScheduler(gormDB, reconcile.SchedulerOpts{
			LaborRate:       cfg.LaborRateDecimal(),
			Notifier:        buildNotifier(cfg),
			Cron:            cfg.Reconcile.Cron,
			NotifyAnomalies: cfg.Reconcile.NotifyAnomalies,
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		fmt.Fprintf(out, "Reconciling on schedule %q — Ctrl-C to stop\n", cfg.Reconcile.Cron)
		scheduler.Run(ctx)
		return nil
	}

	report, err := reconcile.Run(gormDB, cfg.LaborRateDecimal())
	if err != nil {
		return err
	}
	if report.Empty() {
		fmt.Fprintln(out, "Clean: ledger, stock, and totals agree.")
		return nil
	}
	for _, summary := range report.Summaries() {
		fmt.Fprintf(out, "ANOMALY: %s\n", summary)
	}
	return fmt.Errorf("%d anomalies found", len(report.Summaries()))
}
