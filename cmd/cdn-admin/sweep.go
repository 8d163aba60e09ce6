package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prn-tf/amethyst-cdn/internal/service"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a lifecycle sweep once",
}

var sweepExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Remove content whose expiry has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd, (*service.LifecycleService).ExpireOnce)
	},
}

var sweepPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove index entries whose stored object is missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd, (*service.LifecycleService).PurgeOnce)
	},
}

func runSweep(cmd *cobra.Command, sweep func(*service.LifecycleService, context.Context) service.SweepResult) error {
	ctx := cmd.Context()
	cfg, app, logger, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	lifecycle := service.NewLifecycleService(app.Repos.Content, app.Backend, app.Locker, nil, logger, service.LifecycleConfig{
		ExpireInterval: cfg.Lifecycle.ExpireInterval,
		PurgeInterval:  cfg.Lifecycle.PurgeInterval,
		BatchSize:      cfg.Lifecycle.BatchSize,
	})

	result := sweep(lifecycle, ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d removed=%d errors=%d skipped=%t duration=%s\n",
		result.Scanned, result.Removed, result.Errors, result.Skipped, result.Duration)
	if result.Errors > 0 {
		return fmt.Errorf("sweep finished with %d errors", result.Errors)
	}
	return nil
}

func init() {
	sweepCmd.AddCommand(sweepExpireCmd, sweepPurgeCmd)
}
