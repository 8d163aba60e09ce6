// Package main is the entry point for the Amethyst CDN admin CLI.
// It inspects users and content and runs the lifecycle sweeps on demand.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/prn-tf/amethyst-cdn/internal/bootstrap"
	"github.com/prn-tf/amethyst-cdn/internal/config"
	"github.com/prn-tf/amethyst-cdn/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "cdn-admin",
	Short:         "Amethyst CDN admin CLI",
	Long:          "Administrative commands for inspecting users and content and running sweeps.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Amethyst CDN Admin CLI")
		fmt.Fprintf(out, "Version: %s\n", Version)
		fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
		fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CDN_CONFIG"), "path to the config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	rootCmd.AddCommand(versionCmd, usersCmd, contentCmd, sweepCmd)
}

// openApp loads the configuration and opens the infrastructure it names.
func openApp(ctx context.Context) (*config.Config, *bootstrap.App, zerolog.Logger, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}

	logCfg := cfg.Logging
	logCfg.Output = "stderr"
	logger := logging.New(logCfg)

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, logger, err
	}
	return cfg, app, logger, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
