// Package main is the entry point for the Amethyst CDN database migration tool.
// Migrations are embedded in the binary for both SQLite and PostgreSQL.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/prn-tf/amethyst-cdn/internal/bootstrap"
	"github.com/prn-tf/amethyst-cdn/internal/config"
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
	Use:           "cdn-migrate",
	Short:         "Amethyst CDN migration tool",
	Long:          "Applies, rolls back and inspects the schema migrations of the content index.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print tool and schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Amethyst CDN Migration Tool")
		fmt.Fprintf(out, "Version: %s\n", Version)
		fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
		fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)

		return withMigrator(cmd.Context(), func(m *migrate.Migrate) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Fprintln(out, "Schema: none")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Schema: %d (dirty: %t)\n", version, dirty)
			return nil
		})
	},
}

var upCmd = &cobra.Command{
	Use:   "up [N]",
	Short: "Apply all or N pending migrations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(m *migrate.Migrate) error {
			if len(args) == 0 {
				return ignoreNoChange(m.Up())
			}
			n, err := parseSteps(args[0])
			if err != nil {
				return err
			}
			return ignoreNoChange(m.Steps(n))
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down [N]",
	Short: "Roll back the last or N migrations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n := 1
		if len(args) == 1 {
			var err error
			if n, err = parseSteps(args[0]); err != nil {
				return err
			}
		}
		return withMigrator(cmd.Context(), func(m *migrate.Migrate) error {
			return ignoreNoChange(m.Steps(-n))
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the schema version without running migrations (use with caution)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withMigrator(cmd.Context(), func(m *migrate.Migrate) error {
			return m.Force(version)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CDN_CONFIG"), "path to the config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	rootCmd.AddCommand(versionCmd, upCmd, downCmd, forceCmd)
}

// withMigrator opens the configured database and runs fn over its migrator.
func withMigrator(ctx context.Context, fn func(*migrate.Migrate) error) error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, _, err := bootstrap.OpenDatabase(ctx, cfg.Database, zerolog.Nop())
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := db.Migrator()
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(m)
}

func parseSteps(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid step count %q", s)
	}
	return n, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
