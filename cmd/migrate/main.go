package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/postgres"
	"github.com/eswasthya/portal/backend/pkg/config"
	"github.com/eswasthya/portal/backend/pkg/secrets"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the portal database schema",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func connect(cmd *cobra.Command) (*postgres.Client, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	if _, err := secrets.ApplyVaultSecrets(cmd.Context(), secrets.LoadVaultConfigFromEnv()); err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return postgres.NewClient(cmd.Context(), &cfg.Database)
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			count, err := client.Migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which migrations have been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			statuses, err := client.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-8s %-32s %-8s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				state, at := "pending", "-"
				if s.Applied {
					state, at = "applied", s.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(out, "%-8d %-32s %-8s %s\n", s.Version, s.Name, state, at)
			}
			return nil
		},
	}
}
