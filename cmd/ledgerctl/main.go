package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/eswasthya/portal/backend/internal/adapters/ledger"
	"github.com/eswasthya/portal/backend/internal/adapters/locks"
	"github.com/eswasthya/portal/backend/internal/application/services"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/pkg/config"
	"github.com/eswasthya/portal/backend/pkg/recordhash"
	"github.com/eswasthya/portal/backend/pkg/secrets"
)

// ledgerOpener opens the configured ledger. Tests swap it for an in-memory one.
type ledgerOpener func(ctx context.Context) (providers.Ledger, *config.LedgerConfig, error)

// chainAuditor is implemented by ledgers that keep a verifiable local chain
type chainAuditor interface {
	VerifyChain(ctx context.Context) (uint64, error)
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := newRootCmd(openConfiguredLedger).Execute(); err != nil {
		os.Exit(1)
	}
}

func openConfiguredLedger(ctx context.Context) (providers.Ledger, *config.LedgerConfig, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, nil, err
	}
	if _, err := secrets.ApplyVaultSecrets(ctx, secrets.LoadVaultConfigFromEnv()); err != nil {
		return nil, nil, fmt.Errorf("vault: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	l, err := ledger.Open(ctx, &cfg.Ledger)
	if err != nil {
		return nil, nil, err
	}
	return l, &cfg.Ledger, nil
}

func newRootCmd(open ledgerOpener) *cobra.Command {
	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Inspect and manage medical records on the ledger",
		SilenceUsage: true,
	}

	root.AddCommand(hashCmd())
	root.AddCommand(storeCmd(open))
	root.AddCommand(getCmd(open))
	root.AddCommand(updateCmd(open))
	root.AddCommand(invalidateCmd(open))
	root.AddCommand(verifyCmd(open))
	root.AddCommand(auditCmd(open))

	return root
}

// withRecords opens the ledger, runs fn against a record service and closes the ledger.
func withRecords(cmd *cobra.Command, open ledgerOpener, fn func(ctx context.Context, svc *services.MedicalRecordService) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	l, cfg, err := open(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	svc := services.NewMedicalRecordService(l, locks.NewLocalRecordLocker(), cfg.TxTimeout)
	return fn(ctx, svc)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func hashCmd() *cobra.Command {
	var patientID, data string
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the content hash for a patient id and report payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), recordhash.Hash(patientID, data))
			return nil
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id")
	cmd.Flags().StringVar(&data, "data", "", "report payload")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func storeCmd(open ledgerOpener) *cobra.Command {
	var patientID, data string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Store a new record and print its hash and transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd, open, func(ctx context.Context, svc *services.MedicalRecordService) error {
				receipt, err := svc.Create(ctx, services.CreateRecordInput{PatientID: patientID, ReportData: data})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"report_hash":      receipt.ReportHash,
					"transaction_hash": receipt.TransactionHash,
					"block_number":     receipt.BlockNumber,
				})
			})
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id")
	cmd.Flags().StringVar(&data, "data", "", "report payload")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func getCmd(open ledgerOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "get <patient-id> <report-hash>",
		Short: "Print a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd, open, func(ctx context.Context, svc *services.MedicalRecordService) error {
				record, err := svc.Get(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), record)
			})
		},
	}
}

func updateCmd(open ledgerOpener) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "update <patient-id> <report-hash>",
		Short: "Replace the payload of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd, open, func(ctx context.Context, svc *services.MedicalRecordService) error {
				receipt, err := svc.Update(ctx, args[0], args[1], services.UpdateRecordInput{ReportData: data})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), receipt)
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "new report payload")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func invalidateCmd(open ledgerOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <patient-id> <report-hash>",
		Short: "Mark a record invalid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd, open, func(ctx context.Context, svc *services.MedicalRecordService) error {
				receipt, err := svc.Invalidate(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), receipt)
			})
		},
	}
}

func verifyCmd(open ledgerOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <patient-id> <report-hash>",
		Short: "Print whether a record is valid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd, open, func(ctx context.Context, svc *services.MedicalRecordService) error {
				valid, err := svc.Verify(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]bool{"is_valid": valid})
			})
		},
	}
}

func auditCmd(open ledgerOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Re-hash the local ledger chain and report the first broken block",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			l, _, err := open(ctx)
			if err != nil {
				return err
			}
			defer l.Close()

			auditor, ok := l.(chainAuditor)
			if !ok {
				return errors.New("audit is only available for the local ledger backend")
			}
			blocks, err := auditor.VerifyChain(ctx)
			if err != nil {
				return fmt.Errorf("chain verification failed after %d blocks: %w", blocks, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chain ok: %d blocks verified\n", blocks)
			return nil
		},
	}
}
