package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"CollectRecon/internal/batch"
)

func newAccountsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage ledger accounts",
	}

	var holder, balance string
	add := &cobra.Command{
		Use:   "add <account-number>",
		Short: "Create or refresh an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(strings.TrimSpace(balance))
			if err != nil {
				return fmt.Errorf("invalid balance %q", balance)
			}
			engine, done, err := opts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			acct, err := engine.SeedAccount(cmd.Context(), strings.TrimSpace(args[0]), holder, amount)
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "account %s balance %s (version %d)",
				acct.AccountNumber, acct.Balance.StringFixed(2), acct.Version)
			return nil
		},
	}
	add.Flags().StringVar(&holder, "holder", "", "account holder name")
	add.Flags().StringVar(&balance, "balance", "0", "opening balance")

	show := &cobra.Command{
		Use:   "show <account-number>",
		Short: "Show an account and its payment history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, done, err := opts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			acct, err := engine.Ledger.FindAccountByNumber(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			history, err := engine.Ledger.ListHistory(cmd.Context(), acct.AccountNumber)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			header(w, "Account "+acct.AccountNumber)
			field(w, "holder", acct.HolderName)
			field(w, "balance", acct.Balance.StringFixed(2))
			field(w, "last payment", acct.LastPaymentAmount.StringFixed(2))
			if acct.LastPaymentDate != nil {
				field(w, "last paid on", acct.LastPaymentDate.Format("2006-01-02"))
			}
			field(w, "version", acct.Version)
			for _, h := range history {
				info(w, "%s  %s  %s -> %s  batch %s", h.PaymentDate.Format("2006-01-02"),
					h.Amount.StringFixed(2), h.BalanceBefore.StringFixed(2), h.BalanceAfter.StringFixed(2), h.BatchID)
			}
			return nil
		},
	}

	cmd.AddCommand(add, show)
	return cmd
}

func newIngestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a payment file into the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			st, err := f.Stat()
			if err != nil {
				return err
			}

			engine, done, err := opts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			b, err := engine.Batches.Ingest(cmd.Context(), batch.Submission{
				FileName:  filepath.Base(args[0]),
				Size:      st.Size(),
				CreatedBy: opts.actor,
				Content:   f,
			})
			var dup *batch.DuplicateError
			if errors.As(err, &dup) {
				return fmt.Errorf("%s was already processed as batch %s", args[0], dup.ExistingBatchID)
			}
			if err != nil {
				return err
			}
			printBatch(cmd, b)
			if b.Status == batch.StatusFailed {
				return fmt.Errorf("batch %s failed: %s", b.ID, b.ErrorMessage)
			}
			return nil
		},
	}
}

func newBatchesCmd(opts *options) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "batches [batch-id]",
		Short: "List upload batches, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, done, err := opts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			if len(args) == 1 {
				b, err := engine.Batches.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printBatch(cmd, b)
				return nil
			}

			rows, total, err := engine.Batches.List(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			header(w, fmt.Sprintf("Batches (%d total)", total))
			for _, b := range rows {
				info(w, "%s  %-10s %-28s records=%d applied=%d", b.ID, b.Status, b.FileName, b.TotalRecords, b.AppliedCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func printBatch(cmd *cobra.Command, b *batch.FileBatch) {
	w := cmd.OutOrStdout()
	header(w, "Batch "+b.ID)
	field(w, "file", b.FileName)
	field(w, "status", b.Status)
	field(w, "fingerprint", b.Fingerprint)
	field(w, "records", b.TotalRecords)
	field(w, "valid", b.ValidRecords)
	field(w, "invalid", b.InvalidRecords)
	field(w, "applied", b.AppliedCount)
	field(w, "failed", b.FailedCount)
	field(w, "warnings", b.WarningCount)
	field(w, "duration", fmt.Sprintf("%dms", b.DurationMs))
	for _, e := range b.Errors {
		warning(w, "%s", e)
	}
	if b.Status == batch.StatusCompleted {
		success(w, "batch completed")
	}
}
