package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"CollectRecon/internal/arrangement"
	"CollectRecon/internal/jobs"
)

const dateLayout = "2006-01-02"

func newArrangementsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "arrangements",
		Aliases: []string{"ptp"},
		Short:   "Manage promise-to-pay arrangements",
	}

	var amount, promised string
	add := &cobra.Command{
		Use:   "add <account-number>",
		Short: "Record a promise to pay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(strings.TrimSpace(amount))
			if err != nil {
				return fmt.Errorf("invalid amount %q", amount)
			}
			date, err := time.ParseInLocation(dateLayout, strings.TrimSpace(promised), opts.location())
			if err != nil {
				return fmt.Errorf("promised date must be YYYY-MM-DD: %q", promised)
			}
			engine, done, err := opts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			a, err := engine.Arrangements.Create(cmd.Context(), arrangement.CreateRequest{
				AccountNumber: args[0],
				Amount:        amt,
				PromisedDate:  date,
				CreatedBy:     opts.actor,
			})
			if err != nil {
				return err
			}
			printArrangement(cmd.OutOrStdout(), a)
			return nil
		},
	}
	add.Flags().StringVar(&amount, "amount", "", "promised amount")
	add.Flags().StringVar(&promised, "date", "", "promised date (YYYY-MM-DD)")
	_ = add.MarkFlagRequired("amount")
	_ = add.MarkFlagRequired("date")

	pay := &cobra.Command{
		Use:   "pay <arrangement-id>",
		Short: "Confirm an arrangement was paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, done, err := opts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			a, err := engine.Arrangements.ConfirmPaid(cmd.Context(), args[0], opts.actor)
			if err != nil {
				return err
			}
			printArrangement(cmd.OutOrStdout(), a)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list <account-number>",
		Short: "List an account's arrangements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, done, err := opts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			rows, err := engine.Arrangements.ListByAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			header(w, fmt.Sprintf("Arrangements for %s (%d)", args[0], len(rows)))
			for _, a := range rows {
				info(w, "%s  %-9s %s due %s", a.ID, a.Status, a.Amount.StringFixed(2), a.PromisedDate.Format(dateLayout))
			}
			return nil
		},
	}

	cmd.AddCommand(add, pay, list)
	return cmd
}

// newSweepCmd runs the overdue sweep once. --as-of replays the sweep for a
// past or future date instead of today.
func newSweepCmd(opts *options) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Default pending arrangements whose promised date has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, done, err := opts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			var res arrangement.SweepResult
			if asOf != "" {
				day, perr := time.ParseInLocation(dateLayout, asOf, opts.location())
				if perr != nil {
					return fmt.Errorf("--as-of must be YYYY-MM-DD: %q", asOf)
				}
				res, err = engine.Arrangements.Sweep(cmd.Context(), day)
			} else {
				res, err = jobs.NewCronService(map[string]interface{}{"time_zone": opts.timeZone}, engine.Arrangements).RunOnce(cmd.Context())
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			field(w, "scanned", res.Scanned)
			field(w, "defaulted", res.Transitioned)
			field(w, "failed", res.Failed)
			if res.Failed > 0 {
				warning(w, "%d arrangements could not be defaulted", res.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "sweep as if today were this date (YYYY-MM-DD)")
	return cmd
}

func printArrangement(w io.Writer, a *arrangement.Arrangement) {
	success(w, "arrangement %s", a.ID)
	field(w, "account", a.AccountNumber)
	field(w, "amount", a.Amount.StringFixed(2))
	field(w, "promised", a.PromisedDate.Format(dateLayout))
	field(w, "status", a.Status)
	if a.ResolvedBy != "" {
		field(w, "resolved by", a.ResolvedBy)
	}
}
