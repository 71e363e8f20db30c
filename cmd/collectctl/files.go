package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"CollectRecon/internal/checksum"
	"CollectRecon/internal/normalize"
	"CollectRecon/internal/schema"
	"CollectRecon/internal/tabular"
	"CollectRecon/internal/validation"
)

func newTemplateCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the payment upload template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			write := schema.WriteTemplateCSV
			switch strings.ToLower(format) {
			case "csv":
			case "xlsx":
				write = schema.WriteTemplateXLSX
			default:
				return fmt.Errorf("unsupported template format %q (csv or xlsx)", format)
			}
			if out == "" {
				return write(cmd.OutOrStdout())
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := write(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "template written to %s", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	return cmd
}

func newFingerprintCmd() *cobra.Command {
	var verify string
	cmd := &cobra.Command{
		Use:   "fingerprint <file>",
		Short: "Print the SHA-256 fingerprint used for duplicate detection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			w := cmd.OutOrStdout()
			if verify == "" {
				fp, n, err := checksum.FingerprintReader(f)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s  %s (%d bytes)\n", fp, filepath.Base(args[0]), n)
				return nil
			}

			expected, err := checksum.CanonicalFingerprint(verify)
			if err != nil {
				return err
			}
			ok, err := checksum.NewChecksumMatcher(expected).MatchReader(f)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s does not match %s", args[0], expected)
			}
			success(w, "%s matches", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&verify, "verify", "", "expected fingerprint to compare against")
	return cmd
}

// inspect runs the parse, normalize and validate stages without touching
// the ledger.
func newInspectCmd() *cobra.Command {
	var showIssues int
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Dry-run a payment file: map headers and validate every row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := tabular.DetectFormat(args[0], "")
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			stream, err := tabular.Open(f, format, tabular.Options{})
			if err != nil {
				return err
			}
			defer stream.Close()

			w := cmd.OutOrStdout()
			header(w, fmt.Sprintf("Inspecting %s (%s)", filepath.Base(args[0]), format))

			headers := stream.Header()
			fields := schema.MapHeaders(headers)
			for i, h := range headers {
				if schema.IsSynthetic(fields[i]) {
					warning(w, "%-24s kept as %s", h, fields[i])
					continue
				}
				info(w, "%-24s %s", h, fields[i])
			}
			issues := normalize.DuplicateColumns(headers, fields)

			var total, valid, invalid, warnCount int
			for stream.Next() {
				rec := normalize.Normalize(stream.Row(), fields)
				ok, errs, warns := validation.ValidateRecord(rec)
				total++
				warnCount += len(warns)
				if ok {
					valid++
				} else {
					invalid++
				}
				issues = append(issues, errs...)
				issues = append(issues, warns...)
			}
			if err := stream.Err(); err != nil {
				return err
			}

			fmt.Fprintln(w)
			field(w, "records", total)
			field(w, "valid", valid)
			field(w, "invalid", invalid)
			field(w, "warnings", warnCount)
			printIssues(w, issues, showIssues)
			return nil
		},
	}
	cmd.Flags().IntVar(&showIssues, "show", 20, "maximum issues to print")
	return cmd
}

func printIssues(w io.Writer, issues []normalize.Issue, limit int) {
	for i, is := range issues {
		if i == limit {
			info(w, "... %d more", len(issues)-limit)
			return
		}
		if is.Code == normalize.CodeMissingAccount {
			failure(w, "%s", is)
			continue
		}
		warning(w, "%s", is)
	}
}
