package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"CollectRecon/api/collections"
	"CollectRecon/internal/config"
	"CollectRecon/internal/store/sqlstore"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	dbPath   string
	timeZone string
	actor    string
	workers  int
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "collectctl",
		Short: "Ingest payment files and manage promise-to-pay arrangements",
		Long: `collectctl runs the collections engine against a local SQLite ledger.

It ingests CSV/XLSX/XLS payment files into the ledger, checks file
fingerprints for duplicates, writes upload templates, and manages
promise-to-pay arrangements including the overdue sweep.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetErr(os.Stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.dbPath, "db", envOr("COLLECTCTL_DB", "collections.db"), "SQLite database file")
	pf.StringVar(&opts.timeZone, "tz", envOr("COLLECTCTL_TZ", config.DefaultTimeZone), "time zone used for processing dates")
	pf.StringVar(&opts.actor, "actor", envOr("USER", "cli"), "user recorded on batches and arrangements")
	pf.IntVar(&opts.workers, "workers", config.DefaultWorkers, "ingest worker count")

	root.AddCommand(
		newTemplateCmd(),
		newFingerprintCmd(),
		newInspectCmd(),
		newAccountsCmd(opts),
		newIngestCmd(opts),
		newBatchesCmd(opts),
		newArrangementsCmd(opts),
		newSweepCmd(opts),
	)
	return root
}

// execute runs the command tree and reports a failure once, in colour.
func execute(root *cobra.Command) error {
	if err := root.Execute(); err != nil {
		failure(root.ErrOrStderr(), "%v", err)
		return err
	}
	return nil
}

// openEngine opens the SQLite file and wires the engine on top of it. The
// returned func releases both.
func (o *options) openEngine(ctx context.Context) (*collections.Engine, func(), error) {
	db, err := sqlstore.OpenSQLite(ctx, o.dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", o.dbPath, err)
	}
	cfg := map[string]interface{}{
		"time_zone": o.timeZone,
		"workers":   o.workers,
	}
	engine := collections.NewEngine(cfg, collections.Stores{
		Batches:      db.Batches(),
		Ledger:       db.Ledger(),
		Arrangements: db.Arrangements(),
	}, nil)
	closeFn := func() {
		engine.Stream.Stop()
		db.Close()
	}
	return engine, closeFn, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (o *options) location() *time.Location {
	loc, err := time.LoadLocation(o.timeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
