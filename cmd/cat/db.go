package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/storage/sqlite"
)

func newDBCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the run ledger",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "cat.db", "SQLite ledger path")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending ledger migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlite.OpenDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := sqlite.MigrateUp(db, nil); err != nil {
				return err
			}
			version, dirty, err := sqlite.MigrateVersion(db, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s to version %d (dirty=%t)\n", dbPath, version, dirty)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlite.OpenDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			version, dirty, err := sqlite.MigrateVersion(db, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlite.OpenDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := sqlite.MigrateUp(db, nil); err != nil {
				return err
			}
			runs, err := sqlite.NewRunStore(db, nil).ListRuns()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range runs {
				status := "running"
				if r.Finished() {
					status = time.Duration(r.FinishedAt - r.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(out, "%s  %s  events=%d skipped=%d  %s\n",
					r.RunID, time.Unix(0, r.StartedAt).UTC().Format(time.RFC3339), r.NEvents, r.NSkipped, status)
			}
			return nil
		},
	}

	cmd.AddCommand(migrateCmd, versionCmd, runsCmd)
	return cmd
}
