package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/raiot-portal/migrations"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, logCloser, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logCloser.Close()

		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		applied, err := migrations.Apply(ctx, db)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			logger.Println("migrate: schema is up to date")
			return nil
		}
		for _, name := range applied {
			logger.Printf("migrate: applied %s", name)
		}
		return nil
	},
}

var counterCmd = &cobra.Command{
	Use:   "counter",
	Short: "Inspect the unique ID counter",
}

var counterStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the counter record and the next identifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, logCloser, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logCloser.Close()

		comps, err := initializeComponents(cfg, logger)
		if err != nil {
			return err
		}
		defer comps.Close()

		status, err := comps.uniqueID.Status(cmd.Context())
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var reconcileBatchSize int

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Assign unique IDs to complete profiles that are still missing one",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, logCloser, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logCloser.Close()

		comps, err := initializeComponents(cfg, logger)
		if err != nil {
			return err
		}
		defer comps.Close()

		batchSize := reconcileBatchSize
		if batchSize <= 0 {
			batchSize = cfg.Scheduler.ReconcileBatchSize
		}

		report, err := comps.uniqueID.Reconcile(cmd.Context(), batchSize)
		if report != nil {
			fmt.Fprintln(cmd.OutOrStdout(), report.String())
			for _, id := range report.Orphaned {
				fmt.Fprintf(cmd.OutOrStdout(), "orphaned: %s\n", id)
			}
		}
		return err
	},
}

func init() {
	counterCmd.AddCommand(counterStatusCmd)
	reconcileCmd.Flags().IntVar(&reconcileBatchSize, "batch-size", 0, "Members per page (defaults to RECONCILE_BATCH_SIZE)")
}
