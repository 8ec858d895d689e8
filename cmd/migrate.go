package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database/sqlstore"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("status", false, "List applied migrations without applying new ones")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, err := sqlstore.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if mustGetBool(cmd, "status") {
		versions, err := store.MigrationsApplied(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d migrations applied (%s)\n", len(versions), store.Dialect())
		for _, v := range versions {
			fmt.Printf("  %s\n", v)
		}
		return nil
	}

	applied, err := store.Migrate(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Println("Database is up to date")
		return nil
	}
	for _, v := range applied {
		fmt.Printf("Applied %s\n", v)
	}
	return nil
}
