package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"portal-api/internal/infrastructure/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply storage schema migrations",
	Long: `Create or upgrade the schema of the configured STORAGE_BACKEND.

For postgres the embedded SQL migrations are applied; --force N marks
version N as applied after a failed run left the schema dirty.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().Int("force", -1, "Force the migration version (postgres only)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	force, _ := cmd.Flags().GetInt("force")
	if force >= 0 {
		if err := storage.ForceVersion(ctx, cfg, force, log); err != nil {
			return fmt.Errorf("force version %d: %w", force, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Forced migration version %d\n", force)
		return nil
	}

	if err := storage.Migrate(ctx, cfg, log); err != nil {
		return fmt.Errorf("migrate %s storage: %w", cfg.StorageBackend, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Storage %q is up to date\n", cfg.StorageBackend)
	return nil
}
