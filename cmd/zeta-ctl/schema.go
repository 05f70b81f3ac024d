package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/zeta/internal/config"
	"github.com/sage-x-project/zeta/internal/storage/postgres"
)

var schemaConfigPath string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the Postgres schema",
}

var schemaInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Apply migrations/schema.sql against the configured database",
	Example: `  # Install using the default zeta.yaml
  zeta-ctl schema install

  # Install using a specific config file
  zeta-ctl schema install --config production.yaml`,
	RunE: runSchemaInstall,
}

func init() {
	schemaCmd.PersistentFlags().StringVar(&schemaConfigPath, "config", "zeta.yaml", "path to YAML config file")
	schemaCmd.AddCommand(schemaInstallCmd)
	rootCmd.AddCommand(schemaCmd)
}

func runSchemaInstall(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(schemaConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ddl, err := os.ReadFile(schemaPath())
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, &postgres.Config{
		Host: cfg.Database.Host, Port: cfg.Database.Port,
		User: cfg.Database.User, Password: cfg.Database.Password,
		Database: cfg.Database.Database, SSLMode: cfg.Database.SSLMode,
		MinConns: cfg.Database.MinConns, MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()

	if _, err := store.Pool().Exec(ctx, string(ddl)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	fmt.Println("schema installed")
	return nil
}

// schemaPath locates migrations/schema.sql relative to this source file,
// so install works regardless of the caller's working directory.
func schemaPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations", "schema.sql")
}
