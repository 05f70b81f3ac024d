package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/zeta/internal/config"
)

var initOutPath string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter zeta.yaml for local development",
	Example: `  # Write zeta.yaml in the current directory
  zeta-ctl init

  # Write to a specific path
  zeta-ctl init --out dev.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initOutPath, "out", "zeta.yaml", "path to write the config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(initOutPath); err == nil {
		return fmt.Errorf("refusing to overwrite existing config at %s", initOutPath)
	}

	cfg := &config.Config{
		Environment: "development",
		Server: &config.ServerConfig{
			Addr: ":8443",
		},
		Database: &config.DatabaseConfig{
			Host:     "${ZETA_DB_HOST:localhost}",
			Port:     5432,
			User:     "${ZETA_DB_USER:zeta}",
			Password: "${ZETA_DB_PASSWORD:zeta}",
			Database: "${ZETA_DB_NAME:zeta}",
			SSLMode:  "disable",
			MinConns: 1,
			MaxConns: 5,
		},
		NonceStore: &config.NonceConfig{
			Backend: "memory",
		},
		Crypto: &config.CryptoConfig{
			PrivateKeyPath: "server.key",
			KeyBits:        4096,
		},
		Logging: &config.LoggingConfig{
			Level: "debug",
		},
		Metrics: &config.MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
	}

	if err := config.SaveToFile(cfg, initOutPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("wrote %s — run `zeta-ctl keygen` and `zeta-ctl schema install` next\n", initOutPath)
	return nil
}
