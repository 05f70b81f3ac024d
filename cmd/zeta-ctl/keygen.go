package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/zeta/internal/cryptoutil"
)

var (
	keygenOutPath string
	keygenBits    int
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the server's RSA-PSS signing keypair",
	Example: `  # Generate a 4096-bit key at the default path
  zeta-ctl keygen --out server.key

  # Generate a smaller key for local testing
  zeta-ctl keygen --out server.key --bits 2048`,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVar(&keygenOutPath, "out", "server.key", "path to write the PEM-encoded private key")
	keygenCmd.Flags().IntVar(&keygenBits, "bits", 4096, "RSA key size in bits")
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(keygenOutPath); err == nil {
		return fmt.Errorf("refusing to overwrite existing key at %s", keygenOutPath)
	}

	signer, err := cryptoutil.GenerateSigner(keygenBits)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	if err := os.WriteFile(keygenOutPath, signer.PrivatePEM(), 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}

	pub, err := signer.PublicPEM()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	fmt.Printf("wrote private key to %s\n\npublic key:\n%s\n", keygenOutPath, pub)
	return nil
}
