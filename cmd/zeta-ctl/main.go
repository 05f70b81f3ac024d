// Command zeta-ctl is ZETA's operator CLI: installing the database
// schema, generating the server's signing key, and seeding a demo event
// for local testing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "zeta-ctl",
	Short: "ZETA operator CLI",
	Long: `zeta-ctl manages a ZETA deployment: installing the Postgres schema,
generating the server's RSA signing key, and seeding a demo event.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
