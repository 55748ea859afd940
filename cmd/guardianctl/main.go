// guardianctl is the operator CLI: schema migration, batch audits and token minting.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "guardianctl",
		Short: "Operate the guardian service",
		Long: `guardianctl talks to the guardian database directly.

Database settings come from DB_DRIVER and DATABASE_URL, service
settings from the GUARDIAN_* variables, the same as the API server.`,
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd())
	root.AddCommand(auditCmd())
	root.AddCommand(tokenCmd())
	return root
}
