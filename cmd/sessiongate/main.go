package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sessiongate: %v\n", err)
		stop()
		os.Exit(1)
	}
	stop()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sessiongate",
		Short: "Stateless cookie sessions for an OIDC-authenticated web app",
		Long: `sessiongate completes an OIDC login, issues a signed session cookie
and checks it on every request. Running it without a subcommand is the
same as "sessiongate serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		tokenCmd(),
		versionCmd(),
	)
	return root
}
