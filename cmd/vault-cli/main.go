package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	rpcURL     string
	authToken  string
	callerAddr string
	timeout    time.Duration
)

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "vault-cli",
		Short:         "Query and operate a rebasevault node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	flags := root.PersistentFlags()
	flags.StringVar(&rpcURL, "rpc", envOr("VAULT_RPC_URL", "http://localhost:8080"), "vaultd base URL (env VAULT_RPC_URL)")
	flags.StringVar(&authToken, "token", os.Getenv("VAULT_TOKEN"), "bearer token (env VAULT_TOKEN)")
	flags.StringVar(&callerAddr, "caller", os.Getenv("VAULT_CALLER"), "caller address when the node runs without auth (env VAULT_CALLER)")
	flags.DurationVar(&timeout, "timeout", 15*time.Second, "request timeout")

	root.AddCommand(
		ledgerCmd(),
		balanceCmd(),
		transferCmd(),
		poolsCmd(),
		quoteCmd(),
		swapCmd(),
		addLiquidityCmd(),
		removeLiquidityCmd(),
		reserveCmd(),
		journalCmd(),
		pausesCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// session bundles a client with a deadline-bound context for one command.
func session(cmd *cobra.Command) (*client, context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return newClient(rpcURL, authToken, callerAddr, timeout), ctx, cancel
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
