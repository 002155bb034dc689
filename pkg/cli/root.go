// Package cli implements the dune command-line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dune-client/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{
				"error": err.Error(),
				"code":  domain.ErrorCode(err),
			}
			var transportErr *domain.TransportError
			if errors.As(err, &transportErr) {
				errObj["http_status"] = transportErr.StatusCode
			}
			var exhausted *domain.RetriesExhaustedError
			if errors.As(err, &exhausted) {
				errObj["attempts"] = exhausted.Attempts
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "dune",
		Short: "Dune Analytics query client",
		Long: "Command-line client for running Dune Analytics queries, refreshing dashboards\n" +
			"and inspecting the local run history.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringVarP(&a.flags.output, "output", "o", "table", "Output format (table, json, csv)")
	f.StringVarP(&a.flags.profile, "profile", "p", "", "Config profile to use")
	f.StringVar(&a.flags.envFile, "env-file", ".env", "Read environment variables from this file if it exists")
	f.StringVar(&a.flags.user, "user", "", "Dune username (env DUNE_USER)")
	f.StringVar(&a.flags.token, "token", "", "Fixed bearer token; skips the login handshake (env DUNE_TOKEN)")
	f.StringVar(&a.flags.baseURL, "base-url", "", "Web front end URL (env DUNE_BASE_URL)")
	f.StringVar(&a.flags.graphURL, "graph-url", "", "GraphQL endpoint URL (env DUNE_GRAPH_URL)")
	f.StringVar(&a.flags.historyDB, "history-db", "", `Run history SQLite file, or "off" (env HISTORY_DB_PATH)`)
	f.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newFetchCmd(a))
	rootCmd.AddCommand(newDashboardCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newLoginCmd(a))
	rootCmd.AddCommand(newNetworksCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
