// Miso: behavioral-health meta-analysis MCP server and CLI.
//
// Usage:
//
//	miso serve                          # Start MCP server (stdio transport)
//	miso analyze --input scores.json    # Analyze scores from a file
//	miso analyze --user u1 --user u2    # Analyze stored users
//	miso record --user u1 --input s.json
//	miso history --user u1
//	miso norms                          # Print the loaded norm tables
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	misoserver "github.com/HendryAvila/miso/internal/server"
)

func main() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries state shared by the subcommands. Logs go to stderr so they
// never interleave with MCP stdio or JSON output on stdout.
type app struct {
	configFile string
	logOut     io.Writer
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	a := &app{logOut: logOut}
	root := &cobra.Command{
		Use:   "miso",
		Short: "Behavioral-health meta-analysis engine",
		Long: `Miso combines a DASS-21 screening with optional Big Five traits, VIA
character strengths and a four-letter type code into a profile, discrepancies,
active mechanisms and a tiered intervention plan.

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "miso": {
        "command": "miso",
        "args": ["serve"]
      }
    }
  }

  Settings come from miso.yaml (working directory or ~/.miso) and MISO_*
  environment variables.`,
		Version:       misoserver.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to a miso.yaml config file")

	root.AddCommand(
		a.serveCmd(),
		a.analyzeCmd(),
		a.recordCmd(),
		a.historyCmd(),
		a.normsCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) logger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(a.logOut, &slog.HandlerOptions{Level: level}))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "miso v%s\n", misoserver.Version)
			return err
		},
	}
}
