package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root command and attaches its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "records-crawler",
		Short: "A resilient sequential crawler for NextRequest records portals.",
		Long: `records-crawler walks a public records portal one request at a time by
following each record's "next request" link. Failed batches restart from the
last scraped record, and the collected records are exported to a zipped CSV
archive on every exit path, including Ctrl-C.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newCrawlCmd(&cfgFile))
	cmd.AddCommand(newInspectCmd(&cfgFile))

	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context so the session can export before exiting.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
