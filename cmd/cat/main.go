// Command cat reconstructs tracks in tracker events with the cellular
// automaton track finder.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cat",
		Short: "Cellular automaton track finder for drift-cell trackers",
		Long: `cat groups tracker hits into clusters, grows track candidates through
them cell by cell and picks the scenario that explains the event best.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newDBCmd(), newVersionCmd())
	return root
}
