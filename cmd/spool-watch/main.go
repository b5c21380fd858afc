// Command spool-watch shows a queue-runner journal as a live TUI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/spoolrunner/internal/journal"
	"github.com/mattjoyce/spoolrunner/internal/storage"
	"github.com/mattjoyce/spoolrunner/internal/tui/watch"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	var once bool
	cmd := &cobra.Command{
		Use:           "spool-watch [flags] journal.db",
		Short:         "Watch worker runs and stats flushes recorded by queue-runner",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("journal %s: %w", args[0], err)
			}
			db, err := storage.OpenSQLite(ctx, args[0])
			if err != nil {
				return err
			}
			defer db.Close()
			store := journal.New(db)

			if once {
				return printSnapshot(ctx, store, stdout)
			}
			p := tea.NewProgram(watch.New(store, args[0]))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("TUI error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "print active and recent runs and exit")
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printSnapshot(ctx context.Context, src watch.Source, w io.Writer) error {
	active, err := src.ActiveRuns(ctx)
	if err != nil {
		return err
	}
	recent, err := src.RecentRuns(ctx, 20)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tFILE\tPID\tSTARTED\tMETRICS\tBYTES")
	for _, r := range append(active, recent...) {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.0f\t%.0f\n",
			r.Status, r.Filename, r.PID, r.StartedAt.Local().Format("15:04:05"), r.Metrics, r.Bytes)
	}
	return tw.Flush()
}
