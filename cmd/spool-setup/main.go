// Command spool-setup creates the spool, log and runit service directories
// for one forwarding destination.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/spoolrunner/internal/setup"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	opts := setup.Options{}
	cmd := &cobra.Command{
		Use:   "spool-setup [flags] host port spool_root runit_dir log_dir owner group parallelism timeout",
		Short: "Lay out a runit-supervised queue-runner for one destination",
		Example: `  sudo spool-setup graphite.example 2004 /var/spool/carbon /etc/sv /var/log \
      carbon carbon 10 120`,
		Args:          cobra.ExactArgs(9),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			parallelism, err := strconv.Atoi(args[7])
			if err != nil {
				return fmt.Errorf("%w: parallelism %q", setup.ErrInvalidOptions, args[7])
			}
			timeout, err := strconv.Atoi(args[8])
			if err != nil {
				return fmt.Errorf("%w: timeout %q", setup.ErrInvalidOptions, args[8])
			}
			opts.Host, opts.Port = args[0], args[1]
			opts.SpoolRoot, opts.RunitDir, opts.LogDir = args[2], args[3], args[4]
			opts.Owner, opts.Group = args[5], args[6]
			opts.Parallelism, opts.Timeout = parallelism, timeout

			l, err := setup.Apply(opts, func(p string) { fmt.Fprintln(stdout, p) })
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "\nTo start this service, symlink %s into /etc/service\n", l.ServiceDir)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.RunnerPath, "runner", "/usr/local/bin/queue-runner", "queue-runner binary")
	f.StringVar(&opts.SenderPath, "sender", "/usr/local/bin/spool-sender", "worker binary")
	f.StringVar(&opts.ConfigPath, "config", "", "queue-runner configuration file")
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
