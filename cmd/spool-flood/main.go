// Command spool-flood fills a spool directory with synthetic metric files.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/spoolrunner/internal/flood"
	"github.com/mattjoyce/spoolrunner/internal/log"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	var (
		prefix string
		format string
	)
	cmd := &cobra.Command{
		Use:           "spool-flood [flags] spool_dir count_per_line lines_per_file files alphabet name_length",
		Short:         "Write permutation-named test metrics into a spool directory",
		Args:          cobra.ExactArgs(6),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ints := make([]int, 0, 4)
			for _, i := range []int{1, 2, 3, 5} {
				n, err := strconv.Atoi(args[i])
				if err != nil {
					return fmt.Errorf("%w: argument %d (%q) is not an integer", flood.ErrInvalidOptions, i+1, args[i])
				}
				ints = append(ints, n)
			}

			log.SetupWriter(stderr, "info", "text")
			sum, err := flood.Generate(flood.Options{
				Dir:          args[0],
				Prefix:       prefix,
				PerLine:      ints[0],
				LinesPerFile: ints[1],
				Files:        ints[2],
				Alphabet:     args[4],
				Length:       ints[3],
				Format:       format,
				Logger:       log.WithComponent("flood"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %d files, %d lines, %d metrics to %s\n", sum.Files, sum.Lines, sum.Metrics, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "pn_test.prefix", "file name prefix")
	cmd.Flags().StringVar(&format, "format", flood.FormatRepr, "line format: repr or json")
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
