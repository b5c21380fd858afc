// Command spool-sender is the stock worker for queue-runner: it sends one
// spool file to host:port and reports metrics,bytes,seconds on descriptor 0.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/spoolrunner/internal/backoff"
	"github.com/mattjoyce/spoolrunner/internal/log"
	"github.com/mattjoyce/spoolrunner/internal/protocol"
	"github.com/mattjoyce/spoolrunner/internal/sender"
)

type sendOptions struct {
	transport   string
	codec       string
	netcat      string
	dialTimeout time.Duration
	maxAttempts int
	logLevel    string
	logFormat   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute sends the file and returns the worker exit status. result is
// where the result record goes; queue-runner passes the pipe as fd 0.
func execute(ctx context.Context, args []string, result io.Writer, stdout, stderr io.Writer) int {
	var opts sendOptions
	code := protocol.ExitOK

	cmd := &cobra.Command{
		Use:           "spool-sender [flags] host port file",
		Short:         "Send one spool file to a carbon receiver",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("%w: want host port file, got %d arguments", sender.ErrUsage, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			code, err = send(cmd.Context(), opts, args, result, stdout)
			return err
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", sender.ErrUsage, err)
	})
	f := cmd.Flags()
	f.StringVar(&opts.transport, "transport", "tcp", "tcp or nc")
	f.StringVar(&opts.codec, "codec", "json", "frame payload codec: "+strings.Join(protocol.CodecNames(), ", "))
	f.StringVar(&opts.netcat, "netcat", "nc", "netcat binary for --transport nc")
	f.DurationVar(&opts.dialTimeout, "dial-timeout", sender.DefaultDialTimeout, "per-attempt connect timeout")
	f.IntVar(&opts.maxAttempts, "max-attempts", backoff.DefaultMaxAttempts, "connection refused retry budget")
	f.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", "json", "json or text")

	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, sender.ErrUsage) {
			fmt.Fprintf(stderr, "Error: %v\n\n%s", err, cmd.UsageString())
			return protocol.ExitUsage
		}
		if code == protocol.ExitOK {
			code = protocol.ExitFatal
		}
	}
	return code
}

func send(ctx context.Context, opts sendOptions, args []string, result io.Writer, logOut io.Writer) (int, error) {
	log.SetupWriter(logOut, opts.logLevel, opts.logFormat)
	logger := log.WithFile(args[2])

	codec, err := protocol.CodecFor(opts.codec)
	if err != nil {
		return protocol.ExitUsage, fmt.Errorf("%w: %v", sender.ErrUsage, err)
	}
	transport, err := sender.TransportFor(opts.transport, opts.dialTimeout, opts.netcat)
	if err != nil {
		return protocol.ExitUsage, err
	}
	policy := backoff.Default()
	policy.MaxAttempts = opts.maxAttempts

	rep, err := sender.Send(ctx, sender.Options{
		Host:      args[0],
		Port:      args[1],
		Path:      args[2],
		Transport: transport,
		Codec:     codec,
		Backoff:   policy,
		Logger:    logger,
	})
	code := sender.ExitCode(err)
	switch {
	case err == nil:
		sender.WriteResult(result, rep, logger)
		return code, nil
	case code == protocol.ExitNoData:
		logger.Debug("nothing to send")
		return code, nil
	default:
		logger.Error("send failed, file left in spool", "error", err)
		return code, err
	}
}
