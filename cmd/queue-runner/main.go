// Command queue-runner drains a spool directory by handing each file to a
// worker process, at most parallelism at a time.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/spoolrunner/internal/config"
	"github.com/mattjoyce/spoolrunner/internal/dispatch"
	"github.com/mattjoyce/spoolrunner/internal/doctor"
	"github.com/mattjoyce/spoolrunner/internal/journal"
	"github.com/mattjoyce/spoolrunner/internal/lock"
	"github.com/mattjoyce/spoolrunner/internal/log"
	"github.com/mattjoyce/spoolrunner/internal/spool"
	"github.com/mattjoyce/spoolrunner/internal/stats"
	"github.com/mattjoyce/spoolrunner/internal/storage"
)

var version = "0.1.0-dev"

type runOptions struct {
	configPath    string
	relay         string
	instance      string
	statsInterval time.Duration
	journalPath   string
	lockPath      string
	logLevel      string
	logFormat     string
	noWatch       bool
	check         string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command and maps the outcome to an exit status: 0 on a
// clean stop, 2 on a usage error, 1 otherwise.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts runOptions
	cmd := newRootCmd(&opts, stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, config.ErrUsage):
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, cmd.UsageString())
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func newRootCmd(opts *runOptions, logOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue-runner [flags] command host port spool_dir parallelism timeout",
		Short: "Dispatch spooled metric files to worker processes",
		Long: `queue-runner watches spool_dir and runs "command host port file" for each
file it finds, keeping at most parallelism workers alive. Workers older than
timeout seconds are killed. Each worker reports metrics,bytes,seconds on
descriptor 0; the totals are logged and relayed every stats interval.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			_, err := config.ParsePositional(args)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args, logOut)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", config.ErrUsage, err)
	})

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	f.StringVar(&opts.relay, "relay", "", "UDP host:port receiving telemetry lines")
	f.StringVar(&opts.instance, "instance", "", "instance label added to the telemetry prefix")
	f.DurationVar(&opts.statsInterval, "stats-interval", 0, "stats flush interval (default from config, 60s)")
	f.StringVar(&opts.journalPath, "journal", "", "SQLite run journal path")
	f.StringVar(&opts.lockPath, "lock", "", "lock file path (default {spool_dir}.lock)")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", "", "json or text")
	f.BoolVar(&opts.noWatch, "no-watch", false, "poll only, do not watch the spool with inotify")
	f.StringVar(&opts.check, "check", "", "check the configuration and spool, print a report (text or json) and exit")
	f.Lookup("check").NoOptDefVal = "text"
	return cmd
}

// applyFlags overlays flags the operator actually set.
func applyFlags(cfg *config.Config, opts *runOptions, cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("relay") {
		cfg.Stats.Relay = opts.relay
	}
	if f.Changed("instance") {
		cfg.Stats.Instance = opts.instance
	}
	if f.Changed("stats-interval") {
		cfg.Stats.Interval = opts.statsInterval
	}
	if f.Changed("journal") {
		cfg.Journal.Path = opts.journalPath
	}
	if f.Changed("lock") {
		cfg.Service.LockPath = opts.lockPath
	}
	if f.Changed("log-level") {
		cfg.Service.LogLevel = opts.logLevel
	}
	if f.Changed("log-format") {
		cfg.Service.LogFormat = opts.logFormat
	}
	if opts.noWatch {
		cfg.Dispatch.Watch = false
	}
}

func loadConfig(cmd *cobra.Command, opts *runOptions, args []string) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrUsage, err)
	}
	positional, err := config.ParsePositional(args)
	if err != nil {
		return nil, err
	}
	if err := cfg.Apply(positional); err != nil {
		return nil, err
	}
	applyFlags(cfg, opts, cmd)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	info, err := os.Stat(cfg.Dispatch.SpoolDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: spool directory %s is not a directory", config.ErrUsage, cfg.Dispatch.SpoolDir)
	}
	return cfg, nil
}

// workerOutput is where worker stdout/stderr go. Children inherit a real
// descriptor; any other writer would need a copying goroutine per worker.
func workerOutput(logOut io.Writer) *os.File {
	if f, ok := logOut.(*os.File); ok {
		return f
	}
	return os.Stdout
}

// errNotReady reports a failed --check without repeating the report.
var errNotReady = errors.New("spool is not ready")

func check(out io.Writer, cfg *config.Config, format string) error {
	r := doctor.New(cfg).Validate()
	switch format {
	case "json":
		report, err := doctor.FormatJSON(r)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, report)
	case "text":
		fmt.Fprint(out, doctor.FormatHuman(r))
	default:
		return fmt.Errorf("%w: --check must be text or json, got %q", config.ErrUsage, format)
	}
	if !r.Valid {
		return errNotReady
	}
	return nil
}

func run(cmd *cobra.Command, opts *runOptions, args []string, logOut io.Writer) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd, opts, args)
	if err != nil {
		return err
	}

	if opts.check != "" {
		return check(cmd.OutOrStdout(), cfg, opts.check)
	}

	log.SetupWriter(logOut, cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("queue-runner starting",
		"version", version,
		"config", cfg.SourcePath,
		"config_hash", cfg.Hash,
	)

	if fsType, network, err := storage.NetworkFilesystem(cfg.Dispatch.SpoolDir); err != nil {
		logger.Debug("could not inspect spool filesystem", "error", err)
	} else if network && cfg.Dispatch.Watch {
		logger.Warn("spool is on a network filesystem, falling back to polling", "fs_type", fsType)
		cfg.Dispatch.Watch = false
	}

	spoolLock, err := lock.Acquire(cfg.LockPath())
	if err != nil {
		logger.Error("failed to acquire spool lock (another queue-runner may own this spool)", "path", cfg.LockPath(), "error", err)
		return err
	}
	defer spoolLock.Release()
	logger.Info("acquired spool lock", "path", spoolLock.Path())

	var relay stats.Relay
	if cfg.Stats.Relay != "" {
		udp, err := stats.DialUDP(cfg.Stats.Relay)
		if err != nil {
			return err
		}
		defer udp.Close()
		relay = udp
		logger.Info("stats relay enabled", "addr", udp.Addr())
	}

	hostname, _ := os.Hostname()
	prefix := stats.Prefix(cfg.Stats.PrefixRoot, hostname, cfg.Stats.Instance, cfg.Dispatch.Host, cfg.Dispatch.Port)
	agg := stats.NewAggregator(cfg.Stats.Interval, prefix, relay, log.WithComponent("stats"), time.Now())

	d := dispatch.New(dispatch.Options{
		Command:          cfg.Dispatch.Command,
		Host:             cfg.Dispatch.Host,
		Port:             cfg.Dispatch.Port,
		SpoolDir:         cfg.Dispatch.SpoolDir,
		Parallelism:      cfg.Dispatch.Parallelism,
		Timeout:          cfg.Dispatch.Timeout,
		SleepInterval:    cfg.Dispatch.SleepInterval,
		WorkerOutput:     workerOutput(logOut),
		JournalRetention: cfg.Journal.Retention,
	}, agg, log.Get())

	if cfg.Journal.Path != "" {
		db, err := storage.OpenSQLite(ctx, cfg.Journal.Path)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
			return err
		}
		defer db.Close()
		d.SetJournal(journal.New(db))
		logger.Info("journal opened", "path", cfg.Journal.Path)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Dispatch.Watch {
		w, err := spool.NewWatcher(cfg.Dispatch.SpoolDir, log.WithComponent("spool"))
		if err != nil {
			logger.Warn("spool watcher unavailable, polling only", "error", err)
		} else {
			d.SetWake(w.Wake())
			g.Go(func() error { return w.Run(gctx) })
		}
	}
	g.Go(func() error { return d.Run(gctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		logger.Error("queue-runner failed", "error", err)
		return err
	}
	logger.Info("queue-runner stopped")
	return nil
}
