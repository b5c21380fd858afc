package config

import "time"

// Config represents the complete queue-runner configuration.
type Config struct {
	Dispatch DispatchConfig `yaml:"dispatch"`
	Stats    StatsConfig    `yaml:"stats"`
	Journal  JournalConfig  `yaml:"journal"`
	Service  ServiceConfig  `yaml:"service"`

	// SourcePath and Hash describe the file the config was loaded from. Both
	// are empty when running on defaults.
	SourcePath string `yaml:"-"`
	Hash       string `yaml:"-"`
}

// DispatchConfig defines the scheduling loop.
type DispatchConfig struct {
	Command       string        `yaml:"command"`
	Host          string        `yaml:"host"`
	Port          string        `yaml:"port"`
	SpoolDir      string        `yaml:"spool_dir"`
	Parallelism   int           `yaml:"parallelism"`
	Timeout       time.Duration `yaml:"timeout"`
	SleepInterval time.Duration `yaml:"sleep_interval"`
	Watch         bool          `yaml:"watch"`
}

// StatsConfig defines aggregate telemetry.
type StatsConfig struct {
	Interval   time.Duration `yaml:"interval"`
	Relay      string        `yaml:"relay"` // host:port of the UDP relay, empty disables
	PrefixRoot string        `yaml:"prefix_root"`
	Instance   string        `yaml:"instance"`
}

// JournalConfig defines the run journal.
type JournalConfig struct {
	Path      string        `yaml:"path"` // empty disables the journal
	Retention time.Duration `yaml:"retention"`
}

// ServiceConfig defines process-level settings.
type ServiceConfig struct {
	LockPath  string `yaml:"lock_path"` // defaults to {spool_dir}.lock
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns a Config with the stock settings. Dispatch target fields
// are left empty; they come from the command line.
func Defaults() *Config {
	return &Config{
		Dispatch: DispatchConfig{
			Parallelism:   1,
			Timeout:       60 * time.Second,
			SleepInterval: 100 * time.Millisecond,
			Watch:         true,
		},
		Stats: StatsConfig{
			Interval:   60 * time.Second,
			PrefixRoot: "carbon.agents",
		},
		Journal: JournalConfig{
			Retention: 7 * 24 * time.Hour,
		},
		Service: ServiceConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// LockPath returns the configured lock path or the default beside the spool.
// The default is built from the absolute spool path so "." locks as
// "../{cwd}.lock" rather than a dotfile inside the spool.
func (c *Config) LockPath() string {
	if c.Service.LockPath != "" {
		return c.Service.LockPath
	}
	return absolute(c.Dispatch.SpoolDir) + ".lock"
}
