package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrUsage marks configuration problems the operator has to fix on the
// command line or in the file.
var ErrUsage = errors.New("invalid configuration")

// Load reads configuration from a YAML file on top of Defaults. An empty path
// returns the defaults untouched. When a "<path>.b3" checksum sits beside the
// file, the file must match it.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()
	if configPath == "" {
		return cfg, nil
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	// Decoding into the defaults keeps every key the file leaves out.
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML %s: %w", absPath, err)
	}

	if err := verifySidecarHash(absPath); err != nil {
		return nil, err
	}

	cfg.SourcePath = absPath
	cfg.Hash, err = ComputeBlake3Hash(absPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// Positional holds the six dispatcher arguments.
type Positional struct {
	Command     string
	Host        string
	Port        string
	SpoolDir    string
	Parallelism string
	Timeout     string // seconds, fractions allowed
}

// ParsePositional maps the dispatcher's argument vector. Exactly six
// arguments are required.
func ParsePositional(args []string) (Positional, error) {
	if len(args) != 6 {
		return Positional{}, fmt.Errorf("%w: want 6 arguments (command host port spool_dir parallelism timeout), got %d", ErrUsage, len(args))
	}
	return Positional{
		Command:     args[0],
		Host:        args[1],
		Port:        args[2],
		SpoolDir:    args[3],
		Parallelism: args[4],
		Timeout:     args[5],
	}, nil
}

// Apply overlays the positional arguments on cfg. Command-line values always
// win over the file.
func (c *Config) Apply(p Positional) error {
	parallelism, err := strconv.Atoi(strings.TrimSpace(p.Parallelism))
	if err != nil {
		return fmt.Errorf("%w: parallelism %q is not an integer", ErrUsage, p.Parallelism)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(p.Timeout), 64)
	if err != nil {
		return fmt.Errorf("%w: timeout %q is not a number of seconds", ErrUsage, p.Timeout)
	}

	c.Dispatch.Command = p.Command
	c.Dispatch.Host = p.Host
	c.Dispatch.Port = p.Port
	c.Dispatch.SpoolDir = p.SpoolDir
	c.Dispatch.Parallelism = parallelism
	c.Dispatch.Timeout = time.Duration(seconds * float64(time.Second))
	return nil
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if err := validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

func validate(cfg *Config) error {
	d := cfg.Dispatch
	if d.Command == "" {
		return fmt.Errorf("dispatch.command is required")
	}
	if d.Host == "" || d.Port == "" {
		return fmt.Errorf("dispatch.host and dispatch.port are required")
	}
	if d.SpoolDir == "" {
		return fmt.Errorf("dispatch.spool_dir is required")
	}
	if d.Parallelism < 1 {
		return fmt.Errorf("dispatch.parallelism must be at least 1 (got %d)", d.Parallelism)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("dispatch.timeout must be positive")
	}
	if d.SleepInterval <= 0 {
		return fmt.Errorf("dispatch.sleep_interval must be positive")
	}

	if cfg.Stats.Interval <= 0 {
		return fmt.Errorf("stats.interval must be positive")
	}
	if envVarPattern.MatchString(cfg.Stats.Relay) {
		matches := envVarPattern.FindStringSubmatch(cfg.Stats.Relay)
		return fmt.Errorf("stats.relay: environment variable ${%s} is not set", matches[1])
	}

	if cfg.Journal.Retention < 0 {
		return fmt.Errorf("journal.retention must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if f := cfg.Service.LogFormat; f != "json" && f != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", f)
	}

	// The lock must sit outside the spool or the scanner would hand it to a worker.
	if filepath.Dir(absolute(cfg.LockPath())) == absolute(d.SpoolDir) {
		return fmt.Errorf("service.lock_path must not be inside the spool directory")
	}
	return nil
}

func absolute(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
