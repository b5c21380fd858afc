// Package setup lays out the spool, log and runit service directories for
// one forwarding destination.
package setup

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"text/template"
)

var ErrInvalidOptions = errors.New("invalid setup options")

// Options describes one destination.
type Options struct {
	Host        string
	Port        string
	SpoolRoot   string // holds temp/ and send/
	RunitDir    string // e.g. /etc/sv
	LogDir      string // e.g. /var/log
	Owner       string // user the dispatcher runs as; also owns the spool dirs
	Group       string
	Parallelism int
	Timeout     int // seconds
	RunnerPath  string
	SenderPath  string
	ConfigPath  string // optional --config for the dispatcher
}

// Layout is every path a setup run touches.
type Layout struct {
	TempDir    string
	SendDir    string
	LogDir     string
	ServiceDir string
	RunScript  string
	LogScript  string
}

// Target is the host:port label used in directory names.
func (o Options) Target() string {
	return o.Host + ":" + o.Port
}

// Plan computes the layout without touching the filesystem.
func Plan(o Options) Layout {
	service := filepath.Join(o.RunitDir, "carbon-sender-"+o.Target())
	return Layout{
		TempDir:    filepath.Join(o.SpoolRoot, "temp", o.Target()),
		SendDir:    filepath.Join(o.SpoolRoot, "send", o.Target()),
		LogDir:     filepath.Join(o.LogDir, "carbon-sender-"+o.Target()),
		ServiceDir: service,
		RunScript:  filepath.Join(service, "run"),
		LogScript:  filepath.Join(service, "log", "run"),
	}
}

func (o Options) validate() error {
	switch {
	case o.Host == "" || o.Port == "":
		return fmt.Errorf("%w: host and port are required", ErrInvalidOptions)
	case o.SpoolRoot == "" || o.RunitDir == "" || o.LogDir == "":
		return fmt.Errorf("%w: spool, runit and log directories are required", ErrInvalidOptions)
	case o.Parallelism < 1:
		return fmt.Errorf("%w: parallelism must be at least 1", ErrInvalidOptions)
	case o.Timeout < 1:
		return fmt.Errorf("%w: timeout must be at least 1 second", ErrInvalidOptions)
	case o.RunnerPath == "" || o.SenderPath == "":
		return fmt.Errorf("%w: runner and sender paths are required", ErrInvalidOptions)
	}
	return nil
}

var runTemplate = template.Must(template.New("run").Parse(`#!/bin/sh
exec 2>&1
exec {{if .Owner}}chpst -u {{.Owner}}{{if .Group}}:{{.Group}}{{end}} -- {{end}}\
    {{.RunnerPath}}{{if .ConfigPath}} --config {{.ConfigPath}}{{end}} \
    {{.SenderPath}} \
    {{.Host}} \
    {{.Port}} \
    {{.SendDir}} \
    {{.Parallelism}} \
    {{.Timeout}}
`))

var logRunTemplate = template.Must(template.New("log-run").Parse(`#!/bin/sh
exec svlogd -ttt {{.LogDir}}
`))

// RunScript renders the runit run script.
func RunScript(o Options) (string, error) {
	l := Plan(o)
	var buf bytes.Buffer
	err := runTemplate.Execute(&buf, struct {
		Options
		SendDir string
	}{o, l.SendDir})
	return buf.String(), err
}

// LogRunScript renders the runit log/run script.
func LogRunScript(o Options) (string, error) {
	var buf bytes.Buffer
	err := logRunTemplate.Execute(&buf, Plan(o))
	return buf.String(), err
}

// Apply creates the layout. created receives each path as it is made.
func Apply(o Options, created func(path string)) (Layout, error) {
	if err := o.validate(); err != nil {
		return Layout{}, err
	}
	if created == nil {
		created = func(string) {}
	}
	l := Plan(o)

	uid, gid := -1, -1
	if o.Owner != "" {
		var err error
		if uid, gid, err = lookupOwner(o.Owner, o.Group); err != nil {
			return l, err
		}
	}

	for _, dir := range []string{l.TempDir, l.SendDir} {
		if err := mkdirOwned(dir, uid, gid); err != nil {
			return l, err
		}
		created(dir)
	}
	for _, dir := range []string{
		l.LogDir,
		l.ServiceDir,
		filepath.Join(l.ServiceDir, "supervise"),
		filepath.Join(l.ServiceDir, "log"),
		filepath.Join(l.ServiceDir, "log", "supervise"),
	} {
		if err := mkdirOwned(dir, -1, -1); err != nil {
			return l, err
		}
		created(dir)
	}

	run, err := RunScript(o)
	if err != nil {
		return l, fmt.Errorf("render run script: %w", err)
	}
	logRun, err := LogRunScript(o)
	if err != nil {
		return l, fmt.Errorf("render log/run script: %w", err)
	}
	for path, body := range map[string]string{l.RunScript: run, l.LogScript: logRun} {
		if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
			return l, fmt.Errorf("write %s: %w", path, err)
		}
		// WriteFile keeps the mode of an existing file.
		if err := os.Chmod(path, 0o755); err != nil {
			return l, fmt.Errorf("chmod %s: %w", path, err)
		}
		created(path)
	}
	return l, nil
}

func mkdirOwned(dir string, uid, gid int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := os.Chmod(dir, 0o755); err != nil {
		return fmt.Errorf("chmod %s: %w", dir, err)
	}
	if uid >= 0 {
		if err := os.Chown(dir, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", dir, err)
		}
	}
	return nil
}

func lookupOwner(owner, group string) (int, int, error) {
	u, err := user.Lookup(owner)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: user %q: %v", ErrInvalidOptions, owner, err)
	}
	uid, _ := strconv.Atoi(u.Uid)
	gid, _ := strconv.Atoi(u.Gid)
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: group %q: %v", ErrInvalidOptions, group, err)
		}
		gid, _ = strconv.Atoi(g.Gid)
	}
	return uid, gid, nil
}
