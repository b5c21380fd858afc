// Package flood fills a spool directory with synthetic metric files for load
// testing a dispatcher.
package flood

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Line formats.
const (
	FormatRepr = "repr"
	FormatJSON = "json"
)

var ErrInvalidOptions = errors.New("invalid flood options")

// Options describes one flood run.
type Options struct {
	Dir          string
	Prefix       string // file names are {Prefix}.{n}.output
	PerLine      int
	LinesPerFile int
	Files        int
	Alphabet     string
	Length       int // characters per generated name
	Format       string
	Now          time.Time // timestamp and value of every datapoint
	Logger       *slog.Logger
}

// Summary counts what was written.
type Summary struct {
	Files   int
	Lines   int
	Metrics int
}

// Names yields the k-permutations of alphabet in index order.
func Names(alphabet string, k int) iter.Seq[string] {
	runes := []rune(alphabet)
	return func(yield func(string) bool) {
		if k <= 0 || k > len(runes) {
			return
		}
		used := make([]bool, len(runes))
		buf := make([]rune, 0, k)
		var walk func() bool
		walk = func() bool {
			if len(buf) == k {
				return yield(string(buf))
			}
			for i, r := range runes {
				if used[i] {
					continue
				}
				used[i] = true
				buf = append(buf, r)
				ok := walk()
				buf = buf[:len(buf)-1]
				used[i] = false
				if !ok {
					return false
				}
			}
			return true
		}
		walk()
	}
}

func (o Options) validate() error {
	switch {
	case o.Dir == "":
		return fmt.Errorf("%w: directory is required", ErrInvalidOptions)
	case o.PerLine < 1 || o.LinesPerFile < 1 || o.Files < 1:
		return fmt.Errorf("%w: counts must be positive", ErrInvalidOptions)
	case o.Length < 1 || o.Length > len([]rune(o.Alphabet)):
		return fmt.Errorf("%w: length %d does not fit alphabet %q", ErrInvalidOptions, o.Length, o.Alphabet)
	case o.Format != FormatRepr && o.Format != FormatJSON:
		return fmt.Errorf("%w: format must be %s or %s", ErrInvalidOptions, FormatRepr, FormatJSON)
	}
	return nil
}

// Generate writes the files. Each file is written under a dot-prefixed name
// and renamed into place so a scanner never sees it half written. When the
// name permutations run out the partial line is dropped and generation stops.
func Generate(opts Options) (Summary, error) {
	var sum Summary
	if opts.Prefix == "" {
		opts.Prefix = "flood"
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := opts.validate(); err != nil {
		return sum, err
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return sum, fmt.Errorf("create %s: %w", opts.Dir, err)
	}

	ts := float64(opts.Now.UnixNano()) / 1e9
	next, stop := iter.Pull(Names(opts.Alphabet, opts.Length))
	defer stop()

	for n := range opts.Files {
		name := fmt.Sprintf("%s.%d.output", opts.Prefix, n)
		lines, exhausted, err := writeFile(opts, name, ts, next)
		if err != nil {
			return sum, err
		}
		sum.Files++
		sum.Lines += lines
		sum.Metrics += lines * opts.PerLine
		opts.Logger.Debug("flood file written", "file", name, "lines", lines)
		if exhausted {
			opts.Logger.Info("name permutations exhausted", "files", sum.Files)
			break
		}
	}
	return sum, nil
}

func writeFile(opts Options, name string, ts float64, next func() (string, bool)) (lines int, exhausted bool, err error) {
	tmp := filepath.Join(opts.Dir, "."+name+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return 0, false, fmt.Errorf("create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(f)
	names := make([]string, 0, opts.PerLine)
	for range opts.LinesPerFile {
		names = names[:0]
		for range opts.PerLine {
			s, ok := next()
			if !ok {
				exhausted = true
				break
			}
			names = append(names, "test."+s)
		}
		if exhausted {
			break
		}
		line, err := formatLine(opts.Format, names, ts)
		if err != nil {
			return lines, false, err
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			return lines, false, fmt.Errorf("write %s: %w", tmp, err)
		}
		lines++
	}

	if err := w.Flush(); err != nil {
		return lines, false, fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return lines, false, fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, filepath.Join(opts.Dir, name)); err != nil {
		return lines, false, fmt.Errorf("publish %s: %w", name, err)
	}
	return lines, exhausted, nil
}

func formatLine(format string, names []string, ts float64) (string, error) {
	if format == FormatJSON {
		pairs := make([][2]any, len(names))
		for i, n := range names {
			pairs[i] = [2]any{n, [2]float64{ts, ts}}
		}
		b, err := json.Marshal(pairs)
		return string(b), err
	}

	v := reprFloat(ts)
	var b strings.Builder
	b.WriteByte('[')
	for i, n := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "('%s', (%s, %s))", n, v, v)
	}
	b.WriteByte(']')
	return b.String(), nil
}

func reprFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
