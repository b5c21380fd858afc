// Package stats accumulates worker result records between flushes and emits
// the totals to the log and, optionally, to a carbon-style UDP relay.
package stats

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/spoolrunner/internal/protocol"
)

// Totals is the running sum of result records since the last flush.
type Totals struct {
	Metrics float64
	Bytes   float64
	Seconds float64
}

// Fold adds one result record to t.
func (t Totals) Fold(r protocol.ResultRecord) Totals {
	return Totals{
		Metrics: t.Metrics + r.Metrics,
		Bytes:   t.Bytes + r.Bytes,
		Seconds: t.Seconds + r.Seconds,
	}
}

// Add merges two accumulators.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Metrics: t.Metrics + o.Metrics,
		Bytes:   t.Bytes + o.Bytes,
		Seconds: t.Seconds + o.Seconds,
	}
}

// IsZero reports whether nothing has been folded in.
func (t Totals) IsZero() bool { return t == Totals{} }

// Rates is throughput derived from Totals.
type Rates struct {
	MetricsPerSec float64
	BytesPerSec   float64
}

// Rates divides by the summed worker time. Zero time yields zero rates.
func (t Totals) Rates() Rates {
	if t.Seconds <= 0 {
		return Rates{}
	}
	return Rates{
		MetricsPerSec: t.Metrics / t.Seconds,
		BytesPerSec:   t.Bytes / t.Seconds,
	}
}

// MaybeFlush decides whether a flush is due. When now-lastFlush >= interval it
// returns true with a zeroed accumulator and now as the new flush time;
// otherwise total and lastFlush pass through unchanged.
func MaybeFlush(total Totals, lastFlush time.Time, interval time.Duration, now time.Time) (bool, Totals, time.Time) {
	if now.Sub(lastFlush) < interval {
		return false, total, lastFlush
	}
	return true, Totals{}, now
}

// Flush is one emitted interval.
type Flush struct {
	At     time.Time
	Totals Totals
	Rates  Rates
}

// Relay receives the telemetry lines of each flush.
type Relay interface {
	Send(lines []string) error
}

// Aggregator owns the accumulator and flush clock for the dispatcher loop.
// It is not safe for concurrent use.
type Aggregator struct {
	interval  time.Duration
	prefix    string
	relay     Relay
	logger    *slog.Logger
	total     Totals
	lastFlush time.Time
}

// NewAggregator starts the flush clock at start. relay may be nil.
func NewAggregator(interval time.Duration, prefix string, relay Relay, logger *slog.Logger, start time.Time) *Aggregator {
	return &Aggregator{
		interval:  interval,
		prefix:    prefix,
		relay:     relay,
		logger:    logger,
		lastFlush: start,
	}
}

// Add folds a pass's reaped totals into the running accumulator.
func (a *Aggregator) Add(t Totals) {
	a.total = a.total.Add(t)
}

// Total returns the current accumulator.
func (a *Aggregator) Total() Totals { return a.total }

// Tick flushes if the interval has elapsed. A relay failure is logged and does
// not keep the totals; the next interval starts from zero either way.
func (a *Aggregator) Tick(now time.Time) (Flush, bool) {
	due, reset, at := MaybeFlush(a.total, a.lastFlush, a.interval, now)
	if !due {
		return Flush{}, false
	}

	f := Flush{At: now, Totals: a.total, Rates: a.total.Rates()}
	a.total = reset
	a.lastFlush = at

	a.logger.Info("stats flush",
		"metric_count", f.Totals.Metrics,
		"bytes_count", f.Totals.Bytes,
		"time", f.Totals.Seconds,
		"metrics_per_sec", f.Rates.MetricsPerSec,
		"bytes_per_sec", f.Rates.BytesPerSec,
	)

	if a.relay != nil {
		if err := a.relay.Send(Lines(a.prefix, f.Totals, now)); err != nil {
			a.logger.Warn("stats relay send failed", "error", err)
		}
	}
	return f, true
}

// Lines renders the three telemetry datagrams for one flush.
func Lines(prefix string, t Totals, now time.Time) []string {
	ts := now.Unix()
	return []string{
		line(prefix, "metric_count", t.Metrics, ts),
		line(prefix, "bytes_count", t.Bytes, ts),
		line(prefix, "time", t.Seconds, ts),
	}
}

func line(prefix, name string, v float64, ts int64) string {
	return prefix + "." + name + " " + strconv.FormatFloat(v, 'f', -1, 64) + " " + strconv.FormatInt(ts, 10) + "\n"
}

// Prefix builds "{root}.{host}[-{instance}].sender.{destHost}_{destPort}".
// Dots and colons inside the host and destination become underscores so each
// stays a single path segment.
func Prefix(root, host, instance, destHost, destPort string) string {
	agent := segment(host)
	if instance != "" {
		agent += "-" + segment(instance)
	}
	dest := segment(destHost)
	if destPort != "" {
		dest += "_" + segment(destPort)
	}
	parts := []string{agent, "sender", dest}
	if root != "" {
		parts = append([]string{strings.Trim(root, ".")}, parts...)
	}
	return strings.Join(parts, ".")
}

var segmentReplacer = strings.NewReplacer(".", "_", ":", "_", " ", "_")

func segment(s string) string {
	if s == "" {
		return "unknown"
	}
	return segmentReplacer.Replace(s)
}
