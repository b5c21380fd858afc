package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxResultSize is the most the dispatcher reads from a worker's result channel.
const MaxResultSize = 128

// ErrMalformedResult is returned for a non-empty result record that cannot be parsed.
var ErrMalformedResult = errors.New("malformed result record")

// ResultRecord is what a worker reports on its result channel before exiting.
type ResultRecord struct {
	Metrics float64 // metric_count
	Bytes   float64 // byte_count
	Seconds float64 // time_taken
}

// FormatResult renders r in the fixed "metrics,bytes,seconds" form workers write to fd 0.
func FormatResult(r ResultRecord) string {
	return fmt.Sprintf("%.2f,%.2f,%.6f", r.Metrics, r.Bytes, r.Seconds)
}

// ParseResult decodes a result record read from a worker's result channel.
// An empty (or whitespace-only) buffer means the worker had nothing to
// report and yields ok=false with a nil error.
func ParseResult(b []byte) (rec ResultRecord, ok bool, err error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return ResultRecord{}, false, nil
	}

	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return ResultRecord{}, false, fmt.Errorf("%w: want 3 fields, got %d in %q", ErrMalformedResult, len(fields), s)
	}

	var vals [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return ResultRecord{}, false, fmt.Errorf("%w: field %d: %v", ErrMalformedResult, i, err)
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ResultRecord{}, false, fmt.Errorf("%w: field %d out of range: %v", ErrMalformedResult, i, v)
		}
		vals[i] = v
	}

	return ResultRecord{Metrics: vals[0], Bytes: vals[1], Seconds: vals[2]}, true, nil
}
