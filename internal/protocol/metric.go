package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedLine is returned when a spool line cannot be turned into metrics.
var ErrMalformedLine = errors.New("malformed spool line")

// Metric is one datapoint as carried on the wire.
type Metric struct {
	Name      string  `json:"name"`
	Timestamp float64 `json:"timestamp"`
	Value     float64 `json:"value"`
}

// ParseLine decodes one spool line. Three shapes are accepted:
//
//	[('a.b', (1374043609.0, 1.5)), ...]                 python literal
//	[["a.b", [1374043609, 1.5]], ...]                   JSON pairs
//	[{"name": "a.b", "timestamp": 1, "value": 1.5}]     JSON objects
//
// A versioned batch object ({"version":1,"metrics":[...]}) is accepted too.
// Blank lines return no metrics and no error.
func ParseLine(line string) ([]Metric, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	var doc any
	if err := json.Unmarshal([]byte(line), &doc); err != nil {
		doc, err = parseLiteral(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
		}
	}

	if obj, ok := doc.(map[string]any); ok {
		if v, ok := obj["version"].(float64); ok && int(v) != Version {
			return nil, fmt.Errorf("%w: unsupported batch version %v", ErrMalformedLine, v)
		}
		inner, ok := obj["metrics"]
		if !ok {
			return nil, fmt.Errorf("%w: object without metrics", ErrMalformedLine)
		}
		doc = inner
	}

	items, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is %T, want list", ErrMalformedLine, doc)
	}

	out := make([]Metric, 0, len(items))
	for i, item := range items {
		m, err := toMetric(item)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrMalformedLine, i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func toMetric(item any) (Metric, error) {
	switch v := item.(type) {
	case map[string]any:
		name, _ := v["name"].(string)
		ts, tsOK := v["timestamp"].(float64)
		val, valOK := v["value"].(float64)
		if name == "" || !tsOK || !valOK {
			return Metric{}, fmt.Errorf("object needs name, timestamp and value")
		}
		return checkMetric(Metric{Name: name, Timestamp: ts, Value: val})
	case []any:
		if len(v) != 2 {
			return Metric{}, fmt.Errorf("pair has %d elements", len(v))
		}
		name, ok := v[0].(string)
		if !ok || name == "" {
			return Metric{}, fmt.Errorf("metric name is %T", v[0])
		}
		point, ok := v[1].([]any)
		if !ok || len(point) != 2 {
			return Metric{}, fmt.Errorf("datapoint for %q is not a (timestamp, value) pair", name)
		}
		ts, tsOK := point[0].(float64)
		val, valOK := point[1].(float64)
		if !tsOK || !valOK {
			return Metric{}, fmt.Errorf("datapoint for %q is not numeric", name)
		}
		return checkMetric(Metric{Name: name, Timestamp: ts, Value: val})
	default:
		return Metric{}, fmt.Errorf("unexpected %T", item)
	}
}

func checkMetric(m Metric) (Metric, error) {
	for _, f := range []float64{m.Timestamp, m.Value} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Metric{}, fmt.Errorf("non-finite datapoint for %q", m.Name)
		}
	}
	return m, nil
}
