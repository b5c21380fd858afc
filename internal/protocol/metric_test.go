package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinePythonLiteral(t *testing.T) {
	line := `[('test.abcdef', (1374043609.0, 1374043609.0)), ("test.b", (1374043609L, -2.5e1))]`
	got, err := ParseLine(line)
	require.NoError(t, err)
	assert.Equal(t, []Metric{
		{Name: "test.abcdef", Timestamp: 1374043609, Value: 1374043609},
		{Name: "test.b", Timestamp: 1374043609, Value: -25},
	}, got)
}

func TestParseLineJSONPairs(t *testing.T) {
	got, err := ParseLine(`[["a.b", [1700000000, 1.5]]]`)
	require.NoError(t, err)
	assert.Equal(t, []Metric{{Name: "a.b", Timestamp: 1700000000, Value: 1.5}}, got)
}

func TestParseLineJSONObjectsAndBatch(t *testing.T) {
	got, err := ParseLine(`[{"name": "x", "timestamp": 10, "value": 2}]`)
	require.NoError(t, err)
	assert.Equal(t, []Metric{{Name: "x", Timestamp: 10, Value: 2}}, got)

	got, err = ParseLine(`{"version": 1, "metrics": [{"name": "y", "timestamp": 1, "value": 0}]}`)
	require.NoError(t, err)
	assert.Equal(t, []Metric{{Name: "y", Timestamp: 1, Value: 0}}, got)
}

func TestParseLineBlank(t *testing.T) {
	got, err := ParseLine("   \n")
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseLineMalformed(t *testing.T) {
	for _, line := range []string{
		`[('a', (1.0,))]`,
		`[('a', (1.0, 2.0))`,
		`{'a': 1}`,
		`42`,
		`[("a", ("x", 1))]`,
		`{"version": 2, "metrics": []}`,
		`[["a", [1, Infinity]]]`,
	} {
		_, err := ParseLine(line)
		assert.True(t, errors.Is(err, ErrMalformedLine), "line %q: got %v", line, err)
	}
}
