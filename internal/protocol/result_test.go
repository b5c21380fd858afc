package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult(t *testing.T) {
	rec, ok, err := ParseResult([]byte("4.00,200.00,0.500000"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ResultRecord{Metrics: 4, Bytes: 200, Seconds: 0.5}, rec)
}

func TestParseResultEmptyMeansNoData(t *testing.T) {
	for _, in := range []string{"", "  ", "\n"} {
		_, ok, err := ParseResult([]byte(in))
		assert.NoError(t, err, "input %q", in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestParseResultMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"two fields", "1.00,2.00"},
		{"four fields", "1,2,3,4"},
		{"not a number", "a,2,3"},
		{"negative", "-1.00,2.00,3.0"},
		{"nan", "NaN,2,3"},
		{"inf", "1,+Inf,3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := ParseResult([]byte(tt.in))
			assert.False(t, ok)
			assert.True(t, errors.Is(err, ErrMalformedResult), "got %v", err)
		})
	}
}

func TestFormatResultFitsChannel(t *testing.T) {
	rec := ResultRecord{Metrics: 1e12, Bytes: 1e15, Seconds: 123456.123456}
	s := FormatResult(rec)
	assert.LessOrEqual(t, len(s), MaxResultSize)

	back, ok, err := ParseResult([]byte(s))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, rec.Seconds, back.Seconds, 1e-6)
	assert.Equal(t, "2.00,3.50,0.250000", FormatResult(ResultRecord{Metrics: 2, Bytes: 3.5, Seconds: 0.25}))
}
