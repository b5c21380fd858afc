package flood

import (
	"bufio"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/spoolrunner/internal/protocol"
	"github.com/mattjoyce/spoolrunner/internal/spool"
)

func TestNamesMatchesPermutationOrder(t *testing.T) {
	assert.Equal(t, []string{"ab", "ac", "ba", "bc", "ca", "cb"}, slices.Collect(Names("abc", 2)))
	assert.Len(t, slices.Collect(Names("abcde", 3)), 60)
	assert.Empty(t, slices.Collect(Names("ab", 3)))
}

func TestNamesStopsEarly(t *testing.T) {
	var got []string
	for n := range Names("abcd", 2) {
		got = append(got, n)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"ab", "ac"}, got)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		out = append(out, s.Text())
	}
	require.NoError(t, s.Err())
	return out
}

func TestGenerateWritesParseableFiles(t *testing.T) {
	for _, format := range []string{FormatRepr, FormatJSON} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			sum, err := Generate(Options{
				Dir: dir, Prefix: "pn_test.prefix",
				PerLine: 3, LinesPerFile: 2, Files: 2,
				Alphabet: "abcdef", Length: 3,
				Format: format,
				Now:    time.Unix(1_700_000_000, 0),
			})
			require.NoError(t, err)
			assert.Equal(t, Summary{Files: 2, Lines: 4, Metrics: 12}, sum)

			names, err := spool.Scan(dir)
			require.NoError(t, err)
			assert.Equal(t, []string{"pn_test.prefix.0.output", "pn_test.prefix.1.output"}, names)

			lines := readLines(t, filepath.Join(dir, names[0]))
			require.Len(t, lines, 2)
			metrics, err := protocol.ParseLine(lines[0])
			require.NoError(t, err)
			require.Len(t, metrics, 3)
			assert.Equal(t, protocol.Metric{Name: "test.abc", Timestamp: 1_700_000_000, Value: 1_700_000_000}, metrics[0])
		})
	}
}

func TestGenerateStopsWhenNamesRunOut(t *testing.T) {
	dir := t.TempDir()
	// "abc" with length 2 has six names: two full lines of three.
	sum, err := Generate(Options{
		Dir: dir, PerLine: 3, LinesPerFile: 5, Files: 4,
		Alphabet: "abc", Length: 2, Format: FormatRepr,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Files)
	assert.Equal(t, 2, sum.Lines)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "temporary %s left behind", e.Name())
	}
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	_, err := Generate(Options{Dir: t.TempDir(), PerLine: 1, LinesPerFile: 1, Files: 1, Alphabet: "ab", Length: 3, Format: FormatRepr})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = Generate(Options{Dir: t.TempDir(), PerLine: 1, LinesPerFile: 1, Files: 1, Alphabet: "ab", Length: 1, Format: "xml"})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
