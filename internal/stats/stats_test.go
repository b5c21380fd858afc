package stats

import (
	"bytes"
	"errors"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/spoolrunner/internal/protocol"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestFoldIsAdditive(t *testing.T) {
	total := Totals{}.
		Fold(protocol.ResultRecord{Metrics: 2, Bytes: 100, Seconds: 1.0}).
		Fold(protocol.ResultRecord{Metrics: 3, Bytes: 50, Seconds: 0.5})
	assert.Equal(t, Totals{Metrics: 5, Bytes: 150, Seconds: 1.5}, total)
}

func TestRatesGuardZeroTime(t *testing.T) {
	assert.Equal(t, Rates{}, Totals{Metrics: 10, Bytes: 500}.Rates())
	assert.Equal(t, Rates{MetricsPerSec: 5, BytesPerSec: 250}, Totals{Metrics: 10, Bytes: 500, Seconds: 2}.Rates())
}

func TestMaybeFlushTiming(t *testing.T) {
	last := time.Unix(1_700_000_000, 0)
	total := Totals{Metrics: 1, Bytes: 2, Seconds: 3}

	due, got, gotLast := MaybeFlush(total, last, 60*time.Second, last.Add(59*time.Second))
	assert.False(t, due)
	assert.Equal(t, total, got)
	assert.Equal(t, last, gotLast)

	now := last.Add(60 * time.Second)
	due, got, gotLast = MaybeFlush(total, last, 60*time.Second, now)
	assert.True(t, due)
	assert.True(t, got.IsZero())
	assert.Equal(t, now, gotLast)
}

type fakeRelay struct {
	lines [][]string
	err   error
}

func (f *fakeRelay) Send(lines []string) error {
	f.lines = append(f.lines, lines)
	return f.err
}

func TestAggregatorTickEmitsAndResets(t *testing.T) {
	logger, buf := newTestLogger()
	relay := &fakeRelay{}
	start := time.Unix(1_700_000_000, 0)
	agg := NewAggregator(time.Minute, "carbon.agents.h.sender.d_1", relay, logger, start)

	agg.Add(Totals{Metrics: 4, Bytes: 200, Seconds: 0.5})

	_, flushed := agg.Tick(start.Add(30 * time.Second))
	assert.False(t, flushed)
	assert.Empty(t, relay.lines)

	now := start.Add(time.Minute)
	f, flushed := agg.Tick(now)
	require.True(t, flushed)
	assert.Equal(t, Totals{Metrics: 4, Bytes: 200, Seconds: 0.5}, f.Totals)
	assert.Equal(t, Rates{MetricsPerSec: 8, BytesPerSec: 400}, f.Rates)
	assert.True(t, agg.Total().IsZero())

	require.Len(t, relay.lines, 1)
	assert.Equal(t, []string{
		"carbon.agents.h.sender.d_1.metric_count 4 1700000060\n",
		"carbon.agents.h.sender.d_1.bytes_count 200 1700000060\n",
		"carbon.agents.h.sender.d_1.time 0.5 1700000060\n",
	}, relay.lines[0])
	assert.Contains(t, buf.String(), `"msg":"stats flush"`)

	// next interval is measured from the flush
	_, flushed = agg.Tick(now.Add(59 * time.Second))
	assert.False(t, flushed)
}

func TestAggregatorRelayFailureIsLogged(t *testing.T) {
	logger, buf := newTestLogger()
	relay := &fakeRelay{err: errors.New("network down")}
	start := time.Unix(0, 0)
	agg := NewAggregator(time.Second, "p", relay, logger, start)

	_, flushed := agg.Tick(start.Add(time.Second))
	assert.True(t, flushed)
	assert.Contains(t, buf.String(), "stats relay send failed")
}

func TestAggregatorWithoutRelay(t *testing.T) {
	logger, _ := newTestLogger()
	start := time.Unix(0, 0)
	agg := NewAggregator(time.Second, "p", nil, logger, start)
	f, flushed := agg.Tick(start.Add(2 * time.Second))
	assert.True(t, flushed)
	assert.Equal(t, Rates{}, f.Rates)
}

func TestPrefix(t *testing.T) {
	assert.Equal(t,
		"carbon.agents.web01_example_com-a.sender.ec2-54-235-34-178_compute-1_amazonaws_com_2004",
		Prefix("carbon.agents", "web01.example.com", "a", "ec2-54-235-34-178.compute-1.amazonaws.com", "2004"))
	assert.Equal(t, "h.sender.127_0_0_1_1111", Prefix("", "h", "", "127.0.0.1", "1111"))
	assert.Equal(t, "x.unknown.sender.d", Prefix("x.", "", "", "d", ""))
}

func TestUDPRelaySendsOneDatagramPerLine(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	relay, err := DialUDP(pc.LocalAddr().String())
	require.NoError(t, err)
	defer relay.Close()

	lines := Lines("p", Totals{Metrics: 1, Bytes: 2, Seconds: 0.25}, time.Unix(42, 0))
	require.NoError(t, relay.Send(lines))

	var got []string
	buf := make([]byte, 512)
	for range lines {
		require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := pc.ReadFrom(buf)
		require.NoError(t, err)
		got = append(got, string(buf[:n]))
	}
	assert.Equal(t, "p.metric_count 1 42\np.bytes_count 2 42\np.time 0.25 42\n", strings.Join(got, ""))
}
