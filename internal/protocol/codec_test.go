package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	ogórek "github.com/kisielk/og-rek"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrameLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteFrame(&buf, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, uint32(5), binary.BigEndian.Uint32(buf.Bytes()[:4]))
	assert.Equal(t, "hello", buf.String()[4:])
}

func TestReadFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteFrame(&buf, []byte("one"))
	require.NoError(t, err)
	_, err = WriteFrame(&buf, []byte{})
	require.NoError(t, err)

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "one", string(first))

	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestReadFrameRejectsOversize(t *testing.T) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], MaxFrameSize+1)
	_, err := ReadFrame(bytes.NewReader(hdr[:]))
	assert.True(t, errors.Is(err, ErrFrameTooLarge))
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c, err := CodecFor("json")
	require.NoError(t, err)

	metrics := []Metric{{Name: "a.b", Timestamp: 1700000000, Value: 3.25}}
	payload, err := c.Encode(metrics)
	require.NoError(t, err)

	b, err := DecodeBatch(payload)
	require.NoError(t, err)
	assert.Equal(t, Version, b.Version)
	assert.Equal(t, metrics, b.Metrics)
}

func TestDecodeBatchRejectsOtherVersions(t *testing.T) {
	_, err := DecodeBatch([]byte(`{"version": 7, "metrics": []}`))
	assert.Error(t, err)
	_, err = DecodeBatch([]byte(`{"version": 1, "metrics": [], "extra": true}`))
	assert.Error(t, err)
}

func decodePickle(t *testing.T, payload []byte) []interface{} {
	t.Helper()
	require.True(t, bytes.HasPrefix(payload, []byte{0x80, 0x02}), "want a protocol 2 header, got % x", payload[:2])
	v, err := ogórek.NewDecoder(bytes.NewReader(payload)).Decode()
	require.NoError(t, err)
	list, ok := v.([]interface{})
	require.True(t, ok, "want a list, got %T", v)
	return list
}

func TestPickleCodecEmpty(t *testing.T) {
	c, err := CodecFor("pickle")
	require.NoError(t, err)
	payload, err := c.Encode(nil)
	require.NoError(t, err)
	assert.Empty(t, decodePickle(t, payload))
}

func TestPickleCodecListOfTuples(t *testing.T) {
	c, err := CodecFor("pickle")
	require.NoError(t, err)
	payload, err := c.Encode([]Metric{
		{Name: "a.b", Timestamp: 1374043609, Value: 1.5},
		{Name: "c", Timestamp: 2, Value: -3},
	})
	require.NoError(t, err)

	want := []interface{}{
		ogórek.Tuple{"a.b", ogórek.Tuple{1374043609.0, 1.5}},
		ogórek.Tuple{"c", ogórek.Tuple{2.0, -3.0}},
	}
	assert.Equal(t, want, decodePickle(t, payload))
}

func TestCodecForUnknown(t *testing.T) {
	_, err := CodecFor("msgpack")
	assert.Error(t, err)
	assert.Equal(t, []string{"json", "pickle"}, CodecNames())
}
