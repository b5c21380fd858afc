package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

// Version is the schema version stamped on JSON batches.
const Version = 1

// MaxFrameSize bounds a single frame read back by ReadFrame.
const MaxFrameSize = 64 << 20

// ErrFrameTooLarge is returned when a payload does not fit the frame header or MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame too large")

// Batch is the versioned JSON payload carried by one frame.
type Batch struct {
	Version int      `json:"version"`
	Metrics []Metric `json:"metrics"`
}

// Codec serializes a batch of metrics into one frame payload.
type Codec interface {
	Name() string
	Encode(metrics []Metric) ([]byte, error)
}

var codecs = map[string]Codec{
	"json":   jsonCodec{},
	"pickle": pickleCodec{},
}

// CodecFor returns the codec registered under name.
func CodecFor(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q (known: %v)", name, CodecNames())
	}
	return c, nil
}

// CodecNames lists registered codec names in sorted order.
func CodecNames() []string {
	names := make([]string, 0, len(codecs))
	for n := range codecs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WriteFrame writes a 4-byte big-endian length prefix followed by payload.
// It returns the total number of bytes written.
func WriteFrame(w io.Writer, payload []byte) (int, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	n, err := w.Write(buf)
	if err != nil {
		return n, fmt.Errorf("write frame: %w", err)
	}
	return n, nil
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return payload, nil
}

// DecodeBatch parses a JSON frame payload and checks its version.
func DecodeBatch(payload []byte) (*Batch, error) {
	var b Batch
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	if b.Version != Version {
		return nil, fmt.Errorf("unsupported batch version: %d", b.Version)
	}
	return &b, nil
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(metrics []Metric) ([]byte, error) {
	if metrics == nil {
		metrics = []Metric{}
	}
	b, err := json.Marshal(Batch{Version: Version, Metrics: metrics})
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}
	return b, nil
}
