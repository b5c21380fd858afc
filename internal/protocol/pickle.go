package protocol

import (
	"bytes"
	"fmt"

	ogórek "github.com/kisielk/og-rek"
)

// pickleProtocol is the highest version carbon's python 2 receivers load.
const pickleProtocol = 2

// pickleCodec emits the list-of-tuples shape carbon's pickle receiver expects:
// [(name, (timestamp, value)), ...].
type pickleCodec struct{}

func (pickleCodec) Name() string { return "pickle" }

func (pickleCodec) Encode(metrics []Metric) ([]byte, error) {
	items := make([]interface{}, 0, len(metrics))
	for _, m := range metrics {
		items = append(items, ogórek.Tuple{m.Name, ogórek.Tuple{m.Timestamp, m.Value}})
	}

	var buf bytes.Buffer
	enc := ogórek.NewEncoderWithConfig(&buf, &ogórek.EncoderConfig{Protocol: pickleProtocol})
	if err := enc.Encode(items); err != nil {
		return nil, fmt.Errorf("pickle metrics: %w", err)
	}
	return buf.Bytes(), nil
}
