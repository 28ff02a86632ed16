package main

import (
	"bytes"
	"fmt"

	"github.com/spacemeshos/go-scale"
)

const (
	demoVersion    = 3
	minDemoVersion = 2
)

// demoMetadata is an example of application data carried in a challenge.
type demoMetadata struct {
	Version uint16
	Memo    string
}

func (m *demoMetadata) EncodeScale(enc *scale.Encoder) (total int, err error) {
	n, err := scale.EncodeCompact16(enc, m.Version)
	if err != nil {
		return total, err
	}
	total += n
	n, err = scale.EncodeString(enc, m.Memo)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

func (m *demoMetadata) DecodeScale(dec *scale.Decoder) (total int, err error) {
	version, n, err := scale.DecodeCompact16(dec)
	if err != nil {
		return total, err
	}
	total += n
	m.Version = version
	memo, n, err := scale.DecodeString(dec)
	if err != nil {
		return total, err
	}
	total += n
	m.Memo = memo
	return total, nil
}

func (m *demoMetadata) Bytes() []byte {
	var buf bytes.Buffer
	if _, err := m.EncodeScale(scale.NewEncoder(&buf)); err != nil {
		panic(fmt.Sprintf("encoding metadata: %v", err))
	}
	return buf.Bytes()
}

func parseDemoMetadata(data []byte) (*demoMetadata, error) {
	var m demoMetadata
	if _, err := m.DecodeScale(scale.NewDecoder(bytes.NewReader(data))); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &m, nil
}
