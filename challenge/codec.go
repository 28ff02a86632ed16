package challenge

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/spacemeshos/go-scale"
)

const (
	// MaxCounterSize limits the counter length accepted on the wire.
	// The counter grows by one byte roughly every 256 increments.
	MaxCounterSize = 1 << 20

	maxTimestampSize = 64
	checksumSize     = 8
)

// Encode returns the canonical encoding of the challenge: the scale encoded fields
// followed by an xxhash64 checksum of them.
func (c *Challenge) Encode() []byte {
	var buf bytes.Buffer
	if _, err := c.EncodeScale(scale.NewEncoder(&buf)); err != nil {
		// Writing to a bytes.Buffer only fails on limit violations which
		// New, Decode and Solve never produce.
		panic(fmt.Sprintf("encoding challenge: %v", err))
	}
	var sum [checksumSize]byte
	binary.BigEndian.PutUint64(sum[:], xxhash.Sum64(buf.Bytes()))
	buf.Write(sum[:])
	return buf.Bytes()
}

// Decode parses a challenge produced by Encode.
// Any structural problem is reported as ErrMalformedEncoding.
func Decode(data []byte) (*Challenge, error) {
	if len(data) < checksumSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrMalformedEncoding, len(data))
	}
	payload, trailer := data[:len(data)-checksumSize], data[len(data)-checksumSize:]
	if binary.BigEndian.Uint64(trailer) != xxhash.Sum64(payload) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrMalformedEncoding)
	}

	c := &Challenge{}
	n, err := c.DecodeScale(scale.NewDecoder(bytes.NewReader(payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	if n != len(payload) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedEncoding, len(payload)-n)
	}
	return c, nil
}

func (c *Challenge) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		var bits [2]byte
		binary.BigEndian.PutUint16(bits[:], c.bits)
		n, err := scale.EncodeByteArray(enc, bits[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, []byte(c.issuedAt), maxTimestampSize)
		if err != nil {
			return total, fmt.Errorf("issued at: %w", err)
		}
		total += n
	}
	{
		n, err := encodeOptional(enc, optionalBytes(c.deadline), maxTimestampSize)
		if err != nil {
			return total, fmt.Errorf("deadline: %w", err)
		}
		total += n
	}
	{
		n, err := scale.EncodeByteArray(enc, c.randomness[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, c.counter, MaxCounterSize)
		if err != nil {
			return total, fmt.Errorf("counter: %w", err)
		}
		total += n
	}
	{
		n, err := encodeOptional(enc, c.metadata, MaxMetadataSize)
		if err != nil {
			return total, fmt.Errorf("metadata: %w", err)
		}
		total += n
	}
	return total, nil
}

func (c *Challenge) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		var bits [2]byte
		n, err := scale.DecodeByteArray(dec, bits[:])
		if err != nil {
			return total, err
		}
		total += n
		c.bits = binary.BigEndian.Uint16(bits[:])
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, maxTimestampSize)
		if err != nil {
			return total, fmt.Errorf("issued at: %w", err)
		}
		total += n
		if _, err := parseTimestamp(string(field)); err != nil {
			return total, fmt.Errorf("issued at: %w", err)
		}
		c.issuedAt = string(field)
	}
	{
		field, n, err := decodeOptional(dec, maxTimestampSize)
		if err != nil {
			return total, fmt.Errorf("deadline: %w", err)
		}
		total += n
		if field != nil {
			if _, err := parseTimestamp(string(field)); err != nil {
				return total, fmt.Errorf("deadline: %w", err)
			}
			deadline := string(field)
			c.deadline = &deadline
		}
	}
	{
		n, err := scale.DecodeByteArray(dec, c.randomness[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, MaxCounterSize)
		if err != nil {
			return total, fmt.Errorf("counter: %w", err)
		}
		total += n
		if len(field) > 0 {
			c.counter = field
		}
	}
	{
		field, n, err := decodeOptional(dec, MaxMetadataSize)
		if err != nil {
			return total, fmt.Errorf("metadata: %w", err)
		}
		total += n
		c.metadata = field
	}
	return total, nil
}

func optionalBytes(s *string) []byte {
	if s == nil {
		return nil
	}
	return []byte(*s)
}

// encodeOptional writes a presence byte followed by the value when it is non-nil.
func encodeOptional(enc *scale.Encoder, value []byte, limit uint32) (int, error) {
	if value == nil {
		return scale.EncodeByteArray(enc, []byte{0})
	}
	total, err := scale.EncodeByteArray(enc, []byte{1})
	if err != nil {
		return total, err
	}
	n, err := scale.EncodeByteSliceWithLimit(enc, value, limit)
	return total + n, err
}

// decodeOptional reads a value written by encodeOptional.
// A present but empty value is returned as a non-nil empty slice.
func decodeOptional(dec *scale.Decoder, limit uint32) ([]byte, int, error) {
	var flag [1]byte
	total, err := scale.DecodeByteArray(dec, flag[:])
	if err != nil {
		return nil, total, err
	}
	switch flag[0] {
	case 0:
		return nil, total, nil
	case 1:
	default:
		return nil, total, fmt.Errorf("invalid presence flag %d", flag[0])
	}
	value, n, err := scale.DecodeByteSliceWithLimit(dec, limit)
	total += n
	if err != nil {
		return nil, total, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, total, nil
}
