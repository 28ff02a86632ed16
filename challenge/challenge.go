package challenge

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap/zapcore"
	"golang.org/x/exp/slices"
)

const (
	// RandomnessSize is the number of issuer-supplied random bytes in every challenge.
	RandomnessSize = 64

	// TimestampLayout is the fixed RFC3339 profile used for issuance time and deadline.
	TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

	// MaxMetadataSize limits the opaque metadata carried by a challenge.
	MaxMetadataSize = 64 * 1024
)

var (
	ErrMalformedEncoding    = errors.New("malformed challenge encoding")
	ErrEntropySourceFailure = errors.New("entropy source failure")
	ErrClockUnavailable     = errors.New("clock unavailable")
	ErrInvalidDeadline      = errors.New("invalid deadline offset")
	ErrMetadataTooLarge     = errors.New("metadata too large")
	ErrExpired              = errors.New("challenge expired")
	ErrInsufficientWork     = errors.New("digest does not match difficulty")
)

// Challenge is a single proof of work puzzle instance.
//
// All fields except the counter are fixed at construction. The counter is advanced by
// Solve and can be reset with ClearCounter. A Challenge is not safe for concurrent use.
type Challenge struct {
	bits       uint16
	issuedAt   string
	deadline   *string
	randomness [RandomnessSize]byte
	counter    []byte
	metadata   []byte
}

type options struct {
	deadline *time.Duration
	metadata []byte
	entropy  io.Reader
	clock    func() time.Time
}

type OptionFunc func(*options) error

// WithDeadline makes the challenge expire `offset` after its issuance.
func WithDeadline(offset time.Duration) OptionFunc {
	return func(o *options) error {
		if offset <= 0 {
			return fmt.Errorf("%w: %v", ErrInvalidDeadline, offset)
		}
		o.deadline = &offset
		return nil
	}
}

// WithMetadata attaches an opaque application payload.
func WithMetadata(metadata []byte) OptionFunc {
	return func(o *options) error {
		if len(metadata) > MaxMetadataSize {
			return fmt.Errorf("%w: %d > %d", ErrMetadataTooLarge, len(metadata), MaxMetadataSize)
		}
		o.metadata = slices.Clone(metadata)
		return nil
	}
}

// WithEntropy overrides the source of challenge randomness (crypto/rand by default).
func WithEntropy(r io.Reader) OptionFunc {
	return func(o *options) error {
		o.entropy = r
		return nil
	}
}

// WithClock overrides the wall clock used to stamp the challenge.
func WithClock(clock func() time.Time) OptionFunc {
	return func(o *options) error {
		o.clock = clock
		return nil
	}
}

// New creates a fresh, unsolved challenge requiring `bits` leading zero bits.
func New(bits uint16, opts ...OptionFunc) (*Challenge, error) {
	o := &options{
		entropy: rand.Reader,
		clock:   time.Now,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	c := &Challenge{
		bits:     bits,
		metadata: o.metadata,
	}
	if _, err := io.ReadFull(o.entropy, c.randomness[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropySourceFailure, err)
	}

	now := o.clock()
	if now.IsZero() {
		return nil, ErrClockUnavailable
	}
	c.issuedAt = formatTimestamp(now)
	if o.deadline != nil {
		deadline := formatTimestamp(now.Add(*o.deadline))
		c.deadline = &deadline
	}
	return c, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func (c *Challenge) Bits() uint16 {
	return c.bits
}

// IssuedAt returns the issuance instant.
func (c *Challenge) IssuedAt() time.Time {
	// The textual form is validated on construction and decode.
	t, _ := parseTimestamp(c.issuedAt)
	return t
}

// Deadline returns the expiry instant and whether the challenge has one.
func (c *Challenge) Deadline() (time.Time, bool) {
	if c.deadline == nil {
		return time.Time{}, false
	}
	t, _ := parseTimestamp(*c.deadline)
	return t, true
}

func (c *Challenge) Randomness() [RandomnessSize]byte {
	return c.randomness
}

// Counter returns a copy of the current counter value.
func (c *Challenge) Counter() []byte {
	return slices.Clone(c.counter)
}

// Metadata returns the opaque payload or nil when the challenge carries none.
func (c *Challenge) Metadata() []byte {
	return slices.Clone(c.metadata)
}

// ClearCounter resets the counter to empty.
//
// Signatures are made over the unsolved challenge, so a verifier strips the counter
// from a returned challenge to recover the signed bytes.
func (c *Challenge) ClearCounter() {
	c.counter = nil
}

// Clone returns a deep copy.
func (c *Challenge) Clone() *Challenge {
	clone := &Challenge{
		bits:       c.bits,
		issuedAt:   c.issuedAt,
		randomness: c.randomness,
		counter:    slices.Clone(c.counter),
		metadata:   slices.Clone(c.metadata),
	}
	if c.deadline != nil {
		deadline := *c.deadline
		clone.deadline = &deadline
	}
	return clone
}

// Equal reports whether both challenges hold identical field values.
// An empty counter equals a nil one.
func (c *Challenge) Equal(other *Challenge) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.bits != other.bits || c.issuedAt != other.issuedAt || c.randomness != other.randomness {
		return false
	}
	if (c.deadline == nil) != (other.deadline == nil) {
		return false
	}
	if c.deadline != nil && *c.deadline != *other.deadline {
		return false
	}
	if (c.metadata == nil) != (other.metadata == nil) {
		return false
	}
	return slices.Equal(c.counter, other.counter) && slices.Equal(c.metadata, other.metadata)
}

// String renders bits:issued_at:deadline:randomness:counter for diagnostics.
func (c *Challenge) String() string {
	deadline := ""
	if c.deadline != nil {
		deadline = *c.deadline
	}
	return fmt.Sprintf("%d:%s:%s:%s:%s",
		c.bits,
		c.issuedAt,
		deadline,
		base64.StdEncoding.EncodeToString(c.randomness[:]),
		base64.StdEncoding.EncodeToString(c.counter),
	)
}

// implement zap.ObjectMarshaler interface.
func (c *Challenge) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if c == nil {
		return nil
	}
	enc.AddUint16("bits", c.bits)
	enc.AddString("issued_at", c.issuedAt)
	if c.deadline != nil {
		enc.AddString("deadline", *c.deadline)
	}
	enc.AddBinary("randomness", c.randomness[:])
	enc.AddBinary("counter", c.counter)
	enc.AddInt("metadata_size", len(c.metadata))
	return nil
}
