package challenge_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/hshs/challenge"
)

func TestLeadingZeroBits(t *testing.T) {
	t.Parallel()
	r := require.New(t)

	r.Equal(0, challenge.LeadingZeroBits(nil))
	r.Equal(0, challenge.LeadingZeroBits([]byte{}))
	r.Equal(8, challenge.LeadingZeroBits([]byte{0x00}))
	r.Equal(8, challenge.LeadingZeroBits([]byte{0x00, 0xff}))
	r.Equal(11, challenge.LeadingZeroBits([]byte{0x00, 0x10, 0xff}))
	r.Equal(4, challenge.LeadingZeroBits([]byte{0x0f}))
	r.Equal(12, challenge.LeadingZeroBits([]byte{0x00, 0x0f}))
	r.Equal(0, challenge.LeadingZeroBits(bytes.Repeat([]byte{0xff}, 255)))
	r.Equal(8*64, challenge.LeadingZeroBits(make([]byte, 64)))
}

func TestLeadingZeroBitsRandom(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		data := make([]byte, rng.Intn(16))
		rng.Read(data)
		// sparsify so that leading zero bytes actually occur
		for j := range data {
			if rng.Intn(3) == 0 {
				data[j] = 0
			}
		}

		got := challenge.LeadingZeroBits(data)
		require.GreaterOrEqual(t, got, 0)
		require.LessOrEqual(t, got, 8*len(data))

		expected := 8 * len(data)
		for idx, b := range data {
			if b != 0 {
				expected = 8 * idx
				for mask := byte(0x80); mask&b == 0; mask >>= 1 {
					expected++
				}
				break
			}
		}
		require.Equal(t, expected, got, "data: %x", data)
	}
}

func TestSatisfiesIsExact(t *testing.T) {
	t.Parallel()
	r := require.New(t)

	digest := []byte{0x00, 0x0f, 0xff}
	r.True(challenge.Satisfies(12, digest))
	r.False(challenge.Satisfies(11, digest))
	r.False(challenge.Satisfies(13, digest))

	r.True(challenge.Satisfies(0, []byte{0x80}))
	r.False(challenge.Satisfies(0, []byte{0x7f}))
	r.True(challenge.Satisfies(16, []byte{0x00, 0x00}))
	r.False(challenge.Satisfies(17, []byte{0x00, 0x00}))
}

func TestDigest(t *testing.T) {
	t.Parallel()
	r := require.New(t)

	a, b := []byte("a"), []byte("b")
	r.Len(challenge.Digest(a), challenge.DigestSize)
	r.Equal(challenge.Digest(a), challenge.Digest(a))
	r.NotEqual(challenge.Digest(a), challenge.Digest(b))
}
