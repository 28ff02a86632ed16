package challenge

import (
	"math/bits"

	"golang.org/x/crypto/sha3"
)

// DigestSize is the size of a challenge digest in bytes.
const DigestSize = 64

// Digest computes the SHA3-512 hash of an encoded challenge.
func Digest(data []byte) [DigestSize]byte {
	return sha3.Sum512(data)
}

// Hash returns the digest of the challenge's current encoding, counter included.
func (c *Challenge) Hash() [DigestSize]byte {
	return Digest(c.Encode())
}

// LeadingZeroBits counts the zero bits preceding the first set bit of data.
// An all-zero (or empty) slice yields 8*len(data).
func LeadingZeroBits(data []byte) int {
	for i, b := range data {
		if b != 0 {
			return i*8 + bits.LeadingZeros8(b)
		}
	}
	return len(data) * 8
}

// Satisfies checks that the digest has exactly `expected` leading zero bits.
//
// Note that this is an equality, not the "at least" of classic hashcash:
// a digest with more zero bits than required does not solve the challenge.
func Satisfies(expected uint16, digest []byte) bool {
	return LeadingZeroBits(digest) == int(expected)
}
