package challenge

import (
	"fmt"
	"time"
)

// Verify checks the deadline (if any) against the current time and the difficulty.
func (c *Challenge) Verify() bool {
	return c.Validate(time.Now()) == nil
}

// Validate is Verify against an explicit time, reporting why the challenge is rejected.
//
// Returned errors: ErrClockUnavailable when a deadline is set and now is the zero time,
// ErrExpired when now is after the deadline, ErrInsufficientWork when the digest does not
// match the difficulty.
func (c *Challenge) Validate(now time.Time) error {
	if _, ok := c.Deadline(); ok {
		if now.IsZero() {
			return ErrClockUnavailable
		}
		if !c.VerifyDeadline(now) {
			deadline, _ := c.Deadline()
			return fmt.Errorf("%w at %v", ErrExpired, deadline)
		}
	}
	if !c.VerifyHash() {
		return fmt.Errorf("%w: want %d leading zero bits", ErrInsufficientWork, c.bits)
	}
	return nil
}

// VerifyDeadline reports whether now is not after the deadline.
// Challenges without a deadline never expire.
func (c *Challenge) VerifyDeadline(now time.Time) bool {
	deadline, ok := c.Deadline()
	if !ok {
		return true
	}
	return !now.After(deadline)
}

// VerifyHash reports whether the digest of the current encoding satisfies the difficulty.
func (c *Challenge) VerifyHash() bool {
	digest := c.Hash()
	return Satisfies(c.bits, digest[:])
}
