/*
Package challenge implements a hashcash style client puzzle.

An issuer creates a Challenge with a difficulty (bits), issuance time, optional deadline,
64 random bytes and optional opaque metadata. A solver increments the challenge's counter
until the SHA3-512 digest of the challenge's canonical encoding has exactly `bits`
leading zero bits. Anyone holding the encoded challenge can verify the work and, if set,
the deadline.

Signatures are expected to cover the unsolved challenge: an issuer signs Encode() of the
fresh challenge and, when it comes back solved, calls ClearCounter before re-encoding it
for signature verification.
*/
package challenge
