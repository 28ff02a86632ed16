/*
Package protocol wires the challenge puzzle into an issuer, a solver and a verifier.

The issuer creates a challenge, signs the encoding of the unsolved challenge with its
ed25519 key and hands out a Ticket. The solver decodes the challenge, searches for a
counter satisfying the difficulty and returns the solved encoding. The verifier, holding
the issuer's public key, checks the work and deadline, checks the signature after
clearing the counter, and remembers the challenge's randomness for a bounded window so
the same solution can't be redeemed twice.

Transport between the parties is left to the caller.
*/
package protocol
