package signing

import (
	"crypto"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/minio/sha256-simd"

	"github.com/spacemeshos/hshs/challenge"
)

var (
	ErrSigningFailed    = errors.New("couldn't sign")
	ErrSignatureInvalid = errors.New("signature is invalid")
	ErrInvalidPubkeyLen = errors.New("pubkey has invalid length")
)

// Signed represents a challenge whose unsolved form is signed.
// It provides a read-only access to it.
type Signed interface {
	// Challenge retrieves the underlying challenge.
	// The received challenge is READ ONLY.
	Challenge() *challenge.Challenge
	PubKey() []byte
	Signature() []byte
}

// signedChallenge is a holder of a challenge which is
// guaranteed to be signed. It implements Signed interface.
type signedChallenge struct {
	challenge *challenge.Challenge
	pubkey    []byte
	signature []byte
}

func (d *signedChallenge) Challenge() *challenge.Challenge {
	return d.challenge
}

func (d *signedChallenge) PubKey() []byte {
	return d.pubkey
}

func (d *signedChallenge) Signature() []byte {
	return d.signature
}

type notHashed struct{}

func (notHashed) HashFunc() crypto.Hash { return crypto.Hash(0) }

// SignedBytes returns the bytes covered by a signature: the encoding of the challenge with
// its counter cleared. c itself is not modified.
func SignedBytes(c *challenge.Challenge) []byte {
	unsolved := c.Clone()
	unsolved.ClearCounter()
	return unsolved.Encode()
}

// Sign signs the unsolved form of c with given ed25519 signer.
func Sign(c *challenge.Challenge, signer crypto.Signer) (Signed, error) {
	pubkey, ok := signer.Public().(ed25519.PublicKey)
	if !ok || len(pubkey) != ed25519.PublicKeySize {
		return nil, ErrInvalidPubkeyLen
	}
	signature, err := signer.Sign(nil, SignedBytes(c), notHashed{})
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrSigningFailed, err)
	}
	return &signedChallenge{
		challenge: c,
		pubkey:    pubkey,
		signature: signature,
	}, nil
}

// Verify checks that signature was made by pubkey over the unsolved form of c.
// c may already be solved: its counter is ignored.
func Verify(c *challenge.Challenge, signature, pubkey []byte) (Signed, error) {
	if l := len(pubkey); l != ed25519.PublicKeySize {
		return nil, ErrInvalidPubkeyLen
	}
	if !ed25519.Verify(pubkey, SignedBytes(c), signature) {
		return nil, ErrSignatureInvalid
	}

	return &signedChallenge{
		challenge: c,
		pubkey:    pubkey,
		signature: signature,
	}, nil
}

// Fingerprint is a short identifier of a public key, suitable for logs.
func Fingerprint(pubkey []byte) string {
	sum := sha256.Sum256(pubkey)
	return hex.EncodeToString(sum[:8])
}
