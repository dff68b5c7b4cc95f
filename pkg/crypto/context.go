package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// contextSalt domain-separates receipt signing from any other Ed25519 use of
// the same key. Versioned so a future scheme change invalidates old contexts.
const contextSalt = "commonshold/ppr/v1"

// SigningContext derives a 32-byte domain-separation tag for one signing
// role within one interaction. The tag is prepended to the payload before
// signing, so identical transaction bytes signed as provider vs receiver, or
// toward a different counterparty, yield non-interchangeable signatures.
func SigningContext(claim, role, signerID, counterpartyID string) ([]byte, error) {
	ikm := []byte(claim + "|" + role)
	info := []byte(signerID + "|" + counterpartyID)
	r := hkdf.New(sha256.New, ikm, []byte(contextSalt), info)
	tag := make([]byte, 32)
	if _, err := io.ReadFull(r, tag); err != nil {
		return nil, fmt.Errorf("signing context derivation failed: %w", err)
	}
	return tag, nil
}

// BindContext prepends the derived context tag to the canonical payload.
// Both signer and verifier reconstruct the same bound message.
func BindContext(tag, payload []byte) []byte {
	bound := make([]byte, 0, len(tag)+len(payload))
	bound = append(bound, tag...)
	bound = append(bound, payload...)
	return bound
}
