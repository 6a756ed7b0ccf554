// Package builder implements SessionBuilder: constructing the first
// Double Ratchet session on both the outbound (prekey bundle) and
// inbound (PreKey message) sides of the X3DH handshake.
package builder

import "github.com/ratchetproto/signalcore/curve"

// PreKeyBundle is the publishable set a sender fetches to construct a
// session unilaterally, without the peer being online.
type PreKeyBundle struct {
	RegistrationID uint32
	IdentityKey    [curve.PublicKeySize]byte

	SignedPreKeyID        uint32
	SignedPreKeyPublic    [curve.PublicKeySize]byte
	SignedPreKeySignature [curve.SignatureSize]byte

	// PreKeyID/PreKeyPublic are nil together when the bundle carries
	// no one-time prekey (D is omitted from the X3DH quadruple).
	PreKeyID     *uint32
	PreKeyPublic *[curve.PublicKeySize]byte
}
