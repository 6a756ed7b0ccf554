// Package ratchetstate implements the cryptographic state of a single
// Double Ratchet session: the root key, the sending and receiving
// chains it has installed, their per-message key caches, and the
// bookkeeping a SessionBuilder and SessionCipher need to drive it.
//
// A State is a plain value owned by a session.Record; nothing in this
// package talks to storage or holds a lock. Concurrency is the
// caller's job.
package ratchetstate

import (
	"fmt"

	"github.com/ratchetproto/signalcore/curve"
)

// MaxMessageKeys bounds how far a chain may be advanced to satisfy a
// single fillMessageKeys call. It is the hard out-of-order tolerance:
// beyond it, a gap is treated as an attack or a stale session rather
// than a legitimate reordering. A var, not a const, so config.Load
// can override it at startup (SIGNALCORE_MAX_SKIP); 2000 is the
// protocol default.
var MaxMessageKeys = 2000

// ChainType distinguishes a sending chain (we derive, we send) from a
// receiving chain (we derive, peer sent).
type ChainType int

const (
	Sending ChainType = iota
	Receiving
)

func (t ChainType) String() string {
	if t == Sending {
		return "sending"
	}
	return "receiving"
}

// ChainKey is the current symmetric state of one chain. Counter starts
// at -1 (no message derived yet); Closed marks a chain whose key has
// been erased because the peer has moved past it.
type ChainKey struct {
	Counter int32
	Key     [32]byte
	Closed  bool
}

// Chain is one symmetric KDF chain plus the message keys it has
// derived but not yet consumed, cached under their counter so
// out-of-order messages can still be decrypted once they arrive.
type Chain struct {
	Type        ChainType
	ChainKey    ChainKey
	MessageKeys map[uint32][32]byte
}

func newChain(typ ChainType, seed [32]byte) *Chain {
	return &Chain{
		Type:        typ,
		ChainKey:    ChainKey{Counter: -1, Key: seed},
		MessageKeys: make(map[uint32][32]byte),
	}
}

// BaseKeyType records whether a session's basing secret was generated
// by us (an outbound session, pending peer reply) or carried on an
// inbound PreKey message from the peer.
type BaseKeyType int

const (
	OURS BaseKeyType = iota
	THEIRS
)

// PendingPreKey is a sender's memo of which prekey bundle produced the
// session, echoed on every outbound frame until the peer's first
// successful reply clears it.
type PendingPreKey struct {
	BaseKey     [curve.PublicKeySize]byte
	SignedKeyID uint32
	PreKeyID    *uint32
}

// IndexInfo is the metadata a SessionRecord uses to file, sort, and
// retire sessions.
type IndexInfo struct {
	BaseKey           [curve.PublicKeySize]byte
	BaseKeyType       BaseKeyType
	Closed            int64 // -1 means open
	Used              int64
	Created           int64
	RemoteIdentityKey [curve.PublicKeySize]byte
}

// State is one Double Ratchet session: the root key, every chain
// installed so far (keyed by the ephemeral public key that produced
// it), and the metadata needed to drive the ratchet and MAC binding.
type State struct {
	RootKey [32]byte

	// chains is keyed by the ephemeral public key that produced the
	// chain: our own current key for the sending chain, the remote's
	// last-seen key for (historical) receiving chains.
	chains map[[curve.PublicKeySize]byte]*Chain

	EphemeralKeyPair curve.KeyPair

	LastRemoteEphemeralKey    [curve.PublicKeySize]byte
	HasLastRemoteEphemeralKey bool

	PreviousCounter uint32
	PendingPreKey   *PendingPreKey
	IndexInfo       IndexInfo
	RegistrationID  uint32
}

// New returns an empty State with its chain table initialized.
func New() *State {
	return &State{chains: make(map[[curve.PublicKeySize]byte]*Chain)}
}

// SendingChain returns the chain filed under our current ephemeral
// public key, or nil if none has been installed.
func (s *State) SendingChain() *Chain {
	return s.chains[s.EphemeralKeyPair.Public]
}

// ReceivingChain returns the chain filed under the given remote
// ephemeral public key, or nil if none has been installed.
func (s *State) ReceivingChain(remoteEphemeral [curve.PublicKeySize]byte) *Chain {
	return s.chains[remoteEphemeral]
}

// Chains exposes the full chain table for serialization. Callers must
// not mutate the returned map directly.
func (s *State) Chains() map[[curve.PublicKeySize]byte]*Chain {
	return s.chains
}

// SetChain installs (or replaces) the chain filed under key.
func (s *State) SetChain(key [curve.PublicKeySize]byte, c *Chain) {
	s.chains[key] = c
}

// DeleteChain removes the chain filed under key, if present.
func (s *State) DeleteChain(key [curve.PublicKeySize]byte) {
	delete(s.chains, key)
}

// InstallInitialSendingChain installs a fresh sending chain keyed
// under the state's current ephemeral public key. Used by
// SessionBuilder when a session is first constructed, outside of a DH
// ratchet step.
func (s *State) InstallInitialSendingChain(seed [32]byte) {
	s.SetChain(s.EphemeralKeyPair.Public, newChain(Sending, seed))
}

// InstallInitialReceivingChain installs a fresh receiving chain keyed
// under the peer's base key. Used by SessionBuilder.initIncoming
// before the mirrored dhRatchet establishes the sending side.
func (s *State) InstallInitialReceivingChain(key [curve.PublicKeySize]byte, seed [32]byte) {
	s.SetChain(key, newChain(Receiving, seed))
}

func (s *State) String() string {
	return fmt.Sprintf("session[base=%x chains=%d]", s.IndexInfo.BaseKey[:8], len(s.chains))
}
