// Package store defines the storage capability SessionBuilder and
// SessionCipher depend on, and ships an in-memory reference
// implementation. Production adapters (redisstore, sqlstore,
// vaultstore, blobstore) live in subpackages.
package store

import (
	"context"

	"github.com/ratchetproto/signalcore/curve"
	"github.com/ratchetproto/signalcore/protocol"
	"github.com/ratchetproto/signalcore/session"
)

// IdentityKeyPair is the long-term identity: a curve25519 key pair
// used both for X3DH agreement and for signing signed-prekeys.
type IdentityKeyPair struct {
	Public  [curve.PublicKeySize]byte
	Private [curve.PrivateKeySize]byte
}

// PreKey is a one-time prekey: consumed on first use by an incoming
// PreKey message.
type PreKey struct {
	ID      uint32
	KeyPair curve.KeyPair
}

// SignedPreKey is a medium-term prekey, signed by the identity key.
type SignedPreKey struct {
	ID        uint32
	KeyPair   curve.KeyPair
	Signature [curve.SignatureSize]byte
}

// SessionStore persists the per-address SessionRecord. redisstore and
// blobstore each implement this capability alone.
type SessionStore interface {
	LoadSession(ctx context.Context, addr protocol.Address) (*session.Record, error)
	StoreSession(ctx context.Context, addr protocol.Address, record *session.Record) error
}

// TrustStore answers trust-on-first-use queries for a remote identity
// key. Memory is the only implementation shipped here; production
// deployments are expected to back this with whatever policy store
// they already run (out of scope per spec's Non-goals).
type TrustStore interface {
	IsTrustedIdentity(ctx context.Context, id string, remoteIdentityKey [curve.PublicKeySize]byte) (bool, error)
}

// PreKeyStore persists one-time prekeys, consumed on first use.
// sqlstore implements this capability alone.
type PreKeyStore interface {
	LoadPreKey(ctx context.Context, id uint32) (*PreKey, error)
	RemovePreKey(ctx context.Context, id uint32) error
}

// SignedPreKeyStore persists the medium-term signed prekey. sqlstore
// implements this capability alone.
type SignedPreKeyStore interface {
	LoadSignedPreKey(ctx context.Context, id uint32) (*SignedPreKey, error)
}

// IdentityStore holds the long-term identity key pair and
// registration id. vaultstore implements this capability alone, so
// the private key never touches process-local disk.
type IdentityStore interface {
	GetOurIdentity(ctx context.Context) (IdentityKeyPair, error)
	GetOurRegistrationID(ctx context.Context) (uint32, error)
}

// Store is the full storage capability set SessionBuilder and
// SessionCipher are built against. Every method may suspend
// (network/disk I/O); nothing else in the core does. A caller that
// wires separate backends per capability composes them into a single
// Store value with a small struct embedding each interface.
type Store interface {
	SessionStore
	TrustStore
	PreKeyStore
	SignedPreKeyStore
	IdentityStore
}

// Composite lets a caller assemble a Store out of independently
// backed capability implementations, e.g. redisstore for sessions,
// sqlstore for prekeys, vaultstore for identity.
type Composite struct {
	SessionStore
	TrustStore
	PreKeyStore
	SignedPreKeyStore
	IdentityStore
}
