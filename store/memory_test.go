package store

import (
	"context"
	"testing"

	"github.com/ratchetproto/signalcore/curve"
	"github.com/ratchetproto/signalcore/protocol"
	"github.com/ratchetproto/signalcore/ratchetstate"
	"github.com/ratchetproto/signalcore/session"
	"github.com/stretchr/testify/require"
)

func TestMemoryLoadSessionAbsentIsNil(t *testing.T) {
	m := NewMemory(IdentityKeyPair{}, 1)
	addr := protocol.NewAddress("alice", 1)
	rec, err := m.LoadSession(context.Background(), addr)
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestMemoryStoreThenLoadSessionRoundTrips(t *testing.T) {
	m := NewMemory(IdentityKeyPair{}, 1)
	addr := protocol.NewAddress("alice", 1)

	kp, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	s := ratchetstate.New()
	s.EphemeralKeyPair = *kp
	s.IndexInfo.BaseKey = kp.Public
	s.IndexInfo.Closed = -1

	rec := session.NewRecord()
	rec.PutSession(s)

	require.NoError(t, m.StoreSession(context.Background(), addr, rec))

	loaded, err := m.LoadSession(context.Background(), addr)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.NotNil(t, loaded.OpenSession())
}

func TestMemoryTrustDefaultsTrueAndIsOverridable(t *testing.T) {
	m := NewMemory(IdentityKeyPair{}, 1)
	trusted, err := m.IsTrustedIdentity(context.Background(), "bob", [curve.PublicKeySize]byte{})
	require.NoError(t, err)
	require.True(t, trusted)

	m.SetTrusted("bob", false)
	trusted, err = m.IsTrustedIdentity(context.Background(), "bob", [curve.PublicKeySize]byte{})
	require.NoError(t, err)
	require.False(t, trusted)
}

func TestMemoryPreKeyLifecycle(t *testing.T) {
	m := NewMemory(IdentityKeyPair{}, 1)
	kp, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	m.PutPreKey(&PreKey{ID: 7, KeyPair: *kp})

	pk, err := m.LoadPreKey(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, pk)

	require.NoError(t, m.RemovePreKey(context.Background(), 7))
	pk, err = m.LoadPreKey(context.Background(), 7)
	require.NoError(t, err)
	require.Nil(t, pk)
}
