package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ratchetproto/signalcore/curve"
	"github.com/ratchetproto/signalcore/store"
)

func TestPreKeyLifecycle(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	kp, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, s.PutPreKey(ctx, &store.PreKey{ID: 9, KeyPair: *kp}))

	got, err := s.LoadPreKey(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, kp.Public, got.KeyPair.Public)

	require.NoError(t, s.RemovePreKey(ctx, 9))
	got, err = s.LoadPreKey(ctx, 9)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSignedPreKeyRoundTrip(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	kp, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	sig, err := curve.Sign(&kp.Private, []byte("signed prekey body"))
	require.NoError(t, err)
	var sigArr [curve.SignatureSize]byte
	copy(sigArr[:], sig)

	spk := &store.SignedPreKey{ID: 1, KeyPair: *kp, Signature: sigArr}
	require.NoError(t, s.PutSignedPreKey(ctx, spk))

	got, err := s.LoadSignedPreKey(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, spk.Signature, got.Signature)
}

func TestLoadMissingReturnsNil(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	pk, err := s.LoadPreKey(ctx, 404)
	require.NoError(t, err)
	require.Nil(t, pk)

	spk, err := s.LoadSignedPreKey(ctx, 404)
	require.NoError(t, err)
	require.Nil(t, spk)
}
