package signalcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ratchetproto/signalcore/builder"
	"github.com/ratchetproto/signalcore/config"
	"github.com/ratchetproto/signalcore/curve"
	"github.com/ratchetproto/signalcore/metrics"
	"github.com/ratchetproto/signalcore/protocol"
	"github.com/ratchetproto/signalcore/session"
	"github.com/ratchetproto/signalcore/store"
)

func TestClientEncryptDecryptRoundTrip(t *testing.T) {
	ctx := context.Background()

	aliceIdentity, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	bobIdentity, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	bobSPK, err := curve.GenerateKeyPair()
	require.NoError(t, err)

	sig, err := curve.Sign(&bobIdentity.Private, bobSPK.Public[:])
	require.NoError(t, err)
	var sigArr [curve.SignatureSize]byte
	copy(sigArr[:], sig)

	aliceStore := store.NewMemory(store.IdentityKeyPair{Public: aliceIdentity.Public, Private: aliceIdentity.Private}, 1)
	bobStore := store.NewMemory(store.IdentityKeyPair{Public: bobIdentity.Public, Private: bobIdentity.Private}, 2)
	bobStore.PutSignedPreKey(&store.SignedPreKey{ID: 1, KeyPair: *bobSPK, Signature: sigArr})

	aliceAddr := protocol.NewAddress("bob", 1)
	bobAddr := protocol.NewAddress("alice", 1)

	bundle := builder.PreKeyBundle{
		RegistrationID:        2,
		IdentityKey:           bobIdentity.Public,
		SignedPreKeyID:        1,
		SignedPreKeyPublic:    bobSPK.Public,
		SignedPreKeySignature: sigArr,
	}
	record := session.NewRecord()
	_, err = builder.New(aliceStore, aliceAddr, metrics.Noop()).InitOutgoing(ctx, record, bundle)
	require.NoError(t, err)
	require.NoError(t, aliceStore.StoreSession(ctx, aliceAddr, record))

	cfg, err := config.Load()
	require.NoError(t, err)

	alice := New(aliceStore, cfg)
	defer alice.Close()
	bob := New(bobStore, cfg)
	defer bob.Close()

	msg, err := alice.Encrypt(ctx, aliceAddr, []byte("hello bob"))
	require.NoError(t, err)
	require.Equal(t, protocol.PreKeyType, msg.Type)

	pt, err := bob.Decrypt(ctx, bobAddr, msg.Type, msg.Body)
	require.NoError(t, err)
	require.Equal(t, []byte("hello bob"), pt)
}

func TestClientDecryptWithoutSessionFails(t *testing.T) {
	ctx := context.Background()
	identity, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	st := store.NewMemory(store.IdentityKeyPair{Public: identity.Public, Private: identity.Private}, 1)

	cfg, err := config.Load()
	require.NoError(t, err)
	cl := New(st, cfg)
	defer cl.Close()

	addr := protocol.NewAddress("nobody", 1)
	_, err = cl.Decrypt(ctx, addr, protocol.WhisperType, []byte("short"))
	require.Error(t, err)
}
