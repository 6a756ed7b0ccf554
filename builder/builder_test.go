package builder

import (
	"context"
	"testing"

	"github.com/ratchetproto/signalcore/curve"
	"github.com/ratchetproto/signalcore/metrics"
	"github.com/ratchetproto/signalcore/protocol"
	"github.com/ratchetproto/signalcore/session"
	"github.com/ratchetproto/signalcore/store"
	"github.com/stretchr/testify/require"
)

type bundleFixture struct {
	bobIdentity     *curve.KeyPair
	bobSignedPreKey *curve.KeyPair
	bobPreKey       *curve.KeyPair
	bundle          PreKeyBundle
	bobStore        *store.Memory
}

func newBundleFixture(t *testing.T) bundleFixture {
	t.Helper()
	bobIdentity, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	bobSPK, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	bobPreKey, err := curve.GenerateKeyPair()
	require.NoError(t, err)

	sig, err := curve.Sign(&bobIdentity.Private, bobSPK.Public[:])
	require.NoError(t, err)
	var sigArr [curve.SignatureSize]byte
	copy(sigArr[:], sig)

	preKeyID := uint32(7)
	bundle := PreKeyBundle{
		RegistrationID:        0x1234,
		IdentityKey:           bobIdentity.Public,
		SignedPreKeyID:        1,
		SignedPreKeyPublic:    bobSPK.Public,
		SignedPreKeySignature: sigArr,
		PreKeyID:              &preKeyID,
		PreKeyPublic:          &bobPreKey.Public,
	}

	bobStore := store.NewMemory(store.IdentityKeyPair{Public: bobIdentity.Public, Private: bobIdentity.Private}, 0x1234)
	bobStore.PutSignedPreKey(&store.SignedPreKey{ID: 1, KeyPair: *bobSPK, Signature: sigArr})
	bobStore.PutPreKey(&store.PreKey{ID: preKeyID, KeyPair: *bobPreKey})

	return bundleFixture{
		bobIdentity:     bobIdentity,
		bobSignedPreKey: bobSPK,
		bobPreKey:       bobPreKey,
		bundle:          bundle,
		bobStore:        bobStore,
	}
}

func TestInitOutgoingRejectsBadSignature(t *testing.T) {
	f := newBundleFixture(t)
	f.bundle.SignedPreKeySignature[0] ^= 0xFF

	aliceIdentity, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	aliceStore := store.NewMemory(store.IdentityKeyPair{Public: aliceIdentity.Public, Private: aliceIdentity.Private}, 1)

	b := New(aliceStore, protocol.NewAddress("bob", 1), metrics.Noop())
	record := session.NewRecord()
	_, err = b.InitOutgoing(context.Background(), record, f.bundle)
	require.Error(t, err)
}

func TestInitOutgoingThenInitIncomingAgreeOnChainSeed(t *testing.T) {
	f := newBundleFixture(t)

	aliceIdentity, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	aliceStore := store.NewMemory(store.IdentityKeyPair{Public: aliceIdentity.Public, Private: aliceIdentity.Private}, 99)

	aliceBuilder := New(aliceStore, protocol.NewAddress("bob", 1), metrics.Noop())
	aliceRecord := session.NewRecord()
	aliceSession, err := aliceBuilder.InitOutgoing(context.Background(), aliceRecord, f.bundle)
	require.NoError(t, err)
	require.NotNil(t, aliceSession.PendingPreKey)

	preKeyID := *f.bundle.PreKeyID
	msg := protocol.PreKeyWhisperMessage{
		RegistrationID: 99,
		PreKeyID:       &preKeyID,
		SignedPreKeyID: f.bundle.SignedPreKeyID,
		BaseKey:        aliceSession.IndexInfo.BaseKey,
		IdentityKey:    aliceIdentity.Public,
		Message:        []byte("placeholder"),
	}

	bobBuilder := New(f.bobStore, protocol.NewAddress("alice", 1), metrics.Noop())
	bobRecord := session.NewRecord()
	bobSession, consumed, err := bobBuilder.InitIncoming(context.Background(), bobRecord, msg)
	require.NoError(t, err)
	require.NotNil(t, consumed)
	require.Equal(t, preKeyID, *consumed)

	// Bob's transient receiving chain (keyed by Alice's base key) holds
	// the same X3DH-derived chain seed as Alice's first sending chain;
	// the cipher package's full encrypt/decrypt flow exercises the
	// subsequent dhRatchet on Alice's receive of Bob's reply.
	require.NotNil(t, bobSession.ReceivingChain(aliceSession.IndexInfo.BaseKey))
	require.Equal(t, aliceSession.SendingChain().ChainKey.Key, bobSession.ReceivingChain(aliceSession.IndexInfo.BaseKey).ChainKey.Key)
	require.Equal(t, aliceSession.SendingChain().ChainKey.Counter, int32(-1))
	require.NotNil(t, bobSession.SendingChain())
}
