package ratchetstate

import (
	"testing"

	"github.com/ratchetproto/signalcore/curve"
	"github.com/ratchetproto/signalcore/metrics"
	"github.com/stretchr/testify/require"
)

func TestChainKeyStepDeterministic(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	n1, m1 := chainKeyStep(key)
	n2, m2 := chainKeyStep(key)
	require.Equal(t, n1, n2)
	require.Equal(t, m1, m2)
	require.NotEqual(t, n1, m1)
}

func TestFillMessageKeysFillsAndCaches(t *testing.T) {
	var seed [32]byte
	seed[0] = 1
	chain := newChain(Sending, seed)

	require.NoError(t, FillMessageKeys(chain, 3))
	require.EqualValues(t, 3, chain.ChainKey.Counter)
	require.Len(t, chain.MessageKeys, 4) // counters 0,1,2,3
}

func TestFillMessageKeysNoOpWhenAlreadyCovered(t *testing.T) {
	var seed [32]byte
	chain := newChain(Sending, seed)
	require.NoError(t, FillMessageKeys(chain, 2))
	keyAfterFirst := chain.ChainKey.Key
	require.NoError(t, FillMessageKeys(chain, 1))
	require.Equal(t, keyAfterFirst, chain.ChainKey.Key)
}

func TestFillMessageKeysRejectsTooFarAhead(t *testing.T) {
	var seed [32]byte
	chain := newChain(Sending, seed)
	err := FillMessageKeys(chain, uint32(MaxMessageKeys)+1)
	require.Error(t, err)
}

func TestFillMessageKeysRejectsClosedChain(t *testing.T) {
	var seed [32]byte
	chain := newChain(Sending, seed)
	chain.ChainKey.Closed = true
	err := FillMessageKeys(chain, 0)
	require.Error(t, err)
}

func TestDeriveMessageKeyDeterministicAndDistinct(t *testing.T) {
	var seed [32]byte
	seed[0] = 9
	ck1, mk1, iv1, err := DeriveMessageKey(seed)
	require.NoError(t, err)
	ck2, mk2, iv2, err := DeriveMessageKey(seed)
	require.NoError(t, err)
	require.Equal(t, ck1, ck2)
	require.Equal(t, mk1, mk2)
	require.Equal(t, iv1, iv2)
	require.NotEqual(t, ck1, mk1)
}

func TestDHRatchetInstallsChainAndAdvancesRoot(t *testing.T) {
	alice, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := curve.GenerateKeyPair()
	require.NoError(t, err)

	s := New()
	s.EphemeralKeyPair = *alice
	oldRoot := s.RootKey

	require.NoError(t, DHRatchet(s, bob.Public, true))
	require.NotEqual(t, oldRoot, s.RootKey)
	require.NotNil(t, s.SendingChain())
	require.EqualValues(t, -1, s.SendingChain().ChainKey.Counter)
}

func TestMaybeStepRatchetIsIdempotentForSameEphemeral(t *testing.T) {
	alice, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := curve.GenerateKeyPair()
	require.NoError(t, err)

	s := New()
	s.EphemeralKeyPair = *alice
	require.NoError(t, DHRatchet(s, bob.Public, false))

	before := s.ReceivingChain(bob.Public)
	require.NoError(t, MaybeStepRatchet(s, bob.Public, 0, metrics.Noop()))
	after := s.ReceivingChain(bob.Public)
	require.Same(t, before, after)
}

func TestMaybeStepRatchetInstallsFreshSendingChain(t *testing.T) {
	alice, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := curve.GenerateKeyPair()
	require.NoError(t, err)

	s := New()
	s.EphemeralKeyPair = *alice
	require.NoError(t, DHRatchet(s, bob.Public, true))
	oldSendingKey := s.EphemeralKeyPair.Public

	require.NoError(t, MaybeStepRatchet(s, bob.Public, 0, metrics.Noop()))

	require.Nil(t, s.ReceivingChain(oldSendingKey)) // old sending chain deleted, not kept as a receiving chain
	require.NotEqual(t, oldSendingKey, s.EphemeralKeyPair.Public)
	require.NotNil(t, s.SendingChain())
	require.NotNil(t, s.ReceivingChain(bob.Public))
	require.True(t, s.HasLastRemoteEphemeralKey)
	require.Equal(t, bob.Public, s.LastRemoteEphemeralKey)
}
