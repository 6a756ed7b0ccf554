package curve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAgreeIsSymmetric(t *testing.T) {
	alice, err := GenerateKeyPair()
	require.NoError(t, err)
	bob, err := GenerateKeyPair()
	require.NoError(t, err)

	secretA, err := Agree(&bob.Public, &alice.Private)
	require.NoError(t, err)
	secretB, err := Agree(&alice.Public, &bob.Private)
	require.NoError(t, err)

	require.Equal(t, secretA, secretB)
	require.Len(t, secretA, 32)
}

func TestAgreeRejectsUnknownKeyType(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	var bad [PublicKeySize]byte
	copy(bad[:], kp.Public[:])
	bad[0] = 0x07

	_, err = Agree(&bad, &kp.Private)
	require.Error(t, err)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("a prekey's public value")
	sig, err := Sign(&kp.Private, msg)
	require.NoError(t, err)
	require.Len(t, sig, SignatureSize)

	require.True(t, Verify(&kp.Public, msg, sig))
}

func TestVerifyFailsClosed(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	other, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("message")
	sig, err := Sign(&kp.Private, msg)
	require.NoError(t, err)

	require.False(t, Verify(&other.Public, msg, sig))

	tampered := append([]byte(nil), sig...)
	tampered[0] ^= 0xFF
	require.False(t, Verify(&kp.Public, msg, tampered))

	require.False(t, Verify(&kp.Public, msg, sig[:10]))
}
