// Package curve implements the Diffie-Hellman agreement and signature
// primitives X3DH and the Double Ratchet are built on.
//
// A single 32-byte clamped scalar is the private key. Public is the
// real X25519 basepoint multiple of that scalar — the same shape the
// teacher's djb.go backend produces via curve25519.X25519(key,
// curve25519.Basepoint) — so Agree is a plain X25519 Diffie-Hellman
// between two genuinely related key pairs.
//
// Signing reuses that same Montgomery scalar as an XEdDSA signing key:
// the scalar doubles as an Ed25519 scalar (X25519 and Ed25519 clamping
// agree), its Edwards public point A = scalar*B is computed, and the
// scalar (and A) are negated mod the group order if A's canonical
// encoding has its sign bit set, so the Montgomery public key (which
// only ever encodes the sign-independent u-coordinate) is unaffected
// while A's encoding is always canonical. Verify reconstructs that
// same canonical A from the Montgomery public key via the standard
// birational map y = (u-1)/(u+1), forcing the sign bit to match.
package curve

import (
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
	"golang.org/x/crypto/curve25519"
)

// djbType is the leading byte marking a public key as Curve25519
// (DJB) key material in every wire-facing context.
const djbType = 0x05

// PublicKeySize is the length of the type-prefixed public key.
const PublicKeySize = 1 + 32

// PrivateKeySize is the length of the clamped private scalar.
const PrivateKeySize = 32

// SignatureSize is the XEdDSA signature length: a 32-byte R plus a
// 32-byte s, the same shape as a standard Ed25519 signature.
const SignatureSize = 64

// KeyPair is a complete (private, public) key pair. Public is always
// 33 bytes: 0x05 followed by the 32-byte Curve25519 u-coordinate.
type KeyPair struct {
	Private [PrivateKeySize]byte
	Public  [PublicKeySize]byte
}

// GenerateKeyPair creates a new key pair, clamping the private scalar
// per the Curve25519 convention and deriving the type-prefixed public
// key as the real X25519 basepoint multiple of that scalar.
func GenerateKeyPair() (*KeyPair, error) {
	var seed [PrivateKeySize]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return nil, fmt.Errorf("curve: generate: %w", err)
	}
	clamp(seed[:])

	pub, err := curve25519.X25519(seed[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("curve: generate: %w", err)
	}

	kp := &KeyPair{Private: seed}
	kp.Public[0] = djbType
	copy(kp.Public[1:], pub)
	return kp, nil
}

func clamp(priv []byte) {
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
}

// Agree computes the X25519 shared secret between ourPriv and
// theirPub, stripping the type-prefix from theirPub first.
func Agree(theirPub *[PublicKeySize]byte, ourPriv *[PrivateKeySize]byte) ([]byte, error) {
	if theirPub[0] != djbType {
		return nil, errors.New("curve: unsupported public key type")
	}
	secret, err := curve25519.X25519(ourPriv[:], theirPub[1:])
	if err != nil {
		return nil, fmt.Errorf("curve: agree: %w", err)
	}
	return secret, nil
}

// edwardsKeyPair derives the canonical (sign-bit 0) Edwards scalar and
// public point for priv, negating both if the natural encoding of
// scalar*B would otherwise carry a set sign bit.
func edwardsKeyPair(priv *[PrivateKeySize]byte) (*edwards25519.Scalar, *edwards25519.Point, error) {
	scalar, err := edwards25519.NewScalar().SetBytesWithClamping(priv[:])
	if err != nil {
		return nil, nil, fmt.Errorf("curve: derive signing scalar: %w", err)
	}
	a := new(edwards25519.Point).ScalarBaseMult(scalar)
	if a.Bytes()[31]&0x80 != 0 {
		scalar = edwards25519.NewScalar().Negate(scalar)
		a = new(edwards25519.Point).ScalarBaseMult(scalar)
	}
	return scalar, a, nil
}

// montgomeryToEdwards recovers the canonical (sign-bit 0) Edwards
// point sharing Montgomery public key u, via y = (u-1)/(u+1) — the
// birational map between the Curve25519 and Ed25519 curve forms.
func montgomeryToEdwards(u []byte) (*edwards25519.Point, error) {
	var uBytes [32]byte
	copy(uBytes[:], u)
	uBytes[31] &= 0x7F // RFC 7748 u-coordinate decode: mask the unused high bit

	uElem, err := new(field.Element).SetBytes(uBytes[:])
	if err != nil {
		return nil, fmt.Errorf("curve: decode u-coordinate: %w", err)
	}
	one := new(field.Element).One()
	num := new(field.Element).Subtract(uElem, one)
	den := new(field.Element).Add(uElem, one)
	y := new(field.Element).Multiply(num, new(field.Element).Invert(den))

	yBytes := y.Bytes()
	yBytes[31] &= 0x7F // canonical sign bit 0, matching edwardsKeyPair's convention

	a, err := new(edwards25519.Point).SetBytes(yBytes)
	if err != nil {
		return nil, fmt.Errorf("curve: recover edwards point: %w", err)
	}
	return a, nil
}

// Sign produces an XEdDSA signature of message using priv's Montgomery
// scalar reinterpreted as an Ed25519 signing key.
func Sign(priv *[PrivateKeySize]byte, message []byte) ([]byte, error) {
	scalar, a, err := edwardsKeyPair(priv)
	if err != nil {
		return nil, err
	}
	encodedA := a.Bytes()

	var z [64]byte
	if _, err := io.ReadFull(rand.Reader, z[:]); err != nil {
		return nil, fmt.Errorf("curve: sign: %w", err)
	}

	nonceHash := sha512.New()
	nonceHash.Write([]byte{0xFE})
	nonceHash.Write(scalar.Bytes())
	nonceHash.Write(z[:])
	nonceHash.Write(message)
	r, err := edwards25519.NewScalar().SetUniformBytes(nonceHash.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("curve: sign: derive nonce: %w", err)
	}

	rPoint := new(edwards25519.Point).ScalarBaseMult(r)
	rBytes := rPoint.Bytes()

	challengeHash := sha512.New()
	challengeHash.Write(rBytes)
	challengeHash.Write(encodedA)
	challengeHash.Write(message)
	h, err := edwards25519.NewScalar().SetUniformBytes(challengeHash.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("curve: sign: derive challenge: %w", err)
	}

	s := edwards25519.NewScalar().MultiplyAdd(h, scalar, r)

	sig := make([]byte, 0, SignatureSize)
	sig = append(sig, rBytes...)
	sig = append(sig, s.Bytes()...)
	return sig, nil
}

// Verify checks an XEdDSA signature produced by Sign, using pub's
// Curve25519 u-coordinate converted back to its canonical Edwards
// form. Verify fails closed (returns false) on any malformed input
// rather than panicking.
func Verify(pub *[PublicKeySize]byte, message, signature []byte) bool {
	if pub[0] != djbType {
		return false
	}
	if len(signature) != SignatureSize {
		return false
	}

	a, err := montgomeryToEdwards(pub[1:])
	if err != nil {
		return false
	}
	encodedA := a.Bytes()

	rBytes := signature[:32]
	s, err := edwards25519.NewScalar().SetCanonicalBytes(signature[32:64])
	if err != nil {
		return false
	}

	challengeHash := sha512.New()
	challengeHash.Write(rBytes)
	challengeHash.Write(encodedA)
	challengeHash.Write(message)
	h, err := edwards25519.NewScalar().SetUniformBytes(challengeHash.Sum(nil))
	if err != nil {
		return false
	}

	negH := edwards25519.NewScalar().Negate(h)
	check := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(negH, a, s)

	var got, want [32]byte
	copy(got[:], check.Bytes())
	copy(want[:], rBytes)
	return got == want
}
