// Package primitives implements the low-level cryptographic building
// blocks used throughout signalcore: AES-256-CBC with PKCS#7 padding,
// HMAC-SHA-256, SHA-512, and a bounded HKDF-SHA-256 expansion.
//
// Nothing here is Signal-specific; higher packages compose these the
// way the Double Ratchet and X3DH specs require.
package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for malformed inputs: wrong key/IV
// sizes, an out-of-range HKDF chunk count, or a bad HKDF salt length.
var ErrInvalidArgument = errors.New("primitives: invalid argument")

// DecryptError is returned when AES-CBC decryption fails, typically
// because the padding is malformed.
type DecryptError struct {
	Msg string
}

func (e *DecryptError) Error() string { return "primitives: decrypt: " + e.Msg }

// Encrypt AES-256-CBC-encrypts data with PKCS#7 padding. key must be 32
// bytes and iv must be 16 bytes.
func Encrypt(key, data, iv []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: key must be 32 bytes, got %d", ErrInvalidArgument, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrInvalidArgument, aes.BlockSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("primitives: new cipher: %w", err)
	}

	padded := pkcs7Pad(data, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// Decrypt AES-256-CBC-decrypts data and strips PKCS#7 padding. key must
// be 32 bytes and iv must be 16 bytes.
func Decrypt(key, data, iv []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: key must be 32 bytes, got %d", ErrInvalidArgument, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrInvalidArgument, aes.BlockSize, len(iv))
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, &DecryptError{Msg: "ciphertext is not a multiple of the block size"}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("primitives: new cipher: %w", err)
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return nil, &DecryptError{Msg: err.Error()}
	}
	return plain, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > blockSize || padLen > n {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[n-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:n-padLen], nil
}

// HMACSHA256 returns HMAC-SHA-256(key, data).
func HMACSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// SHA512 returns SHA-512(data).
func SHA512(data []byte) []byte {
	sum := sha512.Sum512(data)
	return sum[:]
}

// HKDF expands input keying material into chunks 32-byte blocks via
// HKDF-SHA-256, using salt as the extract key and info as the expand
// label. chunks must be in [1, 3]; salt must be exactly 32 bytes.
//
// This mirrors the two-step HKDF-extract-then-expand construction by
// hand (rather than draining an io.Reader) so the exact number of
// HMAC invocations matches the Double Ratchet / X3DH specs precisely:
// PRK = HMAC(salt, input); T(1) = HMAC(PRK, info||0x01); T(i) =
// HMAC(PRK, T(i-1)||info||byte(i)).
func HKDF(input, salt, info []byte, chunks int) ([][]byte, error) {
	if len(salt) != 32 {
		return nil, fmt.Errorf("%w: salt must be 32 bytes, got %d", ErrInvalidArgument, len(salt))
	}
	if chunks < 1 || chunks > 3 {
		return nil, fmt.Errorf("%w: chunks must be in [1,3], got %d", ErrInvalidArgument, chunks)
	}

	prk := HMACSHA256(salt, input)

	out := make([][]byte, chunks)
	var prev []byte
	for i := 1; i <= chunks; i++ {
		mac := hmac.New(sha256.New, prk)
		mac.Write(prev)
		mac.Write(info)
		mac.Write([]byte{byte(i)})
		t := mac.Sum(nil)
		out[i-1] = t
		prev = t
	}
	return out, nil
}

// ConstantTimeEqual reports whether a and b are equal, in time
// independent of their contents (but not their lengths). Required for
// all MAC comparisons.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
