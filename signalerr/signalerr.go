// Package signalerr defines the typed error tags the core state
// machine reports to callers. Every failure mode named in the
// external interface is its own type so callers can switch on
// errors.As instead of matching strings.
package signalerr

import "fmt"

// SessionError covers session-lifecycle failures that don't fit a
// more specific category: no record, no open session, a closed
// chain, a chain asked to fill more than MaxMessageKeys into the
// future.
type SessionError struct {
	Op  string
	Msg string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session: %s: %s", e.Op, e.Msg)
}

// UntrustedIdentityKeyError is raised when storage's trust query
// rejects the remote identity key bound to a session.
type UntrustedIdentityKeyError struct {
	ID  string
	Key []byte
}

func (e *UntrustedIdentityKeyError) Error() string {
	return fmt.Sprintf("untrusted identity key for %s", e.ID)
}

// MessageCounterError indicates a message key that was already
// consumed or was never derived into the chain's cache.
type MessageCounterError struct {
	Msg string
}

func (e *MessageCounterError) Error() string {
	return fmt.Sprintf("message counter: %s", e.Msg)
}

// InvalidSignatureError indicates a prekey bundle's signed prekey
// signature failed verification against the bundle's identity key.
type InvalidSignatureError struct {
	Msg string
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid signature: %s", e.Msg)
}

// InvalidKeyIdError indicates a referenced prekey or signed prekey id
// is not present in storage.
type InvalidKeyIdError struct {
	ID uint32
}

func (e *InvalidKeyIdError) Error() string {
	return fmt.Sprintf("invalid key id: %d", e.ID)
}

// MacError indicates a frame's MAC failed constant-time verification.
type MacError struct {
	Msg string
}

func (e *MacError) Error() string {
	if e.Msg == "" {
		return "mac verification failed"
	}
	return fmt.Sprintf("mac verification failed: %s", e.Msg)
}

// DecryptError indicates AES-CBC decryption or its padding check
// failed.
type DecryptError struct {
	Msg string
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("decrypt: %s", e.Msg)
}

// PreKeyError indicates a one-time or signed prekey could not be
// fetched, was already consumed, or otherwise could not support a
// session build.
type PreKeyError struct {
	Msg string
}

func (e *PreKeyError) Error() string {
	return fmt.Sprintf("prekey: %s", e.Msg)
}
