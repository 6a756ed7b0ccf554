// Package cipher implements SessionCipher: the encrypt/decrypt
// orchestration that steps chains, triggers the DH ratchet, binds
// frames to identity keys with a MAC, and persists the mutated
// session record after each call.
package cipher

import (
	"context"
	"fmt"
	"time"

	"github.com/ratchetproto/signalcore/builder"
	"github.com/ratchetproto/signalcore/metrics"
	"github.com/ratchetproto/signalcore/primitives"
	"github.com/ratchetproto/signalcore/protocol"
	"github.com/ratchetproto/signalcore/ratchetstate"
	"github.com/ratchetproto/signalcore/session"
	"github.com/ratchetproto/signalcore/signalerr"
	"github.com/ratchetproto/signalcore/store"
)

// SessionCipher is the encrypt/decrypt entry point for one remote
// address. Callers are expected to serialize calls against the same
// address themselves (see package queue) — nothing in SessionCipher
// takes a lock.
type SessionCipher struct {
	store   store.Store
	addr    protocol.Address
	builder *builder.Builder
	metrics *metrics.Collector
}

// New returns a SessionCipher for addr, backed by st. mc may be
// metrics.Noop() (or nil) to disable reporting.
func New(st store.Store, addr protocol.Address, mc *metrics.Collector) *SessionCipher {
	return &SessionCipher{store: st, addr: addr, builder: builder.New(st, addr, mc), metrics: mc}
}

// CiphertextMessage is the outer envelope SessionCipher produces: a
// message type tag, the encoded body, and the sender's registration
// id (present on every frame, used by PreKey-type decode paths).
type CiphertextMessage struct {
	Type           protocol.MessageType
	Body           []byte
	RegistrationID uint32
}

// Encrypt wraps plaintext for the current open session's sending
// chain, stepping it by one message.
func (c *SessionCipher) Encrypt(ctx context.Context, plaintext []byte) (*CiphertextMessage, error) {
	record, err := c.store.LoadSession(ctx, c.addr)
	if err != nil {
		return nil, err
	}
	if record == nil || record.OpenSession() == nil {
		return nil, &signalerr.SessionError{Op: "encrypt", Msg: "no sessions"}
	}
	sess := record.OpenSession()

	chain := sess.SendingChain()
	if chain == nil || chain.Type != ratchetstate.Sending {
		return nil, &signalerr.SessionError{Op: "encrypt", Msg: "no sending chain"}
	}

	trusted, err := c.store.IsTrustedIdentity(ctx, c.addr.ID, sess.IndexInfo.RemoteIdentityKey)
	if err != nil {
		return nil, err
	}
	if !trusted {
		return nil, &signalerr.UntrustedIdentityKeyError{ID: c.addr.ID, Key: sess.IndexInfo.RemoteIdentityKey[:]}
	}

	var target uint32
	if chain.ChainKey.Counter >= 0 {
		target = uint32(chain.ChainKey.Counter) + 1
	}
	if err := ratchetstate.FillMessageKeys(chain, target); err != nil {
		return nil, err
	}
	seed := chain.MessageKeys[target]
	delete(chain.MessageKeys, target)

	cipherKey, macKey, iv, err := ratchetstate.DeriveMessageKey(seed)
	if err != nil {
		return nil, err
	}

	ciphertext, err := primitives.Encrypt(cipherKey[:], plaintext, iv[:])
	if err != nil {
		return nil, err
	}

	whisper := protocol.WhisperMessage{
		EphemeralKey:    sess.EphemeralKeyPair.Public,
		Counter:         target,
		PreviousCounter: sess.PreviousCounter,
		Ciphertext:      ciphertext,
	}
	encoded := whisper.Encode()

	ourIdentity, err := c.store.GetOurIdentity(ctx)
	if err != nil {
		return nil, err
	}
	versionByte := protocol.VersionByte()

	macInput := append([]byte(nil), ourIdentity.Public[:]...)
	macInput = append(macInput, sess.IndexInfo.RemoteIdentityKey[:]...)
	macInput = append(macInput, versionByte)
	macInput = append(macInput, encoded...)
	mac := primitives.HMACSHA256(macKey[:], macInput)[:8]

	innerFrame := make([]byte, 0, 1+len(encoded)+8)
	innerFrame = append(innerFrame, versionByte)
	innerFrame = append(innerFrame, encoded...)
	innerFrame = append(innerFrame, mac...)

	registrationID, err := c.store.GetOurRegistrationID(ctx)
	if err != nil {
		return nil, err
	}
	result := &CiphertextMessage{RegistrationID: registrationID}
	if sess.PendingPreKey != nil {
		preKey := protocol.PreKeyWhisperMessage{
			RegistrationID: registrationID,
			PreKeyID:       sess.PendingPreKey.PreKeyID,
			SignedPreKeyID: sess.PendingPreKey.SignedKeyID,
			BaseKey:        sess.PendingPreKey.BaseKey,
			IdentityKey:    ourIdentity.Public,
			Message:        innerFrame,
		}
		body := make([]byte, 0, 1+128+len(innerFrame))
		body = append(body, versionByte)
		body = append(body, preKey.Encode()...)
		result.Type = protocol.PreKeyType
		result.Body = body
	} else {
		result.Type = protocol.WhisperType
		result.Body = innerFrame
	}

	if err := c.store.StoreSession(ctx, c.addr, record); err != nil {
		return nil, err
	}
	return result, nil
}

// DecryptWhisperMessage decrypts a bare WhisperMessage envelope,
// trying every session in most-recently-used order until one
// succeeds.
func (c *SessionCipher) DecryptWhisperMessage(ctx context.Context, body []byte) ([]byte, error) {
	record, err := c.store.LoadSession(ctx, c.addr)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &signalerr.SessionError{Op: "decryptWhisperMessage", Msg: "no session record"}
	}

	ourIdentity, err := c.store.GetOurIdentity(ctx)
	if err != nil {
		return nil, err
	}

	var firstErr error
	var winner *ratchetstate.State
	var plaintext []byte
	for _, sess := range record.GetSessions() {
		pt, err := doDecrypt(sess, body, ourIdentity.Public, c.metrics)
		if err == nil {
			winner = sess
			plaintext = pt
			break
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if winner == nil {
		return nil, &signalerr.SessionError{Op: "decryptWhisperMessage", Msg: fmt.Sprintf("no matching sessions: %v", firstErr)}
	}

	winner.IndexInfo.Used = time.Now().Unix()

	trusted, err := c.store.IsTrustedIdentity(ctx, c.addr.ID, winner.IndexInfo.RemoteIdentityKey)
	if err != nil {
		return nil, err
	}
	if !trusted {
		return nil, &signalerr.UntrustedIdentityKeyError{ID: c.addr.ID, Key: winner.IndexInfo.RemoteIdentityKey[:]}
	}

	if err := c.store.StoreSession(ctx, c.addr, record); err != nil {
		return nil, err
	}
	return plaintext, nil
}

// DecryptPreKeyWhisperMessage decrypts a PreKey-wrapped envelope,
// building the session first if this is the first message from a new
// peer.
func (c *SessionCipher) DecryptPreKeyWhisperMessage(ctx context.Context, body []byte) ([]byte, error) {
	if len(body) < 1 {
		return nil, &signalerr.SessionError{Op: "decryptPreKeyWhisperMessage", Msg: "empty frame"}
	}
	if _, _, err := protocol.ParseVersionByte(body[0]); err != nil {
		return nil, err
	}

	preKeyMsg, err := protocol.DecodePreKeyWhisperMessage(body[1:])
	if err != nil {
		return nil, err
	}

	record, err := c.store.LoadSession(ctx, c.addr)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = session.NewRecord()
	}

	sess, consumedID, err := c.builder.InitIncoming(ctx, record, preKeyMsg)
	if err != nil {
		return nil, err
	}

	ourIdentity, err := c.store.GetOurIdentity(ctx)
	if err != nil {
		return nil, err
	}

	plaintext, err := doDecrypt(sess, preKeyMsg.Message, ourIdentity.Public, c.metrics)
	if err != nil {
		return nil, err
	}

	if err := c.store.StoreSession(ctx, c.addr, record); err != nil {
		return nil, err
	}
	if consumedID != nil {
		if err := c.store.RemovePreKey(ctx, *consumedID); err != nil {
			return nil, err
		}
	}
	return plaintext, nil
}

// doDecrypt steps the ratchet as needed and decrypts a single inner
// frame (version byte, encoded WhisperMessage, 8-byte MAC) against
// sess. The message key selected by the frame's counter is removed
// from the chain's cache before the MAC check, so sess loses it on
// success and on any later failure (MAC or decryption) alike.
func doDecrypt(sess *ratchetstate.State, innerFrame []byte, ourIdentityPub [33]byte, mc *metrics.Collector) ([]byte, error) {
	if len(innerFrame) < 1+8 {
		return nil, &signalerr.SessionError{Op: "doDecrypt", Msg: "frame too short"}
	}
	versionByte := innerFrame[0]
	if _, _, err := protocol.ParseVersionByte(versionByte); err != nil {
		return nil, err
	}
	encoded := innerFrame[1 : len(innerFrame)-8]
	mac := innerFrame[len(innerFrame)-8:]

	msg, err := protocol.DecodeWhisperMessage(encoded)
	if err != nil {
		return nil, err
	}

	if err := ratchetstate.MaybeStepRatchet(sess, msg.EphemeralKey, msg.PreviousCounter, mc); err != nil {
		return nil, err
	}

	chain := sess.ReceivingChain(msg.EphemeralKey)
	if chain == nil || chain.Type != ratchetstate.Receiving {
		return nil, &signalerr.SessionError{Op: "doDecrypt", Msg: "no receiving chain for ephemeral key"}
	}

	if err := ratchetstate.FillMessageKeys(chain, msg.Counter); err != nil {
		return nil, err
	}
	seed, ok := chain.MessageKeys[msg.Counter]
	if !ok {
		return nil, &signalerr.MessageCounterError{Msg: "key used already or never filled"}
	}
	delete(chain.MessageKeys, msg.Counter)

	cipherKey, macKey, iv, err := ratchetstate.DeriveMessageKey(seed)
	if err != nil {
		return nil, err
	}

	macInput := append([]byte(nil), sess.IndexInfo.RemoteIdentityKey[:]...)
	macInput = append(macInput, ourIdentityPub[:]...)
	macInput = append(macInput, versionByte)
	macInput = append(macInput, encoded...)
	expected := primitives.HMACSHA256(macKey[:], macInput)[:8]
	if !primitives.ConstantTimeEqual(expected, mac) {
		return nil, &signalerr.MacError{}
	}

	plaintext, err := primitives.Decrypt(cipherKey[:], msg.Ciphertext, iv[:])
	if err != nil {
		return nil, &signalerr.DecryptError{Msg: err.Error()}
	}

	sess.PendingPreKey = nil
	return plaintext, nil
}
