package ratchetstate

import (
	"github.com/ratchetproto/signalcore/curve"
	"github.com/ratchetproto/signalcore/metrics"
	"github.com/ratchetproto/signalcore/primitives"
)

// DHRatchet performs one Diffie-Hellman ratchet step, installing a
// fresh chain keyed under our public key (sending) or the remote
// ephemeral (receiving), and advancing the root key.
func DHRatchet(s *State, remoteEphemeral [curve.PublicKeySize]byte, sending bool) error {
	shared, err := curve.Agree(&remoteEphemeral, &s.EphemeralKeyPair.Private)
	if err != nil {
		return err
	}
	chunks, err := primitives.HKDF(shared, s.RootKey[:], []byte("WhisperRatchet"), 2)
	if err != nil {
		return err
	}
	var newRoot, newChainSeed [32]byte
	copy(newRoot[:], chunks[0])
	copy(newChainSeed[:], chunks[1])

	typ := Sending
	key := s.EphemeralKeyPair.Public
	if !sending {
		typ = Receiving
		key = remoteEphemeral
	}
	s.SetChain(key, newChain(typ, newChainSeed))
	s.RootKey = newRoot
	return nil
}

// MaybeStepRatchet performs the full DH ratchet transition triggered
// by receiving a message whose ephemeral key we have not installed a
// receiving chain for yet. It is a no-op if that chain already
// exists. mc, which may be metrics.Noop() (or nil), is reported one
// ratchet step for every transition actually performed.
func MaybeStepRatchet(s *State, remoteEphemeral [curve.PublicKeySize]byte, theirPreviousCounter uint32, mc *metrics.Collector) error {
	if s.ReceivingChain(remoteEphemeral) != nil {
		return nil
	}

	if s.HasLastRemoteEphemeralKey {
		if prior := s.ReceivingChain(s.LastRemoteEphemeralKey); prior != nil {
			if err := FillMessageKeys(prior, theirPreviousCounter); err != nil {
				return err
			}
			prior.ChainKey.Key = [32]byte{}
			prior.ChainKey.Closed = true
		}
	}

	if err := DHRatchet(s, remoteEphemeral, false); err != nil {
		return err
	}

	oldSendingKey := s.EphemeralKeyPair.Public
	if oldSending := s.SendingChain(); oldSending != nil {
		if oldSending.ChainKey.Counter >= 0 {
			s.PreviousCounter = uint32(oldSending.ChainKey.Counter)
		} else {
			s.PreviousCounter = 0
		}
	}
	s.DeleteChain(oldSendingKey)

	newPair, err := curve.GenerateKeyPair()
	if err != nil {
		return err
	}
	s.EphemeralKeyPair = *newPair

	if err := DHRatchet(s, remoteEphemeral, true); err != nil {
		return err
	}

	s.LastRemoteEphemeralKey = remoteEphemeral
	s.HasLastRemoteEphemeralKey = true
	mc.RatchetStepped()
	return nil
}
