package ratchetstate

import (
	"github.com/ratchetproto/signalcore/primitives"
	"github.com/ratchetproto/signalcore/signalerr"
)

// chainKeyStep advances a chain key one step and returns the next
// chain key alongside the message key seed for the step just taken.
// nextChainKey = HMAC(key, 0x02); messageKeySeed = HMAC(key, 0x01).
// This is the single-byte-HMAC schedule; the HKDF-based alternative
// some ports carry is not used here.
func chainKeyStep(key [32]byte) (nextKey [32]byte, messageKeySeed [32]byte) {
	mkSeed := primitives.HMACSHA256(key[:], []byte{0x01})
	nk := primitives.HMACSHA256(key[:], []byte{0x02})
	copy(nextKey[:], nk)
	copy(messageKeySeed[:], mkSeed)
	return nextKey, messageKeySeed
}

// FillMessageKeys advances chain up to target, caching each derived
// message key seed under its counter. It is a no-op if the chain
// already covers target.
func FillMessageKeys(chain *Chain, target uint32) error {
	current := int64(chain.ChainKey.Counter)
	want := int64(target)
	if current >= want {
		return nil
	}
	if want-current > int64(MaxMessageKeys) {
		return &signalerr.SessionError{Op: "fillMessageKeys", Msg: "over 2000 into the future"}
	}
	if chain.ChainKey.Closed {
		return &signalerr.SessionError{Op: "fillMessageKeys", Msg: "chain closed"}
	}

	key := chain.ChainKey.Key
	for current < want {
		nextKey, seed := chainKeyStep(key)
		current++
		chain.MessageKeys[uint32(current)] = seed
		key = nextKey
	}
	chain.ChainKey.Key = key
	chain.ChainKey.Counter = int32(current)
	return nil
}

// DeriveMessageKey expands a message key seed into the cipher key,
// MAC key, and IV used for exactly one message.
func DeriveMessageKey(seed [32]byte) (cipherKey [32]byte, macKey [32]byte, iv [16]byte, err error) {
	var zero [32]byte
	chunks, err := primitives.HKDF(seed[:], zero[:], []byte("WhisperMessageKeys"), 3)
	if err != nil {
		return cipherKey, macKey, iv, err
	}
	copy(cipherKey[:], chunks[0])
	copy(macKey[:], chunks[1])
	copy(iv[:], chunks[2][:16])
	return cipherKey, macKey, iv, nil
}
