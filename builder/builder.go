package builder

import (
	"context"
	"time"

	"github.com/ratchetproto/signalcore/curve"
	"github.com/ratchetproto/signalcore/metrics"
	"github.com/ratchetproto/signalcore/primitives"
	"github.com/ratchetproto/signalcore/protocol"
	"github.com/ratchetproto/signalcore/ratchetstate"
	"github.com/ratchetproto/signalcore/session"
	"github.com/ratchetproto/signalcore/signalerr"
	"github.com/ratchetproto/signalcore/store"
)

// masterKeyPrefix is prepended to the concatenated X3DH DH outputs
// before HKDF expansion, per the Signal X3DH construction.
var masterKeyPrefix = func() [32]byte {
	var p [32]byte
	for i := range p {
		p[i] = 0xFF
	}
	return p
}()

// Builder constructs sessions for a single remote address.
type Builder struct {
	store   store.Store
	addr    protocol.Address
	metrics *metrics.Collector
}

// New returns a Builder for addr, backed by st. mc may be
// metrics.Noop() (or nil) to disable reporting.
func New(st store.Store, addr protocol.Address, mc *metrics.Collector) *Builder {
	return &Builder{store: st, addr: addr, metrics: mc}
}

// InitOutgoing constructs a new session against bundle and files it in
// record as the open session (closing any session currently open).
func (b *Builder) InitOutgoing(ctx context.Context, record *session.Record, bundle PreKeyBundle) (*ratchetstate.State, error) {
	if !curve.Verify(&bundle.IdentityKey, bundle.SignedPreKeyPublic[:], bundle.SignedPreKeySignature[:]) {
		return nil, &signalerr.InvalidSignatureError{Msg: "signed prekey signature does not verify against bundle identity key"}
	}

	ourIdentity, err := b.store.GetOurIdentity(ctx)
	if err != nil {
		return nil, err
	}

	baseKeyPair, err := curve.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	a, err := curve.Agree(&bundle.SignedPreKeyPublic, &ourIdentity.Private)
	if err != nil {
		return nil, err
	}
	bb, err := curve.Agree(&bundle.IdentityKey, &baseKeyPair.Private)
	if err != nil {
		return nil, err
	}
	c, err := curve.Agree(&bundle.SignedPreKeyPublic, &baseKeyPair.Private)
	if err != nil {
		return nil, err
	}

	master := append([]byte(nil), masterKeyPrefix[:]...)
	master = append(master, a...)
	master = append(master, bb...)
	master = append(master, c...)
	if bundle.PreKeyID != nil && bundle.PreKeyPublic != nil {
		d, err := curve.Agree(bundle.PreKeyPublic, &baseKeyPair.Private)
		if err != nil {
			return nil, err
		}
		master = append(master, d...)
	}

	var zero [32]byte
	chunks, err := primitives.HKDF(master, zero[:], []byte("WhisperText"), 2)
	if err != nil {
		return nil, err
	}
	var rootKey, chainSeed [32]byte
	copy(rootKey[:], chunks[0])
	copy(chainSeed[:], chunks[1])

	// The base key doubles as the first sending ratchet key: the peer
	// files its initial receiving chain under our base key, so frames
	// sent on this chain must carry it as their ephemeral key.
	state := ratchetstate.New()
	state.RootKey = rootKey
	state.EphemeralKeyPair = *baseKeyPair
	state.InstallInitialSendingChain(chainSeed)
	state.RegistrationID = bundle.RegistrationID
	state.IndexInfo = ratchetstate.IndexInfo{
		BaseKey:           baseKeyPair.Public,
		BaseKeyType:       ratchetstate.OURS,
		Closed:            -1,
		Created:           time.Now().Unix(),
		RemoteIdentityKey: bundle.IdentityKey,
	}
	state.PendingPreKey = &ratchetstate.PendingPreKey{
		BaseKey:     baseKeyPair.Public,
		SignedKeyID: bundle.SignedPreKeyID,
		PreKeyID:    bundle.PreKeyID,
	}

	record.CloseCurrentSession()
	record.PutSession(state)
	b.retireOldSessions(record)
	return state, nil
}

// retireOldSessions evicts sessions beyond session.MaxRetiredSessions
// and reports each eviction, keeping the retirement invariant enforced
// on every real session-building call rather than only in its own
// unit test.
func (b *Builder) retireOldSessions(record *session.Record) {
	removed := record.RemoveOldSessions()
	for i := 0; i < removed; i++ {
		b.metrics.SessionRetired()
	}
}

// InitIncoming constructs the mirrored session from an inbound PreKey
// message, files it in record under the peer's base key (closing any
// prior open session), and returns the one-time prekey id consumed,
// if any, so the caller can remove it from storage.
func (b *Builder) InitIncoming(ctx context.Context, record *session.Record, msg protocol.PreKeyWhisperMessage) (*ratchetstate.State, *uint32, error) {
	signedPreKey, err := b.store.LoadSignedPreKey(ctx, msg.SignedPreKeyID)
	if err != nil {
		return nil, nil, err
	}
	if signedPreKey == nil {
		return nil, nil, &signalerr.InvalidKeyIdError{ID: msg.SignedPreKeyID}
	}

	var oneTimePreKey *store.PreKey
	var consumedID *uint32
	if msg.PreKeyID != nil {
		oneTimePreKey, err = b.store.LoadPreKey(ctx, *msg.PreKeyID)
		if err != nil {
			return nil, nil, err
		}
		if oneTimePreKey == nil {
			// The prekey is already gone, either consumed by us on a
			// prior delivery of this same handshake or invalid. If we
			// already built this exact session, this is a retransmit:
			// reuse it verbatim rather than re-deriving with a
			// different X3DH quadruple (no D term this time).
			if existing := record.GetSession(msg.BaseKey); existing != nil {
				return existing, nil, nil
			}
			return nil, nil, &signalerr.PreKeyError{Msg: "referenced one-time prekey not found"}
		}
		consumedID = msg.PreKeyID
	}

	ourIdentity, err := b.store.GetOurIdentity(ctx)
	if err != nil {
		return nil, nil, err
	}

	aPrime, err := curve.Agree(&msg.IdentityKey, &signedPreKey.KeyPair.Private)
	if err != nil {
		return nil, nil, err
	}
	bPrime, err := curve.Agree(&msg.BaseKey, &ourIdentity.Private)
	if err != nil {
		return nil, nil, err
	}
	cPrime, err := curve.Agree(&msg.BaseKey, &signedPreKey.KeyPair.Private)
	if err != nil {
		return nil, nil, err
	}

	master := append([]byte(nil), masterKeyPrefix[:]...)
	master = append(master, aPrime...)
	master = append(master, bPrime...)
	master = append(master, cPrime...)
	if oneTimePreKey != nil {
		dPrime, err := curve.Agree(&msg.BaseKey, &oneTimePreKey.KeyPair.Private)
		if err != nil {
			return nil, nil, err
		}
		master = append(master, dPrime...)
	}

	var zero [32]byte
	chunks, err := primitives.HKDF(master, zero[:], []byte("WhisperText"), 2)
	if err != nil {
		return nil, nil, err
	}
	var rootKey, chainSeed [32]byte
	copy(rootKey[:], chunks[0])
	copy(chainSeed[:], chunks[1])

	state := ratchetstate.New()
	state.RootKey = rootKey
	state.InstallInitialReceivingChain(msg.BaseKey, chainSeed)

	newEphemeral, err := curve.GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	state.EphemeralKeyPair = *newEphemeral
	if err := ratchetstate.DHRatchet(state, msg.BaseKey, true); err != nil {
		return nil, nil, err
	}
	b.metrics.RatchetStepped()
	state.LastRemoteEphemeralKey = msg.BaseKey
	state.HasLastRemoteEphemeralKey = true

	state.RegistrationID = msg.RegistrationID
	state.IndexInfo = ratchetstate.IndexInfo{
		BaseKey:           msg.BaseKey,
		BaseKeyType:       ratchetstate.THEIRS,
		Closed:            -1,
		Created:           time.Now().Unix(),
		RemoteIdentityKey: msg.IdentityKey,
	}

	record.CloseCurrentSession()
	record.PutSession(state)
	b.retireOldSessions(record)
	return state, consumedID, nil
}
