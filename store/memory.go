package store

import (
	"context"
	"sync"

	"github.com/ratchetproto/signalcore/curve"
	"github.com/ratchetproto/signalcore/protocol"
	"github.com/ratchetproto/signalcore/session"
)

// Memory is an in-process Store, useful for tests and for a single
// short-lived process that doesn't need durability.
type Memory struct {
	mu sync.Mutex

	identity       IdentityKeyPair
	registrationID uint32

	sessions map[string][]byte // serialized session.Record, keyed by protocol.Address.String()

	preKeys       map[uint32]*PreKey
	signedPreKeys map[uint32]*SignedPreKey

	// trusted, when non-nil, overrides IsTrustedIdentity per peer id;
	// absent entries default to trust-on-first-use (true).
	trusted map[string]bool
}

var _ Store = (*Memory)(nil)

// NewMemory returns a Memory store seeded with our identity and
// registration id.
func NewMemory(identity IdentityKeyPair, registrationID uint32) *Memory {
	return &Memory{
		identity:       identity,
		registrationID: registrationID,
		sessions:       make(map[string][]byte),
		preKeys:        make(map[uint32]*PreKey),
		signedPreKeys:  make(map[uint32]*SignedPreKey),
		trusted:        make(map[string]bool),
	}
}

func (m *Memory) LoadSession(_ context.Context, addr protocol.Address) (*session.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.sessions[addr.String()]
	if !ok {
		return nil, nil
	}
	return session.Deserialize(data)
}

func (m *Memory) StoreSession(_ context.Context, addr protocol.Address, record *session.Record) error {
	data, err := record.Serialize()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[addr.String()] = data
	return nil
}

// SetTrusted overrides the trust decision for a peer id. Tests use
// this to simulate trust revocation (scenario S6).
func (m *Memory) SetTrusted(id string, trusted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trusted[id] = trusted
}

func (m *Memory) IsTrustedIdentity(_ context.Context, id string, _ [curve.PublicKeySize]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.trusted[id]; ok {
		return v, nil
	}
	return true, nil
}

func (m *Memory) PutPreKey(pk *PreKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preKeys[pk.ID] = pk
}

func (m *Memory) LoadPreKey(_ context.Context, id uint32) (*PreKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, ok := m.preKeys[id]
	if !ok {
		return nil, nil
	}
	return pk, nil
}

func (m *Memory) RemovePreKey(_ context.Context, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.preKeys, id)
	return nil
}

func (m *Memory) PutSignedPreKey(spk *SignedPreKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signedPreKeys[spk.ID] = spk
}

func (m *Memory) LoadSignedPreKey(_ context.Context, id uint32) (*SignedPreKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	spk, ok := m.signedPreKeys[id]
	if !ok {
		return nil, nil
	}
	return spk, nil
}

func (m *Memory) GetOurIdentity(_ context.Context) (IdentityKeyPair, error) {
	return m.identity, nil
}

func (m *Memory) GetOurRegistrationID(_ context.Context) (uint32, error) {
	return m.registrationID, nil
}
