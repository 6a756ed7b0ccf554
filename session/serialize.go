package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ratchetproto/signalcore/curve"
	"github.com/ratchetproto/signalcore/ratchetstate"
)

// document is the stable persisted form: {version, _sessions: {base64
// key -> entry}}. Field names are part of the wire contract.
type document struct {
	Version  string               `json:"version"`
	Sessions map[string]stateDoc  `json:"_sessions"`
	Order    []string             `json:"_order"`
}

type chainKeyDoc struct {
	Counter int32  `json:"counter"`
	Key     string `json:"key"`
	Closed  bool   `json:"closed"`
}

type chainDoc struct {
	Type        int               `json:"type"`
	ChainKey    chainKeyDoc       `json:"chainKey"`
	MessageKeys map[string]string `json:"messageKeys"`
}

type pendingPreKeyDoc struct {
	BaseKey     string  `json:"baseKey"`
	SignedKeyID uint32  `json:"signedKeyId"`
	PreKeyID    *uint32 `json:"preKeyId,omitempty"`
}

type indexInfoDoc struct {
	BaseKey           string `json:"baseKey"`
	BaseKeyType       int    `json:"baseKeyType"`
	Closed            int64  `json:"closed"`
	Used              int64  `json:"used"`
	Created           int64  `json:"created"`
	RemoteIdentityKey string `json:"remoteIdentityKey"`
}

type stateDoc struct {
	RootKey                   string               `json:"rootKey"`
	Chains                    map[string]chainDoc  `json:"chains"`
	EphemeralPrivate          string               `json:"ephemeralPrivate"`
	EphemeralPublic           string               `json:"ephemeralPublic"`
	LastRemoteEphemeralKey    string               `json:"lastRemoteEphemeralKey,omitempty"`
	HasLastRemoteEphemeralKey bool                 `json:"hasLastRemoteEphemeralKey"`
	PreviousCounter           uint32               `json:"previousCounter"`
	PendingPreKey             *pendingPreKeyDoc    `json:"pendingPreKey,omitempty"`
	IndexInfo                 indexInfoDoc         `json:"indexInfo"`
	RegistrationID            uint32               `json:"registrationId"`
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func unb64Fixed(s string, out []byte) error {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("session: bad base64: %w", err)
	}
	if len(b) != len(out) {
		return fmt.Errorf("session: expected %d bytes, got %d", len(out), len(b))
	}
	copy(out, b)
	return nil
}

func stateToDoc(s *ratchetstate.State) stateDoc {
	d := stateDoc{
		RootKey:                   b64(s.RootKey[:]),
		Chains:                    make(map[string]chainDoc, len(s.Chains())),
		EphemeralPrivate:          b64(s.EphemeralKeyPair.Private[:]),
		EphemeralPublic:           b64(s.EphemeralKeyPair.Public[:]),
		HasLastRemoteEphemeralKey: s.HasLastRemoteEphemeralKey,
		PreviousCounter:           s.PreviousCounter,
		RegistrationID:            s.RegistrationID,
		IndexInfo: indexInfoDoc{
			BaseKey:           b64(s.IndexInfo.BaseKey[:]),
			BaseKeyType:       int(s.IndexInfo.BaseKeyType),
			Closed:            s.IndexInfo.Closed,
			Used:              s.IndexInfo.Used,
			Created:           s.IndexInfo.Created,
			RemoteIdentityKey: b64(s.IndexInfo.RemoteIdentityKey[:]),
		},
	}
	if s.HasLastRemoteEphemeralKey {
		d.LastRemoteEphemeralKey = b64(s.LastRemoteEphemeralKey[:])
	}
	if s.PendingPreKey != nil {
		d.PendingPreKey = &pendingPreKeyDoc{
			BaseKey:     b64(s.PendingPreKey.BaseKey[:]),
			SignedKeyID: s.PendingPreKey.SignedKeyID,
			PreKeyID:    s.PendingPreKey.PreKeyID,
		}
	}
	for key, chain := range s.Chains() {
		mk := make(map[string]string, len(chain.MessageKeys))
		for counter, seed := range chain.MessageKeys {
			mk[fmt.Sprint(counter)] = b64(seed[:])
		}
		d.Chains[b64(key[:])] = chainDoc{
			Type: int(chain.Type),
			ChainKey: chainKeyDoc{
				Counter: chain.ChainKey.Counter,
				Key:     b64(chain.ChainKey.Key[:]),
				Closed:  chain.ChainKey.Closed,
			},
			MessageKeys: mk,
		}
	}
	return d
}

func docToState(d stateDoc) (*ratchetstate.State, error) {
	s := ratchetstate.New()
	if err := unb64Fixed(d.RootKey, s.RootKey[:]); err != nil {
		return nil, err
	}
	if err := unb64Fixed(d.EphemeralPrivate, s.EphemeralKeyPair.Private[:]); err != nil {
		return nil, err
	}
	if err := unb64Fixed(d.EphemeralPublic, s.EphemeralKeyPair.Public[:]); err != nil {
		return nil, err
	}
	s.HasLastRemoteEphemeralKey = d.HasLastRemoteEphemeralKey
	if d.HasLastRemoteEphemeralKey {
		if err := unb64Fixed(d.LastRemoteEphemeralKey, s.LastRemoteEphemeralKey[:]); err != nil {
			return nil, err
		}
	}
	s.PreviousCounter = d.PreviousCounter
	s.RegistrationID = d.RegistrationID

	if err := unb64Fixed(d.IndexInfo.BaseKey, s.IndexInfo.BaseKey[:]); err != nil {
		return nil, err
	}
	if err := unb64Fixed(d.IndexInfo.RemoteIdentityKey, s.IndexInfo.RemoteIdentityKey[:]); err != nil {
		return nil, err
	}
	s.IndexInfo.BaseKeyType = ratchetstate.BaseKeyType(d.IndexInfo.BaseKeyType)
	s.IndexInfo.Closed = d.IndexInfo.Closed
	s.IndexInfo.Used = d.IndexInfo.Used
	s.IndexInfo.Created = d.IndexInfo.Created

	if d.PendingPreKey != nil {
		pp := &ratchetstate.PendingPreKey{
			SignedKeyID: d.PendingPreKey.SignedKeyID,
			PreKeyID:    d.PendingPreKey.PreKeyID,
		}
		if err := unb64Fixed(d.PendingPreKey.BaseKey, pp.BaseKey[:]); err != nil {
			return nil, err
		}
		s.PendingPreKey = pp
	}

	for keyB64, cd := range d.Chains {
		var key [curve.PublicKeySize]byte
		if err := unb64Fixed(keyB64, key[:]); err != nil {
			return nil, err
		}
		chain := &ratchetstate.Chain{
			Type: ratchetstate.ChainType(cd.Type),
			ChainKey: ratchetstate.ChainKey{
				Counter: cd.ChainKey.Counter,
				Closed:  cd.ChainKey.Closed,
			},
			MessageKeys: make(map[uint32][32]byte, len(cd.MessageKeys)),
		}
		if err := unb64Fixed(cd.ChainKey.Key, chain.ChainKey.Key[:]); err != nil {
			return nil, err
		}
		for counterStr, seedB64 := range cd.MessageKeys {
			var counter uint32
			if _, err := fmt.Sscan(counterStr, &counter); err != nil {
				return nil, fmt.Errorf("session: bad message key counter %q: %w", counterStr, err)
			}
			var seed [32]byte
			if err := unb64Fixed(seedB64, seed[:]); err != nil {
				return nil, err
			}
			chain.MessageKeys[counter] = seed
		}
		s.SetChain(key, chain)
	}

	return s, nil
}

// Serialize renders the record to its stable persisted form.
func (r *Record) Serialize() ([]byte, error) {
	d := document{
		Version:  RecordVersion,
		Sessions: make(map[string]stateDoc, len(r.order)),
		Order:    append([]string(nil), r.order...),
	}
	for _, k := range r.order {
		d.Sessions[k] = stateToDoc(r.sessions[k])
	}
	return json.Marshal(d)
}

// Deserialize parses a record from its persisted form after passing it
// through migrate, which reads version-less documents as v1 and
// rejects any other version.
func Deserialize(data []byte) (*Record, error) {
	migrated, err := migrate(data)
	if err != nil {
		return nil, err
	}
	var d document
	if err := json.Unmarshal(migrated, &d); err != nil {
		return nil, fmt.Errorf("session: deserialize: %w", err)
	}
	r := NewRecord()
	order := d.Order
	if len(order) == 0 {
		for k := range d.Sessions {
			order = append(order, k)
		}
	}
	for _, k := range order {
		sd, ok := d.Sessions[k]
		if !ok {
			continue
		}
		st, err := docToState(sd)
		if err != nil {
			return nil, err
		}
		r.order = append(r.order, k)
		r.sessions[k] = st
	}
	return r, nil
}
