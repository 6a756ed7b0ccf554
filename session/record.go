// Package session implements SessionRecord: the ordered collection of
// Double Ratchet sessions kept for a single remote address, their
// open/closed lifecycle, and LRU-style retirement of old sessions.
package session

import (
	"encoding/base64"
	"sort"
	"time"

	"github.com/ratchetproto/signalcore/curve"
	"github.com/ratchetproto/signalcore/ratchetstate"
)

// MaxRetiredSessions bounds how many closed sessions a record keeps
// beyond the single open one. A var, not a const, so config.Load can
// override it at startup (SIGNALCORE_MAX_RETIRED_SESSIONS); 40 is the
// protocol default.
var MaxRetiredSessions = 40

// RecordVersion is the persisted-form version tag. Documents without
// it are read as this version; any other version is rejected (see
// migrate).
const RecordVersion = "v1"

// Record is an ordered mapping from base-key bytes (base64-formed) to
// ratchet state. At most one entry has IndexInfo.Closed == -1.
type Record struct {
	order    []string // base64(baseKey), insertion order preserved for iteration stability
	sessions map[string]*ratchetstate.State
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{sessions: make(map[string]*ratchetstate.State)}
}

func keyFor(baseKey [curve.PublicKeySize]byte) string {
	return base64.StdEncoding.EncodeToString(baseKey[:])
}

// PutSession files state under its own IndexInfo.BaseKey, replacing
// any session already filed under that key. It closes nothing itself:
// callers filing a new open session call CloseCurrentSession first to
// keep at most one session open at a time.
func (r *Record) PutSession(state *ratchetstate.State) {
	k := keyFor(state.IndexInfo.BaseKey)
	if _, exists := r.sessions[k]; !exists {
		r.order = append(r.order, k)
	}
	r.sessions[k] = state
}

// CloseSession marks the session under baseKey closed (retained, not
// deleted) at the current time, if found.
func (r *Record) CloseSession(baseKey [curve.PublicKeySize]byte) {
	if s, ok := r.sessions[keyFor(baseKey)]; ok && s.IndexInfo.Closed == -1 {
		s.IndexInfo.Closed = time.Now().Unix()
	}
}

// CloseCurrentSession closes whichever session is currently open, if
// any, before a new one replaces it.
func (r *Record) CloseCurrentSession() {
	if open := r.OpenSession(); open != nil {
		open.IndexInfo.Closed = time.Now().Unix()
	}
}

// OpenSession returns the single session with IndexInfo.Closed == -1,
// or nil if none is open.
func (r *Record) OpenSession() *ratchetstate.State {
	for _, k := range r.order {
		if s := r.sessions[k]; s.IndexInfo.Closed == -1 {
			return s
		}
	}
	return nil
}

// GetSession looks up a session by the peer's base key. A session
// whose BaseKeyType is OURS is never returned here — lookup is always
// by the remote party's basing secret.
func (r *Record) GetSession(baseKey [curve.PublicKeySize]byte) *ratchetstate.State {
	s, ok := r.sessions[keyFor(baseKey)]
	if !ok || s.IndexInfo.BaseKeyType == ratchetstate.OURS {
		return nil
	}
	return s
}

// GetSessions returns every session sorted by IndexInfo.Used,
// descending (most-recently-used first), the order SessionCipher
// tries them in during multi-session trial decryption.
func (r *Record) GetSessions() []*ratchetstate.State {
	out := make([]*ratchetstate.State, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.sessions[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IndexInfo.Used > out[j].IndexInfo.Used
	})
	return out
}

// RemoveOldSessions deletes closed sessions in ascending Closed
// timestamp order until at most MaxRetiredSessions remain beyond the
// open one, returning the number evicted.
func (r *Record) RemoveOldSessions() int {
	type entry struct {
		key    string
		closed int64
	}
	var closedEntries []entry
	for _, k := range r.order {
		s := r.sessions[k]
		if s.IndexInfo.Closed != -1 {
			closedEntries = append(closedEntries, entry{k, s.IndexInfo.Closed})
		}
	}
	if len(closedEntries) <= MaxRetiredSessions {
		return 0
	}
	sort.Slice(closedEntries, func(i, j int) bool {
		return closedEntries[i].closed < closedEntries[j].closed
	})
	toRemove := len(closedEntries) - MaxRetiredSessions
	for i := 0; i < toRemove; i++ {
		r.remove(closedEntries[i].key)
	}
	return toRemove
}

func (r *Record) remove(key string) {
	delete(r.sessions, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// TotalSessions returns the number of sessions currently filed,
// open plus closed.
func (r *Record) TotalSessions() int {
	return len(r.order)
}
